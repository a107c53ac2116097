package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	notificationdb "github.com/nao1215/learnhub/internal/notification/db"
	"github.com/nao1215/learnhub/pkg/event"
	"github.com/nao1215/learnhub/pkg/httpclient"
)

// completeTimeout は終了状態の書き込みにかける最大時間。
const completeTimeout = 5 * time.Second

// Dispatcher は処理中の配信記録を受け取り、宛先を解決して配信する。
// 配信はリクエストから切り離したgoroutineで行い、結果は記録の状態遷移としてのみ残す。
// 再試行は行わない。
type Dispatcher struct {
	queries   *notificationdb.Queries
	contacts  ContactResolver
	deliverer Deliverer
	// contactTimeout は宛先の解決にかける最大時間。
	contactTimeout time.Duration
	// deliveryTimeout は配信にかける最大時間。
	deliveryTimeout time.Duration
	logger          *slog.Logger
	now             func() time.Time
	// pending は配信中の記録。
	pending sync.WaitGroup
}

// NewDispatcher は新しいDispatcherを生成する。
func NewDispatcher(
	queries *notificationdb.Queries,
	contacts ContactResolver,
	deliverer Deliverer,
	contactTimeout time.Duration,
	deliveryTimeout time.Duration,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		queries:         queries,
		contacts:        contacts,
		deliverer:       deliverer,
		contactTimeout:  contactTimeout,
		deliveryTimeout: deliveryTimeout,
		logger:          logger,
		now:             time.Now,
	}
}

// Dispatch は記録の配信を開始し、完了を待たずに戻る。
// credentialは宛先の解決に使う呼び出し元のAuthorizationヘッダーの値で、永続化しない。
func (d *Dispatcher) Dispatch(entry notificationdb.NotificationLog, credential, requestID string) {
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		d.process(entry, credential, requestID)
	}()
}

// Wait は配信中の記録がすべて終了状態になるまで待つ。
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// process は宛先の解決と配信を行い、結果を記録する。
func (d *Dispatcher) process(entry notificationdb.NotificationLog, credential, requestID string) {
	log := d.logger.With(
		slog.String("notification_id", entry.ID),
		slog.String("user_id", entry.UserID),
		slog.String("request_id", requestID),
	)

	ctx := httpclient.WithCredential(context.Background(), credential)
	if requestID != "" {
		ctx = httpclient.WithRequestID(ctx, requestID)
	}

	contactCtx, cancel := context.WithTimeout(ctx, d.contactTimeout)
	contact, err := d.contacts.ResolveContact(contactCtx, entry.UserID)
	cancel()
	if err != nil {
		log.Warn("宛先の解決に失敗しました", slog.Any("error", err))
		d.complete(log, entry.ID, notificationdb.StatusFailed, "", "宛先の解決に失敗: "+err.Error())
		return
	}

	deliverCtx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
	err = d.deliverer.Deliver(deliverCtx, Message{
		To:      contact,
		Subject: subjectFor(entry.Type),
		Body:    entry.Message,
		Type:    entry.Type,
	})
	cancel()
	if err != nil {
		log.Warn("通知の配信に失敗しました", slog.Any("error", err))
		d.complete(log, entry.ID, notificationdb.StatusFailed, contact.Email, "配信に失敗: "+err.Error())
		return
	}
	d.complete(log, entry.ID, notificationdb.StatusSent, contact.Email, "")
}

// complete は記録を終了状態に更新する。
// 記録が既に終了状態の場合は更新されず、その旨をログに残す。
func (d *Dispatcher) complete(log *slog.Logger, id, status, recipient, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), completeTimeout)
	defer cancel()

	n, err := d.queries.CompleteNotificationLog(ctx, notificationdb.CompleteNotificationLogParams{
		ID:            id,
		Status:        status,
		Recipient:     recipient,
		FailureReason: reason,
		UpdatedAt:     d.now().UTC(),
	})
	switch {
	case err != nil:
		log.Error("配信結果の記録に失敗しました", slog.String("status", status), slog.Any("error", err))
	case n == 0:
		log.Warn("配信記録は既に終了状態のため更新しませんでした", slog.String("status", status))
	default:
		log.Info("配信結果を記録しました", slog.String("status", status))
	}
}

// subjectFor は通知の種類に応じた件名を返す。
func subjectFor(typ string) string {
	switch event.Type(typ) {
	case event.TypeEnrollmentSuccess:
		return "コース登録完了のお知らせ"
	default:
		return "LearnHubからのお知らせ"
	}
}
