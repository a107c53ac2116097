package enrollment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	enrollmentdb "github.com/nao1215/learnhub/internal/enrollment/db"
	"github.com/nao1215/learnhub/pkg/apperror"
	"github.com/nao1215/learnhub/pkg/event"
	"github.com/nao1215/learnhub/pkg/httpclient"
)

// step は受講登録処理の進行段階。
type step string

const (
	stepStart                 step = "start"
	stepCourseValidated       step = "course_validated"
	stepUserValidated         step = "user_validated"
	stepWritten               step = "written"
	stepNotificationScheduled step = "notification_scheduled"
	stepDone                  step = "done"
)

// EnrollRequest は受講登録の依頼。
type EnrollRequest struct {
	// UserID は登録するユーザーのID。
	UserID string
	// CourseID は登録先のコースID。
	CourseID string
	// Credential は呼び出し元のAuthorizationヘッダーの値。連携サービスの呼び出しに引き継ぐ。
	Credential string
	// RequestID はログの突き合わせに使うリクエストID。
	RequestID string
}

// Orchestrator は受講登録の一連の処理を順序通りに実行する。
// コースの検証 → ユーザーの検証 → 書き込み → 通知の依頼 の順で進み、
// 検証に失敗した場合は書き込みも通知も行わない。
type Orchestrator struct {
	queries   *enrollmentdb.Queries
	directory Directory
	notifier  Notifier
	// collaboratorTimeout は検証1回あたりの最大待ち時間。
	collaboratorTimeout time.Duration
	// notificationTimeout は通知の依頼1回あたりの最大待ち時間。
	notificationTimeout time.Duration
	logger              *slog.Logger
	now                 func() time.Time
	// pending は送信中の通知の依頼。
	pending sync.WaitGroup
}

// NewOrchestrator は新しいOrchestratorを生成する。
func NewOrchestrator(
	queries *enrollmentdb.Queries,
	directory Directory,
	notifier Notifier,
	collaboratorTimeout time.Duration,
	notificationTimeout time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		queries:             queries,
		directory:           directory,
		notifier:            notifier,
		collaboratorTimeout: collaboratorTimeout,
		notificationTimeout: notificationTimeout,
		logger:              logger,
		now:                 time.Now,
	}
}

// Enroll はユーザーをコースに登録する。
//
// コースが存在しない場合はCourseNotFound、ユーザーが存在しない場合はUserNotFound、
// 検証のための通信に失敗した場合はUpstreamValidationError、既に登録済みの場合はAlreadyEnrolledを返す。
// 通知の依頼は結果を待たずに送信され、その成否は戻り値に影響しない。
func (o *Orchestrator) Enroll(ctx context.Context, req EnrollRequest) (enrollmentdb.Enrollment, error) {
	log := o.logger.With(
		slog.String("request_id", req.RequestID),
		slog.String("user_id", req.UserID),
		slog.String("course_id", req.CourseID),
	)
	log.Debug("受講登録", slog.String("step", string(stepStart)))

	ctx = httpclient.WithCredential(ctx, req.Credential)
	if req.RequestID != "" {
		ctx = httpclient.WithRequestID(ctx, req.RequestID)
	}

	course, err := o.validateCourse(ctx, req.CourseID)
	if err != nil {
		return enrollmentdb.Enrollment{}, err
	}
	log.Debug("受講登録", slog.String("step", string(stepCourseValidated)))

	if err := o.validateUser(ctx, req.UserID); err != nil {
		return enrollmentdb.Enrollment{}, err
	}
	log.Debug("受講登録", slog.String("step", string(stepUserValidated)))

	enrollment := enrollmentdb.Enrollment{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		CourseID:       req.CourseID,
		EnrollmentDate: o.now().UTC(),
		Status:         enrollmentdb.StatusActive,
	}
	if err := o.queries.CreateEnrollment(ctx, enrollmentdb.CreateEnrollmentParams(enrollment)); err != nil {
		if isUniqueViolation(err) {
			return enrollmentdb.Enrollment{}, apperror.AlreadyEnrolled(err)
		}
		return enrollmentdb.Enrollment{}, fmt.Errorf("受講登録の作成に失敗: %w", err)
	}
	log.Info("受講登録を作成しました", slog.String("enrollment_id", enrollment.ID))
	log.Debug("受講登録", slog.String("step", string(stepWritten)))

	o.scheduleNotification(req, enrollmentMessage(course))
	log.Debug("受講登録", slog.String("step", string(stepNotificationScheduled)))

	log.Debug("受講登録", slog.String("step", string(stepDone)))
	return enrollment, nil
}

// validateCourse はコースの存在を確認する。
func (o *Orchestrator) validateCourse(ctx context.Context, courseID string) (Course, error) {
	ctx, cancel := context.WithTimeout(ctx, o.collaboratorTimeout)
	defer cancel()

	course, status, err := o.directory.LookupCourse(ctx, courseID)
	switch status {
	case LookupFound:
		return course, nil
	case LookupNotFound:
		return Course{}, apperror.CourseNotFound()
	default:
		return Course{}, apperror.UpstreamValidation("コースの検証に失敗しました", err)
	}
}

// validateUser はユーザーの存在を確認する。
func (o *Orchestrator) validateUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, o.collaboratorTimeout)
	defer cancel()

	status, err := o.directory.LookupUser(ctx, userID)
	switch status {
	case LookupFound:
		return nil
	case LookupNotFound:
		return apperror.UserNotFound()
	default:
		return apperror.UpstreamValidation("ユーザーの検証に失敗しました", err)
	}
}

// scheduleNotification は通知の依頼をリクエストから切り離して送信する。
// 元のリクエストが終了・キャンセルされても送信は継続し、失敗はログに残すのみとする。
func (o *Orchestrator) scheduleNotification(req EnrollRequest, message string) {
	intent := event.NotificationIntent{
		UserID:  req.UserID,
		Message: message,
		Type:    event.TypeEnrollmentSuccess,
	}

	o.pending.Add(1)
	go func() {
		defer o.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), o.notificationTimeout)
		defer cancel()
		ctx = httpclient.WithCredential(ctx, req.Credential)
		if req.RequestID != "" {
			ctx = httpclient.WithRequestID(ctx, req.RequestID)
		}

		if err := o.notifier.Notify(ctx, intent); err != nil {
			o.logger.Warn("通知の依頼に失敗しました",
				slog.String("request_id", req.RequestID),
				slog.String("user_id", req.UserID),
				slog.Any("error", err),
			)
			return
		}
		o.logger.Debug("通知を依頼しました",
			slog.String("request_id", req.RequestID),
			slog.String("user_id", req.UserID),
		)
	}()
}

// Wait は送信中の通知の依頼がすべて終わるまで待つ。
func (o *Orchestrator) Wait() {
	o.pending.Wait()
}

// enrollmentMessage は登録完了の通知メッセージを組み立てる。
func enrollmentMessage(course Course) string {
	if course.Title == "" {
		return "コースへの登録が完了しました"
	}
	return fmt.Sprintf("コース「%s」への登録が完了しました", course.Title)
}
