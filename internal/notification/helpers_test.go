package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	notificationdb "github.com/nao1215/learnhub/internal/notification/db"
	"github.com/nao1215/learnhub/pkg/logger"
)

// testCredential はテスト用のAuthorizationヘッダーの値。
const testCredential = "Bearer test-token"

// userDirectory はGET /api/users/{id} に応答するモックのGateway。
type userDirectory struct {
	server *httptest.Server

	mu            sync.Mutex
	users         map[string]Contact
	authorization []string
}

// newUserDirectory はusersを返すモックのGatewayを起動する。
func newUserDirectory(t *testing.T, users map[string]Contact) *userDirectory {
	t.Helper()

	d := &userDirectory{users: users}
	d.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.authorization = append(d.authorization, r.Header.Get("Authorization"))
		d.mu.Unlock()

		id, ok := strings.CutPrefix(r.URL.Path, "/api/users/")
		if r.Method != http.MethodGet || !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		contact, found := d.users[id]
		if !found {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "email": contact.Email, "name": contact.Name})
	}))
	t.Cleanup(d.server.Close)
	return d
}

func (d *userDirectory) receivedAuthorization() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.authorization...)
}

// recordingDeliverer は配信内容を記録するDeliverer。
type recordingDeliverer struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (r *recordingDeliverer) Deliver(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingDeliverer) delivered() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// errDelivery は配信失敗を模したエラー。
var errDelivery = errors.New("smtp: connection reset")

// openTestQueries はマイグレーション済みのインメモリDBを開く。
func openTestQueries(t *testing.T) *notificationdb.Queries {
	t.Helper()

	sqlDB, err := openDB(context.Background(), ":memory:", logger.Discard())
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return notificationdb.New(sqlDB)
}

// createProcessing は処理中の配信記録を作成する。
func createProcessing(t *testing.T, queries *notificationdb.Queries, id, userID string, at time.Time) notificationdb.NotificationLog {
	t.Helper()

	params := notificationdb.CreateNotificationLogParams{
		ID:        id,
		UserID:    userID,
		Message:   "コース「Go入門」への登録が完了しました",
		Type:      "ENROLLMENT_SUCCESS",
		CreatedAt: at,
	}
	if err := queries.CreateNotificationLog(context.Background(), params); err != nil {
		t.Fatalf("CreateNotificationLog() error = %v", err)
	}
	entry, err := queries.GetNotificationLog(context.Background(), id)
	if err != nil {
		t.Fatalf("GetNotificationLog() error = %v", err)
	}
	return entry
}
