package enrollment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	enrollmentdb "github.com/nao1215/learnhub/internal/enrollment/db"
	"github.com/nao1215/learnhub/pkg/event"
	"github.com/nao1215/learnhub/pkg/logger"
)

// testCredential はテスト用のAuthorizationヘッダーの値。
const testCredential = "Bearer test-token"

// fakeGateway はコース・ユーザー・通知の各エンドポイントを模したGateway。
type fakeGateway struct {
	server *httptest.Server

	// courseStatus はコース取得の応答ステータス。0の場合は200。
	courseStatus int
	// userStatus はユーザー取得の応答ステータス。0の場合は200。
	userStatus int
	// courseTitle はコース取得で返すタイトル。
	courseTitle string
	// courseHang がtrueの場合、コース取得はリクエストがキャンセルされるまで応答しない。
	courseHang bool
	// notifyGate がnilでない場合、通知の受付はgateが閉じられるまで応答しない。
	notifyGate chan struct{}
	// notifyStatus は通知の受付の応答ステータス。0の場合は201。
	notifyStatus int

	courseHits atomic.Int64
	userHits   atomic.Int64

	mu            sync.Mutex
	intents       []event.NotificationIntent
	authorization []string
}

// newFakeGateway はoptsで設定したfakeGatewayを起動する。
func newFakeGateway(t *testing.T, opts ...func(*fakeGateway)) *fakeGateway {
	t.Helper()

	g := &fakeGateway{courseTitle: "Go入門"}
	for _, opt := range opts {
		opt(g)
	}
	g.server = httptest.NewServer(http.HandlerFunc(g.serveHTTP))
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) serveHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.authorization = append(g.authorization, r.Header.Get("Authorization"))
	g.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/courses/"):
		g.courseHits.Add(1)
		if g.courseHang {
			<-r.Context().Done()
			return
		}
		writeStatus(w, g.courseStatus, http.StatusOK, map[string]string{
			"id":    strings.TrimPrefix(r.URL.Path, "/api/courses/"),
			"title": g.courseTitle,
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/users/"):
		g.userHits.Add(1)
		writeStatus(w, g.userStatus, http.StatusOK, map[string]string{
			"id": strings.TrimPrefix(r.URL.Path, "/api/users/"),
		})
	case r.Method == http.MethodPost && r.URL.Path == "/api/notifications":
		if g.notifyGate != nil {
			select {
			case <-g.notifyGate:
			case <-r.Context().Done():
				return
			}
		}
		var intent event.NotificationIntent
		if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		g.mu.Lock()
		g.intents = append(g.intents, intent)
		g.mu.Unlock()
		writeStatus(w, g.notifyStatus, http.StatusCreated, map[string]string{"message": "ok"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeStatus(w http.ResponseWriter, status, fallback int, body any) {
	if status == 0 {
		status = fallback
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// receivedIntents は受け付けた通知の依頼を返す。
func (g *fakeGateway) receivedIntents() []event.NotificationIntent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]event.NotificationIntent(nil), g.intents...)
}

// receivedAuthorization は受け取ったAuthorizationヘッダーを返す。
func (g *fakeGateway) receivedAuthorization() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.authorization...)
}

// openTestQueries はマイグレーション済みのインメモリDBを開く。
func openTestQueries(t *testing.T) *enrollmentdb.Queries {
	t.Helper()

	sqlDB, err := openDB(context.Background(), ":memory:", logger.Discard())
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return enrollmentdb.New(sqlDB)
}

// newTestOrchestrator はfakeGatewayを連携先とするOrchestratorを生成する。
func newTestOrchestrator(t *testing.T, g *fakeGateway) (*Orchestrator, *enrollmentdb.Queries) {
	t.Helper()

	queries := openTestQueries(t)
	client := NewGatewayClient(g.server.URL)
	o := NewOrchestrator(queries, client, client, time.Second, 2*time.Second, logger.Discard())
	t.Cleanup(o.Wait)
	return o, queries
}
