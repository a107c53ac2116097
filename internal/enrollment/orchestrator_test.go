package enrollment

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	enrollmentdb "github.com/nao1215/learnhub/internal/enrollment/db"
	"github.com/nao1215/learnhub/pkg/apperror"
	"github.com/nao1215/learnhub/pkg/event"
)

func enrollRequest(userID, courseID string) EnrollRequest {
	return EnrollRequest{UserID: userID, CourseID: courseID, Credential: testCredential, RequestID: "req-1"}
}

func countEnrollments(t *testing.T, queries *enrollmentdb.Queries) int64 {
	t.Helper()
	n, err := queries.CountEnrollments(context.Background())
	if err != nil {
		t.Fatalf("CountEnrollments() error = %v", err)
	}
	return n
}

// TestEnroll_Success は正常な受講登録を検証する。
func TestEnroll_Success(t *testing.T) {
	t.Parallel()

	g := newFakeGateway(t)
	o, queries := newTestOrchestrator(t, g)

	got, err := o.Enroll(context.Background(), enrollRequest("42", "7"))
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	o.Wait()

	t.Run("受講中の登録が作成されること", func(t *testing.T) {
		if got.Status != enrollmentdb.StatusActive {
			t.Errorf("Status = %q, want %q", got.Status, enrollmentdb.StatusActive)
		}
		if got.UserID != "42" || got.CourseID != "7" {
			t.Errorf("enrollment = %+v", got)
		}
		stored, err := queries.GetEnrollment(context.Background(), got.ID)
		if err != nil {
			t.Fatalf("GetEnrollment() error = %v", err)
		}
		if stored.UserID != "42" || stored.Status != enrollmentdb.StatusActive {
			t.Errorf("stored = %+v", stored)
		}
	})

	t.Run("登録完了の通知がコース名付きで依頼されること", func(t *testing.T) {
		intents := g.receivedIntents()
		if len(intents) != 1 {
			t.Fatalf("通知の依頼数 = %d, want 1", len(intents))
		}
		if intents[0].UserID != "42" {
			t.Errorf("UserID = %q, want %q", intents[0].UserID, "42")
		}
		if intents[0].Type != event.TypeEnrollmentSuccess {
			t.Errorf("Type = %q, want %q", intents[0].Type, event.TypeEnrollmentSuccess)
		}
		if !strings.Contains(intents[0].Message, "Go入門") {
			t.Errorf("Message = %q, want contains %q", intents[0].Message, "Go入門")
		}
	})

	t.Run("すべての連携呼び出しに認証情報が引き継がれること", func(t *testing.T) {
		auth := g.receivedAuthorization()
		if len(auth) != 3 {
			t.Fatalf("連携呼び出し数 = %d, want 3", len(auth))
		}
		for i, a := range auth {
			if a != testCredential {
				t.Errorf("Authorization[%d] = %q, want %q", i, a, testCredential)
			}
		}
	})
}

// TestEnroll_ValidationFailure は検証に失敗した場合に書き込みも通知も行わないことを検証する。
func TestEnroll_ValidationFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		opt           func(*fakeGateway)
		wantCode      apperror.Code
		wantStatus    int
		wantUserCalls int64
	}{
		{
			name:          "コースが存在しない場合はCourseNotFoundを返しユーザーを検証しないこと",
			opt:           func(g *fakeGateway) { g.courseStatus = http.StatusNotFound },
			wantCode:      apperror.CodeCourseNotFound,
			wantStatus:    http.StatusNotFound,
			wantUserCalls: 0,
		},
		{
			name:          "ユーザーが存在しない場合はUserNotFoundを返すこと",
			opt:           func(g *fakeGateway) { g.userStatus = http.StatusNotFound },
			wantCode:      apperror.CodeUserNotFound,
			wantStatus:    http.StatusNotFound,
			wantUserCalls: 1,
		},
		{
			name:          "コースサービスがエラーを返した場合はUpstreamValidationErrorを返すこと",
			opt:           func(g *fakeGateway) { g.courseStatus = http.StatusInternalServerError },
			wantCode:      apperror.CodeUpstreamValidationError,
			wantStatus:    http.StatusBadGateway,
			wantUserCalls: 0,
		},
		{
			name:          "ユーザーサービスが認証エラーを返した場合はUpstreamValidationErrorを返すこと",
			opt:           func(g *fakeGateway) { g.userStatus = http.StatusForbidden },
			wantCode:      apperror.CodeUpstreamValidationError,
			wantStatus:    http.StatusBadGateway,
			wantUserCalls: 1,
		},
		{
			name:          "コースサービスが時間内に応答しない場合はUpstreamValidationErrorを返すこと",
			opt:           func(g *fakeGateway) { g.courseHang = true },
			wantCode:      apperror.CodeUpstreamValidationError,
			wantStatus:    http.StatusBadGateway,
			wantUserCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := newFakeGateway(t, tt.opt)
			o, queries := newTestOrchestrator(t, g)

			_, err := o.Enroll(context.Background(), enrollRequest("42", "7"))
			o.Wait()

			var appErr *apperror.Error
			if !errors.As(err, &appErr) {
				t.Fatalf("Enroll() error = %v, want *apperror.Error", err)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", appErr.Code, tt.wantCode)
			}
			if appErr.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", appErr.Status, tt.wantStatus)
			}
			if got := g.userHits.Load(); got != tt.wantUserCalls {
				t.Errorf("ユーザー検証の呼び出し数 = %d, want %d", got, tt.wantUserCalls)
			}
			if n := countEnrollments(t, queries); n != 0 {
				t.Errorf("登録数 = %d, want 0", n)
			}
			if n := len(g.receivedIntents()); n != 0 {
				t.Errorf("通知の依頼数 = %d, want 0", n)
			}
		})
	}
}

// TestEnroll_Duplicate は重複登録の拒否を検証する。
func TestEnroll_Duplicate(t *testing.T) {
	t.Parallel()

	t.Run("同じコースへの2回目の登録はAlreadyEnrolledになること", func(t *testing.T) {
		t.Parallel()

		g := newFakeGateway(t)
		o, queries := newTestOrchestrator(t, g)

		if _, err := o.Enroll(context.Background(), enrollRequest("42", "7")); err != nil {
			t.Fatalf("1回目のEnroll() error = %v", err)
		}
		_, err := o.Enroll(context.Background(), enrollRequest("42", "7"))
		if !errors.Is(err, apperror.AlreadyEnrolled(nil)) {
			t.Fatalf("2回目のEnroll() error = %v, want AlreadyEnrolled", err)
		}
		if got := apperror.From(err).Status; got != http.StatusConflict {
			t.Errorf("Status = %d, want %d", got, http.StatusConflict)
		}
		o.Wait()
		if n := countEnrollments(t, queries); n != 1 {
			t.Errorf("登録数 = %d, want 1", n)
		}
		if n := len(g.receivedIntents()); n != 1 {
			t.Errorf("通知の依頼数 = %d, want 1", n)
		}
	})

	t.Run("同時に登録しても成功は1件だけであること", func(t *testing.T) {
		t.Parallel()

		g := newFakeGateway(t)
		o, queries := newTestOrchestrator(t, g)

		const n = 10
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = o.Enroll(context.Background(), enrollRequest("42", "7"))
			}()
		}
		wg.Wait()
		o.Wait()

		var success, duplicate int
		for _, err := range errs {
			switch {
			case err == nil:
				success++
			case errors.Is(err, apperror.AlreadyEnrolled(nil)):
				duplicate++
			default:
				t.Errorf("想定外のエラー: %v", err)
			}
		}
		if success != 1 || duplicate != n-1 {
			t.Errorf("成功 = %d, 重複 = %d, want 1, %d", success, duplicate, n-1)
		}
		if got := countEnrollments(t, queries); got != 1 {
			t.Errorf("登録数 = %d, want 1", got)
		}
	})

	t.Run("別のコースには登録できること", func(t *testing.T) {
		t.Parallel()

		g := newFakeGateway(t)
		o, queries := newTestOrchestrator(t, g)

		for _, courseID := range []string{"7", "8"} {
			if _, err := o.Enroll(context.Background(), enrollRequest("42", courseID)); err != nil {
				t.Fatalf("Enroll(%s) error = %v", courseID, err)
			}
		}
		if n := countEnrollments(t, queries); n != 2 {
			t.Errorf("登録数 = %d, want 2", n)
		}
	})
}

// TestEnroll_Notification は通知の依頼が登録結果から切り離されていることを検証する。
func TestEnroll_Notification(t *testing.T) {
	t.Parallel()

	t.Run("通知サービスの応答が遅くても登録はすぐに完了すること", func(t *testing.T) {
		t.Parallel()

		gate := make(chan struct{})
		g := newFakeGateway(t, func(g *fakeGateway) { g.notifyGate = gate })
		o, _ := newTestOrchestrator(t, g)

		done := make(chan error, 1)
		go func() {
			_, err := o.Enroll(context.Background(), enrollRequest("42", "7"))
			done <- err
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Enroll() error = %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("通知の完了を待たずに登録が返るはずが、1秒以内に返らなかった")
		}

		if n := len(g.receivedIntents()); n != 0 {
			t.Errorf("通知の依頼数 = %d, want 0", n)
		}
		close(gate)
		o.Wait()
		if n := len(g.receivedIntents()); n != 1 {
			t.Errorf("通知の依頼数 = %d, want 1", n)
		}
	})

	t.Run("通知の依頼に失敗しても登録は成功すること", func(t *testing.T) {
		t.Parallel()

		g := newFakeGateway(t, func(g *fakeGateway) { g.notifyStatus = http.StatusInternalServerError })
		o, queries := newTestOrchestrator(t, g)

		if _, err := o.Enroll(context.Background(), enrollRequest("42", "7")); err != nil {
			t.Fatalf("Enroll() error = %v", err)
		}
		o.Wait()
		if n := countEnrollments(t, queries); n != 1 {
			t.Errorf("登録数 = %d, want 1", n)
		}
	})

	t.Run("リクエストがキャンセルされても通知は送信されること", func(t *testing.T) {
		t.Parallel()

		gate := make(chan struct{})
		g := newFakeGateway(t, func(g *fakeGateway) { g.notifyGate = gate })
		o, _ := newTestOrchestrator(t, g)

		ctx, cancel := context.WithCancel(context.Background())
		if _, err := o.Enroll(ctx, enrollRequest("42", "7")); err != nil {
			t.Fatalf("Enroll() error = %v", err)
		}
		cancel()
		close(gate)
		o.Wait()

		if n := len(g.receivedIntents()); n != 1 {
			t.Errorf("通知の依頼数 = %d, want 1", n)
		}
	})
}

// TestEnrollmentMessage は通知メッセージの組み立てを検証する。
func TestEnrollmentMessage(t *testing.T) {
	t.Parallel()

	if got := enrollmentMessage(Course{Title: "Go入門"}); got != "コース「Go入門」への登録が完了しました" {
		t.Errorf("enrollmentMessage() = %q", got)
	}
	if got := enrollmentMessage(Course{}); got != "コースへの登録が完了しました" {
		t.Errorf("enrollmentMessage() = %q", got)
	}
}
