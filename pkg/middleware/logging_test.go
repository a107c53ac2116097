package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestRequestLogger はリクエストログを検証する。
func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("リクエストIDが採番されレスポンスヘッダーに設定されること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		router := gin.New()
		router.Use(RequestLogger(slog.New(slog.NewTextHandler(&buf, nil))))
		router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		requestID := w.Header().Get(HeaderRequestID)
		if requestID == "" {
			t.Fatal("X-Request-Idが設定されていない")
		}
		if !strings.Contains(buf.String(), requestID) {
			t.Errorf("ログにリクエストIDが含まれていない: %s", buf.String())
		}
		if !strings.Contains(buf.String(), "status=200") {
			t.Errorf("ログにステータスが含まれていない: %s", buf.String())
		}
	})

	t.Run("受け取ったリクエストIDを引き継ぐこと", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(RequestLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
		router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get(HeaderRequestID); got != "req-123" {
			t.Errorf("X-Request-Id = %q, want %q", got, "req-123")
		}
	})
}
