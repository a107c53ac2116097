package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/learnhub/pkg/apperror"
	"github.com/nao1215/learnhub/pkg/logger"
)

// TestRecovery はRecoveryミドルウェアを検証する。
func TestRecovery(t *testing.T) {
	t.Parallel()

	newRouter := func(debug bool) *gin.Engine {
		router := gin.New()
		router.Use(Recovery(logger.Discard(), debug))
		router.GET("/panic", func(_ *gin.Context) {
			panic("テスト用パニック")
		})
		router.GET("/ok", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return router
	}

	t.Run("パニックが発生した場合に構造化された500が返ること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		w := httptest.NewRecorder()
		newRouter(false).ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}

		var p apperror.Payload
		if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if p.Error != "内部サーバーエラーが発生しました" {
			t.Errorf("error = %q, want %q", p.Error, "内部サーバーエラーが発生しました")
		}
		if p.Class != apperror.ClassInternal {
			t.Errorf("class = %q, want %q", p.Class, apperror.ClassInternal)
		}
		if p.Detail != "" {
			t.Errorf("本番モードでdetailが含まれている: %q", p.Detail)
		}
	})

	t.Run("開発モードではパニックの内容がdetailに含まれること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		w := httptest.NewRecorder()
		newRouter(true).ServeHTTP(w, req)

		var p apperror.Payload
		if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if p.Detail != "panic: テスト用パニック" {
			t.Errorf("detail = %q, want %q", p.Detail, "panic: テスト用パニック")
		}
	})

	t.Run("パニックが発生しない場合は正常にレスポンスが返ること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		w := httptest.NewRecorder()
		newRouter(false).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})
}
