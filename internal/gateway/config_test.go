package gateway

import (
	"testing"
	"time"

	"github.com/nao1215/learnhub/pkg/config"
)

func baseEnvironment() map[string]string {
	return map[string]string{
		"JWT_SECRET":               "secret",
		"USER_SERVICE_URL":         "http://user:3001",
		"COURSE_SERVICE_URL":       "http://course:3002",
		"ENROLLMENT_SERVICE_URL":   "http://enrollment:3003",
		"PROGRESS_SERVICE_URL":     "http://progress:3004",
		"NOTIFICATION_SERVICE_URL": "http://notification:3005",
	}
}

// TestConfig は環境変数からの設定読み込みを検証する。
func TestConfig(t *testing.T) {
	t.Parallel()

	t.Run("デフォルト値が適用されること", func(t *testing.T) {
		t.Parallel()

		var cfg Config
		if err := config.LoadWith(&cfg, baseEnvironment()); err != nil {
			t.Fatalf("LoadWith()でエラーが発生: %v", err)
		}
		if cfg.Port != "3000" {
			t.Errorf("Port = %q, want %q", cfg.Port, "3000")
		}
		if cfg.UpstreamTimeout != 30*time.Second {
			t.Errorf("UpstreamTimeout = %v, want 30s", cfg.UpstreamTimeout)
		}
		if cfg.RateLimitRPS != 0 {
			t.Errorf("RateLimitRPS = %v, want 0", cfg.RateLimitRPS)
		}
		if !cfg.Debug() {
			t.Error("Debug() = false, want true")
		}
	})

	t.Run("JWT_SECRETが未設定の場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		environment := baseEnvironment()
		delete(environment, "JWT_SECRET")
		var cfg Config
		if err := config.LoadWith(&cfg, environment); err == nil {
			t.Error("エラーが返されなかった")
		}
	})

	t.Run("転送先URLが不正な場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		environment := baseEnvironment()
		environment["COURSE_SERVICE_URL"] = "course"
		var cfg Config
		if err := config.LoadWith(&cfg, environment); err == nil {
			t.Error("エラーが返されなかった")
		}
	})

	t.Run("本番環境ではDebugがfalseになること", func(t *testing.T) {
		t.Parallel()

		environment := baseEnvironment()
		environment["APP_ENV"] = "production"
		var cfg Config
		if err := config.LoadWith(&cfg, environment); err != nil {
			t.Fatalf("LoadWith()でエラーが発生: %v", err)
		}
		if cfg.Debug() {
			t.Error("Debug() = true, want false")
		}
	})
}
