package gateway

import (
	"time"

	"github.com/nao1215/learnhub/pkg/config"
	"github.com/nao1215/learnhub/pkg/logger"
)

// Config はGatewayサービスの設定。起動時に一度だけ読み込まれ、以後変更されない。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"3000" validate:"required"`
	// Environment は実行環境（development, production, test）。
	Environment string `env:"APP_ENV" envDefault:"development" validate:"oneof=development production test"`
	// JWTSecret はトークン検証用の共有秘密鍵。
	JWTSecret string `env:"JWT_SECRET" validate:"required"`
	// TrustedProxies はX-Forwarded-Forを信用する前段プロキシのIPまたはCIDR。
	// 未設定の場合はどのプロキシも信用せず、接続元アドレスをクライアントIPとする。
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
	// CORSOrigins はクロスオリジンリクエストを許可するオリジン。
	CORSOrigins []string `env:"CORS_ORIGIN" envSeparator:"," envDefault:"http://localhost:5000"`

	// UserServiceURL はユーザー（認証）サービスのURL。
	UserServiceURL string `env:"USER_SERVICE_URL" validate:"required,url"`
	// CourseServiceURL はコース（カタログ）サービスのURL。
	CourseServiceURL string `env:"COURSE_SERVICE_URL" validate:"required,url"`
	// EnrollmentServiceURL は受講登録サービスのURL。
	EnrollmentServiceURL string `env:"ENROLLMENT_SERVICE_URL" validate:"required,url"`
	// ProgressServiceURL は学習進捗サービスのURL。
	ProgressServiceURL string `env:"PROGRESS_SERVICE_URL" validate:"required,url"`
	// NotificationServiceURL は通知サービスのURL。
	NotificationServiceURL string `env:"NOTIFICATION_SERVICE_URL" validate:"required,url"`

	// UpstreamTimeout は転送先からの応答を待つ最大時間。
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	// RateLimitRPS はクライアントIPごとの秒間リクエスト上限。0の場合は制限しない。
	RateLimitRPS float64 `env:"RATE_LIMIT_RPS" envDefault:"0" validate:"gte=0"`
	// RateLimitBurst はレート制限のバースト数。
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"20" validate:"gte=0"`

	// Log はロガーの設定。
	Log logger.Config
}

// LoadConfig は環境変数からGatewayの設定を読み込む。
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Debug は開発向けの詳細なエラー情報を返すかどうかを返す。
func (c Config) Debug() bool {
	return c.Environment != config.EnvProduction
}
