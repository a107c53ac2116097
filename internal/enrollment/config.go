package enrollment

import (
	"time"

	"github.com/nao1215/learnhub/pkg/config"
	"github.com/nao1215/learnhub/pkg/logger"
)

// Config は受講登録サービスの設定。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"3003" validate:"required"`
	// Environment は実行環境（development, production, test）。
	Environment string `env:"APP_ENV" envDefault:"development" validate:"oneof=development production test"`
	// DatabaseURL はSQLiteの接続文字列。
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:/data/enrollment.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" validate:"required"`
	// GatewayURL はコース・ユーザーの検証と通知の依頼に使うGatewayのURL。
	GatewayURL string `env:"API_GATEWAY_URL" validate:"required,url"`
	// CollaboratorTimeout はコース・ユーザーの検証1回あたりの最大待ち時間。
	CollaboratorTimeout time.Duration `env:"COLLABORATOR_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	// NotificationTimeout は通知の依頼1回あたりの最大待ち時間。
	NotificationTimeout time.Duration `env:"NOTIFICATION_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	// Log はロガーの設定。
	Log logger.Config
}

// LoadConfig は環境変数から受講登録サービスの設定を読み込む。
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
