package notification

import (
	"time"

	"github.com/nao1215/learnhub/pkg/config"
	"github.com/nao1215/learnhub/pkg/logger"
)

// Config は通知サービスの設定。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"3005" validate:"required"`
	// Environment は実行環境（development, production, test）。
	Environment string `env:"APP_ENV" envDefault:"development" validate:"oneof=development production test"`
	// DatabaseURL はSQLiteの接続文字列。
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:/data/notification.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" validate:"required"`
	// GatewayURL は宛先の解決に使うGatewayのURL。
	GatewayURL string `env:"API_GATEWAY_URL" validate:"required,url"`
	// ContactTimeout は宛先の解決1回あたりの最大待ち時間。
	ContactTimeout time.Duration `env:"CONTACT_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	// DeliveryTimeout は配信1回あたりの最大待ち時間。
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"30s" validate:"gt=0"`

	// SMTP はメール配信の設定。Hostが空の場合はログへの出力で代替する。
	SMTP SMTPConfig `envPrefix:"SMTP_"`

	// Log はロガーの設定。
	Log logger.Config
}

// SMTPConfig はSMTPサーバーの設定。
type SMTPConfig struct {
	// Host はSMTPサーバーのホスト名。
	Host string `env:"HOST"`
	// Port はSMTPサーバーのポート番号。
	Port int `env:"PORT" envDefault:"587" validate:"gt=0,lte=65535"`
	// Username はSMTP認証のユーザー名。
	Username string `env:"USERNAME"`
	// Password はSMTP認証のパスワード。
	Password string `env:"PASSWORD"`
	// FromAddress は送信元のメールアドレス。
	FromAddress string `env:"FROM_ADDRESS" envDefault:"noreply@learnhub.local" validate:"required,email"`
	// FromName は送信元の表示名。
	FromName string `env:"FROM_NAME" envDefault:"LearnHub"`
}

// LoadConfig は環境変数から通知サービスの設定を読み込む。
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
