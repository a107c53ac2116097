package notification

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/nao1215/learnhub/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// openDB はSQLiteに接続し、未適用のマイグレーションを適用する。
// SQLiteの書き込みは直列化されるため、接続は1本に制限する。
func openDB(ctx context.Context, dsn string, logger *slog.Logger) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	applied, err := migration.New(sqlDB, migrationsFS, "migrations", logger).Up(ctx)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("スキーマを更新しました", slog.Int("applied", len(applied)))
	}
	return sqlDB, nil
}
