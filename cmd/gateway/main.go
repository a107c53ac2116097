// API Gatewayサービスのエントリポイント。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
// トークンを検証し、ルートテーブルに従って内部サービスへリクエストを転送する。
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/learnhub/internal/gateway"
	"github.com/nao1215/learnhub/pkg/logger"
)

func main() {
	cfg, err := gateway.LoadConfig()
	if err != nil {
		slog.Error("設定の読み込みに失敗", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.Setup(cfg.Log, "gateway")

	server, err := gateway.NewServer(cfg, log)
	if err != nil {
		log.Error("Gatewayサーバーの初期化に失敗", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		log.Error("Gatewayサービスが異常終了しました", slog.Any("error", err))
		os.Exit(1)
	}
}
