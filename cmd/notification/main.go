// 通知サービスのエントリポイント。
// 通知の依頼を記録し、宛先を解決して非同期に配信する。
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/learnhub/internal/notification"
	"github.com/nao1215/learnhub/pkg/logger"
)

func main() {
	cfg, err := notification.LoadConfig()
	if err != nil {
		slog.Error("設定の読み込みに失敗", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.Setup(cfg.Log, "notification")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := notification.NewServer(ctx, cfg, log)
	if err != nil {
		log.Error("通知サーバーの初期化に失敗", slog.Any("error", err))
		os.Exit(1)
	}

	if err := server.Run(ctx); err != nil {
		log.Error("通知サービスが異常終了しました", slog.Any("error", err))
		os.Exit(1)
	}
}
