// 受講登録サービスのエントリポイント。
// コース・ユーザーをGateway経由で検証してから登録し、登録完了の通知を非同期に依頼する。
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/learnhub/internal/enrollment"
	"github.com/nao1215/learnhub/pkg/logger"
)

func main() {
	cfg, err := enrollment.LoadConfig()
	if err != nil {
		slog.Error("設定の読み込みに失敗", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.Setup(cfg.Log, "enrollment")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := enrollment.NewServer(ctx, cfg, log)
	if err != nil {
		log.Error("受講登録サーバーの初期化に失敗", slog.Any("error", err))
		os.Exit(1)
	}

	if err := server.Run(ctx); err != nil {
		log.Error("受講登録サービスが異常終了しました", slog.Any("error", err))
		os.Exit(1)
	}
}
