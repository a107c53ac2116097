// Package logger は全サービス共通のslogロガーを構築する。
//
// 開発時はtintによる読みやすいテキスト形式、本番ではJSON形式で出力する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Config はロガーの設定。
type Config struct {
	// Level はログレベル（debug, info, warn, error）。
	Level string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn warning error"`
	// Format は出力形式（text, json）。
	Format string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
}

// New は設定に従ってslogロガーを生成する。
// serviceはすべてのログに付与されるサービス名。
func New(cfg Config, service string, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Level)

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !isTerminal(w),
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == "error" && a.Value.Kind() == slog.KindAny {
					if err, ok := a.Value.Any().(error); ok {
						return tint.Err(err)
					}
				}
				return a
			},
		})
	}

	return slog.New(handler).With(slog.String("service", service))
}

// Setup はロガーを生成し、slogのデフォルトロガーとして登録する。
func Setup(cfg Config, service string) *slog.Logger {
	l := New(cfg, service, os.Stdout)
	slog.SetDefault(l)
	return l
}

// ParseLevel は文字列をslog.Levelに変換する。不明な値はinfoとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard はテスト用に出力を破棄するロガーを返す。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
