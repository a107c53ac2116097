package notification

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Message は配信するメッセージ。
type Message struct {
	// To は配信先。
	To Contact
	// Subject は件名。
	Subject string
	// Body は本文。
	Body string
	// Type は通知の種類。
	Type string
}

// Deliverer はメッセージを配信する。
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// LogDeliverer はメッセージを構造化ログに出力する。SMTPサーバーが無い環境で使う。
type LogDeliverer struct {
	logger *slog.Logger
}

// NewLogDeliverer は新しいLogDelivererを生成する。
func NewLogDeliverer(logger *slog.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger}
}

// Deliver はメッセージをログに出力する。
func (d *LogDeliverer) Deliver(_ context.Context, msg Message) error {
	d.logger.Info("通知を配信しました",
		slog.String("to", msg.To.Email),
		slog.String("subject", msg.Subject),
		slog.String("type", msg.Type),
		slog.String("body", msg.Body),
	)
	return nil
}

// SMTPDeliverer はSMTPでメールを送信する。
type SMTPDeliverer struct {
	config SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTPDeliverer は新しいSMTPDelivererを生成する。
func NewSMTPDeliverer(config SMTPConfig) *SMTPDeliverer {
	return &SMTPDeliverer{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}
}

// Deliver はメールを送信する。gomailはコンテキストに対応していないため、
// ctxが先に終了した場合は送信の完了を待たずにエラーを返す。
func (d *SMTPDeliverer) Deliver(ctx context.Context, msg Message) error {
	m := d.buildMessage(msg)

	done := make(chan error, 1)
	go func() {
		done <- d.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("メールの送信に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("メールの送信が完了しませんでした: %w", ctx.Err())
	}
}

// buildMessage は配信内容からメールを組み立てる。
func (d *SMTPDeliverer) buildMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", d.config.FromAddress, d.config.FromName)
	if msg.To.Name != "" {
		m.SetAddressHeader("To", msg.To.Email, msg.To.Name)
	} else {
		m.SetHeader("To", msg.To.Email)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m
}
