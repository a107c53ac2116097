package enrollment

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nao1215/learnhub/pkg/event"
	"github.com/nao1215/learnhub/pkg/httpclient"
)

// LookupStatus は連携サービスへの問い合わせ結果の種類。
type LookupStatus string

const (
	// LookupFound は対象が存在したことを表す。
	LookupFound LookupStatus = "found"
	// LookupNotFound は連携サービスが対象の不在（404）を返したことを表す。
	LookupNotFound LookupStatus = "not_found"
	// LookupFailed は通信失敗・タイムアウト・404以外のエラー応答を表す。
	LookupFailed LookupStatus = "failed"
)

// Course はコースサービスが返すコース情報のうち、登録処理で使う項目。
type Course struct {
	// Title はコース名。通知メッセージに使う。
	Title string `json:"title"`
}

// Directory はコースとユーザーの存在を確認する。
type Directory interface {
	// LookupCourse はコースを取得する。
	LookupCourse(ctx context.Context, courseID string) (Course, LookupStatus, error)
	// LookupUser はユーザーの存在を確認する。
	LookupUser(ctx context.Context, userID string) (LookupStatus, error)
}

// Notifier は通知サービスへ通知を依頼する。
type Notifier interface {
	// Notify は通知の依頼を送信する。
	Notify(ctx context.Context, intent event.NotificationIntent) error
}

// GatewayClient はGateway経由でコース・ユーザー・通知サービスを呼び出す。
// 呼び出し元の認証情報はhttpclient.WithCredentialでコンテキストに設定して引き継ぐ。
type GatewayClient struct {
	client *httpclient.Client
}

// NewGatewayClient は新しいGatewayClientを生成する。
func NewGatewayClient(gatewayURL string, opts ...httpclient.Option) *GatewayClient {
	return &GatewayClient{client: httpclient.New(gatewayURL, opts...)}
}

// LookupCourse はGET /api/courses/{id} でコースを取得する。
func (g *GatewayClient) LookupCourse(ctx context.Context, courseID string) (Course, LookupStatus, error) {
	var course Course
	err := g.client.GetJSON(ctx, "/api/courses/"+url.PathEscape(courseID), &course)
	status, err := classify(err)
	return course, status, err
}

// LookupUser はGET /api/users/{id} でユーザーの存在を確認する。
func (g *GatewayClient) LookupUser(ctx context.Context, userID string) (LookupStatus, error) {
	return classify(g.client.GetJSON(ctx, "/api/users/"+url.PathEscape(userID), nil))
}

// Notify はPOST /api/notifications で通知を依頼する。
func (g *GatewayClient) Notify(ctx context.Context, intent event.NotificationIntent) error {
	if err := g.client.PostJSON(ctx, "/api/notifications", intent, nil); err != nil {
		return fmt.Errorf("通知の依頼に失敗: %w", err)
	}
	return nil
}

// classify は問い合わせのエラーを結果の種類に分類する。
// 判定はHTTPステータスのみで行い、エラーメッセージの内容には依存しない。
func classify(err error) (LookupStatus, error) {
	switch {
	case err == nil:
		return LookupFound, nil
	case httpclient.IsNotFound(err):
		return LookupNotFound, err
	default:
		return LookupFailed, err
	}
}
