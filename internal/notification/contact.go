package notification

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/nao1215/learnhub/pkg/httpclient"
)

// ErrNoContact はユーザーに連絡先が登録されていないことを表す。
var ErrNoContact = errors.New("メールアドレスが登録されていません")

// Contact は通知の宛先。
type Contact struct {
	// Email は配信先のメールアドレス。
	Email string `json:"email"`
	// Name は宛先の表示名。
	Name string `json:"name"`
}

// ContactResolver はユーザーIDから通知の宛先を解決する。
type ContactResolver interface {
	ResolveContact(ctx context.Context, userID string) (Contact, error)
}

// GatewayContacts はGateway経由でユーザーサービスから宛先を取得する。
type GatewayContacts struct {
	client *httpclient.Client
}

// NewGatewayContacts は新しいGatewayContactsを生成する。
func NewGatewayContacts(gatewayURL string, opts ...httpclient.Option) *GatewayContacts {
	return &GatewayContacts{client: httpclient.New(gatewayURL, opts...)}
}

// ResolveContact はGET /api/users/{id} でユーザーのメールアドレスを取得する。
// 認証情報はhttpclient.WithCredentialでctxに設定しておく必要がある。
func (g *GatewayContacts) ResolveContact(ctx context.Context, userID string) (Contact, error) {
	var contact Contact
	if err := g.client.GetJSON(ctx, "/api/users/"+url.PathEscape(userID), &contact); err != nil {
		return Contact{}, fmt.Errorf("ユーザー情報の取得に失敗: %w", err)
	}
	if contact.Email == "" {
		return Contact{}, ErrNoContact
	}
	return contact, nil
}
