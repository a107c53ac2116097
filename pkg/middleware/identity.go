package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/learnhub/pkg/apperror"
)

// Gatewayが転送時に付与する識別ヘッダー。
// 下流サービスが呼び出し元を知る唯一の経路であり、Gateway以外から受け取った値は信用しない。
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Role"
	HeaderUserEmail = "X-User-Email"
)

// identityHeaders は識別ヘッダーの一覧。
var identityHeaders = []string{HeaderUserID, HeaderUserRole, HeaderUserEmail}

// StripIdentityHeaders は外部から送られてきた識別ヘッダーを削除する。
func StripIdentityHeaders(h http.Header) {
	for _, key := range identityHeaders {
		h.Del(key)
	}
}

// InjectIdentityHeaders は検証済みのIdentityを識別ヘッダーとして設定する。
// 既存の値は必ず上書きされる。
func InjectIdentityHeaders(h http.Header, identity Identity) {
	StripIdentityHeaders(h)
	h.Set(HeaderUserID, identity.UserID)
	h.Set(HeaderUserRole, identity.Role)
	h.Set(HeaderUserEmail, identity.Email)
}

// IdentityFromHeaders は識別ヘッダーからIdentityを組み立てる。
// X-User-Idが存在しない場合はfalseを返す。
func IdentityFromHeaders(h http.Header) (Identity, bool) {
	userID := h.Get(HeaderUserID)
	if userID == "" {
		return Identity{}, false
	}
	return Identity{
		UserID: userID,
		Role:   h.Get(HeaderUserRole),
		Email:  h.Get(HeaderUserEmail),
	}, true
}

// GatewayIdentity はGatewayが付与した識別ヘッダーをコンテキストに設定するGinミドルウェアを返す。
// ヘッダーが無い場合も処理は継続し、必要な箇所でハンドラが401を返す。
// 下流サービスはGatewayの背後に配置されることを前提としており、ヘッダーの署名は検証しない。
func GatewayIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity, ok := IdentityFromHeaders(c.Request.Header); ok {
			SetIdentity(c, identity)
		}
		c.Next()
	}
}

// RequireRole は指定されたロールのいずれかを持つ呼び出し元のみ許可するGinミドルウェアを返す。
func RequireRole(debug bool, roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		identity, _ := GetIdentity(c)
		if _, ok := allowed[identity.Role]; !ok || identity.Role == "" {
			apperror.Abort(c, apperror.Forbidden("アクセスが拒否されました。ロールが不足しています"), debug)
			return
		}
		c.Next()
	}
}
