package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/learnhub/pkg/apperror"
)

// Identity は検証済みトークンから取り出した呼び出し元の情報。
// 1リクエストの間だけ保持され、永続化されない。
type Identity struct {
	// UserID はユーザーの一意識別子。
	UserID string `json:"id"`
	// Role はユーザーのロール（student, instructor, admin）。
	Role string `json:"role"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// claimID は数値と文字列のどちらでも表現されうるIDクレーム。
// ユーザーサービスは数値IDでトークンを発行する。
type claimID string

// UnmarshalJSON は数値または文字列のIDを文字列として読み込む。
func (id *claimID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = claimID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("idクレームの形式が不正: %w", err)
	}
	*id = claimID(n.String())
	return nil
}

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID はユーザーID。
	UserID claimID `json:"id"`
	// Role はユーザーのロール。
	Role string `json:"role"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// 検証エラー。いずれもapperror.Errorとして返却される。
var (
	ErrMissingCredential   = apperror.MissingCredential()
	ErrMalformedCredential = apperror.MalformedCredential()
	ErrInvalidCredential   = apperror.InvalidCredential(nil)
	ErrExpiredCredential   = apperror.ExpiredCredential(nil)
)

// Verifier は共有秘密鍵でBearerトークンを検証する。
// 入出力を持たない純粋な検証器で、同じ(トークン, 秘密鍵, 時刻)に対して同じ結果を返す。
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// VerifierOption はVerifierの設定を変更する。
type VerifierOption func(*Verifier)

// WithClock は有効期限の判定に使う時刻関数を設定する。
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier は新しいVerifierを生成する。
func NewVerifier(secret string, opts ...VerifierOption) *Verifier {
	v := &Verifier{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ExtractBearer はAuthorizationヘッダーの値からトークンを取り出す。
func ExtractBearer(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", ErrMissingCredential
	}
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrMalformedCredential
	}
	return token, nil
}

// VerifyHeader はAuthorizationヘッダーの値を検証してIdentityを返す。
func (v *Verifier) VerifyHeader(header string) (Identity, error) {
	token, err := ExtractBearer(header)
	if err != nil {
		return Identity{}, err
	}
	return v.Verify(token)
}

// Verify はトークンの署名と有効期限を検証し、クレームをIdentityとして返す。
func (v *Verifier) Verify(credential string) (Identity, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperror.ExpiredCredential(err)
		}
		return Identity{}, apperror.InvalidCredential(err)
	}
	if !token.Valid {
		return Identity{}, apperror.InvalidCredential(errors.New("token is invalid"))
	}

	return Identity{
		UserID: string(claims.UserID),
		Role:   claims.Role,
		Email:  claims.Email,
	}, nil
}

// GenerateJWT はIdentityからHS256署名のJWTトークンを生成する。
func GenerateJWT(secret string, identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "learnhub",
		},
		UserID: claimID(identity.UserID),
		Role:   identity.Role,
		Email:  identity.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// contextKeyIdentity はGinコンテキストにIdentityを格納するキー。
const contextKeyIdentity = "identity"

// SetIdentity はGinコンテキストにIdentityを設定する。
func SetIdentity(c *gin.Context, identity Identity) {
	c.Set(contextKeyIdentity, identity)
}

// GetIdentity はGinコンテキストからIdentityを取得する。
// GatewayのルーターまたはGatewayIdentityが事前に設定している必要がある。
func GetIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return Identity{}, false
	}
	identity, ok := v.(Identity)
	return identity, ok
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
func GetUserID(c *gin.Context) string {
	identity, _ := GetIdentity(c)
	return identity.UserID
}
