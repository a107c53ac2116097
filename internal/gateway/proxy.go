package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/learnhub/pkg/apperror"
	"github.com/nao1215/learnhub/pkg/middleware"
)

// hopHeaders は転送時に引き継がないホップバイホップヘッダー。
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy はリクエストを内部サービスへ転送し、応答をそのまま呼び出し元へ返す。
type Proxy struct {
	client *http.Client
	logger *slog.Logger
}

// NewProxy は新しいProxyを生成する。timeoutは転送先からの応答を待つ最大時間。
func NewProxy(timeout time.Duration, logger *slog.Logger) *Proxy {
	return &Proxy{
		client: &http.Client{
			Timeout: timeout,
			// 転送先のリダイレクトは追従せず、そのまま呼び出し元へ返す
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// targetURL はルートの転送先URLに書き換え後のパスとクエリを組み合わせる。
func targetURL(route Route, in *url.URL) *url.URL {
	out := *route.Target
	out.Path = strings.TrimSuffix(route.Target.Path, "/") + Rewrite(in.Path, route.Rewrite)
	out.RawPath = ""
	out.RawQuery = in.RawQuery
	out.Fragment = ""
	return &out
}

// Forward はリクエストをrouteの転送先へ送り、ステータス・ヘッダー・ボディをそのまま書き戻す。
// identityがnilでない場合は識別ヘッダーとして付与する。
// 転送先に接続できない場合はUpstreamUnavailableを返し、レスポンスは書き込まない。
func (p *Proxy) Forward(c *gin.Context, route Route, identity *middleware.Identity) error {
	dest := targetURL(route, c.Request.URL)

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, dest.String(), c.Request.Body)
	if err != nil {
		return apperror.Internal(err)
	}
	req.ContentLength = c.Request.ContentLength

	copyHeaders(req.Header, c.Request.Header)
	removeHopHeaders(req.Header)

	// 識別ヘッダーはGatewayが付与したもの以外信用しない
	middleware.StripIdentityHeaders(req.Header)
	if identity != nil {
		middleware.InjectIdentityHeaders(req.Header, *identity)
	}
	setForwardedHeaders(req, c)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("転送先との通信に失敗",
			slog.String("service", route.Service),
			slog.String("url", dest.String()),
			slog.Any("error", err),
		)
		return apperror.UpstreamUnavailable(err)
	}
	defer resp.Body.Close()

	removeHopHeaders(resp.Header)
	// CORSヘッダーはGatewayのCORSミドルウェアが付与した値のみを返す
	removeCORSHeaders(resp.Header)
	copyHeaders(c.Writer.Header(), resp.Header)
	c.Status(resp.StatusCode)
	// ボディが空の場合もNoRouteの既定レスポンスで上書きされないよう、ここでヘッダーを確定する
	c.Writer.WriteHeaderNow()

	if _, err := io.Copy(c.Writer, resp.Body); err != nil && !errors.Is(err, c.Request.Context().Err()) {
		// ステータスは送信済みのため、ログに残すのみ
		p.logger.Warn("レスポンスの転送に失敗",
			slog.String("service", route.Service),
			slog.Any("error", err),
		)
	}

	p.logger.Debug("転送完了",
		slog.String("service", route.Service),
		slog.String("url", dest.String()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// copyHeaders はsrcのヘッダーをdstに追加する。
func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

// removeHopHeaders はホップバイホップヘッダーとConnectionで指定されたヘッダーを削除する。
func removeHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// removeCORSHeaders は転送先が付与したAccess-Control-*ヘッダーを削除する。
func removeCORSHeaders(h http.Header) {
	for key := range h {
		if strings.HasPrefix(key, "Access-Control-") {
			h.Del(key)
		}
	}
}

// setForwardedHeaders は呼び出し元の情報をX-Forwarded-*ヘッダーとして付与する。
func setForwardedHeaders(req *http.Request, c *gin.Context) {
	if ip, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			ip = prior + ", " + ip
		}
		req.Header.Set("X-Forwarded-For", ip)
	}
	req.Header.Set("X-Forwarded-Host", c.Request.Host)
	proto := "http"
	if c.Request.TLS != nil {
		proto = "https"
	}
	req.Header.Set("X-Forwarded-Proto", proto)
}
