package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/learnhub/pkg/apperror"
	"github.com/nao1215/learnhub/pkg/metrics"
	"github.com/nao1215/learnhub/pkg/middleware"
)

// serviceName はログとメトリクスに付与するサービス名。
const serviceName = "gateway"

// Server はAPI GatewayのHTTPサーバー。
// 状態を持たず、ルートテーブルに従ってリクエストを内部サービスへ転送する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は起動時に読み込んだ設定。
	cfg Config
	// routes は起動時に構築される不変のルートテーブル。
	routes *RouteTable
	// verifier はBearerトークンの検証器。
	verifier *middleware.Verifier
	// proxy は内部サービスへの転送を担当する。
	proxy *Proxy
	// registry はPrometheusメトリクスのレジストリ。
	registry *metrics.Registry
	// metrics はルーティング結果のメトリクス。
	metrics *gatewayMetrics
	// limiter はクライアントIPごとのレート制限。無効な場合はnil。
	limiter *middleware.RateLimiter
	// logger は構造化ロガー。
	logger *slog.Logger
}

// NewServer は設定から新しいGatewayサーバーを生成する。
func NewServer(cfg Config, logger *slog.Logger) (*Server, error) {
	defs, err := DefaultRoutes(cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithRoutes(cfg, logger, defs...)
}

// NewServerWithRoutes は任意のルート定義でGatewayサーバーを生成する。
func NewServerWithRoutes(cfg Config, logger *slog.Logger, defs ...Route) (*Server, error) {
	routes, err := NewRouteTable(defs...)
	if err != nil {
		return nil, fmt.Errorf("ルートテーブルの構築に失敗: %w", err)
	}

	router := gin.New()
	// レート制限のキーに使うクライアントIPを偽装されないよう、信用する前段プロキシを限定する
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("信用するプロキシの設定に失敗: %w", err)
	}

	registry := metrics.New(serviceName)
	s := &Server{
		router:   router,
		cfg:      cfg,
		routes:   routes,
		verifier: middleware.NewVerifier(cfg.JWTSecret),
		proxy:    NewProxy(cfg.UpstreamTimeout, logger),
		registry: registry,
		metrics:  newGatewayMetrics(registry),
		logger:   logger,
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	s.setupRoutes()
	return s, nil
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.limiter != nil {
		go s.cleanupLimiter(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Gatewayサービスを起動します",
			slog.String("port", s.cfg.Port),
			slog.Any("services", s.routes.Services()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Gatewayサービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// cleanupLimiter は定期的に古いレート制限エントリを破棄する。
func (s *Server) cleanupLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Cleanup()
		}
	}
}

// setupRoutes はミドルウェアとルーティングを設定する。
func (s *Server) setupRoutes() {
	debug := s.cfg.Debug()

	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.Recovery(s.logger, debug))
	s.router.Use(s.registry.Middleware())
	s.router.Use(middleware.CORS(s.cfg.CORSOrigins))
	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware(debug))
	}

	s.router.GET("/health", s.handleHealth())
	s.router.GET("/metrics", gin.WrapH(s.registry.Handler()))

	// ルートテーブルによる転送は、他のどのルートにも一致しなかった場合に評価される
	s.router.NoRoute(s.handleRoute())
}

// handleHealth はヘルスチェックのハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   serviceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"services":  s.routes.Services(),
		})
	}
}

// handleRoute はルートテーブルに従ってリクエストを転送するハンドラを返す。
// 処理順序は ルート照合 → トークン検証 → 転送 で、途中で失敗した場合は転送先に一切到達しない。
func (s *Server) handleRoute() gin.HandlerFunc {
	debug := s.cfg.Debug()

	return func(c *gin.Context) {
		path := c.Request.URL.Path

		route, ok := s.routes.Match(path)
		if !ok {
			s.metrics.observe("unmatched", outcomeNoRoute, string(apperror.CodeRouteNotFound))
			apperror.Abort(c, apperror.RouteNotFound(), debug)
			return
		}

		var identity *middleware.Identity
		if !route.Public {
			id, err := s.verifier.VerifyHeader(c.GetHeader("Authorization"))
			if err != nil {
				s.metrics.observe(route.Prefix, outcomeRejected, string(apperror.From(err).Code))
				apperror.Abort(c, err, debug)
				return
			}
			middleware.SetIdentity(c, id)
			identity = &id
		}

		start := time.Now()
		err := s.proxy.Forward(c, route, identity)
		s.metrics.observeUpstream(route.Service, start)
		if err != nil {
			s.metrics.observe(route.Prefix, outcomeUnavailable, string(apperror.From(err).Code))
			apperror.Abort(c, err, debug)
			return
		}
		s.metrics.observe(route.Prefix, outcomeForwarded, "")
	}
}
