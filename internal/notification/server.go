package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	notificationdb "github.com/nao1215/learnhub/internal/notification/db"
	"github.com/nao1215/learnhub/pkg/apperror"
	"github.com/nao1215/learnhub/pkg/event"
	"github.com/nao1215/learnhub/pkg/metrics"
	"github.com/nao1215/learnhub/pkg/middleware"
)

// serviceName はログとメトリクスに付与するサービス名。
const serviceName = "notification"

// recentLimit は通知一覧で返す最大件数。
const recentLimit = 20

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は起動時に読み込んだ設定。
	cfg Config
	// db はSQLiteデータベース接続。
	db *sql.DB
	// queries はクエリ実行オブジェクト。
	queries *notificationdb.Queries
	// dispatcher は配信を担当する。
	dispatcher *Dispatcher
	// registry はPrometheusメトリクスのレジストリ。
	registry *metrics.Registry
	// logger は構造化ロガー。
	logger *slog.Logger
	// now は現在時刻を返す。
	now func() time.Time
}

// NewServer は新しい通知サーバーを生成する。
// SMTP_HOSTが設定されている場合はSMTPで、そうでない場合はログ出力で配信する。
func NewServer(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	var deliverer Deliverer = NewLogDeliverer(logger)
	if cfg.SMTP.Host != "" {
		deliverer = NewSMTPDeliverer(cfg.SMTP)
	}
	return NewServerWithDependencies(ctx, cfg, logger, NewGatewayContacts(cfg.GatewayURL), deliverer)
}

// NewServerWithDependencies は宛先の解決と配信の実装を指定して通知サーバーを生成する。
func NewServerWithDependencies(ctx context.Context, cfg Config, logger *slog.Logger, contacts ContactResolver, deliverer Deliverer) (*Server, error) {
	sqlDB, err := openDB(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}

	queries := notificationdb.New(sqlDB)
	s := &Server{
		router:     gin.New(),
		cfg:        cfg,
		db:         sqlDB,
		queries:    queries,
		dispatcher: NewDispatcher(queries, contacts, deliverer, cfg.ContactTimeout, cfg.DeliveryTimeout, logger),
		registry:   metrics.New(serviceName),
		logger:     logger,
		now:        time.Now,
	}
	s.setupRoutes()
	return s, nil
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close は配信中の記録が終了状態になるのを待ってからデータベース接続を閉じる。
func (s *Server) Close() error {
	s.dispatcher.Wait()
	return s.db.Close()
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("通知サービスを起動します", slog.String("port", s.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return s.Close()
		}
		return errors.Join(err, s.Close())
	case <-ctx.Done():
	}

	s.logger.Info("通知サービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(srv.Shutdown(shutdownCtx), s.Close())
}

// setupRoutes はAPIルーティングを設定する。
// Gatewayが/api/notificationsを除去して転送するため、ルートはサービスのルートからの相対パスになる。
func (s *Server) setupRoutes() {
	debug := s.cfg.Debug()

	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.Recovery(s.logger, debug))
	s.router.Use(s.registry.Middleware())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})
	s.router.GET("/metrics", gin.WrapH(s.registry.Handler()))

	api := s.router.Group("/")
	api.Use(middleware.GatewayIdentity())
	{
		// 通知の依頼の受付
		api.POST("/", s.handleCreate())
		// 自分宛ての通知一覧
		api.GET("/my-notifications", s.handleMyNotifications())
		// 通知の配信状態
		api.GET("/:id", s.handleGetByID())
	}

	s.router.NoRoute(func(c *gin.Context) {
		apperror.Abort(c, apperror.RouteNotFound(), debug)
	})
}

// createResponse は通知の依頼を受け付けた際のレスポンス。
type createResponse struct {
	Message string                         `json:"message"`
	Log     notificationdb.NotificationLog `json:"log"`
}

// handleCreate は通知の依頼を処理中として記録し、配信を開始するハンドラを返す。
// 配信の完了は待たずに201を返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	debug := s.cfg.Debug()

	return func(c *gin.Context) {
		var intent event.NotificationIntent
		if err := c.ShouldBindJSON(&intent); err != nil {
			apperror.Abort(c, apperror.BadRequest("リクエストが不正です").WithDetail(err.Error()), debug)
			return
		}
		intent = intent.Normalize()
		if err := intent.Validate(); err != nil {
			apperror.Abort(c, apperror.BadRequest(err.Error()), debug)
			return
		}

		now := s.now().UTC()
		entry := notificationdb.NotificationLog{
			ID:        uuid.New().String(),
			UserID:    intent.UserID,
			Message:   intent.Message,
			Type:      string(intent.Type),
			Status:    notificationdb.StatusProcessing,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.queries.CreateNotificationLog(c.Request.Context(), notificationdb.CreateNotificationLogParams{
			ID:        entry.ID,
			UserID:    entry.UserID,
			Message:   entry.Message,
			Type:      entry.Type,
			CreatedAt: now,
		}); err != nil {
			apperror.Abort(c, fmt.Errorf("配信記録の作成に失敗: %w", err), debug)
			return
		}

		c.JSON(http.StatusCreated, createResponse{
			Message: "通知を受け付けました",
			Log:     entry,
		})

		s.dispatcher.Dispatch(entry, c.GetHeader("Authorization"), c.GetHeader(middleware.HeaderRequestID))
	}
}

// handleMyNotifications は呼び出し元宛ての通知を新しい順に返すハンドラを返す。
func (s *Server) handleMyNotifications() gin.HandlerFunc {
	debug := s.cfg.Debug()

	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			apperror.Abort(c, apperror.MissingCredential().WithDetail("X-User-Idヘッダーがありません"), debug)
			return
		}

		logs, err := s.queries.ListNotificationLogsByUser(c.Request.Context(), notificationdb.ListNotificationLogsByUserParams{
			UserID: userID,
			Limit:  recentLimit,
		})
		if err != nil {
			apperror.Abort(c, fmt.Errorf("通知一覧の取得に失敗: %w", err), debug)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}

// handleGetByID は通知の配信状態を返すハンドラを返す。宛先のユーザー本人のみ参照できる。
func (s *Server) handleGetByID() gin.HandlerFunc {
	debug := s.cfg.Debug()

	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			apperror.Abort(c, apperror.MissingCredential().WithDetail("X-User-Idヘッダーがありません"), debug)
			return
		}

		entry, err := s.queries.GetNotificationLog(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			apperror.Abort(c, apperror.NotFound("通知が見つかりません"), debug)
			return
		}
		if err != nil {
			apperror.Abort(c, fmt.Errorf("通知の取得に失敗: %w", err), debug)
			return
		}
		if entry.UserID != userID {
			apperror.Abort(c, apperror.Forbidden("この通知を参照する権限がありません"), debug)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}
