package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	enrollmentdb "github.com/nao1215/learnhub/internal/enrollment/db"
	"github.com/nao1215/learnhub/pkg/apperror"
	"github.com/nao1215/learnhub/pkg/metrics"
	"github.com/nao1215/learnhub/pkg/middleware"
)

// serviceName はログとメトリクスに付与するサービス名。
const serviceName = "enrollment"

// Server は受講登録サービスのHTTPサーバー。
// Gatewayの背後に配置され、Gatewayが付与した識別ヘッダーで呼び出し元を判断する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は起動時に読み込んだ設定。
	cfg Config
	// db はSQLiteデータベース接続。
	db *sql.DB
	// queries はクエリ実行オブジェクト。
	queries *enrollmentdb.Queries
	// orchestrator は受講登録の処理を担当する。
	orchestrator *Orchestrator
	// registry はPrometheusメトリクスのレジストリ。
	registry *metrics.Registry
	// logger は構造化ロガー。
	logger *slog.Logger
}

// NewServer は新しい受講登録サーバーを生成する。
// SQLiteデータベースの初期化とマイグレーションを行う。
func NewServer(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	gateway := NewGatewayClient(cfg.GatewayURL)
	return NewServerWithCollaborators(ctx, cfg, logger, gateway, gateway)
}

// NewServerWithCollaborators は連携先を指定して受講登録サーバーを生成する。
func NewServerWithCollaborators(ctx context.Context, cfg Config, logger *slog.Logger, directory Directory, notifier Notifier) (*Server, error) {
	sqlDB, err := openDB(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}

	queries := enrollmentdb.New(sqlDB)
	s := &Server{
		router:       gin.New(),
		cfg:          cfg,
		db:           sqlDB,
		queries:      queries,
		orchestrator: NewOrchestrator(queries, directory, notifier, cfg.CollaboratorTimeout, cfg.NotificationTimeout, logger),
		registry:     metrics.New(serviceName),
		logger:       logger,
	}
	s.setupRoutes()
	return s, nil
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close は送信中の通知の依頼を待ってからデータベース接続を閉じる。
func (s *Server) Close() error {
	s.orchestrator.Wait()
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
		s.logger.Info("受講登録サービスを起動します", slog.String("port", s.cfg.Port))
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

	s.logger.Info("受講登録サービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(srv.Shutdown(shutdownCtx), s.Close())
}

// setupRoutes はAPIルーティングを設定する。
// Gatewayが/api/enrollmentsを除去して転送するため、ルートはサービスのルートからの相対パスになる。
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
		// 自分の受講登録一覧
		api.GET("/my-enrollments", s.handleMyEnrollments())
		// コースの受講者一覧（講師・管理者のみ）
		api.GET("/course-roster/:courseId", middleware.RequireRole(debug, "instructor", "admin"), s.handleCourseRoster())
		// 受講中かどうかの確認（他サービスからの問い合わせ用）
		api.GET("/check", s.handleCheck())
		// コースへの登録
		api.POST("/:courseId", s.handleEnroll())
	}

	s.router.NoRoute(func(c *gin.Context) {
		apperror.Abort(c, apperror.RouteNotFound(), debug)
	})
}

// enrollResponse は受講登録成功時のレスポンス。
type enrollResponse struct {
	Message    string                  `json:"message"`
	Enrollment enrollmentdb.Enrollment `json:"enrollment"`
}

// handleEnroll はコースへの受講登録を行うハンドラを返す。
func (s *Server) handleEnroll() gin.HandlerFunc {
	debug := s.cfg.Debug()

	return func(c *gin.Context) {
		identity, ok := middleware.GetIdentity(c)
		credential := c.GetHeader("Authorization")
		if !ok || credential == "" {
			apperror.Abort(c, apperror.MissingCredential().WithDetail("X-User-IdヘッダーまたはAuthorizationヘッダーがありません"), debug)
			return
		}

		enrollment, err := s.orchestrator.Enroll(c.Request.Context(), EnrollRequest{
			UserID:     identity.UserID,
			CourseID:   c.Param("courseId"),
			Credential: credential,
			RequestID:  c.GetHeader(middleware.HeaderRequestID),
		})
		if err != nil {
			apperror.Abort(c, err, debug)
			return
		}

		c.JSON(http.StatusCreated, enrollResponse{
			Message:    "コースへの登録が完了しました",
			Enrollment: enrollment,
		})
	}
}

// handleMyEnrollments は呼び出し元の受講登録一覧を返すハンドラを返す。
func (s *Server) handleMyEnrollments() gin.HandlerFunc {
	debug := s.cfg.Debug()

	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			apperror.Abort(c, apperror.MissingCredential().WithDetail("X-User-Idヘッダーがありません"), debug)
			return
		}

		enrollments, err := s.queries.ListEnrollmentsByUser(c.Request.Context(), userID)
		if err != nil {
			apperror.Abort(c, fmt.Errorf("受講登録一覧の取得に失敗: %w", err), debug)
			return
		}
		c.JSON(http.StatusOK, enrollments)
	}
}

// handleCourseRoster はコースの受講者一覧を返すハンドラを返す。
func (s *Server) handleCourseRoster() gin.HandlerFunc {
	debug := s.cfg.Debug()

	return func(c *gin.Context) {
		roster, err := s.queries.ListCourseRoster(c.Request.Context(), c.Param("courseId"))
		if err != nil {
			apperror.Abort(c, fmt.Errorf("受講者一覧の取得に失敗: %w", err), debug)
			return
		}
		c.JSON(http.StatusOK, roster)
	}
}

// handleCheck はユーザーがコースを受講中かどうかを返すハンドラを返す。
// ユーザーIDはGatewayが付与したヘッダーを優先し、無い場合はクエリパラメータuser_idを使う。
func (s *Server) handleCheck() gin.HandlerFunc {
	debug := s.cfg.Debug()

	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			userID = c.Query("user_id")
		}
		courseID := c.Query("courseId")
		if userID == "" || courseID == "" {
			apperror.Abort(c, apperror.BadRequest("user_idとcourseIdが必要です"), debug)
			return
		}

		enrollment, err := s.queries.GetActiveEnrollment(c.Request.Context(), enrollmentdb.GetActiveEnrollmentParams{
			UserID:   userID,
			CourseID: courseID,
		})
		if errors.Is(err, sql.ErrNoRows) {
			apperror.Abort(c, apperror.NotFound("このコースを受講していません"), debug)
			return
		}
		if err != nil {
			apperror.Abort(c, fmt.Errorf("受講状態の確認に失敗: %w", err), debug)
			return
		}
		c.JSON(http.StatusOK, enrollment)
	}
}
