package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/auth"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/config"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/gateway"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/logging"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/metrics"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/onshape"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/orchestration"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/revstore"

	_ "github.com/hearthwood/cabinet-studio/cad-orchestrator/docs" // swagger docs
)

// @title Cabinet Studio CAD Orchestrator API
// @version 1.0
// @description Deterministic pipeline from design interview to parametric CAD regeneration.
// @description
// @description Drafted answers are normalized into immutable Design Intent Brief revisions,
// @description synthesized into validated parametric specifications, approved, and mapped to
// @description the Onshape variable contract for template regeneration.

// @contact.name API Support
// @contact.email support@hearthwood.studio

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8084
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Environment, cfg.LogLevel)

	if err := initTracer(); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracer")
	}

	logger.Info().Str("environment", cfg.Environment).Msg("connecting to PostgreSQL")
	var pool *pgxpool.Pool
	for i := 0; i < 10; i++ {
		pool, err = pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err == nil {
			err = pool.Ping(context.Background())
			if err == nil {
				break
			}
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("waiting for database")
		time.Sleep(3 * time.Second)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database after retries")
	}
	defer pool.Close()

	store, err := revstore.New(context.Background(), pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize revision store")
	}

	pipelineMetrics, err := metrics.NewPipelineMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	var tokens onshape.TokenSource
	if cfg.OnshapeTokenURL != "" {
		tokens = onshape.NewOAuthTokenSource(
			cfg.OnshapeTokenURL, cfg.OnshapeClientID, cfg.OnshapeClientSecret,
			cfg.OnshapeAccessToken, cfg.OnshapeRefreshToken,
		)
	} else {
		tokens = &onshape.StaticTokenSource{Token: cfg.OnshapeAccessToken}
	}
	onshapeClient := onshape.NewClient(cfg.OnshapeBaseURL, tokens)

	if !cfg.TemplateConfigured() {
		logger.Warn().Msg("Onshape template document not fully configured; regeneration will fail until it is")
	}
	template := orchestration.TemplateRef{
		DocumentID:  cfg.OnshapeDocumentID,
		WorkspaceID: cfg.OnshapeWorkspaceID,
		ElementID:   cfg.OnshapeElementID,
	}

	service := orchestration.NewService(store, onshapeClient, pipelineMetrics, template, logger)

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize JWT manager")
	}

	handler := gateway.NewHandler(service, jwtManager, pool, logger)
	streamer := gateway.NewRegenerationStreamer(service, jwtManager, logger, cfg.JobPollInterval)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  "database connection failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	api.POST("/auth/login", handler.Login)

	protected := api.Group("")
	protected.Use(auth.RequireAuth(jwtManager))

	protected.GET("/auth/me", handler.Me)
	protected.GET("/questions", handler.GetQuestions)

	protected.POST("/projects", handler.CreateProject)
	protected.GET("/projects/:id", handler.GetProject)
	protected.PUT("/projects/:id/draft", handler.SaveDraft)
	protected.GET("/projects/:id/draft", handler.GetDraft)
	protected.POST("/projects/:id/geometry", handler.RegisterGeometry)
	protected.POST("/projects/:id/brief/confirm", handler.ConfirmBrief)

	protected.POST("/projects/:id/specifications", handler.GenerateSpecification)
	protected.GET("/projects/:id/specifications/:rev", handler.GetSpecification)
	protected.GET("/projects/:id/specifications/:rev/variables", handler.GetVariables)
	protected.POST("/projects/:id/specifications/:rev/approve", handler.ApproveSpecification)
	protected.POST("/projects/:id/specifications/:rev/reject", handler.RejectSpecification)
	protected.POST("/projects/:id/specifications/:rev/regenerate", handler.RegenerateCAD)

	protected.GET("/ws/projects/:id/jobs/:job_id", streamer.StreamJob)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Port).Msg("starting CAD orchestrator API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}

// initTracer initializes OpenTelemetry tracing
func initTracer() error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	return nil
}
