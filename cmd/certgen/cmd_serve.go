package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ceue-certificates/certgen/internal/auth"
	"ceue-certificates/certgen/internal/certificates"
	"ceue-certificates/certgen/internal/config"
	"ceue-certificates/certgen/pkg/docx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the certificate HTTP API",
	Long: `Starts the HTTP API on server.host:server.port.

  POST /api/v1/certificates/preview  derive values for one record
  POST /api/v1/certificates          render one record and return the PDF
  GET  /api/v1/certificates?card=N   list the issuances of a card number
  GET  /api/v1/runs/:id              list the issuances of a run

Requests to /api/v1 need a bearer token when security.jwt_secret is set
(see "certgen token").`,
	RunE: runServe,
}

// newRouter builds the gin engine with health check and API routes
func newRouter(c *config.Config, handler *certificates.Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(c.Security.JWTSecret, logger))
	{
		handler.RegisterRoutes(api)
	}
	return router
}

// requestLogger logs every request through zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("subject", auth.Subject(c)))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	tpl, err := docx.Open(cfg.Run.Template)
	if err != nil {
		return err
	}

	params := func() (certificates.RunParameters, error) {
		return cfg.RunParameters(time.Now())
	}
	if _, err := params(); err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	if cfg.Logging.Development {
		gin.SetMode(gin.DebugMode)
	}
	router := newRouter(cfg, certificates.NewHandler(a.service, tpl, params, logger), logger)

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Server exiting")
	return nil
}
