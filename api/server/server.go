package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kevinfinalboss/VoidMod/api/routes"
	"github.com/kevinfinalboss/VoidMod/config"
	"github.com/kevinfinalboss/VoidMod/internal/logger"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	router *gin.Engine
	addr   string
	logger *logger.Logger
}

func NewServer(cfg *config.Config, l *logger.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(l))

	return &Server{
		router: router,
		addr:   cfg.HTTP.Address,
		logger: l.Named("http"),
	}
}

func (s *Server) SetupRoutes(deps routes.Deps) {
	if deps.Logger == nil {
		deps.Logger = s.logger
	}
	routes.SetupRoutes(s.router, deps)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled and then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.addr))
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func requestLogger(l *logger.Logger) gin.HandlerFunc {
	log := l.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
