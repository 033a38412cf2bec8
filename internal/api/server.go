// Package api exposes the import pipeline over HTTP for the review UI.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/stmtimport/internal/importer"
	"github.com/cleared-dev/stmtimport/internal/review"
)

// MaxUploadBytes caps the size of an uploaded statement.
const MaxUploadBytes = 10 << 20

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	// Root, when set, is the project directory whose logs/import-log.csv records each run.
	Root string
}

// Server holds the handlers' dependencies.
type Server struct {
	registry *importer.Registry
	pipeline *review.Pipeline
	sink     review.Sink
	opts     Options
	log      zerolog.Logger
}

// NewServer creates a Server.
func NewServer(registry *importer.Registry, pipeline *review.Pipeline, sink review.Sink, log zerolog.Logger, opts Options) *Server {
	return &Server{registry: registry, pipeline: pipeline, sink: sink, opts: opts, log: log}
}

// Handler builds the gin engine with middleware and routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.MaxMultipartMemory = MaxUploadBytes
	r.Use(gin.Recovery(), requestLogger(s.log))
	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  s.opts.AllowedOrigins,
			AllowMethods:  []string{"GET", "POST"},
			AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
			ExposeHeaders: []string{"Content-Length", requestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}
	s.registerRoutes(r)
	return r
}

func (s *Server) registerRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/health", s.health)

	files := api.Group("/files")
	files.POST("/analyze", s.analyzeFile)

	api.GET("/categories", s.listCategories)

	mappings := api.Group("/mappings")
	mappings.POST("/suggest", s.suggestMappings)

	tx := api.Group("/transactions")
	tx.POST("/prepare", s.prepareTransactions)
	tx.POST("/import", s.importTransactions)
}

// ListenAndServe serves Handler on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("addr", addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info().Msg("api shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
