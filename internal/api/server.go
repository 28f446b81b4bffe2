// Package api serves the boundary operations over HTTP with gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/dshills/spotvec/internal/service"
)

const (
	// AuthRequests and RefreshRequests are allowed per client per AuthWindow
	// on the token routes.
	AuthRequests    = 10
	RefreshRequests = 20
	AuthWindow      = 15 * time.Minute

	shutdownTimeout = 10 * time.Second
)

// Options configures the HTTP server.
type Options struct {
	// Sentry attaches the sentry middleware. sentry.Init must have run.
	Sentry bool
	Port   string
}

// Server is the HTTP boundary.
type Server struct {
	svc    *service.Service
	router *gin.Engine
	port   string
}

// New creates the server and registers its routes.
func New(svc *service.Service, opts Options) *Server {
	quietGin()
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	if opts.Sentry {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	s := &Server{svc: svc, router: router, port: opts.Port}
	s.routes(newLimiter(AuthRequests, AuthWindow), newLimiter(RefreshRequests, AuthWindow))
	return s
}

// quietGin keeps gin off stdout, which carries the MCP stream. Debug mode
// stays available through GIN_MODE, still written to stderr.
func quietGin() {
	if os.Getenv(gin.EnvGinMode) == "" && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = os.Stderr
	gin.DefaultErrorWriter = os.Stderr
}

func (s *Server) routes(authLimit, refreshLimit *limiter) {
	r := s.router

	r.GET("/auth/spotify", s.handleAuthorize)
	r.POST("/api/spotify/auth", authLimit.middleware(), s.handleExchange)
	r.POST("/api/spotify/refresh", refreshLimit.middleware(), s.handleRefresh)
	r.GET("/api/test/token", s.handleTestToken)
	r.GET("/api/playlists", s.handleUserPlaylists)

	r.POST("/api/store/init", s.handleInitStore)
	r.POST("/api/playlist/process", s.handleProcessPlaylist)
	r.POST("/api/playlist/generate", s.handleGeneratePlaylist)
	r.POST("/api/playlists/search", s.handleSearchPlaylists)
	r.GET("/api/playlists/mood/:mood", s.handlePlaylistsByMood)

	r.POST("/api/songs/search", s.handleSearchSongs)
	r.POST("/api/songs/advanced-search", s.handleAdvancedSearch)
	r.GET("/api/songs/:id/similar", s.handleSimilarSongs)

	r.GET("/api/store/health", s.handleStoreHealth)
	r.GET("/api/health", s.handleHealth)
	r.GET("/api/debug/env", s.handleDebugEnv)
	r.GET("/api/status", s.handleStatus)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"component": "api", "addr": addr}).Info("HTTP server listening")
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
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"component": "api",
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"duration":  time.Since(start).Round(time.Millisecond),
		}).Debug("Request handled")
	}
}
