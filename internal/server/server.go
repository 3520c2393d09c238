// Package server exposes the decoder over HTTP for tooling: generic decode
// with JSON or msgpack output, metainfo summaries and info-hash computation.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/torrentctl/internal/auth"
	"github.com/danmuck/torrentctl/internal/config"
	"github.com/danmuck/torrentctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

type Server struct {
	cfg      config.ServerConfig
	decode   config.DecodeConfig
	router   *gin.Engine
	appeared time.Time
}

// New builds the engine and registers every route.
func New(cfg config.Config) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, "/health", "/ready", "/metrics"))
	r.Use(observability.RequestMetrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.Server.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg.Server,
		decode:   cfg.Decode,
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve listens on the configured address until ctx is cancelled, then
// drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("inspection server listening")
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("inspection server stopped")
	return nil
}

func (s *Server) protected() gin.IRoutes {
	if strings.TrimSpace(s.cfg.AuthToken) == "" {
		return s.router
	}
	return s.router.Group("/", auth.Middleware(auth.StaticToken{Token: s.cfg.AuthToken}))
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
