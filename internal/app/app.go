package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	deepguard "github.com/YannKr/deepguard"
	"github.com/YannKr/deepguard/internal/analyzer"
	"github.com/YannKr/deepguard/internal/cleanup"
	"github.com/YannKr/deepguard/internal/config"
	"github.com/YannKr/deepguard/internal/handler"
	"github.com/YannKr/deepguard/internal/media"
	"github.com/YannKr/deepguard/internal/progress"
	"github.com/YannKr/deepguard/internal/session"
	"github.com/YannKr/deepguard/internal/sse"
)

// Server is the assembled application, ready to serve.
type Server struct {
	Router   http.Handler
	Sessions *session.Registry
	Input    *media.Input
	Cleaner  *cleanup.Cleaner

	selectRL *handler.RateLimiter
}

// Build wires the application from cfg without starting background work.
func Build(cfg *config.Config) (*Server, error) {
	uploadDir := filepath.Join(cfg.DataDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, err
	}

	input, err := media.NewInput(uploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	input.InlineMax = cfg.MaxInlinePreviewBytes

	an, err := analyzer.New(cfg.Analyzer, cfg.AnalysisLatency, cfg.RandomSeed)
	if err != nil {
		return nil, err
	}
	slog.Info("analyzer ready", "kind", cfg.Analyzer, "latency", cfg.AnalysisLatency)

	// Create SSE hub for real-time updates
	sseHub := sse.New()

	progressCfg := progress.Config{
		Duration: cfg.ProgressDuration,
		Tick:     cfg.ProgressTick,
		Grace:    cfg.ProgressGrace,
	}
	sessions, err := session.NewRegistry(cfg.MaxSessions, func(id string) *session.Controller {
		return session.New(id, session.Deps{
			Input:    input,
			Analyzer: an,
			Progress: progressCfg,
			Listener: handler.Publisher(sseHub, id),
		})
	})
	if err != nil {
		return nil, err
	}

	templateFS, err := fs.Sub(deepguard.TemplateFS, "templates")
	if err != nil {
		return nil, err
	}
	staticFS, err := fs.Sub(deepguard.StaticFS, "static")
	if err != nil {
		return nil, err
	}

	selectRL := handler.PerMinute(cfg.SelectRatePerMin)

	h := handler.New(cfg, templateFS, sessions, input, sseHub)

	return &Server{
		Router:   h.Routes(staticFS, selectRL),
		Sessions: sessions,
		Input:    input,
		Cleaner: &cleanup.Cleaner{
			Dir:      uploadDir,
			TTL:      cfg.UploadTTL,
			Interval: cfg.CleanupInterval,
			Live:     input.Live,
		},
		selectRL: selectRL,
	}, nil
}

// Close stops background work and releases every session's media.
func (s *Server) Close() {
	s.selectRL.Stop()
	s.Sessions.Close()
}

func Run(ctx context.Context, cfg *config.Config) error {
	s, err := Build(cfg)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer s.Close()

	s.Cleaner.Start(ctx)
	defer s.Cleaner.Stop()

	// Request contexts derive from ctx so event streams end on shutdown.
	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     s.Router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		slog.Info("shutting down server")
		srv.Shutdown(context.Background())
	}()

	slog.Info("server starting", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
