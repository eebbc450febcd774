package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// DefaultStartupTimeout bounds how long Start waits for the server to answer.
const DefaultStartupTimeout = 120 * time.Second

// shutdownTimeout bounds a graceful shutdown.
const shutdownTimeout = 10 * time.Second

// probeInterval is the delay between readiness probes.
const probeInterval = 100 * time.Millisecond

var (
	// ErrNotDirectory is returned when the served path is not a directory.
	ErrNotDirectory = errors.New("serve root is not a directory")

	// ErrStartupTimeout is returned when the server does not answer in time.
	ErrStartupTimeout = errors.New("server did not become ready in time")
)

// Server serves a directory on the host and port of a base URL.
type Server struct {
	dir            string
	base           *url.URL
	addr           string
	logger         *slog.Logger
	startupTimeout time.Duration
	probe          *http.Client

	httpServer *http.Server
	group      *errgroup.Group
	cancel     context.CancelFunc
	reused     bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request and lifecycle logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStartupTimeout sets how long Start waits for the server to answer.
func WithStartupTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.startupTimeout = d
		}
	}
}

// New creates a Server for dir listening on the address of base.
func New(dir string, base *url.URL, opts ...Option) *Server {
	s := &Server{
		dir:            dir,
		base:           base,
		addr:           hostPort(base),
		logger:         slog.Default(),
		startupTimeout: DefaultStartupTimeout,
		probe:          &http.Client{Timeout: time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// hostPort returns the listen address of a base URL, defaulting the port
// from the scheme.
func hostPort(base *url.URL) string {
	port := base.Port()
	if port == "" {
		port = "80"
		if base.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(base.Hostname(), port)
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

// Reused reports whether Start found a server already answering.
func (s *Server) Reused() bool {
	return s.reused
}

// Start serves the directory unless the address already answers, and
// waits until the server responds. The server stops when ctx is cancelled
// or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.answering(ctx) {
		s.reused = true
		s.logger.InfoContext(ctx, "reusing existing server", "url", s.base.String())
		return nil
	}

	if err := checkDir(s.dir); err != nil {
		return err
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	s.group = group

	group.Go(func() error {
		s.logger.InfoContext(groupCtx, "serving output directory", "dir", s.dir, "addr", s.addr)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		s.logger.Debug("server stopped", "addr", s.addr)
		return nil
	})
	context.AfterFunc(ctx, cancel)

	if err := s.waitReady(ctx); err != nil {
		_ = s.Stop() //nolint:errcheck // the readiness error is more useful
		return err
	}
	return nil
}

// Stop shuts the server down and waits for it to exit.
// It is a no-op for a reused or never started server.
func (s *Server) Stop() error {
	if s.reused || s.group == nil {
		return nil
	}
	s.cancel()
	return s.group.Wait()
}

// checkDir verifies that dir exists and is a directory.
func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to open serve root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	return nil
}

// router builds the gin engine serving the directory.
func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(s.logger))
	engine.Use(static.Serve("/", static.LocalFile(s.dir, true)))
	engine.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "404 page not found")
	})
	return engine
}

// loggingMiddleware logs every request at debug level.
func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// answering reports whether anything responds to HTTP on the base URL.
func (s *Server) answering(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base.String(), nil)
	if err != nil {
		return false
	}
	resp, err := s.probe.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// waitReady polls the base URL until it answers or the startup timeout ends.
func (s *Server) waitReady(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.startupTimeout)
	defer cancel()

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		if s.answering(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w: %s after %s", ErrStartupTimeout, s.base, s.startupTimeout)
		case <-ticker.C:
		}
	}
}
