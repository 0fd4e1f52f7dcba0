// Package server serves a data directory next to the viewer's static assets:
// /data/* maps into the data directory and every other path into the asset
// directory, with index.html at the root.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"falcomplot/internal/metrics"
)

// ErrNoDataDir is returned when the data directory does not exist.
var ErrNoDataDir = errors.New("data directory not found")

// Server is the static file server.
type Server struct {
	dataDir   string
	assetsDir string
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithAssetsDir sets the directory holding index.html and its assets.
func WithAssetsDir(dir string) Option {
	return func(s *Server) { s.assetsDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.Named("server")
		}
	}
}

// WithMetrics exposes m at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New checks dataDir and builds a server.
func New(dataDir string, opts ...Option) (*Server, error) {
	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoDataDir, dataDir)
	}
	s := &Server{dataDir: dataDir, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routing handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/data/", http.StripPrefix("/data/", http.FileServer(http.Dir(s.dataDir))))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	if s.assetsDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.assetsDir)))
	} else {
		mux.HandleFunc("/", s.handleIndex)
	}

	return s.logRequests(mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>falcomplot</title></head>
<body style="font-family: system-ui; background: #1e1e1e; color: #eee; padding: 2rem;">
    <h1>falcomplot</h1>
    <p><strong>Data:</strong> <a href="/data/" style="color: #00e676;">/data/</a></p>
    <p>Configure an assets directory to serve the browser viewer.</p>
</body>
</html>`)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	s.logger.Info("serving",
		zap.String("url", "http://"+ln.Addr().String()),
		zap.String("data", s.dataDir),
		zap.String("assets", s.assetsDir))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}
