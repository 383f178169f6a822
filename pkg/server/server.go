// Package server streams the connection log over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/irctrakz/netlog/pkg/logging"
	"github.com/irctrakz/netlog/pkg/netlog"
	"github.com/irctrakz/netlog/pkg/ring"
)

const (
	// DefaultLogPath is where the line stream is served.
	DefaultLogPath = "/log"

	// DefaultMaxLine bounds a single streamed line.
	DefaultMaxLine = 4096

	overrunLine = "# overrun\n"
)

// Options configures a Server.
type Options struct {
	LogPath string
	MaxLine int

	// Gatherer backs /metrics. Nil leaves /metrics unregistered.
	Gatherer prometheus.Gatherer
}

type Server struct {
	dev  *netlog.Device
	opts Options
	mux  *http.ServeMux
	srv  *http.Server
}

// New builds the HTTP handler for dev.
func New(dev *netlog.Device, opts Options) *Server {
	if opts.LogPath == "" {
		opts.LogPath = DefaultLogPath
	}
	if opts.MaxLine <= 0 {
		opts.MaxLine = DefaultMaxLine
	}
	mux := http.NewServeMux()
	s := &Server{dev: dev, opts: opts, mux: mux}
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	mux.HandleFunc("GET "+opts.LogPath, s.handleLog)
	mux.HandleFunc("GET /health", s.handleHealth)
	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	// Open streams only end when their request context does.
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	logging.Infof("HTTP server listening on %s", l.Addr())
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	m := s.dev.Store().Metrics()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"first_seq": m.FirstSeq,
		"next_seq":  m.NextSeq,
		"readers":   s.dev.Metrics().OpenHandles,
	})
}

// handleLog streams formatted lines until the client goes away. from=start
// replays every stored record, from=end only new ones; without it the
// handle follows the device's first-reader rule.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	whence := -1
	switch from := r.URL.Query().Get("from"); from {
	case "":
	case "start":
		whence = io.SeekStart
	case "end":
		whence = io.SeekEnd
	default:
		http.Error(w, "from must be start or end", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := s.dev.Open(0)
	defer s.dev.Close(h)
	if whence >= 0 {
		if err := s.dev.Seek(h, 0, whence); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	log := logging.WithFields(logrus.Fields{"handle": uint64(h), "remote": r.RemoteAddr})
	log.Debug("Log stream started")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		_, err := s.dev.ReadTo(ctx, h, w, s.opts.MaxLine)
		switch {
		case err == nil:
		case errors.Is(err, ring.ErrOverrun):
			if _, err := io.WriteString(w, overrunLine); err != nil {
				return
			}
		case errors.Is(err, ring.ErrLineTooLarge):
			log.Warnf("Skipped line: %v", err)
			continue
		case errors.Is(err, ring.ErrInterrupted):
			log.Debug("Log stream ended")
			return
		default:
			log.Debugf("Log stream failed: %v", err)
			return
		}
		flusher.Flush()
	}
}
