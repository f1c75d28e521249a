// Package httpapi is the HTTP/WebSocket control plane: a separate
// transport component that reaches the Device Lifecycle Controller through
// its accessors (reading state, and writing adapter settings and device
// records through the stores they return), or drives it through the same
// public operations (Pair, Connect, Scan, ...) any other caller would use
// (§6).
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/btorch/btaudiod/internal/orchestrator"
	"github.com/charmbracelet/log"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 0 // the streaming /api/ws connection needs no deadline
	idleTimeout  = 120 * time.Second
)

// Server owns the HTTP listener for the control plane.
type Server struct {
	ctrl *orchestrator.Controller
	log  *log.Logger
	http *http.Server

	// requestShutdown is invoked by handleRestart to ask the owning process
	// to exit; nil in a context where no restart supervisor exists (e.g.
	// tests), in which case /api/restart reports 501.
	requestShutdown func()
}

// NewServer builds a Server bound to listenAddr, wiring every §6 route.
// requestShutdown may be nil.
func NewServer(ctrl *orchestrator.Controller, logger *log.Logger, listenAddr string, requestShutdown func()) *Server {
	s := &Server{
		ctrl:            ctrl,
		log:             logger.With("component", "httpapi"),
		requestShutdown: requestShutdown,
	}
	s.http = &http.Server{
		Addr:         listenAddr,
		Handler:      s.newRouter(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Start begins serving in a background goroutine and returns immediately.
// Bind failures are reported to errc exactly once.
func (s *Server) Start(errc chan<- error) {
	go func() {
		s.log.Info("http listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
}

// Shutdown gracefully drains in-flight requests and open WebSocket
// connections, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
