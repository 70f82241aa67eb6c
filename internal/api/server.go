// Package api is the REST surface a node exposes alongside the mesh:
// listing/creating/deleting channels, reading and publishing chat
// messages, status, and the voice-signal relay endpoints. Built on
// net/http.ServeMux with a timed http.Server. Channel create/delete
// mutate the shared channel directory directly; published messages,
// voice signals and channel broadcasts go through the bridge to the
// mesh engine.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gridspeak/node/pkg/bus"
	"github.com/gridspeak/node/pkg/channels"
	"github.com/gridspeak/node/pkg/logger"
	"github.com/gridspeak/node/pkg/telemetry"
	"github.com/gridspeak/node/pkg/voicering"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 15 * time.Second
	idleTimeout  = 60 * time.Second

	// submitTimeout bounds how long an HTTP handler waits for the bridge
	// to accept a command or voice signal before reporting failure.
	submitTimeout = 2 * time.Second
)

// Server is the node's REST API, reading and writing through the same
// collaborators the mesh engine's select loop uses.
type Server struct {
	srv *http.Server

	directory      *channels.Directory
	bridge         *bus.Bridge
	telemetry      *telemetry.Telemetry
	voice          *voicering.Ring
	peerID         string
	fallbackAuthor string
}

// New builds the API server bound to addr. If addr is empty the caller
// should not invoke Start; the API surface is optional.
func New(addr string, directory *channels.Directory, bridge *bus.Bridge, tel *telemetry.Telemetry, voice *voicering.Ring, peerID, fallbackAuthor string) *Server {
	s := &Server{
		directory:      directory,
		bridge:         bridge,
		telemetry:      tel,
		voice:          voice,
		peerID:         peerID,
		fallbackAuthor: fallbackAuthor,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /channels", s.handleListChannels)
	mux.HandleFunc("POST /channels", s.handleCreateChannel)
	mux.HandleFunc("DELETE /channels/{name}", s.handleDeleteChannel)
	mux.HandleFunc("GET /messages", s.handleListMessages)
	mux.HandleFunc("POST /messages", s.handlePublish)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /voice/signals", s.handleVoiceSignals)
	mux.HandleFunc("POST /voice/signal", s.handleVoiceSignalPost)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Start blocks serving until the server is shut down; it returns nil on
// a clean Shutdown.
func (s *Server) Start() error {
	logger.InfoCF("api", "api server listening", map[string]any{"address": s.srv.Addr})
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.InfoC("api", "shutting down api server")
	return s.srv.Shutdown(ctx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.DebugCF("api", "request handled", map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		})
	})
}
