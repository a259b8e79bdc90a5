// Package api provides HTTP handlers and the main API server logic for the
// loan status agent.
//
// It exposes endpoints for caller turns, session reset, health checks, and
// call transcripts. The API integrates with the flow, genai, loans,
// messaging, and store modules.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/ruthvika-mohan/loan-status-agent/internal/flow"
	"github.com/ruthvika-mohan/loan-status-agent/internal/genai"
	"github.com/ruthvika-mohan/loan-status-agent/internal/loans"
	"github.com/ruthvika-mohan/loan-status-agent/internal/lockfile"
	"github.com/ruthvika-mohan/loan-status-agent/internal/messaging"
	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
	"github.com/ruthvika-mohan/loan-status-agent/internal/store"
)

// Default configuration constants
const (
	// DefaultAPIAddr is the default address the API server listens on.
	DefaultAPIAddr = ":8000"
	// DefaultFlowPath is the default path of the flow definition file.
	DefaultFlowPath = "flows/loan_status_flow.json"
	// DefaultReadHeaderTimeout bounds how long a client may take to send headers.
	DefaultReadHeaderTimeout = 10 * time.Second
)

// TurnHandler processes one caller turn against a session. It is implemented
// by flow.Interpreter; tests substitute fakes.
type TurnHandler interface {
	HandleTurn(ctx context.Context, utterance string, sess *models.Session) (string, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr     string
	FlowPath string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithFlowPath sets the path of the flow definition file.
func WithFlowPath(path string) Option {
	return func(o *Opts) { o.FlowPath = path }
}

// Server handles HTTP requests and delegates caller turns to the flow
// interpreter. Session state lives in the session store; transcripts go to
// the transcript store.
type Server struct {
	addr     string
	turns    TurnHandler
	sessions *store.SessionStore
	st       store.Store
}

// NewServer creates an API server with the given collaborators. st may be
// nil; transcript recording is then disabled.
func NewServer(addr string, turns TurnHandler, sessions *store.SessionStore, st store.Store) *Server {
	if addr == "" {
		addr = DefaultAPIAddr
	}
	return &Server{addr: addr, turns: turns, sessions: sessions, st: st}
}

// routes builds the request mux for the API surface.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/reset", s.resetHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/transcripts", s.transcriptsHandler)
	return mux
}

// ListenAndServe starts the HTTP server and blocks until it exits.
func (s *Server) ListenAndServe() error {
	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
	slog.Info("Server.ListenAndServe: API server running", "addr", s.addr)
	return httpSrv.ListenAndServe()
}

// Run wires the configured modules together and serves the API. It blocks
// until the server exits.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, msgOpts []messaging.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.FlowPath == "" {
		cfg.FlowPath = DefaultFlowPath
	}

	graph, err := flow.LoadFile(cfg.FlowPath)
	if err != nil {
		slog.Error("api.Run: failed to load flow definition", "error", err, "path", cfg.FlowPath)
		return fmt.Errorf("failed to load flow definition: %w", err)
	}
	slog.Debug("api.Run: flow definition loaded", "path", cfg.FlowPath, "nodes", graph.Len())

	gaClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Error("api.Run: failed to create GenAI client", "error", err)
		return fmt.Errorf("failed to create GenAI client: %w", err)
	}

	// A file-backed transcript store gets an exclusive lock on its
	// directory, so a second instance cannot corrupt the same database.
	var storeCfg store.Opts
	for _, opt := range storeOpts {
		opt(&storeCfg)
	}
	if storeCfg.SQLiteDSN != "" {
		lock, lockErr := lockfile.Acquire(filepath.Dir(storeCfg.SQLiteDSN))
		if lockErr != nil {
			slog.Error("api.Run: failed to lock database directory", "error", lockErr)
			return fmt.Errorf("failed to lock database directory: %w", lockErr)
		}
		defer func() {
			if releaseErr := lock.Release(); releaseErr != nil {
				slog.Error("api.Run: failed to release database directory lock", "error", releaseErr)
			}
		}()
	}

	st, err := store.NewStore(storeOpts...)
	if err != nil {
		slog.Error("api.Run: failed to create transcript store", "error", err)
		return fmt.Errorf("failed to create transcript store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("api.Run: failed to close transcript store", "error", closeErr)
		}
	}()

	// SMS delivery is optional: without Twilio credentials the agent still
	// runs and only logs the messages it would have sent.
	var sender messaging.Sender
	if twilioSender, twErr := messaging.NewTwilioSender(msgOpts...); twErr != nil {
		slog.Info("api.Run: Twilio not configured, SMS delivery disabled", "reason", twErr)
		sender = messaging.NewNoopSender()
	} else {
		sender = twilioSender
	}

	interp := flow.NewInterpreter(graph, gaClient, gaClient, loans.NewStaticLookup(), sender)
	srv := NewServer(cfg.Addr, interp, store.NewSessionStore(), st)
	return srv.ListenAndServe()
}
