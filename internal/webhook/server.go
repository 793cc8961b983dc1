// Package webhook is the HTTP surface of the bridge. It receives Tropo
// webhook callbacks, restores or creates the call through the tropo adapter,
// answers with a Tropo script and announces call lifecycle events.
package webhook

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/whisper/tropo-bridge/internal/metrics"
	"github.com/whisper/tropo-bridge/internal/ratelimit"
	"github.com/whisper/tropo-bridge/internal/tropo"
)

// ServerConfig holds tunable parameters for the webhook server.
type ServerConfig struct {
	ListenAddr   string        // address to listen on, e.g. ":8080"
	ReadTimeout  time.Duration // timeout for reading a request
	WriteTimeout time.Duration // timeout for writing a response
	MaxBodyBytes int64         // largest accepted webhook body
	TrustProxy   bool          // take the client address from X-Forwarded-For
	RateLimit    ratelimit.Rule
}

// DefaultServerConfig returns a ServerConfig with sensible production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:   ":8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		MaxBodyBytes: 1 << 20,
		RateLimit:    ratelimit.RuleWebhook,
	}
}

// Publisher sends call events to other services. *messaging.NATSClient
// implements it.
type Publisher interface {
	PublishCallEvent(suffix string, data []byte) error
}

// RateLimiter throttles webhook callers. *ratelimit.Limiter implements it.
type RateLimiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
	RetryAfter(ctx context.Context, identifier string, rule ratelimit.Rule) time.Duration
	Remaining(ctx context.Context, identifier string, rule ratelimit.Rule) (int, error)
}

// Responder builds the Tropo script returned for a webhook request. It may
// modify the call; the call is saved after it returns.
type Responder interface {
	Respond(ctx context.Context, call *tropo.Call, kind tropo.PayloadKind) (any, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, call *tropo.Call, kind tropo.PayloadKind) (any, error)

func (f ResponderFunc) Respond(ctx context.Context, call *tropo.Call, kind tropo.PayloadKind) (any, error) {
	return f(ctx, call, kind)
}

// Script is a Tropo JSON document.
type Script struct {
	Tropo []any `json:"tropo"`
}

// EmptyScript answers every request with an empty Tropo script.
var EmptyScript = ResponderFunc(func(context.Context, *tropo.Call, tropo.PayloadKind) (any, error) {
	return Script{Tropo: []any{}}, nil
})

// Deps are the collaborators of a Server. Adapter is required; the rest are
// optional and skipped when nil.
type Deps struct {
	Adapter   *tropo.Adapter
	Publisher Publisher
	Limiter   RateLimiter
	Responder Responder
	Feed      http.Handler
}

// Server serves the Tropo webhook and its companion endpoints.
type Server struct {
	config     ServerConfig
	adapter    *tropo.Adapter
	publisher  Publisher
	limiter    RateLimiter
	responder  Responder
	feed       http.Handler
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer creates a Server. A nil Responder falls back to EmptyScript.
func NewServer(config ServerConfig, deps Deps) *Server {
	s := &Server{
		config:    config,
		adapter:   deps.Adapter,
		publisher: deps.Publisher,
		limiter:   deps.Limiter,
		responder: deps.Responder,
		feed:      deps.Feed,
		startedAt: time.Now(),
	}
	if s.responder == nil {
		s.responder = EmptyScript
	}
	return s
}

// Handler returns the HTTP routes served by the bridge.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tropo", s.handleWebhook)
	mux.HandleFunc("GET /tropo/calls/{id}", s.handleGetCall)
	mux.HandleFunc("DELETE /tropo/calls/{id}", s.handleDeleteCall)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	if s.feed != nil {
		mux.Handle("GET /feed", s.feed)
	}
	return mux
}

// Start begins serving and blocks until the server stops.
func (s *Server) Start() error {
	s.startedAt = time.Now()
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	log.Printf("[webhook] server listening on %s", s.config.ListenAddr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook: http server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("[webhook] shutting down server...")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("webhook: http shutdown: %w", err)
	}
	log.Println("[webhook] server stopped")
	return nil
}
