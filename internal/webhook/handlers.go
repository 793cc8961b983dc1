package webhook

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/whisper/tropo-bridge/internal/metrics"
	"github.com/whisper/tropo-bridge/internal/protocol"
	"github.com/whisper/tropo-bridge/internal/tropo"
)

// handleWebhook receives a Tropo session or result callback.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.WebhookLatency.Observe(time.Since(start).Seconds())
	}()

	if !s.allow(w, r) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	call, payload, err := s.adapter.FromRequestPayload(r)
	if err != nil {
		if payload.Kind == 0 {
			metrics.WebhookRequests.WithLabelValues("invalid").Inc()
		}
		s.fail(w, r, err)
		return
	}
	metrics.WebhookRequests.WithLabelValues(payload.Kind.String()).Inc()

	ctx := r.Context()
	resp, err := s.responder.Respond(ctx, call, payload.Kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.adapter.Save(ctx, payload.SessionID, call); err != nil {
		s.fail(w, r, err)
		return
	}

	switch payload.Kind {
	case tropo.PayloadSession:
		metrics.CallsStarted.Inc()
		s.publish(callEvent(protocol.TypeCallStarted, payload.SessionID, call))
		log.Printf("[webhook] call started session=%s caller=%q", payload.SessionID, call.CallerFrom())
	case tropo.PayloadResult:
		s.publish(callEvent(protocol.TypeCallResult, payload.SessionID, call))
		log.Printf("[webhook] call result session=%s actions=%d", payload.SessionID, len(payload.Result.Actions))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetCall returns the persisted call for a session.
func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	call, err := s.adapter.Instance(r.Context(), id, nil)
	if errors.Is(err, tropo.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		SessionID     string         `json:"session_id"`
		Caller        string         `json:"caller"`
		CallerUnknown bool           `json:"caller_unknown"`
		Session       map[string]any `json:"session"`
	}{
		SessionID:     id,
		Caller:        call.CallerFrom(),
		CallerUnknown: call.CallerUnknown(),
		Session:       call.SessionData(),
	})
}

// handleDeleteCall cleans up a call. Unknown sessions are not an error.
func (s *Server) handleDeleteCall(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	call, err := s.adapter.Instance(ctx, id, nil)
	if err != nil && !errors.Is(err, tropo.ErrSessionNotFound) {
		log.Printf("[webhook] cleanup session=%s: load failed: %v", id, err)
		call = nil
	}

	if err := s.adapter.Cleanup(ctx, id); err != nil {
		s.fail(w, r, err)
		return
	}

	if call != nil {
		metrics.CallsEnded.Inc()
		s.publish(callEvent(protocol.TypeCallEnded, id, call))
		log.Printf("[webhook] call ended session=%s", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// allow applies the rate limiter. It writes a 429 and returns false when the
// caller is over the limit. Limiter errors fail open.
func (s *Server) allow(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	ip := s.clientIP(r)
	ok, err := s.limiter.Allow(r.Context(), ip, s.config.RateLimit)
	if err != nil {
		return true
	}
	if ok {
		if left, err := s.limiter.Remaining(r.Context(), ip, s.config.RateLimit); err == nil {
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(left))
		}
		return true
	}

	metrics.RateLimited.Inc()
	retry := s.limiter.RetryAfter(r.Context(), ip, s.config.RateLimit)
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds()+0.5)))
	writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
	log.Printf("[webhook] rate limited ip=%s", ip)
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	if s.config.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := tropo.StatusCode(err)
	metrics.WebhookErrors.WithLabelValues(strconv.Itoa(code)).Inc()
	if code == http.StatusMethodNotAllowed {
		w.Header().Set("Allow", http.MethodPost)
	}
	log.Printf("[webhook] %s %s -> %d: %v", r.Method, r.URL.Path, code, err)
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) publish(e protocol.CallEvent) {
	if s.publisher == nil {
		return
	}
	data, err := e.Marshal()
	if err != nil {
		log.Printf("[webhook] %v", err)
		return
	}
	if err := s.publisher.PublishCallEvent(e.Subject(), data); err != nil {
		log.Printf("[webhook] publish %s session=%s: %v", e.Type, e.SessionID, err)
	}
}

// callEvent summarizes a call for the event stream.
func callEvent(eventType, sessionID string, call *tropo.Call) protocol.CallEvent {
	e := protocol.NewCallEvent(eventType, sessionID)
	e.CallerID = call.CallerFrom()
	e.CallerUnknown = call.CallerUnknown()
	if res := call.Result(); res != nil {
		e.Sequence = res.Sequence()
		e.State = res.State()
		for _, a := range res.Actions {
			e.Actions = append(e.Actions, protocol.ActionSummary{
				Name:        a.Name,
				Value:       a.Value,
				Disposition: a.Disposition(),
			})
		}
	}
	return e
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
