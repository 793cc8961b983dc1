package tropo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/whisper/tropo-bridge/internal/session"
)

const (
	// SessionPrefix namespaces Tropo sessions in the session store.
	SessionPrefix = "tropo-"

	// CallKey is the session slot holding the persisted call.
	CallKey = "call"
)

// Adapter loads and stores calls in the session store.
type Adapter struct {
	sessions session.Provider
}

// NewAdapter creates an Adapter over the given session provider.
func NewAdapter(sessions session.Provider) *Adapter {
	return &Adapter{sessions: sessions}
}

// Session returns the session namespace for a Tropo session id.
func (a *Adapter) Session(sessionID string) session.Store {
	return a.sessions.Open(SessionPrefix + sessionID)
}

// FromRequest returns the call for an inbound webhook request, creating it
// from a session payload or restoring it and attaching a result payload.
func (a *Adapter) FromRequest(r *http.Request) (*Call, error) {
	call, _, err := a.FromRequestPayload(r)
	return call, err
}

// FromRequestPayload is FromRequest that also returns the decoded payload,
// for callers that need to know which branch was taken.
func (a *Adapter) FromRequestPayload(r *http.Request) (*Call, Payload, error) {
	if r.Method != http.MethodPost {
		return nil, Payload{}, &HTTPError{Status: http.StatusMethodNotAllowed, Err: ErrMethodNotAllowed}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, Payload{}, &HTTPError{Status: http.StatusRequestEntityTooLarge, Err: ErrBodyTooLarge, Detail: err.Error()}
		}
		return nil, Payload{}, &HTTPError{Status: http.StatusBadRequest, Err: ErrBadRequest, Detail: err.Error()}
	}

	payload, err := DecodePayload(body)
	if err != nil {
		return nil, Payload{}, &HTTPError{
			Status: http.StatusBadRequest,
			Err:    err,
			Detail: "Could not interpret request body " + string(body),
		}
	}

	ctx := r.Context()
	switch payload.Kind {
	case PayloadSession:
		call, err := a.Instance(ctx, payload.SessionID, payload.Session)
		return call, payload, err
	case PayloadResult:
		call, err := a.Instance(ctx, payload.SessionID, nil)
		if err != nil {
			return nil, payload, err
		}
		call.LoadResult(payload.Result)
		return call, payload, nil
	default:
		return nil, payload, fmt.Errorf("tropo: unhandled payload kind %v", payload.Kind)
	}
}

// Instance returns the call for a session. With initial data it creates and
// stores a new call, failing with ErrSessionConflict if one already exists.
// Without initial data it returns the stored call or ErrSessionNotFound.
func (a *Adapter) Instance(ctx context.Context, sessionID string, initial map[string]any) (*Call, error) {
	store := a.Session(sessionID)

	existing, err := a.load(ctx, store)
	if err != nil {
		return nil, err
	}

	switch {
	case existing != nil && len(initial) > 0:
		return nil, fmt.Errorf("%w: session %s", ErrSessionConflict, sessionID)
	case len(initial) > 0:
		call := NewCall(initial)
		if err := a.store(ctx, store, call); err != nil {
			return nil, err
		}
		return call, nil
	case existing != nil:
		return existing, nil
	default:
		return nil, fmt.Errorf("%w: session %s", ErrSessionNotFound, sessionID)
	}
}

// Save writes the persisted form of call back to its session, so that
// changes such as SetCallerFrom survive to the next request.
func (a *Adapter) Save(ctx context.Context, sessionID string, call *Call) error {
	return a.store(ctx, a.Session(sessionID), call)
}

// Cleanup removes every record of the call from the session store.
func (a *Adapter) Cleanup(ctx context.Context, sessionID string) error {
	return a.Session(sessionID).Destroy(ctx)
}

func (a *Adapter) load(ctx context.Context, store session.Store) (*Call, error) {
	raw, err := store.Get(ctx, CallKey)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var call Call
	if err := json.Unmarshal(raw, &call); err != nil {
		return nil, fmt.Errorf("tropo: session %s: %w", store.Name(), err)
	}
	return &call, nil
}

func (a *Adapter) store(ctx context.Context, store session.Store, call *Call) error {
	raw, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("tropo: encode call: %w", err)
	}
	return store.Set(ctx, CallKey, raw)
}
