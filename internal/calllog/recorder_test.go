package calllog

import (
	"context"
	"errors"
	"testing"

	"github.com/whisper/tropo-bridge/internal/protocol"
)

type fakeWriter struct {
	started, results, ended []protocol.CallEvent
	err                     error
}

func (f *fakeWriter) RecordStarted(_ context.Context, e protocol.CallEvent) error {
	f.started = append(f.started, e)
	return f.err
}

func (f *fakeWriter) RecordResult(_ context.Context, e protocol.CallEvent) error {
	f.results = append(f.results, e)
	return f.err
}

func (f *fakeWriter) RecordEnded(_ context.Context, e protocol.CallEvent) error {
	f.ended = append(f.ended, e)
	return f.err
}

func mustMarshal(t *testing.T, e protocol.CallEvent) []byte {
	t.Helper()
	data, err := e.Marshal()
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

func TestRecorder_DispatchesByType(t *testing.T) {
	w := &fakeWriter{}
	r := NewRecorder(w)
	ctx := context.Background()

	for _, typ := range []string{protocol.TypeCallStarted, protocol.TypeCallResult, protocol.TypeCallResult, protocol.TypeCallEnded} {
		if err := r.Handle(ctx, mustMarshal(t, protocol.NewCallEvent(typ, "sess"))); err != nil {
			t.Fatalf("Handle(%s) error: %v", typ, err)
		}
	}

	if len(w.started) != 1 {
		t.Errorf("expected 1 started, got %d", len(w.started))
	}
	if len(w.results) != 2 {
		t.Errorf("expected 2 results, got %d", len(w.results))
	}
	if len(w.ended) != 1 {
		t.Errorf("expected 1 ended, got %d", len(w.ended))
	}
}

func TestRecorder_RejectsInvalidEvent(t *testing.T) {
	w := &fakeWriter{}
	r := NewRecorder(w)

	if err := r.Handle(context.Background(), []byte(`{"type":"call_paused","session_id":"s"}`)); err == nil {
		t.Fatal("expected error for unknown event type")
	}
	if len(w.started)+len(w.results)+len(w.ended) != 0 {
		t.Error("expected no writes for invalid event")
	}
}

func TestRecorder_PropagatesWriteError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRecorder(&fakeWriter{err: boom})

	err := r.Handle(context.Background(), mustMarshal(t, protocol.NewCallEvent(protocol.TypeCallEnded, "sess")))
	if !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
}
