package calllog

import (
	"context"
	"fmt"
	"log"

	"github.com/whisper/tropo-bridge/internal/protocol"
)

// Writer persists call lifecycle events. *Store implements it.
type Writer interface {
	RecordStarted(ctx context.Context, e protocol.CallEvent) error
	RecordResult(ctx context.Context, e protocol.CallEvent) error
	RecordEnded(ctx context.Context, e protocol.CallEvent) error
}

// Recorder turns raw call events into history writes.
type Recorder struct {
	w Writer
}

// NewRecorder creates a Recorder writing to w.
func NewRecorder(w Writer) *Recorder {
	return &Recorder{w: w}
}

// Handle decodes one raw event and writes it.
func (r *Recorder) Handle(ctx context.Context, data []byte) error {
	e, err := protocol.ParseCallEvent(data)
	if err != nil {
		return err
	}

	switch e.Type {
	case protocol.TypeCallStarted:
		err = r.w.RecordStarted(ctx, e)
	case protocol.TypeCallResult:
		err = r.w.RecordResult(ctx, e)
	case protocol.TypeCallEnded:
		err = r.w.RecordEnded(ctx, e)
	default:
		return fmt.Errorf("calllog: unhandled event type %q", e.Type)
	}
	if err != nil {
		return err
	}

	log.Printf("[calllog] recorded %s session=%s event=%s", e.Type, e.SessionID, e.ID)
	return nil
}
