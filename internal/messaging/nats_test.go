package messaging

import (
	"testing"
	"time"
)

// newTestClient connects to a local NATS server. Tests that call this helper
// require nats-server on localhost:4222 and are skipped otherwise.
func newTestClient(t *testing.T) *NATSClient {
	t.Helper()
	config := DefaultNATSConfig()
	config.Name = "tropo-bridge-test"
	config.MaxReconnects = 0
	c, err := NewNATSClient(config)
	if err != nil {
		t.Skipf("nats not available: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestPublishAndSubscribeCallEvents(t *testing.T) {
	c := newTestClient(t)

	got := make(chan []byte, 1)
	if err := c.SubscribeCallEvents(func(data []byte) {
		got <- data
	}); err != nil {
		t.Fatalf("SubscribeCallEvents() error: %v", err)
	}
	if err := c.conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := c.PublishCallEvent("started.test-session", []byte(`{"type":"call_started"}`)); err != nil {
		t.Fatalf("PublishCallEvent() error: %v", err)
	}

	select {
	case data := <-got:
		if string(data) != `{"type":"call_started"}` {
			t.Errorf("unexpected payload %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call event")
	}

	if err := c.UnsubscribeCallEvents(); err != nil {
		t.Errorf("UnsubscribeCallEvents() error: %v", err)
	}
	if err := c.UnsubscribeCallEvents(); err == nil {
		t.Error("expected error unsubscribing twice")
	}
}
