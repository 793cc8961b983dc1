package tropo

import (
	"errors"
	"testing"
)

func TestDecodePayload_Session(t *testing.T) {
	p, err := DecodePayload([]byte(`{"session":{"id":"abc","from":{"id":"caller"}}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Kind != PayloadSession {
		t.Fatalf("expected kind %v, got %v", PayloadSession, p.Kind)
	}
	if p.SessionID != "abc" {
		t.Errorf("expected session id %q, got %q", "abc", p.SessionID)
	}
	if p.Result != nil {
		t.Error("expected nil result for session payload")
	}
}

func TestDecodePayload_Result(t *testing.T) {
	p, err := DecodePayload([]byte(`{"result":{"sessionId":"abc","sequence":2,"actions":{"name":"foo","value":"bar"}}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Kind != PayloadResult {
		t.Fatalf("expected kind %v, got %v", PayloadResult, p.Kind)
	}
	if p.SessionID != "abc" {
		t.Errorf("expected session id %q, got %q", "abc", p.SessionID)
	}
	if p.Result.Sequence() != 2 {
		t.Errorf("expected sequence 2, got %d", p.Result.Sequence())
	}
	if len(p.Result.Actions) != 1 || p.Result.Actions[0].Name != "foo" {
		t.Errorf("expected one normalized action, got %+v", p.Result.Actions)
	}
}

func TestDecodePayload_SessionWinsOverResult(t *testing.T) {
	p, err := DecodePayload([]byte(`{"session":{"id":"s1"},"result":{"sessionId":"r1"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Kind != PayloadSession || p.SessionID != "s1" {
		t.Errorf("expected session payload s1, got %v %q", p.Kind, p.SessionID)
	}
}

func TestDecodePayload_Unrecognised(t *testing.T) {
	bodies := []string{
		`{"foo":[]}`,
		`{}`,
		`{"session":null}`,
		`{"session":[]}`,
		`{"session":{"from":{"id":"x"}}}`,
		`{"result":{"actions":[]}}`,
		`not json`,
		``,
	}
	for _, body := range bodies {
		if _, err := DecodePayload([]byte(body)); !errors.Is(err, ErrBadRequest) {
			t.Errorf("body %q: expected ErrBadRequest, got %v", body, err)
		}
	}
}

func TestActionList_NullAndEmpty(t *testing.T) {
	p, err := DecodePayload([]byte(`{"result":{"sessionId":"abc","actions":null}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Result.Actions) != 0 {
		t.Errorf("expected no actions, got %+v", p.Result.Actions)
	}
}

func TestDecodePayload_ResultFieldsOfAnyShape(t *testing.T) {
	p, err := DecodePayload([]byte(`{"result":{
		"sessionId":"abc",
		"error":{"code":1},
		"sequence":"two",
		"complete":"yes",
		"actions":{"name":"foo","value":"bar","confidence":"100","attempts":[1],"disposition":{"x":1}}
	}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Result.Sequence() != 0 {
		t.Errorf("expected sequence 0 for non-numeric value, got %d", p.Result.Sequence())
	}
	if p.Result.Actions[0].Disposition() != "" {
		t.Errorf("expected empty disposition, got %q", p.Result.Actions[0].Disposition())
	}
	if p.Result.Actions[0].Fields["confidence"] != "100" {
		t.Errorf("expected raw confidence kept, got %v", p.Result.Actions[0].Fields["confidence"])
	}
	if _, ok := p.Result.Fields["error"].(map[string]any); !ok {
		t.Errorf("expected raw error object kept, got %#v", p.Result.Fields["error"])
	}
}

func TestDecodePayload_ResultAccessors(t *testing.T) {
	p, err := DecodePayload([]byte(`{"result":{"sessionId":"abc","state":"ANSWERED","sequence":3,
		"actions":[{"name":"menu","value":"1","disposition":"SUCCESS"}]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Result.State() != "ANSWERED" {
		t.Errorf("expected state ANSWERED, got %q", p.Result.State())
	}
	if p.Result.Sequence() != 3 {
		t.Errorf("expected sequence 3, got %d", p.Result.Sequence())
	}
	if p.Result.Actions[0].Disposition() != "SUCCESS" {
		t.Errorf("expected disposition SUCCESS, got %q", p.Result.Actions[0].Disposition())
	}
}
