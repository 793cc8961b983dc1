package tropo

import (
	"encoding/json"
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// Caller id
// ---------------------------------------------------------------------------

func TestCallerFrom(t *testing.T) {
	call := NewCall(map[string]any{
		"from": map[string]any{"id": "01317185000"},
	})
	if got := call.CallerFrom(); got != "01317185000" {
		t.Errorf("expected caller %q, got %q", "01317185000", got)
	}
}

func TestSetCallerFrom(t *testing.T) {
	call := NewCall(map[string]any{})
	call.SetCallerFrom("foo-bar")
	if got := call.CallerFrom(); got != "foo-bar" {
		t.Errorf("expected caller %q, got %q", "foo-bar", got)
	}
}

func TestSetCallerFrom_NilData(t *testing.T) {
	call := NewCall(nil)
	call.SetCallerFrom("441317185666")
	if got := call.CallerFrom(); got != "441317185666" {
		t.Errorf("expected caller %q, got %q", "441317185666", got)
	}
}

func TestCallerUnknown(t *testing.T) {
	tests := []struct {
		id   any
		want bool
	}{
		{0, true},
		{int64(0), true},
		{0.0, true},
		{json.Number("0"), true},
		{"Unknown", true},
		{"", true},
		{"0", true},
		{nil, true},
		{false, true},
		{"441317185666", false},
		{json.Number("441317185666"), false},
		{441317185666, false},
	}
	for _, tt := range tests {
		call := NewCall(map[string]any{"from": map[string]any{"id": tt.id}})
		if got := call.CallerUnknown(); got != tt.want {
			t.Errorf("CallerUnknown() for %#v: expected %v, got %v", tt.id, tt.want, got)
		}
	}
}

func TestCallerUnknown_NoFrom(t *testing.T) {
	if !NewCall(nil).CallerUnknown() {
		t.Error("expected caller unknown when session has no from object")
	}
}

// ---------------------------------------------------------------------------
// Result values
// ---------------------------------------------------------------------------

func decodeResult(t *testing.T, raw string) *Result {
	t.Helper()
	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return &r
}

func TestResultValue_SingleActionObject(t *testing.T) {
	call := NewCall(nil)
	call.LoadResult(decodeResult(t, `{"actions":{"name":"foo","value":"bar"}}`))

	got, err := call.ResultValue("foo", nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "bar" {
		t.Errorf("expected %q, got %v", "bar", got)
	}
}

func TestResultValue_ActionList(t *testing.T) {
	call := NewCall(nil)
	call.LoadResult(decodeResult(t, `{"actions":[
		{"name":"zip","value":"EH1"},
		{"name":"foo","value":"bar"},
		{"name":"foo","value":"ignored"}
	]}`))

	got, err := call.ResultValue("foo", nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "bar" {
		t.Errorf("expected first match %q, got %v", "bar", got)
	}
}

func TestResultValue_Default(t *testing.T) {
	call := NewCall(nil)

	got, err := call.ResultValue("foo", true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != true {
		t.Errorf("expected default true, got %v", got)
	}

	got, err = call.ResultValue("foo", nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestResultValue_Required(t *testing.T) {
	call := NewCall(nil)
	call.LoadResult(decodeResult(t, `{"actions":[{"name":"other","value":"x"}]}`))

	_, err := call.ResultValue("foo", nil, true)
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("expected ErrMissingRequiredField, got %v", err)
	}
}

func TestLoadResult_Replaces(t *testing.T) {
	call := NewCall(nil)
	call.LoadResult(decodeResult(t, `{"actions":{"name":"foo","value":"first"}}`))
	call.LoadResult(decodeResult(t, `{"actions":{"name":"bar","value":"second"}}`))

	if got, _ := call.ResultValue("foo", nil, false); got != nil {
		t.Errorf("expected previous result to be replaced, got foo=%v", got)
	}
	if got, _ := call.ResultValue("bar", nil, false); got != "second" {
		t.Errorf("expected bar=%q, got %v", "second", got)
	}
}

// ---------------------------------------------------------------------------
// Persisted form
// ---------------------------------------------------------------------------

func TestMarshal_DropsResult(t *testing.T) {
	call := NewCall(nil)
	call.LoadResult(decodeResult(t, `{"actions":{"name":"foo","value":"bar"}}`))

	data, err := json.Marshal(call)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored Call
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, _ := restored.ResultValue("foo", nil, false); got != nil {
		t.Errorf("expected result to be dropped, got %v", got)
	}
	if restored.Result() != nil {
		t.Error("expected nil result after round-trip")
	}
}

func TestMarshal_KeepsSessionData(t *testing.T) {
	call := NewCall(map[string]any{})
	call.SetCallerFrom("foo-bar")

	data, err := json.Marshal(call)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored Call
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := restored.CallerFrom(); got != "foo-bar" {
		t.Errorf("expected caller %q after round-trip, got %q", "foo-bar", got)
	}
}

func TestUnmarshal_PreservesLongNumbers(t *testing.T) {
	var call Call
	if err := json.Unmarshal([]byte(`{"session":{"from":{"id":441317185666123}}}`), &call); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := call.CallerFrom(); got != "441317185666123" {
		t.Errorf("expected exact caller id, got %q", got)
	}
}

func TestResultValue_UnnamedActionNeverMatches(t *testing.T) {
	call := NewCall(nil)
	call.LoadResult(decodeResult(t, `{"actions":[{"value":"leak"},{"name":null,"value":"leak"},{"name":7,"value":"leak"}]}`))

	got, err := call.ResultValue("", "def", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "def" {
		t.Errorf("expected default for unnamed actions, got %v", got)
	}

	if _, err := call.ResultValue("", nil, true); !errors.Is(err, ErrMissingRequiredField) {
		t.Errorf("expected ErrMissingRequiredField, got %v", err)
	}
}

func TestResultValue_EmptyNameMatchesExplicitly(t *testing.T) {
	call := NewCall(nil)
	call.LoadResult(decodeResult(t, `{"actions":{"name":"","value":"blank"}}`))

	if got, _ := call.ResultValue("", nil, false); got != "blank" {
		t.Errorf("expected explicit empty name to match, got %v", got)
	}
}
