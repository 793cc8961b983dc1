package tropo

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PayloadKind discriminates the two request bodies Tropo sends.
type PayloadKind int

const (
	// PayloadSession starts a new call.
	PayloadSession PayloadKind = iota + 1

	// PayloadResult continues an existing call with the outcome of a step.
	PayloadResult
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadSession:
		return "session"
	case PayloadResult:
		return "result"
	default:
		return "unknown"
	}
}

// Payload is a decoded webhook body. Exactly one of Session or Result is set,
// matching Kind.
type Payload struct {
	Kind      PayloadKind
	SessionID string
	Session   map[string]any
	Result    *Result
}

// Result describes the outcome of a prior call step. Only the session id and
// the actions are typed; every field Tropo sent is kept in Fields, whatever
// its shape.
type Result struct {
	SessionID string
	Actions   ActionList
	Fields    map[string]any
}

// UnmarshalJSON decodes a result object. A non-string sessionId is kept in
// its textual form.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tropo: decode result: %w", err)
	}
	var fields map[string]any
	if err := decodeNumbers(data, &fields); err != nil {
		return fmt.Errorf("tropo: decode result: %w", err)
	}

	var actions ActionList
	if a, ok := raw["actions"]; ok {
		if err := actions.UnmarshalJSON(a); err != nil {
			return err
		}
	}

	*r = Result{
		SessionID: stringify(fields["sessionId"]),
		Actions:   actions,
		Fields:    fields,
	}
	return nil
}

// State returns the call state Tropo reported, or "".
func (r *Result) State() string {
	s, _ := r.Fields["state"].(string)
	return s
}

// Sequence returns the step sequence number, or 0 when absent or not a
// whole number.
func (r *Result) Sequence() int {
	n, ok := r.Fields["sequence"].(json.Number)
	if !ok {
		return 0
	}
	i, err := n.Int64()
	if err != nil {
		return 0
	}
	return int(i)
}

// Action is one named result field reported by Tropo. Fields holds the
// whole action object, including attempts, disposition, confidence and the
// rest, in whatever shape they arrived.
type Action struct {
	Name   string
	Value  any
	Fields map[string]any

	named bool
}

// UnmarshalJSON decodes one action object. An action whose name is absent
// or not a string never matches a lookup.
func (a *Action) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := decodeNumbers(data, &fields); err != nil {
		return fmt.Errorf("tropo: decode action: %w", err)
	}
	name, named := fields["name"].(string)
	*a = Action{Name: name, Value: fields["value"], Fields: fields, named: named}
	return nil
}

// Disposition returns the action's disposition, e.g. "SUCCESS", or "".
func (a Action) Disposition() string {
	s, _ := a.Fields["disposition"].(string)
	return s
}

// ActionList is always a sequence. Tropo sends a bare object when a step
// produced a single action; UnmarshalJSON wraps it.
type ActionList []Action

// UnmarshalJSON accepts either one action object or an array of them.
func (l *ActionList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case data[0] == '{':
		var a Action
		if err := a.UnmarshalJSON(data); err != nil {
			return err
		}
		*l = ActionList{a}
		return nil
	default:
		var list []Action
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("tropo: decode actions: %w", err)
		}
		*l = list
		return nil
	}
}

// Find returns the first named action with the given name.
func (l ActionList) Find(name string) (Action, bool) {
	for _, a := range l {
		if a.named && a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// DecodePayload parses a webhook body into a tagged Payload. A body with
// neither a session nor a result object yields an error wrapping
// ErrBadRequest. When both are present the session wins.
func DecodePayload(body []byte) (Payload, error) {
	var envelope struct {
		Session json.RawMessage `json:"session"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	switch {
	case present(envelope.Session):
		var data map[string]any
		if err := decodeNumbers(envelope.Session, &data); err != nil {
			return Payload{}, fmt.Errorf("%w: session: %v", ErrBadRequest, err)
		}
		id := stringify(data["id"])
		if id == "" {
			return Payload{}, fmt.Errorf("%w: session has no id", ErrBadRequest)
		}
		return Payload{Kind: PayloadSession, SessionID: id, Session: data}, nil

	case present(envelope.Result):
		var result Result
		if err := json.Unmarshal(envelope.Result, &result); err != nil {
			return Payload{}, fmt.Errorf("%w: result: %v", ErrBadRequest, err)
		}
		if result.SessionID == "" {
			return Payload{}, fmt.Errorf("%w: result has no sessionId", ErrBadRequest)
		}
		return Payload{Kind: PayloadResult, SessionID: result.SessionID, Result: &result}, nil

	default:
		return Payload{}, ErrBadRequest
	}
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// decodeNumbers unmarshals with json.Number so caller ids and other digit
// strings sent as numbers are not rounded through float64.
func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
