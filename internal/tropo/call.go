// Package tropo adapts Tropo webhook requests to call state held in a
// server-side session. A new call is created from a session payload and
// restored, with the step's result attached, from each result payload.
package tropo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// UnknownCaller is the caller id Tropo reports for withheld numbers.
const UnknownCaller = "Unknown"

// Call is the state of one in-progress or completed call. Only the session
// data is persisted; the result of the current step lives for one request.
type Call struct {
	session map[string]any
	result  *Result
}

// persistedCall is the serialized form of a Call.
type persistedCall struct {
	Session map[string]any `json:"session"`
}

// NewCall creates a call from Tropo session data. A nil map starts empty.
func NewCall(data map[string]any) *Call {
	if data == nil {
		data = make(map[string]any)
	}
	return &Call{session: data}
}

// SessionData returns the call's session data. The map is shared with the
// call, not copied.
func (c *Call) SessionData() map[string]any {
	return c.session
}

// SessionID returns the Tropo session id recorded in the session data.
func (c *Call) SessionID() string {
	return stringify(c.session["id"])
}

// CallerID returns the raw from.id value, or nil when absent.
func (c *Call) CallerID() any {
	from, ok := c.session["from"].(map[string]any)
	if !ok {
		return nil
	}
	return from["id"]
}

// CallerFrom returns from.id as a string.
func (c *Call) CallerFrom() string {
	return stringify(c.CallerID())
}

// SetCallerFrom sets from.id, creating the from object if needed.
func (c *Call) SetCallerFrom(id any) {
	from, ok := c.session["from"].(map[string]any)
	if !ok {
		from = make(map[string]any)
		c.session["from"] = from
	}
	from["id"] = id
}

// CallerUnknown reports whether the caller id is missing or withheld: nil,
// false, any numeric zero, "", "0" and "Unknown" all count as unknown.
func (c *Call) CallerUnknown() bool {
	switch v := c.CallerID().(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == "" || v == "0" || v == UnknownCaller
	case json.Number:
		f, err := v.Float64()
		return err == nil && f == 0
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int() == 0
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return rv.Uint() == 0
		case reflect.Float32, reflect.Float64:
			return rv.Float() == 0
		}
		return false
	}
}

// LoadResult attaches the result of the current call step, replacing any
// previous one.
func (c *Call) LoadResult(result *Result) {
	c.result = result
}

// Result returns the result attached for this request, or nil.
func (c *Call) Result() *Result {
	return c.result
}

// ResultValue returns the value of the named action in the current result.
// When the action is absent it returns def, or ErrMissingRequiredField if
// require is set.
func (c *Call) ResultValue(field string, def any, require bool) (any, error) {
	if c.result != nil {
		if a, ok := c.result.Actions.Find(field); ok {
			return a.Value, nil
		}
	}
	if require {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredField, field)
	}
	return def, nil
}

// MarshalJSON encodes the persisted form of the call. The result is left out.
func (c *Call) MarshalJSON() ([]byte, error) {
	return json.Marshal(persistedCall{Session: c.session})
}

// UnmarshalJSON restores a call from its persisted form.
func (c *Call) UnmarshalJSON(data []byte) error {
	var p persistedCall
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("tropo: decode call: %w", err)
	}
	if p.Session == nil {
		p.Session = make(map[string]any)
	}
	c.session = p.Session
	c.result = nil
	return nil
}
