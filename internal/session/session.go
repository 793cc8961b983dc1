// Package session provides the server-side session storage used to carry
// call state between Tropo webhook requests. A session is a named namespace
// of key/value slots that can be read, written and destroyed as a whole.
// Redis backs production deployments; the in-memory provider serves tests
// and single-process development.
package session

import "context"

// Store is one named session namespace.
type Store interface {
	// Name returns the namespace this store reads and writes.
	Name() string

	// Get returns the value stored under key, or nil if the slot is empty.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key and refreshes the session expiry.
	Set(ctx context.Context, key string, value []byte) error

	// Destroy removes every slot in the namespace. Destroying an empty or
	// unknown session is not an error.
	Destroy(ctx context.Context) error

	// All returns a snapshot of every slot in the namespace.
	All(ctx context.Context) (map[string][]byte, error)
}

// Provider opens session namespaces by name.
type Provider interface {
	Open(name string) Store
}
