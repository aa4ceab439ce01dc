package audit

import "context"

// Store persists audit events. Append-only: implementations must never mutate
// a stored event.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can read events back (memory store,
// used by tests and the local profile).
type Lister interface {
	List(ctx context.Context, limit int) ([]Event, error)
}
