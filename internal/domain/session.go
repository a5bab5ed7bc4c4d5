package domain

import (
	"context"
	"time"
)

// SessionEvent is delivered to observers whenever the session slot changes.
// User is nil after a logout.
type SessionEvent struct {
	User *User
	At   time.Time
}

// SessionRepository persists the single current-session slot. The slot holds
// a snapshot of the user record at the time of the write.
type SessionRepository interface {
	// Get returns nil, nil when the slot is empty.
	Get(ctx context.Context) (*User, error)
	Set(ctx context.Context, user *User) error
	// Clear reports whether a session was present.
	Clear(ctx context.Context) (bool, error)
}
