package domain

import (
	"context"
	"time"
)

type ActivityKind string

const (
	ActivityLogin    ActivityKind = "login"
	ActivityDeletion ActivityKind = "deletion"
)

// ActivityEntry is one line of the admin console's login or deletion log.
type ActivityEntry struct {
	ID        string
	Kind      ActivityKind
	UserID    string
	Email     string
	FirstName string
	LastName  string
	At        time.Time
}

type ActivityRepository interface {
	Append(ctx context.Context, entry *ActivityEntry) error
	// ListByKind returns entries newest first, at most limit of them.
	ListByKind(ctx context.Context, kind ActivityKind, limit int) ([]ActivityEntry, error)
}
