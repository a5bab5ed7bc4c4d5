package domain

import (
	"context"
	"time"
)

// CodeRecord is a pending one-time code issued for an email address.
type CodeRecord struct {
	Email     string
	Secret    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Attempts  int
}

// CodeStore keeps at most one pending record per email.
type CodeStore interface {
	// Save replaces any record for the same email.
	Save(ctx context.Context, record *CodeRecord) error
	// Get returns ErrNotFound when no live record exists.
	Get(ctx context.Context, email string) (*CodeRecord, error)
	// IncrementAttempts returns the new attempt count.
	IncrementAttempts(ctx context.Context, email string) (int, error)
	Delete(ctx context.Context, email string) error
}

// CodeSender delivers a verification code out-of-band.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string, expiresAt time.Time) error
}
