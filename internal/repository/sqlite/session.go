package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/modfusion-console/internal/domain"
)

// SessionRepository stores the current-session slot as a JSON snapshot in a
// single-row table.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db.SqlDB}
}

// sessionSnapshot is the serialized form of the slot. The password hash is
// never copied into it.
type sessionSnapshot struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`
	Avatar      string     `json:"avatar,omitempty"`
	Role        string     `json:"role"`
}

func (r *SessionRepository) Get(ctx context.Context) (*domain.User, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT user_json FROM session_slot WHERE slot = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query session slot: %w", err)
	}

	var snap sessionSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode session slot: %w", err)
	}
	return &domain.User{
		ID:          snap.ID,
		Email:       snap.Email,
		FirstName:   snap.FirstName,
		LastName:    snap.LastName,
		CreatedAt:   snap.CreatedAt,
		LastLoginAt: snap.LastLoginAt,
		Avatar:      snap.Avatar,
		Role:        domain.Role(snap.Role),
	}, nil
}

func (r *SessionRepository) Set(ctx context.Context, user *domain.User) error {
	raw, err := json.Marshal(sessionSnapshot{
		ID:          user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
		Avatar:      user.Avatar,
		Role:        string(user.Role),
	})
	if err != nil {
		return fmt.Errorf("encode session slot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO session_slot (slot, user_json, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET user_json = excluded.user_json, updated_at = excluded.updated_at
	`, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write session slot: %w", err)
	}
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM session_slot`)
	if err != nil {
		return false, fmt.Errorf("clear session slot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
