package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/msomdec/modfusion-console/internal/domain"
)

// ActivityRepository implements domain.ActivityRepository using SQLite.
type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db.SqlDB}
}

func (r *ActivityRepository) Append(ctx context.Context, entry *domain.ActivityEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, kind, user_id, email, first_name, last_name, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Kind), entry.UserID, entry.Email, entry.FirstName, entry.LastName, entry.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}

func (r *ActivityRepository) ListByKind(ctx context.Context, kind domain.ActivityKind, limit int) ([]domain.ActivityEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, user_id, email, first_name, last_name, at
		 FROM activity_log WHERE kind = ? ORDER BY seq DESC LIMIT ?`,
		string(kind), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query activity log: %w", err)
	}
	defer rows.Close()

	entries := []domain.ActivityEntry{}
	for rows.Next() {
		var (
			e    domain.ActivityEntry
			kind string
		)
		if err := rows.Scan(&e.ID, &kind, &e.UserID, &e.Email, &e.FirstName, &e.LastName, &e.At); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		e.Kind = domain.ActivityKind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity log: %w", err)
	}
	return entries, nil
}
