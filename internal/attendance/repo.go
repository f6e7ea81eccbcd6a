package attendance

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Attempt is one recorded check-in attempt.
type Attempt struct {
	ID          string    `json:"id"`
	User        string    `json:"user"`
	ScheduledAt time.Time `json:"scheduled_at"`
	RetriesUsed int       `json:"retries_used"`
	Outcome     string    `json:"outcome"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository persists attempt history in Postgres. A nil *Repository is a
// no-op so history stays optional.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo over an open connection.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// InsertAttempt writes a finished attempt; it fills in the ID and timestamp.
func (r *Repository) InsertAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	if r == nil {
		return a, nil
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.ScheduledAt.IsZero() {
		a.ScheduledAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attempts (id, user_name, scheduled_at, retries_used, outcome, detail)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, a.ID, a.User, a.ScheduledAt, a.RetriesUsed, a.Outcome, a.Detail)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

// ListAttempts returns recent attempts, newest first, optionally filtered by
// user.
func (r *Repository) ListAttempts(ctx context.Context, user string, limit int) ([]Attempt, error) {
	if r == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_name, scheduled_at, retries_used, outcome, detail, created_at
		FROM attempts`
	args := []any{}
	if user != "" {
		query += ` WHERE user_name = $1`
		args = append(args, user)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.User, &a.ScheduledAt, &a.RetriesUsed, &a.Outcome, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
