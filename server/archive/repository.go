package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS archive (
	rowid INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	source TEXT NOT NULL,
	kind TEXT NOT NULL,
	format_id TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	success INTEGER NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archive_created ON archive(created_at);
`

type Repository struct {
	db *sql.DB
}

// NewRepository creates the archive table if missing.
func NewRepository(db *sql.DB) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create archive schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Archive(ctx context.Context, e *Entity) error {
	if e.Id == "" {
		e.Id = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO archive (id, title, source, kind, format_id, path, size, success, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Id, e.Title, e.Source, e.Kind, e.FormatID, e.Path, e.Size, e.Success, e.Reason, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert archive entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first, starting after the
// cursor. A cursor of 0 starts from the newest entry.
func (r *Repository) List(ctx context.Context, cursor int64, limit int) ([]Entity, int64, error) {
	if cursor <= 0 {
		cursor = 1<<63 - 1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT rowid, id, title, source, kind, format_id, path, size, success, reason, created_at
		FROM archive
		WHERE rowid < ?
		ORDER BY rowid DESC
		LIMIT ?`,
		cursor, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	entities := make([]Entity, 0, limit)
	var next int64
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&next, &e.Id, &e.Title, &e.Source, &e.Kind, &e.FormatID,
			&e.Path, &e.Size, &e.Success, &e.Reason, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan archive entry: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(entities) < limit {
		next = 0
	}
	return entities, next, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM archive WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete archive entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
