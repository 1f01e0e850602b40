package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/eventscope/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	platform    TEXT NOT NULL,
	data        TEXT NOT NULL,
	indexed     INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_events_platform ON events(platform);
CREATE INDEX IF NOT EXISTS idx_events_indexed ON events(indexed);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateEvent(ctx context.Context, event model.Event) (*model.Event, error) {
	event.ID = uuid.New().String()
	event.CreatedAt = time.Now().UTC()
	event.Indexed = false

	data, err := json.Marshal(event)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal event")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, name, description, platform, data, indexed, created_at) VALUES (?, ?, ?, ?, ?, 0, ?)`,
		event.ID, event.Name, event.Description, event.Platform, string(data), event.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert event")
	}

	return &event, nil
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data, indexed FROM events WHERE id = ?`, id,
	)

	var data string
	var indexed bool
	if err := row.Scan(&data, &indexed); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(model.ErrNotFound, "event %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get event %s", id)
	}

	var event model.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal event %s", id)
	}
	event.Indexed = indexed
	return &event, nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	query := `SELECT data, indexed FROM events WHERE 1=1`
	var args []any

	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, filter.Platform)
	}
	if filter.Indexed != nil {
		query += ` AND indexed = ?`
		args = append(args, *filter.Indexed)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *SQLiteStore) MarkEventIndexed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE events SET indexed = 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark event indexed %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "event %s", id)
	}
	return nil
}

func (s *SQLiteStore) SearchEvents(ctx context.Context, query string, limit int) ([]model.Event, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	sqlQuery := `SELECT data, indexed FROM events WHERE`
	var args []any
	for i, term := range terms {
		if i > 0 {
			sqlQuery += ` OR`
		}
		sqlQuery += ` (lower(name) LIKE ? OR lower(description) LIKE ?)`
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}
	sqlQuery += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search events")
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		var data string
		var indexed bool
		if err := rows.Scan(&data, &indexed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event row")
		}
		var event model.Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal event row")
		}
		event.Indexed = indexed
		events = append(events, event)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: iterate event rows")
}
