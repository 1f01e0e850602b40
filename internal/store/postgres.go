package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/eventscope/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_event":       `INSERT INTO events (id, name, description, platform, data, indexed, created_at) VALUES ($1, $2, $3, $4, $5, false, $6)`,
	"get_event":          `SELECT data, indexed FROM events WHERE id = $1`,
	"mark_event_indexed": `UPDATE events SET indexed = true WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	platform    TEXT NOT NULL,
	data        JSONB NOT NULL,
	indexed     BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_events_platform ON events(platform);
CREATE INDEX IF NOT EXISTS idx_events_indexed ON events(indexed);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateEvent(ctx context.Context, event model.Event) (*model.Event, error) {
	event.ID = uuid.New().String()
	event.CreatedAt = time.Now().UTC()
	event.Indexed = false

	data, err := json.Marshal(event)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal event")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO events (id, name, description, platform, data, indexed, created_at) VALUES ($1, $2, $3, $4, $5, false, $6)`,
		event.ID, event.Name, event.Description, event.Platform, data, event.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert event")
	}

	return &event, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var data []byte
	var indexed bool

	err := s.pool.QueryRow(ctx,
		`SELECT data, indexed FROM events WHERE id = $1`, id,
	).Scan(&data, &indexed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "event %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get event %s", id)
	}

	var event model.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal event %s", id)
	}
	event.Indexed = indexed
	return &event, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	query := `SELECT data, indexed FROM events WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Platform != "" {
		query += fmt.Sprintf(` AND platform = $%d`, argIdx)
		args = append(args, filter.Platform)
		argIdx++
	}
	if filter.Indexed != nil {
		query += fmt.Sprintf(` AND indexed = $%d`, argIdx)
		args = append(args, *filter.Indexed)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	return scanPgEvents(rows)
}

func (s *PostgresStore) MarkEventIndexed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE events SET indexed = true WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark event indexed %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "event %s", id)
	}
	return nil
}

func (s *PostgresStore) SearchEvents(ctx context.Context, query string, limit int) ([]model.Event, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	sqlQuery := `SELECT data, indexed FROM events WHERE false`
	args := []any{}
	argIdx := 1
	for _, term := range terms {
		sqlQuery += fmt.Sprintf(` OR name ILIKE $%d OR description ILIKE $%d`, argIdx, argIdx)
		args = append(args, "%"+term+"%")
		argIdx++
	}
	sqlQuery += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search events")
	}
	defer rows.Close()

	return scanPgEvents(rows)
}

func scanPgEvents(rows pgx.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		var data []byte
		var indexed bool
		if err := rows.Scan(&data, &indexed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event row")
		}
		var event model.Event
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal event row")
		}
		event.Indexed = indexed
		events = append(events, event)
	}
	return events, eris.Wrap(rows.Err(), "postgres: iterate event rows")
}
