// Package postgres stores dock commands in a single postgres table so they
// survive restarts and can be shared by several relay replicas.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/solar-synergy/dockrelay/internal/relay/core"
	"github.com/solar-synergy/dockrelay/pkg/dock"
	"github.com/solar-synergy/dockrelay/pkg/log"
	"github.com/solar-synergy/dockrelay/pkg/options"
)

var _ core.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS dock_commands (
	dock_id         TEXT PRIMARY KEY,
	state           TEXT NOT NULL,
	version         BIGINT NOT NULL,
	updated_at      TIMESTAMPTZ,
	updated_by      TEXT NOT NULL DEFAULT '',
	applied_state   TEXT,
	applied_version BIGINT,
	applied_at      TIMESTAMPTZ
)`

const selectColumns = `dock_id, state, version, updated_at, updated_by, applied_state, applied_version, applied_at`

type Store struct {
	db *sql.DB
}

// New opens the database, waits for it to accept connections and creates
// the table.
func New(ctx context.Context, opts *options.PostgresOptions) (*Store, error) {
	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	s := &Store{db: db}
	if err := connect(ctx, s.Ping, opts.ConnectAttempts, opts.ConnectRetryDelay); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create dock_commands table: %w", err)
	}

	log.Info("Postgres command store ready")
	return s, nil
}

// connect calls ping up to attempts times, delay apart, and returns the last
// error if the database never answered.
func connect(ctx context.Context, ping func(context.Context) error, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		log.Warn("Failed to connect to postgres", "attempt", i, "attempts", attempts, "error", err)
		if i == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}
	}
	return fmt.Errorf("postgres unreachable after %d attempts: %w", attempts, err)
}

func (s *Store) Get(ctx context.Context, dockID string) (*dock.Command, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM dock_commands WHERE dock_id = $1`, dockID)
	cmd, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dock.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select dock %s: %w", dockID, err)
	}
	return cmd, nil
}

func (s *Store) Set(ctx context.Context, req dock.WriteRequest) (*dock.Command, error) {
	var out *dock.Command
	err := s.withLockedRow(ctx, req.DockID, func(tx *sql.Tx, cur *dock.Command) (bool, error) {
		next, err := core.ApplyWrite(cur, req)
		if err != nil {
			return false, err
		}
		out = next
		return true, update(ctx, tx, next)
	})
	return out, err
}

func (s *Store) Ack(ctx context.Context, dockID string, ack dock.Ack) (*dock.Command, bool, error) {
	var (
		out      *dock.Command
		recorded bool
	)
	err := s.withLockedRow(ctx, dockID, func(tx *sql.Tx, cur *dock.Command) (bool, error) {
		next, ok, err := core.ApplyAck(cur, ack)
		if err != nil {
			return false, err
		}
		out, recorded = next, ok
		if !ok {
			return false, nil
		}
		return true, update(ctx, tx, next)
	})
	return out, recorded, err
}

func (s *Store) List(ctx context.Context) ([]*dock.Command, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM dock_commands ORDER BY dock_id`)
	if err != nil {
		return nil, fmt.Errorf("list docks: %w", err)
	}
	defer rows.Close()

	var out []*dock.Command
	for rows.Next() {
		cmd, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dock: %w", err)
		}
		out = append(out, cmd)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withLockedRow runs fn in a transaction holding the row lock of dockID.
// A missing row is created at the cold-start default first; fn returning
// false rolls everything back, including that insert.
func (s *Store) withLockedRow(ctx context.Context, dockID string, fn func(tx *sql.Tx, cur *dock.Command) (bool, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO dock_commands (dock_id, state, version) VALUES ($1, $2, 0) ON CONFLICT (dock_id) DO NOTHING`,
		dockID, string(dock.DefaultState),
	); err != nil {
		return fmt.Errorf("insert dock %s: %w", dockID, err)
	}

	cur, err := scan(tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM dock_commands WHERE dock_id = $1 FOR UPDATE`, dockID))
	if err != nil {
		return fmt.Errorf("lock dock %s: %w", dockID, err)
	}

	commit, err := fn(tx, cur)
	if err != nil || !commit {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dock %s: %w", dockID, err)
	}
	return nil
}

func update(ctx context.Context, tx *sql.Tx, c *dock.Command) error {
	var (
		appliedState   sql.NullString
		appliedVersion sql.NullInt64
		appliedAt      sql.NullTime
	)
	if c.Applied != nil {
		appliedState = sql.NullString{String: string(c.Applied.State), Valid: true}
		appliedVersion = sql.NullInt64{Int64: int64(c.Applied.Version), Valid: true}
		appliedAt = sql.NullTime{Time: c.Applied.AppliedAt, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE dock_commands
		SET state = $2, version = $3, updated_at = $4, updated_by = $5,
		    applied_state = $6, applied_version = $7, applied_at = $8
		WHERE dock_id = $1`,
		c.DockID, string(c.State), int64(c.Version), nullTime(c), c.UpdatedBy,
		appliedState, appliedVersion, appliedAt,
	)
	if err != nil {
		return fmt.Errorf("update dock %s: %w", c.DockID, err)
	}
	return nil
}

func nullTime(c *dock.Command) sql.NullTime {
	return sql.NullTime{Time: c.UpdatedAt, Valid: !c.UpdatedAt.IsZero()}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*dock.Command, error) {
	var (
		c              dock.Command
		state          string
		version        int64
		updatedAt      sql.NullTime
		appliedState   sql.NullString
		appliedVersion sql.NullInt64
		appliedAt      sql.NullTime
	)
	if err := row.Scan(&c.DockID, &state, &version, &updatedAt, &c.UpdatedBy, &appliedState, &appliedVersion, &appliedAt); err != nil {
		return nil, err
	}

	c.State = dock.State(state)
	c.Version = uint64(version)
	if updatedAt.Valid {
		c.UpdatedAt = updatedAt.Time.UTC()
	}
	if appliedState.Valid {
		c.Applied = &dock.Ack{
			State:     dock.State(appliedState.String),
			Version:   uint64(appliedVersion.Int64),
			AppliedAt: appliedAt.Time.UTC(),
		}
	}
	return &c, nil
}
