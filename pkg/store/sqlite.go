package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/itohio/humidistat/pkg/sample"
)

const sqliteDriverName = "sqlite"

const schemaSamples = `
CREATE TABLE IF NOT EXISTS samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    received_at INTEGER NOT NULL,
    elapsed_ms INTEGER NOT NULL,
    valve_1 BOOLEAN NOT NULL,
    valve_2 BOOLEAN NOT NULL,
    pump BOOLEAN NOT NULL,
    humi_1 REAL,
    temp_1 REAL,
    pres_1 REAL,
    humi_2 REAL,
    temp_2 REAL,
    pres_2 REAL
);
`

const schemaSamplesIndex = `
CREATE INDEX IF NOT EXISTS idx_samples_received_at ON samples (received_at);
`

// SQLite stores samples in a SQLite database. NaN readings are stored as NULL.
// Every SQLite value tags its rows with its own run ID so that captures of
// separate sessions can be told apart.
type SQLite struct {
	db  *sql.DB
	run string
}

var _ Sink = (*SQLite)(nil)

// OpenSQLite opens/creates a SQLite DB file and ensures tables exist.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return NewSQLite(db, ""), nil
}

// NewSQLite wraps an open database with the samples schema in place.
// An empty run gets a fresh random ID.
func NewSQLite(db *sql.DB, run string) *SQLite {
	if run == "" {
		run = uuid.NewString()
	}
	return &SQLite{db: db, run: run}
}

// Run returns the ID tagging the rows appended through s.
func (s *SQLite) Run() string {
	return s.run
}

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{schemaSamples, schemaSamplesIndex} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}

// Append inserts a sample.
func (s *SQLite) Append(ctx context.Context, smp sample.Sample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO samples (run_id, received_at, elapsed_ms, valve_1, valve_2, pump,
			humi_1, temp_1, pres_1, humi_2, temp_2, pres_2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.run,
		smp.Timestamp.UnixNano(),
		smp.Elapsed.Milliseconds(),
		smp.Valve1,
		smp.Valve2,
		smp.Pump,
		nullable(smp.Humidity[0]),
		nullable(smp.Temperature[0]),
		nullable(smp.Pressure[0]),
		nullable(smp.Humidity[1]),
		nullable(smp.Temperature[1]),
		nullable(smp.Pressure[1]),
	)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// List returns samples received in [from, to] (inclusive), ordered ASC.
// Zero bounds are open.
func (s *SQLite) List(ctx context.Context, from, to time.Time) ([]sample.Sample, error) {
	q := `SELECT received_at, elapsed_ms, valve_1, valve_2, pump,
		humi_1, temp_1, pres_1, humi_2, temp_2, pres_2 FROM samples WHERE 1 = 1`
	var args []any
	if !from.IsZero() {
		q += " AND received_at >= ?"
		args = append(args, from.UnixNano())
	}
	if !to.IsZero() {
		q += " AND received_at <= ?"
		args = append(args, to.UnixNano())
	}
	q += " ORDER BY received_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	out := make([]sample.Sample, 0, 64)
	for rows.Next() {
		var (
			receivedAt, elapsed int64
			smp                 sample.Sample
			vals                [6]sql.NullFloat64
		)
		if err := rows.Scan(&receivedAt, &elapsed, &smp.Valve1, &smp.Valve2, &smp.Pump,
			&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5]); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		smp.Timestamp = time.Unix(0, receivedAt)
		smp.Elapsed = time.Duration(elapsed) * time.Millisecond
		for ch := 0; ch < 2; ch++ {
			smp.Humidity[ch] = fromNullable(vals[3*ch])
			smp.Temperature[ch] = fromNullable(vals[3*ch+1])
			smp.Pressure[ch] = fromNullable(vals[3*ch+2])
		}
		out = append(out, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return out, nil
}

// Runs returns the distinct run IDs in order of their first sample.
func (s *SQLite) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM samples GROUP BY run_id ORDER BY MIN(id) ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var run string
		if err := rows.Scan(&run); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// History lists samples in [from, to] decimated to at most maxPoints.
func (s *SQLite) History(ctx context.Context, from, to time.Time, maxPoints int) ([]sample.Sample, error) {
	samples, err := s.List(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return sample.DownsampleSamples(nil, samples, maxPoints), nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func nullable(v float32) sql.NullFloat64 {
	if math32.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: float64(v), Valid: true}
}

func fromNullable(v sql.NullFloat64) float32 {
	if !v.Valid {
		return math32.NaN()
	}
	return float32(v.Float64)
}
