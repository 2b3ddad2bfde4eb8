package criteria

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Default tables per driver. AACT keeps eligibilities in the ctgov schema.
const (
	DefaultPostgresTable = "ctgov.eligibilities"
	DefaultSQLiteTable   = "eligibilities"
)

// Config selects the relational store holding eligibility criteria.
type Config struct {
	Driver string
	DSN    string
	Table  string
}

// Repo reads eligibility criteria text by NCT id.
type Repo struct {
	db     *sqlx.DB
	driver string
	table  string
}

// Open connects to the configured store. SQLite databases get their table
// created when missing; Postgres is treated as an existing AACT mirror.
func Open(ctx context.Context, cfg Config) (*Repo, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported criteria driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("criteria dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = DefaultSQLiteTable
		if driver == DriverPostgres {
			table = DefaultPostgresTable
		}
	}
	if !validTable(table) {
		return nil, fmt.Errorf("invalid criteria table %q", table)
	}

	conn, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
	}

	r := &Repo{db: conn, driver: driver, table: table}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		if err := r.ensureSchema(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return r, nil
}

func (r *Repo) ensureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS ` + r.table + ` (
	nct_id   TEXT PRIMARY KEY,
	criteria TEXT NOT NULL DEFAULT ''
)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", r.table, err)
	}
	return nil
}

// GetCriteria returns the raw criteria text for a trial, or "" when the trial
// has no row.
func (r *Repo) GetCriteria(ctx context.Context, nctID string) (string, error) {
	if nctID == "" {
		return "", nil
	}
	q := r.db.Rebind(`SELECT criteria FROM ` + r.table + ` WHERE nct_id = ? LIMIT 1`)

	var text sql.NullString
	if err := r.db.GetContext(ctx, &text, q, nctID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("select criteria %s: %w", nctID, err)
	}
	return text.String, nil
}

// PutCriteria upserts the criteria text for a trial.
func (r *Repo) PutCriteria(ctx context.Context, nctID, criteria string) error {
	q := r.db.Rebind(`INSERT INTO ` + r.table + ` (nct_id, criteria) VALUES (?, ?)
ON CONFLICT (nct_id) DO UPDATE SET criteria = excluded.criteria`)
	if _, err := r.db.ExecContext(ctx, q, nctID, criteria); err != nil {
		return fmt.Errorf("upsert criteria %s: %w", nctID, err)
	}
	return nil
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", r.driver, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Repo) Close() error {
	return r.db.Close()
}

// validTable accepts a plain identifier optionally qualified by a schema.
func validTable(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for i, c := range p {
			isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
			isDigit := c >= '0' && c <= '9'
			if !isAlpha && !(isDigit && i > 0) {
				return false
			}
		}
	}
	return true
}
