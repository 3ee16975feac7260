// Package sqlstore persists the fact set in a SQL table. Supported drivers
// are "sqlite" (modernc.org/sqlite) and "mysql" (go-sql-driver/mysql).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	defaultTable = "registered_facts"
)

// Config describes the SQL connection
type Config struct {
	Driver string
	DSN    string
	// Table defaults to registered_facts.
	Table string
}

// Store is a facts.Backend over database/sql.
type Store struct {
	db     *sql.DB
	driver string
	table  string
}

// Open connects, pings and creates the fact table if needed.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, core.Configf("sql store DSN is empty")
	}
	switch cfg.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		return nil, core.Configf("unsupported sql driver %q", cfg.Driver)
	}
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	if !validIdentifier(table) {
		return nil, core.Configf("invalid table name %q", table)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, core.Wrap(core.ErrStorage, err, "open %s", cfg.Driver)
	}
	if cfg.Driver == DriverSQLite {
		// An in-memory database exists per connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, core.Wrap(core.ErrStorage, err, "ping %s", cfg.Driver)
	}

	s := &Store{db: db, driver: cfg.Driver, table: table}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	fact CHAR(66) NOT NULL PRIMARY KEY,
	created_at BIGINT NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return core.Wrap(core.ErrStorage, err, "create table %s", s.table)
	}
	return nil
}

// LoadFacts returns every persisted fact
func (s *Store) LoadFacts(ctx context.Context) ([]core.Fact, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT fact FROM %s ORDER BY created_at, fact", s.table))
	if err != nil {
		return nil, core.Wrap(core.ErrStorage, err, "query facts")
	}
	defer rows.Close()

	var out []core.Fact
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, core.Wrap(core.ErrStorage, err, "scan fact")
		}
		f, err := core.ParseFact(hex)
		if err != nil {
			return nil, core.Wrap(core.ErrStorage, err, "corrupt fact row")
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Wrap(core.ErrStorage, err, "iterate facts")
	}
	return out, nil
}

// SaveFact inserts fact; an existing row is left untouched.
func (s *Store) SaveFact(ctx context.Context, fact core.Fact) error {
	verb := "INSERT OR IGNORE"
	if s.driver == DriverMySQL {
		verb = "INSERT IGNORE"
	}
	stmt := fmt.Sprintf("%s INTO %s (fact, created_at) VALUES (?, ?)", verb, s.table)
	if _, err := s.db.ExecContext(ctx, stmt, fact.Hex(), time.Now().UnixNano()); err != nil {
		return core.Wrap(core.ErrStorage, err, "insert fact")
	}
	return nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

func validIdentifier(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return name != ""
}
