package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/petabite/shiptivitas-2/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var schemas = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			description TEXT,
			status TEXT NOT NULL CHECK (status IN ('backlog', 'in-progress', 'complete')),
			priority INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS clients_status_priority ON clients (status, priority)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS clients (
			id BIGSERIAL PRIMARY KEY,
			name TEXT,
			description TEXT,
			status TEXT NOT NULL CHECK (status IN ('backlog', 'in-progress', 'complete')),
			priority INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS clients_status_priority ON clients (status, priority)`,
	},
}

// Store provides access to the clients table.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database, applies the schema and returns a Store that
// owns the handle until Close.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One long-lived connection; it also serializes transactions.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db, driver: driver}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ListClients(ctx context.Context, filter domain.Status) ([]domain.Client, error) {
	return s.conn(s.db).ListClients(ctx, filter)
}

func (s *Store) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	return s.conn(s.db).GetClient(ctx, id)
}

// RunInTransaction runs fn inside a database transaction. The transaction is
// committed when fn returns nil and rolled back on error or panic.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()
	if err = fn(s.conn(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn issues the clients queries against a database or a transaction.
type conn struct {
	q      queryer
	driver string
}

func (s *Store) conn(q queryer) *conn {
	return &conn{q: q, driver: s.driver}
}

const clientColumns = "id, name, description, status, priority"

func (c *conn) ListClients(ctx context.Context, filter domain.Status) ([]domain.Client, error) {
	if filter == "" {
		return c.queryClients(ctx, "SELECT "+clientColumns+" FROM clients ORDER BY id")
	}
	return c.queryClients(ctx, "SELECT "+clientColumns+" FROM clients WHERE status = ? ORDER BY id", string(filter))
}

func (c *conn) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	row := c.q.QueryRowContext(ctx, c.rebind("SELECT "+clientColumns+" FROM clients WHERE id = ? LIMIT 1"), id)
	cl, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

func (c *conn) ClientsFrom(ctx context.Context, status domain.Status, minPriority int) ([]domain.Client, error) {
	return c.queryClients(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE status = ? AND priority >= ? ORDER BY priority DESC",
		string(status), minPriority)
}

func (c *conn) MaxPriority(ctx context.Context, status domain.Status) (int, error) {
	var last sql.NullInt64
	err := c.q.QueryRowContext(ctx, c.rebind("SELECT MAX(priority) FROM clients WHERE status = ?"), string(status)).Scan(&last)
	if err != nil {
		return 0, err
	}
	if !last.Valid {
		return 0, nil
	}
	return int(last.Int64), nil
}

func (c *conn) PriorityTaken(ctx context.Context, status domain.Status, priority int) (bool, error) {
	var n int
	err := c.q.QueryRowContext(ctx,
		c.rebind("SELECT COUNT(*) FROM clients WHERE status = ? AND priority = ?"),
		string(status), priority).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *conn) SetPriority(ctx context.Context, id int64, priority int) error {
	_, err := c.q.ExecContext(ctx, c.rebind("UPDATE clients SET priority = ? WHERE id = ?"), priority, id)
	return err
}

func (c *conn) SetStatusAndPriority(ctx context.Context, id int64, status domain.Status, priority int) error {
	_, err := c.q.ExecContext(ctx,
		c.rebind("UPDATE clients SET status = ?, priority = ? WHERE id = ?"),
		string(status), priority, id)
	return err
}

func (c *conn) queryClients(ctx context.Context, query string, args ...any) ([]domain.Client, error) {
	rows, err := c.q.QueryContext(ctx, c.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	clients := []domain.Client{}
	for rows.Next() {
		cl, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, cl)
	}
	return clients, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(sc scanner) (domain.Client, error) {
	var (
		cl          domain.Client
		name, descr sql.NullString
		status      string
	)
	if err := sc.Scan(&cl.ID, &name, &descr, &status, &cl.Priority); err != nil {
		return domain.Client{}, err
	}
	cl.Name = name.String
	cl.Description = descr.String
	cl.Status = domain.Status(status)
	return cl, nil
}

// rebind rewrites ? placeholders into $n for Postgres.
func (c *conn) rebind(query string) string {
	if c.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
