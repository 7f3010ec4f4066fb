package storage

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/petabite/shiptivitas-2/domain"
)

type seedFile struct {
	Clients []domain.Client `yaml:"clients"`
}

// LoadSeedFile reads the clients listed in a YAML seed document.
func LoadSeedFile(path string) ([]domain.Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	for i, c := range f.Clients {
		if _, err := domain.ParseStatus(string(c.Status)); err != nil {
			return nil, fmt.Errorf("seed client %d: %w", i, err)
		}
		if err := domain.ValidatePriority(c.Priority); err != nil {
			return nil, fmt.Errorf("seed client %d: %w", i, err)
		}
	}
	return f.Clients, nil
}

// Seed inserts clients in a single transaction. Clients with a zero ID get
// one assigned by the database.
func (s *Store) Seed(ctx context.Context, clients []domain.Client) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c := s.conn(tx)
	for _, cl := range clients {
		if cl.ID > 0 {
			_, err = tx.ExecContext(ctx,
				c.rebind("INSERT INTO clients ("+clientColumns+") VALUES (?, ?, ?, ?, ?)"),
				cl.ID, cl.Name, cl.Description, string(cl.Status), cl.Priority)
		} else {
			_, err = tx.ExecContext(ctx,
				c.rebind("INSERT INTO clients (name, description, status, priority) VALUES (?, ?, ?, ?)"),
				cl.Name, cl.Description, string(cl.Status), cl.Priority)
		}
		if err != nil {
			return fmt.Errorf("insert client %q: %w", cl.Name, err)
		}
	}
	if s.driver == DriverPostgres {
		// Explicit ids do not advance the sequence.
		if _, err := tx.ExecContext(ctx,
			`SELECT setval(pg_get_serial_sequence('clients', 'id'), COALESCE((SELECT MAX(id) FROM clients), 1))`); err != nil {
			return fmt.Errorf("sync id sequence: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
