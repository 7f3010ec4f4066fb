package domain

import (
	"context"
	"fmt"
)

// Store is the persistence the Service reads from and writes through.
// RunInTransaction commits when fn returns nil and rolls back otherwise.
type Store interface {
	ClientReader
	ListClients(ctx context.Context, filter Status) ([]Client, error)
	RunInTransaction(ctx context.Context, fn func(Tx) error) error
}

// UpdateResult is the outcome of Service.Update.
type UpdateResult struct {
	Mode    Mode
	Clients []Client
}

// Service exposes the board operations: listing, lookup and re-ranking.
type Service struct {
	store     Store
	reorderer Reorderer
}

func NewService(store Store, policy GapPolicy) *Service {
	return &Service{store: store, reorderer: Reorderer{Policy: policy}}
}

// List returns every client, or only the clients of one swimlane when
// status is non-empty.
func (s *Service) List(ctx context.Context, status string) ([]Client, error) {
	var filter Status
	if status != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, err
		}
		filter = st
	}
	clients, err := s.store.ListClients(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

// Get returns the client identified by rawID.
func (s *Service) Get(ctx context.Context, rawID string) (Client, error) {
	return ValidateIdentifier(ctx, s.store, rawID)
}

// Update validates rawID, applies u inside one transaction and returns the
// full collection as it stands after the commit.
func (s *Service) Update(ctx context.Context, rawID string, u Update) (UpdateResult, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return UpdateResult{}, err
	}
	var mode Mode
	err = s.store.RunInTransaction(ctx, func(tx Tx) error {
		c, err := ValidateIdentifier(ctx, tx, rawID)
		if err != nil {
			return err
		}
		mode, err = s.reorderer.Apply(ctx, tx, c, u)
		return err
	})
	if err != nil {
		return UpdateResult{}, err
	}
	clients, err := s.store.ListClients(ctx, "")
	if err != nil {
		return UpdateResult{}, fmt.Errorf("list clients after update of %d: %w", id, err)
	}
	return UpdateResult{Mode: mode, Clients: clients}, nil
}
