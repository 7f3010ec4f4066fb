package api

import (
	"context"

	"github.com/petabite/shiptivitas-2/domain"
)

// Clients is the board surface the handlers drive.
type Clients interface {
	List(ctx context.Context, status string) ([]domain.Client, error)
	Get(ctx context.Context, id string) (domain.Client, error)
	Update(ctx context.Context, id string, upd domain.Update) (domain.UpdateResult, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
