package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
)

// board is an in-memory clients table that enforces unique ranks per
// swimlane, like the unique index of the real schema.
type board struct {
	clients map[int64]Client
	failID  int64
	writes  int
}

func newBoard(cs ...Client) *board {
	b := &board{clients: map[int64]Client{}}
	for _, c := range cs {
		b.clients[c.ID] = c
	}
	return b
}

func (b *board) clone() *board {
	out := &board{clients: make(map[int64]Client, len(b.clients)), failID: b.failID}
	for id, c := range b.clients {
		out.clients[id] = c
	}
	return out
}

func (b *board) GetClient(ctx context.Context, id int64) (*Client, error) {
	c, ok := b.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (b *board) ListClients(ctx context.Context, filter Status) ([]Client, error) {
	out := []Client{}
	for _, c := range b.clients {
		if filter == "" || c.Status == filter {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *board) ClientsFrom(ctx context.Context, status Status, minPriority int) ([]Client, error) {
	out := []Client{}
	for _, c := range b.clients {
		if c.Status == status && c.Priority >= minPriority {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *board) MaxPriority(ctx context.Context, status Status) (int, error) {
	last := 0
	for _, c := range b.clients {
		if c.Status == status && c.Priority > last {
			last = c.Priority
		}
	}
	return last, nil
}

func (b *board) PriorityTaken(ctx context.Context, status Status, priority int) (bool, error) {
	for _, c := range b.clients {
		if c.Status == status && c.Priority == priority {
			return true, nil
		}
	}
	return false, nil
}

func (b *board) SetPriority(ctx context.Context, id int64, priority int) error {
	c, ok := b.clients[id]
	if !ok {
		return fmt.Errorf("client %d missing", id)
	}
	return b.write(c, c.Status, priority)
}

func (b *board) SetStatusAndPriority(ctx context.Context, id int64, status Status, priority int) error {
	c, ok := b.clients[id]
	if !ok {
		return fmt.Errorf("client %d missing", id)
	}
	return b.write(c, status, priority)
}

func (b *board) write(c Client, status Status, priority int) error {
	if c.ID == b.failID {
		return errors.New("write failed")
	}
	for _, o := range b.clients {
		if o.ID != c.ID && o.Status == status && o.Priority == priority {
			return fmt.Errorf("unique violation: %s/%d held by %d", status, priority, o.ID)
		}
	}
	c.Status = status
	c.Priority = priority
	b.clients[c.ID] = c
	b.writes++
	return nil
}

type fakeStore struct {
	*board
	txs int
}

func newFakeStore(cs ...Client) *fakeStore {
	return &fakeStore{board: newBoard(cs...)}
}

func (f *fakeStore) RunInTransaction(ctx context.Context, fn func(Tx) error) error {
	f.txs++
	tx := f.board.clone()
	if err := fn(tx); err != nil {
		return err
	}
	f.board.clients = tx.clients
	f.board.writes += tx.writes
	return nil
}

func (b *board) lane(status Status) []Client {
	cs, _ := b.ClientsFrom(context.Background(), status, 0)
	sort.Slice(cs, func(i, j int) bool { return cs[i].Priority < cs[j].Priority })
	return cs
}

func assertContiguous(t *testing.T, b *board, status Status) {
	t.Helper()
	for i, c := range b.lane(status) {
		if c.Priority != i+1 {
			t.Fatalf("swimlane %s not contiguous: %#v", status, b.lane(status))
		}
	}
}

func assertClient(t *testing.T, b *board, id int64, status Status, priority int) {
	t.Helper()
	c, ok := b.clients[id]
	if !ok {
		t.Fatalf("client %d missing", id)
	}
	if c.Status != status || c.Priority != priority {
		t.Fatalf("client %d = %s/%d, want %s/%d", id, c.Status, c.Priority, status, priority)
	}
}
