package domain

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

// Tx is the set of swimlane operations issued inside a single storage
// transaction. ListClients with an empty filter returns every client.
type Tx interface {
	ClientReader
	ListClients(ctx context.Context, filter Status) ([]Client, error)
	// ClientsFrom returns the clients in status whose priority is >= minPriority.
	ClientsFrom(ctx context.Context, status Status, minPriority int) ([]Client, error)
	// MaxPriority returns the lowest rank in status, or 0 for an empty swimlane.
	MaxPriority(ctx context.Context, status Status) (int, error)
	PriorityTaken(ctx context.Context, status Status, priority int) (bool, error)
	SetPriority(ctx context.Context, id int64, priority int) error
	SetStatusAndPriority(ctx context.Context, id int64, status Status, priority int) error
}

// Mode identifies which update branch ran.
type Mode string

const (
	// ModeNone means the update changed nothing.
	ModeNone Mode = "none"
	// ModeMoveInsert places the client at a requested rank of a requested
	// swimlane, shifting displaced clients down.
	ModeMoveInsert Mode = "move_insert"
	// ModeRerank sets a free rank inside the current swimlane.
	ModeRerank Mode = "rerank"
	// ModeAppend moves the client to the bottom of another swimlane.
	ModeAppend Mode = "append"
)

// GapPolicy decides what happens to the rank a client vacates.
type GapPolicy int

const (
	// GapLeave leaves the vacated rank empty. This is the historical behaviour
	// and the default.
	GapLeave GapPolicy = iota
	// GapClose keeps every swimlane contiguous: the old swimlane is renumbered
	// after a move, insert ranks are clamped to the end of the destination and
	// a priority-only update shifts the clients between the old and new rank.
	GapClose
)

// ParseGapPolicy reads a policy name ("leave" or "close").
func ParseGapPolicy(raw string) (GapPolicy, error) {
	switch raw {
	case "", "leave":
		return GapLeave, nil
	case "close":
		return GapClose, nil
	}
	return GapLeave, fmt.Errorf("unknown gap policy %q", raw)
}

func (p GapPolicy) String() string {
	if p == GapClose {
		return "close"
	}
	return "leave"
}

// Reorderer applies updates to a client and renumbers the clients it displaces.
type Reorderer struct {
	Policy GapPolicy
}

// Apply runs the update branch selected by which fields of u are set:
// status and priority insert at that rank, priority alone re-ranks in place
// when the rank is free, status alone appends to the destination swimlane.
func (r Reorderer) Apply(ctx context.Context, tx Tx, c Client, u Update) (Mode, error) {
	mode, err := r.apply(ctx, tx, c, u)
	if err != nil {
		return mode, fmt.Errorf("%s client %d: %w", mode, c.ID, err)
	}
	log.WithFields(log.Fields{
		"client":          c.ID,
		"mode":            mode,
		"from_status":     c.Status,
		"from_priority":   c.Priority,
		"target_status":   u.Status,
		"target_priority": u.Priority,
		"gap_policy":      r.Policy,
	}).Debug("client reordered")
	return mode, nil
}

func (r Reorderer) apply(ctx context.Context, tx Tx, c Client, u Update) (Mode, error) {
	if u.Status != "" && u.Priority != 0 {
		return ModeMoveInsert, r.moveInsert(ctx, tx, c, u.Status, u.Priority)
	}
	if u.Priority != 0 {
		if r.Policy == GapClose {
			if u.Priority == c.Priority {
				return ModeNone, nil
			}
			return ModeRerank, moveWithinLane(ctx, tx, c, u.Priority)
		}
		// The collision test runs against the current swimlane. A taken rank
		// makes the request a no-op.
		taken, err := tx.PriorityTaken(ctx, c.Status, u.Priority)
		if err != nil {
			return ModeRerank, err
		}
		if taken {
			return ModeNone, nil
		}
		return ModeRerank, tx.SetPriority(ctx, c.ID, u.Priority)
	}
	if u.Status == "" || u.Status == c.Status {
		return ModeNone, nil
	}
	return ModeAppend, r.appendTo(ctx, tx, c, u.Status)
}

func (r Reorderer) moveInsert(ctx context.Context, tx Tx, c Client, status Status, priority int) error {
	if r.Policy == GapClose {
		if c.Status == status {
			return moveWithinLane(ctx, tx, c, priority)
		}
		last, err := tx.MaxPriority(ctx, status)
		if err != nil {
			return err
		}
		if priority > last+1 {
			priority = last + 1
		}
	}
	displaced, err := tx.ClientsFrom(ctx, status, priority)
	if err != nil {
		return err
	}
	// Highest rank first so no shifted client lands on an occupied rank.
	sortByPriority(displaced, true)
	for _, d := range displaced {
		if err := tx.SetPriority(ctx, d.ID, d.Priority+1); err != nil {
			return err
		}
	}
	if err := tx.SetStatusAndPriority(ctx, c.ID, status, priority); err != nil {
		return err
	}
	if r.Policy == GapClose && c.Status != status {
		return closeGap(ctx, tx, c.Status, c.Priority)
	}
	return nil
}

func (r Reorderer) appendTo(ctx context.Context, tx Tx, c Client, status Status) error {
	last, err := tx.MaxPriority(ctx, status)
	if err != nil {
		return err
	}
	if err := tx.SetStatusAndPriority(ctx, c.ID, status, last+1); err != nil {
		return err
	}
	if r.Policy == GapClose {
		return closeGap(ctx, tx, c.Status, c.Priority)
	}
	return nil
}

// moveWithinLane moves c to priority inside its own swimlane, renumbering the
// clients between the old and new rank. The client is parked on rank 0 while
// the others shift.
func moveWithinLane(ctx context.Context, tx Tx, c Client, priority int) error {
	last, err := tx.MaxPriority(ctx, c.Status)
	if err != nil {
		return err
	}
	if priority > last {
		priority = last
	}
	if priority == c.Priority {
		return nil
	}
	if err := tx.SetPriority(ctx, c.ID, 0); err != nil {
		return err
	}
	lo, hi, delta := priority, c.Priority-1, 1
	if priority > c.Priority {
		lo, hi, delta = c.Priority+1, priority, -1
	}
	from, err := tx.ClientsFrom(ctx, c.Status, lo)
	if err != nil {
		return err
	}
	between := from[:0]
	for _, o := range from {
		if o.ID != c.ID && o.Priority <= hi {
			between = append(between, o)
		}
	}
	sortByPriority(between, delta > 0)
	for _, o := range between {
		if err := tx.SetPriority(ctx, o.ID, o.Priority+delta); err != nil {
			return err
		}
	}
	return tx.SetPriority(ctx, c.ID, priority)
}

// closeGap moves every client ranked below vacated in status up by one.
func closeGap(ctx context.Context, tx Tx, status Status, vacated int) error {
	below, err := tx.ClientsFrom(ctx, status, vacated+1)
	if err != nil {
		return err
	}
	sortByPriority(below, false)
	for _, b := range below {
		if err := tx.SetPriority(ctx, b.ID, b.Priority-1); err != nil {
			return err
		}
	}
	return nil
}

func sortByPriority(cs []Client, desc bool) {
	sort.Slice(cs, func(i, j int) bool {
		if desc {
			return cs[i].Priority > cs[j].Priority
		}
		return cs[i].Priority < cs[j].Priority
	})
}
