package domain

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxPriority is the highest rank a client may be given. Appends and shifts
// add one to existing ranks, so the bound stays well inside int.
const MaxPriority = math.MaxInt32

// ClientReader looks up a single client. It returns nil without error when
// no client has the id.
type ClientReader interface {
	GetClient(ctx context.Context, id int64) (*Client, error)
}

// ParseID converts a raw identifier into a client id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, invalidIdentifier("Id can only be integer.")
	}
	return id, nil
}

// ValidateIdentifier parses raw and checks that a client with that id exists,
// returning the stored client.
func ValidateIdentifier(ctx context.Context, r ClientReader, raw string) (Client, error) {
	id, err := ParseID(raw)
	if err != nil {
		return Client{}, err
	}
	c, err := r.GetClient(ctx, id)
	if err != nil {
		return Client{}, fmt.Errorf("get client %d: %w", id, err)
	}
	if c == nil {
		return Client{}, invalidIdentifier("Cannot find client with that id.")
	}
	return *c, nil
}

// ParseStatus converts raw into one of the fixed swimlanes.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", invalidStatus()
	}
	return s, nil
}

// ValidatePriority rejects ranks below 1 or above MaxPriority.
func ValidatePriority(priority int) error {
	if priority < 1 || priority > MaxPriority {
		return invalidPriority()
	}
	return nil
}

// ParsePriority reads a priority from its raw JSON text. Absent, null and 0
// all mean "not supplied" and yield 0. Quoted integers are accepted, as are
// numbers without a fractional part such as 2.0 or 1e0.
func ParsePriority(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return 0, nil
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = strings.TrimSpace(raw[1 : len(raw)-1])
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > MaxPriority {
			return 0, invalidPriority()
		}
		n = int(f)
	}
	if n == 0 {
		return 0, nil
	}
	if err := ValidatePriority(n); err != nil {
		return 0, err
	}
	return n, nil
}

// Update carries the optional fields of an update request. A zero Status or
// Priority means the field was not supplied.
type Update struct {
	Status   Status
	Priority int
}

// NewUpdate validates the raw status and priority of an update request.
// An empty status is treated as absent.
func NewUpdate(status, priority string) (Update, error) {
	var u Update
	if status != "" {
		s, err := ParseStatus(status)
		if err != nil {
			return Update{}, err
		}
		u.Status = s
	}
	p, err := ParsePriority(priority)
	if err != nil {
		return Update{}, err
	}
	u.Priority = p
	return u, nil
}
