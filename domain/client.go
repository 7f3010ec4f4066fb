package domain

// Status names the swimlane a client belongs to.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusInProgress Status = "in-progress"
	StatusComplete   Status = "complete"
)

// Statuses lists every swimlane in board order.
var Statuses = []Status{StatusBacklog, StatusInProgress, StatusComplete}

// Valid reports whether s is one of the fixed swimlanes.
func (s Status) Valid() bool {
	switch s {
	case StatusBacklog, StatusInProgress, StatusComplete:
		return true
	}
	return false
}

// Client represents a single card on the board. Priority is its rank inside
// the swimlane named by Status, 1 being the top.
type Client struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Status      Status `json:"status" yaml:"status"`
	Priority    int    `json:"priority" yaml:"priority"`
}
