package domain

import "errors"

var (
	// ErrInvalidIdentifier marks a client id that is malformed or unknown.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrInvalidStatus marks a status outside the fixed swimlanes.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidPriority marks a priority that is not a positive integer.
	ErrInvalidPriority = errors.New("invalid priority")
)

// ValidationError is a request-scoped failure. Message and LongMessage form
// the payload returned to callers; Kind is one of the Err* sentinels.
type ValidationError struct {
	Kind        error  `json:"-"`
	Message     string `json:"message"`
	LongMessage string `json:"long_message"`
}

func (e *ValidationError) Error() string {
	return e.Kind.Error() + ": " + e.LongMessage
}

func (e *ValidationError) Unwrap() error { return e.Kind }

func invalidIdentifier(long string) *ValidationError {
	return &ValidationError{Kind: ErrInvalidIdentifier, Message: "Invalid id provided.", LongMessage: long}
}

func invalidStatus() *ValidationError {
	return &ValidationError{
		Kind:        ErrInvalidStatus,
		Message:     "Invalid status provided.",
		LongMessage: "Status can only be one of the following: [backlog | in-progress | complete].",
	}
}

func invalidPriority() *ValidationError {
	return &ValidationError{
		Kind:        ErrInvalidPriority,
		Message:     "Invalid priority provided.",
		LongMessage: "Priority can only be positive integer.",
	}
}
