package apperrors

import (
	"errors"
	"fmt"
)

// ErrInvalidConnectionCode is returned when no user matches a bridge's code.
var ErrInvalidConnectionCode = errors.New("invalid connection code")

// NotFoundError reports that an entity does not exist in the caller's
// organization. Cross-tenant lookups deliberately collapse into this error.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NewNotFound builds a NotFoundError for the given entity.
func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StatusConflictError reports an attempt to move a message out of a terminal
// status into a different outcome, e.g. a "failed" report arriving after the
// message was already confirmed sent.
type StatusConflictError struct {
	MessageID string
	Current   string
	Requested string
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("message %s is %s; cannot transition to %s", e.MessageID, e.Current, e.Requested)
}

// NewStatusConflict builds a StatusConflictError.
func NewStatusConflict(messageID, current, requested string) error {
	return &StatusConflictError{MessageID: messageID, Current: current, Requested: requested}
}

// IsStatusConflict reports whether err is a StatusConflictError.
func IsStatusConflict(err error) bool {
	var sc *StatusConflictError
	return errors.As(err, &sc)
}
