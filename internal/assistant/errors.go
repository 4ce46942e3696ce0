package assistant

import (
	"errors"
	"fmt"

	"github.com/erazemk/shramba/internal/model"
)

// ErrUpstream is returned when the generative model fails, times out or
// returns output that cannot be used. Callers report it as a transient
// "assistant unavailable" condition.
var ErrUpstream = errors.New("assistant unavailable")

var errNoModel = errors.New("no model configured")

// QuotaExceededError is returned when a daily limit has been reached.
type QuotaExceededError struct {
	Kind   model.QuotaKind
	Status QuotaStatus
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily %s limit of %d reached", e.Kind, e.Status.Total)
}

// ValidationError reports malformed input. It is always returned before any
// quota is reserved or the model is called.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func upstream(err error) error {
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
