package analyses

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/seedlab/internal/acceptance"
	"github.com/JaimeStill/seedlab/internal/replicates"
	"github.com/JaimeStill/seedlab/internal/stats"
)

// Domain errors for analysis operations.
var (
	ErrNotFound          = errors.New("analysis not found")
	ErrDuplicate         = errors.New("analysis already exists")
	ErrReplicateNotFound = replicates.ErrNotFound
	ErrPrecondition      = errors.New("analysis preconditions not satisfied")
	ErrIllegalState      = errors.New("transition not permitted from current status")
	ErrForbidden         = errors.New("actor role not permitted")
	ErrInvalidValue      = errors.New("measured value must be positive")
	ErrInvalidConfig     = errors.New("invalid analysis configuration")
	ErrInvalidID         = errors.New("malformed id")
)

// Errors raised by the acceptance engine and batch statistics.
var (
	ErrCeilingReached    = acceptance.ErrCeilingReached
	ErrAlreadyAcceptable = acceptance.ErrAlreadyAcceptable
	ErrEmptyBatch        = stats.ErrEmptyBatch
	ErrDegenerateInput   = stats.ErrDegenerateInput
)

// MapHTTPStatus maps analysis domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrReplicateNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrIllegalState),
		errors.Is(err, ErrCeilingReached),
		errors.Is(err, ErrAlreadyAcceptable):
		return http.StatusConflict
	case errors.Is(err, ErrPrecondition),
		errors.Is(err, ErrEmptyBatch),
		errors.Is(err, ErrDegenerateInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidValue),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrInvalidID):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
