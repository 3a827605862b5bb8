package history

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound  = errors.New("analysis not found")
	ErrDuplicate = errors.New("history entry already recorded")
)

// MapHTTPStatus maps history errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
