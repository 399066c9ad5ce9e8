package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

// Common catalog errors.
var (
	// ErrNotFound is returned when a warehouse, namespace or table does not exist.
	ErrNotFound = errors.New("catalog: not found")

	// ErrAlreadyExists is returned when creating an object that already exists.
	ErrAlreadyExists = errors.New("catalog: already exists")

	// ErrUnauthorized is returned when the catalog rejects the credentials.
	ErrUnauthorized = errors.New("catalog: unauthorized")

	// ErrCatalogUnavailable is returned when the catalog cannot be reached
	// or reports itself unavailable.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")
)

// APIError is an error response from the REST catalog.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("catalog: %s (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("catalog: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code to a sentinel error.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrAlreadyExists
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ErrCatalogUnavailable
	}
	return nil
}
