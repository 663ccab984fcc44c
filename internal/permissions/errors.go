package permissions

import (
	"errors"
	"fmt"

	"github.com/campusportal/portal-rest/internal/platform/httpx"
)

var (
	// ErrViewerUnauthorized rejects a viewer lacking VIEW_PERMISSIONS before any lookup runs.
	ErrViewerUnauthorized = fmt.Errorf("permissions: viewer may not inspect permissions: %w", httpx.ErrUnauthorized)
	// ErrNotFound reports a missing owner, activity or target.
	ErrNotFound = fmt.Errorf("permissions: %w", httpx.ErrNotFound)
	// ErrInvalidIdentifier reports an empty or malformed principal/target identifier.
	ErrInvalidIdentifier = fmt.Errorf("permissions: invalid identifier: %w", httpx.ErrValidation)
)

// UpstreamError wraps a failure of the permission store, group service or authorization
// service. It is distinct from an empty result.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return "permissions: " + e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err came from a failing collaborator.
func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}
