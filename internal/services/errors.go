// Package services implements the coordinator's business logic: the job
// claim/report protocol, storefront ingestion, order operations, templates,
// and print planning.
//
// This file centralizes the service-level error values. Handlers translate
// them into HTTP status codes with errors.Is; the service layer never picks
// status codes itself.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/repo"
)

var (
	// ErrNotFound indicates that the addressed store, order, item, or
	// template does not exist. Returned errors wrap it with the entity name.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is the state machine refusal. Every
	// *domain.TransitionError matches it.
	ErrInvalidTransition = domain.ErrInvalidTransition

	// ErrUpstreamUnavailable wraps failures of the storefront or the
	// extraction collaborator.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvalidInput is returned for requests that fail validation in the
	// service layer (empty names, non-positive trim sizes, bad URLs).
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownSheet is returned when a plan names a sheet that is not in
	// the catalog.
	ErrUnknownSheet = errors.New("unknown sheet")
)

// notFound wraps ErrNotFound as "<kind> <id>: not found".
func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// mapRepoErr converts a repo not-found into the service sentinel and leaves
// every other error untouched.
func mapRepoErr(err error, kind, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return notFound(kind, id)
	}
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
