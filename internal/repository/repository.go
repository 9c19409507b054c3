package repository

import (
	"context"
	"errors"

	"supplydocs/internal/model"
)

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) inside this directory.

// ErrRepository marks data-store connectivity or query failures. A fetch
// that fails this way returns no partial results.
var ErrRepository = errors.New("repository failure")

// RequestRepository defines data access for supply requests awaiting
// document generation. No business logic here — strictly persistence
// operations.
type RequestRepository interface {
	// FetchPendingDocuments returns one record per request currently in the
	// Approved or DeliveredWithClaims status, with display names joined and
	// item/vendor pairs aggregated. Ordering is unspecified.
	FetchPendingDocuments(ctx context.Context) ([]model.PendingDocument, error)

	// UpdateStatus sets the status of the request with the given id.
	// It reports false (not an error) when no row matched. The previous
	// status is not validated here.
	UpdateStatus(ctx context.Context, requestID int, status model.RequestStatus) (bool, error)
}
