// Package storage defines persistence interfaces and shared storage errors.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/everpage/internal/memory"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when a uniqueness constraint is violated.
var ErrAlreadyExists = errors.New("record already exists")

// MemoryStore persists Memory records.
//
// Implementations guarantee that InsertIfAbsent and UpdateStatus are atomic
// with respect to concurrent callers; the lifecycle service relies on that to
// resolve slug races and webhook redeliveries without application locks.
type MemoryStore interface {
	// InsertIfAbsent stores the memory unless its slug is already taken,
	// in which case it returns ErrAlreadyExists and writes nothing.
	InsertIfAbsent(ctx context.Context, m memory.Memory) error

	// UpdateStatus moves the record from one payment status to another.
	// It reports false when the record was not in the expected status,
	// leaving the row untouched. A non-empty paymentID is recorded with
	// the transition.
	UpdateStatus(ctx context.Context, id string, from, to memory.PaymentStatus, paymentID string, updatedAt time.Time) (bool, error)

	// SetProviderRef attaches the payment provider reference to a record.
	SetProviderRef(ctx context.Context, id, providerRef string, updatedAt time.Time) error

	// Delete removes a record by ID. Missing records return ErrNotFound.
	Delete(ctx context.Context, id string) error

	// FindBySlug loads a record by its slug.
	FindBySlug(ctx context.Context, slug string) (memory.Memory, error)

	// FindByProviderRef loads a record by its payment provider reference.
	FindByProviderRef(ctx context.Context, providerRef string) (memory.Memory, error)

	// MarkAbandonedOlderThan transitions Pending records created before the
	// cutoff to Abandoned and returns the slugs of the records it changed.
	MarkAbandonedOlderThan(ctx context.Context, cutoff, now time.Time) ([]string, error)

	// CountPendingOlderThan counts Pending records created before the cutoff.
	CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
