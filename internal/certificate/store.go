package certificate

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ApprovalStamp is the actor data copied onto a certificate at approval time.
// Signatures are captured by value at the lifecycle event, not re-resolved
// later.
type ApprovalStamp struct {
	ApprovedBy uuid.UUID
	Name       string
	Signature  string
	At         time.Time
}

// ListFilter narrows List results.
type ListFilter struct {
	CreatedBy *uuid.UUID
	Status    *Status
}

// Store persists certificates together with their rows. Implementations must
// guarantee:
//   - Create and Update write the certificate and its row collections
//     atomically: a concurrent reader sees the full old row set or the full
//     new one, never a mix.
//   - Create returns sentinel.ErrConflict on a duplicate certificate number.
//   - Approve performs the pending check and the status write as one atomic
//     compare-and-set; a non-pending target returns sentinel.ErrInvalidState.
type Store interface {
	Create(ctx context.Context, cert *Certificate) error
	FindByID(ctx context.Context, id uuid.UUID) (*Certificate, error)
	List(ctx context.Context, filter ListFilter) ([]*Certificate, error)
	Update(ctx context.Context, cert *Certificate, replaceRows, replaceAdjusted bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	Approve(ctx context.Context, id uuid.UUID, stamp ApprovalStamp) (*Certificate, error)
	SetPending(ctx context.Context, id uuid.UUID) (*Certificate, error)
}

// UserDirectory resolves actor identities into directory snapshots so the
// service can stamp names and signature references at lifecycle events.
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (User, error)
}
