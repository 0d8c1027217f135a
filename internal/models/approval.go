package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidApprovalTransition wraps every transition rejection so
// callers can map it to a conflict response.
var ErrInvalidApprovalTransition = errors.New("invalid approval transition")

// ApprovalState is the per-revision review state.
type ApprovalState string

const (
	ApprovalNone     ApprovalState = "none"
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

// approvalTransitions lists the allowed next states per current state.
// approved and rejected are terminal for the revision that carries them;
// a rejected revision is superseded by generating a new one, which moves
// the project pointer back to pending against the new revision.
var approvalTransitions = map[ApprovalState][]ApprovalState{
	ApprovalNone:     {ApprovalPending},
	ApprovalPending:  {ApprovalApproved, ApprovalRejected},
	ApprovalApproved: {},
	ApprovalRejected: {},
}

// ValidateApprovalTransition reports whether moving from current to next
// is allowed by the state machine.
func ValidateApprovalTransition(current, next ApprovalState) error {
	allowed, ok := approvalTransitions[current]
	if !ok {
		return fmt.Errorf("unknown approval state %s: %w", current, ErrInvalidApprovalTransition)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("from %s to %s: %w", current, next, ErrInvalidApprovalTransition)
}

// Approval is the review record attached to a single specification
// revision: state plus decision timestamp. The revision owns it, so no
// back-pointer is needed.
type Approval struct {
	State     ApprovalState `json:"state" db:"state"`
	DecidedAt *time.Time    `json:"decided_at,omitempty" db:"decided_at"`
}

// ApprovalPointer is the project-level current approval: which
// specification revision the state refers to. Confirming a new brief
// revision resets it to {none, nil} because no specification has been
// generated against the new brief yet.
type ApprovalPointer struct {
	State     ApprovalState `json:"state" db:"state"`
	Revision  *int          `json:"revision,omitempty" db:"revision"`
	DecidedAt *time.Time    `json:"decided_at,omitempty" db:"decided_at"`
}

// ResetApprovalPointer is the pointer value set when a new brief revision
// supersedes the specification's input.
func ResetApprovalPointer() ApprovalPointer {
	return ApprovalPointer{State: ApprovalNone}
}
