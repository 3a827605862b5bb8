package analyses

import (
	"fmt"
	"slices"
	"time"
)

// transitions lists the statuses reachable from each status.
var transitions = map[Status][]Status{
	StatusRegistered:      {StatusInProgress, StatusPendingApproval, StatusApproved, StatusToRepeat, StatusInactive},
	StatusInProgress:      {StatusPendingApproval, StatusApproved, StatusToRepeat, StatusInactive},
	StatusPendingApproval: {StatusApproved, StatusToRepeat, StatusInactive},
	StatusApproved:        {StatusPendingApproval, StatusToRepeat, StatusInactive},
	StatusToRepeat:        {StatusPendingApproval, StatusApproved, StatusToRepeat, StatusInactive},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

func transition(a *Analysis, to Status) error {
	if !CanTransition(a.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrIllegalState, a.Status, to)
	}
	a.Status = to
	return nil
}

// Edit guards a data edit made by actor. Inactive analyses reject edits, and
// an analyst editing an approved analysis sends it back for review.
func Edit(a *Analysis, actor Role) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if a.Status == StatusInactive {
		return fmt.Errorf("%w: analysis is inactive", ErrIllegalState)
	}
	if a.Status == StatusApproved && actor == RoleAnalyst {
		return transition(a, StatusPendingApproval)
	}
	return nil
}

// Begin marks a registered analysis as in progress once work starts.
func Begin(a *Analysis) {
	if a.Status == StatusRegistered {
		a.Status = StatusInProgress
	}
}

// Finalize closes the working phase of a. complete is the result of the
// analysis type's completeness check; a non-nil value aborts finalization.
// Administrators approve directly, analysts submit for approval.
func Finalize(a *Analysis, actor Role, complete error, now time.Time) error {
	if err := actor.Validate(); err != nil {
		return err
	}

	switch a.Status {
	case StatusRegistered, StatusInProgress, StatusToRepeat:
	default:
		return fmt.Errorf("%w: cannot finalize from %s", ErrIllegalState, a.Status)
	}

	if complete != nil {
		return complete
	}

	target := StatusPendingApproval
	if actor == RoleAdministrator {
		target = StatusApproved
	}
	if err := transition(a, target); err != nil {
		return err
	}

	a.FinishedAt = &now
	return nil
}

// Approve accepts an analysis awaiting review. complete is rechecked here
// since analyst edits made while pending do not change the status.
func Approve(a *Analysis, actor Role, complete error) error {
	if err := requireAdministrator(actor); err != nil {
		return err
	}
	if a.Status != StatusPendingApproval {
		return fmt.Errorf("%w: cannot approve from %s", ErrIllegalState, a.Status)
	}
	if complete != nil {
		return complete
	}
	return transition(a, StatusApproved)
}

// MarkForRepeat sends an analysis back to the bench.
func MarkForRepeat(a *Analysis, actor Role) error {
	if err := requireAdministrator(actor); err != nil {
		return err
	}
	if err := transition(a, StatusToRepeat); err != nil {
		return err
	}
	a.FinishedAt = nil
	return nil
}

// Deactivate retires an analysis. Deactivating an inactive analysis is a no-op.
func Deactivate(a *Analysis, actor Role) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if a.Status == StatusInactive {
		return nil
	}
	return transition(a, StatusInactive)
}

func requireAdministrator(actor Role) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if actor != RoleAdministrator {
		return fmt.Errorf("%w: %s", ErrForbidden, actor)
	}
	return nil
}
