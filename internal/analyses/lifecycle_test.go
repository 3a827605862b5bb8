package analyses_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JaimeStill/seedlab/internal/analyses"
)

func TestFinalizeRoleBranching(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		from  analyses.Status
		actor analyses.Role
		want  analyses.Status
	}{
		{"analyst from in progress", analyses.StatusInProgress, analyses.RoleAnalyst, analyses.StatusPendingApproval},
		{"administrator from in progress", analyses.StatusInProgress, analyses.RoleAdministrator, analyses.StatusApproved},
		{"analyst from registered", analyses.StatusRegistered, analyses.RoleAnalyst, analyses.StatusPendingApproval},
		{"administrator from to repeat", analyses.StatusToRepeat, analyses.RoleAdministrator, analyses.StatusApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &analyses.Analysis{Status: tt.from}

			if err := analyses.Finalize(a, tt.actor, nil, now); err != nil {
				t.Fatalf("Finalize: %v", err)
			}
			if a.Status != tt.want {
				t.Errorf("status = %s, want %s", a.Status, tt.want)
			}
			if a.FinishedAt == nil || !a.FinishedAt.Equal(now) {
				t.Errorf("finished_at = %v, want %v", a.FinishedAt, now)
			}
		})
	}
}

func TestFinalizeRejections(t *testing.T) {
	incomplete := fmt.Errorf("%w: no accepted batch", analyses.ErrPrecondition)

	tests := []struct {
		name     string
		from     analyses.Status
		actor    analyses.Role
		complete error
		want     error
	}{
		{"pending approval", analyses.StatusPendingApproval, analyses.RoleAnalyst, nil, analyses.ErrIllegalState},
		{"approved", analyses.StatusApproved, analyses.RoleAdministrator, nil, analyses.ErrIllegalState},
		{"inactive", analyses.StatusInactive, analyses.RoleAdministrator, nil, analyses.ErrIllegalState},
		{"incomplete", analyses.StatusInProgress, analyses.RoleAnalyst, incomplete, analyses.ErrPrecondition},
		{"unknown role", analyses.StatusInProgress, analyses.Role("guest"), nil, analyses.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &analyses.Analysis{Status: tt.from}

			err := analyses.Finalize(a, tt.actor, tt.complete, time.Now())
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if a.Status != tt.from {
				t.Errorf("status changed to %s on rejection", a.Status)
			}
			if a.FinishedAt != nil {
				t.Error("finished_at set on rejection")
			}
		})
	}
}

func TestApprove(t *testing.T) {
	incomplete := fmt.Errorf("%w: no accepted batch", analyses.ErrPrecondition)

	tests := []struct {
		name     string
		from     analyses.Status
		actor    analyses.Role
		complete error
		want     error
	}{
		{"administrator from pending", analyses.StatusPendingApproval, analyses.RoleAdministrator, nil, nil},
		{"analyst from pending", analyses.StatusPendingApproval, analyses.RoleAnalyst, nil, analyses.ErrForbidden},
		{"administrator from in progress", analyses.StatusInProgress, analyses.RoleAdministrator, nil, analyses.ErrIllegalState},
		{"administrator from approved", analyses.StatusApproved, analyses.RoleAdministrator, nil, analyses.ErrIllegalState},
		{"pending but incomplete", analyses.StatusPendingApproval, analyses.RoleAdministrator, incomplete, analyses.ErrPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &analyses.Analysis{Status: tt.from}
			err := analyses.Approve(a, tt.actor, tt.complete)

			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tt.want == nil && a.Status != analyses.StatusApproved {
				t.Errorf("status = %s, want APPROVED", a.Status)
			}
			if tt.want != nil && a.Status != tt.from {
				t.Errorf("status = %s, want unchanged %s", a.Status, tt.from)
			}
		})
	}
}

func TestMarkForRepeat(t *testing.T) {
	finished := time.Now()

	for _, from := range []analyses.Status{
		analyses.StatusRegistered,
		analyses.StatusInProgress,
		analyses.StatusPendingApproval,
		analyses.StatusApproved,
		analyses.StatusToRepeat,
	} {
		t.Run(string(from), func(t *testing.T) {
			a := &analyses.Analysis{Status: from, FinishedAt: &finished}

			if err := analyses.MarkForRepeat(a, analyses.RoleAdministrator); err != nil {
				t.Fatalf("MarkForRepeat: %v", err)
			}
			if a.Status != analyses.StatusToRepeat {
				t.Errorf("status = %s, want TO_REPEAT", a.Status)
			}
			if a.FinishedAt != nil {
				t.Error("finished_at not cleared")
			}
		})
	}

	t.Run("inactive rejected", func(t *testing.T) {
		a := &analyses.Analysis{Status: analyses.StatusInactive}
		if err := analyses.MarkForRepeat(a, analyses.RoleAdministrator); !errors.Is(err, analyses.ErrIllegalState) {
			t.Errorf("err = %v, want ErrIllegalState", err)
		}
	})

	t.Run("analyst forbidden", func(t *testing.T) {
		a := &analyses.Analysis{Status: analyses.StatusApproved}
		if err := analyses.MarkForRepeat(a, analyses.RoleAnalyst); !errors.Is(err, analyses.ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})
}

func TestEdit(t *testing.T) {
	tests := []struct {
		name    string
		from    analyses.Status
		actor   analyses.Role
		want    analyses.Status
		wantErr error
	}{
		{"analyst reopens approved", analyses.StatusApproved, analyses.RoleAnalyst, analyses.StatusPendingApproval, nil},
		{"administrator keeps approved", analyses.StatusApproved, analyses.RoleAdministrator, analyses.StatusApproved, nil},
		{"pending stays pending", analyses.StatusPendingApproval, analyses.RoleAnalyst, analyses.StatusPendingApproval, nil},
		{"to repeat unchanged", analyses.StatusToRepeat, analyses.RoleAnalyst, analyses.StatusToRepeat, nil},
		{"inactive rejected", analyses.StatusInactive, analyses.RoleAdministrator, analyses.StatusInactive, analyses.ErrIllegalState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &analyses.Analysis{Status: tt.from}
			err := analyses.Edit(a, tt.actor)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if a.Status != tt.want {
				t.Errorf("status = %s, want %s", a.Status, tt.want)
			}
		})
	}
}

func TestDeactivateIdempotent(t *testing.T) {
	a := &analyses.Analysis{Status: analyses.StatusApproved}

	for i := range 2 {
		if err := analyses.Deactivate(a, analyses.RoleAnalyst); err != nil {
			t.Fatalf("Deactivate #%d: %v", i+1, err)
		}
		if a.Status != analyses.StatusInactive {
			t.Errorf("status = %s, want INACTIVE", a.Status)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to analyses.Status
		want     bool
	}{
		{analyses.StatusRegistered, analyses.StatusInProgress, true},
		{analyses.StatusInProgress, analyses.StatusRegistered, false},
		{analyses.StatusApproved, analyses.StatusPendingApproval, true},
		{analyses.StatusPendingApproval, analyses.StatusInProgress, false},
		{analyses.StatusInactive, analyses.StatusInProgress, false},
	}

	for _, tt := range tests {
		if got := analyses.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
