package analyses_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/seedlab/internal/analyses"
	"github.com/JaimeStill/seedlab/internal/replicates"
	"github.com/JaimeStill/seedlab/pkg/pagination"
)

type recorder struct {
	mu            sync.Mutex
	creations     []analyses.Analysis
	modifications []analyses.Analysis
	err           error
}

func (r *recorder) RecordCreation(_ context.Context, a analyses.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creations = append(r.creations, a)
	return r.err
}

func (r *recorder) RecordModification(_ context.Context, a analyses.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modifications = append(r.modifications, a)
	return r.err
}

func (r *recorder) modified() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.modifications)
}

type fixture struct {
	sys     analyses.System
	history *recorder
	reg     *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	rec := &recorder{}
	sys := analyses.New(
		analyses.NewMemoryStore(),
		rec,
		analyses.NewMetrics(reg),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
		analyses.Config{},
	)
	return &fixture{sys: sys, history: rec, reg: reg}
}

func (f *fixture) create(t *testing.T, typ analyses.Type, target int, texture analyses.Texture) *analyses.Analysis {
	t.Helper()
	a, err := f.sys.Create(context.Background(), analyses.CreateCommand{
		Type:   typ,
		LotID:  "LOT-2026-0042",
		Config: analyses.Config{ReplicatesPerBatch: target, Texture: texture},
		Actor:  analyses.RoleAnalyst,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return a
}

func (f *fixture) add(t *testing.T, id uuid.UUID, values ...string) *analyses.ReplicateResult {
	t.Helper()
	var last *analyses.ReplicateResult
	for _, v := range values {
		res, err := f.sys.AddReplicate(context.Background(), id, analyses.ReplicateCommand{
			Value: decimal.RequireFromString(v),
			Actor: analyses.RoleAnalyst,
		})
		if err != nil {
			t.Fatalf("AddReplicate(%s): %v", v, err)
		}
		last = res
	}
	return last
}

// alternating returns n values of mean-dev and mean+dev, whose CV is dev/mean*100.
func alternating(n int, mean, dev string) []string {
	m := decimal.RequireFromString(mean)
	d := decimal.RequireFromString(dev)
	out := make([]string, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = m.Sub(d).String()
		} else {
			out[i] = m.Add(d).String()
		}
	}
	return out
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("applies defaults", func(t *testing.T) {
		a := f.create(t, analyses.TypeMassPerSample, 0, "")

		if a.Status != analyses.StatusRegistered {
			t.Errorf("status = %s, want REGISTERED", a.Status)
		}
		if a.Config.ReplicatesPerBatch != analyses.DefaultReplicatesPerBatch {
			t.Errorf("replicates_per_batch = %d, want %d", a.Config.ReplicatesPerBatch, analyses.DefaultReplicatesPerBatch)
		}
		if a.Config.Texture != analyses.TextureNormal {
			t.Errorf("texture = %s, want normal", a.Config.Texture)
		}
		if a.BatchCount != 1 {
			t.Errorf("batch_count = %d, want 1", a.BatchCount)
		}
		if len(f.history.creations) != 1 {
			t.Errorf("creation records = %d, want 1", len(f.history.creations))
		}
	})

	tests := []struct {
		name string
		cmd  analyses.CreateCommand
		want error
	}{
		{"unknown type", analyses.CreateCommand{Type: "COLOR", LotID: "L1", Actor: analyses.RoleAnalyst}, analyses.ErrInvalidConfig},
		{"missing lot", analyses.CreateCommand{Type: analyses.TypePurity, LotID: " ", Actor: analyses.RoleAnalyst}, analyses.ErrInvalidConfig},
		{"target above ceiling", analyses.CreateCommand{Type: analyses.TypeMassPerSample, LotID: "L1", Config: analyses.Config{ReplicatesPerBatch: 17}, Actor: analyses.RoleAnalyst}, analyses.ErrInvalidConfig},
		{"bad texture", analyses.CreateCommand{Type: analyses.TypeMassPerSample, LotID: "L1", Config: analyses.Config{Texture: "sticky"}, Actor: analyses.RoleAnalyst}, analyses.ErrInvalidConfig},
		{"unknown role", analyses.CreateCommand{Type: analyses.TypePurity, LotID: "L1", Actor: "guest"}, analyses.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.sys.Create(ctx, tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAcceptedBatchScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, analyses.TypeMassPerSample, 8, analyses.TextureNormal)

	res := f.add(t, a.ID, alternating(8, "100", "3.5")...)

	if !res.Evaluation.Complete || !res.Evaluation.Accepted {
		t.Fatalf("evaluation = %+v, want complete and accepted", res.Evaluation)
	}
	if res.Analysis.Status != analyses.StatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", res.Analysis.Status)
	}
	if !res.Analysis.CV.Valid || !res.Analysis.CV.Decimal.Equal(decimal.RequireFromString("3.5")) {
		t.Errorf("cv = %v, want 3.5", res.Analysis.CV)
	}
	if !res.Analysis.DerivedRaw.Decimal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("derived_raw = %v, want 1000", res.Analysis.DerivedRaw)
	}

	rs, err := f.sys.Replicates(ctx, a.ID)
	if err != nil {
		t.Fatalf("Replicates: %v", err)
	}
	for _, r := range rs {
		if r.Validity != replicates.Valid {
			t.Errorf("replicate %d validity = %v, want valid", r.Index, r.Validity)
		}
	}

	stats, err := f.sys.Statistics(ctx, a.ID)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.CanFinalize {
		t.Error("can_finalize = true before rounded value set")
	}

	_, err = f.sys.AddReplicate(ctx, a.ID, analyses.ReplicateCommand{
		Value: decimal.NewFromInt(100),
		Actor: analyses.RoleAnalyst,
	})
	if !errors.Is(err, analyses.ErrAlreadyAcceptable) {
		t.Fatalf("9th insert err = %v, want ErrAlreadyAcceptable", err)
	}

	if _, err := f.sys.SetFinalRoundedValue(ctx, a.ID, analyses.RoundedValueCommand{
		Value: decimal.RequireFromString("1000.0"),
		Actor: analyses.RoleAnalyst,
	}); err != nil {
		t.Fatalf("SetFinalRoundedValue: %v", err)
	}

	stats, err = f.sys.Statistics(ctx, a.ID)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if !stats.CanFinalize {
		t.Error("can_finalize = false after rounded value set")
	}
	if stats.Replicates != 8 {
		t.Errorf("replicates = %d, want 8", stats.Replicates)
	}
}

func TestCeilingScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, analyses.TypeMassPerSample, 8, analyses.TextureNormal)

	first := f.add(t, a.ID, alternating(8, "100", "9")...)
	if first.Evaluation.Accepted || !first.Escalated || first.BatchCount != 2 {
		t.Fatalf("after batch 1: %+v", first)
	}

	second := f.add(t, a.ID, alternating(8, "100", "9")...)
	if second.AssignedBatch != 2 {
		t.Errorf("assigned batch = %d, want 2", second.AssignedBatch)
	}
	if !second.CeilingReached {
		t.Error("ceiling_reached = false after batch 2 rejected")
	}

	_, err := f.sys.AddReplicate(ctx, a.ID, analyses.ReplicateCommand{
		Value: decimal.NewFromInt(100),
		Actor: analyses.RoleAnalyst,
	})
	if !errors.Is(err, analyses.ErrCeilingReached) {
		t.Fatalf("17th insert err = %v, want ErrCeilingReached", err)
	}

	rs, _ := f.sys.Replicates(ctx, a.ID)
	if len(rs) != 16 {
		t.Errorf("replicates = %d, want 16", len(rs))
	}

	if got := metricValue(t, f.reg, "seedlab_replicate_ceiling_reached_total"); got != 1 {
		t.Errorf("ceiling counter = %v, want 1", got)
	}

	_, err = f.sys.SetFinalRoundedValue(ctx, a.ID, analyses.RoundedValueCommand{
		Value: decimal.NewFromInt(1000),
		Actor: analyses.RoleAnalyst,
	})
	if !errors.Is(err, analyses.ErrPrecondition) {
		t.Errorf("rounded value err = %v, want ErrPrecondition", err)
	}
}

func TestDeleteRevertsAcceptedBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, analyses.TypeMassPerSample, 8, analyses.TextureNormal)
	f.add(t, a.ID, alternating(8, "100", "3.5")...)

	if _, err := f.sys.SetFinalRoundedValue(ctx, a.ID, analyses.RoundedValueCommand{
		Value: decimal.NewFromInt(1000),
		Actor: analyses.RoleAnalyst,
	}); err != nil {
		t.Fatalf("SetFinalRoundedValue: %v", err)
	}

	rs, _ := f.sys.Replicates(ctx, a.ID)
	res, err := f.sys.DeleteReplicate(ctx, rs[2].ID, analyses.RoleAnalyst)
	if err != nil {
		t.Fatalf("DeleteReplicate: %v", err)
	}
	if res.Complete {
		t.Error("complete = true after delete")
	}

	rs, _ = f.sys.Replicates(ctx, a.ID)
	for _, r := range rs {
		if r.Validity != replicates.Unknown {
			t.Errorf("replicate %d validity = %v, want unknown", r.Index, r.Validity)
		}
	}

	stats, _ := f.sys.Statistics(ctx, a.ID)
	if stats.CanFinalize {
		t.Error("can_finalize = true with incomplete batch")
	}
	if !stats.RoundedFinal.Valid {
		t.Error("rounded final cleared by recompute")
	}

	_, err = f.sys.Finalize(ctx, a.ID, analyses.TransitionCommand{Actor: analyses.RoleAnalyst})
	if !errors.Is(err, analyses.ErrPrecondition) {
		t.Fatalf("Finalize err = %v, want ErrPrecondition", err)
	}

	refill := f.add(t, a.ID, "103.5")
	if refill.AssignedBatch != 1 || !refill.Complete {
		t.Errorf("refill batch=%d complete=%v, want 1 true", refill.AssignedBatch, refill.Complete)
	}

	stats, _ = f.sys.Statistics(ctx, a.ID)
	if !stats.CanFinalize {
		t.Error("can_finalize = false after refill")
	}
}

func TestUpdateReplicateReevaluates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, analyses.TypeMassPerSample, 4, analyses.TextureNormal)
	f.add(t, a.ID, alternating(4, "100", "1")...)

	rs, _ := f.sys.Replicates(ctx, a.ID)
	res, err := f.sys.UpdateReplicate(ctx, rs[0].ID, analyses.ReplicateCommand{
		Value: decimal.NewFromInt(60),
		Actor: analyses.RoleAnalyst,
	})
	if err != nil {
		t.Fatalf("UpdateReplicate: %v", err)
	}
	if res.Validity != replicates.Invalid || res.Evaluation.Accepted {
		t.Errorf("validity=%v accepted=%v, want invalid false", res.Validity, res.Evaluation.Accepted)
	}
	if res.Analysis.BatchCount != 2 {
		t.Errorf("batch_count = %d, want 2", res.Analysis.BatchCount)
	}

	_, err = f.sys.UpdateReplicate(ctx, uuid.New(), analyses.ReplicateCommand{
		Value: decimal.NewFromInt(60),
		Actor: analyses.RoleAnalyst,
	})
	if !errors.Is(err, analyses.ErrReplicateNotFound) {
		t.Errorf("unknown replicate err = %v, want ErrReplicateNotFound", err)
	}
}

func TestRejectsNonPositiveValue(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, analyses.TypeMassPerSample, 4, analyses.TextureNormal)

	for _, v := range []string{"0", "-1.5"} {
		_, err := f.sys.AddReplicate(context.Background(), a.ID, analyses.ReplicateCommand{
			Value: decimal.RequireFromString(v),
			Actor: analyses.RoleAnalyst,
		})
		if !errors.Is(err, analyses.ErrInvalidValue) {
			t.Errorf("value %s err = %v, want ErrInvalidValue", v, err)
		}
	}
}

func TestReReviewLoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, analyses.TypeMassPerSample, 4, analyses.TextureNormal)
	f.add(t, a.ID, alternating(4, "100", "1")...)

	if _, err := f.sys.SetFinalRoundedValue(ctx, a.ID, analyses.RoundedValueCommand{
		Value: decimal.NewFromInt(1000),
		Actor: analyses.RoleAnalyst,
	}); err != nil {
		t.Fatalf("SetFinalRoundedValue: %v", err)
	}

	got, err := f.sys.Finalize(ctx, a.ID, analyses.TransitionCommand{Actor: analyses.RoleAnalyst})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got.Status != analyses.StatusPendingApproval {
		t.Fatalf("status = %s, want PENDING_APPROVAL", got.Status)
	}

	if _, err := f.sys.Approve(ctx, a.ID, analyses.TransitionCommand{Actor: analyses.RoleAnalyst}); !errors.Is(err, analyses.ErrForbidden) {
		t.Errorf("analyst approve err = %v, want ErrForbidden", err)
	}

	got, err = f.sys.Approve(ctx, a.ID, analyses.TransitionCommand{Actor: analyses.RoleAdministrator})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got.Status != analyses.StatusApproved {
		t.Fatalf("status = %s, want APPROVED", got.Status)
	}

	got, err = f.sys.SetFinalRoundedValue(ctx, a.ID, analyses.RoundedValueCommand{
		Value: decimal.RequireFromString("1000.5"),
		Actor: analyses.RoleAdministrator,
	})
	if err != nil {
		t.Fatalf("administrator edit: %v", err)
	}
	if got.Status != analyses.StatusApproved {
		t.Errorf("status after administrator edit = %s, want APPROVED", got.Status)
	}

	got, err = f.sys.SetFinalRoundedValue(ctx, a.ID, analyses.RoundedValueCommand{
		Value: decimal.RequireFromString("1000.2"),
		Actor: analyses.RoleAnalyst,
	})
	if err != nil {
		t.Fatalf("analyst edit: %v", err)
	}
	if got.Status != analyses.StatusPendingApproval {
		t.Errorf("status after analyst edit = %s, want PENDING_APPROVAL", got.Status)
	}

	if f.history.modified() < 4 {
		t.Errorf("modification records = %d, want at least 4", f.history.modified())
	}
}

func TestApproveRechecksCompleteness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, analyses.TypeMassPerSample, 8, analyses.TextureNormal)
	f.add(t, a.ID, alternating(8, "100", "3.5")...)

	if _, err := f.sys.SetFinalRoundedValue(ctx, a.ID, analyses.RoundedValueCommand{
		Value: decimal.NewFromInt(1000),
		Actor: analyses.RoleAnalyst,
	}); err != nil {
		t.Fatalf("SetFinalRoundedValue: %v", err)
	}
	if _, err := f.sys.Finalize(ctx, a.ID, analyses.TransitionCommand{Actor: analyses.RoleAnalyst}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	rs, _ := f.sys.Replicates(ctx, a.ID)
	if _, err := f.sys.DeleteReplicate(ctx, rs[0].ID, analyses.RoleAnalyst); err != nil {
		t.Fatalf("DeleteReplicate: %v", err)
	}

	got, err := f.sys.Find(ctx, a.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Status != analyses.StatusPendingApproval {
		t.Fatalf("status after delete = %s, want PENDING_APPROVAL", got.Status)
	}

	_, err = f.sys.Approve(ctx, a.ID, analyses.TransitionCommand{Actor: analyses.RoleAdministrator})
	if !errors.Is(err, analyses.ErrPrecondition) {
		t.Fatalf("Approve err = %v, want ErrPrecondition", err)
	}

	got, _ = f.sys.Find(ctx, a.ID)
	if got.Status != analyses.StatusPendingApproval {
		t.Errorf("status after rejected approve = %s, want PENDING_APPROVAL", got.Status)
	}

	f.add(t, a.ID, "103.5")
	got, err = f.sys.Approve(ctx, a.ID, analyses.TransitionCommand{Actor: analyses.RoleAdministrator})
	if err != nil {
		t.Fatalf("Approve after refill: %v", err)
	}
	if got.Status != analyses.StatusApproved {
		t.Errorf("status = %s, want APPROVED", got.Status)
	}
}

func TestAdministratorFinalizeApproves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, analyses.TypeMassPerSample, 2, analyses.TextureFriable)
	f.add(t, a.ID, "94", "106")

	if _, err := f.sys.SetFinalRoundedValue(ctx, a.ID, analyses.RoundedValueCommand{
		Value: decimal.NewFromInt(1000),
		Actor: analyses.RoleAdministrator,
	}); err != nil {
		t.Fatalf("SetFinalRoundedValue: %v", err)
	}

	got, err := f.sys.Finalize(ctx, a.ID, analyses.TransitionCommand{Actor: analyses.RoleAdministrator})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got.Status != analyses.StatusApproved {
		t.Errorf("status = %s, want APPROVED", got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("finished_at not set")
	}
}

func TestDeactivatedAnalysisRejectsMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, analyses.TypeMassPerSample, 4, analyses.TextureNormal)
	f.add(t, a.ID, "100")

	for range 2 {
		got, err := f.sys.Deactivate(ctx, a.ID, analyses.TransitionCommand{Actor: analyses.RoleAnalyst})
		if err != nil {
			t.Fatalf("Deactivate: %v", err)
		}
		if got.Status != analyses.StatusInactive {
			t.Fatalf("status = %s, want INACTIVE", got.Status)
		}
	}

	_, err := f.sys.AddReplicate(ctx, a.ID, analyses.ReplicateCommand{Value: decimal.NewFromInt(100), Actor: analyses.RoleAnalyst})
	if !errors.Is(err, analyses.ErrIllegalState) {
		t.Errorf("add err = %v, want ErrIllegalState", err)
	}

	rs, _ := f.sys.Replicates(ctx, a.ID)
	if len(rs) != 1 {
		t.Errorf("replicates = %d, want 1 (deactivation keeps data)", len(rs))
	}

	if _, err := f.sys.DeleteReplicate(ctx, rs[0].ID, analyses.RoleAdministrator); !errors.Is(err, analyses.ErrIllegalState) {
		t.Errorf("delete err = %v, want ErrIllegalState", err)
	}
}

func TestNonBatchedCompleteness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, analyses.TypeGermination, 4, "")

	res := f.add(t, a.ID, "96", "91", "99")
	if res.Complete {
		t.Error("complete = true with 3 of 4 replicates")
	}
	if res.Validity != replicates.Unknown {
		t.Errorf("validity = %v, want unknown", res.Validity)
	}
	if res.Analysis.CV.Valid {
		t.Error("aggregates maintained for non-batched type")
	}

	if _, err := f.sys.SetFinalRoundedValue(ctx, a.ID, analyses.RoundedValueCommand{
		Value: decimal.NewFromInt(95),
		Actor: analyses.RoleAnalyst,
	}); !errors.Is(err, analyses.ErrPrecondition) {
		t.Errorf("early rounded value err = %v, want ErrPrecondition", err)
	}

	res = f.add(t, a.ID, "60")
	if !res.Complete {
		t.Error("complete = false with 4 of 4 replicates")
	}

	if _, err := f.sys.SetFinalRoundedValue(ctx, a.ID, analyses.RoundedValueCommand{
		Value: decimal.NewFromInt(87),
		Actor: analyses.RoleAnalyst,
	}); err != nil {
		t.Fatalf("SetFinalRoundedValue: %v", err)
	}

	got, err := f.sys.Finalize(ctx, a.ID, analyses.TransitionCommand{Actor: analyses.RoleAnalyst})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got.Status != analyses.StatusPendingApproval {
		t.Errorf("status = %s, want PENDING_APPROVAL", got.Status)
	}
}

func TestHistoryFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.history.err = errors.New("audit store unavailable")

	a := f.create(t, analyses.TypeMassPerSample, 4, analyses.TextureNormal)
	res := f.add(t, a.ID, "100")

	if res.Replicate.Index != 1 {
		t.Errorf("index = %d, want 1", res.Replicate.Index)
	}
	if got := metricValue(t, f.reg, "seedlab_history_failures_total"); got != 2 {
		t.Errorf("history failures = %v, want 2", got)
	}
}

func TestMemoryStoreReleasesLocks(t *testing.T) {
	store := analyses.NewMemoryStore()
	ctx := context.Background()

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		if _, err := store.Insert(ctx, analyses.Analysis{ID: ids[i], Status: analyses.StatusRegistered}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				store.Mutate(ctx, id, func(st *analyses.State) error {
					st.Replicates.Append(decimal.NewFromInt(100), 1)
					return nil
				})
			}()
		}
	}
	wg.Wait()

	if _, err := store.Mutate(ctx, uuid.New(), func(*analyses.State) error { return nil }); !errors.Is(err, analyses.ErrNotFound) {
		t.Errorf("missing analysis err = %v, want ErrNotFound", err)
	}

	if n := analyses.LockCount(store); n != 0 {
		t.Errorf("locks held after mutations = %d, want 0", n)
	}

	for _, id := range ids {
		rs, err := store.Replicates(ctx, id)
		if err != nil {
			t.Fatalf("Replicates: %v", err)
		}
		if len(rs) != 10 {
			t.Errorf("replicates for %s = %d, want 10", id, len(rs))
		}
	}
}

func TestConcurrentInsertsRespectCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, analyses.TypeMassPerSample, 8, analyses.TextureNormal)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := decimal.NewFromInt(int64(50 + (i%2)*50))
			_, err := f.sys.AddReplicate(ctx, a.ID, analyses.ReplicateCommand{Value: v, Actor: analyses.RoleAnalyst})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	rs, err := f.sys.Replicates(ctx, a.ID)
	if err != nil {
		t.Fatalf("Replicates: %v", err)
	}
	if len(rs) != accepted {
		t.Errorf("stored %d replicates, %d inserts succeeded", len(rs), accepted)
	}
	if len(rs) > 16 {
		t.Errorf("stored %d replicates, exceeds ceiling", len(rs))
	}

	seen := make(map[int]bool)
	for _, r := range rs {
		if seen[r.Index] {
			t.Errorf("duplicate index %d", r.Index)
		}
		seen[r.Index] = true
	}
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, analyses.TypeMassPerSample, 4, "")
	f.create(t, analyses.TypePurity, 4, "")
	f.create(t, analyses.TypePurity, 4, "")

	typ := analyses.TypePurity
	result, err := f.sys.List(ctx, pagination.PageRequest{PageSize: 1}, analyses.Filters{Type: &typ})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("total = %d, want 2", result.Total)
	}
	if len(result.Data) != 1 || result.TotalPages != 2 {
		t.Errorf("data=%d pages=%d, want 1 2", len(result.Data), result.TotalPages)
	}

	hourAgo := time.Now().Add(-time.Hour)
	ranges := []struct {
		name    string
		filters analyses.Filters
		want    int
	}{
		{"started since an hour ago", analyses.Filters{StartedFrom: &hourAgo}, 3},
		{"started before an hour ago", analyses.Filters{StartedTo: &hourAgo}, 0},
	}
	for _, tt := range ranges {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.sys.List(ctx, pagination.PageRequest{}, tt.filters)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if result.Total != tt.want {
				t.Errorf("total = %d, want %d", result.Total, tt.want)
			}
		})
	}

	if _, err := f.sys.Find(ctx, uuid.New()); !errors.Is(err, analyses.ErrNotFound) {
		t.Errorf("Find unknown err = %v, want ErrNotFound", err)
	}
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}
