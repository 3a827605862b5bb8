// Package analyses implements the seed-quality analysis domain. It owns the
// analysis lifecycle (registration, replicate capture, finalization and the
// role-gated approval workflow) and couples every replicate mutation of a
// mass-per-sample analysis to batch acceptance and aggregate statistics.
package analyses

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/seedlab/internal/acceptance"
	"github.com/JaimeStill/seedlab/internal/replicates"
)

// Type identifies the kind of test performed on a lot.
type Type string

const (
	TypePurity         Type = "PURITY"
	TypeGermination    Type = "GERMINATION"
	TypeMassPerSample  Type = "MASS_PER_SAMPLE"
	TypeViability      Type = "VIABILITY"
	TypeOtherSeedCount Type = "OTHER_SEED_COUNT"
)

// Status is the lifecycle state of an analysis.
type Status string

const (
	StatusRegistered      Status = "REGISTERED"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusToRepeat        Status = "TO_REPEAT"
	StatusInactive        Status = "INACTIVE"
)

// Role is the role of the actor performing an operation.
type Role string

const (
	RoleAnalyst       Role = "analyst"
	RoleAdministrator Role = "administrator"
)

// Validate reports whether r is a known role.
func (r Role) Validate() error {
	switch r {
	case RoleAnalyst, RoleAdministrator:
		return nil
	}
	return fmt.Errorf("%w: unknown role %q", ErrForbidden, r)
}

// Texture is the seed-texture flag that selects the acceptance threshold.
type Texture string

const (
	TextureNormal  Texture = "normal"
	TextureFriable Texture = "friable"
)

// DefaultReplicatesPerBatch is used when a creation request leaves the target unset.
const DefaultReplicatesPerBatch = 8

// Config is the type-specific configuration fixed when the analysis is created.
type Config struct {
	ReplicatesPerBatch int     `json:"replicates_per_batch"`
	Texture            Texture `json:"texture"`
	TrashCompliant     bool    `json:"trash_compliant"`
}

func (c *Config) normalize(defaultTarget int) error {
	if c.ReplicatesPerBatch == 0 {
		c.ReplicatesPerBatch = defaultTarget
	}
	if c.Texture == "" {
		c.Texture = TextureNormal
	}
	if c.Texture != TextureNormal && c.Texture != TextureFriable {
		return fmt.Errorf("%w: unknown texture %q", ErrInvalidConfig, c.Texture)
	}
	if _, err := acceptance.New(c.ReplicatesPerBatch, false); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Analysis is one physical test performed on a lot, together with the
// aggregate statistics maintained over its replicates.
type Analysis struct {
	ID           uuid.UUID           `json:"id"`
	Type         Type                `json:"type"`
	LotID        string              `json:"lot_id"`
	Status       Status              `json:"status"`
	Config       Config              `json:"config"`
	Mean         decimal.NullDecimal `json:"mean"`
	StdDev       decimal.NullDecimal `json:"std_dev"`
	CV           decimal.NullDecimal `json:"cv"`
	DerivedRaw   decimal.NullDecimal `json:"derived_raw"`
	RoundedFinal decimal.NullDecimal `json:"rounded_final"`
	BatchCount   int                 `json:"batch_count"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Engine returns the acceptance rules configured for a.
func (a *Analysis) Engine() (acceptance.Engine, error) {
	return acceptance.New(a.Config.ReplicatesPerBatch, a.Config.Texture == TextureFriable)
}

// Statistics is the aggregate view exposed to collaborators.
type Statistics struct {
	AnalysisID   uuid.UUID           `json:"analysis_id"`
	Mean         decimal.NullDecimal `json:"mean"`
	StdDev       decimal.NullDecimal `json:"std_dev"`
	CV           decimal.NullDecimal `json:"cv"`
	DerivedRaw   decimal.NullDecimal `json:"derived_raw"`
	RoundedFinal decimal.NullDecimal `json:"rounded_final"`
	BatchCount   int                 `json:"batch_count"`
	Replicates   int                 `json:"replicates"`
	Threshold    decimal.Decimal     `json:"threshold"`
	Status       Status              `json:"status"`
	CanFinalize  bool                `json:"can_finalize"`
}

// ReplicateResult reports the effect of a replicate mutation.
// AssignedBatch and Validity describe the affected replicate after the
// mutation; Analysis is the analysis state that was committed.
type ReplicateResult struct {
	Replicate      replicates.Replicate  `json:"replicate"`
	AssignedBatch  int                   `json:"assigned_batch"`
	Validity       replicates.Validity   `json:"validity"`
	Evaluation     acceptance.Evaluation `json:"evaluation"`
	BatchCount     int                   `json:"batch_count"`
	Escalated      bool                  `json:"escalated"`
	Complete       bool                  `json:"complete"`
	CeilingReached bool                  `json:"ceiling_reached"`
	Analysis       Analysis              `json:"analysis"`
}

// CreateCommand carries the data needed to register a new analysis.
type CreateCommand struct {
	Type   Type   `json:"type"`
	LotID  string `json:"lot_id"`
	Config Config `json:"config"`
	Actor  Role   `json:"actor"`
}

// ReplicateCommand carries a measured value for an add or update.
type ReplicateCommand struct {
	Value decimal.Decimal `json:"value"`
	Actor Role            `json:"actor"`
}

// RoundedValueCommand carries the manually reviewed final value.
type RoundedValueCommand struct {
	Value decimal.Decimal `json:"value"`
	Actor Role            `json:"actor"`
}

// TransitionCommand identifies who requests a lifecycle transition.
type TransitionCommand struct {
	Actor Role `json:"actor"`
}
