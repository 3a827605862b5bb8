// Package replicates holds the raw replicate measurements of one analysis,
// grouped by batch number.
package replicates

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Validity is the acceptance state of a replicate.
type Validity int

const (
	Unknown Validity = iota
	Valid
	Invalid
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ParseValidity converts the stored text form back into a Validity.
func ParseValidity(s string) (Validity, error) {
	switch s {
	case "unknown", "":
		return Unknown, nil
	case "valid":
		return Valid, nil
	case "invalid":
		return Invalid, nil
	}
	return Unknown, fmt.Errorf("unknown validity %q", s)
}

func (v Validity) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Validity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseValidity(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Replicate is one raw measurement. Index is 1-based and unique within the
// analysis; Batch is assigned on creation and never changes.
type Replicate struct {
	ID         uuid.UUID       `json:"id"`
	AnalysisID uuid.UUID       `json:"analysis_id"`
	Index      int             `json:"index"`
	Value      decimal.Decimal `json:"value"`
	Batch      int             `json:"batch"`
	Validity   Validity        `json:"validity"`
}
