package contracts

import "time"

// TrustLevel is the discrete tier derived from a continuous score.
type TrustLevel string

const (
	TrustExemplary TrustLevel = "EXEMPLARY" // >= 0.90
	TrustTrusted   TrustLevel = "TRUSTED"   // >= 0.75
	TrustStandard  TrustLevel = "STANDARD"  // >= 0.50
	TrustWatch     TrustLevel = "WATCH"     // >= 0.25
	TrustProbation TrustLevel = "PROBATION" // < 0.25
)

// ValidationLevel gates how much independent validation future operations
// of an agent require. Higher trust earns lighter-weight validation.
type ValidationLevel string

const (
	ValidationMinimal  ValidationLevel = "MINIMAL"
	ValidationStandard ValidationLevel = "STANDARD"
	ValidationElevated ValidationLevel = "ELEVATED"
	ValidationFull     ValidationLevel = "FULL"
)

// ReputationScore is derived on demand from an owner's receipt set and is
// never persisted as a separate source of truth.
type ReputationScore struct {
	AgentID      string          `json:"agent_id"`
	Score        float64         `json:"score"` // clamped to [0,1]
	Level        TrustLevel      `json:"level"`
	Validation   ValidationLevel `json:"validation"`
	ReceiptCount int             `json:"receipt_count"`
	WindowStart  time.Time       `json:"window_start"`
	WindowEnd    time.Time       `json:"window_end"`
	ComputedAt   time.Time       `json:"computed_at"`
}
