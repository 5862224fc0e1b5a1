package verify

import (
	"fmt"

	"github.com/itkulocom-bit/attendance/internal/feature"
)

// Status is the terminal decision of the verification policy.
type Status int

const (
	// StatusAccepted means the captured face matched the reference with
	// confidence at or above the tier's accept threshold.
	StatusAccepted Status = iota
	// StatusBorderlineNeedsOverride means the confidence fell between the
	// tier's reject floor and accept threshold; an explicit human
	// confirmation is required before this counts as attendance.
	StatusBorderlineNeedsOverride
	// StatusRejected means the evidence does not support the identity claim.
	StatusRejected
	// StatusNoReferencePhoto means no enrollment photo exists for the
	// claimed identity; no comparison was attempted.
	StatusNoReferencePhoto
	// StatusInputError means no extraction tier could produce a comparable
	// representation; a system or configuration problem, not a mismatch.
	StatusInputError
)

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "Accepted"
	case StatusBorderlineNeedsOverride:
		return "BorderlineNeedsOverride"
	case StatusRejected:
		return "Rejected"
	case StatusNoReferencePhoto:
		return "NoReferencePhoto"
	case StatusInputError:
		return "InputError"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is the immutable verdict returned by the engine. Rationale is set
// on every terminal state and names the tier used and the numeric confidence
// so the decision can be audited.
type Outcome struct {
	Status     Status
	Confidence float64
	Tier       feature.Tier
	Rationale  string
}

// Resolve converts a borderline outcome using the human override decision,
// which is entirely the caller's concern. Confirming treats the match as
// accepted; declining converts it to a rejection. Non-borderline outcomes
// pass through unchanged.
func (o *Outcome) Resolve(confirmed bool) *Outcome {
	if o.Status != StatusBorderlineNeedsOverride {
		return o
	}
	if confirmed {
		return &Outcome{
			Status:     StatusAccepted,
			Confidence: o.Confidence,
			Tier:       o.Tier,
			Rationale:  o.Rationale + "; accepted by operator override",
		}
	}
	return &Outcome{
		Status:     StatusRejected,
		Confidence: o.Confidence,
		Tier:       o.Tier,
		Rationale:  o.Rationale + "; operator declined override",
	}
}
