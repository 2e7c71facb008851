// internal/domain/compliance/evaluate.go
package compliance

// Status is the classification of a member for one month.
type Status string

const (
	StatusCompliant    Status = "COMPLIANT"
	StatusExempt       Status = "EXEMPT"
	StatusNonCompliant Status = "NON_COMPLIANT"
)

// PolicyName identifies one of the two configured compliance formulas.
// They are selected explicitly per sweep and are never merged.
type PolicyName string

const (
	PolicyNameSimple    PolicyName = "SIMPLE"
	PolicyNameDiversity PolicyName = "DIVERSITY"
)

// Policy holds the thresholds for one compliance formula.
//
// The simple variant passes on purchase total OR game count alone.
// The diversity variant additionally requires MinEntities distinct supported
// entities; games satisfy that through the house-entity credit applied by the
// ledger at RecordGame time.
type Policy struct {
	Name        PolicyName
	MinCents    int64
	MinGames    int
	MinEntities int // 0 disables the diversity requirement
}

// SimplePolicy is the OR-threshold formula: $20 or 4 games by default.
func SimplePolicy(minCents int64, minGames int) Policy {
	return Policy{Name: PolicyNameSimple, MinCents: minCents, MinGames: minGames}
}

// DiversityPolicy is the threshold-AND-diversity formula. A single game is the
// diversity product, so its game threshold is 1.
func DiversityPolicy(minCents int64, minEntities int) Policy {
	return Policy{Name: PolicyNameDiversity, MinCents: minCents, MinGames: 1, MinEntities: minEntities}
}

// Evaluate classifies one record under a policy. Pure function: no I/O, no
// clock. An exemption short-circuits even when the record alone would pass.
func Evaluate(record *RequirementRecord, exempt bool, policy Policy) Status {
	if exempt {
		return StatusExempt
	}
	if policy.MinEntities > 0 && record.EntityCount() < policy.MinEntities {
		return StatusNonCompliant
	}
	if record.PurchaseTotalCents >= policy.MinCents {
		return StatusCompliant
	}
	if policy.MinGames > 0 && record.GameCount >= policy.MinGames {
		return StatusCompliant
	}
	return StatusNonCompliant
}
