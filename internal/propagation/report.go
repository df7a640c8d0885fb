package propagation

// ViolationType categorizes a policy violation found during validation.
type ViolationType string

const (
	// ViolationLevelRegression: a field's sensitivity level decreased
	// across a transition.
	ViolationLevelRegression ViolationType = "LEVEL_REGRESSION"

	// ViolationTagLoss: a source field above PUBLIC has no tag in the
	// destination and was not declared dropped.
	ViolationTagLoss ViolationType = "TAG_LOSS"

	// ViolationUnregisteredField: a payload carries a field path the
	// registry does not know for that service.
	ViolationUnregisteredField ViolationType = "UNREGISTERED_FIELD"

	// ViolationInvalidLevel: a payload tag carries a sensitivity level
	// outside the ordered set.
	ViolationInvalidLevel ViolationType = "INVALID_LEVEL"

	// ViolationInvalidRetention: a payload tag carries a retention policy
	// outside the fixed set. Never silently defaulted.
	ViolationInvalidRetention ViolationType = "INVALID_RETENTION"

	// ViolationRequiredFieldMissing: a field the registry marks required
	// for the destination service appears in neither payload. Reported only
	// when the required-field check is enabled.
	ViolationRequiredFieldMissing ViolationType = "REQUIRED_FIELD_MISSING"
)

// Violation is one policy violation found during a validation run.
// Violations are data, not errors: a run accumulates every violation it
// finds instead of failing at the first.
type Violation struct {
	// Type categorizes the violation.
	Type ViolationType `json:"type"`

	// TransitionIndex is the zero-based index of the transition in the run.
	TransitionIndex int `json:"transitionIndex"`

	// FieldPath is the field the violation concerns.
	FieldPath string `json:"fieldPath"`

	// Detail is a human-readable description of what was found.
	Detail string `json:"detail"`
}

// Report is the outcome of one validation run. Violations are ordered by
// transition index, then field path, then check order, so reports are
// stable across runs and diffable in CI.
type Report struct {
	// Passed is true when the run found no violations.
	Passed bool `json:"passed"`

	// Violations lists every violation found, in stable order.
	Violations []Violation `json:"violations"`
}

// ByType returns the violations of one type, preserving report order.
func (r *Report) ByType(t ViolationType) []Violation {
	var result []Violation
	for _, v := range r.Violations {
		if v.Type == t {
			result = append(result, v)
		}
	}
	return result
}

// CountByType returns violation counts keyed by type.
func (r *Report) CountByType() map[ViolationType]int {
	counts := make(map[ViolationType]int)
	for _, v := range r.Violations {
		counts[v.Type]++
	}
	return counts
}

// ForTransition returns the violations recorded for one transition index,
// preserving report order.
func (r *Report) ForTransition(index int) []Violation {
	var result []Violation
	for _, v := range r.Violations {
		if v.TransitionIndex == index {
			result = append(result, v)
		}
	}
	return result
}
