package classification

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RetentionPolicy represents how long a field's data may be kept.
// The set is closed: retain-indefinite, retain-N-years (N >= 1),
// retain-1-year, delete-on-request, delete-immediately.
//
// The legacy Python helper defaulted unknown retention values to
// RETAIN_INDEFINITE. That default is forbidden here: an unrecognized value
// is a validation error.
type RetentionPolicy string

const (
	// RetainIndefinite keeps data with no deletion horizon.
	RetainIndefinite RetentionPolicy = "retain-indefinite"

	// Retain1Year keeps data for one year after last use.
	Retain1Year RetentionPolicy = "retain-1-year"

	// DeleteOnRequest deletes data when the subject asks.
	DeleteOnRequest RetentionPolicy = "delete-on-request"

	// DeleteImmediately deletes data as soon as the operation completes.
	DeleteImmediately RetentionPolicy = "delete-immediately"
)

// retainYearsPattern matches the parameterized member of the set,
// e.g. retain-7-years.
var retainYearsPattern = regexp.MustCompile(`^retain-([1-9][0-9]*)-years$`)

// validRetentionHint is the operator-facing list of accepted values.
const validRetentionHint = "retain-indefinite, retain-N-years, retain-1-year, delete-on-request, delete-immediately"

// AllRetentionPolicies returns the fixed (non-parameterized) policies.
func AllRetentionPolicies() []RetentionPolicy {
	return []RetentionPolicy{
		RetainIndefinite,
		Retain1Year,
		DeleteOnRequest,
		DeleteImmediately,
	}
}

// IsValid checks if the policy is a member of the closed set.
func (p RetentionPolicy) IsValid() bool {
	for _, valid := range AllRetentionPolicies() {
		if p == valid {
			return true
		}
	}
	return retainYearsPattern.MatchString(string(p))
}

// String returns the string representation of the policy.
func (p RetentionPolicy) String() string {
	return string(p)
}

// Years returns the retention horizon in years and true when the policy is
// year-bounded. Unbounded and deletion policies return (0, false).
func (p RetentionPolicy) Years() (int, bool) {
	if p == Retain1Year {
		return 1, true
	}
	m := retainYearsPattern.FindStringSubmatch(string(p))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// RetainYears returns the canonical year-bounded policy for n years.
func RetainYears(n int) RetentionPolicy {
	if n == 1 {
		return Retain1Year
	}
	return RetentionPolicy(fmt.Sprintf("retain-%d-years", n))
}

// ParseRetention parses a string into a RetentionPolicy.
// Returns an error if the string is not a member of the closed set.
// Legacy uppercase names (RETAIN_INDEFINITE) normalize to the canonical form.
func ParseRetention(s string) (RetentionPolicy, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	p := RetentionPolicy(normalized)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid retention policy: %s (valid: %s)", s, validRetentionHint)
	}
	return p, nil
}
