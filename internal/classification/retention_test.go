package classification_test

import (
	"testing"

	"github.com/harperz567/food-app-qa/internal/classification"
)

// TestRetention_ParseValid proves that every member of the fixed set parses,
// including the parameterized retain-N-years form and legacy uppercase names.
//
// Green-Flag: Members of the fixed retention set MUST parse successfully.
func TestRetention_ParseValid(t *testing.T) {
	validPolicies := []struct {
		input    string
		expected classification.RetentionPolicy
	}{
		{"retain-indefinite", classification.RetainIndefinite},
		{"retain-1-year", classification.Retain1Year},
		{"retain-7-years", classification.RetentionPolicy("retain-7-years")},
		{"retain-25-years", classification.RetentionPolicy("retain-25-years")},
		{"delete-on-request", classification.DeleteOnRequest},
		{"delete-immediately", classification.DeleteImmediately},
		{"RETAIN_INDEFINITE", classification.RetainIndefinite}, // Legacy spelling
		{"  delete-on-request  ", classification.DeleteOnRequest},
	}

	for _, tc := range validPolicies {
		t.Run(tc.input, func(t *testing.T) {
			// Act
			policy, err := classification.ParseRetention(tc.input)

			// Assert
			if err != nil {
				t.Fatalf("expected policy %q to parse, got error: %v", tc.input, err)
			}
			if policy != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, policy)
			}
		})
	}
}

// TestRetention_ParseInvalid proves that values outside the fixed set are
// rejected. The legacy helper silently defaulted these to RETAIN_INDEFINITE;
// that behavior is forbidden.
//
// Red-Flag: System MUST reject unknown retention policies, never default.
func TestRetention_ParseInvalid(t *testing.T) {
	invalidPolicies := []string{
		"keep-forever",
		"retain-0-years",     // Zero-year horizon is not a member
		"retain-7-year",      // Singular form only exists for 1 year
		"retain--years",
		"delete-eventually",
		"",
	}

	for _, input := range invalidPolicies {
		t.Run(input, func(t *testing.T) {
			// Act
			policy, err := classification.ParseRetention(input)

			// Assert: Parsing MUST fail with no fallback value
			if err == nil {
				t.Fatalf("expected error for invalid retention %q, got %v", input, policy)
			}
			if policy != "" {
				t.Fatalf("expected empty policy on parse failure, got %v", policy)
			}
		})
	}
}

// TestRetention_Years proves that year-bounded policies report their horizon
// and open-ended policies do not.
func TestRetention_Years(t *testing.T) {
	cases := []struct {
		policy  classification.RetentionPolicy
		years   int
		bounded bool
	}{
		{classification.Retain1Year, 1, true},
		{classification.RetainYears(7), 7, true},
		{classification.RetainIndefinite, 0, false},
		{classification.DeleteOnRequest, 0, false},
	}

	for _, tc := range cases {
		years, bounded := tc.policy.Years()
		if years != tc.years || bounded != tc.bounded {
			t.Fatalf("expected %s.Years() = (%d, %v), got (%d, %v)",
				tc.policy, tc.years, tc.bounded, years, bounded)
		}
	}
}

// TestRetention_RetainYearsCanonical proves RetainYears produces canonical
// members: the singular form for one year, the plural form otherwise.
func TestRetention_RetainYearsCanonical(t *testing.T) {
	if got := classification.RetainYears(1); got != classification.Retain1Year {
		t.Fatalf("expected retain-1-year, got %s", got)
	}
	if got := classification.RetainYears(7); got != classification.RetentionPolicy("retain-7-years") {
		t.Fatalf("expected retain-7-years, got %s", got)
	}
	if !classification.RetainYears(30).IsValid() {
		t.Fatal("expected retain-30-years to be a valid member")
	}
}
