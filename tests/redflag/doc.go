// Package redflag contains Red-Flag tests that prove the pipeline refuses
// unsafe or invalid operations. The probes here are the attacks and
// mistakes the policy exists to catch.
//
// Per docs/test.md: "Red-Flag tests prove the pipeline refuses what the
// policy declares unsafe."
package redflag

// This package contains Red-Flag tests organized by component:
// - propagation_test.go: weakened, lost, and untagged fields are findings
// - idor_test.go: cross-user probes under own-scoped grants are denied
// - auth_test.go: unauthenticated gateway access is refused
// - schema_test.go: malformed tag schemas are rejected whole
// - scan_test.go: untagged and missing store columns are findings
// - inspect_test.go: star projections, risky writes, and non-statements
