// Package greenflag contains Green-Flag tests that prove the pipeline
// accepts what the policy declares safe. These tests validate happy paths.
//
// Per docs/test.md: "Green-Flag tests prove the pipeline accepts what
// the policy declares safe."
package greenflag

// This package contains Green-Flag tests organized by component:
// - propagation_test.go: compliant transition chains validate clean
// - access_test.go: designed grants in the access matrix are allowed
// - gateway_flow_test.go: client-to-gateway round trips succeed end to end
// - schema_test.go: well-formed tag schemas load
// - scan_test.go: stores matching their tag schema scan clean
// - inspect_test.go: enumerated, read-only queries inspect without warnings
