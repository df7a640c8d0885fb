package redflag

import (
	"fmt"
	"testing"

	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/registry"
	"github.com/harperz567/food-app-qa/internal/scanner"
)

// =============================================================================
// RED-FLAG TESTS: Scan – Stores That Drift From Their Registry
// =============================================================================
//
// Per docs/pii-tagging-policy.md §3:
// > A tag schema describes what a service should store. Only the store
// > itself can say what it does store.
//
// These tests prove the coverage audit reports the drift:
// - A live column without a tag is a finding
// - A tagged field without a live column is a finding
// - An ambiguous column resolves nowhere and counts as unregistered
// - Auditing a service the registry never heard of is an error
// - An unreachable store surfaces its ping failure, never a silent skip
// =============================================================================

// TestScan_UnclassifiedColumnIsAFinding proves a column the registry does
// not cover lands in the unregistered bucket.
//
// Red-Flag: The user store grows a phone_number column nobody classified.
func TestScan_UnclassifiedColumnIsAFinding(t *testing.T) {
	reg := kitchenRegistry(t)

	columns := []scanner.Column{
		{Table: "users", Name: "user_id", DataType: "uuid"},
		{Table: "users", Name: "user_email", DataType: "text"},
		{Table: "users", Name: "delivery_address", DataType: "text"},
		{Table: "users", Name: "user_password", DataType: "text"},
		{Table: "users", Name: "phone_number", DataType: "text"},
	}

	report, err := scanner.AuditCoverage(reg, "userinfoservice", "postgres", columns)
	if err != nil {
		t.Fatalf("coverage audit failed: %v", err)
	}
	if report.Passed() {
		t.Fatal("RED-FLAG: a store holding an unclassified column passed the audit!\n" +
			"Expected: phone_number reported unregistered\n" +
			"Got: clean report\n" +
			"unclassified storage is a finding")
	}
	if len(report.Unregistered) != 1 || report.Unregistered[0].Name != "phone_number" {
		t.Errorf("expected phone_number in the unregistered bucket, got %+v", report.Unregistered)
	}
}

// TestScan_MissingRegisteredFieldIsAFinding proves a tagged field no live
// column satisfies is reported, not forgotten.
//
// Red-Flag: The user store silently stopped holding the password column.
func TestScan_MissingRegisteredFieldIsAFinding(t *testing.T) {
	reg := kitchenRegistry(t)

	columns := []scanner.Column{
		{Table: "users", Name: "user_id", DataType: "uuid"},
		{Table: "users", Name: "user_email", DataType: "text"},
		{Table: "users", Name: "delivery_address", DataType: "text"},
	}

	report, err := scanner.AuditCoverage(reg, "userinfoservice", "postgres", columns)
	if err != nil {
		t.Fatalf("coverage audit failed: %v", err)
	}
	if report.Passed() {
		t.Fatal("RED-FLAG: a store missing a tagged field passed the audit!\n" +
			"Expected: userPassword reported missing\n" +
			"Got: clean report\n" +
			"a tagged field without a live column is stale registry or lost data")
	}
	if len(report.Missing) != 1 || report.Missing[0] != "userPassword" {
		t.Errorf("expected userPassword in the missing bucket, got %v", report.Missing)
	}
}

// TestScan_AmbiguousColumnCountsUnregistered proves a column matching two
// field paths resolves to neither. Guessing would tag data wrong.
//
// Red-Flag: One address column faces two registered address paths.
func TestScan_AmbiguousColumnCountsUnregistered(t *testing.T) {
	reg := registry.NewRegistry()
	seed := []registry.FieldDescriptor{
		{Service: "orderservice", FieldPath: "billing.address", Tag: registry.Tag{Level: classification.LevelSensitive, Retention: classification.Retain1Year}},
		{Service: "orderservice", FieldPath: "shipping.address", Tag: registry.Tag{Level: classification.LevelHighlySensitive, Retention: classification.Retain1Year}},
	}
	for _, desc := range seed {
		if err := reg.Register(desc); err != nil {
			t.Fatalf("failed to seed registry: %v", err)
		}
	}

	report, err := scanner.AuditCoverage(reg, "orderservice", "duckdb", []scanner.Column{
		{Table: "orders", Name: "address", DataType: "varchar"},
	})
	if err != nil {
		t.Fatalf("coverage audit failed: %v", err)
	}
	if len(report.Covered) != 0 {
		t.Errorf("RED-FLAG: an ambiguous column resolved to %+v!\n"+
			"Expected: unregistered\n"+
			"Got: covered\n"+
			"two candidate paths mean the audit cannot know which tag applies", report.Covered)
	}
	if len(report.Unregistered) != 1 {
		t.Errorf("expected the ambiguous column in the unregistered bucket, got %+v", report.Unregistered)
	}
}

// TestScan_UnknownServiceRejected proves auditing a service with no
// registered fields is an error. The report would mean nothing.
//
// Red-Flag: The audit points at a service the registry never heard of.
func TestScan_UnknownServiceRejected(t *testing.T) {
	reg := kitchenRegistry(t)

	report, err := scanner.AuditCoverage(reg, "driverservice", "postgres", []scanner.Column{
		{Table: "drivers", Name: "driver_id", DataType: "uuid"},
	})
	if err == nil {
		t.Fatal("RED-FLAG: auditing an unknown service produced a report!\n" +
			"Expected: ErrUnknownService\n" +
			"Got: nil error")
	}
	if _, ok := err.(*errors.ErrUnknownService); !ok {
		t.Fatalf("expected ErrUnknownService, got %T: %v", err, err)
	}
	if report != nil {
		t.Error("no report may be returned for an unknown service")
	}
}

// TestScan_UnreachableStoreSurfacesPingError proves a sweep reports the
// store it cannot reach and keeps the healthy results apart.
//
// Red-Flag: One of the configured stores is down during a sweep.
func TestScan_UnreachableStoreSurfacesPingError(t *testing.T) {
	stores := scanner.NewScannerRegistry()
	defer stores.CloseAll()

	healthy := scanner.NewMockScanner("postgres", "userinfoservice", []scanner.Column{
		{Table: "users", Name: "user_id", DataType: "uuid"},
	})
	down := scanner.NewMockScanner("duckdb", "orderservice", nil)
	down.SetPingFailure(fmt.Errorf("connection refused"))
	stores.Register(healthy)
	stores.Register(down)

	pings := stores.PingAll(t.Context())
	if pings["userinfoservice"] != nil {
		t.Errorf("healthy store MUST answer, got %v", pings["userinfoservice"])
	}
	if pings["orderservice"] == nil {
		t.Error("RED-FLAG: an unreachable store answered its ping!\n" +
			"Expected: connection refused surfaced\n" +
			"Got: nil\n" +
			"a sweep must report the store it could not audit")
	}
}
