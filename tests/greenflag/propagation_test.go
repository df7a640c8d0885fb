package greenflag

import (
	"testing"

	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/propagation"
)

// =============================================================================
// GREEN-FLAG TESTS: Propagation – Tags Survive the Checkout Chain
// =============================================================================
//
// Per docs/test.md: "Green-Flag tests prove the pipeline accepts what the
// policy declares safe."
// - Full checkout chain with declared drops passes
// - A destination may hold data at a stricter level than the source
// - PUBLIC fields may stop propagating without a declaration
// - Required destination fields present in the payload pass the check
//
// These tests verify expected behavior for VALID propagation scenarios.
// =============================================================================

// TestPropagation_CheckoutChainPasses proves the documented checkout flow
// passes end to end: user data flows into the order, order data flows into
// the payment, and every field that stops propagating is declared dropped.
//
// Green-Flag: Full checkout chain with declared drops passes.
func TestPropagation_CheckoutChainPasses(t *testing.T) {
	reg := kitchenRegistry(t)
	validator := propagation.NewValidator(reg)

	transitions := []propagation.Transition{
		{
			// userinfoservice hands the order service what it needs to
			// place the order. The email stays behind.
			Source: payload("userinfoservice", map[string]propagation.FieldTag{
				"userId":          tag(classification.LevelInternal, classification.RetainYears(7)),
				"userEmail":       tag(classification.LevelSensitive, classification.DeleteOnRequest),
				"deliveryAddress": tag(classification.LevelHighlySensitive, classification.Retain1Year),
			}),
			Destination: payload("orderservice", map[string]propagation.FieldTag{
				"userId":          tag(classification.LevelInternal, classification.RetainYears(7)),
				"deliveryAddress": tag(classification.LevelHighlySensitive, classification.Retain1Year),
				"orderId":         tag(classification.LevelInternal, classification.Retain1Year),
				"amount":          tag(classification.LevelSensitive, classification.RetainYears(7)),
			}),
			Dropped: []string{"userEmail"},
		},
		{
			// orderservice hands the payment service the charge. The order
			// bookkeeping and the address stay behind.
			Source: payload("orderservice", map[string]propagation.FieldTag{
				"userId":          tag(classification.LevelInternal, classification.RetainYears(7)),
				"orderId":         tag(classification.LevelInternal, classification.Retain1Year),
				"deliveryAddress": tag(classification.LevelHighlySensitive, classification.Retain1Year),
				"amount":          tag(classification.LevelSensitive, classification.RetainYears(7)),
			}),
			Destination: payload("paymentservice", map[string]propagation.FieldTag{
				"userId":     tag(classification.LevelInternal, classification.RetainYears(7)),
				"amount":     tag(classification.LevelSensitive, classification.RetainYears(7)),
				"cardNumber": tag(classification.LevelCritical, classification.DeleteImmediately),
			}),
			Dropped: []string{"orderId", "deliveryAddress"},
		},
	}

	report, err := validator.Validate(transitions)
	if err != nil {
		t.Fatalf("checkout chain failed to validate: %v", err)
	}
	if !report.Passed {
		t.Errorf("GREEN-FLAG VIOLATION: Clean checkout chain reported violations!\n"+
			"Chain: userinfoservice -> orderservice -> paymentservice\n"+
			"Declared drops: userEmail, orderId, deliveryAddress\n"+
			"Violations: %d\n"+
			"Details: %+v", len(report.Violations), report.Violations)
	}
}

// TestPropagation_LevelUpgradeAllowed proves a destination claiming a
// stricter level than the source is not a finding. Only weakening is.
//
// Green-Flag: A destination may hold data at a stricter level than the source.
func TestPropagation_LevelUpgradeAllowed(t *testing.T) {
	reg := kitchenRegistry(t)
	validator := propagation.NewValidator(reg)

	report, err := validator.Validate([]propagation.Transition{
		{
			Source: payload("orderservice", map[string]propagation.FieldTag{
				"amount": tag(classification.LevelSensitive, classification.RetainYears(7)),
			}),
			Destination: payload("paymentservice", map[string]propagation.FieldTag{
				"amount": tag(classification.LevelHighlySensitive, classification.RetainYears(7)),
			}),
		},
	})
	if err != nil {
		t.Fatalf("failed to validate: %v", err)
	}
	if !report.Passed {
		t.Errorf("level upgrade MUST pass, got violations: %+v", report.Violations)
	}
}

// TestPropagation_PublicFieldMayDropSilently proves a PUBLIC field absent
// downstream needs no drop declaration. There is nothing to protect.
//
// Green-Flag: PUBLIC fields may stop propagating without a declaration.
func TestPropagation_PublicFieldMayDropSilently(t *testing.T) {
	reg := kitchenRegistry(t)
	validator := propagation.NewValidator(reg)

	report, err := validator.Validate([]propagation.Transition{
		{
			Source: payload("restaurantservice", map[string]propagation.FieldTag{
				"restaurantName": tag(classification.LevelPublic, classification.RetainIndefinite),
			}),
			Destination: payload("foodcatalogservice", map[string]propagation.FieldTag{
				"foodName": tag(classification.LevelPublic, classification.RetainIndefinite),
			}),
		},
	})
	if err != nil {
		t.Fatalf("failed to validate: %v", err)
	}
	if !report.Passed {
		t.Errorf("silent PUBLIC drop MUST pass, got violations: %+v", report.Violations)
	}
}

// TestPropagation_RequiredFieldPresentPasses proves the required-field
// check stays quiet when the destination payload carries the field.
//
// Green-Flag: Required destination fields present in the payload pass the check.
func TestPropagation_RequiredFieldPresentPasses(t *testing.T) {
	reg := kitchenRegistry(t)
	validator := propagation.NewValidator(reg, propagation.WithRequiredFieldCheck())

	profile := map[string]propagation.FieldTag{
		"userId":          tag(classification.LevelInternal, classification.RetainYears(7)),
		"userEmail":       tag(classification.LevelSensitive, classification.DeleteOnRequest),
		"deliveryAddress": tag(classification.LevelHighlySensitive, classification.Retain1Year),
		"userPassword":    tag(classification.LevelCritical, classification.DeleteOnRequest),
	}

	report, err := validator.Validate([]propagation.Transition{
		{
			Source:      payload("userinfoservice", profile),
			Destination: payload("userinfoservice", profile),
		},
	})
	if err != nil {
		t.Fatalf("failed to validate: %v", err)
	}
	if !report.Passed {
		t.Errorf("profile handoff with every required field MUST pass, got violations: %+v",
			report.Violations)
	}
}

// TestPropagation_EmptySequencePasses proves an empty run is a clean run.
//
// Green-Flag: An empty transition sequence passes.
func TestPropagation_EmptySequencePasses(t *testing.T) {
	validator := propagation.NewValidator(kitchenRegistry(t))

	report, err := validator.Validate(nil)
	if err != nil {
		t.Fatalf("failed to validate empty sequence: %v", err)
	}
	if !report.Passed {
		t.Errorf("empty sequence MUST pass, got violations: %+v", report.Violations)
	}
	if report.Violations == nil {
		t.Error("violations MUST be an empty slice, not nil")
	}
}
