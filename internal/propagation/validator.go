// Package propagation verifies that PII tags survive service-to-service
// data flow: levels never decrease, tags are never silently lost, and every
// field crossing a boundary is registered.
//
// Per docs/pii-tagging-policy.md: "Classification travels with the data.
// A hop that weakens or drops a tag is a finding."
//
// Validation is a pure, single-pass computation over an explicit transition
// sequence. Policy violations are accumulated as report data; only input
// the validator cannot evaluate at all is an error. Runs hold no mutable
// state beyond the registry they read, so any number of runs may execute in
// parallel over registry snapshots.
package propagation

import (
	"fmt"
	"sort"

	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/registry"
)

// Validator checks transition sequences against the tag registry.
type Validator struct {
	registry      *registry.Registry
	checkRequired bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithRequiredFieldCheck enables reporting of registry fields marked
// required for the destination service that appear in neither payload.
func WithRequiredFieldCheck() Option {
	return func(v *Validator) {
		v.checkRequired = true
	}
}

// NewValidator creates a validator over the given registry. Callers needing
// isolation between concurrent runs pass registry.Snapshot() results.
func NewValidator(reg *registry.Registry, opts ...Option) *Validator {
	v := &Validator{registry: reg}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks an ordered transition sequence and returns the report.
// An empty sequence passes. Violations never abort the run; a malformed
// transition aborts it immediately with no report.
func (v *Validator) Validate(transitions []Transition) (*Report, error) {
	if v.registry == nil {
		return nil, fmt.Errorf("validator requires a registry")
	}

	report := &Report{
		Passed:     true,
		Violations: []Violation{},
	}

	for i := range transitions {
		t := &transitions[i]
		if err := t.validateShape(i); err != nil {
			return nil, err
		}
		report.Violations = append(report.Violations, v.checkTransition(i, t)...)
	}

	report.Passed = len(report.Violations) == 0
	return report, nil
}

// checkTransition runs every check against one transition and returns its
// violations sorted by field path. Checks for the same path keep a fixed
// order: invalid tags, registry membership, level regression, tag loss.
func (v *Validator) checkTransition(index int, t *Transition) []Violation {
	var found []Violation
	dropped := t.droppedSet()

	for _, path := range unionPaths(t.Source.Fields, t.Destination.Fields) {
		srcTag, inSrc := t.Source.Fields[path]
		dstTag, inDst := t.Destination.Fields[path]

		if inSrc && !srcTag.Level.IsValid() {
			found = append(found, Violation{
				Type:            ViolationInvalidLevel,
				TransitionIndex: index,
				FieldPath:       path,
				Detail:          fmt.Sprintf("unknown sensitivity level %q in source payload", srcTag.Level),
			})
		}
		if inSrc && !srcTag.Retention.IsValid() {
			found = append(found, Violation{
				Type:            ViolationInvalidRetention,
				TransitionIndex: index,
				FieldPath:       path,
				Detail:          fmt.Sprintf("unknown retention policy %q in source payload (no default applied)", srcTag.Retention),
			})
		}
		if inDst && !dstTag.Level.IsValid() {
			found = append(found, Violation{
				Type:            ViolationInvalidLevel,
				TransitionIndex: index,
				FieldPath:       path,
				Detail:          fmt.Sprintf("unknown sensitivity level %q in destination payload", dstTag.Level),
			})
		}
		if inDst && !dstTag.Retention.IsValid() {
			found = append(found, Violation{
				Type:            ViolationInvalidRetention,
				TransitionIndex: index,
				FieldPath:       path,
				Detail:          fmt.Sprintf("unknown retention policy %q in destination payload (no default applied)", dstTag.Retention),
			})
		}

		if inSrc && !v.registry.HasField(t.Source.Service, path) {
			found = append(found, Violation{
				Type:            ViolationUnregisteredField,
				TransitionIndex: index,
				FieldPath:       path,
				Detail:          fmt.Sprintf("no registry entry for %s.%s (present in source payload)", t.Source.Service, path),
			})
		}
		if inDst && !v.registry.HasField(t.Destination.Service, path) {
			found = append(found, Violation{
				Type:            ViolationUnregisteredField,
				TransitionIndex: index,
				FieldPath:       path,
				Detail:          fmt.Sprintf("no registry entry for %s.%s (present in destination payload)", t.Destination.Service, path),
			})
		}

		// Level comparisons only make sense between valid levels; an
		// invalid level is already reported above.
		srcLevelOK := inSrc && srcTag.Level.IsValid()
		dstLevelOK := inDst && dstTag.Level.IsValid()

		if srcLevelOK && dstLevelOK && dstTag.Level.Rank() < srcTag.Level.Rank() {
			found = append(found, Violation{
				Type:            ViolationLevelRegression,
				TransitionIndex: index,
				FieldPath:       path,
				Detail: fmt.Sprintf("sensitivity decreased from %s to %s between %s and %s",
					srcTag.Level, dstTag.Level, t.Source.Service, t.Destination.Service),
			})
		}

		if srcLevelOK && !inDst && srcTag.Level.Rank() > classification.LevelPublic.Rank() {
			if _, declared := dropped[path]; !declared {
				found = append(found, Violation{
					Type:            ViolationTagLoss,
					TransitionIndex: index,
					FieldPath:       path,
					Detail: fmt.Sprintf("field at level %s lost its tag between %s and %s and is not declared dropped",
						srcTag.Level, t.Source.Service, t.Destination.Service),
				})
			}
		}
	}

	if v.checkRequired {
		found = append(found, v.checkRequiredFields(index, t)...)
	}

	// Stable by field path; insertion order already encodes check order.
	sort.SliceStable(found, func(a, b int) bool {
		return found[a].FieldPath < found[b].FieldPath
	})
	return found
}

// checkRequiredFields reports destination-service required fields that
// appear in neither payload. Fields present in the source are the tag-loss
// check's business.
func (v *Validator) checkRequiredFields(index int, t *Transition) []Violation {
	required, err := v.registry.RequiredFields(t.Destination.Service)
	if err != nil {
		// Destination service has no registry entries at all; every one of
		// its payload fields was already reported as unregistered.
		return nil
	}

	var found []Violation
	for _, desc := range required {
		_, inSrc := t.Source.Fields[desc.FieldPath]
		_, inDst := t.Destination.Fields[desc.FieldPath]
		if !inSrc && !inDst {
			found = append(found, Violation{
				Type:            ViolationRequiredFieldMissing,
				TransitionIndex: index,
				FieldPath:       desc.FieldPath,
				Detail:          fmt.Sprintf("field is required for %s but appears in neither payload", t.Destination.Service),
			})
		}
	}
	return found
}

// unionPaths returns the sorted union of field paths across both payloads.
func unionPaths(src, dst map[string]FieldTag) []string {
	seen := make(map[string]struct{}, len(src)+len(dst))
	for path := range src {
		seen[path] = struct{}{}
	}
	for path := range dst {
		seen[path] = struct{}{}
	}
	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
