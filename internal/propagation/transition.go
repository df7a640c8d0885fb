package propagation

import (
	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/registry"
)

// FieldTag is the classification attached to one field inside one payload.
// The wire shape mirrors the JSON tag annotations captured by the test
// harness: {"level": "...", "retentionPolicy": "..."}.
type FieldTag struct {
	// Level is the sensitivity level the payload claims for the field.
	Level classification.Level `json:"level"`

	// Retention is the retention policy the payload claims for the field.
	Retention classification.RetentionPolicy `json:"retentionPolicy"`
}

// Tag converts the payload annotation to a registry tag.
func (f FieldTag) Tag() registry.Tag {
	return registry.Tag{Level: f.Level, Retention: f.Retention}
}

// FromTag converts a registry tag to a payload annotation.
func FromTag(t registry.Tag) FieldTag {
	return FieldTag{Level: t.Level, Retention: t.Retention}
}

// Payload is a snapshot of tagged data at one side of a service hop.
type Payload struct {
	// Service is the service emitting or receiving the payload.
	Service string `json:"service"`

	// Fields maps field path to the tag the payload carries for it.
	// A nil map is an empty payload; services legitimately emit hops with
	// no tagged fields.
	Fields map[string]FieldTag `json:"fields"`
}

// Transition is one hop of data flow: an ordered (source, destination)
// payload pair across a service boundary.
type Transition struct {
	// Source is the payload leaving the upstream service.
	Source *Payload `json:"source"`

	// Destination is the payload arriving at the downstream service.
	Destination *Payload `json:"destination"`

	// Dropped lists field paths the destination intentionally stops
	// propagating. A source field above PUBLIC that is absent downstream is
	// tag loss unless listed here. The declaration suppresses only the
	// tag-loss check; every other check still runs.
	Dropped []string `json:"dropped,omitempty"`
}

// validateShape checks the transition is structurally evaluable.
// Policy violations are report data; this guards only input the validator
// cannot reason about at all.
func (t *Transition) validateShape(index int) error {
	if t.Source == nil {
		return errors.NewMalformedTransition(index, "source payload is required")
	}
	if t.Destination == nil {
		return errors.NewMalformedTransition(index, "destination payload is required")
	}
	if t.Source.Service == "" {
		return errors.NewMalformedTransition(index, "source payload has no service name")
	}
	if t.Destination.Service == "" {
		return errors.NewMalformedTransition(index, "destination payload has no service name")
	}
	return nil
}

// droppedSet returns the dropped declarations as a set.
func (t *Transition) droppedSet() map[string]struct{} {
	if len(t.Dropped) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(t.Dropped))
	for _, path := range t.Dropped {
		set[path] = struct{}{}
	}
	return set
}
