// Package registry provides the canonical tag registry: the source of truth
// mapping (service, field path) → expected tag for every known field of
// every simulated service.
//
// Per docs/pii-tagging-policy.md: "The registry is the authority. A field
// without a registry entry has no classification, and unclassified data
// crossing a service boundary is a finding, not a fallback."
//
// The registry is load-then-read: it is populated once (from a tag schema
// file or explicit Register calls) and treated as immutable afterwards.
// Validation runs that need isolation take a Snapshot.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/errors"
)

// Tag is the (sensitivity level, retention policy) pair attached to a field.
type Tag struct {
	// Level is the sensitivity classification.
	Level classification.Level `json:"level" yaml:"level"`

	// Retention is the retention policy.
	Retention classification.RetentionPolicy `json:"retention" yaml:"retention"`
}

// Validate checks that both halves of the tag are members of their sets.
func (t Tag) Validate() error {
	if !t.Level.IsValid() {
		return fmt.Errorf("invalid sensitivity level: %s (valid: %v)", t.Level, classification.AllLevels())
	}
	if !t.Retention.IsValid() {
		return fmt.Errorf("invalid retention policy: %s", t.Retention)
	}
	return nil
}

// Equal reports whether two tags carry the same level and retention.
func (t Tag) Equal(other Tag) bool {
	return t.Level == other.Level && t.Retention == other.Retention
}

// String returns the compact form used in reports, e.g. "CRITICAL/delete-on-request".
func (t Tag) String() string {
	return fmt.Sprintf("%s/%s", t.Level, t.Retention)
}

// FieldDescriptor identifies a named field within a named service and its
// canonical tag.
type FieldDescriptor struct {
	// Service is the owning service, e.g. "userinfoservice".
	Service string `json:"service" yaml:"service"`

	// FieldPath is the dot-separated path within the service's payloads,
	// e.g. "users.userPassword" or "address.city".
	FieldPath string `json:"field_path" yaml:"field_path"`

	// Tag is the canonical classification for this field.
	Tag Tag `json:"tag" yaml:"tag"`

	// Required marks fields that must be present in the service's payloads.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Description is a human-readable description of the field.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Validate checks if the field descriptor is valid.
// Returns nil if valid, or an error describing the problem.
func (d *FieldDescriptor) Validate() error {
	if d.Service == "" {
		return errors.NewInvalidTag(d.Service, d.FieldPath, "service name is required")
	}
	if d.FieldPath == "" {
		return errors.NewInvalidTag(d.Service, d.FieldPath, "field path is required")
	}
	for i, segment := range strings.Split(d.FieldPath, ".") {
		if segment == "" {
			return errors.NewInvalidTag(d.Service, d.FieldPath,
				fmt.Sprintf("field path segment %d is empty", i))
		}
	}
	if err := d.Tag.Validate(); err != nil {
		return errors.NewInvalidTag(d.Service, d.FieldPath, err.Error())
	}
	return nil
}

// Registry is the canonical (service, field path) → Tag table.
type Registry struct {
	// services maps service name → field path → descriptor.
	services map[string]map[string]FieldDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]map[string]FieldDescriptor),
	}
}

// Register adds a field descriptor to the registry.
// Re-registering the same (service, field path) with identical values is a
// no-op; a conflicting re-registration fails with ErrDuplicateField so stale
// definitions surface instead of silently winning.
func (r *Registry) Register(desc FieldDescriptor) error {
	return r.register(desc, false)
}

// Overwrite adds a field descriptor, replacing any existing entry for the
// same (service, field path).
func (r *Registry) Overwrite(desc FieldDescriptor) error {
	return r.register(desc, true)
}

func (r *Registry) register(desc FieldDescriptor, overwrite bool) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	fields, ok := r.services[desc.Service]
	if !ok {
		fields = make(map[string]FieldDescriptor)
		r.services[desc.Service] = fields
	}

	if existing, ok := fields[desc.FieldPath]; ok && !overwrite {
		if existing.Tag.Equal(desc.Tag) && existing.Required == desc.Required {
			// Identical re-registration carries no new information.
			return nil
		}
		return errors.NewDuplicateField(desc.Service, desc.FieldPath)
	}

	fields[desc.FieldPath] = desc
	return nil
}

// Lookup returns the canonical tag for (service, field path).
// There is no default: an unregistered field is an error.
func (r *Registry) Lookup(service, fieldPath string) (Tag, error) {
	desc, err := r.Describe(service, fieldPath)
	if err != nil {
		return Tag{}, err
	}
	return desc.Tag, nil
}

// Describe returns the full field descriptor for (service, field path).
func (r *Registry) Describe(service, fieldPath string) (FieldDescriptor, error) {
	fields, ok := r.services[service]
	if !ok {
		return FieldDescriptor{}, errors.NewUnknownService(service)
	}
	desc, ok := fields[fieldPath]
	if !ok {
		return FieldDescriptor{}, errors.NewUnknownField(service, fieldPath)
	}
	return desc, nil
}

// HasService reports whether any fields are registered for the service.
func (r *Registry) HasService(service string) bool {
	_, ok := r.services[service]
	return ok
}

// HasField reports whether (service, field path) is registered.
func (r *Registry) HasField(service, fieldPath string) bool {
	fields, ok := r.services[service]
	if !ok {
		return false
	}
	_, ok = fields[fieldPath]
	return ok
}

// ResolveColumn maps a database column name onto a registered field path for
// the service. Registry paths are lowerCamel ("userPassword", "address.city")
// while live schemas usually expose snake_case columns ("user_password"), so
// the resolver tries, in order:
//
//  1. the column as an exact field path,
//  2. a case-insensitive field path match,
//  3. the snake_case column converted to lowerCamel,
//  4. the column against the last segment of dotted field paths, accepted
//     only when exactly one field matches.
//
// The boolean result is false when no unambiguous match exists. Resolution
// never guesses between candidates: an ambiguous column is treated as
// unregistered so it surfaces in coverage reports instead of binding to the
// wrong tag.
func (r *Registry) ResolveColumn(service, column string) (FieldDescriptor, bool) {
	fields, ok := r.services[service]
	if !ok || column == "" {
		return FieldDescriptor{}, false
	}

	if desc, ok := fields[column]; ok {
		return desc, true
	}

	lowered := strings.ToLower(column)
	camel := camelFromSnake(column)
	var matches []FieldDescriptor
	for path, desc := range fields {
		if strings.ToLower(path) == lowered || strings.EqualFold(path, camel) {
			return desc, true
		}
		segments := strings.Split(path, ".")
		last := segments[len(segments)-1]
		if strings.EqualFold(last, column) || strings.EqualFold(last, camel) {
			matches = append(matches, desc)
		}
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	return FieldDescriptor{}, false
}

// camelFromSnake converts a snake_case identifier to lowerCamel:
// "user_id" → "userId", "card_number" → "cardNumber". Identifiers without
// underscores pass through unchanged.
func camelFromSnake(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString(strings.ToLower(part))
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		if len(part) > 1 {
			b.WriteString(strings.ToLower(part[1:]))
		}
	}
	return b.String()
}

// Services returns all registered service names, sorted.
func (r *Registry) Services() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields returns all field descriptors for a service, sorted by field path.
func (r *Registry) Fields(service string) ([]FieldDescriptor, error) {
	fields, ok := r.services[service]
	if !ok {
		return nil, errors.NewUnknownService(service)
	}
	result := make([]FieldDescriptor, 0, len(fields))
	for _, desc := range fields {
		result = append(result, desc)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FieldPath < result[j].FieldPath
	})
	return result, nil
}

// SensitiveFields returns the service's fields at or above minLevel, sorted
// by field path. The legacy helper defaulted minLevel to SENSITIVE; callers
// here pass it explicitly.
func (r *Registry) SensitiveFields(service string, minLevel classification.Level) ([]FieldDescriptor, error) {
	fields, err := r.Fields(service)
	if err != nil {
		return nil, err
	}
	result := make([]FieldDescriptor, 0, len(fields))
	for _, desc := range fields {
		if desc.Tag.Level.AtLeast(minLevel) {
			result = append(result, desc)
		}
	}
	return result, nil
}

// RequiredFields returns the service's fields marked required, sorted by
// field path.
func (r *Registry) RequiredFields(service string) ([]FieldDescriptor, error) {
	fields, err := r.Fields(service)
	if err != nil {
		return nil, err
	}
	result := make([]FieldDescriptor, 0, len(fields))
	for _, desc := range fields {
		if desc.Required {
			result = append(result, desc)
		}
	}
	return result, nil
}

// EncryptionRequired returns the service's fields whose level requires
// encryption at rest and in transit, sorted by field path.
func (r *Registry) EncryptionRequired(service string) ([]FieldDescriptor, error) {
	fields, err := r.Fields(service)
	if err != nil {
		return nil, err
	}
	result := make([]FieldDescriptor, 0, len(fields))
	for _, desc := range fields {
		if desc.Tag.Level.RequiresEncryption() {
			result = append(result, desc)
		}
	}
	return result, nil
}

// Len returns the total number of registered fields across all services.
func (r *Registry) Len() int {
	total := 0
	for _, fields := range r.services {
		total += len(fields)
	}
	return total
}

// Snapshot returns an independent deep copy of the registry. Validation runs
// use snapshots so registry mutation in one test cannot leak into another.
func (r *Registry) Snapshot() *Registry {
	copied := NewRegistry()
	for service, fields := range r.services {
		copiedFields := make(map[string]FieldDescriptor, len(fields))
		for path, desc := range fields {
			copiedFields[path] = desc
		}
		copied.services[service] = copiedFields
	}
	return copied
}

// All returns every descriptor in the registry, sorted by service then
// field path.
func (r *Registry) All() []FieldDescriptor {
	result := make([]FieldDescriptor, 0, r.Len())
	for _, service := range r.Services() {
		fields, _ := r.Fields(service)
		result = append(result, fields...)
	}
	return result
}
