// Package classification defines the sensitivity and retention model for
// tagged fields. Sensitivity levels are ordered; retention policies are a
// closed set. Both parse strictly: an unrecognized value is an error, never
// a silent default.
//
// Per docs/pii-tagging-policy.md: "Every field carries a level and a
// retention policy. There is no implicit classification."
package classification

import (
	"fmt"
	"strings"
)

// Level represents the sensitivity classification of a field.
// Levels are ordered: PUBLIC < INTERNAL < SENSITIVE < HIGHLY_SENSITIVE < CRITICAL.
type Level string

const (
	// LevelPublic marks data safe for unrestricted exposure.
	LevelPublic Level = "PUBLIC"

	// LevelInternal marks data restricted to the platform itself.
	LevelInternal Level = "INTERNAL"

	// LevelSensitive marks personal data requiring access control.
	LevelSensitive Level = "SENSITIVE"

	// LevelHighlySensitive marks personal data requiring encryption at rest
	// and in transit.
	LevelHighlySensitive Level = "HIGHLY_SENSITIVE"

	// LevelCritical marks credentials and payment data. Strongest controls.
	LevelCritical Level = "CRITICAL"
)

// AllLevels returns all valid levels in ascending sensitivity order.
func AllLevels() []Level {
	return []Level{
		LevelPublic,
		LevelInternal,
		LevelSensitive,
		LevelHighlySensitive,
		LevelCritical,
	}
}

// IsValid checks if the level is a known valid level.
func (l Level) IsValid() bool {
	for _, valid := range AllLevels() {
		if l == valid {
			return true
		}
	}
	return false
}

// String returns the string representation of the level.
func (l Level) String() string {
	return string(l)
}

// Rank returns the numeric rank of the level, 0 (PUBLIC) through 4 (CRITICAL).
// Ranks match the legacy piiLevel values used in the service tag schemas.
func (l Level) Rank() int {
	switch l {
	case LevelPublic:
		return 0
	case LevelInternal:
		return 1
	case LevelSensitive:
		return 2
	case LevelHighlySensitive:
		return 3
	case LevelCritical:
		return 4
	default:
		return -1
	}
}

// Compare returns -1, 0, or 1 as l is less, equally, or more sensitive than other.
func (l Level) Compare(other Level) int {
	switch {
	case l.Rank() < other.Rank():
		return -1
	case l.Rank() > other.Rank():
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether l is at least as sensitive as min.
func (l Level) AtLeast(min Level) bool {
	return l.Rank() >= min.Rank()
}

// RequiresEncryption reports whether fields at this level must be encrypted
// at rest and in transit. Per docs/pii-tagging-policy.md §4, the threshold
// is HIGHLY_SENSITIVE.
func (l Level) RequiresEncryption() bool {
	return l.Rank() >= LevelHighlySensitive.Rank()
}

// ParseLevel parses a string into a Level.
// Returns an error if the string is not a valid level.
func ParseLevel(s string) (Level, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	l := Level(normalized)
	if !l.IsValid() {
		return "", fmt.Errorf("invalid sensitivity level: %s (valid: %v)", s, AllLevels())
	}
	return l, nil
}

// LevelFromRank returns the level for a numeric rank 0-4.
// Returns an error for out-of-range ranks; legacy schemas must not carry
// unknown levels.
func LevelFromRank(rank int) (Level, error) {
	for _, l := range AllLevels() {
		if l.Rank() == rank {
			return l, nil
		}
	}
	return "", fmt.Errorf("invalid sensitivity rank: %d (valid: 0-4)", rank)
}

// LevelSet is a set of levels for efficient lookup.
type LevelSet map[Level]struct{}

// NewLevelSet creates a new LevelSet from a slice of levels.
func NewLevelSet(levels []Level) LevelSet {
	set := make(LevelSet, len(levels))
	for _, l := range levels {
		set[l] = struct{}{}
	}
	return set
}

// Has checks if the set contains the given level.
func (ls LevelSet) Has(l Level) bool {
	_, ok := ls[l]
	return ok
}

// Add adds a level to the set.
func (ls LevelSet) Add(l Level) {
	ls[l] = struct{}{}
}

// Slice returns the levels as a slice.
func (ls LevelSet) Slice() []Level {
	result := make([]Level, 0, len(ls))
	for l := range ls {
		result = append(result, l)
	}
	return result
}
