package scanner

import (
	"fmt"
	"sort"

	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/registry"
)

// CoveredColumn pairs a live column with the registry field it satisfies.
type CoveredColumn struct {
	// Column is the live column as the store reported it.
	Column Column `json:"column"`

	// FieldPath is the registry field path the column resolved to.
	FieldPath string `json:"fieldPath"`

	// Level is the registered sensitivity level.
	Level classification.Level `json:"level"`

	// Retention is the registered retention policy.
	Retention classification.RetentionPolicy `json:"retention"`
}

// CoverageReport is the result of auditing one service's store against the
// tag registry.
type CoverageReport struct {
	// Service is the audited service.
	Service string `json:"service"`

	// Store is the store technology the columns came from.
	Store string `json:"store"`

	// Covered lists live columns that resolved to a registry entry, sorted
	// by table then column name.
	Covered []CoveredColumn `json:"covered"`

	// Unregistered lists live columns with no registry entry, sorted by
	// table then column name. Unclassified storage is a finding.
	Unregistered []Column `json:"unregistered"`

	// Missing lists registered field paths no live column satisfies,
	// sorted. A missing field is either a stale registry entry or a store
	// that silently stopped holding data it is still tagged for.
	Missing []string `json:"missing"`
}

// Passed reports whether the store and the registry agree: every live
// column is tagged and every tagged field is live.
func (r *CoverageReport) Passed() bool {
	return len(r.Unregistered) == 0 && len(r.Missing) == 0
}

// LevelCounts returns how many covered columns carry each sensitivity
// level. Unregistered columns have no level and are not counted.
func (r *CoverageReport) LevelCounts() map[classification.Level]int {
	counts := make(map[classification.Level]int)
	for _, col := range r.Covered {
		counts[col.Level]++
	}
	return counts
}

// Summary returns the one-line form used by the CLI, e.g.
// "postgres scan of userinfoservice: 6 column(s), 4 covered, 1 unregistered, 1 missing".
func (r *CoverageReport) Summary() string {
	total := len(r.Covered) + len(r.Unregistered)
	return fmt.Sprintf("%s scan of %s: %d column(s), %d covered, %d unregistered, %d missing",
		r.Store, r.Service, total, len(r.Covered), len(r.Unregistered), len(r.Missing))
}

// AuditCoverage diffs a store's live columns against the service's
// registered fields. Column-to-field resolution follows
// registry.ResolveColumn; an ambiguous column counts as unregistered.
//
// Returns ErrUnknownService when the service has no registered fields;
// auditing coverage against an empty registry would report every column as
// unregistered and mean nothing.
func AuditCoverage(reg *registry.Registry, service, store string, columns []Column) (*CoverageReport, error) {
	if !reg.HasService(service) {
		return nil, errors.NewUnknownService(service)
	}

	report := &CoverageReport{
		Service:      service,
		Store:        store,
		Covered:      []CoveredColumn{},
		Unregistered: []Column{},
		Missing:      []string{},
	}

	coveredPaths := make(map[string]bool)
	for _, column := range columns {
		desc, ok := reg.ResolveColumn(service, column.Name)
		if !ok {
			report.Unregistered = append(report.Unregistered, column)
			continue
		}
		coveredPaths[desc.FieldPath] = true
		report.Covered = append(report.Covered, CoveredColumn{
			Column:    column,
			FieldPath: desc.FieldPath,
			Level:     desc.Tag.Level,
			Retention: desc.Tag.Retention,
		})
	}

	fields, err := reg.Fields(service)
	if err != nil {
		return nil, err
	}
	for _, desc := range fields {
		if !coveredPaths[desc.FieldPath] {
			report.Missing = append(report.Missing, desc.FieldPath)
		}
	}

	sort.Slice(report.Covered, func(a, b int) bool {
		if report.Covered[a].Column.Table != report.Covered[b].Column.Table {
			return report.Covered[a].Column.Table < report.Covered[b].Column.Table
		}
		return report.Covered[a].Column.Name < report.Covered[b].Column.Name
	})
	sort.Slice(report.Unregistered, func(a, b int) bool {
		if report.Unregistered[a].Table != report.Unregistered[b].Table {
			return report.Unregistered[a].Table < report.Unregistered[b].Table
		}
		return report.Unregistered[a].Name < report.Unregistered[b].Name
	})
	sort.Strings(report.Missing)

	return report, nil
}
