// Package inspect statically analyses SQL statements against the tag
// registry. Given a statement a service intends to run, the inspector
// reports which registered fields the statement touches, which referenced
// columns carry no registry entry, and the risk markers a reviewer would
// look for: star expansion, writes to encryption-required fields, deletes
// against indefinite-retention data.
//
// Per docs/pii-tagging-policy.md §5: "Service queries must enumerate the
// columns they touch. A query that cannot be mapped to tagged fields is an
// unclassified data access."
//
// Inspection is purely static. The inspector never connects to a database
// and never executes the statement; it parses, resolves column references
// against the registry, and reports. Live schema coverage is the scanner's
// job.
package inspect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/harperz567/food-app-qa/internal/classification"
	"github.com/harperz567/food-app-qa/internal/errors"
	"github.com/harperz567/food-app-qa/internal/registry"
)

// StatementKind classifies the top-level statement of an inspected query.
type StatementKind string

const (
	// StatementSelect is a read.
	StatementSelect StatementKind = "SELECT"

	// StatementUnion is a read combining multiple SELECT branches.
	StatementUnion StatementKind = "UNION"

	// StatementInsert writes new rows. REPLACE parses as an insert variant
	// and is classified here as well.
	StatementInsert StatementKind = "INSERT"

	// StatementUpdate rewrites existing rows.
	StatementUpdate StatementKind = "UPDATE"

	// StatementDelete removes rows.
	StatementDelete StatementKind = "DELETE"
)

// ColumnFinding is the inspection result for one referenced column.
type ColumnFinding struct {
	// Column is the column name as written in the statement.
	Column string `json:"column"`

	// Table is the base table the column resolved to, the unresolved
	// qualifier if the statement used one the inspector could not map, or
	// empty when the statement references more than one table and the
	// column is unqualified.
	Table string `json:"table,omitempty"`

	// FieldPath is the registry field path the column resolved to, when
	// registered.
	FieldPath string `json:"fieldPath,omitempty"`

	// Registered reports whether the column resolved to a registry entry
	// for the inspected service.
	Registered bool `json:"registered"`

	// Level is the registered sensitivity level. Empty when unregistered.
	Level classification.Level `json:"level,omitempty"`

	// Retention is the registered retention policy. Empty when unregistered.
	Retention classification.RetentionPolicy `json:"retention,omitempty"`

	// RequiresEncryption reports whether the registered level mandates
	// encryption at rest and in transit.
	RequiresEncryption bool `json:"requiresEncryption,omitempty"`

	// WriteTarget reports whether the statement assigns a value to this
	// column (INSERT column list or UPDATE SET clause), as opposed to
	// reading or filtering on it.
	WriteTarget bool `json:"writeTarget,omitempty"`
}

// InspectionReport is the full static analysis of one statement.
type InspectionReport struct {
	// Service is the service the statement was inspected for.
	Service string `json:"service"`

	// Kind is the top-level statement classification.
	Kind StatementKind `json:"kind"`

	// Mutates reports whether the statement writes (INSERT, UPDATE, DELETE).
	Mutates bool `json:"mutates"`

	// Tables lists the base tables the statement references, sorted.
	Tables []string `json:"tables"`

	// Columns lists per-column findings, sorted by column then table.
	Columns []ColumnFinding `json:"columns"`

	// Unregistered lists referenced columns with no registry entry, sorted.
	Unregistered []string `json:"unregistered"`

	// StarExpansion reports whether the statement contains a * projection.
	// Star projections cannot be mapped to tagged fields statically.
	StarExpansion bool `json:"starExpansion"`

	// MaxLevel is the most sensitive level among the registered columns the
	// statement touches. PUBLIC when the statement touches no registered
	// column.
	MaxLevel classification.Level `json:"maxLevel"`

	// Warnings lists human-readable risk findings, in deterministic order.
	Warnings []string `json:"warnings"`
}

// RequiresEncryption reports whether any registered column the statement
// touches sits at or above the encryption threshold.
func (r *InspectionReport) RequiresEncryption() bool {
	for _, finding := range r.Columns {
		if finding.RequiresEncryption {
			return true
		}
	}
	return false
}

// RegisteredCount returns the number of referenced columns that resolved to
// a registry entry.
func (r *InspectionReport) RegisteredCount() int {
	count := 0
	for _, finding := range r.Columns {
		if finding.Registered {
			count++
		}
	}
	return count
}

// Summary returns the one-line form used by the CLI, e.g.
// "SELECT on userinfoservice: 3 column(s), 2 registered, max level SENSITIVE".
func (r *InspectionReport) Summary() string {
	return fmt.Sprintf("%s on %s: %d column(s), %d registered, max level %s",
		r.Kind, r.Service, len(r.Columns), r.RegisteredCount(), r.MaxLevel)
}

// Inspector resolves SQL statements against a tag registry.
type Inspector struct {
	registry *registry.Registry
}

// NewInspector creates an inspector bound to the given registry.
func NewInspector(reg *registry.Registry) *Inspector {
	return &Inspector{registry: reg}
}

// Inspect parses the statement and resolves its column references against
// the registry entries for service.
//
// Returns ErrUnknownService when the service has no registered fields, and
// ErrQueryRejected when the statement is empty, does not parse, or is not a
// data statement (SELECT, INSERT, UPDATE, DELETE, UNION). Everything else
// is reported as findings, not errors: unregistered columns, star
// projections, writes to encrypted fields.
func (i *Inspector) Inspect(service, query string) (*InspectionReport, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, errors.NewQueryRejected(query,
			"statement is empty",
			"provide a single SELECT, INSERT, UPDATE, or DELETE statement")
	}
	if !i.registry.HasService(service) {
		return nil, errors.NewUnknownService(service)
	}

	stmt, err := sqlparser.Parse(trimmed)
	if err != nil {
		return nil, errors.NewQueryRejected(query,
			fmt.Sprintf("statement does not parse: %v", err),
			"check the statement syntax; only single data statements are supported")
	}

	kind, mutates, err := classifyStatement(stmt, query)
	if err != nil {
		return nil, err
	}

	refs := collectReferences(stmt)

	report := &InspectionReport{
		Service:       service,
		Kind:          kind,
		Mutates:       mutates,
		Tables:        refs.sortedTables(),
		Columns:       []ColumnFinding{},
		Unregistered:  []string{},
		StarExpansion: refs.star,
		MaxLevel:      classification.LevelPublic,
		Warnings:      []string{},
	}

	seen := make(map[string]bool)
	for _, ref := range refs.columns {
		table := refs.resolveTable(ref.qualifier)
		key := strings.ToLower(ref.name) + "\x00" + strings.ToLower(table)
		if seen[key] {
			continue
		}
		seen[key] = true

		finding := ColumnFinding{
			Column:      ref.name,
			Table:       table,
			WriteTarget: refs.writeTargets[strings.ToLower(ref.name)],
		}
		if desc, ok := i.registry.ResolveColumn(service, ref.name); ok {
			finding.Registered = true
			finding.FieldPath = desc.FieldPath
			finding.Level = desc.Tag.Level
			finding.Retention = desc.Tag.Retention
			finding.RequiresEncryption = desc.Tag.Level.RequiresEncryption()
		}
		report.Columns = append(report.Columns, finding)
	}

	sort.Slice(report.Columns, func(a, b int) bool {
		if report.Columns[a].Column != report.Columns[b].Column {
			return report.Columns[a].Column < report.Columns[b].Column
		}
		return report.Columns[a].Table < report.Columns[b].Table
	})

	for _, finding := range report.Columns {
		if !finding.Registered {
			report.Unregistered = append(report.Unregistered, finding.Column)
			continue
		}
		if finding.Level.Compare(report.MaxLevel) > 0 {
			report.MaxLevel = finding.Level
		}
	}
	sort.Strings(report.Unregistered)

	i.appendWarnings(report, refs)
	return report, nil
}

// appendWarnings derives the risk findings. Warnings follow the sorted
// column order, so repeated inspections of the same statement produce the
// same report.
func (i *Inspector) appendWarnings(report *InspectionReport, refs *statementRefs) {
	if report.StarExpansion {
		sensitive, err := i.registry.SensitiveFields(report.Service, classification.LevelSensitive)
		if err == nil && len(sensitive) > 0 {
			total, _ := i.registry.Fields(report.Service)
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"star projection expands to every column; %s has %d registered field(s), %d at or above SENSITIVE; enumerate columns explicitly",
				report.Service, len(total), len(sensitive)))
		}
	}

	if report.Kind == StatementInsert || report.Kind == StatementUpdate {
		for _, finding := range report.Columns {
			if finding.WriteTarget && finding.RequiresEncryption {
				report.Warnings = append(report.Warnings, fmt.Sprintf(
					"%s writes %s (%s); the value must be encrypted before it reaches the store",
					report.Kind, finding.FieldPath, finding.Level))
			}
		}
	}

	if report.Kind == StatementDelete {
		for _, desc := range i.tableFields(report.Service, report.Tables) {
			if desc.Tag.Retention == classification.RetainIndefinite {
				report.Warnings = append(report.Warnings, fmt.Sprintf(
					"DELETE removes rows carrying %s (%s); indefinite-retention data must not be deleted by services",
					desc.FieldPath, desc.Tag.Retention))
			}
		}
	}
}

// tableFields returns the service's registered fields whose path prefix
// names one of the statement's base tables, sorted by field path. Schemas
// with flat field paths (no table prefix) yield no matches; that is a known
// limit of static table attribution.
func (i *Inspector) tableFields(service string, tables []string) []registry.FieldDescriptor {
	fields, _ := i.registry.Fields(service)
	var result []registry.FieldDescriptor
	for _, desc := range fields {
		segments := strings.SplitN(desc.FieldPath, ".", 2)
		if len(segments) < 2 {
			continue
		}
		for _, table := range tables {
			if strings.EqualFold(segments[0], table) {
				result = append(result, desc)
				break
			}
		}
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].FieldPath < result[b].FieldPath
	})
	return result
}

// classifyStatement maps the parsed statement onto a StatementKind and the
// mutation flag. Non-data statements (DDL, SET, SHOW, transaction control)
// are rejected: the inspector classifies data access, not schema changes.
func classifyStatement(stmt sqlparser.Statement, query string) (StatementKind, bool, error) {
	switch stmt.(type) {
	case *sqlparser.Select:
		return StatementSelect, false, nil
	case *sqlparser.Union:
		return StatementUnion, false, nil
	case *sqlparser.Insert:
		return StatementInsert, true, nil
	case *sqlparser.Update:
		return StatementUpdate, true, nil
	case *sqlparser.Delete:
		return StatementDelete, true, nil
	default:
		return "", false, errors.NewQueryRejected(query,
			fmt.Sprintf("%T is not a data statement", stmt),
			"only SELECT, INSERT, UPDATE, DELETE, and UNION statements can be inspected")
	}
}

// columnRef is a raw column reference before registry resolution.
type columnRef struct {
	name      string
	qualifier string
}

// statementRefs holds everything collectReferences extracts from one parsed
// statement.
type statementRefs struct {
	// tables lists base tables in first-seen order.
	tables []string

	// aliases maps lowercased alias or table name → base table.
	aliases map[string]string

	// columns lists raw column references in parse order, duplicates kept.
	columns []columnRef

	// writeTargets holds lowercased column names the statement assigns to.
	writeTargets map[string]bool

	// star reports whether any * projection appeared.
	star bool
}

// collectReferences walks the parsed statement and extracts table and
// column references. The walk descends into subqueries and UNION branches,
// so nested reads are attributed the same way top-level ones are.
func collectReferences(stmt sqlparser.Statement) *statementRefs {
	refs := &statementRefs{
		aliases:      make(map[string]string),
		writeTargets: make(map[string]bool),
	}

	// INSERT carries its table and column list outside the expression tree:
	// the table is a bare TableName and the columns are identifiers, not
	// ColName nodes, so the generic walk below would miss both.
	if insert, ok := stmt.(*sqlparser.Insert); ok {
		table := insert.Table.Name.String()
		refs.addTable(table, "")
		for _, col := range insert.Columns {
			refs.columns = append(refs.columns, columnRef{name: col.String(), qualifier: table})
			refs.writeTargets[strings.ToLower(col.String())] = true
		}
	}

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case *sqlparser.AliasedTableExpr:
			if table, ok := n.Expr.(sqlparser.TableName); ok {
				refs.addTable(table.Name.String(), n.As.String())
			}
		case *sqlparser.UpdateExpr:
			refs.writeTargets[strings.ToLower(n.Name.Name.String())] = true
		case *sqlparser.ColName:
			ref := columnRef{name: n.Name.String()}
			if !n.Qualifier.IsEmpty() {
				ref.qualifier = n.Qualifier.Name.String()
			}
			refs.columns = append(refs.columns, ref)
		case *sqlparser.StarExpr:
			refs.star = true
		}
		return true, nil
	}, stmt)

	return refs
}

func (r *statementRefs) addTable(name, alias string) {
	if name == "" {
		return
	}
	if _, seen := r.aliases[strings.ToLower(name)]; !seen {
		r.aliases[strings.ToLower(name)] = name
	}
	if alias != "" {
		r.aliases[strings.ToLower(alias)] = name
	}
	for _, existing := range r.tables {
		if strings.EqualFold(existing, name) {
			return
		}
	}
	r.tables = append(r.tables, name)
}

// resolveTable maps a column qualifier onto a base table. An empty
// qualifier resolves to the statement's only table when there is exactly
// one; a qualifier with no alias entry (a derived table, for instance) is
// returned as written.
func (r *statementRefs) resolveTable(qualifier string) string {
	if qualifier == "" {
		if len(r.tables) == 1 {
			return r.tables[0]
		}
		return ""
	}
	if base, ok := r.aliases[strings.ToLower(qualifier)]; ok {
		return base
	}
	return qualifier
}

func (r *statementRefs) sortedTables() []string {
	sorted := make([]string, len(r.tables))
	copy(sorted, r.tables)
	sort.Strings(sorted)
	return sorted
}
