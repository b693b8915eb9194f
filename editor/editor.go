// Package editor renders dialect-specific DDL. Operations delegate every
// identifier quote and type spelling here so the same operation produces
// correct SQL for any supported database.
package editor

import (
	"fmt"
	"strings"

	"migrant/state"
)

// Dialect is the closed set of supported databases.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// SchemaEditor renders DDL statements for one dialect. Methods returning a
// slice may emit several statements (e.g. the SQLite table rebuild).
type SchemaEditor interface {
	Dialect() Dialect
	QuoteIdentifier(name string) string
	QuoteString(value string) string
	// ColumnType spells the DDL type for a field type.
	ColumnType(t state.FieldType) string

	CreateTableSQL(m state.ModelState) []string
	DropTableSQL(table string) []string
	RenameTableSQL(oldName, newName string) []string
	AddColumnSQL(table string, f state.FieldState) []string
	DropColumnSQL(table, column string) []string
	RenameColumnSQL(table, oldName, newName string) []string
	// AlterColumnTypeSQL changes a column to the definition in f. The full
	// model is passed because SQLite rebuilds the whole table.
	AlterColumnTypeSQL(m state.ModelState, f state.FieldState) []string
}

// TypeMapper maps a field type to its DDL spelling. The mapping table is a
// collaborator: callers may supply their own, otherwise the dialect default
// applies.
type TypeMapper func(state.FieldType) string

// Option configures an editor returned by New.
type Option func(*config)

type config struct {
	types TypeMapper
}

// WithTypeMapper overrides the dialect's built-in field-type mapping.
func WithTypeMapper(m TypeMapper) Option {
	return func(c *config) { c.types = m }
}

// New returns the editor for a dialect. The dialect set is closed; anything
// else is an error.
func New(d Dialect, opts ...Option) (SchemaEditor, error) {
	var c config
	for _, o := range opts {
		o(&c)
	}
	switch d {
	case Postgres:
		return &postgresEditor{types: orDefault(c.types, postgresTypes)}, nil
	case MySQL:
		return &mysqlEditor{types: orDefault(c.types, mysqlTypes)}, nil
	case SQLite:
		return &sqliteEditor{types: orDefault(c.types, sqliteTypes)}, nil
	default:
		return nil, fmt.Errorf("editor: unsupported dialect %q", d)
	}
}

func orDefault(m, fallback TypeMapper) TypeMapper {
	if m != nil {
		return m
	}
	return fallback
}

// quoteDouble quotes an identifier with double quotes (Postgres, SQLite).
func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteSingle quotes a string literal.
func quoteSingle(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// columnClause renders the shared column definition: name, type, NOT NULL,
// DEFAULT. Primary key and auto increment spelling differ per dialect and are
// appended by the caller.
func columnClause(quote func(string) string, types TypeMapper, f state.FieldState) string {
	var sb strings.Builder
	sb.WriteString(quote(f.Name))
	sb.WriteString(" ")
	sb.WriteString(types(f.Type))
	if !f.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if def, ok := f.Params["default"]; ok {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(def)
	}
	return sb.String()
}

func isPrimaryKey(f state.FieldState) bool {
	return f.Params["primary_key"] == "true"
}

func isAutoIncrement(f state.FieldState) bool {
	return f.Params["auto_increment"] == "true"
}

// tableConstraintClauses renders named table-level constraints plus one
// FOREIGN KEY clause per field-level reference, in deterministic order.
func tableConstraintClauses(quote func(string) string, m state.ModelState) []string {
	var out []string
	for _, c := range m.Constraints {
		switch c.Kind {
		case state.ConstraintUnique:
			out = append(out, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)",
				quote(c.Name), quoteJoin(quote, c.Fields)))
		case state.ConstraintCheck:
			out = append(out, fmt.Sprintf("CONSTRAINT %s CHECK (%s)",
				quote(c.Name), c.Expression))
		}
	}
	for _, name := range m.FieldNames() {
		f, _ := m.Field(name)
		if f.ForeignKey == nil {
			continue
		}
		fk := f.ForeignKey
		clause := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			quote("fk_"+m.TableName+"_"+f.Name),
			quote(f.Name), quote(fk.Table), quote(fk.Column))
		if fk.OnDelete != state.RefActionNone {
			clause += " ON DELETE " + string(fk.OnDelete)
		}
		if fk.OnUpdate != state.RefActionNone {
			clause += " ON UPDATE " + string(fk.OnUpdate)
		}
		out = append(out, clause)
	}
	return out
}

func quoteJoin(quote func(string) string, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

// createTable assembles a CREATE TABLE statement from per-column clauses and
// table constraints.
func createTable(quote func(string) string, m state.ModelState, columns []string) string {
	clauses := append(columns, tableConstraintClauses(quote, m)...)
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", quote(m.TableName), strings.Join(clauses, ",\n  "))
}
