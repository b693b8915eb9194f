package editor

import (
	"fmt"

	"migrant/state"
)

const rebuildSuffix = "__migrant_new"

type sqliteEditor struct {
	types TypeMapper
}

func (e *sqliteEditor) Dialect() Dialect                    { return SQLite }
func (e *sqliteEditor) QuoteIdentifier(name string) string  { return quoteDouble(name) }
func (e *sqliteEditor) QuoteString(value string) string     { return quoteSingle(value) }
func (e *sqliteEditor) ColumnType(t state.FieldType) string { return e.types(t) }

func sqliteTypes(t state.FieldType) string {
	switch t.Kind {
	case state.KindBoolean, state.KindBigInt, state.KindSmallInt:
		return "INTEGER"
	case state.KindFloat, state.KindDouble:
		return "REAL"
	case state.KindUUID, state.KindJSON, state.KindJSONB:
		return "TEXT"
	case state.KindBinary:
		return "BLOB"
	default:
		return t.String()
	}
}

func (e *sqliteEditor) CreateTableSQL(m state.ModelState) []string {
	var cols []string
	for _, f := range m.Fields() {
		col := columnClause(e.QuoteIdentifier, e.types, f)
		if isPrimaryKey(f) {
			col += " PRIMARY KEY"
			// AUTOINCREMENT is only legal on INTEGER PRIMARY KEY.
			if isAutoIncrement(f) && e.types(f.Type) == "INTEGER" {
				col += " AUTOINCREMENT"
			}
		}
		cols = append(cols, col)
	}
	return []string{createTable(e.QuoteIdentifier, m, cols)}
}

func (e *sqliteEditor) DropTableSQL(table string) []string {
	return []string{fmt.Sprintf("DROP TABLE %s", e.QuoteIdentifier(table))}
}

func (e *sqliteEditor) RenameTableSQL(oldName, newName string) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		e.QuoteIdentifier(oldName), e.QuoteIdentifier(newName))}
}

func (e *sqliteEditor) AddColumnSQL(table string, f state.FieldState) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
		e.QuoteIdentifier(table), columnClause(e.QuoteIdentifier, e.types, f))}
}

func (e *sqliteEditor) DropColumnSQL(table, column string) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		e.QuoteIdentifier(table), e.QuoteIdentifier(column))}
}

// RenameColumnSQL renders the native form; SQLite supports it since 3.25.
func (e *sqliteEditor) RenameColumnSQL(table, oldName, newName string) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		e.QuoteIdentifier(table), e.QuoteIdentifier(oldName), e.QuoteIdentifier(newName))}
}

// AlterColumnTypeSQL emulates the type change SQLite cannot express inline:
// create a new table with the altered definition, copy rows, drop the old
// table and rename the new one into place. m is the pre-change model; f is
// the altered definition and replaces its entry in the rebuilt table.
func (e *sqliteEditor) AlterColumnTypeSQL(m state.ModelState, f state.FieldState) []string {
	rebuilt := m.Clone()
	rebuilt.AddField(f)
	rebuilt.TableName = m.TableName + rebuildSuffix

	stmts := e.CreateTableSQL(rebuilt)

	cols := quoteJoin(e.QuoteIdentifier, rebuilt.FieldNames())
	stmts = append(stmts, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		e.QuoteIdentifier(rebuilt.TableName), cols, cols, e.QuoteIdentifier(m.TableName)))
	stmts = append(stmts, e.DropTableSQL(m.TableName)...)
	stmts = append(stmts, e.RenameTableSQL(rebuilt.TableName, m.TableName)...)
	return stmts
}
