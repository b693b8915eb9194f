package editor

import (
	"fmt"

	"migrant/state"
)

type postgresEditor struct {
	types TypeMapper
}

func (e *postgresEditor) Dialect() Dialect                    { return Postgres }
func (e *postgresEditor) QuoteIdentifier(name string) string  { return quoteDouble(name) }
func (e *postgresEditor) QuoteString(value string) string     { return quoteSingle(value) }
func (e *postgresEditor) ColumnType(t state.FieldType) string { return e.types(t) }

func postgresTypes(t state.FieldType) string {
	switch t.Kind {
	case state.KindDateTime:
		return "TIMESTAMP"
	case state.KindDouble:
		return "DOUBLE PRECISION"
	case state.KindFloat:
		return "REAL"
	case state.KindBinary:
		return "BYTEA"
	default:
		return t.String()
	}
}

func (e *postgresEditor) CreateTableSQL(m state.ModelState) []string {
	var cols []string
	for _, f := range m.Fields() {
		col := columnClause(e.QuoteIdentifier, e.types, f)
		if isAutoIncrement(f) {
			col += " GENERATED BY DEFAULT AS IDENTITY"
		}
		if isPrimaryKey(f) {
			col += " PRIMARY KEY"
		}
		cols = append(cols, col)
	}
	return []string{createTable(e.QuoteIdentifier, m, cols)}
}

func (e *postgresEditor) DropTableSQL(table string) []string {
	return []string{fmt.Sprintf("DROP TABLE %s", e.QuoteIdentifier(table))}
}

func (e *postgresEditor) RenameTableSQL(oldName, newName string) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		e.QuoteIdentifier(oldName), e.QuoteIdentifier(newName))}
}

func (e *postgresEditor) AddColumnSQL(table string, f state.FieldState) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
		e.QuoteIdentifier(table), columnClause(e.QuoteIdentifier, e.types, f))}
}

func (e *postgresEditor) DropColumnSQL(table, column string) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		e.QuoteIdentifier(table), e.QuoteIdentifier(column))}
}

func (e *postgresEditor) RenameColumnSQL(table, oldName, newName string) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		e.QuoteIdentifier(table), e.QuoteIdentifier(oldName), e.QuoteIdentifier(newName))}
}

func (e *postgresEditor) AlterColumnTypeSQL(m state.ModelState, f state.FieldState) []string {
	stmts := []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s",
		e.QuoteIdentifier(m.TableName), e.QuoteIdentifier(f.Name), e.types(f.Type))}
	if f.Nullable {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL",
			e.QuoteIdentifier(m.TableName), e.QuoteIdentifier(f.Name)))
	} else {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL",
			e.QuoteIdentifier(m.TableName), e.QuoteIdentifier(f.Name)))
	}
	return stmts
}
