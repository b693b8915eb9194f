package editor

import (
	"fmt"
	"strings"

	"migrant/state"
)

type mysqlEditor struct {
	types TypeMapper
}

func (e *mysqlEditor) Dialect() Dialect { return MySQL }

func (e *mysqlEditor) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (e *mysqlEditor) QuoteString(value string) string     { return quoteSingle(value) }
func (e *mysqlEditor) ColumnType(t state.FieldType) string { return e.types(t) }

func mysqlTypes(t state.FieldType) string {
	switch t.Kind {
	case state.KindBoolean:
		return "TINYINT(1)"
	case state.KindTimestampTz:
		return "TIMESTAMP"
	case state.KindUUID:
		return "CHAR(36)"
	case state.KindJSONB:
		return "JSON"
	case state.KindBinary:
		return "BLOB"
	default:
		return t.String()
	}
}

func (e *mysqlEditor) CreateTableSQL(m state.ModelState) []string {
	var cols []string
	for _, f := range m.Fields() {
		col := columnClause(e.QuoteIdentifier, e.types, f)
		if isAutoIncrement(f) {
			col += " AUTO_INCREMENT"
		}
		if isPrimaryKey(f) {
			col += " PRIMARY KEY"
		}
		cols = append(cols, col)
	}
	return []string{createTable(e.QuoteIdentifier, m, cols)}
}

func (e *mysqlEditor) DropTableSQL(table string) []string {
	return []string{fmt.Sprintf("DROP TABLE %s", e.QuoteIdentifier(table))}
}

func (e *mysqlEditor) RenameTableSQL(oldName, newName string) []string {
	return []string{fmt.Sprintf("RENAME TABLE %s TO %s",
		e.QuoteIdentifier(oldName), e.QuoteIdentifier(newName))}
}

func (e *mysqlEditor) AddColumnSQL(table string, f state.FieldState) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
		e.QuoteIdentifier(table), columnClause(e.QuoteIdentifier, e.types, f))}
}

func (e *mysqlEditor) DropColumnSQL(table, column string) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		e.QuoteIdentifier(table), e.QuoteIdentifier(column))}
}

func (e *mysqlEditor) RenameColumnSQL(table, oldName, newName string) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		e.QuoteIdentifier(table), e.QuoteIdentifier(oldName), e.QuoteIdentifier(newName))}
}

func (e *mysqlEditor) AlterColumnTypeSQL(m state.ModelState, f state.FieldState) []string {
	// MODIFY COLUMN restates the full definition, including nullability.
	return []string{fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s",
		e.QuoteIdentifier(m.TableName), columnClause(e.QuoteIdentifier, e.types, f))}
}
