// Package inspect builds a ProjectState from a MySQL schema dump, so an
// existing database can be imported as migration history.
package inspect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"migrant/state"
)

type Parser struct {
	p *parser.Parser
}

func NewParser() *Parser {
	return &Parser{p: parser.New()}
}

// Parse reads CREATE TABLE statements from a mysqldump-style script and
// returns the equivalent snapshot under the given namespace. Other statement
// kinds (SET, INSERT, DROP) are skipped.
func (p *Parser) Parse(namespace, sql string) (*state.ProjectState, error) {
	stmts, _, err := p.p.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("inspect: parse dump: %w", err)
	}

	ps := state.NewProjectState()
	for _, stmt := range stmts {
		create, ok := stmt.(*ast.CreateTableStmt)
		if !ok {
			continue
		}
		ms, err := p.convertTable(namespace, create)
		if err != nil {
			return nil, err
		}
		ps.AddModel(ms)
	}
	return ps, nil
}

func (p *Parser) convertTable(namespace string, stmt *ast.CreateTableStmt) (state.ModelState, error) {
	table := stmt.Table.Name.O
	ms := state.NewModelState(namespace, modelName(namespace, table))
	ms.TableName = table

	for _, colDef := range stmt.Cols {
		fs, err := p.convertColumn(colDef)
		if err != nil {
			return state.ModelState{}, fmt.Errorf("inspect: table %s: %w", table, err)
		}
		ms.AddField(fs)
	}

	for _, constraint := range stmt.Constraints {
		cols := make([]string, 0, len(constraint.Keys))
		for _, key := range constraint.Keys {
			cols = append(cols, key.Column.Name.O)
		}

		switch constraint.Tp {
		case ast.ConstraintPrimaryKey:
			for _, col := range cols {
				if f, ok := ms.Field(col); ok {
					f.SetParam("primary_key", "true")
					ms.AddField(f)
				}
			}
		case ast.ConstraintUniq, ast.ConstraintUniqKey, ast.ConstraintUniqIndex:
			ms.Constraints = append(ms.Constraints, state.Constraint{
				Name:   constraint.Name,
				Kind:   state.ConstraintUnique,
				Fields: cols,
			})
		case ast.ConstraintCheck:
			c := state.Constraint{
				Name:   constraint.Name,
				Kind:   state.ConstraintCheck,
				Fields: cols,
			}
			if s := exprToString(constraint.Expr); s != "" {
				c.Expression = s
			}
			ms.Constraints = append(ms.Constraints, c)
		case ast.ConstraintForeignKey:
			fk, err := convertReference(constraint.Refer)
			if err != nil {
				return state.ModelState{}, fmt.Errorf("inspect: table %s: %w", table, err)
			}
			if len(cols) == 1 {
				if f, ok := ms.Field(cols[0]); ok {
					f.ForeignKey = fk
					ms.AddField(f)
				}
			}
		}
	}

	return ms, nil
}

func (p *Parser) convertColumn(colDef *ast.ColumnDef) (state.FieldState, error) {
	ft, err := convertType(colDef.Tp.String())
	if err != nil {
		return state.FieldState{}, fmt.Errorf("column %s: %w", colDef.Name.Name.O, err)
	}
	fs := state.FieldState{
		Name:     colDef.Name.Name.O,
		Type:     ft,
		Nullable: true,
	}

	for _, opt := range colDef.Options {
		switch opt.Tp {
		case ast.ColumnOptionNotNull:
			fs.Nullable = false
		case ast.ColumnOptionNull:
			fs.Nullable = true
		case ast.ColumnOptionPrimaryKey:
			fs.SetParam("primary_key", "true")
			fs.Nullable = false
		case ast.ColumnOptionAutoIncrement:
			fs.SetParam("auto_increment", "true")
		case ast.ColumnOptionUniqKey:
			fs.SetParam("unique", "true")
		case ast.ColumnOptionDefaultValue:
			if s := exprToString(opt.Expr); s != "" {
				fs.SetParam("default", s)
			}
		case ast.ColumnOptionReference:
			fk, err := convertReference(opt.Refer)
			if err != nil {
				return state.FieldState{}, fmt.Errorf("column %s: %w", colDef.Name.Name.O, err)
			}
			fs.ForeignKey = fk
		}
	}
	return fs, nil
}

func convertReference(refer *ast.ReferenceDef) (*state.ForeignKeyRef, error) {
	if refer == nil || refer.Table == nil {
		return nil, fmt.Errorf("foreign key without referenced table")
	}
	fk := &state.ForeignKeyRef{Table: refer.Table.Name.O}
	for _, spec := range refer.IndexPartSpecifications {
		if spec.Column != nil {
			fk.Column = spec.Column.Name.O
			break
		}
	}
	if refer.OnDelete != nil {
		fk.OnDelete = state.RefAction(refer.OnDelete.ReferOpt.String())
	}
	if refer.OnUpdate != nil {
		fk.OnUpdate = state.RefAction(refer.OnUpdate.ReferOpt.String())
	}
	return fk, nil
}

// convertType maps a MySQL column type onto the closed type set. MySQL types
// with no counterpart survive as custom types.
func convertType(raw string) (state.FieldType, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	base := s
	var args []int
	if i := strings.IndexByte(s, '('); i >= 0 && strings.HasSuffix(s, ")") {
		base = s[:i]
		for _, part := range strings.Split(s[i+1:len(s)-1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				args = nil
				break
			}
			args = append(args, n)
		}
	}
	base = strings.TrimSuffix(base, " unsigned")

	switch base {
	case "tinyint":
		if len(args) == 1 && args[0] == 1 {
			return state.Boolean(), nil
		}
		return state.SmallInt(), nil
	case "smallint":
		return state.SmallInt(), nil
	case "int", "integer", "mediumint":
		return state.Integer(), nil
	case "bigint":
		return state.BigInt(), nil
	case "varchar":
		if len(args) != 1 {
			return state.FieldType{}, fmt.Errorf("varchar without length in %q", raw)
		}
		return state.VarChar(args[0]), nil
	case "char":
		if len(args) == 1 && args[0] == 36 {
			return state.UUID(), nil
		}
		if len(args) != 1 {
			return state.FieldType{}, fmt.Errorf("char without length in %q", raw)
		}
		return state.Char(args[0]), nil
	case "text", "tinytext", "mediumtext", "longtext":
		return state.Text(), nil
	case "date":
		return state.Date(), nil
	case "time":
		return state.Time(), nil
	case "datetime":
		return state.DateTime(), nil
	case "timestamp":
		return state.TimestampTz(), nil
	case "decimal", "numeric":
		if len(args) == 2 {
			return state.Decimal(args[0], args[1]), nil
		}
		return state.Decimal(10, 0), nil
	case "float":
		return state.Float(), nil
	case "double":
		return state.Double(), nil
	case "boolean", "bool":
		return state.Boolean(), nil
	case "blob", "tinyblob", "mediumblob", "longblob", "binary", "varbinary":
		return state.Binary(), nil
	case "json":
		return state.JSON(), nil
	}
	return state.CustomType(strings.ToUpper(s)), nil
}

// modelName derives a model name from a table name, stripping the namespace
// prefix when present: shop_order_item under shop becomes OrderItem.
func modelName(namespace, table string) string {
	name := strings.TrimPrefix(table, namespace+"_")
	return state.PascalCase(name)
}

func exprToString(expr ast.ExprNode) string {
	if expr == nil {
		return ""
	}
	var sb strings.Builder
	ctx := format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)
	if err := expr.Restore(ctx); err != nil {
		return ""
	}
	s := sb.String()
	if i, j := strings.Index(s, "'"), strings.LastIndex(s, "'"); i >= 0 && i < j {
		s = s[i+1 : j]
	}
	return s
}
