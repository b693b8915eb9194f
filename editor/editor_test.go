package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migrant/state"
)

func newEditor(t *testing.T, d Dialect) SchemaEditor {
	t.Helper()
	ed, err := New(d)
	require.NoError(t, err)
	return ed
}

func TestNewUnknownDialect(t *testing.T) {
	_, err := New("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestQuoting(t *testing.T) {
	pg := newEditor(t, Postgres)
	assert.Equal(t, `"user"`, pg.QuoteIdentifier("user"))
	assert.Equal(t, `"say ""hi"""`, pg.QuoteIdentifier(`say "hi"`))
	assert.Equal(t, `'it''s'`, pg.QuoteString("it's"))

	my := newEditor(t, MySQL)
	assert.Equal(t, "`user`", my.QuoteIdentifier("user"))
}

func TestPostgresAddColumn(t *testing.T) {
	ed := newEditor(t, Postgres)
	stmts := ed.AddColumnSQL("User", state.FieldState{
		Name:     "email",
		Type:     state.VarChar(255),
		Nullable: true,
	})
	require.Len(t, stmts, 1)
	assert.Equal(t, `ALTER TABLE "User" ADD COLUMN "email" VARCHAR(255)`, stmts[0])
}

func TestAddColumnNotNullWithDefault(t *testing.T) {
	ed := newEditor(t, MySQL)
	stmts := ed.AddColumnSQL("shop_user", state.FieldState{
		Name:   "active",
		Type:   state.Boolean(),
		Params: map[string]string{"default": "1"},
	})
	require.Len(t, stmts, 1)
	assert.Equal(t, "ALTER TABLE `shop_user` ADD COLUMN `active` TINYINT(1) NOT NULL DEFAULT 1", stmts[0])
}

func orderModel() state.ModelState {
	m := state.NewModelState("shop", "Order")
	id := state.NewFieldState("id", state.Integer(), false)
	id.Params = map[string]string{"primary_key": "true", "auto_increment": "true"}
	m.AddField(id)
	m.AddField(state.NewFieldState("total", state.Decimal(10, 2), false))
	user := state.NewFieldState("user_id", state.Integer(), false)
	user.ForeignKey = &state.ForeignKeyRef{
		Table:    "shop_user",
		Column:   "id",
		OnDelete: state.RefActionCascade,
	}
	m.AddField(user)
	m.Constraints = append(m.Constraints, state.Constraint{
		Name:       "shop_order_total_positive",
		Kind:       state.ConstraintCheck,
		Fields:     []string{"total"},
		Expression: "total >= 0",
	})
	return m
}

func TestCreateTablePerDialect(t *testing.T) {
	m := orderModel()

	pg := newEditor(t, Postgres)
	stmts := pg.CreateTableSQL(m)
	require.Len(t, stmts, 1)
	sql := stmts[0]
	assert.Contains(t, sql, `CREATE TABLE "shop_order"`)
	assert.Contains(t, sql, `"id" INTEGER NOT NULL GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY`)
	assert.Contains(t, sql, `"total" DECIMAL(10,2) NOT NULL`)
	assert.Contains(t, sql, `CONSTRAINT "shop_order_total_positive" CHECK (total >= 0)`)
	assert.Contains(t, sql, `CONSTRAINT "fk_shop_order_user_id" FOREIGN KEY ("user_id") REFERENCES "shop_user" ("id") ON DELETE CASCADE`)

	my := newEditor(t, MySQL)
	stmts = my.CreateTableSQL(m)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE `shop_order`")
	assert.Contains(t, stmts[0], "`id` INTEGER NOT NULL AUTO_INCREMENT PRIMARY KEY")

	lite := newEditor(t, SQLite)
	stmts = lite.CreateTableSQL(m)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], `"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT`)
}

func TestTypeMappings(t *testing.T) {
	tests := []struct {
		ft       state.FieldType
		postgres string
		mysql    string
		sqlite   string
	}{
		{state.Boolean(), "BOOLEAN", "TINYINT(1)", "INTEGER"},
		{state.DateTime(), "TIMESTAMP", "DATETIME", "DATETIME"},
		{state.TimestampTz(), "TIMESTAMPTZ", "TIMESTAMP", "TIMESTAMPTZ"},
		{state.UUID(), "UUID", "CHAR(36)", "TEXT"},
		{state.JSONB(), "JSONB", "JSON", "TEXT"},
		{state.Binary(), "BYTEA", "BLOB", "BLOB"},
		{state.Double(), "DOUBLE PRECISION", "DOUBLE", "REAL"},
		{state.VarChar(40), "VARCHAR(40)", "VARCHAR(40)", "VARCHAR(40)"},
		{state.CustomType("POINT"), "POINT", "POINT", "POINT"},
	}
	pg, my, lite := newEditor(t, Postgres), newEditor(t, MySQL), newEditor(t, SQLite)
	for _, tt := range tests {
		assert.Equal(t, tt.postgres, pg.ColumnType(tt.ft), tt.ft.String())
		assert.Equal(t, tt.mysql, my.ColumnType(tt.ft), tt.ft.String())
		assert.Equal(t, tt.sqlite, lite.ColumnType(tt.ft), tt.ft.String())
	}
}

func TestWithTypeMapper(t *testing.T) {
	ed, err := New(Postgres, WithTypeMapper(func(t state.FieldType) string {
		if t.Kind == state.KindUUID {
			return "TEXT"
		}
		return postgresTypes(t)
	}))
	require.NoError(t, err)
	assert.Equal(t, "TEXT", ed.ColumnType(state.UUID()))
	assert.Equal(t, "BIGINT", ed.ColumnType(state.BigInt()))
}

func TestRenameTable(t *testing.T) {
	assert.Equal(t, []string{`ALTER TABLE "shop_user" RENAME TO "shop_customer"`},
		newEditor(t, Postgres).RenameTableSQL("shop_user", "shop_customer"))
	assert.Equal(t, []string{"RENAME TABLE `shop_user` TO `shop_customer`"},
		newEditor(t, MySQL).RenameTableSQL("shop_user", "shop_customer"))
}

func TestPostgresAlterColumnType(t *testing.T) {
	ed := newEditor(t, Postgres)
	m := orderModel()
	stmts := ed.AlterColumnTypeSQL(m, state.NewFieldState("total", state.Decimal(12, 4), true))
	require.Len(t, stmts, 2)
	assert.Equal(t, `ALTER TABLE "shop_order" ALTER COLUMN "total" TYPE DECIMAL(12,4)`, stmts[0])
	assert.Equal(t, `ALTER TABLE "shop_order" ALTER COLUMN "total" DROP NOT NULL`, stmts[1])
}

func TestMySQLAlterColumnType(t *testing.T) {
	ed := newEditor(t, MySQL)
	m := orderModel()
	stmts := ed.AlterColumnTypeSQL(m, state.NewFieldState("total", state.Decimal(12, 4), false))
	require.Len(t, stmts, 1)
	assert.Equal(t, "ALTER TABLE `shop_order` MODIFY COLUMN `total` DECIMAL(12,4) NOT NULL", stmts[0])
}

func TestSQLiteAlterColumnTypeRebuilds(t *testing.T) {
	ed := newEditor(t, SQLite)
	m := orderModel()
	stmts := ed.AlterColumnTypeSQL(m, state.NewFieldState("total", state.Text(), false))
	require.Len(t, stmts, 4)
	assert.Contains(t, stmts[0], `CREATE TABLE "shop_order__migrant_new"`)
	assert.Contains(t, stmts[0], `"total" TEXT NOT NULL`)
	assert.Equal(t, `INSERT INTO "shop_order__migrant_new" ("id", "total", "user_id") SELECT "id", "total", "user_id" FROM "shop_order"`, stmts[1])
	assert.Equal(t, `DROP TABLE "shop_order"`, stmts[2])
	assert.Equal(t, `ALTER TABLE "shop_order__migrant_new" RENAME TO "shop_order"`, stmts[3])
}

func TestSQLiteRenameColumnNative(t *testing.T) {
	ed := newEditor(t, SQLite)
	stmts := ed.RenameColumnSQL("shop_user", "name", "full_name")
	require.Len(t, stmts, 1)
	assert.Equal(t, `ALTER TABLE "shop_user" RENAME COLUMN "name" TO "full_name"`, stmts[0])
}
