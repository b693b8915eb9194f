package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migrant/registry"
	"migrant/state"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const tomlModels = `namespace = "shop"

[models.User]

[models.User.fields.id]
type = "integer"
params = { primary_key = "true", auto_increment = "true" }

[models.User.fields.email]
type = "varchar(255)"
params = { unique = "true" }

[models.User.fields.name]
type = "varchar(100)"
nullable = true

[models.Order]
table = "orders"

[models.Order.fields.id]
type = "integer"
params = { primary_key = "true" }

[models.Order.fields.total]
type = "decimal(10,2)"

[models.Order.fields.user_id]
type = "integer"

[models.Order.fields.user_id.foreign_key]
table = "shop_user"
column = "id"
on_delete = "cascade"
`

const yamlModels = `namespace: blog
models:
  Post:
    fields:
      id:
        type: integer
        params:
          primary_key: "true"
      title:
        type: varchar(200)
    many_to_many:
      - field: tags
        to: Tag
  Tag:
    fields:
      id:
        type: integer
        params:
          primary_key: "true"
      label:
        type: varchar(50)
`

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "shop.toml", tomlModels)

	mds, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, mds, 2)

	order := mds[0]
	assert.Equal(t, "Order", order.ModelName)
	assert.Equal(t, "orders", order.TableName)
	assert.Equal(t, state.Decimal(10, 2), order.Fields["total"].Type)
	fk := order.Fields["user_id"].ForeignKey
	require.NotNil(t, fk)
	assert.Equal(t, "shop_user", fk.Table)
	assert.Equal(t, state.RefActionCascade, fk.OnDelete)

	user := mds[1]
	assert.Equal(t, "User", user.ModelName)
	assert.Equal(t, "true", user.Fields["email"].Params["unique"])
	assert.True(t, user.Fields["name"].Nullable)
	assert.False(t, user.Fields["id"].Nullable)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "blog.yaml", yamlModels)

	mds, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, mds, 2)

	post := mds[0]
	assert.Equal(t, "Post", post.ModelName)
	assert.Equal(t, state.VarChar(200), post.Fields["title"].Type)
	require.Len(t, post.ManyToMany, 1)
	assert.Equal(t, "tags", post.ManyToMany[0].FieldName)
	assert.Equal(t, "Tag", post.ManyToMany[0].ToModel)
}

func TestLoadDirMergesFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blog.yaml", yamlModels)
	writeFile(t, dir, "shop.toml", tomlModels)
	writeFile(t, dir, "notes.txt", "ignored")

	mds, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, mds, 4)
}

func TestRegisterIntoRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shop.toml", tomlModels)

	r := registry.New()
	require.NoError(t, Register(r, dir))

	md, ok := r.GetModel("shop", "User")
	require.True(t, ok)
	assert.Len(t, md.Fields, 3)

	ps := registry.ProjectStateFrom(r)
	assert.True(t, ps.HasModel("shop", "Order"))
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	missingNS := writeFile(t, dir, "bad1.toml", "[models.User]\n[models.User.fields.id]\ntype = \"integer\"\n")
	_, err := LoadFile(missingNS)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing namespace")

	missingType := writeFile(t, dir, "bad2.yaml", "namespace: x\nmodels:\n  A:\n    fields:\n      id: {}\n")
	_, err = LoadFile(missingType)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing type")

	badExt := writeFile(t, dir, "bad3.json", "{}")
	_, err = LoadFile(badExt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported extension")

	badAction := writeFile(t, dir, "bad4.toml", `namespace = "x"

[models.A.fields.b]
type = "integer"

[models.A.fields.b.foreign_key]
table = "t"
column = "id"
on_delete = "explode"
`)
	_, err = LoadFile(badAction)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explode")
}
