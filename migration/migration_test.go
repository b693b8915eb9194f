package migration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migrant/operations"
	"migrant/state"
)

func initialMigration() *Migration {
	return &Migration{
		Namespace: "shop",
		Name:      "0001_initial",
		Operations: []operations.Operation{
			operations.CreateModel{
				Name: "User",
				Fields: []state.FieldState{
					{Name: "id", Type: state.Integer(), Params: map[string]string{"primary_key": "true"}},
					{Name: "name", Type: state.VarChar(100), Nullable: true},
				},
			},
		},
	}
}

func TestJSONRoundTrip(t *testing.T) {
	m := initialMigration()
	m.Dependencies = []Ref{{Namespace: "auth", Name: "0001_initial"}}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)
	assert.Contains(t, string(data), `"create_model"`)

	var back Migration
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m.Namespace, back.Namespace)
	assert.Equal(t, m.Name, back.Name)
	assert.Equal(t, m.Dependencies, back.Dependencies)
	assert.Equal(t, m.Operations, back.Operations)
}

func TestUnmarshalRejectsUnknownVersion(t *testing.T) {
	var m Migration
	err := json.Unmarshal([]byte(`{"version":99,"namespace":"shop","name":"0001_x","operations":[]}`), &m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 99")
}

func TestSortRespectsDependencies(t *testing.T) {
	a := &Migration{Namespace: "shop", Name: "0001_initial"}
	b := &Migration{Namespace: "shop", Name: "0002_add_email", Dependencies: []Ref{a.Ref()}}
	c := &Migration{Namespace: "auth", Name: "0001_initial"}

	ordered, err := Sort([]*Migration{b, a, c})
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, "auth/0001_initial", ordered[0].Ref().String())
	assert.Equal(t, "shop/0001_initial", ordered[1].Ref().String())
	assert.Equal(t, "shop/0002_add_email", ordered[2].Ref().String())
}

func TestSortUnknownDependency(t *testing.T) {
	m := &Migration{Namespace: "shop", Name: "0002_x", Dependencies: []Ref{{Namespace: "shop", Name: "0001_missing"}}}
	_, err := Sort([]*Migration{m})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_missing")
}

func TestSortDetectsCycle(t *testing.T) {
	a := &Migration{Namespace: "shop", Name: "0001_a", Dependencies: []Ref{{Namespace: "shop", Name: "0002_b"}}}
	b := &Migration{Namespace: "shop", Name: "0002_b", Dependencies: []Ref{{Namespace: "shop", Name: "0001_a"}}}
	_, err := Sort([]*Migration{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular")
}

func TestSortDuplicate(t *testing.T) {
	a := &Migration{Namespace: "shop", Name: "0001_initial"}
	_, err := Sort([]*Migration{a, a})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestReplay(t *testing.T) {
	first := initialMigration()
	second := &Migration{
		Namespace:    "shop",
		Name:         "0002_add_email",
		Dependencies: []Ref{first.Ref()},
		Operations: []operations.Operation{
			operations.AddField{Model: "User", Field: state.FieldState{Name: "email", Type: state.VarChar(255), Nullable: true}},
		},
	}

	ps, err := Replay([]*Migration{second, first})
	require.NoError(t, err)

	m, ok := ps.Model("shop", "User")
	require.True(t, ok)
	assert.True(t, m.HasField("email"))
	assert.Equal(t, []string{"email", "id", "name"}, m.FieldNames())
}

func TestReplayReportsFailingOperation(t *testing.T) {
	bad := &Migration{
		Namespace:  "shop",
		Name:       "0001_bad",
		Operations: []operations.Operation{operations.DeleteModel{Name: "Ghost"}},
	}
	_, err := Replay([]*Migration{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shop/0001_bad")
	assert.Contains(t, err.Error(), "operation 1")
}

func TestDirWriteAndLoad(t *testing.T) {
	dir := Dir{Path: t.TempDir()}

	first := initialMigration()
	path, err := dir.Write(first)
	require.NoError(t, err)
	assert.Contains(t, path, "shop")
	assert.Contains(t, path, "0001_initial.json")

	second := &Migration{
		Namespace:    "shop",
		Name:         "0002_add_email",
		Dependencies: []Ref{first.Ref()},
		Operations: []operations.Operation{
			operations.AddField{Model: "User", Field: state.FieldState{Name: "email", Type: state.VarChar(255), Nullable: true}},
		},
	}
	_, err = dir.Write(second)
	require.NoError(t, err)

	migs, err := dir.Load()
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, "0001_initial", migs[0].Name)
	assert.Equal(t, "0002_add_email", migs[1].Name)
	assert.Equal(t, second.Operations, migs[1].Operations)
}

func TestDirLoadMissingDirIsEmpty(t *testing.T) {
	migs, err := Dir{Path: "/nonexistent/migrations"}.Load()
	require.NoError(t, err)
	assert.Empty(t, migs)
}

func TestNextName(t *testing.T) {
	dir := Dir{Path: t.TempDir()}

	name, err := dir.NextName("shop", "initial")
	require.NoError(t, err)
	assert.Equal(t, "0001_initial", name)

	_, err = dir.Write(&Migration{Namespace: "shop", Name: "0001_initial"})
	require.NoError(t, err)
	_, err = dir.Write(&Migration{Namespace: "shop", Name: "0002_add_email"})
	require.NoError(t, err)

	name, err = dir.NextName("shop", "drop_legacy")
	require.NoError(t, err)
	assert.Equal(t, "0003_drop_legacy", name)

	// Numbering is per namespace.
	name, err = dir.NextName("auth", "initial")
	require.NoError(t, err)
	assert.Equal(t, "0001_initial", name)
}
