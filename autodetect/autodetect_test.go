package autodetect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migrant/operations"
	"migrant/state"
)

func userState() *state.ProjectState {
	ps := state.NewProjectState()
	m := state.NewModelState("shop", "User")
	m.AddField(state.FieldState{Name: "id", Type: state.Integer(), Params: map[string]string{"primary_key": "true"}})
	m.AddField(state.FieldState{Name: "name", Type: state.VarChar(100), Nullable: true})
	ps.AddModel(m)
	return ps
}

func TestNoChanges(t *testing.T) {
	from := userState()
	to := userState()
	plan := New(from, to).Changes()
	assert.True(t, plan.IsEmpty())
	assert.Empty(t, plan.Warnings)
}

func TestAddedModel(t *testing.T) {
	from := state.NewProjectState()
	to := userState()

	plan := New(from, to).Changes()
	require.Len(t, plan.Operations, 1)
	assert.Equal(t, "shop", plan.Operations[0].Namespace)

	create, ok := plan.Operations[0].Op.(operations.CreateModel)
	require.True(t, ok)
	assert.Equal(t, "User", create.Name)
	assert.Empty(t, create.Table)
	require.Len(t, create.Fields, 2)
	assert.Equal(t, "id", create.Fields[0].Name)
}

func TestAddedModelWithTableOverride(t *testing.T) {
	from := state.NewProjectState()
	to := state.NewProjectState()
	m := state.NewModelState("shop", "User")
	m.TableName = "accounts"
	to.AddModel(m)

	plan := New(from, to).Changes()
	require.Len(t, plan.Operations, 1)
	create := plan.Operations[0].Op.(operations.CreateModel)
	assert.Equal(t, "accounts", create.Table)
}

func TestRemovedModel(t *testing.T) {
	plan := New(userState(), state.NewProjectState()).Changes()
	require.Len(t, plan.Operations, 1)
	del, ok := plan.Operations[0].Op.(operations.DeleteModel)
	require.True(t, ok)
	assert.Equal(t, "User", del.Name)
}

func TestAddedField(t *testing.T) {
	from := userState()
	to := userState()
	to.AddModelField("shop", "User", state.FieldState{Name: "email", Type: state.VarChar(255), Nullable: true})

	plan := New(from, to).Changes()
	require.Len(t, plan.Operations, 1)
	add, ok := plan.Operations[0].Op.(operations.AddField)
	require.True(t, ok)
	assert.Equal(t, "User", add.Model)
	assert.Equal(t, "email", add.Field.Name)
	assert.Equal(t, state.VarChar(255), add.Field.Type)
}

func TestRemovedField(t *testing.T) {
	from := userState()
	to := userState()
	to.RemoveModelField("shop", "User", "name")

	plan := New(from, to).Changes()
	require.Len(t, plan.Operations, 1)
	rm, ok := plan.Operations[0].Op.(operations.RemoveField)
	require.True(t, ok)
	assert.Equal(t, "name", rm.Name)
}

func TestAlteredField(t *testing.T) {
	from := userState()
	to := userState()
	to.AlterModelField("shop", "User", state.FieldState{Name: "name", Type: state.Text(), Nullable: false})

	plan := New(from, to).Changes()
	require.Len(t, plan.Operations, 1)
	alter, ok := plan.Operations[0].Op.(operations.AlterField)
	require.True(t, ok)
	assert.Equal(t, state.Text(), alter.Field.Type)
	assert.False(t, alter.Field.Nullable)
}

func TestRenameDetected(t *testing.T) {
	from := userState()
	to := userState()
	to.RenameModelField("shop", "User", "name", "full_name")

	plan := New(from, to).Changes()
	require.Len(t, plan.Operations, 1)
	ren, ok := plan.Operations[0].Op.(operations.RenameField)
	require.True(t, ok)
	assert.Equal(t, "name", ren.OldName)
	assert.Equal(t, "full_name", ren.NewName)
	assert.Empty(t, plan.Warnings)
}

func TestRenameNotDetectedWhenDefinitionChanges(t *testing.T) {
	from := userState()
	to := userState()
	to.RemoveModelField("shop", "User", "name")
	to.AddModelField("shop", "User", state.FieldState{Name: "full_name", Type: state.Text(), Nullable: true})

	plan := New(from, to).Changes()
	require.Len(t, plan.Operations, 2)
	_, isAdd := plan.Operations[0].Op.(operations.AddField)
	_, isRemove := plan.Operations[1].Op.(operations.RemoveField)
	assert.True(t, isAdd)
	assert.True(t, isRemove)
}

func TestAmbiguousRenameWarns(t *testing.T) {
	from := state.NewProjectState()
	m := state.NewModelState("shop", "User")
	m.AddField(state.FieldState{Name: "old", Type: state.Text(), Nullable: true})
	from.AddModel(m)

	to := state.NewProjectState()
	m2 := state.NewModelState("shop", "User")
	m2.AddField(state.FieldState{Name: "alpha", Type: state.Text(), Nullable: true})
	m2.AddField(state.FieldState{Name: "beta", Type: state.Text(), Nullable: true})
	to.AddModel(m2)

	plan := New(from, to).Changes()
	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], "ambiguous rename")
	assert.Contains(t, plan.Warnings[0], `"alpha"`)

	// The lexicographically first candidate wins; the other becomes an add.
	require.Len(t, plan.Operations, 2)
	ren, ok := plan.Operations[0].Op.(operations.RenameField)
	require.True(t, ok)
	assert.Equal(t, "alpha", ren.NewName)
	add, ok := plan.Operations[1].Op.(operations.AddField)
	require.True(t, ok)
	assert.Equal(t, "beta", add.Field.Name)
}

func TestAmbiguousRenameWarnsWhenRemovedFieldsCompete(t *testing.T) {
	from := state.NewProjectState()
	m := state.NewModelState("shop", "User")
	m.AddField(state.FieldState{Name: "old_a", Type: state.Text(), Nullable: true})
	m.AddField(state.FieldState{Name: "old_b", Type: state.Text(), Nullable: true})
	from.AddModel(m)

	to := state.NewProjectState()
	m2 := state.NewModelState("shop", "User")
	m2.AddField(state.FieldState{Name: "fresh", Type: state.Text(), Nullable: true})
	to.AddModel(m2)

	plan := New(from, to).Changes()
	require.Len(t, plan.Warnings, 1)
	assert.Contains(t, plan.Warnings[0], "ambiguous rename")
	assert.Contains(t, plan.Warnings[0], `"old_b"`)
	assert.Contains(t, plan.Warnings[0], "keeping remove")

	// The lexicographically first removed field wins; the other stays a remove.
	require.Len(t, plan.Operations, 2)
	ren, ok := plan.Operations[0].Op.(operations.RenameField)
	require.True(t, ok)
	assert.Equal(t, "old_a", ren.OldName)
	assert.Equal(t, "fresh", ren.NewName)
	rem, ok := plan.Operations[1].Op.(operations.RemoveField)
	require.True(t, ok)
	assert.Equal(t, "old_b", rem.Name)
}

func fkState() *state.ProjectState {
	ps := state.NewProjectState()

	a := state.NewModelState("shop", "Author")
	a.AddField(state.FieldState{Name: "id", Type: state.Integer(), Params: map[string]string{"primary_key": "true"}})
	ps.AddModel(a)

	b := state.NewModelState("shop", "Book")
	b.AddField(state.FieldState{Name: "id", Type: state.Integer(), Params: map[string]string{"primary_key": "true"}})
	author := state.NewFieldState("author_id", state.Integer(), false)
	author.ForeignKey = &state.ForeignKeyRef{Table: "shop_author", Column: "id"}
	b.AddField(author)
	ps.AddModel(b)

	return ps
}

func TestCreateOrderRespectsForeignKeys(t *testing.T) {
	plan := New(state.NewProjectState(), fkState()).Changes()
	require.Len(t, plan.Operations, 2)
	assert.Equal(t, "Author", plan.Operations[0].Op.(operations.CreateModel).Name)
	assert.Equal(t, "Book", plan.Operations[1].Op.(operations.CreateModel).Name)
}

func TestDeleteOrderReversesForeignKeys(t *testing.T) {
	plan := New(fkState(), state.NewProjectState()).Changes()
	require.Len(t, plan.Operations, 2)
	assert.Equal(t, "Book", plan.Operations[0].Op.(operations.DeleteModel).Name)
	assert.Equal(t, "Author", plan.Operations[1].Op.(operations.DeleteModel).Name)
}

func TestDeterministicSerialization(t *testing.T) {
	from := state.NewProjectState()
	to := fkState()
	to.AddModelField("shop", "Author", state.FieldState{Name: "name", Type: state.VarChar(200), Nullable: true})

	serialize := func() string {
		plan := New(from.Clone(), to.Clone()).Changes()
		var all []byte
		for _, p := range plan.Operations {
			raw, err := operations.Marshal(p.Op)
			require.NoError(t, err)
			all = append(all, raw...)
		}
		return string(all)
	}

	first := serialize()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, serialize())
	}
}

func TestApplyReachesTarget(t *testing.T) {
	from := userState()
	to := userState()
	to.AddModelField("shop", "User", state.FieldState{Name: "email", Type: state.VarChar(255), Nullable: true})
	to.RenameModelField("shop", "User", "name", "full_name")

	plan := New(from, to).Changes()
	got, err := Apply(plan, from)
	require.NoError(t, err)

	// Applying the plan to the old state must land exactly on the new state.
	rediff := New(got, to).Changes()
	assert.True(t, rediff.IsEmpty())
}

func TestApplyReportsFailingOperation(t *testing.T) {
	plan := &Plan{Operations: []PlannedOp{
		{Namespace: "shop", Op: operations.DeleteModel{Name: "Ghost"}},
	}}
	_, err := Apply(plan, state.NewProjectState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation 1")
}

func TestPlanJSONStable(t *testing.T) {
	plan := New(state.NewProjectState(), userState()).Changes()
	require.Len(t, plan.Operations, 1)
	raw, err := operations.Marshal(plan.Operations[0].Op)
	require.NoError(t, err)
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.JSONEq(t, `"create_model"`, string(envelope["op"]))
}
