package registry

import (
	"strings"

	"migrant/state"
)

// ProjectStateFrom snapshots the registry into a ProjectState. Regular models
// come first, then one auto-generated junction model per declared many-to-many
// relationship. The result is owned by the caller.
func ProjectStateFrom(r *Registry) *state.ProjectState {
	ps := state.NewProjectState()
	models := r.Models()

	for _, md := range models {
		ps.AddModel(md.ToModelState())
	}

	for _, md := range models {
		for _, m2m := range md.ManyToMany {
			ps.AddModel(junctionModel(ps, md, m2m))
		}
	}

	return ps
}

// junctionModel builds the intermediate model for one many-to-many
// relationship: an auto-increment id, a FK column to each side, and a
// composite unique constraint over the two FK columns.
func junctionModel(ps *state.ProjectState, src ModelMetadata, m2m state.ManyToManyRef) state.ModelState {
	srcTable := src.TableName
	if srcTable == "" {
		srcTable = state.DefaultTableName(src.Namespace, src.ModelName)
	}

	tableName := m2m.Through
	if tableName == "" {
		tableName = srcTable + "_" + m2m.FieldName
	}

	targetNS, targetModel := src.Namespace, m2m.ToModel
	if i := strings.IndexByte(m2m.ToModel, '.'); i >= 0 {
		targetNS, targetModel = m2m.ToModel[:i], m2m.ToModel[i+1:]
	}
	targetTable := state.DefaultTableName(targetNS, targetModel)
	if tm, ok := ps.Model(targetNS, targetModel); ok {
		targetTable = tm.TableName
	}

	ms := state.NewModelState(src.Namespace, src.ModelName+state.PascalCase(m2m.FieldName))
	ms.TableName = tableName

	id := state.NewFieldState("id", state.Integer(), false)
	id.Params = map[string]string{"primary_key": "true", "auto_increment": "true"}
	ms.AddField(id)

	fromName := "from_" + state.SnakeCase(src.ModelName) + "_id"
	fromField := state.NewFieldState(fromName, state.Integer(), false)
	fromField.ForeignKey = &state.ForeignKeyRef{
		Table:    srcTable,
		Column:   "id",
		OnDelete: state.RefActionCascade,
		OnUpdate: state.RefActionCascade,
	}
	ms.AddField(fromField)

	toName := "to_" + state.SnakeCase(targetModel) + "_id"
	toField := state.NewFieldState(toName, state.Integer(), false)
	toField.ForeignKey = &state.ForeignKeyRef{
		Table:    targetTable,
		Column:   "id",
		OnDelete: state.RefActionCascade,
		OnUpdate: state.RefActionCascade,
	}
	ms.AddField(toField)

	ms.Constraints = append(ms.Constraints, state.Constraint{
		Name:   tableName + "_uniq",
		Kind:   state.ConstraintUnique,
		Fields: []string{fromName, toName},
	})

	return ms
}
