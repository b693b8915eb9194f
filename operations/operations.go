// Package operations defines the closed set of schema-change operations.
// Each operation is an immutable value that knows how to advance a
// ProjectState and how to render its SQL through a SchemaEditor. The set is
// serializable: variant tags and field names are a compatibility contract for
// persisted migration history.
package operations

import (
	"fmt"

	"migrant/editor"
	"migrant/state"
)

// Operation is one atomic schema change.
type Operation interface {
	// Describe names the operation and its target, e.g. "AddField(User, email)".
	Describe() string
	// StateForwards mutates ps in place. A missing target model or field is
	// an explicit *state.Error, never a silent no-op.
	StateForwards(namespace string, ps *state.ProjectState) error
	// SQLForwards renders the operation's statements. prior is the snapshot
	// the operation applies to, i.e. before its own StateForwards.
	SQLForwards(ed editor.SchemaEditor, namespace string, prior *state.ProjectState) ([]string, error)

	opName() string
}

// CreateModel creates a new model and its table.
type CreateModel struct {
	Name        string             `json:"name"`
	Table       string             `json:"table,omitempty"` // empty: derived from namespace+name
	Fields      []state.FieldState `json:"fields"`
	Constraints []state.Constraint `json:"constraints,omitempty"`
}

func (op CreateModel) opName() string   { return "create_model" }
func (op CreateModel) Describe() string { return fmt.Sprintf("CreateModel(%s)", op.Name) }

func (op CreateModel) build(namespace string) state.ModelState {
	ms := state.NewModelState(namespace, op.Name)
	if op.Table != "" {
		ms.TableName = op.Table
	}
	for _, f := range op.Fields {
		ms.AddField(f)
	}
	ms.Constraints = append(ms.Constraints, op.Constraints...)
	return ms
}

func (op CreateModel) StateForwards(namespace string, ps *state.ProjectState) error {
	ps.AddModel(op.build(namespace))
	return nil
}

func (op CreateModel) SQLForwards(ed editor.SchemaEditor, namespace string, _ *state.ProjectState) ([]string, error) {
	return ed.CreateTableSQL(op.build(namespace)), nil
}

// DeleteModel removes a model and drops its table.
type DeleteModel struct {
	Name string `json:"name"`
}

func (op DeleteModel) opName() string   { return "delete_model" }
func (op DeleteModel) Describe() string { return fmt.Sprintf("DeleteModel(%s)", op.Name) }

func (op DeleteModel) StateForwards(namespace string, ps *state.ProjectState) error {
	if !ps.RemoveModel(namespace, op.Name) {
		return &state.Error{Op: "DeleteModel", Namespace: namespace, Model: op.Name}
	}
	return nil
}

func (op DeleteModel) SQLForwards(ed editor.SchemaEditor, namespace string, prior *state.ProjectState) ([]string, error) {
	m, ok := prior.Model(namespace, op.Name)
	if !ok {
		return nil, &state.Error{Op: "DeleteModel", Namespace: namespace, Model: op.Name}
	}
	return ed.DropTableSQL(m.TableName), nil
}

// RenameModel renames a model; the table is renamed too when it followed the
// default derivation.
type RenameModel struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

func (op RenameModel) opName() string { return "rename_model" }
func (op RenameModel) Describe() string {
	return fmt.Sprintf("RenameModel(%s -> %s)", op.OldName, op.NewName)
}

func (op RenameModel) StateForwards(namespace string, ps *state.ProjectState) error {
	if !ps.RenameModel(namespace, op.OldName, op.NewName) {
		return &state.Error{Op: "RenameModel", Namespace: namespace, Model: op.OldName}
	}
	return nil
}

func (op RenameModel) SQLForwards(ed editor.SchemaEditor, namespace string, prior *state.ProjectState) ([]string, error) {
	m, ok := prior.Model(namespace, op.OldName)
	if !ok {
		return nil, &state.Error{Op: "RenameModel", Namespace: namespace, Model: op.OldName}
	}
	if m.TableName != state.DefaultTableName(namespace, op.OldName) {
		// Overridden table name survives the model rename; no DDL needed.
		return nil, nil
	}
	return ed.RenameTableSQL(m.TableName, state.DefaultTableName(namespace, op.NewName)), nil
}

// AddField adds one field to an existing model.
type AddField struct {
	Model string           `json:"model"`
	Field state.FieldState `json:"field"`
}

func (op AddField) opName() string { return "add_field" }
func (op AddField) Describe() string {
	return fmt.Sprintf("AddField(%s, %s)", op.Model, op.Field.Name)
}

func (op AddField) StateForwards(namespace string, ps *state.ProjectState) error {
	if !ps.AddModelField(namespace, op.Model, op.Field) {
		return &state.Error{Op: "AddField", Namespace: namespace, Model: op.Model}
	}
	return nil
}

func (op AddField) SQLForwards(ed editor.SchemaEditor, namespace string, prior *state.ProjectState) ([]string, error) {
	m, ok := prior.Model(namespace, op.Model)
	if !ok {
		return nil, &state.Error{Op: "AddField", Namespace: namespace, Model: op.Model}
	}
	return ed.AddColumnSQL(m.TableName, op.Field), nil
}

// RemoveField removes one field from an existing model.
type RemoveField struct {
	Model string `json:"model"`
	Name  string `json:"name"`
}

func (op RemoveField) opName() string { return "remove_field" }
func (op RemoveField) Describe() string {
	return fmt.Sprintf("RemoveField(%s, %s)", op.Model, op.Name)
}

func (op RemoveField) StateForwards(namespace string, ps *state.ProjectState) error {
	if !ps.HasModel(namespace, op.Model) {
		return &state.Error{Op: "RemoveField", Namespace: namespace, Model: op.Model}
	}
	if !ps.RemoveModelField(namespace, op.Model, op.Name) {
		return &state.Error{Op: "RemoveField", Namespace: namespace, Model: op.Model, Field: op.Name}
	}
	return nil
}

func (op RemoveField) SQLForwards(ed editor.SchemaEditor, namespace string, prior *state.ProjectState) ([]string, error) {
	m, ok := prior.Model(namespace, op.Model)
	if !ok {
		return nil, &state.Error{Op: "RemoveField", Namespace: namespace, Model: op.Model}
	}
	return ed.DropColumnSQL(m.TableName, op.Name), nil
}

// AlterField replaces a field's type and parameters in place, preserving the
// name.
type AlterField struct {
	Model string           `json:"model"`
	Field state.FieldState `json:"field"` // the new definition
}

func (op AlterField) opName() string { return "alter_field" }
func (op AlterField) Describe() string {
	return fmt.Sprintf("AlterField(%s, %s)", op.Model, op.Field.Name)
}

func (op AlterField) StateForwards(namespace string, ps *state.ProjectState) error {
	if !ps.HasModel(namespace, op.Model) {
		return &state.Error{Op: "AlterField", Namespace: namespace, Model: op.Model}
	}
	if !ps.AlterModelField(namespace, op.Model, op.Field) {
		return &state.Error{Op: "AlterField", Namespace: namespace, Model: op.Model, Field: op.Field.Name}
	}
	return nil
}

func (op AlterField) SQLForwards(ed editor.SchemaEditor, namespace string, prior *state.ProjectState) ([]string, error) {
	m, ok := prior.Model(namespace, op.Model)
	if !ok {
		return nil, &state.Error{Op: "AlterField", Namespace: namespace, Model: op.Model}
	}
	if !m.HasField(op.Field.Name) {
		return nil, &state.Error{Op: "AlterField", Namespace: namespace, Model: op.Model, Field: op.Field.Name}
	}
	return ed.AlterColumnTypeSQL(m, op.Field), nil
}

// RenameField moves a field to a new name, preserving type and parameters
// exactly. The state swap is atomic.
type RenameField struct {
	Model   string `json:"model"`
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

func (op RenameField) opName() string { return "rename_field" }
func (op RenameField) Describe() string {
	return fmt.Sprintf("RenameField(%s, %s -> %s)", op.Model, op.OldName, op.NewName)
}

func (op RenameField) StateForwards(namespace string, ps *state.ProjectState) error {
	if !ps.HasModel(namespace, op.Model) {
		return &state.Error{Op: "RenameField", Namespace: namespace, Model: op.Model}
	}
	if !ps.RenameModelField(namespace, op.Model, op.OldName, op.NewName) {
		return &state.Error{Op: "RenameField", Namespace: namespace, Model: op.Model, Field: op.OldName}
	}
	return nil
}

func (op RenameField) SQLForwards(ed editor.SchemaEditor, namespace string, prior *state.ProjectState) ([]string, error) {
	m, ok := prior.Model(namespace, op.Model)
	if !ok {
		return nil, &state.Error{Op: "RenameField", Namespace: namespace, Model: op.Model}
	}
	return ed.RenameColumnSQL(m.TableName, op.OldName, op.NewName), nil
}

// RunSQL emits raw statements with no state change. Escape hatch for DDL the
// closed operation set cannot express.
type RunSQL struct {
	SQL []string `json:"sql"`
}

func (op RunSQL) opName() string   { return "run_sql" }
func (op RunSQL) Describe() string { return "RunSQL" }

func (op RunSQL) StateForwards(string, *state.ProjectState) error { return nil }

func (op RunSQL) SQLForwards(editor.SchemaEditor, string, *state.ProjectState) ([]string, error) {
	return append([]string(nil), op.SQL...), nil
}
