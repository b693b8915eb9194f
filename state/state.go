// Package state holds schema snapshots: a ProjectState maps (namespace,
// model) keys to ModelStates, which own their FieldStates. Snapshots are
// values; mutating methods never alias data into or out of a snapshot, so a
// retained ProjectState is immutable from the caller's point of view.
package state

import (
	"fmt"
	"sort"
	"strings"
)

// ModelKey identifies a model within a ProjectState.
type ModelKey struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

func (k ModelKey) String() string {
	return k.Namespace + "." + k.Name
}

// ForeignKeyRef describes a column-level foreign key target.
type ForeignKeyRef struct {
	Table    string    `json:"table"`
	Column   string    `json:"column"`
	OnDelete RefAction `json:"on_delete,omitempty"`
	OnUpdate RefAction `json:"on_update,omitempty"`
}

type RefAction string

const (
	RefActionNone       RefAction = ""
	RefActionCascade    RefAction = "CASCADE"
	RefActionRestrict   RefAction = "RESTRICT"
	RefActionSetNull    RefAction = "SET NULL"
	RefActionSetDefault RefAction = "SET DEFAULT"
	RefActionNoAction   RefAction = "NO ACTION"
)

// ConstraintKind is the closed set of constraint types carried in a snapshot.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintForeignKey ConstraintKind = "foreign_key"
)

// Constraint is a named table-level constraint.
type Constraint struct {
	Name       string         `json:"name"`
	Kind       ConstraintKind `json:"kind"`
	Fields     []string       `json:"fields,omitempty"`
	Expression string         `json:"expression,omitempty"`
}

func (c Constraint) clone() Constraint {
	out := c
	out.Fields = append([]string(nil), c.Fields...)
	return out
}

// ManyToManyRef records a declared many-to-many relationship. The junction
// model derived from it lives in the ProjectState like any other model.
type ManyToManyRef struct {
	FieldName string `json:"field_name"`
	ToModel   string `json:"to_model"` // "namespace.Model" or bare model name
	Through   string `json:"through,omitempty"`
}

// FieldState is the per-field snapshot entry. It is exclusively owned by its
// containing ModelState.
type FieldState struct {
	Name       string            `json:"name"`
	Type       FieldType         `json:"type"`
	Nullable   bool              `json:"nullable"`
	Params     map[string]string `json:"params,omitempty"`
	ForeignKey *ForeignKeyRef    `json:"foreign_key,omitempty"`
}

// NewFieldState creates a field with no parameters.
func NewFieldState(name string, ft FieldType, nullable bool) FieldState {
	return FieldState{Name: name, Type: ft, Nullable: nullable}
}

// Clone returns a deep copy; the copy shares nothing with the receiver.
func (f FieldState) Clone() FieldState {
	out := f
	if f.Params != nil {
		out.Params = make(map[string]string, len(f.Params))
		for k, v := range f.Params {
			out.Params[k] = v
		}
	}
	if f.ForeignKey != nil {
		fk := *f.ForeignKey
		out.ForeignKey = &fk
	}
	return out
}

// SetParam sets one parameter, allocating the map on first use.
func (f *FieldState) SetParam(key, value string) {
	if f.Params == nil {
		f.Params = map[string]string{}
	}
	f.Params[key] = value
}

// Fingerprint is a deterministic identity of everything about a field except
// its name. Two fields with equal fingerprints are rename candidates.
func (f FieldState) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString(f.Type.String())
	if f.Nullable {
		sb.WriteString("|null")
	} else {
		sb.WriteString("|notnull")
	}
	keys := make([]string, 0, len(f.Params))
	for k := range f.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString("|")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(f.Params[k])
	}
	if f.ForeignKey != nil {
		fmt.Fprintf(&sb, "|fk:%s.%s:%s:%s",
			f.ForeignKey.Table, f.ForeignKey.Column, f.ForeignKey.OnDelete, f.ForeignKey.OnUpdate)
	}
	return sb.String()
}

// ModelState is the per-model snapshot entry.
type ModelState struct {
	Namespace   string
	Name        string
	TableName   string
	fields      map[string]FieldState
	Constraints []Constraint
	ManyToMany  []ManyToManyRef
}

// NewModelState creates an empty model whose table name follows the
// {namespace}_{snake_case(model)} convention.
func NewModelState(namespace, name string) ModelState {
	return ModelState{
		Namespace: namespace,
		Name:      name,
		TableName: DefaultTableName(namespace, name),
		fields:    map[string]FieldState{},
	}
}

// DefaultTableName derives the table name for a model that does not override
// it. Derivation is deterministic: repeated calls always agree.
func DefaultTableName(namespace, model string) string {
	return namespace + "_" + SnakeCase(model)
}

// AddField inserts (or overwrites) a field under its own name.
func (m *ModelState) AddField(f FieldState) {
	if m.fields == nil {
		m.fields = map[string]FieldState{}
	}
	m.fields[f.Name] = f.Clone()
}

// Field returns a copy of the named field.
func (m *ModelState) Field(name string) (FieldState, bool) {
	f, ok := m.fields[name]
	if !ok {
		return FieldState{}, false
	}
	return f.Clone(), true
}

func (m *ModelState) HasField(name string) bool {
	_, ok := m.fields[name]
	return ok
}

// RemoveField deletes the named field. Reports whether it existed.
func (m *ModelState) RemoveField(name string) bool {
	if _, ok := m.fields[name]; !ok {
		return false
	}
	delete(m.fields, name)
	return true
}

// RenameField moves a field to a new name, preserving type and parameters.
// The swap is atomic: there is no intermediate snapshot with both or neither
// name present.
func (m *ModelState) RenameField(oldName, newName string) bool {
	f, ok := m.fields[oldName]
	if !ok {
		return false
	}
	delete(m.fields, oldName)
	f.Name = newName
	m.fields[newName] = f
	return true
}

// FieldNames returns all field names in lexicographic order.
func (m *ModelState) FieldNames() []string {
	names := make([]string, 0, len(m.fields))
	for n := range m.fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Fields returns copies of all fields in lexicographic name order.
func (m *ModelState) Fields() []FieldState {
	names := m.FieldNames()
	out := make([]FieldState, 0, len(names))
	for _, n := range names {
		out = append(out, m.fields[n].Clone())
	}
	return out
}

// ForeignKeys returns the model's column-level foreign keys in lexicographic
// field-name order.
func (m *ModelState) ForeignKeys() []ForeignKeyRef {
	var out []ForeignKeyRef
	for _, n := range m.FieldNames() {
		if fk := m.fields[n].ForeignKey; fk != nil {
			out = append(out, *fk)
		}
	}
	return out
}

// Clone returns a deep copy sharing nothing with the receiver.
func (m *ModelState) Clone() ModelState {
	out := ModelState{
		Namespace: m.Namespace,
		Name:      m.Name,
		TableName: m.TableName,
		fields:    make(map[string]FieldState, len(m.fields)),
	}
	for n, f := range m.fields {
		out.fields[n] = f.Clone()
	}
	for _, c := range m.Constraints {
		out.Constraints = append(out.Constraints, c.clone())
	}
	out.ManyToMany = append([]ManyToManyRef(nil), m.ManyToMany...)
	return out
}

// ProjectState is a complete schema snapshot across all namespaces.
type ProjectState struct {
	models map[ModelKey]ModelState
}

// NewProjectState returns an empty snapshot.
func NewProjectState() *ProjectState {
	return &ProjectState{models: map[ModelKey]ModelState{}}
}

// AddModel inserts (or overwrites) a model under its (namespace, name) key.
// The state stores its own copy.
func (s *ProjectState) AddModel(m ModelState) {
	if s.models == nil {
		s.models = map[ModelKey]ModelState{}
	}
	s.models[ModelKey{m.Namespace, m.Name}] = m.Clone()
}

// Model returns a copy of the named model.
func (s *ProjectState) Model(namespace, name string) (ModelState, bool) {
	m, ok := s.models[ModelKey{namespace, name}]
	if !ok {
		return ModelState{}, false
	}
	return m.Clone(), true
}

func (s *ProjectState) HasModel(namespace, name string) bool {
	_, ok := s.models[ModelKey{namespace, name}]
	return ok
}

// RemoveModel deletes a model. Reports whether it existed.
func (s *ProjectState) RemoveModel(namespace, name string) bool {
	k := ModelKey{namespace, name}
	if _, ok := s.models[k]; !ok {
		return false
	}
	delete(s.models, k)
	return true
}

// RenameModel moves a model to a new name. When the old table name followed
// the default derivation it is re-derived for the new name; an overridden
// table name is kept.
func (s *ProjectState) RenameModel(namespace, oldName, newName string) bool {
	k := ModelKey{namespace, oldName}
	m, ok := s.models[k]
	if !ok {
		return false
	}
	delete(s.models, k)
	if m.TableName == DefaultTableName(namespace, oldName) {
		m.TableName = DefaultTableName(namespace, newName)
	}
	m.Name = newName
	s.models[ModelKey{namespace, newName}] = m
	return true
}

// Keys returns all model keys in lexicographic (namespace, name) order.
func (s *ProjectState) Keys() []ModelKey {
	keys := make([]ModelKey, 0, len(s.models))
	for k := range s.models {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Namespace != keys[j].Namespace {
			return keys[i].Namespace < keys[j].Namespace
		}
		return keys[i].Name < keys[j].Name
	})
	return keys
}

// Len reports the number of models in the snapshot.
func (s *ProjectState) Len() int {
	return len(s.models)
}

// Clone returns a deep copy of the whole snapshot.
func (s *ProjectState) Clone() *ProjectState {
	out := NewProjectState()
	for k, m := range s.models {
		out.models[k] = m.Clone()
	}
	return out
}

// update applies fn to the stored model in place. Used by the mutating
// helpers below so field-level edits stay inside this package.
func (s *ProjectState) update(namespace, model string, fn func(*ModelState) bool) bool {
	k := ModelKey{namespace, model}
	m, ok := s.models[k]
	if !ok {
		return false
	}
	if !fn(&m) {
		return false
	}
	s.models[k] = m
	return true
}

// AddModelField inserts a field into an existing model.
func (s *ProjectState) AddModelField(namespace, model string, f FieldState) bool {
	return s.update(namespace, model, func(m *ModelState) bool {
		m.AddField(f)
		return true
	})
}

// RemoveModelField removes a field from an existing model.
func (s *ProjectState) RemoveModelField(namespace, model, field string) bool {
	return s.update(namespace, model, func(m *ModelState) bool {
		return m.RemoveField(field)
	})
}

// AlterModelField replaces a field's definition in place, preserving its name.
func (s *ProjectState) AlterModelField(namespace, model string, f FieldState) bool {
	return s.update(namespace, model, func(m *ModelState) bool {
		if !m.HasField(f.Name) {
			return false
		}
		m.AddField(f)
		return true
	})
}

// RenameModelField renames a field within an existing model.
func (s *ProjectState) RenameModelField(namespace, model, oldName, newName string) bool {
	return s.update(namespace, model, func(m *ModelState) bool {
		return m.RenameField(oldName, newName)
	})
}

// SnakeCase converts a Go-style model name to its snake_case table form,
// e.g. "BlogPost" -> "blog_post".
func SnakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r - 'A' + 'a')
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// PascalCase converts snake_case to PascalCase, e.g. "blog_post" -> "BlogPost".
func PascalCase(s string) string {
	parts := strings.Split(s, "_")
	var sb strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]))
		sb.WriteString(p[1:])
	}
	return sb.String()
}
