// Package registry is the catalog of declared models. A Registry is an
// explicitly constructed instance passed through the bootstrap path; the
// process-wide Default registry exists only as a convenience for callers that
// register models from package init functions.
package registry

import (
	"sort"
	"strings"
	"sync"

	"migrant/state"
)

// FieldMetadata describes one declared field.
type FieldMetadata struct {
	Type       state.FieldType
	Nullable   bool
	Params     map[string]string // e.g. max_length, default, unique
	ForeignKey *state.ForeignKeyRef
}

// ModelMetadata describes one declared model. Re-registering the same
// (namespace, model) key overwrites the previous entry wholesale.
type ModelMetadata struct {
	Namespace  string
	ModelName  string
	TableName  string // empty means derive from namespace + model name
	Fields     map[string]FieldMetadata
	Options    map[string]string
	ManyToMany []state.ManyToManyRef
}

// Registry is a concurrency-safe model catalog. Reads return owned copies,
// so captured snapshots are unaffected by later registrations.
type Registry struct {
	mu     sync.RWMutex
	models map[state.ModelKey]ModelMetadata
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{models: map[state.ModelKey]ModelMetadata{}}
}

var defaultRegistry = New()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// RegisterModel inserts or overwrites the metadata under its
// (namespace, model) key. Registration never fails; re-declaration is
// idempotent.
func (r *Registry) RegisterModel(md ModelMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[state.ModelKey{Namespace: md.Namespace, Name: md.ModelName}] = cloneMetadata(md)
}

// GetModel returns a copy of the metadata for one model.
func (r *Registry) GetModel(namespace, name string) (ModelMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	md, ok := r.models[state.ModelKey{Namespace: namespace, Name: name}]
	if !ok {
		return ModelMetadata{}, false
	}
	return cloneMetadata(md), true
}

// Models returns copies of all registered models in lexicographic
// (namespace, model) order.
func (r *Registry) Models() []ModelMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]state.ModelKey, 0, len(r.models))
	for k := range r.models {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Namespace != keys[j].Namespace {
			return keys[i].Namespace < keys[j].Namespace
		}
		return keys[i].Name < keys[j].Name
	})
	out := make([]ModelMetadata, 0, len(keys))
	for _, k := range keys {
		out = append(out, cloneMetadata(r.models[k]))
	}
	return out
}

// NamespaceModels returns copies of all models declared under one namespace,
// in lexicographic model-name order.
func (r *Registry) NamespaceModels(namespace string) []ModelMetadata {
	var out []ModelMetadata
	for _, md := range r.Models() {
		if md.Namespace == namespace {
			out = append(out, md)
		}
	}
	return out
}

// RemoveModel deletes one entry. Previously captured ProjectStates are
// unaffected. Exists for test-harness isolation.
func (r *Registry) RemoveModel(namespace, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := state.ModelKey{Namespace: namespace, Name: name}
	if _, ok := r.models[k]; !ok {
		return false
	}
	delete(r.models, k)
	return true
}

// Clear removes every entry. Exists for test-harness isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = map[state.ModelKey]ModelMetadata{}
}

func cloneMetadata(md ModelMetadata) ModelMetadata {
	out := md
	if md.Fields != nil {
		out.Fields = make(map[string]FieldMetadata, len(md.Fields))
		for name, f := range md.Fields {
			out.Fields[name] = cloneField(f)
		}
	}
	if md.Options != nil {
		out.Options = make(map[string]string, len(md.Options))
		for k, v := range md.Options {
			out.Options[k] = v
		}
	}
	out.ManyToMany = append([]state.ManyToManyRef(nil), md.ManyToMany...)
	return out
}

func cloneField(f FieldMetadata) FieldMetadata {
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

// ToModelState converts declared metadata into a snapshot entry. The
// conversion is pure and deterministic: identical metadata always yields
// byte-identical constraint names, so a re-run diff against an unchanged
// registry is empty.
func (md ModelMetadata) ToModelState() state.ModelState {
	ms := state.NewModelState(md.Namespace, md.ModelName)
	if md.TableName != "" {
		ms.TableName = md.TableName
	}

	names := make([]string, 0, len(md.Fields))
	for name := range md.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fm := md.Fields[name]
		fs := state.FieldState{
			Name:     name,
			Type:     fm.Type,
			Nullable: fm.Nullable,
		}
		if fm.Params != nil {
			fs.Params = make(map[string]string, len(fm.Params))
			for k, v := range fm.Params {
				fs.Params[k] = v
			}
		}
		if fm.ForeignKey != nil {
			fk := *fm.ForeignKey
			fs.ForeignKey = &fk
		}
		ms.AddField(fs)

		if fm.Params["unique"] == "true" {
			ms.Constraints = append(ms.Constraints, state.Constraint{
				Name:   uniqueConstraintName(md.Namespace, md.ModelName, name),
				Kind:   state.ConstraintUnique,
				Fields: []string{name},
			})
		}
	}

	ms.ManyToMany = append([]state.ManyToManyRef(nil), md.ManyToMany...)
	return ms
}

// uniqueConstraintName follows the {namespace}_{model_lower}_{field}_uniq
// convention.
func uniqueConstraintName(namespace, model, field string) string {
	return namespace + "_" + strings.ToLower(model) + "_" + field + "_uniq"
}
