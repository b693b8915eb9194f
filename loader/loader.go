// Package loader reads declarative model files (TOML or YAML) and turns them
// into registry metadata.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"migrant/registry"
	"migrant/state"
)

type document struct {
	Namespace string               `toml:"namespace" yaml:"namespace"`
	Models    map[string]modelSpec `toml:"models" yaml:"models"`
}

type modelSpec struct {
	Table      string               `toml:"table" yaml:"table"`
	Fields     map[string]fieldSpec `toml:"fields" yaml:"fields"`
	Options    map[string]string    `toml:"options" yaml:"options"`
	ManyToMany []m2mSpec            `toml:"many_to_many" yaml:"many_to_many"`
}

type fieldSpec struct {
	Type       string            `toml:"type" yaml:"type"`
	Nullable   bool              `toml:"nullable" yaml:"nullable"`
	Params     map[string]string `toml:"params" yaml:"params"`
	ForeignKey *fkSpec           `toml:"foreign_key" yaml:"foreign_key"`
}

type fkSpec struct {
	Table    string `toml:"table" yaml:"table"`
	Column   string `toml:"column" yaml:"column"`
	OnDelete string `toml:"on_delete" yaml:"on_delete"`
	OnUpdate string `toml:"on_update" yaml:"on_update"`
}

type m2mSpec struct {
	Field   string `toml:"field" yaml:"field"`
	To      string `toml:"to" yaml:"to"`
	Through string `toml:"through" yaml:"through"`
}

// LoadFile parses one model file, dispatching on extension (.toml, .yaml,
// .yml).
func LoadFile(path string) ([]registry.ModelMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %q: %w", path, err)
	}

	var doc document
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("loader: parse %q: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("loader: parse %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("loader: %q: unsupported extension %q", path, ext)
	}

	return doc.metadata(path)
}

// LoadDir loads every model file directly under dir, in lexicographic
// filename order.
func LoadDir(dir string) ([]registry.ModelMetadata, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loader: read dir %q: %w", dir, err)
	}
	var out []registry.ModelMetadata
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".toml", ".yaml", ".yml":
		default:
			continue
		}
		mds, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, mds...)
	}
	return out, nil
}

// Register loads a directory of model files into a registry.
func Register(r *registry.Registry, dir string) error {
	mds, err := LoadDir(dir)
	if err != nil {
		return err
	}
	for _, md := range mds {
		r.RegisterModel(md)
	}
	return nil
}

func (d document) metadata(path string) ([]registry.ModelMetadata, error) {
	if d.Namespace == "" {
		return nil, fmt.Errorf("loader: %q: missing namespace", path)
	}

	names := make([]string, 0, len(d.Models))
	for name := range d.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]registry.ModelMetadata, 0, len(names))
	for _, name := range names {
		spec := d.Models[name]
		md := registry.ModelMetadata{
			Namespace: d.Namespace,
			ModelName: name,
			TableName: spec.Table,
			Fields:    make(map[string]registry.FieldMetadata, len(spec.Fields)),
			Options:   spec.Options,
		}
		for fname, fs := range spec.Fields {
			fm, err := fs.metadata()
			if err != nil {
				return nil, fmt.Errorf("loader: %q: model %s field %s: %w", path, name, fname, err)
			}
			md.Fields[fname] = fm
		}
		for _, m2m := range spec.ManyToMany {
			if m2m.Field == "" || m2m.To == "" {
				return nil, fmt.Errorf("loader: %q: model %s: many_to_many needs field and to", path, name)
			}
			md.ManyToMany = append(md.ManyToMany, state.ManyToManyRef{
				FieldName: m2m.Field,
				ToModel:   m2m.To,
				Through:   m2m.Through,
			})
		}
		out = append(out, md)
	}
	return out, nil
}

func (fs fieldSpec) metadata() (registry.FieldMetadata, error) {
	if fs.Type == "" {
		return registry.FieldMetadata{}, fmt.Errorf("missing type")
	}
	ft, err := state.ParseType(fs.Type)
	if err != nil {
		return registry.FieldMetadata{}, err
	}
	fm := registry.FieldMetadata{
		Type:     ft,
		Nullable: fs.Nullable,
		Params:   fs.Params,
	}
	if fs.ForeignKey != nil {
		if fs.ForeignKey.Table == "" || fs.ForeignKey.Column == "" {
			return registry.FieldMetadata{}, fmt.Errorf("foreign_key needs table and column")
		}
		fk := state.ForeignKeyRef{
			Table:  fs.ForeignKey.Table,
			Column: fs.ForeignKey.Column,
		}
		if fk.OnDelete, err = parseAction(fs.ForeignKey.OnDelete); err != nil {
			return registry.FieldMetadata{}, err
		}
		if fk.OnUpdate, err = parseAction(fs.ForeignKey.OnUpdate); err != nil {
			return registry.FieldMetadata{}, err
		}
		fm.ForeignKey = &fk
	}
	return fm, nil
}

func parseAction(s string) (state.RefAction, error) {
	switch strings.ToUpper(strings.ReplaceAll(s, "_", " ")) {
	case "":
		return state.RefActionNone, nil
	case "CASCADE":
		return state.RefActionCascade, nil
	case "RESTRICT":
		return state.RefActionRestrict, nil
	case "SET NULL":
		return state.RefActionSetNull, nil
	case "SET DEFAULT":
		return state.RefActionSetDefault, nil
	case "NO ACTION":
		return state.RefActionNoAction, nil
	}
	return "", fmt.Errorf("unknown referential action %q", s)
}
