// Package migration persists operation sequences as versioned JSON files and
// replays them into ProjectState snapshots.
package migration

import (
	"encoding/json"
	"fmt"

	"migrant/operations"
	"migrant/state"
)

// FormatVersion is written into every migration file. Readers reject files
// with a version they do not understand.
const FormatVersion = 1

// Ref identifies a migration another migration depends on.
type Ref struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

func (r Ref) String() string { return r.Namespace + "/" + r.Name }

// Migration is one recorded step of schema history: an ordered operation
// sequence scoped to a namespace.
type Migration struct {
	Namespace    string
	Name         string
	Dependencies []Ref
	Operations   []operations.Operation
}

// Ref returns the migration's own identity.
func (m *Migration) Ref() Ref {
	return Ref{Namespace: m.Namespace, Name: m.Name}
}

type fileFormat struct {
	Version      int               `json:"version"`
	Namespace    string            `json:"namespace"`
	Name         string            `json:"name"`
	Dependencies []Ref             `json:"dependencies,omitempty"`
	Operations   []json.RawMessage `json:"operations"`
}

// MarshalJSON encodes the migration in its durable file format.
func (m *Migration) MarshalJSON() ([]byte, error) {
	ops, err := operations.MarshalList(m.Operations)
	if err != nil {
		return nil, fmt.Errorf("migration: %s: %w", m.Ref(), err)
	}
	return json.MarshalIndent(fileFormat{
		Version:      FormatVersion,
		Namespace:    m.Namespace,
		Name:         m.Name,
		Dependencies: m.Dependencies,
		Operations:   ops,
	}, "", "  ")
}

// UnmarshalJSON decodes the durable file format.
func (m *Migration) UnmarshalJSON(data []byte) error {
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return fmt.Errorf("migration: decode: %w", err)
	}
	if ff.Version != FormatVersion {
		return fmt.Errorf("migration: %s/%s: unsupported format version %d", ff.Namespace, ff.Name, ff.Version)
	}
	ops, err := operations.UnmarshalList(ff.Operations)
	if err != nil {
		return fmt.Errorf("migration: %s/%s: %w", ff.Namespace, ff.Name, err)
	}
	m.Namespace = ff.Namespace
	m.Name = ff.Name
	m.Dependencies = ff.Dependencies
	m.Operations = ops
	return nil
}

// Replay builds a ProjectState by applying every migration's operations in
// dependency order, starting from an empty snapshot.
func Replay(migs []*Migration) (*state.ProjectState, error) {
	ordered, err := Sort(migs)
	if err != nil {
		return nil, err
	}
	ps := state.NewProjectState()
	for _, m := range ordered {
		for i, op := range m.Operations {
			if err := op.StateForwards(m.Namespace, ps); err != nil {
				return nil, fmt.Errorf("migration: replay %s operation %d %s: %w",
					m.Ref(), i+1, op.Describe(), err)
			}
		}
	}
	return ps, nil
}
