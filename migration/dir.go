package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"migrant/autodetect"
	"migrant/operations"
	"migrant/state"
)

// Dir is a filesystem migration source: one subdirectory per namespace, one
// numbered JSON file per migration (e.g. shop/0002_add_email.json).
type Dir struct {
	Path string
}

// Load reads every migration under the directory. A missing directory is an
// empty history, not an error.
func (d Dir) Load() ([]*Migration, error) {
	entries, err := os.ReadDir(d.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("migration: read dir %q: %w", d.Path, err)
	}

	var migs []*Migration
	for _, ns := range entries {
		if !ns.IsDir() {
			continue
		}
		nsPath := filepath.Join(d.Path, ns.Name())
		files, err := os.ReadDir(nsPath)
		if err != nil {
			return nil, fmt.Errorf("migration: read dir %q: %w", nsPath, err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			path := filepath.Join(nsPath, f.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("migration: read %q: %w", path, err)
			}
			var m Migration
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, fmt.Errorf("migration: %q: %w", path, err)
			}
			migs = append(migs, &m)
		}
	}

	sort.Slice(migs, func(i, j int) bool {
		if migs[i].Namespace != migs[j].Namespace {
			return migs[i].Namespace < migs[j].Namespace
		}
		return migs[i].Name < migs[j].Name
	})
	return migs, nil
}

// Write persists one migration, creating the namespace subdirectory as
// needed.
func (d Dir) Write(m *Migration) (string, error) {
	nsPath := filepath.Join(d.Path, m.Namespace)
	if err := os.MkdirAll(nsPath, 0o755); err != nil {
		return "", fmt.Errorf("migration: create dir %q: %w", nsPath, err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	path := filepath.Join(nsPath, m.Name+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("migration: write %q: %w", path, err)
	}
	return path, nil
}

// NextName returns the next numbered migration name for a namespace, e.g.
// "0003_add_email" when 0002 is the latest on disk.
func (d Dir) NextName(namespace, label string) (string, error) {
	migs, err := d.Load()
	if err != nil {
		return "", err
	}
	next := 1
	for _, m := range migs {
		if m.Namespace != namespace {
			continue
		}
		if n, ok := numberPrefix(m.Name); ok && n >= next {
			next = n + 1
		}
	}
	return fmt.Sprintf("%04d_%s", next, label), nil
}

// Latest returns the newest migration name per namespace.
func (d Dir) Latest() (map[string]string, error) {
	migs, err := d.Load()
	if err != nil {
		return nil, err
	}
	latest := map[string]string{}
	for _, m := range migs {
		if m.Name > latest[m.Namespace] {
			latest[m.Namespace] = m.Name
		}
	}
	return latest, nil
}

func numberPrefix(name string) (int, bool) {
	i := strings.IndexByte(name, '_')
	if i < 0 {
		i = len(name)
	}
	n, err := strconv.Atoi(name[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}

// FromPlan groups a detected plan into one migration per namespace,
// preserving operation order. Each migration depends on the namespace's
// latest existing migration, and on any sibling migration from the same run
// that creates a table it references, so replay order is preserved across
// runs and namespaces.
func FromPlan(plan *autodetect.Plan, d Dir, label string) ([]*Migration, error) {
	latest, err := d.Latest()
	if err != nil {
		return nil, err
	}

	byNS := map[string]*Migration{}
	createdBy := map[string]string{} // table -> namespace creating it in this plan
	var order []string
	for _, p := range plan.Operations {
		m, ok := byNS[p.Namespace]
		if !ok {
			name, err := d.NextName(p.Namespace, label)
			if err != nil {
				return nil, err
			}
			m = &Migration{Namespace: p.Namespace, Name: name}
			if prev, ok := latest[p.Namespace]; ok {
				m.Dependencies = append(m.Dependencies, Ref{Namespace: p.Namespace, Name: prev})
			}
			byNS[p.Namespace] = m
			order = append(order, p.Namespace)
		}
		m.Operations = append(m.Operations, p.Op)

		for _, table := range referencedTables(p.Op) {
			ns, ok := createdBy[table]
			if !ok || ns == p.Namespace {
				continue
			}
			dep := byNS[ns].Ref()
			if !hasRef(m.Dependencies, dep) {
				m.Dependencies = append(m.Dependencies, dep)
			}
		}
		if c, ok := p.Op.(operations.CreateModel); ok {
			table := c.Table
			if table == "" {
				table = state.DefaultTableName(p.Namespace, c.Name)
			}
			createdBy[table] = p.Namespace
		}
	}

	out := make([]*Migration, 0, len(order))
	for _, ns := range order {
		out = append(out, byNS[ns])
	}
	return out, nil
}

// referencedTables lists the foreign-key target tables an operation's new
// column definitions point at.
func referencedTables(op operations.Operation) []string {
	var tables []string
	add := func(fk *state.ForeignKeyRef) {
		if fk != nil {
			tables = append(tables, fk.Table)
		}
	}
	switch o := op.(type) {
	case operations.CreateModel:
		for _, f := range o.Fields {
			add(f.ForeignKey)
		}
	case operations.AddField:
		add(o.Field.ForeignKey)
	case operations.AlterField:
		add(o.Field.ForeignKey)
	}
	return tables
}

func hasRef(refs []Ref, r Ref) bool {
	for _, have := range refs {
		if have == r {
			return true
		}
	}
	return false
}
