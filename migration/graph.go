package migration

import (
	"fmt"
	"sort"
)

// Sort orders migrations so every dependency precedes its dependents.
// Independent migrations keep lexicographic (namespace, name) order, so the
// replay order is deterministic. A missing dependency or a cycle is an error.
func Sort(migs []*Migration) ([]*Migration, error) {
	byRef := make(map[Ref]*Migration, len(migs))
	for _, m := range migs {
		if _, dup := byRef[m.Ref()]; dup {
			return nil, fmt.Errorf("migration: duplicate migration %s", m.Ref())
		}
		byRef[m.Ref()] = m
	}

	indegree := make(map[Ref]int, len(migs))
	dependents := make(map[Ref][]Ref, len(migs))
	for _, m := range migs {
		indegree[m.Ref()] = 0
	}
	for _, m := range migs {
		for _, dep := range m.Dependencies {
			if _, ok := byRef[dep]; !ok {
				return nil, fmt.Errorf("migration: %s depends on unknown migration %s", m.Ref(), dep)
			}
			dependents[dep] = append(dependents[dep], m.Ref())
			indegree[m.Ref()]++
		}
	}

	var ready []Ref
	for ref, n := range indegree {
		if n == 0 {
			ready = append(ready, ref)
		}
	}
	sortRefs(ready)

	ordered := make([]*Migration, 0, len(migs))
	for len(ready) > 0 {
		ref := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byRef[ref])
		released := false
		for _, dep := range dependents[ref] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
				released = true
			}
		}
		if released {
			sortRefs(ready)
		}
	}

	if len(ordered) != len(migs) {
		var stuck []string
		for ref, n := range indegree {
			if n > 0 {
				stuck = append(stuck, ref.String())
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("migration: circular dependency among %v", stuck)
	}

	return ordered, nil
}

func sortRefs(refs []Ref) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Namespace != refs[j].Namespace {
			return refs[i].Namespace < refs[j].Namespace
		}
		return refs[i].Name < refs[j].Name
	})
}
