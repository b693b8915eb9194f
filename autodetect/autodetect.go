// Package autodetect diffs two ProjectState snapshots into an ordered
// operation sequence. The detector is deterministic: identical inputs always
// produce identical plans, byte for byte when serialized.
package autodetect

import (
	"fmt"
	"sort"

	"migrant/operations"
	"migrant/state"
)

// PlannedOp pairs an operation with the namespace it applies to.
type PlannedOp struct {
	Namespace string
	Op        operations.Operation
}

// Plan is the detector output: the operation sequence plus any warnings
// raised while resolving ambiguities.
type Plan struct {
	Operations []PlannedOp
	Warnings   []string
}

// IsEmpty reports whether the plan contains no operations.
func (p *Plan) IsEmpty() bool {
	return len(p.Operations) == 0
}

// Detector diffs a from-snapshot against a to-snapshot. It operates on owned
// snapshots; callers must not mutate either state mid-diff.
type Detector struct {
	from *state.ProjectState
	to   *state.ProjectState
}

// New creates a detector over the two snapshots.
func New(from, to *state.ProjectState) *Detector {
	return &Detector{from: from, to: to}
}

// Changes computes the ordered operation sequence carrying from into to.
// Ordering: created models in foreign-key dependency order, then per-model
// field changes (renames, adds, alters, removes) over shared models in
// lexicographic order, then deleted models in reverse dependency order.
func (d *Detector) Changes() *Plan {
	plan := &Plan{}

	fromKeys := keySet(d.from)
	toKeys := keySet(d.to)

	var added, removed, shared []state.ModelKey
	for _, k := range d.to.Keys() {
		if fromKeys[k] {
			shared = append(shared, k)
		} else {
			added = append(added, k)
		}
	}
	for _, k := range d.from.Keys() {
		if !toKeys[k] {
			removed = append(removed, k)
		}
	}

	for _, k := range dependencyOrder(d.to, added) {
		m, _ := d.to.Model(k.Namespace, k.Name)
		op := operations.CreateModel{
			Name:        m.Name,
			Fields:      m.Fields(),
			Constraints: m.Constraints,
		}
		if m.TableName != state.DefaultTableName(m.Namespace, m.Name) {
			op.Table = m.TableName
		}
		plan.Operations = append(plan.Operations, PlannedOp{Namespace: k.Namespace, Op: op})
	}

	for _, k := range shared {
		fromModel, _ := d.from.Model(k.Namespace, k.Name)
		toModel, _ := d.to.Model(k.Namespace, k.Name)
		d.diffFields(plan, k.Namespace, &fromModel, &toModel)
	}

	deleteOrder := dependencyOrder(d.from, removed)
	for i := len(deleteOrder) - 1; i >= 0; i-- {
		k := deleteOrder[i]
		plan.Operations = append(plan.Operations, PlannedOp{
			Namespace: k.Namespace,
			Op:        operations.DeleteModel{Name: k.Name},
		})
	}

	return plan
}

// diffFields emits field-level operations for one model shared by both
// snapshots.
func (d *Detector) diffFields(plan *Plan, namespace string, from, to *state.ModelState) {
	fromNames := from.FieldNames()
	toNames := to.FieldNames()

	inFrom := map[string]bool{}
	for _, n := range fromNames {
		inFrom[n] = true
	}
	inTo := map[string]bool{}
	for _, n := range toNames {
		inTo[n] = true
	}

	var addedF, removedF []string
	for _, n := range toNames {
		if !inFrom[n] {
			addedF = append(addedF, n)
		}
	}
	for _, n := range fromNames {
		if !inTo[n] {
			removedF = append(removedF, n)
		}
	}

	renamedFrom, renamedTo := d.detectRenames(plan, namespace, from, to, removedF, addedF)

	for _, old := range removedF {
		if newName, ok := renamedFrom[old]; ok {
			plan.Operations = append(plan.Operations, PlannedOp{
				Namespace: namespace,
				Op:        operations.RenameField{Model: to.Name, OldName: old, NewName: newName},
			})
		}
	}

	for _, n := range addedF {
		if renamedTo[n] {
			continue
		}
		f, _ := to.Field(n)
		plan.Operations = append(plan.Operations, PlannedOp{
			Namespace: namespace,
			Op:        operations.AddField{Model: to.Name, Field: f},
		})
	}

	for _, n := range toNames {
		if !inFrom[n] {
			continue
		}
		oldF, _ := from.Field(n)
		newF, _ := to.Field(n)
		if oldF.Fingerprint() != newF.Fingerprint() {
			plan.Operations = append(plan.Operations, PlannedOp{
				Namespace: namespace,
				Op:        operations.AlterField{Model: to.Name, Field: newF},
			})
		}
	}

	for _, n := range removedF {
		if _, ok := renamedFrom[n]; ok {
			continue
		}
		plan.Operations = append(plan.Operations, PlannedOp{
			Namespace: namespace,
			Op:        operations.RemoveField{Model: to.Name, Name: n},
		})
	}
}

// detectRenames pairs removed and added fields whose fingerprints (type,
// nullability, parameters) are identical, turning a destructive drop+add into
// a rename. Removed fields are scanned in lexicographic order and the
// lexicographically-first unconsumed candidate wins; any ambiguity in either
// direction is surfaced as a warning rather than resolved silently.
func (d *Detector) detectRenames(plan *Plan, namespace string, from, to *state.ModelState, removedF, addedF []string) (map[string]string, map[string]bool) {
	renamedFrom := map[string]string{} // old name -> new name
	renamedTo := map[string]bool{}     // new names already consumed

	for _, old := range removedF {
		oldField, _ := from.Field(old)

		var candidates, taken []string
		for _, n := range addedF {
			newField, _ := to.Field(n)
			if newField.Fingerprint() != oldField.Fingerprint() {
				continue
			}
			if renamedTo[n] {
				taken = append(taken, n)
				continue
			}
			candidates = append(candidates, n)
		}
		if len(candidates) == 0 {
			if len(taken) > 0 {
				sort.Strings(taken)
				plan.Warnings = append(plan.Warnings, fmt.Sprintf(
					"ambiguous rename on %s.%s: field %q also matches renamed %v; keeping remove",
					namespace, to.Name, old, taken))
			}
			continue
		}
		sort.Strings(candidates)
		chosen := candidates[0]
		if len(candidates) > 1 {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf(
				"ambiguous rename on %s.%s: field %q matches %v; choosing %q",
				namespace, to.Name, old, candidates, chosen))
		}
		renamedFrom[old] = chosen
		renamedTo[chosen] = true
	}

	return renamedFrom, renamedTo
}

// Apply runs every planned operation's StateForwards against a copy of from
// and returns the resulting snapshot. The input snapshot is not mutated.
func Apply(plan *Plan, from *state.ProjectState) (*state.ProjectState, error) {
	ps := from.Clone()
	for i, p := range plan.Operations {
		if err := p.Op.StateForwards(p.Namespace, ps); err != nil {
			return nil, fmt.Errorf("autodetect: operation %d %s: %w", i+1, p.Op.Describe(), err)
		}
	}
	return ps, nil
}

func keySet(ps *state.ProjectState) map[state.ModelKey]bool {
	set := make(map[state.ModelKey]bool, ps.Len())
	for _, k := range ps.Keys() {
		set[k] = true
	}
	return set
}

// dependencyOrder sorts the given model keys so that a model referenced via
// foreign key precedes its referents. Ties and independent models keep
// lexicographic order, which keeps the whole plan deterministic.
func dependencyOrder(ps *state.ProjectState, keys []state.ModelKey) []state.ModelKey {
	if len(keys) < 2 {
		return keys
	}

	inSet := map[state.ModelKey]bool{}
	byTable := map[string]state.ModelKey{}
	for _, k := range keys {
		inSet[k] = true
		m, _ := ps.Model(k.Namespace, k.Name)
		byTable[m.TableName] = k
	}

	indegree := map[state.ModelKey]int{}
	dependents := map[state.ModelKey][]state.ModelKey{}
	for _, k := range keys {
		indegree[k] = 0
	}
	for _, k := range keys {
		m, _ := ps.Model(k.Namespace, k.Name)
		for _, fk := range m.ForeignKeys() {
			target, ok := byTable[fk.Table]
			if !ok || target == k || !inSet[target] {
				continue
			}
			dependents[target] = append(dependents[target], k)
			indegree[k]++
		}
	}

	var ready []state.ModelKey
	for _, k := range keys {
		if indegree[k] == 0 {
			ready = append(ready, k)
		}
	}
	sortKeys(ready)

	var order []state.ModelKey
	for len(ready) > 0 {
		k := ready[0]
		ready = ready[1:]
		order = append(order, k)
		released := false
		for _, dep := range dependents[k] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
				released = true
			}
		}
		if released {
			sortKeys(ready)
		}
	}

	// A reference cycle leaves models unordered; append them in lexicographic
	// order so the plan is still produced (the database will reject the DDL,
	// which is the honest failure point).
	if len(order) < len(keys) {
		emitted := map[state.ModelKey]bool{}
		for _, k := range order {
			emitted[k] = true
		}
		var rest []state.ModelKey
		for _, k := range keys {
			if !emitted[k] {
				rest = append(rest, k)
			}
		}
		sortKeys(rest)
		order = append(order, rest...)
	}

	return order
}

func sortKeys(keys []state.ModelKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Namespace != keys[j].Namespace {
			return keys[i].Namespace < keys[j].Namespace
		}
		return keys[i].Name < keys[j].Name
	})
}
