package state

import "fmt"

// Error reports an operation that referenced a model or field absent from the
// snapshot it was applied to. The failing target is always named.
type Error struct {
	Op        string // operation description, e.g. "RemoveField"
	Namespace string
	Model     string
	Field     string // empty for model-level operations
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("state: %s: field %q not found on model %s.%s", e.Op, e.Field, e.Namespace, e.Model)
	}
	return fmt.Sprintf("state: %s: model %s.%s not found", e.Op, e.Namespace, e.Model)
}
