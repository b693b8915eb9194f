package operations

import (
	"encoding/json"
	"fmt"
)

// envelope is the persisted form of one operation. The "op" tag and each
// variant's field names are stable: changing them breaks replay of existing
// migration history.
type envelope struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// Marshal encodes an operation into its tagged JSON form.
func Marshal(op Operation) ([]byte, error) {
	data, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("operations: encode %s: %w", op.Describe(), err)
	}
	return json.Marshal(envelope{Op: op.opName(), Data: data})
}

// Unmarshal decodes a tagged JSON form back into its operation variant.
// Unknown tags are an error: history written by a newer engine is rejected
// rather than misread.
func Unmarshal(data []byte) (Operation, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("operations: decode envelope: %w", err)
	}

	var op Operation
	var err error
	switch env.Op {
	case "create_model":
		op, err = decode[CreateModel](env.Data)
	case "delete_model":
		op, err = decode[DeleteModel](env.Data)
	case "rename_model":
		op, err = decode[RenameModel](env.Data)
	case "add_field":
		op, err = decode[AddField](env.Data)
	case "remove_field":
		op, err = decode[RemoveField](env.Data)
	case "alter_field":
		op, err = decode[AlterField](env.Data)
	case "rename_field":
		op, err = decode[RenameField](env.Data)
	case "run_sql":
		op, err = decode[RunSQL](env.Data)
	default:
		return nil, fmt.Errorf("operations: unknown operation tag %q", env.Op)
	}
	if err != nil {
		return nil, fmt.Errorf("operations: decode %q payload: %w", env.Op, err)
	}
	return op, nil
}

func decode[T Operation](data json.RawMessage) (Operation, error) {
	var op T
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, err
	}
	return op, nil
}

// MarshalList encodes a sequence of operations preserving order.
func MarshalList(ops []Operation) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(ops))
	for _, op := range ops {
		data, err := Marshal(op)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// UnmarshalList decodes a sequence of operations preserving order.
func UnmarshalList(raw []json.RawMessage) ([]Operation, error) {
	out := make([]Operation, 0, len(raw))
	for i, data := range raw {
		op, err := Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("operations: entry %d: %w", i+1, err)
		}
		out = append(out, op)
	}
	return out, nil
}
