package state

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldKind enumerates the supported field type variants.
type FieldKind string

const (
	KindBigInt      FieldKind = "bigint"
	KindInteger     FieldKind = "integer"
	KindSmallInt    FieldKind = "smallint"
	KindVarChar     FieldKind = "varchar"
	KindChar        FieldKind = "char"
	KindText        FieldKind = "text"
	KindDate        FieldKind = "date"
	KindTime        FieldKind = "time"
	KindDateTime    FieldKind = "datetime"
	KindTimestampTz FieldKind = "timestamptz"
	KindDecimal     FieldKind = "decimal"
	KindFloat       FieldKind = "float"
	KindDouble      FieldKind = "double"
	KindBoolean     FieldKind = "boolean"
	KindBinary      FieldKind = "binary"
	KindJSON        FieldKind = "json"
	KindJSONB       FieldKind = "jsonb"
	KindUUID        FieldKind = "uuid"
	KindCustom      FieldKind = "custom"
)

// FieldType is a closed tagged variant describing a column type. It is a
// comparable value: two FieldTypes are the same type iff they are ==.
type FieldType struct {
	Kind      FieldKind `json:"kind"`
	Size      int       `json:"size,omitempty"`      // char/varchar length
	Precision int       `json:"precision,omitempty"` // decimal precision
	Scale     int       `json:"scale,omitempty"`     // decimal scale
	Custom    string    `json:"custom,omitempty"`    // raw type when Kind == KindCustom
}

func BigInt() FieldType      { return FieldType{Kind: KindBigInt} }
func Integer() FieldType     { return FieldType{Kind: KindInteger} }
func SmallInt() FieldType    { return FieldType{Kind: KindSmallInt} }
func Text() FieldType        { return FieldType{Kind: KindText} }
func Date() FieldType        { return FieldType{Kind: KindDate} }
func Time() FieldType        { return FieldType{Kind: KindTime} }
func DateTime() FieldType    { return FieldType{Kind: KindDateTime} }
func TimestampTz() FieldType { return FieldType{Kind: KindTimestampTz} }
func Float() FieldType       { return FieldType{Kind: KindFloat} }
func Double() FieldType      { return FieldType{Kind: KindDouble} }
func Boolean() FieldType     { return FieldType{Kind: KindBoolean} }
func Binary() FieldType      { return FieldType{Kind: KindBinary} }
func JSON() FieldType        { return FieldType{Kind: KindJSON} }
func JSONB() FieldType       { return FieldType{Kind: KindJSONB} }
func UUID() FieldType        { return FieldType{Kind: KindUUID} }

func VarChar(size int) FieldType { return FieldType{Kind: KindVarChar, Size: size} }
func Char(size int) FieldType    { return FieldType{Kind: KindChar, Size: size} }

func Decimal(precision, scale int) FieldType {
	return FieldType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// CustomType is the escape hatch for types outside the closed set; raw is
// rendered verbatim by every dialect.
func CustomType(raw string) FieldType {
	return FieldType{Kind: KindCustom, Custom: raw}
}

// ParseType parses a textual type spec such as "varchar(255)", "decimal(10,2)"
// or "integer" into a FieldType. Unknown names become custom types.
func ParseType(spec string) (FieldType, error) {
	s := strings.TrimSpace(spec)
	name := s
	var args []int
	if i := strings.IndexByte(s, '('); i >= 0 {
		if !strings.HasSuffix(s, ")") {
			return FieldType{}, fmt.Errorf("state: malformed type %q", spec)
		}
		name = strings.TrimSpace(s[:i])
		for _, part := range strings.Split(s[i+1:len(s)-1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return FieldType{}, fmt.Errorf("state: malformed type %q", spec)
			}
			args = append(args, n)
		}
	}

	switch kind := FieldKind(strings.ToLower(name)); kind {
	case KindVarChar, KindChar:
		if len(args) != 1 {
			return FieldType{}, fmt.Errorf("state: type %q needs a length", spec)
		}
		return FieldType{Kind: kind, Size: args[0]}, nil
	case KindDecimal:
		if len(args) != 2 {
			return FieldType{}, fmt.Errorf("state: type %q needs precision and scale", spec)
		}
		return FieldType{Kind: kind, Precision: args[0], Scale: args[1]}, nil
	case KindBigInt, KindInteger, KindSmallInt, KindText, KindDate, KindTime,
		KindDateTime, KindTimestampTz, KindFloat, KindDouble, KindBoolean,
		KindBinary, KindJSON, KindJSONB, KindUUID:
		if len(args) != 0 {
			return FieldType{}, fmt.Errorf("state: type %q takes no arguments", spec)
		}
		return FieldType{Kind: kind}, nil
	default:
		return CustomType(s), nil
	}
}

// IsZero reports whether the type is the unset zero value.
func (t FieldType) IsZero() bool {
	return t.Kind == ""
}

// String renders a dialect-neutral description, e.g. "VARCHAR(255)" or
// "DECIMAL(10,2)". Dialect-correct DDL types come from the editor package.
func (t FieldType) String() string {
	switch t.Kind {
	case KindVarChar:
		return fmt.Sprintf("VARCHAR(%d)", t.Size)
	case KindChar:
		return fmt.Sprintf("CHAR(%d)", t.Size)
	case KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	case KindCustom:
		return t.Custom
	case KindBigInt:
		return "BIGINT"
	case KindInteger:
		return "INTEGER"
	case KindSmallInt:
		return "SMALLINT"
	case KindText:
		return "TEXT"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindDateTime:
		return "DATETIME"
	case KindTimestampTz:
		return "TIMESTAMPTZ"
	case KindFloat:
		return "FLOAT"
	case KindDouble:
		return "DOUBLE"
	case KindBoolean:
		return "BOOLEAN"
	case KindBinary:
		return "BINARY"
	case KindJSON:
		return "JSON"
	case KindJSONB:
		return "JSONB"
	case KindUUID:
		return "UUID"
	default:
		return string(t.Kind)
	}
}
