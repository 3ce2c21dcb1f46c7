/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the base kind of a field type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBoolean
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindDecimal
	KindString
	KindBinary
	KindTimestamp
	KindList
	KindWindow
)

var kindNames = map[Kind]string{
	KindBoolean:   "BOOLEAN",
	KindInt32:     "INT32",
	KindInt64:     "INT64",
	KindFloat32:   "FLOAT32",
	KindFloat64:   "FLOAT64",
	KindDecimal:   "DECIMAL",
	KindString:    "STRING",
	KindBinary:    "BINARY",
	KindTimestamp: "TIMESTAMP",
	KindList:      "LIST",
	KindWindow:    "WINDOW",
}

// kindAliases accepts the SQL spellings plans are commonly written with.
var kindAliases = map[string]Kind{
	"BOOLEAN":   KindBoolean,
	"BOOL":      KindBoolean,
	"INT32":     KindInt32,
	"INT":       KindInt32,
	"INTEGER":   KindInt32,
	"INT64":     KindInt64,
	"BIGINT":    KindInt64,
	"FLOAT32":   KindFloat32,
	"FLOAT":     KindFloat32,
	"REAL":      KindFloat32,
	"FLOAT64":   KindFloat64,
	"DOUBLE":    KindFloat64,
	"STRING":    KindString,
	"VARCHAR":   KindString,
	"TEXT":      KindString,
	"BINARY":    KindBinary,
	"BYTES":     KindBinary,
	"VARBINARY": KindBinary,
	"TIMESTAMP": KindTimestamp,
	"WINDOW":    KindWindow,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "INVALID"
}

// IsNumeric reports whether values of the kind take part in arithmetic.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt32, KindInt64, KindFloat32, KindFloat64, KindDecimal:
		return true
	}
	return false
}

// IsInteger reports whether the kind is an integer kind.
func (k Kind) IsInteger() bool {
	return k == KindInt32 || k == KindInt64
}

// Type is a resolved field type. Type variables are resolved by the planner
// and never appear here.
type Type struct {
	Kind      Kind
	Precision int32
	Scale     int32
	// Elem is the element type of a LIST.
	Elem     *Type
	Nullable bool
}

// Of returns the non-nullable type of the given kind.
func Of(kind Kind) Type {
	return Type{Kind: kind}
}

// DecimalOf returns a DECIMAL(precision, scale) type.
func DecimalOf(precision, scale int32) Type {
	return Type{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// ListOf returns a LIST<elem> type.
func ListOf(elem Type) Type {
	e := elem
	return Type{Kind: KindList, Elem: &e}
}

// AsNullable returns a copy of t with the nullable modifier set.
func (t Type) AsNullable() Type {
	t.Nullable = true
	return t
}

// Equal compares two types structurally.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.Nullable != o.Nullable || t.Precision != o.Precision || t.Scale != o.Scale {
		return false
	}
	if t.Elem == nil || o.Elem == nil {
		return t.Elem == o.Elem
	}
	return t.Elem.Equal(*o.Elem)
}

func (t Type) String() string {
	var sb strings.Builder
	switch t.Kind {
	case KindDecimal:
		if t.Precision > 0 {
			fmt.Fprintf(&sb, "DECIMAL(%d,%d)", t.Precision, t.Scale)
		} else {
			sb.WriteString("DECIMAL")
		}
	case KindList:
		elem := "INVALID"
		if t.Elem != nil {
			elem = t.Elem.String()
		}
		sb.WriteString("LIST<" + elem + ">")
	default:
		sb.WriteString(t.Kind.String())
	}
	if t.Nullable {
		sb.WriteByte('?')
	}
	return sb.String()
}

// MarshalText renders the type in the same notation ParseType reads.
func (t Type) MarshalText() ([]byte, error) {
	if t.Kind == KindInvalid {
		return nil, fmt.Errorf("cannot marshal invalid type")
	}
	return []byte(t.String()), nil
}

// UnmarshalText parses the type notation used in plan files.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType parses a type name such as "INT64", "DECIMAL(10,2)", "LIST<STRING>".
// A trailing "?" marks the type nullable.
func ParseType(s string) (Type, error) {
	src := strings.TrimSpace(s)
	if src == "" {
		return Type{}, fmt.Errorf("empty type")
	}
	nullable := false
	if strings.HasSuffix(src, "?") {
		nullable = true
		src = strings.TrimSpace(strings.TrimSuffix(src, "?"))
	}
	upper := strings.ToUpper(src)

	var t Type
	switch {
	case strings.HasPrefix(upper, "LIST<"):
		if !strings.HasSuffix(upper, ">") {
			return Type{}, fmt.Errorf("invalid list type %q", s)
		}
		elem, err := ParseType(src[len("LIST<") : len(src)-1])
		if err != nil {
			return Type{}, fmt.Errorf("invalid list element in %q: %w", s, err)
		}
		t = ListOf(elem)
	case strings.HasPrefix(upper, "DECIMAL"):
		t = Type{Kind: KindDecimal}
		rest := strings.TrimSpace(upper[len("DECIMAL"):])
		if rest != "" {
			p, sc, err := parseDecimalArgs(rest)
			if err != nil {
				return Type{}, fmt.Errorf("invalid decimal type %q: %w", s, err)
			}
			t.Precision, t.Scale = p, sc
		}
	default:
		kind, ok := kindAliases[upper]
		if !ok {
			return Type{}, fmt.Errorf("unknown type %q", s)
		}
		t = Type{Kind: kind}
	}
	t.Nullable = nullable
	return t, nil
}

// MustParseType is ParseType for literals known to be valid.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

func parseDecimalArgs(rest string) (int32, int32, error) {
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return 0, 0, fmt.Errorf("expected (precision,scale)")
	}
	parts := strings.Split(rest[1:len(rest)-1], ",")
	if len(parts) < 1 || len(parts) > 2 {
		return 0, 0, fmt.Errorf("expected (precision,scale)")
	}
	p, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		return 0, 0, err
	}
	var sc int64
	if len(parts) == 2 {
		sc, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 32)
		if err != nil {
			return 0, 0, err
		}
	}
	if p <= 0 || sc < 0 || sc > p {
		return 0, 0, fmt.Errorf("precision %d scale %d out of range", p, sc)
	}
	return int32(p), int32(sc), nil
}

// TypedField is a named, typed column of a record.
type TypedField struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`
}

// Field is a shorthand constructor used by plans built in code.
func Field(name string, typ string) TypedField {
	return TypedField{Name: name, Type: MustParseType(typ)}
}

// Schema is the ordered field list of a record.
type Schema []TypedField

// IndexOf returns the position of the named field or -1.
func (s Schema) IndexOf(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Names returns field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Concat returns the fields of s followed by the fields of o.
func (s Schema) Concat(o Schema) Schema {
	out := make(Schema, 0, len(s)+len(o))
	out = append(out, s...)
	return append(out, o...)
}

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.Name + " " + f.Type.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
