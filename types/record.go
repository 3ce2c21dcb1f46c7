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
	"strings"

	"github.com/shopspring/decimal"
)

// TimestampField is the name under which a record's event time is exposed
// to expressions.
const TimestampField = "_ts"

// Record is an ordered list of typed values. A record is immutable once a
// stage has emitted it; stages build new records instead of editing inputs.
type Record struct {
	Schema Schema
	Values []interface{}
	// Timestamp is the event time in epoch millis.
	Timestamp int64
}

// NewRecord builds a record without coercion. Callers that hold untyped
// values should use BuildRecord.
func NewRecord(schema Schema, ts int64, values ...interface{}) *Record {
	return &Record{Schema: schema, Values: values, Timestamp: ts}
}

// BuildRecord coerces every value to its declared field type.
func BuildRecord(schema Schema, ts int64, values []interface{}) (*Record, error) {
	if len(values) != len(schema) {
		return nil, fmt.Errorf("record has %d values for %d fields", len(values), len(schema))
	}
	out := make([]interface{}, len(values))
	for i, f := range schema {
		v, err := Coerce(values[i], f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out[i] = v
	}
	return &Record{Schema: schema, Values: out, Timestamp: ts}, nil
}

// Get returns the value of the named field.
func (r *Record) Get(name string) (interface{}, bool) {
	idx := r.Schema.IndexOf(name)
	if idx < 0 {
		return nil, false
	}
	return r.Values[idx], true
}

// Value returns the value at position i.
func (r *Record) Value(i int) interface{} {
	return r.Values[i]
}

// Map returns the record as a name to value map.
func (r *Record) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.Values))
	for i, f := range r.Schema {
		m[f.Name] = r.Values[i]
	}
	return m
}

// Env is the variable environment expressions are evaluated against.
// Decimals are exposed as float64 because expression operators do not
// understand decimal.Decimal; results are coerced back to the declared type.
func (r *Record) Env() map[string]interface{} {
	m := make(map[string]interface{}, len(r.Values)+1)
	for i, f := range r.Schema {
		v := r.Values[i]
		if d, ok := v.(decimal.Decimal); ok {
			v = d.InexactFloat64()
		}
		m[f.Name] = v
	}
	m[TimestampField] = r.Timestamp
	return m
}

// Concat returns a record holding the values of r followed by those of o.
// The result carries the later of the two timestamps.
func (r *Record) Concat(o *Record, schema Schema) *Record {
	values := make([]interface{}, 0, len(r.Values)+len(o.Values))
	values = append(values, r.Values...)
	values = append(values, o.Values...)
	if schema == nil {
		schema = r.Schema.Concat(o.Schema)
	}
	ts := r.Timestamp
	if o.Timestamp > ts {
		ts = o.Timestamp
	}
	return &Record{Schema: schema, Values: values, Timestamp: ts}
}

func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, f := range r.Schema {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", f.Name, formatValue(r.Values[i]))
	}
	fmt.Fprintf(&sb, "}@%d", r.Timestamp)
	return sb.String()
}

func formatValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("0x%x", val)
	case decimal.Decimal:
		return val.String()
	}
	return v
}

// RawEvent is the byte-bearing event exchanged with sources and sinks.
type RawEvent struct {
	TimestampMillis int64
	Body            []byte
	Attributes      map[string][]byte
}

// NewRawEvent creates an event with no attributes.
func NewRawEvent(ts int64, body []byte) RawEvent {
	return RawEvent{TimestampMillis: ts, Body: body}
}

// Attribute returns the named attribute as a string.
func (e RawEvent) Attribute(key string) (string, bool) {
	v, ok := e.Attributes[key]
	return string(v), ok
}

// WithAttribute returns a copy of e with the attribute set.
func (e RawEvent) WithAttribute(key string, value []byte) RawEvent {
	attrs := make(map[string][]byte, len(e.Attributes)+1)
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	attrs[key] = value
	e.Attributes = attrs
	return e
}
