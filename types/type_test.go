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
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		display string
	}{
		{"INT64", Of(KindInt64), "INT64"},
		{"bigint", Of(KindInt64), "INT64"},
		{"int?", Of(KindInt32).AsNullable(), "INT32?"},
		{"DECIMAL(10,2)", DecimalOf(10, 2), "DECIMAL(10,2)"},
		{"decimal", Type{Kind: KindDecimal}, "DECIMAL"},
		{"LIST<STRING?>", ListOf(Of(KindString).AsNullable()), "LIST<STRING?>"},
		{"LIST<LIST<INT32>>?", ListOf(ListOf(Of(KindInt32))).AsNullable(), "LIST<LIST<INT32>>?"},
		{"WINDOW", Of(KindWindow), "WINDOW"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, tt.display, got.String())
		})
	}
}

func TestParseType_Errors(t *testing.T) {
	for _, in := range []string{"", "NUMBER", "LIST<INT", "DECIMAL(2,5)", "DECIMAL(x)", "LIST<>"} {
		_, err := ParseType(in)
		assert.Error(t, err, in)
	}
}

func TestTypedField_Unmarshal(t *testing.T) {
	var fromYAML []TypedField
	require.NoError(t, yaml.Unmarshal([]byte("- {name: a, type: INT64}\n- {name: p, type: 'DECIMAL(8,3)?'}\n"), &fromYAML))
	require.Len(t, fromYAML, 2)
	assert.Equal(t, KindInt64, fromYAML[0].Type.Kind)
	assert.True(t, fromYAML[1].Type.Nullable)
	assert.Equal(t, int32(3), fromYAML[1].Type.Scale)

	var fromJSON TypedField
	require.NoError(t, json.Unmarshal([]byte(`{"name":"tags","type":"LIST<STRING>"}`), &fromJSON))
	assert.Equal(t, KindList, fromJSON.Type.Kind)
	assert.Equal(t, KindString, fromJSON.Type.Elem.Kind)
}

func TestSchema(t *testing.T) {
	left := Schema{Field("a", "INT64"), Field("b", "STRING")}
	right := Schema{Field("c", "FLOAT64?")}

	joined := left.Concat(right)
	assert.Equal(t, []string{"a", "b", "c"}, joined.Names())
	assert.Equal(t, 2, joined.IndexOf("c"))
	assert.Equal(t, -1, joined.IndexOf("missing"))
	assert.Len(t, left, 2, "concat must not alias the receiver")
	assert.Equal(t, "(a INT64, b STRING, c FLOAT64?)", joined.String())
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		typ  string
		want interface{}
	}{
		{"int32 wraps", int64(1)<<32 + 7, "INT32", int32(7)},
		{"float to int64 truncates", 3.9, "INT64", int64(3)},
		{"string to float", "2.5", "FLOAT64", 2.5},
		{"json number to int", json.Number("42"), "INT64", int64(42)},
		{"bool from string", "true", "BOOLEAN", true},
		{"bytes to string", []byte("hi"), "STRING", "hi"},
		{"string to binary", "hi", "BINARY", []byte("hi")},
		{"decimal to int", decimal.RequireFromString("12.7"), "INT64", int64(12)},
		{"timestamp from rfc3339", "1970-01-01T00:00:01Z", "TIMESTAMP", int64(1000)},
		{"timestamp from millis string", "1500", "TIMESTAMP", int64(1500)},
		{"list of ints", []interface{}{1, "2"}, "LIST<INT64>", []interface{}{int64(1), int64(2)}},
		{"window from map", map[string]interface{}{"start": 1, "end": 2}, "WINDOW", Window{Start: 1, End: 2}},
		{"null into nullable", nil, "STRING?", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.in, MustParseType(tt.typ))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerce_Decimal(t *testing.T) {
	got, err := Coerce("1.005", MustParseType("DECIMAL(10,2)"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.01").Equal(got.(decimal.Decimal)), "got %v", got)

	got, err = Coerce(0.1, MustParseType("DECIMAL"))
	require.NoError(t, err)
	assert.Equal(t, "0.1", got.(decimal.Decimal).String())
}

func TestCoerce_Errors(t *testing.T) {
	_, err := Coerce(nil, MustParseType("INT64"))
	assert.ErrorIs(t, err, ErrNullValue)

	_, err = Coerce("abc", MustParseType("INT64"))
	assert.Error(t, err)

	_, err = Coerce(42, MustParseType("BINARY"))
	assert.Error(t, err)
}
