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

package expression

import (
	"errors"
	"testing"

	"github.com/rulego/streamflow/functions"
	"github.com/rulego/streamflow/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schema = types.Schema{
	types.Field("a", "INT64"),
	types.Field("b", "INT64?"),
	types.Field("name", "STRING"),
	types.Field("price", "DECIMAL(10,2)"),
}

func record(a int64, b interface{}, name string) *types.Record {
	return types.NewRecord(schema, 1000, a, b, name, decimal.RequireFromString("2.50"))
}

func TestCompile_Values(t *testing.T) {
	c := NewCompiler(functions.NewBuiltinRegistry())
	rec := record(3, int64(4), "sensor-1")

	tests := []struct {
		src  string
		want interface{}
	}{
		{"a + b", 7},
		{"a * 2 + 1", 7},
		{"upper(name)", "SENSOR-1"},
		{"concat(name, '-x')", "sensor-1-x"},
		{"price * 2", 5.0},
		{"_ts", int64(1000)},
		{"coalesce(b, 0)", int64(4)},
		{"abs(-a)", 3},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			ev, err := c.Compile(tt.src)
			require.NoError(t, err)
			got, err := ev.Eval(rec)
			require.NoError(t, err)
			assert.EqualValues(t, tt.want, got)
		})
	}
}

func TestCompile_FieldRefKeepsType(t *testing.T) {
	c := NewCompiler(nil)
	ev, err := c.Compile(" price ")
	require.NoError(t, err)
	_, isRef := ev.(FieldRef)
	assert.True(t, isRef)

	got, err := ev.Eval(record(1, nil, "x"))
	require.NoError(t, err)
	assert.Equal(t, "2.5", got.(decimal.Decimal).String())

	_, err = FieldRef("missing").Eval(record(1, nil, "x"))
	assert.Error(t, err)
}

func TestCompile_NullPropagation(t *testing.T) {
	c := NewCompiler(nil)
	rec := record(3, nil, "x")

	ev, err := c.Compile("a + b")
	require.NoError(t, err)
	got, err := ev.Eval(rec)
	require.NoError(t, err)
	assert.Nil(t, got)

	ev, err = c.Compile("upper(b)")
	require.NoError(t, err)
	got, err = ev.Eval(rec)
	require.NoError(t, err)
	assert.Nil(t, got)

	ev, err = c.Compile("coalesce(b, a)")
	require.NoError(t, err)
	got, err = ev.Eval(rec)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got)
}

func TestCompile_EvalError(t *testing.T) {
	c := NewCompiler(nil)
	ev, err := c.Compile("name + a")
	require.NoError(t, err)

	_, err = ev.Eval(record(1, int64(1), "x"))
	var evalErr *EvalError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "name + a", evalErr.Expr)
}

func TestCompile_NullDoesNotHideOtherErrors(t *testing.T) {
	c := NewCompiler(nil)
	ev, err := c.Compile("b + a % 0")
	require.NoError(t, err)

	_, err = ev.Eval(record(3, nil, "x"))
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, err.Error(), "divide by zero")

	ev, err = c.Compile("b + a % 2")
	require.NoError(t, err)
	got, err := ev.Eval(record(3, nil, "x"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCompile_SyntaxError(t *testing.T) {
	c := NewCompiler(nil)
	_, err := c.Compile("a +")
	assert.Error(t, err)
	_, err = c.Compile("   ")
	assert.Error(t, err)
}

func TestPredicate(t *testing.T) {
	c := NewCompiler(nil)
	tests := []struct {
		src  string
		rec  *types.Record
		want bool
	}{
		{"a > 2", record(3, nil, "x"), true},
		{"a > 5", record(3, nil, "x"), false},
		{"b > 1", record(3, nil, "x"), false},
		{"b > 1 || a > 1", record(3, int64(0), "x"), true},
		{"like(name, 'sen%')", record(1, nil, "sensor"), true},
		{"name startsWith 'x' and a == 1", record(1, nil, "xy"), true},
		{"is_null(b)", record(1, nil, "x"), true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			p, err := c.CompilePredicate(tt.src)
			require.NoError(t, err)
			got, err := p.Test(tt.rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredicate_NotBoolean(t *testing.T) {
	p, err := NewCompiler(nil).CompilePredicate("a + 1")
	require.NoError(t, err)
	_, err = p.Test(record(1, nil, "x"))
	assert.ErrorIs(t, err, ErrNotBoolean)
}

func TestProgram_Fields(t *testing.T) {
	ev, err := NewCompiler(nil).Compile("a + b * a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ev.(*Program).Fields())
}

func TestCustomFunction(t *testing.T) {
	reg := functions.NewBuiltinRegistry()
	require.NoError(t, reg.RegisterScalar(functions.NewScalarFunc("celsius", functions.TypeCustom, "F to C", 1, 1,
		func(args []interface{}) (interface{}, error) {
			return (args[0].(float64) - 32) * 5 / 9, nil
		})))

	ev, err := NewCompiler(reg).Compile("celsius(212.0)")
	require.NoError(t, err)
	got, err := ev.Eval(record(0, nil, ""))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, got, 1e-9)
}
