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

package functions

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/rulego/streamflow/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// ScalarFunction evaluates one row's arguments to a value.
type ScalarFunction interface {
	Name() string
	Type() FunctionType
	Description() string
	// Validate checks the argument count at compile time.
	Validate(argCount int) error
	Eval(args ...interface{}) (interface{}, error)
}

// ScalarFunc is the single variant every built-in scalar function uses:
// metadata plus an evaluation closure.
type ScalarFunc struct {
	*BaseFunction
	// strict functions return null as soon as any argument is null.
	strict bool
	eval   func(args []interface{}) (interface{}, error)
}

// NewScalarFunc creates a null-propagating scalar function, the usual
// SQL behaviour. Custom functions are registered through it.
func NewScalarFunc(name string, fnType FunctionType, description string, minArgs, maxArgs int,
	eval func(args []interface{}) (interface{}, error)) *ScalarFunc {
	return &ScalarFunc{
		BaseFunction: NewBaseFunction(name, fnType, description, minArgs, maxArgs),
		strict:       true,
		eval:         eval,
	}
}

// newNullAwareFunc creates a function that sees null arguments itself.
func newNullAwareFunc(name string, fnType FunctionType, description string, minArgs, maxArgs int,
	eval func(args []interface{}) (interface{}, error)) *ScalarFunc {
	fn := NewScalarFunc(name, fnType, description, minArgs, maxArgs, eval)
	fn.strict = false
	return fn
}

func (f *ScalarFunc) Validate(argCount int) error {
	return f.ValidateArgCount(argCount)
}

func (f *ScalarFunc) Eval(args ...interface{}) (interface{}, error) {
	if err := f.ValidateArgCount(len(args)); err != nil {
		return nil, err
	}
	if f.strict && types.HasNull(args...) {
		return nil, nil
	}
	return f.eval(args)
}

func builtinScalars() []ScalarFunction {
	return []ScalarFunction{
		NewScalarFunc("abs", TypeMath, "Absolute value", 1, 1, absFunc),
		NewScalarFunc("round", TypeMath, "Round half away from zero to n decimal places", 1, 2, roundFunc),
		NewScalarFunc("floor", TypeMath, "Largest integer not greater than x", 1, 1, floatFunc(math.Floor)),
		NewScalarFunc("ceil", TypeMath, "Smallest integer not less than x", 1, 1, floatFunc(math.Ceil)),
		NewScalarFunc("sqrt", TypeMath, "Square root", 1, 1, floatFunc(math.Sqrt)),
		NewScalarFunc("upper", TypeString, "Convert to uppercase", 1, 1, stringFunc(strings.ToUpper)),
		NewScalarFunc("lower", TypeString, "Convert to lowercase", 1, 1, stringFunc(strings.ToLower)),
		NewScalarFunc("trim", TypeString, "Strip surrounding whitespace", 1, 1, stringFunc(strings.TrimSpace)),
		NewScalarFunc("length", TypeString, "Number of characters", 1, 1, lengthFunc),
		NewScalarFunc("concat", TypeString, "Concatenate strings", 1, -1, concatFunc),
		NewScalarFunc("like", TypeString, "SQL LIKE with % and _ wildcards", 2, 2, likeFunc),
		newNullAwareFunc("coalesce", TypeConditional, "First non-null argument", 1, -1, coalesceFunc),
		newNullAwareFunc("is_null", TypeConditional, "Check if value is NULL", 1, 1, func(args []interface{}) (interface{}, error) {
			return args[0] == nil, nil
		}),
		newNullAwareFunc("is_not_null", TypeConditional, "Check if value is not NULL", 1, 1, func(args []interface{}) (interface{}, error) {
			return args[0] != nil, nil
		}),
	}
}

func absFunc(args []interface{}) (interface{}, error) {
	switch v := args[0].(type) {
	case int32:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	case int64:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	case int:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	case decimal.Decimal:
		return v.Abs(), nil
	}
	f, err := cast.ToFloat64E(args[0])
	if err != nil {
		return nil, fmt.Errorf("abs: %w", err)
	}
	return math.Abs(f), nil
}

func roundFunc(args []interface{}) (interface{}, error) {
	places := int32(0)
	if len(args) == 2 {
		p, err := cast.ToInt32E(args[1])
		if err != nil {
			return nil, fmt.Errorf("round: %w", err)
		}
		places = p
	}
	if d, ok := args[0].(decimal.Decimal); ok {
		return d.Round(places), nil
	}
	f, err := cast.ToFloat64E(args[0])
	if err != nil {
		return nil, fmt.Errorf("round: %w", err)
	}
	return decimal.NewFromFloat(f).Round(places).InexactFloat64(), nil
}

func floatFunc(fn func(float64) float64) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		f, err := cast.ToFloat64E(args[0])
		if err != nil {
			if d, ok := args[0].(decimal.Decimal); ok {
				f = d.InexactFloat64()
			} else {
				return nil, err
			}
		}
		return fn(f), nil
	}
}

func stringFunc(fn func(string) string) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		s, err := cast.ToStringE(args[0])
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}

func lengthFunc(args []interface{}) (interface{}, error) {
	switch v := args[0].(type) {
	case []byte:
		return int64(len(v)), nil
	case []interface{}:
		return int64(len(v)), nil
	}
	s, err := cast.ToStringE(args[0])
	if err != nil {
		return nil, err
	}
	return int64(utf8.RuneCountInString(s)), nil
}

func concatFunc(args []interface{}) (interface{}, error) {
	var sb strings.Builder
	for _, arg := range args {
		s, err := cast.ToStringE(arg)
		if err != nil {
			return nil, fmt.Errorf("concat: %w", err)
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func coalesceFunc(args []interface{}) (interface{}, error) {
	for _, arg := range args {
		if arg != nil {
			return arg, nil
		}
	}
	return nil, nil
}

func likeFunc(args []interface{}) (interface{}, error) {
	text, err := cast.ToStringE(args[0])
	if err != nil {
		return nil, fmt.Errorf("like: %w", err)
	}
	pattern, err := cast.ToStringE(args[1])
	if err != nil {
		return nil, fmt.Errorf("like: %w", err)
	}
	return MatchLike(text, pattern), nil
}

// MatchLike reports whether text matches a SQL LIKE pattern, where % matches
// any run of characters and _ matches exactly one.
func MatchLike(text, pattern string) bool {
	t, p := []rune(text), []rune(pattern)
	ti, pi := 0, 0
	starP, starT := -1, 0
	for ti < len(t) {
		switch {
		case pi < len(p) && (p[pi] == '_' || p[pi] == t[ti]):
			ti++
			pi++
		case pi < len(p) && p[pi] == '%':
			starP, starT = pi, ti
			pi++
		case starP >= 0:
			// backtrack: let the last % absorb one more character
			starT++
			ti, pi = starT, starP+1
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}
