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
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// ErrNullValue is returned when a null is assigned to a non-nullable field.
var ErrNullValue = errors.New("null value for non-nullable field")

// Coerce converts v into the Go representation of t:
//
//	BOOLEAN bool, INT32 int32, INT64 int64, FLOAT32 float32, FLOAT64 float64,
//	DECIMAL decimal.Decimal, STRING string, BINARY []byte,
//	TIMESTAMP int64 epoch millis, LIST []interface{}, WINDOW Window.
//
// Integer narrowing wraps the way fixed-width arithmetic does.
func Coerce(v interface{}, t Type) (interface{}, error) {
	if v == nil {
		if t.Nullable {
			return nil, nil
		}
		return nil, ErrNullValue
	}
	if d, ok := v.(decimal.Decimal); ok && t.Kind != KindDecimal {
		v = decimalToNative(d, t.Kind)
	}
	if n, ok := v.(json.Number); ok && t.Kind != KindDecimal && t.Kind != KindString {
		v = numberToNative(n)
	}

	var (
		out interface{}
		err error
	)
	switch t.Kind {
	case KindBoolean:
		out, err = cast.ToBoolE(v)
	case KindInt32:
		out, err = cast.ToInt32E(v)
	case KindInt64:
		out, err = cast.ToInt64E(v)
	case KindFloat32:
		out, err = cast.ToFloat32E(v)
	case KindFloat64:
		out, err = cast.ToFloat64E(v)
	case KindDecimal:
		out, err = ToDecimal(v)
		if err == nil && t.Precision > 0 {
			out = out.(decimal.Decimal).Round(t.Scale)
		}
	case KindString:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		out, err = cast.ToStringE(v)
	case KindBinary:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
		err = fmt.Errorf("unable to cast %#v of type %T to []byte", v, v)
	case KindTimestamp:
		out, err = toTimestamp(v)
	case KindList:
		out, err = toList(v, t)
	case KindWindow:
		out, err = toWindow(v)
	default:
		err = fmt.Errorf("cannot coerce to type %s", t)
	}
	if err != nil {
		return nil, fmt.Errorf("coerce %v to %s: %w", v, t, err)
	}
	return out, nil
}

// ToDecimal converts numeric and string values into an exact decimal.
func ToDecimal(v interface{}) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, ErrNullValue
		}
		return *n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(n)
	case json.Number:
		return decimal.NewFromString(n.String())
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(i), nil
}

func decimalToNative(d decimal.Decimal, kind Kind) interface{} {
	switch kind {
	case KindInt32, KindInt64, KindTimestamp:
		return d.IntPart()
	case KindString:
		return d.String()
	default:
		return d.InexactFloat64()
	}
}

func numberToNative(n json.Number) interface{} {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func toTimestamp(v interface{}) (int64, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts.UnixMilli(), nil
	case string:
		if ms, err := cast.ToInt64E(ts); err == nil {
			return ms, nil
		}
		parsed, err := cast.ToTimeE(ts)
		if err != nil {
			return 0, err
		}
		return parsed.UnixMilli(), nil
	}
	return cast.ToInt64E(v)
}

func toList(v interface{}, t Type) ([]interface{}, error) {
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, err
	}
	if t.Elem == nil {
		return items, nil
	}
	out := make([]interface{}, len(items))
	for i, item := range items {
		if out[i], err = Coerce(item, *t.Elem); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

func toWindow(v interface{}) (Window, error) {
	switch w := v.(type) {
	case Window:
		return w, nil
	case *Window:
		return *w, nil
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return Window{}, err
	}
	start, err := cast.ToInt64E(m["start"])
	if err != nil {
		return Window{}, err
	}
	end, err := cast.ToInt64E(m["end"])
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}
