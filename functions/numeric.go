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
	"bytes"
	"fmt"

	"github.com/rulego/streamflow/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// arithmeticKind picks the kind arithmetic is carried out in: the declared
// type when the plan provides one, otherwise the kind of the value itself.
func arithmeticKind(fieldType types.Type, v interface{}) (types.Kind, error) {
	if fieldType.Kind != types.KindInvalid {
		if !fieldType.Kind.IsNumeric() {
			return types.KindInvalid, fmt.Errorf("numeric argument required, got %s", fieldType)
		}
		return fieldType.Kind, nil
	}
	switch v.(type) {
	case int32:
		return types.KindInt32, nil
	case int, int8, int16, int64, uint8, uint16, uint32:
		return types.KindInt64, nil
	case float32:
		return types.KindFloat32, nil
	case float64:
		return types.KindFloat64, nil
	case decimal.Decimal:
		return types.KindDecimal, nil
	}
	return types.KindInvalid, fmt.Errorf("numeric argument required, got %T", v)
}

func toKind(v interface{}, kind types.Kind) (interface{}, error) {
	return types.Coerce(v, types.Of(kind))
}

// zeroOf returns the additive identity of kind.
func zeroOf(kind types.Kind) interface{} {
	switch kind {
	case types.KindInt32:
		return int32(0)
	case types.KindInt64:
		return int64(0)
	case types.KindFloat32:
		return float32(0)
	case types.KindFloat64:
		return float64(0)
	default:
		return decimal.Zero
	}
}

// addTyped adds two values already coerced to kind. Integer kinds wrap.
func addTyped(kind types.Kind, a, b interface{}) interface{} {
	switch kind {
	case types.KindInt32:
		return a.(int32) + b.(int32)
	case types.KindInt64:
		return a.(int64) + b.(int64)
	case types.KindFloat32:
		return a.(float32) + b.(float32)
	case types.KindFloat64:
		return a.(float64) + b.(float64)
	default:
		return a.(decimal.Decimal).Add(b.(decimal.Decimal))
	}
}

// divideByCount divides a sum by a row count in the sum's own kind:
// integer kinds truncate, float kinds divide in floating point and
// decimals divide exactly to decimal.DivisionPrecision digits.
func divideByCount(kind types.Kind, sum interface{}, n int64) interface{} {
	switch kind {
	case types.KindInt32:
		return int32(int64(sum.(int32)) / n)
	case types.KindInt64:
		return sum.(int64) / n
	case types.KindFloat32:
		return sum.(float32) / float32(n)
	case types.KindFloat64:
		return sum.(float64) / float64(n)
	default:
		return sum.(decimal.Decimal).Div(decimal.NewFromInt(n))
	}
}

// compareValues orders two non-null values of compatible types.
func compareValues(a, b interface{}) (int, error) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		return compareOrdered(av, bv), nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		switch {
		case av == bv:
			return 0, nil
		case !av:
			return -1, nil
		default:
			return 1, nil
		}
	case []byte:
		bv, ok := b.([]byte)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		return bytes.Compare(av, bv), nil
	case types.Window:
		bv, ok := b.(types.Window)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		if c := compareOrdered(av.Start, bv.Start); c != 0 {
			return c, nil
		}
		return compareOrdered(av.End, bv.End), nil
	}

	_, aDec := a.(decimal.Decimal)
	_, bDec := b.(decimal.Decimal)
	if aDec || bDec {
		ad, err := types.ToDecimal(a)
		if err != nil {
			return 0, err
		}
		bd, err := types.ToDecimal(b)
		if err != nil {
			return 0, err
		}
		return ad.Cmp(bd), nil
	}
	if isInteger(a) && isInteger(b) {
		return compareOrdered(cast.ToInt64(a), cast.ToInt64(b)), nil
	}
	af, err := cast.ToFloat64E(a)
	if err != nil {
		return 0, fmt.Errorf("cannot compare %T with %T", a, b)
	}
	bf, err := cast.ToFloat64E(b)
	if err != nil {
		return 0, fmt.Errorf("cannot compare %T with %T", a, b)
	}
	return compareOrdered(af, bf), nil
}

func isInteger(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return true
	}
	return false
}

type ordered interface {
	~int64 | ~float64 | ~string
}

func compareOrdered[T ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
