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

	"github.com/rulego/streamflow/types"
	"github.com/spf13/cast"
)

// Bucket holds the opaque state one accumulator keeps for one
// (group key, time slice). State is nil until the first AddToBucket.
type Bucket struct {
	State interface{}
}

// Accumulator is an aggregate function evaluated over bucketed state.
//
// AddToBucket folds one input value into a bucket. FinishWindow combines
// the buckets of a window into the aggregate result. fieldType is the
// declared type of the aggregate's argument; arithmetic happens in that type.
// Null inputs are handled by each accumulator; none of them count a null.
type Accumulator interface {
	Name() string
	AddToBucket(value interface{}, bucket *Bucket, fieldType types.Type) error
	FinishWindow(buckets []*Bucket, fieldType types.Type) (interface{}, error)
}

func builtinAccumulators() []Accumulator {
	return []Accumulator{
		&countAccumulator{NewBaseFunction("count", TypeAggregation, "Count non-null values", 0, 1)},
		&sumAccumulator{NewBaseFunction("sum", TypeAggregation, "Sum of non-null values", 1, 1)},
		&avgAccumulator{NewBaseFunction("avg", TypeAggregation, "Average of non-null values", 1, 1)},
		&extremeAccumulator{BaseFunction: NewBaseFunction("min", TypeAggregation, "Smallest non-null value", 1, 1), sign: -1},
		&extremeAccumulator{BaseFunction: NewBaseFunction("max", TypeAggregation, "Largest non-null value", 1, 1), sign: 1},
		&varianceAccumulator{BaseFunction: NewBaseFunction("var", TypeAggregation, "Population variance", 1, 1)},
		&varianceAccumulator{BaseFunction: NewBaseFunction("stddev", TypeAggregation, "Population standard deviation", 1, 1), sqrt: true},
		&collectAccumulator{NewBaseFunction("collect", TypeAggregation, "List of non-null values in event order", 1, 1)},
	}
}

type countAccumulator struct {
	*BaseFunction
}

func (a *countAccumulator) AddToBucket(value interface{}, bucket *Bucket, _ types.Type) error {
	if value == nil {
		return nil
	}
	n, _ := bucket.State.(int64)
	bucket.State = n + 1
	return nil
}

// FinishWindow never returns null; an empty window counts 0.
func (a *countAccumulator) FinishWindow(buckets []*Bucket, _ types.Type) (interface{}, error) {
	var total int64
	for _, b := range buckets {
		n, _ := b.State.(int64)
		total += n
	}
	return total, nil
}

type sumState struct {
	kind  types.Kind
	total interface{}
}

type sumAccumulator struct {
	*BaseFunction
}

func (a *sumAccumulator) AddToBucket(value interface{}, bucket *Bucket, fieldType types.Type) error {
	if value == nil {
		return nil
	}
	state, err := addToSum(bucket, value, fieldType)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Name(), err)
	}
	bucket.State = state
	return nil
}

func (a *sumAccumulator) FinishWindow(buckets []*Bucket, _ types.Type) (interface{}, error) {
	var total *sumState
	for _, b := range buckets {
		s, ok := b.State.(*sumState)
		if !ok {
			continue
		}
		if total == nil {
			total = &sumState{kind: s.kind, total: s.total}
			continue
		}
		total.total = addTyped(total.kind, total.total, s.total)
	}
	if total == nil {
		return nil, nil
	}
	return total.total, nil
}

func addToSum(bucket *Bucket, value interface{}, fieldType types.Type) (*sumState, error) {
	state, _ := bucket.State.(*sumState)
	if state == nil {
		kind, err := arithmeticKind(fieldType, value)
		if err != nil {
			return nil, err
		}
		state = &sumState{kind: kind, total: zeroOf(kind)}
	}
	v, err := toKind(value, state.kind)
	if err != nil {
		return nil, err
	}
	state.total = addTyped(state.kind, state.total, v)
	return state, nil
}

type avgState struct {
	sum   sumState
	count int64
}

type avgAccumulator struct {
	*BaseFunction
}

func (a *avgAccumulator) AddToBucket(value interface{}, bucket *Bucket, fieldType types.Type) error {
	if value == nil {
		return nil
	}
	state, _ := bucket.State.(*avgState)
	if state == nil {
		kind, err := arithmeticKind(fieldType, value)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Name(), err)
		}
		state = &avgState{sum: sumState{kind: kind, total: zeroOf(kind)}}
	}
	v, err := toKind(value, state.sum.kind)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Name(), err)
	}
	state.sum.total = addTyped(state.sum.kind, state.sum.total, v)
	state.count++
	bucket.State = state
	return nil
}

func (a *avgAccumulator) FinishWindow(buckets []*Bucket, _ types.Type) (interface{}, error) {
	var (
		kind  types.Kind
		total interface{}
		count int64
	)
	for _, b := range buckets {
		s, ok := b.State.(*avgState)
		if !ok || s.count == 0 {
			continue
		}
		if total == nil {
			kind, total = s.sum.kind, s.sum.total
		} else {
			total = addTyped(kind, total, s.sum.total)
		}
		count += s.count
	}
	if count == 0 {
		return nil, nil
	}
	return divideByCount(kind, total, count), nil
}

// extremeAccumulator implements MIN (sign -1) and MAX (sign 1).
type extremeAccumulator struct {
	*BaseFunction
	sign int
}

func (a *extremeAccumulator) AddToBucket(value interface{}, bucket *Bucket, fieldType types.Type) error {
	if value == nil {
		return nil
	}
	if fieldType.Kind != types.KindInvalid {
		v, err := types.Coerce(value, fieldType)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Name(), err)
		}
		value = v
	}
	if bucket.State == nil {
		bucket.State = value
		return nil
	}
	better, err := a.better(value, bucket.State)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Name(), err)
	}
	if better {
		bucket.State = value
	}
	return nil
}

func (a *extremeAccumulator) FinishWindow(buckets []*Bucket, _ types.Type) (interface{}, error) {
	var best interface{}
	for _, b := range buckets {
		if b.State == nil {
			continue
		}
		if best == nil {
			best = b.State
			continue
		}
		better, err := a.better(b.State, best)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name(), err)
		}
		if better {
			best = b.State
		}
	}
	return best, nil
}

func (a *extremeAccumulator) better(candidate, current interface{}) (bool, error) {
	c, err := compareValues(candidate, current)
	if err != nil {
		return false, err
	}
	return c*a.sign > 0, nil
}

// welford is the running count, mean and sum of squared deviations.
type welford struct {
	count int64
	mean  float64
	m2    float64
}

func (w *welford) add(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	w.m2 += delta * (x - w.mean)
}

// merge combines two partial states (Chan et al. parallel update).
func (w *welford) merge(o welford) {
	if o.count == 0 {
		return
	}
	if w.count == 0 {
		*w = o
		return
	}
	n := w.count + o.count
	delta := o.mean - w.mean
	w.m2 += o.m2 + delta*delta*float64(w.count)*float64(o.count)/float64(n)
	w.mean += delta * float64(o.count) / float64(n)
	w.count = n
}

type varianceAccumulator struct {
	*BaseFunction
	sqrt bool
}

func (a *varianceAccumulator) AddToBucket(value interface{}, bucket *Bucket, _ types.Type) error {
	if value == nil {
		return nil
	}
	x, err := cast.ToFloat64E(value)
	if err != nil {
		if d, derr := types.ToDecimal(value); derr == nil {
			x, err = d.InexactFloat64(), nil
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", a.Name(), err)
	}
	state, _ := bucket.State.(*welford)
	if state == nil {
		state = &welford{}
		bucket.State = state
	}
	state.add(x)
	return nil
}

func (a *varianceAccumulator) FinishWindow(buckets []*Bucket, _ types.Type) (interface{}, error) {
	var total welford
	for _, b := range buckets {
		if s, ok := b.State.(*welford); ok {
			total.merge(*s)
		}
	}
	if total.count == 0 {
		return nil, nil
	}
	variance := total.m2 / float64(total.count)
	if a.sqrt {
		return math.Sqrt(variance), nil
	}
	return variance, nil
}

type collectAccumulator struct {
	*BaseFunction
}

func (a *collectAccumulator) AddToBucket(value interface{}, bucket *Bucket, fieldType types.Type) error {
	if value == nil {
		return nil
	}
	if fieldType.Kind != types.KindInvalid {
		v, err := types.Coerce(value, fieldType)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Name(), err)
		}
		value = v
	}
	items, _ := bucket.State.([]interface{})
	bucket.State = append(items, value)
	return nil
}

// FinishWindow concatenates buckets in the order given, which the
// aggregate stage supplies in ascending time order.
func (a *collectAccumulator) FinishWindow(buckets []*Bucket, _ types.Type) (interface{}, error) {
	var out []interface{}
	for _, b := range buckets {
		if items, ok := b.State.([]interface{}); ok {
			out = append(out, items...)
		}
	}
	if out == nil {
		return nil, nil
	}
	return out, nil
}
