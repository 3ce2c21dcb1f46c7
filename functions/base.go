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

import "fmt"

// FunctionType function category
type FunctionType string

const (
	// TypeAggregation aggregate functions folded over window buckets
	TypeAggregation FunctionType = "aggregation"
	// TypeMath math functions
	TypeMath FunctionType = "math"
	// TypeString string functions
	TypeString FunctionType = "string"
	// TypeConditional null handling and predicates
	TypeConditional FunctionType = "conditional"
	// TypeCustom user-defined functions
	TypeCustom FunctionType = "custom"
)

// BaseFunction carries the metadata shared by every function variant.
type BaseFunction struct {
	name        string
	fnType      FunctionType
	description string
	minArgs     int
	maxArgs     int // -1 means unlimited
}

// NewBaseFunction creates function metadata
func NewBaseFunction(name string, fnType FunctionType, description string, minArgs, maxArgs int) *BaseFunction {
	return &BaseFunction{
		name:        name,
		fnType:      fnType,
		description: description,
		minArgs:     minArgs,
		maxArgs:     maxArgs,
	}
}

func (bf *BaseFunction) Name() string {
	return bf.name
}

func (bf *BaseFunction) Type() FunctionType {
	return bf.fnType
}

func (bf *BaseFunction) Description() string {
	return bf.description
}

// ValidateArgCount checks the argument count against the declared arity
func (bf *BaseFunction) ValidateArgCount(argCount int) error {
	if argCount < bf.minArgs {
		return fmt.Errorf("function %s requires at least %d arguments, got %d", bf.name, bf.minArgs, argCount)
	}
	if bf.maxArgs != -1 && argCount > bf.maxArgs {
		return fmt.Errorf("function %s accepts at most %d arguments, got %d", bf.name, bf.maxArgs, argCount)
	}
	return nil
}
