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

package stage

import (
	"context"
	"fmt"

	"github.com/rulego/streamflow/expression"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/types"
)

// Filter forwards the records its predicate accepts. A null predicate
// result rejects the record.
type Filter struct {
	base
	pred *expression.Predicate
}

// NewFilter compiles the node's predicate.
func NewFilter(node *plan.Node, env Env) (*Filter, error) {
	env = env.withDefaults()
	pred, err := env.Compiler.CompilePredicate(node.Predicate)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", node.ID, err)
	}
	return &Filter{base: newBase(node, env), pred: pred}, nil
}

func (f *Filter) Process(ctx context.Context, _ int, rec *types.Record, emit Emitter) error {
	f.received()
	ok, err := f.pred.Test(rec)
	if err != nil {
		return f.fail(err)
	}
	if !ok {
		f.dropped()
		return nil
	}
	return f.emit(ctx, emit, rec)
}
