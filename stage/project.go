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

// column produces one output field: from an evaluator, or copied from the
// input field at index from.
type column struct {
	eval expression.Evaluator
	from int
}

// Project computes exactly one output record per input record. Each output
// field is either a named expression or the input field of the same name.
// It serves both project and evaluate nodes.
type Project struct {
	base
	schema  types.Schema
	columns []column
}

// NewProject binds the node's output fields against the input schema.
func NewProject(node *plan.Node, input types.Schema, env Env) (*Project, error) {
	env = env.withDefaults()
	exprs := make(map[string]string, len(node.Expressions))
	for _, e := range node.Expressions {
		if node.OutputFields.IndexOf(e.Name) < 0 {
			return nil, fmt.Errorf("%s %s: expression %s is not an output field", node.Kind, node.ID, e.Name)
		}
		exprs[e.Name] = e.Expr
	}
	columns := make([]column, len(node.OutputFields))
	for i, f := range node.OutputFields {
		if src, ok := exprs[f.Name]; ok {
			ev, err := env.Compiler.Compile(src)
			if err != nil {
				return nil, fmt.Errorf("%s %s: field %s: %w", node.Kind, node.ID, f.Name, err)
			}
			columns[i] = column{eval: ev, from: -1}
			continue
		}
		idx := input.IndexOf(f.Name)
		if idx < 0 {
			return nil, fmt.Errorf("%s %s: output field %s has no expression and no input field", node.Kind, node.ID, f.Name)
		}
		columns[i] = column{from: idx}
	}
	return &Project{base: newBase(node, env), schema: node.OutputFields, columns: columns}, nil
}

func (p *Project) Process(ctx context.Context, _ int, rec *types.Record, emit Emitter) error {
	p.received()
	values := make([]interface{}, len(p.columns))
	for i, c := range p.columns {
		if c.eval == nil {
			values[i] = rec.Values[c.from]
			continue
		}
		v, err := c.eval.Eval(rec)
		if err != nil {
			return p.fail(err)
		}
		values[i] = v
	}
	out, err := types.BuildRecord(p.schema, rec.Timestamp, values)
	if err != nil {
		return p.fail(err)
	}
	return p.emit(ctx, emit, out)
}
