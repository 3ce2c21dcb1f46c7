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

package plan

import (
	"fmt"

	"github.com/rulego/streamflow/types"
)

// OutputSchema resolves the schema of the records node id emits. Nodes that
// declare output fields use them; filters and sinks forward their input
// schema and a join without declared fields emits left fields followed by
// right fields.
func (p *Plan) OutputSchema(id string) (types.Schema, error) {
	return p.outputSchema(id, make(map[string]bool))
}

// InputSchema resolves the schema arriving on input port of node id.
func (p *Plan) InputSchema(id string, port int) (types.Schema, error) {
	n, ok := p.Node(id)
	if !ok {
		return nil, fmt.Errorf("unknown node %q", id)
	}
	if port < 0 || port >= len(n.Inputs) {
		return nil, invalid(id, "no input port %d", port)
	}
	return p.OutputSchema(n.Inputs[port])
}

func (p *Plan) outputSchema(id string, visiting map[string]bool) (types.Schema, error) {
	n, ok := p.Node(id)
	if !ok {
		return nil, fmt.Errorf("unknown node %q", id)
	}
	if visiting[id] {
		return nil, invalid(id, "cycle while resolving schema")
	}
	visiting[id] = true
	defer delete(visiting, id)

	if len(n.OutputFields) > 0 {
		return n.OutputFields, nil
	}
	switch n.Kind {
	case KindFilter, KindSink:
		if len(n.Inputs) != 1 {
			return nil, invalid(id, "%s takes 1 input", n.Kind)
		}
		return p.outputSchema(n.Inputs[0], visiting)
	case KindJoin:
		if len(n.Inputs) != 2 {
			return nil, invalid(id, "join takes 2 inputs")
		}
		left, err := p.outputSchema(n.Inputs[PortLeft], visiting)
		if err != nil {
			return nil, err
		}
		right, err := p.outputSchema(n.Inputs[PortRight], visiting)
		if err != nil {
			return nil, err
		}
		return left.Concat(right), nil
	}
	return nil, invalid(id, "%s declares no output fields", n.Kind)
}
