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
)

// ValidationError reports a structurally invalid plan node.
type ValidationError struct {
	NodeID string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.NodeID == "" {
		return "invalid plan: " + e.Reason
	}
	return fmt.Sprintf("invalid plan node %q: %s", e.NodeID, e.Reason)
}

func invalid(id, format string, args ...interface{}) error {
	return &ValidationError{NodeID: id, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the plan is a well-formed DAG whose nodes carry what their
// kind needs. It does not type-check expressions.
func (p *Plan) Validate() error {
	if len(p.Nodes) == 0 {
		return invalid("", "no nodes")
	}
	seen := make(map[string]bool, len(p.Nodes))
	sources := 0
	for _, n := range p.Nodes {
		if n == nil {
			return invalid("", "nil node")
		}
		if n.ID == "" {
			return invalid("", "node without id")
		}
		if seen[n.ID] {
			return invalid(n.ID, "duplicate id")
		}
		seen[n.ID] = true
		if n.Kind == KindSource {
			sources++
		}
	}
	if sources == 0 {
		return invalid("", "no source node")
	}
	for _, n := range p.Nodes {
		want, known := arity[n.Kind]
		if !known {
			return invalid(n.ID, "unknown kind %q", n.Kind)
		}
		if len(n.Inputs) != want {
			return invalid(n.ID, "%s takes %d inputs, got %d", n.Kind, want, len(n.Inputs))
		}
		for _, in := range n.Inputs {
			if !seen[in] {
				return invalid(n.ID, "unknown input %q", in)
			}
			if in == n.ID {
				return invalid(n.ID, "node consumes itself")
			}
		}
		if n.Window != nil {
			if err := n.Window.Validate(); err != nil {
				return invalid(n.ID, "%v", err)
			}
		}
		if err := validateKind(p, n); err != nil {
			return err
		}
	}
	_, err := p.TopoOrder()
	return err
}

func validateKind(p *Plan, n *Node) error {
	switch n.Kind {
	case KindSource:
		if n.Connector == nil || n.Connector.Type == "" {
			return invalid(n.ID, "source needs a connector")
		}
		if len(n.OutputFields) == 0 {
			return invalid(n.ID, "source needs output fields")
		}
		if n.TimestampField != "" && n.OutputFields.IndexOf(n.TimestampField) < 0 {
			return invalid(n.ID, "timestamp field %q is not an output field", n.TimestampField)
		}
	case KindFilter:
		if n.Predicate == "" {
			return invalid(n.ID, "filter needs a predicate")
		}
	case KindProject, KindEvaluate:
		if len(n.OutputFields) == 0 {
			return invalid(n.ID, "%s needs output fields", n.Kind)
		}
		for _, e := range n.Expressions {
			if e.Name == "" || e.Expr == "" {
				return invalid(n.ID, "expression needs a name and a body")
			}
		}
	case KindAggregate:
		if len(n.Aggregates) == 0 && len(n.GroupBy) == 0 {
			return invalid(n.ID, "aggregate needs aggregates or group keys")
		}
		if len(n.OutputFields) == 0 {
			return invalid(n.ID, "aggregate needs output fields")
		}
		for _, a := range n.Aggregates {
			if a.Name == "" || a.Func == "" {
				return invalid(n.ID, "aggregate call needs a name and a function")
			}
		}
		for _, g := range n.GroupBy {
			if g.Expr == "" {
				return invalid(n.ID, "empty group key")
			}
		}
	case KindJoin:
		if n.Window == nil {
			return invalid(n.ID, "join needs a window")
		}
		if len(n.LeftKeys) == 0 || len(n.LeftKeys) != len(n.RightKeys) {
			return invalid(n.ID, "join needs matching key lists, got %d left and %d right", len(n.LeftKeys), len(n.RightKeys))
		}
	case KindSink:
		if len(p.Consumers(n.ID)) > 0 {
			return invalid(n.ID, "sink cannot have consumers")
		}
	}
	return nil
}
