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

// Package plan describes the typed logical plan a flow is built from.
//
// A plan is a DAG of nodes. The planner that produces it has already resolved
// field types and validated expressions against schemas; this package only
// carries the result and checks its structure. Plans can be written in code or
// loaded from YAML/JSON files:
//
//	query: SELECT a, SUM(b) AS c FROM s GROUP BY a
//	nodes:
//	  - id: s
//	    kind: source
//	    outputFields: [{name: a, type: INT64}, {name: b, type: INT64}]
//	    connector: {type: memory}
//	  - id: agg
//	    kind: aggregate
//	    inputs: [s]
//	    window: {precedingMillis: 1000}
//	    groupBy: [{name: a, expr: a}]
//	    aggregates: [{name: c, func: sum, arg: b}]
//	    outputFields: [{name: a, type: INT64}, {name: c, type: "INT64?"}]
//	  - id: out
//	    kind: sink
//	    inputs: [agg]
package plan

import (
	"fmt"
	"strings"

	"github.com/rulego/streamflow/types"
)

// Kind is the operator kind of a plan node.
type Kind string

const (
	KindSource    Kind = "source"
	KindFilter    Kind = "filter"
	KindProject   Kind = "project"
	KindEvaluate  Kind = "evaluate"
	KindAggregate Kind = "aggregate"
	KindJoin      Kind = "join"
	KindSink      Kind = "sink"
)

// IsStateless reports whether the kind keeps no state between records.
func (k Kind) IsStateless() bool {
	switch k {
	case KindFilter, KindProject, KindEvaluate:
		return true
	}
	return false
}

// arity is the number of inputs each kind consumes.
var arity = map[Kind]int{
	KindSource:    0,
	KindFilter:    1,
	KindProject:   1,
	KindEvaluate:  1,
	KindAggregate: 1,
	KindJoin:      2,
	KindSink:      1,
}

// Join input ports.
const (
	PortLeft  = 0
	PortRight = 1
)

// Expression is a named expression in expr-lang syntax.
type Expression struct {
	Name string `json:"name" yaml:"name"`
	Expr string `json:"expr" yaml:"expr"`
}

// Aggregate is one aggregate call of an aggregate node.
type Aggregate struct {
	// Name is the output field the result is written to.
	Name string `json:"name" yaml:"name"`
	Func string `json:"func" yaml:"func"`
	// Arg is the argument expression; empty means COUNT(*).
	Arg string `json:"arg,omitempty" yaml:"arg,omitempty"`
	// ArgType is the declared argument type. When empty it is taken from the
	// input schema for plain field arguments.
	ArgType *types.Type `json:"argType,omitempty" yaml:"argType,omitempty"`
}

// Connector binds a source or sink node to an external collaborator.
type Connector struct {
	// Type names a factory in the connector registry, or an instance bound
	// to the registry under that name.
	Type    string                 `json:"type" yaml:"type"`
	Codec   string                 `json:"codec,omitempty" yaml:"codec,omitempty"`
	Options map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`
}

// Node is one typed operator of the plan.
type Node struct {
	ID           string            `json:"id" yaml:"id"`
	Kind         Kind              `json:"kind" yaml:"kind"`
	Inputs       []string          `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	InputFields  types.Schema      `json:"inputFields,omitempty" yaml:"inputFields,omitempty"`
	OutputFields types.Schema      `json:"outputFields,omitempty" yaml:"outputFields,omitempty"`
	Window       *types.WindowSpec `json:"window,omitempty" yaml:"window,omitempty"`

	// filter
	Predicate string `json:"predicate,omitempty" yaml:"predicate,omitempty"`
	// project, evaluate
	Expressions []Expression `json:"expressions,omitempty" yaml:"expressions,omitempty"`
	// aggregate
	GroupBy    []Expression `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	Aggregates []Aggregate  `json:"aggregates,omitempty" yaml:"aggregates,omitempty"`
	// join
	LeftKeys  []string `json:"leftKeys,omitempty" yaml:"leftKeys,omitempty"`
	RightKeys []string `json:"rightKeys,omitempty" yaml:"rightKeys,omitempty"`
	// source, sink
	Connector *Connector `json:"connector,omitempty" yaml:"connector,omitempty"`
	// TimestampField names the source field carrying event time; when empty
	// the raw event timestamp is used.
	TimestampField string `json:"timestampField,omitempty" yaml:"timestampField,omitempty"`
}

// Edge is a data-flow edge into input Port of node To.
type Edge struct {
	To   string
	Port int
}

// Plan is a typed operator DAG.
type Plan struct {
	Query string  `json:"query" yaml:"query"`
	Nodes []*Node `json:"nodes" yaml:"nodes"`
}

// Node returns the node with the given id.
func (p *Plan) Node(id string) (*Node, bool) {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// Consumers returns the edges leaving id in declaration order.
func (p *Plan) Consumers(id string) []Edge {
	var edges []Edge
	for _, n := range p.Nodes {
		for port, in := range n.Inputs {
			if in == id {
				edges = append(edges, Edge{To: n.ID, Port: port})
			}
		}
	}
	return edges
}

// TopoOrder returns the nodes so that every node follows its inputs. Ties
// keep declaration order.
func (p *Plan) TopoOrder() ([]*Node, error) {
	pending := make(map[string]int, len(p.Nodes))
	for _, n := range p.Nodes {
		pending[n.ID] = len(n.Inputs)
	}
	order := make([]*Node, 0, len(p.Nodes))
	placed := make(map[string]bool, len(p.Nodes))
	for len(order) < len(p.Nodes) {
		progressed := false
		for _, n := range p.Nodes {
			if placed[n.ID] || pending[n.ID] > 0 {
				continue
			}
			placed[n.ID] = true
			order = append(order, n)
			progressed = true
			for _, e := range p.Consumers(n.ID) {
				pending[e.To]--
			}
		}
		if !progressed {
			var stuck []string
			for _, n := range p.Nodes {
				if !placed[n.ID] {
					stuck = append(stuck, n.ID)
				}
			}
			return nil, &ValidationError{NodeID: stuck[0], Reason: "cycle through " + strings.Join(stuck, ", ")}
		}
	}
	return order, nil
}

// String renders the plan one node per line, in topological order when possible.
func (p *Plan) String() string {
	nodes, err := p.TopoOrder()
	if err != nil {
		nodes = p.Nodes
	}
	var sb strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&sb, "%s %s", n.Kind, n.ID)
		if len(n.Inputs) > 0 {
			fmt.Fprintf(&sb, " <- %s", strings.Join(n.Inputs, ", "))
		}
		if n.Window != nil {
			fmt.Fprintf(&sb, " window[-%d,+%d]", n.Window.PrecedingMillis, n.Window.FollowingMillis)
		}
		if len(n.OutputFields) > 0 {
			sb.WriteString(" " + n.OutputFields.String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
