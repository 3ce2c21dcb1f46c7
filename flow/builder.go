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

package flow

import (
	"errors"
	"fmt"

	"github.com/rulego/streamflow/codec"
	"github.com/rulego/streamflow/connector"
	"github.com/rulego/streamflow/expression"
	"github.com/rulego/streamflow/functions"
	"github.com/rulego/streamflow/logger"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/stage"
	"github.com/rulego/streamflow/transport"
	"github.com/rulego/streamflow/types"
)

// BuildError reports a plan that cannot be turned into a flow. The flow is
// never started.
type BuildError struct {
	NodeID string
	Reason string
	Err    error
}

func (e *BuildError) Error() string {
	msg := "build flow"
	if e.NodeID != "" {
		msg += " node " + e.NodeID
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Builder turns plans into flows. Its registries are shared by every flow
// it builds.
type Builder struct {
	Config     types.Config
	Connectors *connector.Registry
	Codecs     *codec.Registry
	Functions  *functions.Registry
	Compiler   *expression.Compiler
	Logger     logger.Logger
	Observer   stage.Observer
	// QueueDepth, when set, receives each flow's buffered record count on
	// every timer tick.
	QueueDepth func(id types.FlowID, depth int)
}

// NewBuilder creates a builder with the default registries.
func NewBuilder(config types.Config) *Builder {
	fns := functions.NewBuiltinRegistry()
	return &Builder{
		Config:     config,
		Connectors: connector.NewDefaultRegistry(),
		Codecs:     codec.NewDefaultRegistry(),
		Functions:  fns,
		Compiler:   expression.NewCompiler(fns),
		Logger:     logger.GetDefault(),
	}
}

// Build validates p and builds its stages and transports. Nodes are built
// consumers first, so every producer finds the transports of its consumers
// ready. The returned flow is not started.
func (b *Builder) Build(p *plan.Plan, id types.FlowID) (*Flow, error) {
	if p == nil {
		return nil, &BuildError{Reason: "nil plan"}
	}
	if err := p.Validate(); err != nil {
		var ve *plan.ValidationError
		nodeID := ""
		if errors.As(err, &ve) {
			nodeID = ve.NodeID
		}
		return nil, &BuildError{NodeID: nodeID, Reason: "invalid plan", Err: err}
	}
	order, err := p.TopoOrder()
	if err != nil {
		return nil, &BuildError{Reason: "invalid plan", Err: err}
	}

	log := b.logger().Named("flow-" + id.String())
	f := newFlow(id, p, b.Config, log)
	f.queueDepth = b.QueueDepth
	env := b.env(log)

	built := make([]*runtimeNode, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		rn, err := b.buildNode(f, p, node, env)
		if err != nil {
			closeBuilt(built[i+1:])
			return nil, err
		}
		for _, e := range p.Consumers(node.ID) {
			rn.outputs = append(rn.outputs, f.byID[e.To].input(e.Port))
		}
		built[i] = rn
		f.byID[node.ID] = rn
	}
	f.nodes = built
	for _, rn := range built {
		if rn.stage.RequiresTimer() {
			f.timers = append(f.timers, rn)
		}
	}
	log.Debug("built flow %s:\n%s", id, p)
	return f, nil
}

func (b *Builder) logger() logger.Logger {
	if b.Logger == nil {
		return logger.GetDefault()
	}
	return b.Logger
}

func (b *Builder) env(log logger.Logger) stage.Env {
	env := stage.Env{
		Compiler:     b.Compiler,
		Functions:    b.Functions,
		Logger:       log,
		Observer:     b.Observer,
		BucketMillis: b.Config.Window.BucketMillis,
	}
	if b.Config.Timer.Mode == types.TimerModeEvent {
		env.EvictEveryMillis = max(b.Config.Timer.Interval.Milliseconds(), 1)
	}
	return env
}

func (b *Builder) buildNode(f *Flow, p *plan.Plan, node *plan.Node, env stage.Env) (*runtimeNode, error) {
	rn := &runtimeNode{node: node}
	bindErr := func(err error) error {
		return &BuildError{NodeID: node.ID, Reason: "bind " + string(node.Kind), Err: err}
	}

	switch node.Kind {
	case plan.KindSource:
		c, err := b.Codecs.Get(node.Connector.Codec)
		if err != nil {
			return nil, &BuildError{NodeID: node.ID, Reason: "codec", Err: err}
		}
		src, err := b.Connectors.OpenSource(node.Connector.Type, b.connectorConfig(node, c))
		if err != nil {
			return nil, &BuildError{NodeID: node.ID, Reason: "open source", Err: err}
		}
		rn.source = stage.NewSource(node, src, c, env)
		rn.stage = rn.source

	case plan.KindFilter:
		st, err := stage.NewFilter(node, env)
		if err != nil {
			return nil, bindErr(err)
		}
		rn.stage = st

	case plan.KindProject, plan.KindEvaluate:
		input, err := p.InputSchema(node.ID, 0)
		if err != nil {
			return nil, bindErr(err)
		}
		st, err := stage.NewProject(node, input, env)
		if err != nil {
			return nil, bindErr(err)
		}
		rn.stage = st

	case plan.KindAggregate:
		input, err := p.InputSchema(node.ID, 0)
		if err != nil {
			return nil, bindErr(err)
		}
		st, err := stage.NewAggregate(node, input, env)
		if err != nil {
			return nil, bindErr(err)
		}
		rn.stage = st

	case plan.KindJoin:
		left, err := p.InputSchema(node.ID, plan.PortLeft)
		if err != nil {
			return nil, bindErr(err)
		}
		right, err := p.InputSchema(node.ID, plan.PortRight)
		if err != nil {
			return nil, bindErr(err)
		}
		st, err := stage.NewJoin(node, left, right, env)
		if err != nil {
			return nil, bindErr(err)
		}
		rn.stage = st

	case plan.KindSink:
		var sinks []connector.Sink
		if node.Connector != nil && node.Connector.Type != "" {
			c, err := b.Codecs.Get(node.Connector.Codec)
			if err != nil {
				return nil, &BuildError{NodeID: node.ID, Reason: "codec", Err: err}
			}
			sink, err := b.Connectors.OpenSink(node.Connector.Type, b.connectorConfig(node, c))
			if err != nil {
				return nil, &BuildError{NodeID: node.ID, Reason: "open sink", Err: err}
			}
			sinks = append(sinks, sink)
		}
		rn.stage = stage.NewSink(node, sinks, f.publish, env)

	default:
		return nil, &BuildError{NodeID: node.ID, Reason: fmt.Sprintf("unknown kind %q", node.Kind)}
	}

	rn.inputs = make([]*transport.Queue, len(node.Inputs))
	if b.fusable(p, node) {
		rn.fused = true
	} else {
		capacity := b.Config.Transport.QueueCapacity
		for port := range rn.inputs {
			rn.inputs[port] = transport.NewQueue(capacity)
		}
	}
	if rn.stage.RequiresTimer() {
		rn.ticks = make(chan struct{}, 1)
	}
	return rn, nil
}

func (b *Builder) connectorConfig(node *plan.Node, c codec.Codec) connector.Config {
	return connector.Config{NodeID: node.ID, Codec: c, Options: node.Connector.Options}
}

// fusable reports whether node can run inside its producer's goroutine: a
// stateless single-input stage whose producer emits from one goroutine.
// Join outputs come from two goroutines, so their consumers keep a queue.
func (b *Builder) fusable(p *plan.Plan, node *plan.Node) bool {
	if !b.Config.Transport.FuseStateless || !node.Kind.IsStateless() || len(node.Inputs) != 1 {
		return false
	}
	producer, ok := p.Node(node.Inputs[0])
	return ok && producer.Kind != plan.KindJoin
}

// closeBuilt releases the connectors of stages built before a failure.
func closeBuilt(nodes []*runtimeNode) {
	for _, rn := range nodes {
		if rn != nil {
			_ = rn.stage.Close()
		}
	}
}
