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
	"errors"

	"github.com/rulego/streamflow/connector"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/types"
)

// Publisher receives every record that reaches a sink stage, after the
// stage's connectors accepted it.
type Publisher func(ctx context.Context, rec *types.Record)

// Sink pushes records to its connectors and publishes them to the flow's
// watchers. A connector error fails the stage.
type Sink struct {
	base
	sinks   []connector.Sink
	publish Publisher
}

// NewSink creates a sink stage. publish may be nil.
func NewSink(node *plan.Node, sinks []connector.Sink, publish Publisher, env Env) *Sink {
	env = env.withDefaults()
	return &Sink{base: newBase(node, env), sinks: sinks, publish: publish}
}

func (s *Sink) Process(ctx context.Context, _ int, rec *types.Record, _ Emitter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.received()
	for _, sink := range s.sinks {
		if err := sink.Push(ctx, rec); err != nil {
			return s.fail(err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.publish != nil {
		s.publish(ctx, rec)
	}
	s.stats.IncrementOutput()
	s.observer.RecordsOut(s.kind, 1)
	return nil
}

// Close closes every connector and returns their errors joined.
func (s *Sink) Close() error {
	if !s.close() {
		return nil
	}
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return s.fail(err)
	}
	return nil
}
