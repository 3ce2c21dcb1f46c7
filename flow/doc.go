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

/*
Package flow builds running flows from plans and schedules them.

A Builder validates a plan and creates its stages consumers first, so each
producer is wired to transports that already exist. Every consumer edge gets
its own bounded transport.Queue; with Transport.FuseStateless set, filter,
project and evaluate stages are instead called through a transport.Direct on
their producer's goroutine.

Start launches one goroutine per source and per queued input port (a join
has two). A stage whose inputs are all at end of stream closes its outputs,
and the flow becomes COMPLETE once every goroutine has returned. The first
stage error cancels the flow context and the flow ends in ERROR; Cancel ends
it in CANCELED. Every stage is closed in all three cases.

Windowed stages are expired by a per-flow eviction timer. In wall mode it
posts coalescing ticks that the stage handles on its own goroutine; in event
mode the stages evict inline as event time advances.

The Registry lists flows by id and the SessionManager delivers the sink
output of watched flows to sessions:

	flows := flow.NewRegistry(time.Minute)
	sessions := flow.NewSessionManager(flows, 256, nil)
	f, err := builder.Build(p, flows.NextID())
	if err != nil {
		return err
	}
	_ = flows.Register(f)
	_ = f.Start(ctx)
	s := sessions.Open()
	_ = sessions.Watch(s.ID(), f.ID())
	for d := range s.C() {
		if d.IsNotice() {
			break
		}
		fmt.Println(d.Record)
	}
*/
package flow
