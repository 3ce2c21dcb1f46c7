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
Package streamflow is a continuous SQL dataflow engine.

A SQL planner, outside this module, compiles a query into a typed plan: a DAG
of source, filter, project, evaluate, aggregate, join and sink nodes. The
Engine builds each submitted plan into a flow of stages connected by bounded
queues, runs it until its sources end or it is canceled, and streams the
sink output to sessions watching the flow.

# Windows

Aggregates and joins are windowed relative to each record: a record at event
time T sees the records in [T-preceding, T+following]. An aggregate emits one
refreshed result for every input record, so a running SUM over the last
second is

	nodes:
	  - id: s
	    kind: source
	    outputFields: [{name: a, type: INT64}, {name: b, type: INT64}]
	    connector: {type: memory}
	  - id: agg
	    kind: aggregate
	    inputs: [s]
	    window: {precedingMillis: 1000}
	    groupBy: [{name: a, expr: a}]
	    aggregates: [{name: c, func: sum, arg: b}]
	    outputFields: [{name: a, type: INT64}, {name: c, type: "INT64?"}]
	  - id: out
	    kind: sink
	    inputs: [agg]

Expired window state is dropped by a per-flow eviction timer; eviction never
produces output.

# Getting started

	engine, err := streamflow.New(streamflow.WithReplay())
	if err != nil {
		return err
	}
	defer engine.Close()

	p, err := plan.Load("sum.yaml")
	if err != nil {
		return err
	}
	records, summary, err := engine.Collect(p, 10*time.Second)

Long-running flows are submitted and observed through sessions:

	id, err := engine.SubmitFlow(p)
	session := engine.OpenSession()
	_ = engine.WatchFlow(session.ID(), id)
	for d := range session.C() {
		if d.IsNotice() {
			fmt.Println("flow", d.FlowID, d.Notice.State)
			break
		}
		fmt.Println(d.Record)
	}

# Collaborators

Sources and sinks are bound by name through a connector.Registry. Built in
are memory, file and channel sources and console, discard, SQLite and S3
sinks; applications bind their own with BindSource and BindSink. Event bodies
are decoded by the codec named on the node (json or json+snappy).

# Configuration

types.Config is loaded from YAML with types.LoadConfig and comes in presets:
DefaultConfig, HighThroughputConfig, LowLatencyConfig and ReplayConfig. The
Option functions adjust single settings.
*/
package streamflow
