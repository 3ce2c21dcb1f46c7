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
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rulego/streamflow/connector"
	"github.com/rulego/streamflow/logger"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/stage"
	"github.com/rulego/streamflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() types.Config {
	config := types.DefaultConfig()
	config.Timer.Interval = 10 * time.Millisecond
	return config
}

func testBuilder(config types.Config) *Builder {
	b := NewBuilder(config)
	b.Logger = logger.NewDiscardLogger()
	return b
}

func event(ts int64, body string) types.RawEvent {
	return types.NewRawEvent(ts, []byte(body))
}

func abEvents() []types.RawEvent {
	return []types.RawEvent{
		event(35, `{"a":0,"b":10}`),
		event(36, `{"a":1,"b":11}`),
		event(200, `{"a":0,"b":12}`),
	}
}

func sumPlan() *plan.Plan {
	return &plan.Plan{
		Query: "SELECT a, SUM(b) AS c FROM s GROUP BY a",
		Nodes: []*plan.Node{
			{
				ID:           "s",
				Kind:         plan.KindSource,
				OutputFields: types.Schema{types.Field("a", "INT64"), types.Field("b", "INT64")},
				Connector:    &plan.Connector{Type: "events"},
			},
			{
				ID:         "agg",
				Kind:       plan.KindAggregate,
				Inputs:     []string{"s"},
				Window:     &types.WindowSpec{PrecedingMillis: 1000},
				GroupBy:    []plan.Expression{{Name: "a", Expr: "a"}},
				Aggregates: []plan.Aggregate{{Name: "c", Func: "sum", Arg: "b"}},
				OutputFields: types.Schema{
					types.Field("a", "INT64"),
					types.Field("c", "INT64?"),
				},
			},
			{ID: "out", Kind: plan.KindSink, Inputs: []string{"agg"}, Connector: &plan.Connector{Type: "results"}},
		},
	}
}

func pairs(recs []*types.Record) [][2]interface{} {
	out := make([][2]interface{}, len(recs))
	for i, rec := range recs {
		out[i] = [2]interface{}{rec.Values[0], rec.Values[1]}
	}
	return out
}

func TestFlow_RunningSum(t *testing.T) {
	b := testBuilder(testConfig())
	results := connector.NewMemorySink()
	require.NoError(t, b.Connectors.BindSource("events", connector.NewMemorySource(abEvents()...)))
	require.NoError(t, b.Connectors.BindSink("results", results))

	f, err := b.Build(sumPlan(), 1)
	require.NoError(t, err)
	assert.Equal(t, types.FlowRunning, f.State())
	require.NoError(t, f.Start(context.Background()))
	require.True(t, f.Wait(5*time.Second))

	assert.Equal(t, types.FlowComplete, f.State())
	assert.NoError(t, f.Err())
	assert.Equal(t, [][2]interface{}{
		{int64(0), int64(10)},
		{int64(1), int64(11)},
		{int64(0), int64(22)},
	}, pairs(results.Records()))

	summary := f.Summary()
	assert.Equal(t, "SELECT a, SUM(b) AS c FROM s GROUP BY a", summary.Query)
	assert.False(t, summary.EndTime.Before(summary.StartTime))
	require.Len(t, summary.Stages, 3)
	assert.Equal(t, int64(3), summary.Stages[1].In)
	assert.Equal(t, int64(3), summary.Stages[2].Out)
	for _, st := range f.Stages() {
		assert.Equal(t, stage.StateClosed, st.State(), st.ID())
	}
	assert.ErrorIs(t, f.Start(context.Background()), ErrAlreadyStarted)
}

func filterProjectPlan() *plan.Plan {
	return &plan.Plan{
		Nodes: []*plan.Node{
			{
				ID:           "s",
				Kind:         plan.KindSource,
				OutputFields: types.Schema{types.Field("a", "INT64"), types.Field("b", "INT64")},
				Connector:    &plan.Connector{Type: "events"},
			},
			{ID: "f", Kind: plan.KindFilter, Inputs: []string{"s"}, Predicate: "b > 10"},
			{
				ID:           "p",
				Kind:         plan.KindProject,
				Inputs:       []string{"f"},
				Expressions:  []plan.Expression{{Name: "d", Expr: "b * 2"}},
				OutputFields: types.Schema{types.Field("a", "INT64"), types.Field("d", "INT64")},
			},
			{ID: "out", Kind: plan.KindSink, Inputs: []string{"p"}, Connector: &plan.Connector{Type: "results"}},
		},
	}
}

func TestFlow_StatelessChain(t *testing.T) {
	tests := []struct {
		name string
		fuse bool
	}{
		{"fused", true},
		{"queued", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			config.Transport.FuseStateless = tt.fuse
			b := testBuilder(config)
			results := connector.NewMemorySink()
			require.NoError(t, b.Connectors.BindSource("events", connector.NewMemorySource(abEvents()...)))
			require.NoError(t, b.Connectors.BindSink("results", results))

			f, err := b.Build(filterProjectPlan(), 1)
			require.NoError(t, err)
			assert.Equal(t, tt.fuse, f.byID["f"].fused)
			assert.Equal(t, tt.fuse, f.byID["p"].fused)
			assert.False(t, f.byID["out"].fused)

			require.NoError(t, f.Start(context.Background()))
			require.True(t, f.Wait(5*time.Second))
			assert.Equal(t, types.FlowComplete, f.State())
			assert.Equal(t, [][2]interface{}{
				{int64(1), int64(22)},
				{int64(0), int64(24)},
			}, pairs(results.Records()))

			st, ok := f.Stage("f")
			require.True(t, ok)
			assert.Equal(t, int64(1), st.Stats().Dropped)
		})
	}
}

func TestFlow_FanOut(t *testing.T) {
	b := testBuilder(testConfig())
	first, second := connector.NewMemorySink(), connector.NewMemorySink()
	require.NoError(t, b.Connectors.BindSource("events", connector.NewMemorySource(abEvents()...)))
	require.NoError(t, b.Connectors.BindSink("first", first))
	require.NoError(t, b.Connectors.BindSink("second", second))

	p := &plan.Plan{Nodes: []*plan.Node{
		{
			ID:           "s",
			Kind:         plan.KindSource,
			OutputFields: types.Schema{types.Field("a", "INT64"), types.Field("b", "INT64")},
			Connector:    &plan.Connector{Type: "events"},
		},
		{ID: "o1", Kind: plan.KindSink, Inputs: []string{"s"}, Connector: &plan.Connector{Type: "first"}},
		{ID: "o2", Kind: plan.KindSink, Inputs: []string{"s"}, Connector: &plan.Connector{Type: "second"}},
	}}
	f, err := b.Build(p, 1)
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))
	require.True(t, f.Wait(5*time.Second))

	assert.Equal(t, pairs(first.Records()), pairs(second.Records()))
	assert.Len(t, first.Records(), 3)
}

func joinPlan() *plan.Plan {
	return &plan.Plan{Nodes: []*plan.Node{
		{
			ID:           "orders",
			Kind:         plan.KindSource,
			OutputFields: types.Schema{types.Field("oid", "INT64"), types.Field("k", "INT64")},
			Connector:    &plan.Connector{Type: "orders"},
		},
		{
			ID:           "payments",
			Kind:         plan.KindSource,
			OutputFields: types.Schema{types.Field("pid", "INT64"), types.Field("k", "INT64")},
			Connector:    &plan.Connector{Type: "payments"},
		},
		{
			ID:        "j",
			Kind:      plan.KindJoin,
			Inputs:    []string{"orders", "payments"},
			Window:    &types.WindowSpec{PrecedingMillis: 100, FollowingMillis: 100},
			LeftKeys:  []string{"k"},
			RightKeys: []string{"k"},
			OutputFields: types.Schema{
				types.Field("oid", "INT64"), types.Field("ok", "INT64"),
				types.Field("pid", "INT64"), types.Field("pk", "INT64"),
			},
		},
		{
			ID:           "p",
			Kind:         plan.KindProject,
			Inputs:       []string{"j"},
			OutputFields: types.Schema{types.Field("oid", "INT64"), types.Field("pid", "INT64")},
		},
		{ID: "out", Kind: plan.KindSink, Inputs: []string{"p"}, Connector: &plan.Connector{Type: "results"}},
	}}
}

func TestFlow_Join(t *testing.T) {
	config := testConfig()
	// no eviction ticks, so the match does not depend on goroutine timing
	config.Timer.Interval = time.Hour
	b := testBuilder(config)
	results := connector.NewMemorySink()
	require.NoError(t, b.Connectors.BindSource("orders", connector.NewMemorySource(
		event(10, `{"oid":1,"k":7}`),
		event(20, `{"oid":2,"k":8}`),
		event(500, `{"oid":3,"k":7}`),
	)))
	require.NoError(t, b.Connectors.BindSource("payments", connector.NewMemorySource(
		event(50, `{"pid":100,"k":7}`),
		event(60, `{"pid":101,"k":9}`),
	)))
	require.NoError(t, b.Connectors.BindSink("results", results))

	f, err := b.Build(joinPlan(), 1)
	require.NoError(t, err)
	assert.False(t, f.byID["p"].fused)
	require.NoError(t, f.Start(context.Background()))
	require.True(t, f.Wait(5*time.Second))

	assert.Equal(t, types.FlowComplete, f.State())
	assert.Equal(t, [][2]interface{}{{int64(1), int64(100)}}, pairs(results.Records()))
}

func TestFlow_Cancel(t *testing.T) {
	b := testBuilder(testConfig())
	src := connector.NewChannelSource(0)
	results := connector.NewMemorySink()
	require.NoError(t, b.Connectors.BindSource("events", src))
	require.NoError(t, b.Connectors.BindSink("results", results))

	f, err := b.Build(sumPlan(), 1)
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))

	ctx := context.Background()
	require.NoError(t, src.Send(ctx, event(1, `{"a":1,"b":1}`)))
	require.True(t, results.WaitFor(1, 5*time.Second))
	assert.False(t, f.Wait(20*time.Millisecond))

	f.Cancel()
	assert.Equal(t, types.FlowCanceled, f.State())
	assert.Equal(t, types.FlowCanceled, f.Summary().State)
	require.True(t, f.Wait(5*time.Second))
	assert.Equal(t, types.FlowCanceled, f.State())
	assert.NoError(t, f.Err())
	assert.Equal(t, 1, results.Len())
	for _, st := range f.Stages() {
		assert.Equal(t, stage.StateClosed, st.State(), st.ID())
	}

	f.Cancel()
	assert.Equal(t, types.FlowCanceled, f.State())
}

func TestFlow_CancelBeforeStart(t *testing.T) {
	b := testBuilder(testConfig())
	require.NoError(t, b.Connectors.BindSource("events", connector.NewChannelSource(0)))
	require.NoError(t, b.Connectors.BindSink("results", connector.NewMemorySink()))

	f, err := b.Build(sumPlan(), 1)
	require.NoError(t, err)
	f.Cancel()
	assert.Equal(t, types.FlowCanceled, f.State())
	assert.True(t, f.AddListener("tap", SinkListener{Sink: connector.NewMemorySink()}), "listeners attach until the flow finishes")
	require.NoError(t, f.Start(context.Background()))
	require.True(t, f.Wait(5*time.Second))
	assert.Equal(t, types.FlowCanceled, f.State())
	assert.False(t, f.AddListener("late", SinkListener{Sink: connector.NewMemorySink()}))
}

func TestFlow_StageErrorFailsFlow(t *testing.T) {
	b := testBuilder(testConfig())
	require.NoError(t, b.Connectors.BindSource("events", connector.NewMemorySource(
		event(1, `{"a":1,"b":1}`),
		event(2, `{"a":"not a number","b":2}`),
	)))
	require.NoError(t, b.Connectors.BindSink("results", connector.NewMemorySink()))

	f, err := b.Build(sumPlan(), 1)
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))
	require.True(t, f.Wait(5*time.Second))

	assert.Equal(t, types.FlowError, f.State())
	var stageErr *stage.Error
	require.ErrorAs(t, f.Err(), &stageErr)
	assert.Equal(t, "s", stageErr.StageID)
	assert.NotEmpty(t, f.Summary().Error)
}

type panickingSink struct{}

func (panickingSink) Push(context.Context, *types.Record) error { panic("boom") }
func (panickingSink) Close() error                              { return nil }

func TestFlow_PanicBecomesStageError(t *testing.T) {
	b := testBuilder(testConfig())
	require.NoError(t, b.Connectors.BindSource("events", connector.NewMemorySource(abEvents()...)))
	require.NoError(t, b.Connectors.BindSink("results", panickingSink{}))

	f, err := b.Build(sumPlan(), 1)
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))
	require.True(t, f.Wait(5*time.Second))

	assert.Equal(t, types.FlowError, f.State())
	assert.Contains(t, f.Err().Error(), "panic: boom")
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *plan.Plan)
		node   string
		reason string
	}{
		{"no source", func(p *plan.Plan) { p.Nodes = p.Nodes[1:] }, "", "invalid plan"},
		{"unknown source type", func(p *plan.Plan) { p.Nodes[0].Connector.Type = "kafka" }, "s", "open source"},
		{"unknown codec", func(p *plan.Plan) { p.Nodes[0].Connector.Codec = "avro" }, "s", "codec"},
		{"unknown function", func(p *plan.Plan) { p.Nodes[1].Aggregates[0].Func = "median" }, "agg", "bind aggregate"},
		{"unknown sink type", func(p *plan.Plan) { p.Nodes[2].Connector.Type = "nowhere" }, "out", "open sink"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBuilder(testConfig())
			require.NoError(t, b.Connectors.BindSource("events", connector.NewMemorySource()))
			require.NoError(t, b.Connectors.BindSink("results", connector.NewMemorySink()))
			p := sumPlan()
			tt.mutate(p)

			f, err := b.Build(p, 1)
			assert.Nil(t, f)
			var be *BuildError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.reason, be.Reason)
			assert.Equal(t, tt.node, be.NodeID)
		})
	}

	_, err := testBuilder(testConfig()).Build(nil, 1)
	assert.Error(t, err)
}

// closeTrackingSource records whether the flow released it.
type closeTrackingSource struct {
	connector.Source
	closed bool
}

func (s *closeTrackingSource) Close() error {
	s.closed = true
	return nil
}

func TestBuild_FailureReleasesConnectors(t *testing.T) {
	b := testBuilder(testConfig())
	src := &closeTrackingSource{Source: connector.NewMemorySource()}
	require.NoError(t, b.Connectors.BindSource("events", src))
	p := sumPlan()
	p.Nodes[2].Connector.Type = "missing"
	_, err := b.Build(p, 1)
	require.Error(t, err)
	assert.False(t, src.closed, "source is built after the failing sink")

	b = testBuilder(testConfig())
	tracked := &closeTrackingSink{MemorySink: connector.NewMemorySink()}
	require.NoError(t, b.Connectors.BindSink("results", tracked))
	p = sumPlan()
	p.Nodes[0].Connector.Type = "missing"
	_, err = b.Build(p, 1)
	require.Error(t, err)
	assert.True(t, tracked.closed)
}

type closeTrackingSink struct {
	*connector.MemorySink
	closed bool
}

func (s *closeTrackingSink) Close() error {
	s.closed = true
	return nil
}

func TestFlow_WallTimerEvicts(t *testing.T) {
	config := testConfig()
	config.Timer.Mode = types.TimerModeWall
	config.Timer.Interval = 5 * time.Millisecond
	b := testBuilder(config)
	src := connector.NewChannelSource(4)
	require.NoError(t, b.Connectors.BindSource("events", src))
	require.NoError(t, b.Connectors.BindSink("results", connector.NewMemorySink()))

	var depths []int
	depthCh := make(chan int, 64)
	b.QueueDepth = func(id types.FlowID, depth int) {
		select {
		case depthCh <- depth:
		default:
		}
	}

	f, err := b.Build(sumPlan(), 3)
	require.NoError(t, err)
	require.Len(t, f.timers, 1)
	require.NoError(t, f.Start(context.Background()))

	ctx := context.Background()
	require.NoError(t, src.Send(ctx, event(0, `{"a":1,"b":1}`)))
	require.NoError(t, src.Send(ctx, event(5000, `{"a":1,"b":2}`)))

	agg, _ := f.Stage("agg")
	assert.Eventually(t, func() bool {
		return agg.Stats().Evicted >= 1
	}, 5*time.Second, 5*time.Millisecond)

	src.Finish()
	require.True(t, f.Wait(5*time.Second))
	assert.Equal(t, types.FlowComplete, f.State())
	close(depthCh)
	for d := range depthCh {
		depths = append(depths, d)
	}
	assert.NotEmpty(t, depths)
}

func TestFlow_EventTimerEvictsInline(t *testing.T) {
	config := types.ReplayConfig()
	config.Timer.Interval = 100 * time.Millisecond
	b := testBuilder(config)
	var events []types.RawEvent
	for i := 0; i < 50; i++ {
		events = append(events, event(int64(i)*1000, fmt.Sprintf(`{"a":1,"b":%d}`, i)))
	}
	require.NoError(t, b.Connectors.BindSource("events", connector.NewMemorySource(events...)))
	require.NoError(t, b.Connectors.BindSink("results", connector.NewMemorySink()))

	f, err := b.Build(sumPlan(), 1)
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))
	require.True(t, f.Wait(5*time.Second))

	agg, _ := f.Stage("agg")
	assert.Greater(t, agg.Stats().Evicted, int64(40))
	assert.LessOrEqual(t, agg.(*stage.Aggregate).StateSize(), 2)
}

func TestFlow_Listeners(t *testing.T) {
	b := testBuilder(testConfig())
	src := connector.NewChannelSource(0)
	require.NoError(t, b.Connectors.BindSource("events", src))
	require.NoError(t, b.Connectors.BindSink("results", connector.NewMemorySink()))

	f, err := b.Build(sumPlan(), 1)
	require.NoError(t, err)
	tap := connector.NewMemorySink()
	assert.True(t, f.AddListener("tap", SinkListener{Sink: tap}))
	assert.Equal(t, 1, f.ListenerCount())
	require.NoError(t, f.Start(context.Background()))

	require.NoError(t, src.Send(context.Background(), event(1, `{"a":1,"b":5}`)))
	require.True(t, tap.WaitFor(1, 5*time.Second))
	assert.True(t, f.RemoveListener("tap"))
	assert.False(t, f.RemoveListener("tap"))

	src.Finish()
	require.True(t, f.Wait(5*time.Second))
	assert.False(t, f.AddListener("late", SinkListener{Sink: tap}))
	assert.Equal(t, 1, tap.Len())
}

func TestBuildError_Message(t *testing.T) {
	err := &BuildError{NodeID: "j", Reason: "bind join", Err: errors.New("key mismatch")}
	assert.Equal(t, "build flow node j: bind join: key mismatch", err.Error())
	assert.Equal(t, "build flow: nil plan", (&BuildError{Reason: "nil plan"}).Error())
}
