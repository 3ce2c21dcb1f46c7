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
	"sync"
	"testing"

	"github.com/rulego/streamflow/codec"
	"github.com/rulego/streamflow/connector"
	"github.com/rulego/streamflow/logger"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector gathers emitted records; safe for the two goroutines of a join.
type collector struct {
	mu   sync.Mutex
	recs []*types.Record
}

func (c *collector) emit(_ context.Context, rec *types.Record) error {
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
	return nil
}

func (c *collector) records() []*types.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Record(nil), c.recs...)
}

func testEnv() Env {
	return Env{Logger: logger.NewDiscardLogger()}
}

var orderSchema = types.Schema{
	types.Field("id", "INT64"),
	types.Field("price", "FLOAT64?"),
	types.Field("name", "STRING"),
}

func TestFilter(t *testing.T) {
	f, err := NewFilter(&plan.Node{ID: "f", Kind: plan.KindFilter, Predicate: "price > 10"}, testEnv())
	require.NoError(t, err)
	require.NoError(t, f.Open(context.Background()))
	assert.Equal(t, StateOpen, f.State())

	var out collector
	ctx := context.Background()
	for _, price := range []interface{}{5.0, 20.0, nil, 11.5} {
		require.NoError(t, f.Process(ctx, 0, types.NewRecord(orderSchema, 1, int64(1), price, "x"), out.emit))
	}
	require.Len(t, out.records(), 2)
	assert.Equal(t, 20.0, out.records()[0].Values[1])
	assert.Equal(t, 11.5, out.records()[1].Values[1])
	assert.Equal(t, StateRunning, f.State())

	stats := f.Stats()
	assert.Equal(t, types.StageStats{ID: "f", Kind: "filter", In: 4, Out: 2, Dropped: 2}, stats)

	require.NoError(t, f.Close())
	assert.Equal(t, StateClosed, f.State())
}

func TestFilter_NonBoolean(t *testing.T) {
	f, err := NewFilter(&plan.Node{ID: "f", Kind: plan.KindFilter, Predicate: "price + 1"}, testEnv())
	require.NoError(t, err)
	err = f.Process(context.Background(), 0, types.NewRecord(orderSchema, 1, int64(1), 1.0, "x"), (&collector{}).emit)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "f", se.StageID)
	assert.Equal(t, plan.KindFilter, se.Kind)
}

func TestFilter_CompileError(t *testing.T) {
	_, err := NewFilter(&plan.Node{ID: "f", Kind: plan.KindFilter, Predicate: "price >"}, testEnv())
	assert.Error(t, err)
}

func TestProject(t *testing.T) {
	node := &plan.Node{
		ID:   "p",
		Kind: plan.KindProject,
		Expressions: []plan.Expression{
			{Name: "total", Expr: "price * 2"},
			{Name: "label", Expr: "upper(name)"},
		},
		OutputFields: types.Schema{
			types.Field("id", "INT64"),
			types.Field("total", "DECIMAL(10,2)?"),
			types.Field("label", "STRING"),
		},
	}
	p, err := NewProject(node, orderSchema, testEnv())
	require.NoError(t, err)

	var out collector
	ctx := context.Background()
	require.NoError(t, p.Process(ctx, 0, types.NewRecord(orderSchema, 9, int64(7), 1.255, "ab"), out.emit))
	require.NoError(t, p.Process(ctx, 0, types.NewRecord(orderSchema, 10, int64(8), nil, "cd"), out.emit))

	recs := out.records()
	require.Len(t, recs, 2)
	assert.Equal(t, "{id=7, total=2.51, label=AB}@9", recs[0].String())
	assert.Equal(t, "{id=8, total=NULL, label=CD}@10", recs[1].String())
}

func TestProject_BindErrors(t *testing.T) {
	tests := []struct {
		name string
		node *plan.Node
	}{
		{"unknown passthrough", &plan.Node{ID: "p", Kind: plan.KindProject,
			OutputFields: types.Schema{types.Field("missing", "INT64")}}},
		{"expression not an output", &plan.Node{ID: "p", Kind: plan.KindEvaluate,
			Expressions:  []plan.Expression{{Name: "x", Expr: "1"}},
			OutputFields: types.Schema{types.Field("id", "INT64")}}},
		{"bad expression", &plan.Node{ID: "p", Kind: plan.KindEvaluate,
			Expressions:  []plan.Expression{{Name: "x", Expr: "1 +"}},
			OutputFields: types.Schema{types.Field("x", "INT64")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProject(tt.node, orderSchema, testEnv())
			assert.Error(t, err)
		})
	}
}

func TestProject_CoercionFailure(t *testing.T) {
	node := &plan.Node{ID: "p", Kind: plan.KindProject,
		Expressions:  []plan.Expression{{Name: "n", Expr: "name"}},
		OutputFields: types.Schema{types.Field("n", "INT64")}}
	p, err := NewProject(node, orderSchema, testEnv())
	require.NoError(t, err)
	err = p.Process(context.Background(), 0, types.NewRecord(orderSchema, 1, int64(1), 1.0, "abc"), (&collector{}).emit)
	var se *Error
	assert.ErrorAs(t, err, &se)
}

func TestSource(t *testing.T) {
	node := &plan.Node{
		ID:   "s",
		Kind: plan.KindSource,
		OutputFields: types.Schema{
			types.Field("a", "INT64"),
			types.Field("at", "TIMESTAMP"),
		},
		TimestampField: "at",
	}
	src := connector.NewMemorySource(
		types.NewRawEvent(1, []byte(`{"a": 1, "at": 500}`)),
		types.NewRawEvent(2, []byte(`{"a": 2, "at": "1970-01-01T00:00:01Z"}`)),
	)
	s := NewSource(node, src, codec.NewJSONCodec(), testEnv())

	var out collector
	require.NoError(t, s.Run(context.Background(), out.emit))
	recs := out.records()
	require.Len(t, recs, 2)
	assert.Equal(t, int64(500), recs[0].Timestamp)
	assert.Equal(t, int64(1000), recs[1].Timestamp)
	assert.Equal(t, int64(2), s.Stats().Out)

	assert.Error(t, s.Process(context.Background(), 0, recs[0], out.emit))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestSource_DecodeError(t *testing.T) {
	node := &plan.Node{ID: "s", Kind: plan.KindSource, OutputFields: types.Schema{types.Field("a", "INT64")}}
	s := NewSource(node, connector.NewMemorySource(types.NewRawEvent(1, []byte(`{"a": "x"}`))), codec.NewJSONCodec(), testEnv())
	err := s.Run(context.Background(), (&collector{}).emit)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "s", se.StageID)
}

func TestSource_Canceled(t *testing.T) {
	node := &plan.Node{ID: "s", Kind: plan.KindSource, OutputFields: types.Schema{types.Field("a", "INT64")}}
	s := NewSource(node, connector.NewChannelSource(0), codec.NewJSONCodec(), testEnv())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx, (&collector{}).emit), context.Canceled)
}

type failingSink struct{ closed bool }

func (f *failingSink) Push(context.Context, *types.Record) error { return errors.New("disk full") }
func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestSink(t *testing.T) {
	mem := connector.NewMemorySink()
	var published []*types.Record
	s := NewSink(&plan.Node{ID: "out", Kind: plan.KindSink}, []connector.Sink{mem},
		func(_ context.Context, rec *types.Record) { published = append(published, rec) }, testEnv())

	rec := types.NewRecord(orderSchema, 1, int64(1), nil, "x")
	require.NoError(t, s.Process(context.Background(), 0, rec, nil))
	assert.Equal(t, 1, mem.Len())
	assert.Equal(t, []*types.Record{rec}, published)
	assert.Equal(t, int64(1), s.Stats().Out)
	require.NoError(t, s.Close())

	bad := &failingSink{}
	s = NewSink(&plan.Node{ID: "out", Kind: plan.KindSink}, []connector.Sink{bad}, nil, testEnv())
	err := s.Process(context.Background(), 0, rec, nil)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, s.Close())
	assert.True(t, bad.closed)
}

func TestSink_CanceledContextPublishesNothing(t *testing.T) {
	mem := connector.NewMemorySink()
	published := 0
	s := NewSink(&plan.Node{ID: "out", Kind: plan.KindSink}, []connector.Sink{mem},
		func(context.Context, *types.Record) { published++ }, testEnv())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := types.NewRecord(orderSchema, 1, int64(1), nil, "x")
	assert.ErrorIs(t, s.Process(ctx, 0, rec, nil), context.Canceled)
	assert.Zero(t, mem.Len())
	assert.Zero(t, published)
	assert.Zero(t, s.Stats().Out)
}
