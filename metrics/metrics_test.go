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

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_FlowLifecycle(t *testing.T) {
	c := NewCollector()
	c.FlowSubmitted()
	c.FlowSubmitted()
	c.BuildFailed()
	c.SetQueueDepth(types.FlowID(1), 7)
	assert.Equal(t, 7.0, testutil.ToFloat64(c.queueDepth.WithLabelValues("1")))

	c.FlowFinished(types.FlowID(1), types.FlowComplete)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.flowsSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.buildErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.flowsRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.flowsFinished.WithLabelValues("COMPLETE")))
	assert.Equal(t, 0, testutil.CollectAndCount(c.queueDepth))
}

func TestCollector_StageCounters(t *testing.T) {
	c := NewCollector()
	c.RecordsIn(plan.KindFilter, 3)
	c.RecordsOut(plan.KindFilter, 2)
	c.RecordsDropped(plan.KindFilter, 1)
	c.Evicted(plan.KindJoin, 5)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.recordsIn.WithLabelValues("filter")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.recordsOut.WithLabelValues("filter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.recordsDropped.WithLabelValues("filter")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.evicted.WithLabelValues("join")))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector()
		NewCollector()
	})
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.FlowSubmitted()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "streamflow_flows_submitted_total 1")
}
