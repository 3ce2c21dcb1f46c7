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
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/stage"
	"github.com/rulego/streamflow/transport"
	"github.com/rulego/streamflow/types"
)

// runtimeNode is a built stage together with its transports.
type runtimeNode struct {
	node   *plan.Node
	stage  stage.Stage
	source *stage.Source

	// inputs holds one queue per input port; entries are nil when the
	// stage is fused into its producer.
	inputs  []*transport.Queue
	outputs transport.Broadcast
	fused   bool
	// ticks is the coalescing eviction signal of windowed stages.
	ticks chan struct{}
	// open counts input ports not yet at end of stream.
	open atomic.Int32
}

// input returns the transport a producer puts into for port.
func (rn *runtimeNode) input(port int) transport.Transport {
	if rn.fused {
		return transport.NewDirect(func(ctx context.Context, rec *types.Record) error {
			return rn.stage.Process(ctx, port, rec, rn.emit)
		}, rn.outputs.Close)
	}
	return rn.inputs[port]
}

func (rn *runtimeNode) emit(ctx context.Context, rec *types.Record) error {
	return rn.outputs.Put(ctx, rec)
}

// tick posts an eviction signal unless one is already pending.
func (rn *runtimeNode) tick() {
	select {
	case rn.ticks <- struct{}{}:
	default:
	}
}

// Start opens every stage and launches one goroutine per source and per
// queued input port. Fused stages run inside their producer's goroutine.
func (f *Flow) Start(parent context.Context) error {
	if !f.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	f.mu.Lock()
	f.ctx, f.cancel = context.WithCancel(parent)
	f.startTime = time.Now()
	canceled := f.canceled
	f.mu.Unlock()
	if canceled {
		f.cancel()
	}

	for _, rn := range f.nodes {
		if err := rn.stage.Open(f.ctx); err != nil {
			f.fail(&stage.Error{StageID: rn.node.ID, Kind: rn.node.Kind, Err: err})
			break
		}
	}

	var wg sync.WaitGroup
	for _, rn := range f.nodes {
		switch {
		case rn.source != nil:
			wg.Add(1)
			go f.runSource(&wg, rn)
		case rn.fused:
		default:
			rn.open.Store(int32(len(rn.inputs)))
			for port := range rn.inputs {
				wg.Add(1)
				go f.runPort(&wg, rn, port)
			}
		}
	}

	timer := newEvictionTimer(f)
	timer.start()
	f.log.Info("flow %s started with %d stages", f.id, len(f.nodes))

	go func() {
		wg.Wait()
		timer.stop()
		f.closeStages()
		f.cancel()
		f.finish()
	}()
	return nil
}

func (f *Flow) runSource(wg *sync.WaitGroup, rn *runtimeNode) {
	defer wg.Done()
	defer rn.outputs.Close()
	defer f.recoverStage(rn)

	if err := rn.source.Run(f.ctx, rn.emit); err != nil {
		f.report(err)
	}
}

// runPort drains one input queue of rn. The last port to finish closes the
// stage's outputs.
func (f *Flow) runPort(wg *sync.WaitGroup, rn *runtimeNode, port int) {
	defer wg.Done()
	defer func() {
		if rn.open.Add(-1) == 0 {
			rn.outputs.Close()
		}
	}()
	defer f.recoverStage(rn)

	if err := f.drain(rn, port); err != nil {
		f.report(err)
	}
}

func (f *Flow) drain(rn *runtimeNode, port int) error {
	ctx := f.ctx
	in := rn.inputs[port].C()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case rec, ok := <-in:
			if !ok {
				return nil
			}
			if err := rn.stage.Process(ctx, port, rec, rn.emit); err != nil {
				return err
			}
		case <-rn.ticks:
			if err := rn.stage.Tick(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// report fails the flow unless err only reflects the flow being stopped.
func (f *Flow) report(err error) {
	if errors.Is(err, context.Canceled) && f.ctx.Err() != nil {
		return
	}
	f.fail(err)
}

func (f *Flow) recoverStage(rn *runtimeNode) {
	if r := recover(); r != nil {
		f.log.Error("stage %s panic recovered: %v\n%s", rn.node.ID, r, debug.Stack())
		f.fail(&stage.Error{StageID: rn.node.ID, Kind: rn.node.Kind, Err: fmt.Errorf("panic: %v", r)})
	}
}

// closeStages closes every stage. A close error fails a flow that would
// otherwise complete.
func (f *Flow) closeStages() {
	for _, rn := range f.nodes {
		if err := rn.stage.Close(); err != nil {
			f.log.Warn("close stage %s: %v", rn.node.ID, err)
			f.fail(err)
		}
	}
}
