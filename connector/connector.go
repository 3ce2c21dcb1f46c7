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

// Package connector defines the source and sink collaborators a flow reads
// events from and writes records to, and a registry of named factories.
package connector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rulego/streamflow/codec"
	"github.com/rulego/streamflow/types"
	"github.com/spf13/cast"
)

// ErrEndOfStream is returned by Source.Pull once the source is exhausted.
var ErrEndOfStream = errors.New("connector: end of stream")

// Source produces raw events. Pull blocks until an event is available, the
// source is exhausted (ErrEndOfStream) or ctx is done.
type Source interface {
	Pull(ctx context.Context) (types.RawEvent, error)
	Close() error
}

// Sink consumes output records.
type Sink interface {
	Push(ctx context.Context, rec *types.Record) error
	Close() error
}

// Config is handed to factories when a plan node is bound.
type Config struct {
	// NodeID is the plan node the connector is opened for.
	NodeID  string
	Codec   codec.Codec
	Options map[string]interface{}
}

// String returns the named option as a string.
func (c Config) String(key, def string) string {
	if v, ok := c.Options[key]; ok && v != nil {
		return cast.ToString(v)
	}
	return def
}

// Int returns the named option as an int.
func (c Config) Int(key string, def int) int {
	if v, ok := c.Options[key]; ok && v != nil {
		if n, err := cast.ToIntE(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the named option as a bool.
func (c Config) Bool(key string, def bool) bool {
	if v, ok := c.Options[key]; ok && v != nil {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return def
}

// SourceFactory opens a source for a plan node.
type SourceFactory func(cfg Config) (Source, error)

// SinkFactory opens a sink for a plan node.
type SinkFactory func(cfg Config) (Sink, error)

// Registry maps connector type names to factories. Engines own one
// registry each.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]SourceFactory
	sinks   map[string]SinkFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		sinks:   make(map[string]SinkFactory),
	}
}

// NewDefaultRegistry creates a registry with the built-in connectors:
// sources memory and file, sinks console, discard, sqlite and s3.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.RegisterSource("memory", newMemorySourceFromConfig)
	_ = r.RegisterSource("file", newFileSourceFromConfig)
	_ = r.RegisterSink("console", newConsoleSinkFromConfig)
	_ = r.RegisterSink("discard", func(Config) (Sink, error) { return Discard, nil })
	_ = r.RegisterSink("sqlite", newSQLiteSinkFromConfig)
	_ = r.RegisterSink("s3", newS3SinkFromConfig)
	return r
}

// RegisterSource adds a source factory. Type names are case-insensitive.
func (r *Registry) RegisterSource(typ string, f SourceFactory) error {
	typ = strings.ToLower(typ)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[typ]; exists {
		return fmt.Errorf("source type %s already registered", typ)
	}
	r.sources[typ] = f
	return nil
}

// RegisterSink adds a sink factory. Type names are case-insensitive.
func (r *Registry) RegisterSink(typ string, f SinkFactory) error {
	typ = strings.ToLower(typ)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sinks[typ]; exists {
		return fmt.Errorf("sink type %s already registered", typ)
	}
	r.sinks[typ] = f
	return nil
}

// BindSource registers an existing source under name. Every plan node naming
// it receives the same instance.
func (r *Registry) BindSource(name string, src Source) error {
	return r.RegisterSource(name, func(Config) (Source, error) { return src, nil })
}

// BindSink registers an existing sink under name.
func (r *Registry) BindSink(name string, sink Sink) error {
	return r.RegisterSink(name, func(Config) (Sink, error) { return sink, nil })
}

// Unregister removes a source or sink type.
func (r *Registry) Unregister(typ string) {
	typ = strings.ToLower(typ)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, typ)
	delete(r.sinks, typ)
}

// OpenSource opens a source of the given type.
func (r *Registry) OpenSource(typ string, cfg Config) (Source, error) {
	r.mu.RLock()
	f, ok := r.sources[strings.ToLower(typ)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source type %q", typ)
	}
	return f(cfg)
}

// OpenSink opens a sink of the given type.
func (r *Registry) OpenSink(typ string, cfg Config) (Sink, error) {
	r.mu.RLock()
	f, ok := r.sinks[strings.ToLower(typ)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown sink type %q", typ)
	}
	return f(cfg)
}

// SourceTypes lists the registered source types.
func (r *Registry) SourceTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.sources)
}

// SinkTypes lists the registered sink types.
func (r *Registry) SinkTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.sinks)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Discard accepts and drops every record.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Push(context.Context, *types.Record) error { return nil }
func (discardSink) Close() error                              { return nil }
