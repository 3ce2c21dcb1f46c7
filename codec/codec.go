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

// Package codec converts between the raw events exchanged with sources and
// sinks and the typed records flowing between stages.
package codec

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rulego/streamflow/types"
)

// Codec decodes raw event bodies into records of a declared schema and
// encodes records back into bodies.
type Codec interface {
	Name() string
	Decode(ev types.RawEvent, schema types.Schema) (*types.Record, error)
	Encode(rec *types.Record) ([]byte, error)
}

// DecodeError reports a body that could not be turned into a record.
type DecodeError struct {
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s decode: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Registry maps codec names to codecs.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// NewDefaultRegistry creates a registry holding json and json+snappy.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	jsonCodec := NewJSONCodec()
	_ = r.Register(jsonCodec)
	_ = r.Register(NewSnappyCodec(jsonCodec))
	return r
}

// Register adds a codec under its name.
func (r *Registry) Register(c Codec) error {
	name := strings.ToLower(c.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.codecs[name]; exists {
		return fmt.Errorf("codec %s already registered", name)
	}
	r.codecs[name] = c
	return nil
}

// Get looks up a codec. An empty name selects json.
func (r *Registry) Get(name string) (Codec, error) {
	if name == "" {
		name = JSONName
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", name)
	}
	return c, nil
}

// Names lists the registered codecs
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
