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

package connector

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rulego/streamflow/types"
	"github.com/spf13/cast"
)

// MemorySource replays a fixed list of events, then reports end of stream.
type MemorySource struct {
	mu     sync.Mutex
	events []types.RawEvent
	next   int
}

// NewMemorySource creates a source over events
func NewMemorySource(events ...types.RawEvent) *MemorySource {
	return &MemorySource{events: events}
}

func (s *MemorySource) Pull(ctx context.Context) (types.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return types.RawEvent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.events) {
		return types.RawEvent{}, ErrEndOfStream
	}
	ev := s.events[s.next]
	s.next++
	return ev, nil
}

// Remaining is the number of events not yet pulled.
func (s *MemorySource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events) - s.next
}

func (s *MemorySource) Close() error {
	return nil
}

// newMemorySourceFromConfig reads the "events" option: a list of
// {ts, body, attributes} maps where body is a JSON string or an object.
func newMemorySourceFromConfig(cfg Config) (Source, error) {
	raw, err := cast.ToSliceE(cfg.Options["events"])
	if err != nil {
		return nil, fmt.Errorf("memory source %s: events: %w", cfg.NodeID, err)
	}
	events := make([]types.RawEvent, 0, len(raw))
	for i, item := range raw {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, fmt.Errorf("memory source %s: event %d: %w", cfg.NodeID, i, err)
		}
		ts, err := cast.ToInt64E(m["ts"])
		if err != nil {
			return nil, fmt.Errorf("memory source %s: event %d ts: %w", cfg.NodeID, i, err)
		}
		var body []byte
		switch b := m["body"].(type) {
		case nil:
		case string:
			body = []byte(b)
		default:
			if body, err = json.Marshal(normalizeYAML(b)); err != nil {
				return nil, fmt.Errorf("memory source %s: event %d body: %w", cfg.NodeID, i, err)
			}
		}
		ev := types.NewRawEvent(ts, body)
		if attrs, ok := m["attributes"]; ok {
			for k, v := range cast.ToStringMapString(attrs) {
				ev = ev.WithAttribute(k, []byte(v))
			}
		}
		events = append(events, ev)
	}
	return NewMemorySource(events...), nil
}

// normalizeYAML turns the map[interface{}]interface{} values some YAML
// decoders produce into JSON-encodable maps.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[cast.ToString(k)] = normalizeYAML(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	}
	return v
}

// ChannelSource is fed by the application through Send and ends when
// Finish is called.
type ChannelSource struct {
	ch       chan types.RawEvent
	finished chan struct{}
	once     sync.Once
}

// NewChannelSource creates a source buffering up to size events
func NewChannelSource(size int) *ChannelSource {
	if size < 0 {
		size = 0
	}
	return &ChannelSource{
		ch:       make(chan types.RawEvent, size),
		finished: make(chan struct{}),
	}
}

// Send queues ev, blocking while the buffer is full.
func (s *ChannelSource) Send(ctx context.Context, ev types.RawEvent) error {
	select {
	case <-s.finished:
		return fmt.Errorf("send on finished source")
	default:
	}
	select {
	case s.ch <- ev:
		return nil
	case <-s.finished:
		return fmt.Errorf("send on finished source")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish marks the input complete. Events already sent are still delivered.
func (s *ChannelSource) Finish() {
	s.once.Do(func() { close(s.finished) })
}

func (s *ChannelSource) Pull(ctx context.Context) (types.RawEvent, error) {
	select {
	case ev := <-s.ch:
		return ev, nil
	case <-ctx.Done():
		return types.RawEvent{}, ctx.Err()
	case <-s.finished:
		// drain what was sent before Finish
		select {
		case ev := <-s.ch:
			return ev, nil
		default:
			return types.RawEvent{}, ErrEndOfStream
		}
	}
}

func (s *ChannelSource) Close() error {
	s.Finish()
	return nil
}

// FileSource reads one event per line of a file. Event time is the
// ingestion wall clock; plans replaying recorded data set the source's
// timestamp field instead.
type FileSource struct {
	f       *os.File
	scanner *bufio.Scanner
	now     func() time.Time
}

// NewFileSource opens path for reading
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &FileSource{f: f, scanner: scanner, now: time.Now}, nil
}

func newFileSourceFromConfig(cfg Config) (Source, error) {
	path := cfg.String("path", "")
	if path == "" {
		return nil, fmt.Errorf("file source %s: path option is required", cfg.NodeID)
	}
	return NewFileSource(path)
}

// Pull returns the next non-empty line.
func (s *FileSource) Pull(ctx context.Context) (types.RawEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return types.RawEvent{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return types.RawEvent{}, err
			}
			return types.RawEvent{}, ErrEndOfStream
		}
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		body := make([]byte, len(line))
		copy(body, line)
		return types.NewRawEvent(s.now().UnixMilli(), body), nil
	}
}

func (s *FileSource) Close() error {
	return s.f.Close()
}
