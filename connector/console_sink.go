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
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rulego/streamflow/types"
	"github.com/rulego/streamflow/utils/table"
)

// ConsoleSink prints records. In table mode rows are buffered and printed
// as one table on Close; otherwise each record prints on its own line.
type ConsoleSink struct {
	mu      sync.Mutex
	w       io.Writer
	asTable bool
	schema  types.Schema
	rows    [][]interface{}
}

// NewConsoleSink creates a console sink writing to w
func NewConsoleSink(w io.Writer, asTable bool) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{w: w, asTable: asTable}
}

func newConsoleSinkFromConfig(cfg Config) (Sink, error) {
	return NewConsoleSink(os.Stdout, cfg.Bool("table", true)), nil
}

func (s *ConsoleSink) Push(_ context.Context, rec *types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.asTable {
		_, err := fmt.Fprintln(s.w, rec.String())
		return err
	}
	if s.schema == nil {
		s.schema = rec.Schema
	}
	s.rows = append(s.rows, append([]interface{}{rec.Timestamp}, rec.Values...))
	return nil
}

// Flush prints the buffered rows and clears the buffer.
func (s *ConsoleSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.asTable {
		return
	}
	columns := append([]string{types.TimestampField}, s.schema.Names()...)
	table.Print(s.w, columns, s.rows)
	s.rows = nil
}

func (s *ConsoleSink) Close() error {
	s.Flush()
	return nil
}
