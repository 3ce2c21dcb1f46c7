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
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rulego/streamflow/types"
	"github.com/shopspring/decimal"

	// pure Go SQLite driver
	_ "modernc.org/sqlite"
)

// SQLiteSink appends records to a table of a SQLite database. The table is
// created from the first record's schema: one column per field plus the
// event time in column _ts.
type SQLiteSink struct {
	db    *sql.DB
	table string

	mu     sync.Mutex
	insert *sql.Stmt
	schema types.Schema
}

// NewSQLiteSink opens the database at path ("" or ":memory:" for an
// in-memory database) and writes into table.
func NewSQLiteSink(path, table string) (*SQLiteSink, error) {
	if path == "" {
		path = ":memory:"
	}
	if table == "" {
		return nil, fmt.Errorf("sqlite sink: table is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// one connection keeps :memory: databases shared and writes serialized
	db.SetMaxOpenConns(1)
	return &SQLiteSink{db: db, table: table}, nil
}

func newSQLiteSinkFromConfig(cfg Config) (Sink, error) {
	return NewSQLiteSink(cfg.String("path", ""), cfg.String("table", cfg.NodeID))
}

// DB exposes the underlying database.
func (s *SQLiteSink) DB() *sql.DB {
	return s.db
}

func (s *SQLiteSink) Push(ctx context.Context, rec *types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insert == nil {
		if err := s.prepare(ctx, rec.Schema); err != nil {
			return err
		}
	}
	args := make([]interface{}, 0, len(rec.Values)+1)
	args = append(args, rec.Timestamp)
	for _, v := range rec.Values {
		arg, err := sqliteValue(v)
		if err != nil {
			return err
		}
		args = append(args, arg)
	}
	if _, err := s.insert.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("sqlite sink insert into %s: %w", s.table, err)
	}
	return nil
}

func (s *SQLiteSink) prepare(ctx context.Context, schema types.Schema) error {
	cols := make([]string, 0, len(schema)+1)
	marks := make([]string, 0, len(schema)+1)
	cols = append(cols, quoteIdent(types.TimestampField)+" INTEGER NOT NULL")
	marks = append(marks, "?")
	for _, f := range schema {
		col := quoteIdent(f.Name) + " " + sqliteType(f.Type)
		if !f.Type.Nullable {
			col += " NOT NULL"
		}
		cols = append(cols, col)
		marks = append(marks, "?")
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(s.table), strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite sink create table %s: %w", s.table, err)
	}
	names := append([]string{quoteIdent(types.TimestampField)}, quoteAll(schema.Names())...)
	stmt, err := s.db.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(s.table), strings.Join(names, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("sqlite sink prepare insert: %w", err)
	}
	s.insert = stmt
	s.schema = schema
	return nil
}

func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insert != nil {
		_ = s.insert.Close()
		s.insert = nil
	}
	return s.db.Close()
}

func sqliteType(t types.Type) string {
	switch t.Kind {
	case types.KindBoolean, types.KindInt32, types.KindInt64, types.KindTimestamp:
		return "INTEGER"
	case types.KindFloat32, types.KindFloat64:
		return "REAL"
	case types.KindBinary:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func sqliteValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil, int64, float64, string, []byte:
		return val, nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case int32:
		return int64(val), nil
	case float32:
		return float64(val), nil
	case decimal.Decimal:
		return val.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}
