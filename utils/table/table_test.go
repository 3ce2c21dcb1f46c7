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

package table

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, []string{"name", "amount"}, [][]interface{}{
		{"Alice", decimal.RequireFromString("12.50")},
		{"Bob", nil},
	})
	want := "" +
		"+-------+--------+\n" +
		"| name  | amount |\n" +
		"+-------+--------+\n" +
		"| Alice | 12.5   |\n" +
		"| Bob   | NULL   |\n" +
		"+-------+--------+\n" +
		"(2 rows)\n"
	assert.Equal(t, want, buf.String())
}

func TestPrint_Empty(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, []string{"a"}, nil)
	assert.Equal(t, "(0 rows)\n", buf.String())
}

func TestPrintBorder(t *testing.T) {
	var buf bytes.Buffer
	PrintBorder(&buf, []int{1, 3})
	assert.Equal(t, "+---+-----+\n", buf.String())
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, "NULL"},
		{[]byte{0xab}, "0xab"},
		{int64(3), "3"},
		{[]interface{}{"a", int64(1)}, "[a 1]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCell(tt.in))
	}
}
