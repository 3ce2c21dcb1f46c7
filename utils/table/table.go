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

// Package table renders rows as a bordered console table.
package table

import (
	"fmt"
	"io"
	"strings"
)

// minWidth is the narrowest column.
const minWidth = 4

// Print writes rows under the given column headers, followed by a row
// count. Cells are formatted with %v; nil cells print as NULL.
func Print(w io.Writer, columns []string, rows [][]interface{}) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return
	}

	cells := make([][]string, len(rows))
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = max(len(col), minWidth)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i := range columns {
			s := ""
			if i < len(row) {
				s = FormatCell(row[i])
			}
			cells[r][i] = s
			widths[i] = max(widths[i], len(s))
		}
	}

	PrintBorder(w, widths)
	printRow(w, widths, columns)
	PrintBorder(w, widths)
	for _, row := range cells {
		printRow(w, widths, row)
	}
	PrintBorder(w, widths)
	fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

// FormatCell renders one value.
func FormatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("0x%x", val)
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprintf("%v", v)
}

func printRow(w io.Writer, widths []int, cells []string) {
	var sb strings.Builder
	sb.WriteByte('|')
	for i, c := range cells {
		fmt.Fprintf(&sb, " %-*s |", widths[i], c)
	}
	fmt.Fprintln(w, sb.String())
}

// PrintBorder writes a +----+ separator line for the column widths.
func PrintBorder(w io.Writer, widths []int) {
	var sb strings.Builder
	sb.WriteByte('+')
	for _, width := range widths {
		sb.WriteString(strings.Repeat("-", width+2))
		sb.WriteByte('+')
	}
	fmt.Fprintln(w, sb.String())
}
