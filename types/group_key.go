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

package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// GroupKey is the comparable encoding of a tuple of key values, used to
// index aggregate buckets and join entries.
type GroupKey string

// EmptyGroupKey is the single implicit group of an aggregate with no GROUP BY.
const EmptyGroupKey GroupKey = ""

const (
	keySeparator = "\x1f"
	nullToken    = "\x00"
)

// NewGroupKey encodes values so that equal tuples produce equal keys and a
// string "1" never collides with the integer 1.
func NewGroupKey(values ...interface{}) GroupKey {
	if len(values) == 0 {
		return EmptyGroupKey
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = encodeKeyPart(v)
	}
	return GroupKey(strings.Join(parts, keySeparator))
}

// HasNull reports whether any component of the tuple is null.
func HasNull(values ...interface{}) bool {
	for _, v := range values {
		if v == nil {
			return true
		}
	}
	return false
}

func encodeKeyPart(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return nullToken
	case string:
		return "s:" + val
	case []byte:
		return "b:" + hex.EncodeToString(val)
	case bool:
		if val {
			return "t"
		}
		return "f"
	case int32:
		return fmt.Sprintf("i:%d", val)
	case int64:
		return fmt.Sprintf("i:%d", val)
	case int:
		return fmt.Sprintf("i:%d", val)
	case float32:
		return fmt.Sprintf("f:%v", float64(val))
	case float64:
		return fmt.Sprintf("f:%v", val)
	case decimal.Decimal:
		return "d:" + val.String()
	case Window:
		return fmt.Sprintf("w:%d:%d", val.Start, val.End)
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}
