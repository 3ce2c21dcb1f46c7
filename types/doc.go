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

/*
Package types holds the data model shared by every streamflow package.

# Records and types

A Record is an ordered list of values described by a Schema of TypedFields.
Field types are written the way plans spell them:

	INT64            non-nullable 64-bit integer
	DECIMAL(10,2)?   nullable exact decimal
	LIST<STRING>     list of strings

Coerce converts loosely typed input (decoded JSON, expression results) into
the canonical Go representation of a type. DECIMAL values use
github.com/shopspring/decimal; other conversions go through github.com/spf13/cast.

# Windows

A WindowSpec describes a sliding window relative to each record's event time.
Bucket width controls how finely aggregate state is sliced.

# Configuration

Config is loaded from YAML with LoadConfig and starts from one of the presets:

	cfg := types.DefaultConfig()        // 1024-slot queues, 500ms eviction
	cfg := types.HighThroughputConfig() // large queues
	cfg := types.LowLatencyConfig()     // short queues, fast eviction
	cfg := types.ReplayConfig()         // event-time eviction
*/
package types
