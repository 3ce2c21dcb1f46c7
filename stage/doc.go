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

// Package stage implements the runtime operators of a flow.
//
// Every stage follows the same contract: the scheduler calls Process for
// each input record on the stage's own goroutine and the stage emits zero
// or more records through the Emitter it is given. Stateless stages
// (Filter, Project) keep nothing between records. Aggregate keeps bucketed
// accumulator state per group key and Join keeps both input sides in
// sharded windowed stores; both expire state in Tick, which the eviction
// timer delivers on the same goroutine that processes records.
//
// Per-record failures are returned as *Error and fail the whole flow.
package stage
