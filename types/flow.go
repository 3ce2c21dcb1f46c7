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
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlowID identifies a submitted flow. IDs increase monotonically.
type FlowID uint64

func (id FlowID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseFlowID parses the decimal form produced by String.
func ParseFlowID(s string) (FlowID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid flow id %q: %w", s, err)
	}
	return FlowID(n), nil
}

// SessionID identifies a control-plane session.
type SessionID string

// FlowState is the lifecycle state of a flow.
type FlowState int32

const (
	FlowRunning FlowState = iota
	FlowCanceled
	FlowComplete
	FlowError
)

func (s FlowState) String() string {
	switch s {
	case FlowRunning:
		return "RUNNING"
	case FlowCanceled:
		return "CANCELED"
	case FlowComplete:
		return "COMPLETE"
	case FlowError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether the flow has stopped.
func (s FlowState) IsTerminal() bool {
	return s != FlowRunning
}

func (s FlowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *FlowState) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "RUNNING":
		*s = FlowRunning
	case "CANCELED":
		*s = FlowCanceled
	case "COMPLETE":
		*s = FlowComplete
	case "ERROR":
		*s = FlowError
	default:
		return fmt.Errorf("unknown flow state %q", text)
	}
	return nil
}

// StageStats are the record counters of one stage.
type StageStats struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	In      int64  `json:"in"`
	Out     int64  `json:"out"`
	Dropped int64  `json:"dropped"`
	Evicted int64  `json:"evicted"`
}

// FlowSummary is the externally visible view of a flow.
type FlowSummary struct {
	ID        FlowID       `json:"id"`
	State     FlowState    `json:"state"`
	Query     string       `json:"query"`
	StartTime time.Time    `json:"startTime"`
	EndTime   time.Time    `json:"endTime,omitempty"`
	Error     string       `json:"error,omitempty"`
	Stages    []StageStats `json:"stages,omitempty"`
}
