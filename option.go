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

package streamflow

import (
	"io"
	"time"

	"github.com/rulego/streamflow/codec"
	"github.com/rulego/streamflow/connector"
	"github.com/rulego/streamflow/functions"
	"github.com/rulego/streamflow/logger"
	"github.com/rulego/streamflow/types"
)

// Option modifies the engine's default behaviour. Options are applied in
// order, so presets such as WithHighThroughput should come before options
// that adjust single settings.
type Option func(*Engine)

// WithLogger sets the engine's logger.
//
// Example:
//
//	customLogger := logger.NewLogger(logger.DEBUG, os.Stderr)
//	engine, err := streamflow.New(streamflow.WithLogger(customLogger))
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithLogLevel sets the level of the engine's logger.
//
// Example:
//
//	engine, err := streamflow.New(streamflow.WithLogLevel(logger.DEBUG))
func WithLogLevel(level logger.Level) Option {
	return func(e *Engine) {
		e.logLevel = &level
	}
}

// WithLogOutput logs to output at level.
//
// Example:
//
//	logFile, _ := os.OpenFile("streamflow.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
//	engine, err := streamflow.New(streamflow.WithLogOutput(logFile, logger.INFO))
func WithLogOutput(output io.Writer, level logger.Level) Option {
	return func(e *Engine) {
		e.log = logger.NewLogger(level, output)
	}
}

// WithDiscardLog disables logging.
func WithDiscardLog() Option {
	return func(e *Engine) {
		e.log = logger.NewDiscardLogger()
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(config types.Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithHighThroughput applies types.HighThroughputConfig.
func WithHighThroughput() Option {
	return WithConfig(types.HighThroughputConfig())
}

// WithLowLatency applies types.LowLatencyConfig.
func WithLowLatency() Option {
	return WithConfig(types.LowLatencyConfig())
}

// WithReplay applies types.ReplayConfig: event-time eviction and long
// retention, for replaying recorded streams deterministically.
func WithReplay() Option {
	return WithConfig(types.ReplayConfig())
}

// WithQueueCapacity sets the capacity of every queue between stages.
func WithQueueCapacity(capacity int) Option {
	return func(e *Engine) {
		e.config.Transport.QueueCapacity = capacity
	}
}

// WithFuseStateless controls whether stateless stages run inside their
// producer's goroutine.
func WithFuseStateless(fuse bool) Option {
	return func(e *Engine) {
		e.config.Transport.FuseStateless = fuse
	}
}

// WithTimer sets the eviction timer interval and mode.
func WithTimer(interval time.Duration, mode types.TimerMode) Option {
	return func(e *Engine) {
		e.config.Timer.Interval = interval
		e.config.Timer.Mode = mode
	}
}

// WithBucketMillis sets the default aggregate bucket width.
func WithBucketMillis(ms int64) Option {
	return func(e *Engine) {
		e.config.Window.BucketMillis = ms
	}
}

// WithRetention sets how long terminal flows stay listed.
func WithRetention(retention time.Duration) Option {
	return func(e *Engine) {
		e.config.Registry.Retention = retention
	}
}

// WithSessionBuffer sets the delivery buffer of each session.
func WithSessionBuffer(size int) Option {
	return func(e *Engine) {
		e.config.Session.BufferSize = size
	}
}

// WithConnectors replaces the connector registry.
func WithConnectors(reg *connector.Registry) Option {
	return func(e *Engine) {
		e.connectors = reg
	}
}

// WithCodecs replaces the codec registry.
func WithCodecs(reg *codec.Registry) Option {
	return func(e *Engine) {
		e.codecs = reg
	}
}

// WithFunctions replaces the function registry. Functions must be
// registered before the first flow is submitted.
func WithFunctions(reg *functions.Registry) Option {
	return func(e *Engine) {
		e.functions = reg
	}
}
