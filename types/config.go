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
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TimerMode selects how the eviction timer advances.
type TimerMode string

const (
	// TimerModeWall ticks on a wall-clock interval.
	TimerModeWall TimerMode = "wall"
	// TimerModeEvent evicts inline whenever event time advances by an interval,
	// which keeps replays and tests deterministic.
	TimerModeEvent TimerMode = "event"
)

// Config is the engine configuration
type Config struct {
	Transport TransportConfig `json:"transport" yaml:"transport"`
	Timer     TimerConfig     `json:"timer" yaml:"timer"`
	Window    WindowConfig    `json:"window" yaml:"window"`
	Registry  RegistryConfig  `json:"registry" yaml:"registry"`
	Session   SessionConfig   `json:"session" yaml:"session"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// TransportConfig configures the queues between stages
type TransportConfig struct {
	QueueCapacity int  `json:"queueCapacity" yaml:"queueCapacity"` // bounded queue capacity
	FuseStateless bool `json:"fuseStateless" yaml:"fuseStateless"` // run filter/project inside the producer goroutine
}

// TimerConfig configures the per-flow eviction timer
type TimerConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
	Mode     TimerMode     `json:"mode" yaml:"mode"`
}

// WindowConfig holds window defaults
type WindowConfig struct {
	BucketMillis int64 `json:"bucketMillis" yaml:"bucketMillis"` // default aggregate bucket width
}

// RegistryConfig configures the flow registry
type RegistryConfig struct {
	// Retention is how long a terminal flow with no subscribers stays listed.
	Retention time.Duration `json:"retention" yaml:"retention"`
}

// SessionConfig configures control-plane sessions
type SessionConfig struct {
	BufferSize int `json:"bufferSize" yaml:"bufferSize"`
}

// ServerConfig configures the HTTP control plane
type ServerConfig struct {
	Addr        string `json:"addr" yaml:"addr"`
	MetricsPath string `json:"metricsPath" yaml:"metricsPath"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			QueueCapacity: 1024,
			FuseStateless: true,
		},
		Timer: TimerConfig{
			Interval: 500 * time.Millisecond,
			Mode:     TimerModeWall,
		},
		Window: WindowConfig{
			BucketMillis: DefaultBucketMillis,
		},
		Registry: RegistryConfig{
			Retention: 5 * time.Minute,
		},
		Session: SessionConfig{
			BufferSize: 256,
		},
		Server: ServerConfig{
			Addr:        ":9090",
			MetricsPath: "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// HighThroughputConfig uses large queues and a slower eviction cadence
func HighThroughputConfig() Config {
	config := DefaultConfig()
	config.Transport.QueueCapacity = 16384
	config.Timer.Interval = time.Second
	config.Session.BufferSize = 4096
	return config
}

// LowLatencyConfig keeps queues short so slow consumers throttle producers early
func LowLatencyConfig() Config {
	config := DefaultConfig()
	config.Transport.QueueCapacity = 64
	config.Timer.Interval = 100 * time.Millisecond
	config.Session.BufferSize = 64
	return config
}

// ReplayConfig drives eviction from event time for deterministic replays
func ReplayConfig() Config {
	config := DefaultConfig()
	config.Timer.Mode = TimerModeEvent
	config.Registry.Retention = time.Hour
	return config
}

// Validate checks the configuration for values the engine cannot run with
func (c Config) Validate() error {
	if c.Transport.QueueCapacity <= 0 {
		return fmt.Errorf("transport.queueCapacity must be > 0, got %d", c.Transport.QueueCapacity)
	}
	if c.Timer.Interval <= 0 {
		return fmt.Errorf("timer.interval must be > 0, got %s", c.Timer.Interval)
	}
	switch c.Timer.Mode {
	case TimerModeWall, TimerModeEvent:
	default:
		return fmt.Errorf("timer.mode must be %q or %q, got %q", TimerModeWall, TimerModeEvent, c.Timer.Mode)
	}
	if c.Window.BucketMillis <= 0 {
		return fmt.Errorf("window.bucketMillis must be > 0, got %d", c.Window.BucketMillis)
	}
	if c.Registry.Retention < 0 {
		return fmt.Errorf("registry.retention must be >= 0, got %s", c.Registry.Retention)
	}
	if c.Session.BufferSize < 0 {
		return fmt.Errorf("session.bufferSize must be >= 0, got %d", c.Session.BufferSize)
	}
	return nil
}

// ParseConfig overlays YAML (or JSON, which YAML accepts) onto the defaults.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// LoadConfig reads a configuration file. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}
