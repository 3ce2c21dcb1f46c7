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

// Package logger provides leveled logging for the streamflow engine.
// Loggers can be scoped to a component (flow, stage, connector) with Named,
// and every scoped logger shares the level of its parent.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Level defines log levels
type Level int32

const (
	// DEBUG debug level, displays detailed debug information
	DEBUG Level = iota
	// INFO info level, displays general information
	INFO
	// WARN warning level, displays warning information
	WARN
	// ERROR error level, only displays error information
	ERROR
	// OFF disables logging
	OFF
)

// String returns string representation of log level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case OFF:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a configuration string such as "debug" or "WARN" into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "OFF", "NONE":
		return OFF, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger interface defines basic methods for logging
type Logger interface {
	// Debug records debug level logs
	Debug(format string, args ...interface{})
	// Info records info level logs
	Info(format string, args ...interface{})
	// Warn records warning level logs
	Warn(format string, args ...interface{})
	// Error records error level logs
	Error(format string, args ...interface{})
	// SetLevel sets the log level
	SetLevel(level Level)
	// Named returns a logger whose lines carry the given component name.
	Named(component string) Logger
}

// defaultLogger is the default log implementation
type defaultLogger struct {
	level  *atomic.Int32
	name   string
	logger *log.Logger
}

// NewLogger creates a new logger
// Parameters:
//   - level: log level
//   - output: output destination, such as os.Stdout, os.Stderr, or file
//
// Returns:
//   - Logger: logger instance
//
// Example:
//
//	log := NewLogger(INFO, os.Stdout)
//	log.Named("flow-1").Info("flow started")
func NewLogger(level Level, output io.Writer) Logger {
	lv := &atomic.Int32{}
	lv.Store(int32(level))
	return &defaultLogger{
		level:  lv,
		logger: log.New(output, "", 0),
	}
}

func (l *defaultLogger) enabled(level Level) bool {
	current := Level(l.level.Load())
	return current != OFF && current <= level
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	if l.enabled(DEBUG) {
		l.log(DEBUG, format, args...)
	}
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	if l.enabled(INFO) {
		l.log(INFO, format, args...)
	}
}

func (l *defaultLogger) Warn(format string, args ...interface{}) {
	if l.enabled(WARN) {
		l.log(WARN, format, args...)
	}
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	if l.enabled(ERROR) {
		l.log(ERROR, format, args...)
	}
}

func (l *defaultLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Named shares the output and the level with the parent logger.
func (l *defaultLogger) Named(component string) Logger {
	name := component
	if l.name != "" {
		name = l.name + "." + component
	}
	return &defaultLogger{level: l.level, name: name, logger: l.logger}
}

func (l *defaultLogger) log(level Level, format string, args ...interface{}) {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	message := fmt.Sprintf(format, args...)
	if l.name != "" {
		l.logger.Printf("[%s] [%s] [%s] %s", timestamp, level.String(), l.name, message)
		return
	}
	l.logger.Printf("[%s] [%s] %s", timestamp, level.String(), message)
}

// discardLogger is a logger that discards all log output
type discardLogger struct{}

// NewDiscardLogger creates a logger that discards all logs.
// Tests use it to keep output quiet.
func NewDiscardLogger() Logger {
	return discardLogger{}
}

func (discardLogger) Debug(format string, args ...interface{}) {}
func (discardLogger) Info(format string, args ...interface{})  {}
func (discardLogger) Warn(format string, args ...interface{})  {}
func (discardLogger) Error(format string, args ...interface{}) {}
func (discardLogger) SetLevel(level Level)                     {}
func (d discardLogger) Named(component string) Logger          { return d }

var defaultInstance atomic.Value

func init() {
	defaultInstance.Store(loggerHolder{NewLogger(INFO, os.Stdout)})
}

// loggerHolder keeps atomic.Value storing a single concrete type.
type loggerHolder struct{ Logger }

// SetDefault sets the process default logger
func SetDefault(logger Logger) {
	if logger == nil {
		logger = NewDiscardLogger()
	}
	defaultInstance.Store(loggerHolder{logger})
}

// GetDefault gets the process default logger
func GetDefault() Logger {
	return defaultInstance.Load().(loggerHolder).Logger
}

// Debug uses the default logger to record debug information
func Debug(format string, args ...interface{}) {
	GetDefault().Debug(format, args...)
}

// Info uses the default logger to record information
func Info(format string, args ...interface{}) {
	GetDefault().Info(format, args...)
}

// Warn uses the default logger to record warnings
func Warn(format string, args ...interface{}) {
	GetDefault().Warn(format, args...)
}

// Error uses the default logger to record errors
func Error(format string, args ...interface{}) {
	GetDefault().Error(format, args...)
}
