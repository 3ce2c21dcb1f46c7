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

package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{OFF, "OFF"},
		{Level(999), "UNKNOWN"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"", INFO, false},
		{"warning", WARN, false},
		{" error ", ERROR, false},
		{"off", OFF, false},
		{"verbose", INFO, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		loggerLevel  Level
		messageLevel Level
		shouldLog    bool
	}{
		{DEBUG, DEBUG, true},
		{DEBUG, ERROR, true},
		{INFO, DEBUG, false},
		{INFO, WARN, true},
		{WARN, INFO, false},
		{WARN, ERROR, true},
		{ERROR, WARN, false},
		{ERROR, ERROR, true},
		{OFF, ERROR, false},
	}

	for _, test := range tests {
		var buf bytes.Buffer
		log := NewLogger(test.loggerLevel, &buf)

		switch test.messageLevel {
		case DEBUG:
			log.Debug("test message")
		case INFO:
			log.Info("test message")
		case WARN:
			log.Warn("test message")
		case ERROR:
			log.Error("test message")
		}

		assert.Equal(t, test.shouldLog, strings.Contains(buf.String(), "test message"),
			"logger=%s message=%s", test.loggerLevel, test.messageLevel)
	}
}

func TestDefaultLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(DEBUG, &buf)

	log.Info("info message with %d number", 42)
	output := buf.String()
	assert.Contains(t, output, "info message with 42 number")
	assert.Contains(t, output, "[INFO]")
}

func TestDefaultLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger(INFO, &buf)
	stageLog := root.Named("flow-7").Named("aggregate")

	stageLog.Info("evicted %d buckets", 3)
	assert.Contains(t, buf.String(), "[flow-7.aggregate] evicted 3 buckets")

	// scoped loggers follow the parent's level
	buf.Reset()
	root.SetLevel(ERROR)
	stageLog.Info("hidden")
	assert.Empty(t, buf.String())
}

func TestDiscardLogger(t *testing.T) {
	log := NewDiscardLogger()
	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")
	log.SetLevel(DEBUG)
	assert.NotNil(t, log.Named("x"))
}

func TestSetDefault(t *testing.T) {
	original := GetDefault()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewLogger(WARN, &buf))

	Info("not shown")
	Warn("shown %s", "warning")
	Error("shown error")

	output := buf.String()
	assert.NotContains(t, output, "not shown")
	assert.Contains(t, output, "shown warning")
	assert.Contains(t, output, "shown error")

	SetDefault(nil)
	assert.NotNil(t, GetDefault())
}
