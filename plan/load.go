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

package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a plan file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf guesses the format from a file name or content type.
func FormatOf(name string) Format {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".json") || strings.Contains(lower, "application/json") {
		return FormatJSON
	}
	return FormatYAML
}

// Parse decodes and validates a plan.
func Parse(data []byte, format Format) (*Plan, error) {
	var p Plan
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &p)
	case FormatYAML, "":
		err = yaml.Unmarshal(data, &p)
	default:
		return nil, fmt.Errorf("unsupported plan format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads a plan file, choosing the format by extension.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	return Parse(data, FormatOf(filepath.Base(path)))
}

// Marshal encodes the plan.
func (p *Plan) Marshal(format Format) ([]byte, error) {
	if format == FormatJSON {
		return json.MarshalIndent(p, "", "  ")
	}
	return yaml.Marshal(p)
}
