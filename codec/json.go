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

package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/rulego/streamflow/types"
	"github.com/shopspring/decimal"
)

// JSONName is the registry name of the JSON codec.
const JSONName = "json"

// JSONCodec reads a JSON object per event. Each schema field is taken from
// the object member of the same name, falling back to the event attribute
// of that name; absent fields are null.
type JSONCodec struct{}

// NewJSONCodec creates a JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (c *JSONCodec) Name() string {
	return JSONName
}

func (c *JSONCodec) Decode(ev types.RawEvent, schema types.Schema) (*types.Record, error) {
	obj := map[string]interface{}{}
	if len(bytes.TrimSpace(ev.Body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(ev.Body))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			return nil, &DecodeError{Codec: JSONName, Err: err}
		}
	}
	values := make([]interface{}, len(schema))
	for i, f := range schema {
		v, ok := obj[f.Name]
		if !ok {
			if attr, found := ev.Attributes[f.Name]; found {
				v = string(attr)
			}
		}
		if s, isStr := v.(string); isStr && f.Type.Kind == types.KindBinary {
			if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
				v = raw
			}
		}
		values[i] = v
	}
	rec, err := types.BuildRecord(schema, ev.TimestampMillis, values)
	if err != nil {
		return nil, &DecodeError{Codec: JSONName, Err: err}
	}
	return rec, nil
}

// Encode writes the record as a JSON object with members in schema order.
// Decimals are written as JSON numbers with their exact digits.
func (c *JSONCodec) Encode(rec *types.Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range rec.Schema {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		if err := writeJSONValue(&buf, rec.Values[i]); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONValue(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case decimal.Decimal:
		buf.WriteString(val.String())
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
