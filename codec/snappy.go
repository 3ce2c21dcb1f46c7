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
	"github.com/golang/snappy"
	"github.com/rulego/streamflow/types"
)

// SnappyCodec wraps another codec with snappy block compression of the body.
type SnappyCodec struct {
	inner Codec
}

// NewSnappyCodec wraps inner
func NewSnappyCodec(inner Codec) *SnappyCodec {
	return &SnappyCodec{inner: inner}
}

// Name is the inner name with a +snappy suffix, e.g. json+snappy.
func (c *SnappyCodec) Name() string {
	return c.inner.Name() + "+snappy"
}

func (c *SnappyCodec) Decode(ev types.RawEvent, schema types.Schema) (*types.Record, error) {
	body, err := snappy.Decode(nil, ev.Body)
	if err != nil {
		return nil, &DecodeError{Codec: c.Name(), Err: err}
	}
	ev.Body = body
	return c.inner.Decode(ev, schema)
}

func (c *SnappyCodec) Encode(rec *types.Record) ([]byte, error) {
	body, err := c.inner.Encode(rec)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, body), nil
}
