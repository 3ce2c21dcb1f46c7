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
	"testing"

	"github.com/golang/snappy"
	"github.com/rulego/streamflow/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = types.Schema{
	types.Field("id", "INT64"),
	types.Field("price", "DECIMAL(10,2)"),
	types.Field("name", "STRING?"),
	types.Field("ok", "BOOLEAN"),
}

func TestJSONCodec_Decode(t *testing.T) {
	c := NewJSONCodec()
	tests := []struct {
		name    string
		ev      types.RawEvent
		want    []interface{}
		wantErr bool
	}{
		{
			name: "all fields",
			ev:   types.NewRawEvent(42, []byte(`{"id": 9007199254740993, "price": 10.005, "name": "x", "ok": true}`)),
			want: []interface{}{int64(9007199254740993), decimal.RequireFromString("10.01"), "x", true},
		},
		{
			name: "missing nullable",
			ev:   types.NewRawEvent(1, []byte(`{"id": 1, "price": "2", "ok": "false"}`)),
			want: []interface{}{int64(1), decimal.RequireFromString("2"), nil, false},
		},
		{
			name: "attribute fallback",
			ev:   types.NewRawEvent(1, []byte(`{"id": 1, "price": 2, "ok": true}`)).WithAttribute("name", []byte("attr")),
			want: []interface{}{int64(1), decimal.RequireFromString("2"), "attr", true},
		},
		{
			name:    "missing non-nullable",
			ev:      types.NewRawEvent(1, []byte(`{"price": 2, "ok": true}`)),
			wantErr: true,
		},
		{
			name:    "malformed",
			ev:      types.NewRawEvent(1, []byte(`{"id":`)),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := c.Decode(tt.ev, testSchema)
			if tt.wantErr {
				var de *DecodeError
				assert.ErrorAs(t, err, &de)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ev.TimestampMillis, rec.Timestamp)
			require.Len(t, rec.Values, len(tt.want))
			for i, w := range tt.want {
				if d, ok := w.(decimal.Decimal); ok {
					assert.True(t, d.Equal(rec.Values[i].(decimal.Decimal)), "field %d: %v", i, rec.Values[i])
					continue
				}
				assert.Equal(t, w, rec.Values[i], "field %d", i)
			}
		})
	}
}

func TestJSONCodec_Encode(t *testing.T) {
	schema := types.Schema{
		types.Field("b", "INT64"),
		types.Field("a", "DECIMAL(10,2)"),
		types.Field("l", "LIST<STRING>"),
		types.Field("n", "STRING?"),
	}
	rec := types.NewRecord(schema, 5, int64(3), decimal.RequireFromString("1.50"), []interface{}{"x", "y"}, nil)
	body, err := NewJSONCodec().Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"b":3,"a":1.5,"l":["x","y"],"n":null}`, string(body))
}

func TestSnappyCodec(t *testing.T) {
	c := NewSnappyCodec(NewJSONCodec())
	assert.Equal(t, "json+snappy", c.Name())

	body := snappy.Encode(nil, []byte(`{"id": 7, "price": 1, "ok": false}`))
	rec, err := c.Decode(types.NewRawEvent(3, body), testSchema)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.Values[0])

	_, err = c.Decode(types.NewRawEvent(3, []byte("not snappy")), testSchema)
	assert.Error(t, err)

	out, err := c.Encode(rec)
	require.NoError(t, err)
	plain, err := snappy.Decode(nil, out)
	require.NoError(t, err)
	assert.Contains(t, string(plain), `"id":7`)
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{"json", "json+snappy"}, r.Names())

	c, err := r.Get("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = r.Get("JSON+Snappy")
	require.NoError(t, err)
	assert.Equal(t, "json+snappy", c.Name())

	_, err = r.Get("avro")
	assert.Error(t, err)
	assert.Error(t, r.Register(NewJSONCodec()))
}
