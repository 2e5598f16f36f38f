package protocol

import (
	"encoding/json"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// marshalWire turns an encoded tree into the JSON bytes the transport
// would carry.
func marshalWire(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func TestDecodeScalars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  interface{}
	}{
		{"tagged int", `{"@int":"42"}`, 42},
		{"tagged int at int32 max", `{"@int":"2147483647"}`, 2147483647},
		{"tagged long", `{"@long":"9223372036854775807"}`, int64(math.MaxInt64)},
		{"tagged long at min", `{"@long":"-9223372036854775808"}`, int64(math.MinInt64)},
		{"tagged double", `{"@double":"3.5"}`, 3.5},
		{"tagged integral double", `{"@double":"9007199254740992"}`, float64(int64(1) << 53)},
		{"untagged string", `"plain"`, "plain"},
		{"untagged bool", `true`, true},
		{"untagged null", `null`, nil},
		{"untagged integer", `7`, int64(7)},
		{"untagged float", `7.25`, 7.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeMalformedTags(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"int overflowing 32 bits", `{"@int":"2147483648"}`},
		{"long overflowing 64 bits", `{"@long":"9223372036854775808"}`},
		{"non-numeric int", `{"@int":"abc"}`},
		{"malformed date", `{"@date":"2023-13-40"}`},
		{"date with time component", `{"@date":"2023-01-01T00:00:00Z"}`},
		{"malformed time", `{"@time":"yesterday"}`},
		{"time without offset", `{"@time":"2023-01-01 10:00:00"}`},
		{"bytes with bad base64", `{"@bytes":"%%%"}`},
		{"ref without id or name", `{"@ref":{"coll":{"@mod":"Users"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			require.Error(t, err)
		})
	}
}

func TestDecodeTemporalValues(t *testing.T) {
	got, err := Decode([]byte(`{"@date":"2023-07-04"}`))
	require.NoError(t, err)
	assert.Equal(t, NewDate(2023, time.July, 4), got)

	got, err = Decode([]byte(`{"@time":"2023-01-01T12:30:45.123456789+05:30"}`))
	require.NoError(t, err)
	ts, ok := got.(Time)
	require.True(t, ok)
	// Sub-second precision and the offset survive verbatim.
	assert.Equal(t, "2023-01-01T12:30:45.123456789+05:30", ts.ISO())
	assert.Equal(t, 123456789, ts.Time().Nanosecond())
}

func TestDecodeReferences(t *testing.T) {
	got, err := Decode([]byte(`{"@mod":"Users"}`))
	require.NoError(t, err)
	assert.Equal(t, &Module{Name: "Users"}, got)

	got, err = Decode([]byte(`{"@ref":{"id":"1234","coll":{"@mod":"Users"}}}`))
	require.NoError(t, err)
	assert.Equal(t, &Ref{ID: "1234", Collection: &Module{Name: "Users"}}, got)

	got, err = Decode([]byte(`{"@ref":{"name":"admins","coll":{"@mod":"Role"}}}`))
	require.NoError(t, err)
	assert.Equal(t, &NamedRef{Name: "admins", Collection: &Module{Name: "Role"}}, got)
}

func TestDecodeDocuments(t *testing.T) {
	t.Run("compact form splits into a ref", func(t *testing.T) {
		got, err := Decode([]byte(`{"@doc":"Users:1234"}`))
		require.NoError(t, err)
		assert.Equal(t, &Ref{ID: "1234", Collection: &Module{Name: "Users"}}, got)
	})

	t.Run("materialized document by id", func(t *testing.T) {
		got, err := Decode([]byte(`{"@doc":{
			"id":"1234",
			"coll":{"@mod":"Users"},
			"ts":{"@time":"2023-01-01T00:00:00.000Z"},
			"name":"Ada",
			"age":{"@int":"36"}
		}}`))
		require.NoError(t, err)
		doc, ok := got.(*Document)
		require.True(t, ok)
		assert.Equal(t, "1234", doc.ID)
		assert.Equal(t, &Module{Name: "Users"}, doc.Collection)
		require.NotNil(t, doc.TS)
		assert.Equal(t, "2023-01-01T00:00:00.000Z", doc.TS.ISO())
		assert.Equal(t, map[string]interface{}{"name": "Ada", "age": 36}, doc.Data)
	})

	t.Run("materialized named document keeps nested data", func(t *testing.T) {
		got, err := Decode([]byte(`{"@doc":{
			"name":"Users",
			"coll":{"@mod":"Collection"},
			"ts":{"@time":"2023-01-01T00:00:00.000Z"},
			"data":{"indexed":true}
		}}`))
		require.NoError(t, err)
		doc, ok := got.(*NamedDocument)
		require.True(t, ok)
		assert.Equal(t, "Users", doc.Name)
		assert.Equal(t, &Module{Name: "Collection"}, doc.Collection)
		assert.Equal(t, map[string]interface{}{"indexed": true}, doc.Data)
	})

	t.Run("non-string id is rejected", func(t *testing.T) {
		_, err := Decode([]byte(`{"@doc":{
			"id":{"@long":"1"},
			"coll":{"@mod":"Users"},
			"ts":{"@time":"2023-01-01T00:00:00.000Z"}
		}}`))
		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, "@doc", decodeErr.Tag)
	})

	t.Run("non-string name is rejected", func(t *testing.T) {
		_, err := Decode([]byte(`{"@doc":{
			"name":{"@int":"7"},
			"coll":{"@mod":"Collection"}
		}}`))
		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, "@doc", decodeErr.Tag)
	})

	t.Run("neither id nor name yields a null document", func(t *testing.T) {
		got, err := Decode([]byte(`{"@doc":{
			"ref":{"@ref":{"id":"404","coll":{"@mod":"Users"}}},
			"cause":"not found"
		}}`))
		require.NoError(t, err)
		doc, ok := got.(*NullDocument)
		require.True(t, ok)
		assert.Equal(t, "not found", doc.Cause)
		assert.Equal(t, &Ref{ID: "404", Collection: &Module{Name: "Users"}}, doc.Ref)
	})
}

func TestDecodeSets(t *testing.T) {
	got, err := Decode([]byte(`{"@set":{"data":[{"@int":"1"},{"@int":"2"}],"after":"cursor123"}}`))
	require.NoError(t, err)
	assert.Equal(t, &Page{Data: []interface{}{1, 2}, After: "cursor123"}, got)

	got, err = Decode([]byte(`{"@set":{"data":[]}}`))
	require.NoError(t, err)
	page := got.(*Page)
	assert.Empty(t, page.Data)
	assert.Empty(t, page.After)

	// A bare token is a set the server left unmaterialized.
	got, err = Decode([]byte(`{"@set":"opaque-token"}`))
	require.NoError(t, err)
	assert.Equal(t, &Page{After: "opaque-token"}, got)
}

func TestDecodeObjectEscape(t *testing.T) {
	t.Run("unwraps exactly one level", func(t *testing.T) {
		got, err := Decode([]byte(`{"@object":{"@date":"not a date"}}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"@date": "not a date"}, got)
	})

	t.Run("values below the escape still decode", func(t *testing.T) {
		got, err := Decode([]byte(`{"@object":{"@meta":{"@int":"5"}}}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"@meta": 5}, got)
	})

	t.Run("unreserved at-keys pass through untouched", func(t *testing.T) {
		got, err := Decode([]byte(`{"@extras":{"note":"kept"},"plain":1}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{
			"@extras": map[string]interface{}{"note": "kept"},
			"plain":   int64(1),
		}, got)
	})
}

func TestDecodeBytes(t *testing.T) {
	got, err := Decode([]byte(`{"@bytes":"aGVsbG8="}`))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

// Round-trip: encode, marshal, decode, and expect the semantic value back.
func TestRoundTrip(t *testing.T) {
	in := map[string]interface{}{
		"str":    "text",
		"flag":   true,
		"small":  12,
		"wide":   int64(1) << 40,
		"frac":   2.5,
		"date":   NewDate(2001, time.September, 9),
		"bytes":  []byte{0x01, 0x02},
		"nested": []interface{}{1, "two", nil},
	}

	encoded, err := Encode(in)
	require.NoError(t, err)
	wire, err := marshalWire(encoded)
	require.NoError(t, err)
	decoded, err := Decode(wire)
	require.NoError(t, err)

	got, ok := decoded.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "text", got["str"])
	assert.Equal(t, true, got["flag"])
	assert.Equal(t, 12, got["small"])
	assert.Equal(t, int64(1)<<40, got["wide"])
	assert.Equal(t, 2.5, got["frac"])
	assert.Equal(t, NewDate(2001, time.September, 9), got["date"])
	assert.Equal(t, []byte{0x01, 0x02}, got["bytes"])
	assert.Equal(t, []interface{}{1, "two", nil}, got["nested"])
}

func TestRoundTripBigInt(t *testing.T) {
	// Longs ride the wire as decimal strings, so a big.Int within the
	// 64-bit range comes back as an exact int64.
	in := new(big.Int).SetInt64(math.MaxInt64)
	encoded, err := Encode(in)
	require.NoError(t, err)
	wire, err := marshalWire(encoded)
	require.NoError(t, err)
	decoded, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), decoded)
}

func TestRoundTripTime(t *testing.T) {
	ts, err := ParseTime("1999-12-31T23:59:59.999999999Z")
	require.NoError(t, err)
	encoded, err := Encode(ts)
	require.NoError(t, err)
	wire, err := marshalWire(encoded)
	require.NoError(t, err)
	decoded, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, ts, decoded)
}
