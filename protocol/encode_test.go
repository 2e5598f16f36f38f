package protocol

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeNumericBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  map[string]interface{}
	}{
		{"int32 max stays int", float64(math.MaxInt32), map[string]interface{}{"@int": "2147483647"}},
		{"int32 max plus one becomes long", float64(math.MaxInt32) + 1, map[string]interface{}{"@long": "2147483648"}},
		{"int32 min stays int", float64(math.MinInt32), map[string]interface{}{"@int": "-2147483648"}},
		{"int32 min minus one becomes long", float64(math.MinInt32) - 1, map[string]interface{}{"@long": "-2147483649"}},
		{"max safe integer stays long", float64(1<<53 - 1), map[string]interface{}{"@long": "9007199254740991"}},
		{"beyond safe integer becomes double", float64(int64(1) << 53), map[string]interface{}{"@double": "9007199254740992"}},
		{"negative max safe integer stays long", -float64(1<<53 - 1), map[string]interface{}{"@long": "-9007199254740991"}},
		{"negative beyond safe integer becomes double", -float64(int64(1) << 53), map[string]interface{}{"@double": "-9007199254740992"}},
		{"fractional value is always double", 3.5, map[string]interface{}{"@double": "3.5"}},
		{"small fractional value is always double", math.SmallestNonzeroFloat64, map[string]interface{}{"@double": "5e-324"}},
		{"typed int64 max is long", int64(math.MaxInt64), map[string]interface{}{"@long": "9223372036854775807"}},
		{"typed int64 min is long", int64(math.MinInt64), map[string]interface{}{"@long": "-9223372036854775808"}},
		{"plain int in int32 range is int", 42, map[string]interface{}{"@int": "42"}},
		{"plain int beyond int32 range is long", 1 << 40, map[string]interface{}{"@long": "1099511627776"}},
		{"big int at long max", new(big.Int).SetInt64(math.MaxInt64), map[string]interface{}{"@long": "9223372036854775807"}},
		{"big int at long min", new(big.Int).SetInt64(math.MinInt64), map[string]interface{}{"@long": "-9223372036854775808"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeRangeFailures(t *testing.T) {
	overflow := new(big.Int).Add(big.NewInt(math.MaxInt64), big.NewInt(1))
	underflow := new(big.Int).Sub(big.NewInt(math.MinInt64), big.NewInt(1))

	tests := []struct {
		name  string
		input interface{}
	}{
		{"big int above long max", overflow},
		{"big int below long min", underflow},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
		{"not a number", math.NaN()},
		{"uint64 above long max", uint64(math.MaxUint64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.input)
			require.Error(t, err)
			var rangeErr *RangeError
			assert.ErrorAs(t, err, &rangeErr)
		})
	}
}

func TestEncodeConflictWrapping(t *testing.T) {
	t.Run("top level conflict wraps the whole object", func(t *testing.T) {
		got, err := Encode(map[string]interface{}{"@foo": true})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{
			"@object": map[string]interface{}{"@foo": true},
		}, got)
	})

	t.Run("each nesting level wraps independently", func(t *testing.T) {
		got, err := Encode(map[string]interface{}{
			"@date": map[string]interface{}{
				"@date": map[string]interface{}{
					"@date": "1970-01-01",
				},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{
			"@object": map[string]interface{}{
				"@date": map[string]interface{}{
					"@object": map[string]interface{}{
						"@date": map[string]interface{}{
							"@object": map[string]interface{}{
								"@date": "1970-01-01",
							},
						},
					},
				},
			},
		}, got)
	})

	t.Run("clean keys stay unwrapped", func(t *testing.T) {
		got, err := Encode(map[string]interface{}{"name": "Ada", "alive": false})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"name": "Ada", "alive": false}, got)
	})
}

func TestEncodeTemporalValues(t *testing.T) {
	t.Run("date uses the plain form", func(t *testing.T) {
		got, err := Encode(NewDate(2023, time.July, 4))
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"@date": "2023-07-04"}, got)
	})

	t.Run("instant preserves the supplied string exactly", func(t *testing.T) {
		ts, err := ParseTime("2023-01-01T12:30:45.123456789+05:30")
		require.NoError(t, err)
		got, err := Encode(ts)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"@time": "2023-01-01T12:30:45.123456789+05:30"}, got)
	})

	t.Run("native time.Time normalizes to UTC milliseconds", func(t *testing.T) {
		loc := time.FixedZone("IST", 5*3600+1800)
		in := time.Date(2023, time.January, 1, 12, 30, 45, 123456789, loc)
		got, err := Encode(in)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"@time": "2023-01-01T07:00:45.123Z"}, got)
	})
}

func TestEncodeReferences(t *testing.T) {
	coll := &Module{Name: "Users"}

	tests := []struct {
		name  string
		input interface{}
		want  interface{}
	}{
		{
			"module",
			coll,
			map[string]interface{}{"@mod": "Users"},
		},
		{
			"ref by id",
			&Ref{ID: "1234", Collection: coll},
			map[string]interface{}{"@ref": map[string]interface{}{
				"id":   "1234",
				"coll": map[string]interface{}{"@mod": "Users"},
			}},
		},
		{
			"named ref",
			&NamedRef{Name: "admins", Collection: &Module{Name: "Role"}},
			map[string]interface{}{"@ref": map[string]interface{}{
				"name": "admins",
				"coll": map[string]interface{}{"@mod": "Role"},
			}},
		},
		{
			"materialized document encodes as its ref",
			&Document{ID: "1234", Collection: coll, Data: map[string]interface{}{"name": "Ada"}},
			map[string]interface{}{"@ref": map[string]interface{}{
				"id":   "1234",
				"coll": map[string]interface{}{"@mod": "Users"},
			}},
		},
		{
			"null document encodes as its ref",
			&NullDocument{Ref: &Ref{ID: "404", Collection: coll}, Cause: "not found"},
			map[string]interface{}{"@ref": map[string]interface{}{
				"id":   "404",
				"coll": map[string]interface{}{"@mod": "Users"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodePage(t *testing.T) {
	got, err := Encode(&Page{Data: []interface{}{1, 2}, After: "cursor123"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"@set": map[string]interface{}{
		"data":  []interface{}{map[string]interface{}{"@int": "1"}, map[string]interface{}{"@int": "2"}},
		"after": "cursor123",
	}}, got)

	got, err = Encode(&Page{Data: []interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"@set": map[string]interface{}{
		"data": []interface{}{},
	}}, got)
}

func TestEncodeStructsAndSlices(t *testing.T) {
	type user struct {
		Name     string `fauna:"name"`
		Age      int    `fauna:"age"`
		Internal string `fauna:"-"`
		Note     string
	}

	got, err := Encode(user{Name: "Ada", Age: 36, Internal: "skip", Note: "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name": "Ada",
		"age":  map[string]interface{}{"@int": "36"},
		"Note": "x",
	}, got)

	got, err = Encode([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, got)

	got, err = Encode(map[string]int{"n": 7})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"n": map[string]interface{}{"@int": "7"}}, got)
}

func TestEncodeBytes(t *testing.T) {
	got, err := Encode([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"@bytes": "aGVsbG8="}, got)
}

func TestEncodeUnsupportedType(t *testing.T) {
	_, err := Encode(make(chan int))
	require.Error(t, err)
	var unsupported *UnsupportedTypeError
	assert.ErrorAs(t, err, &unsupported)
}
