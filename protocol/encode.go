package protocol

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Integer bounds for tag selection. maxSafeInteger is the largest integer
// a float64 represents exactly; integral doubles beyond it cannot be
// trusted as exact, so they stay doubles on the wire.
const (
	maxInt32       = int64(math.MaxInt32)
	minInt32       = int64(math.MinInt32)
	maxSafeInteger = float64(1<<53 - 1)
)

var (
	maxLong = big.NewInt(math.MaxInt64)
	minLong = big.NewInt(math.MinInt64)
)

// Encode converts a native Go value into its tagged wire representation,
// ready for JSON marshaling. Encoding is lossless for every representable
// value; out-of-range integers and non-finite doubles fail with a
// *RangeError instead of truncating.
func Encode(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case bool:
		return v, nil
	case int:
		return encodeInt(int64(v)), nil
	case int8:
		return encodeInt(int64(v)), nil
	case int16:
		return encodeInt(int64(v)), nil
	case int32:
		return encodeInt(int64(v)), nil
	case int64:
		return encodeInt(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, &RangeError{Message: fmt.Sprintf("%d exceeds the 64-bit signed integer range", v)}
		}
		return encodeInt(int64(v)), nil
	case uint8:
		return encodeInt(int64(v)), nil
	case uint16:
		return encodeInt(int64(v)), nil
	case uint32:
		return encodeInt(int64(v)), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, &RangeError{Message: fmt.Sprintf("%d exceeds the 64-bit signed integer range", v)}
		}
		return encodeInt(int64(v)), nil
	case float32:
		return encodeFloat(float64(v))
	case float64:
		return encodeFloat(v)
	case *big.Int:
		return encodeBigInt(v)
	case big.Int:
		return encodeBigInt(&v)
	case []byte:
		return tagged(tagBytes, base64.StdEncoding.EncodeToString(v)), nil
	case Date:
		return tagged(tagDate, v.String()), nil
	case *Date:
		return tagged(tagDate, v.String()), nil
	case Time:
		return tagged(tagTime, v.ISO()), nil
	case *Time:
		return tagged(tagTime, v.ISO()), nil
	case time.Time:
		return tagged(tagTime, v.UTC().Format(timeWireFormat)), nil
	case Module:
		return tagged(tagMod, v.Name), nil
	case *Module:
		return tagged(tagMod, v.Name), nil
	case Ref:
		return encodeRef(v.ID, "", v.Collection)
	case *Ref:
		return encodeRef(v.ID, "", v.Collection)
	case NamedRef:
		return encodeRef("", v.Name, v.Collection)
	case *NamedRef:
		return encodeRef("", v.Name, v.Collection)
	case Document:
		return encodeRef(v.ID, "", v.Collection)
	case *Document:
		return encodeRef(v.ID, "", v.Collection)
	case NamedDocument:
		return encodeRef("", v.Name, v.Collection)
	case *NamedDocument:
		return encodeRef("", v.Name, v.Collection)
	case NullDocument:
		return Encode(v.Ref)
	case *NullDocument:
		return Encode(v.Ref)
	case Page:
		return encodePage(&v)
	case *Page:
		return encodePage(v)
	case map[string]interface{}:
		return encodeMapFields(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			enc, err := Encode(item)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	}
	return encodeReflect(reflect.ValueOf(v))
}

func tagged(tag string, value interface{}) map[string]interface{} {
	return map[string]interface{}{tag: value}
}

// encodeInt picks @int or @long by magnitude. Tagged numbers travel as
// decimal strings so the transport's JSON layer cannot lose precision.
func encodeInt(v int64) map[string]interface{} {
	if v >= minInt32 && v <= maxInt32 {
		return tagged(tagInt, strconv.FormatInt(v, 10))
	}
	return tagged(tagLong, strconv.FormatInt(v, 10))
}

func encodeFloat(v float64) (interface{}, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, &RangeError{Message: "cannot encode a non-finite number"}
	}
	if v == math.Trunc(v) {
		if v >= float64(minInt32) && v <= float64(maxInt32) {
			return tagged(tagInt, strconv.FormatInt(int64(v), 10)), nil
		}
		if math.Abs(v) <= maxSafeInteger {
			return tagged(tagLong, strconv.FormatInt(int64(v), 10)), nil
		}
		// Past the exact-integer bound of float64 the value cannot be
		// trusted as an exact long, so it stays a double.
	}
	return tagged(tagDouble, formatDouble(v)), nil
}

func encodeBigInt(v *big.Int) (interface{}, error) {
	if v.Cmp(minLong) < 0 || v.Cmp(maxLong) > 0 {
		return nil, &RangeError{Message: fmt.Sprintf("%s exceeds the 64-bit signed integer range", v.String())}
	}
	return tagged(tagLong, v.String()), nil
}

// formatDouble renders a float without a spurious exponent for ordinary
// magnitudes.
func formatDouble(v float64) string {
	if av := math.Abs(v); av != 0 && (av >= 1e21 || av < 1e-6) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func encodeRef(id, name string, coll *Module) (interface{}, error) {
	if coll == nil {
		return nil, &UnsupportedTypeError{GoType: "reference without a collection"}
	}
	body := map[string]interface{}{"coll": tagged(tagMod, coll.Name)}
	if name != "" {
		body["name"] = name
	} else {
		body["id"] = id
	}
	return tagged(tagRef, body), nil
}

func encodePage(p *Page) (interface{}, error) {
	data := make([]interface{}, len(p.Data))
	for i, item := range p.Data {
		enc, err := Encode(item)
		if err != nil {
			return nil, err
		}
		data[i] = enc
	}
	body := map[string]interface{}{"data": data}
	if p.After != "" {
		body["after"] = p.After
	}
	return tagged(tagSet, body), nil
}

// encodeMapFields encodes an object field by field. Any user key starting
// with "@" collides with the reserved tag space, so the whole object is
// wrapped in an @object escape. The check applies per nesting level.
func encodeMapFields(m map[string]interface{}) (interface{}, error) {
	out := make(map[string]interface{}, len(m))
	wrap := false
	for k, v := range m {
		if strings.HasPrefix(k, "@") {
			wrap = true
		}
		enc, err := Encode(v)
		if err != nil {
			return nil, err
		}
		out[k] = enc
	}
	if wrap {
		return tagged(tagObject, out), nil
	}
	return out, nil
}

// encodeReflect handles the kinds with no concrete fast path: typed
// slices and maps, structs, and pointers to any of those.
func encodeReflect(rv reflect.Value) (interface{}, error) {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return Encode(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			enc, err := Encode(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &UnsupportedTypeError{GoType: rv.Type().String()}
		}
		m := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return encodeMapFields(m)
	case reflect.Struct:
		return encodeStruct(rv)
	}
	return nil, &UnsupportedTypeError{GoType: rv.Type().String()}
}

// encodeStruct maps exported fields to object fields, honoring
// `fauna:"name"` tags. A tag of "-" skips the field.
func encodeStruct(rv reflect.Value) (interface{}, error) {
	rt := rv.Type()
	m := make(map[string]interface{}, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("fauna"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		m[name] = rv.Field(i).Interface()
	}
	return encodeMapFields(m)
}
