package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Decode parses a wire payload and rebuilds native values from their
// tags. The payload is parsed to a generic JSON tree first and then
// transformed bottom-up; Go has no streaming reviver hook, so the two
// passes replace the single-pass reviver the wire format was designed
// around.
func Decode(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, &DecodeError{Message: "invalid JSON payload", Cause: err}
	}
	return decodeValue(raw)
}

func decodeValue(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case map[string]interface{}:
		if len(v) == 1 {
			for k, inner := range v {
				if isReservedTag(k) {
					return decodeTag(k, inner)
				}
			}
		}
		return decodeFields(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			d, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case json.Number:
		return decodeNumber(v)
	default:
		return v, nil
	}
}

func isReservedTag(k string) bool {
	switch k {
	case tagInt, tagLong, tagDouble, tagDate, tagTime, tagMod, tagRef, tagDoc, tagSet, tagBytes, tagObject:
		return true
	}
	return false
}

// decodeFields decodes an untagged object field by field. Unrecognized
// "@"-prefixed keys pass through untouched; they are the caller's escape
// hatch, not ours to interpret.
func decodeFields(m map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		d, err := decodeValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = d
	}
	return out, nil
}

// decodeNumber maps untagged JSON numbers, which only appear outside
// tagged positions (stats, user payloads in simple format), onto int64 or
// float64.
func decodeNumber(n json.Number) (interface{}, error) {
	if !strings.ContainsAny(n.String(), ".eE") {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, &DecodeError{Message: fmt.Sprintf("invalid number %q", n.String()), Cause: err}
	}
	return f, nil
}

func decodeTag(tag string, inner interface{}) (interface{}, error) {
	switch tag {
	case tagInt:
		s, err := tagString(tag, inner)
		if err != nil {
			return nil, err
		}
		i, perr := strconv.ParseInt(s, 10, 32)
		if perr != nil {
			return nil, &RangeError{Message: fmt.Sprintf("%s %q overflows a 32-bit integer", tag, s)}
		}
		return int(i), nil
	case tagLong:
		s, err := tagString(tag, inner)
		if err != nil {
			return nil, err
		}
		i, perr := strconv.ParseInt(s, 10, 64)
		if perr != nil {
			return nil, &RangeError{Message: fmt.Sprintf("%s %q overflows a 64-bit integer", tag, s)}
		}
		return i, nil
	case tagDouble:
		s, err := tagString(tag, inner)
		if err != nil {
			return nil, err
		}
		f, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return nil, &DecodeError{Tag: tag, Message: fmt.Sprintf("invalid double %q", s), Cause: perr}
		}
		return f, nil
	case tagDate:
		s, err := tagString(tag, inner)
		if err != nil {
			return nil, err
		}
		return ParseDate(s)
	case tagTime:
		s, err := tagString(tag, inner)
		if err != nil {
			return nil, err
		}
		return ParseTime(s)
	case tagMod:
		s, err := tagString(tag, inner)
		if err != nil {
			return nil, err
		}
		return &Module{Name: s}, nil
	case tagBytes:
		s, err := tagString(tag, inner)
		if err != nil {
			return nil, err
		}
		b, derr := base64.StdEncoding.DecodeString(s)
		if derr != nil {
			return nil, &DecodeError{Tag: tag, Message: "invalid base64 payload", Cause: derr}
		}
		return b, nil
	case tagRef:
		return decodeRef(inner)
	case tagDoc:
		return decodeDoc(inner)
	case tagSet:
		return decodeSet(inner)
	case tagObject:
		m, ok := inner.(map[string]interface{})
		if !ok {
			return nil, &DecodeError{Tag: tag, Message: fmt.Sprintf("expected an object, got %T", inner)}
		}
		// Unwrap exactly one level: the keys below are literal user
		// keys, never tags, but their values decode normally.
		return decodeFields(m)
	}
	return nil, &DecodeError{Tag: tag, Message: "unrecognized tag"}
}

func tagString(tag string, inner interface{}) (string, error) {
	s, ok := inner.(string)
	if !ok {
		return "", &DecodeError{Tag: tag, Message: fmt.Sprintf("expected a string, got %T", inner)}
	}
	return s, nil
}

func decodeRef(inner interface{}) (interface{}, error) {
	m, ok := inner.(map[string]interface{})
	if !ok {
		return nil, &DecodeError{Tag: tagRef, Message: fmt.Sprintf("expected an object, got %T", inner)}
	}
	coll, err := decodeCollection(tagRef, m["coll"])
	if err != nil {
		return nil, err
	}
	if name, ok := m["name"].(string); ok {
		return &NamedRef{Name: name, Collection: coll}, nil
	}
	id, ok := m["id"].(string)
	if !ok {
		return nil, &DecodeError{Tag: tagRef, Message: "reference carries neither id nor name"}
	}
	return &Ref{ID: id, Collection: coll}, nil
}

// decodeDoc handles the three object forms of @doc (materialized by id,
// materialized by name, failed materialization) plus the compact
// "coll:id" string form.
func decodeDoc(inner interface{}) (interface{}, error) {
	if s, ok := inner.(string); ok {
		coll, id, found := strings.Cut(s, ":")
		if !found {
			return nil, &DecodeError{Tag: tagDoc, Message: fmt.Sprintf("malformed compact document %q", s)}
		}
		return &Ref{ID: id, Collection: &Module{Name: coll}}, nil
	}
	m, ok := inner.(map[string]interface{})
	if !ok {
		return nil, &DecodeError{Tag: tagDoc, Message: fmt.Sprintf("expected an object or string, got %T", inner)}
	}

	coll, err := decodeCollection(tagDoc, m["coll"])
	if err != nil {
		return nil, err
	}
	ts, err := decodeDocTS(m["ts"])
	if err != nil {
		return nil, err
	}

	if rawID, present := m["id"]; present {
		id, ok := rawID.(string)
		if !ok {
			return nil, &DecodeError{Tag: tagDoc, Message: fmt.Sprintf("expected a string id, got %T", rawID)}
		}
		data := make(map[string]interface{})
		for k, v := range m {
			if k == "id" || k == "coll" || k == "ts" {
				continue
			}
			d, derr := decodeValue(v)
			if derr != nil {
				return nil, derr
			}
			data[k] = d
		}
		return &Document{ID: id, Collection: coll, TS: ts, Data: data}, nil
	}

	if rawName, present := m["name"]; present {
		name, ok := rawName.(string)
		if !ok {
			return nil, &DecodeError{Tag: tagDoc, Message: fmt.Sprintf("expected a string name, got %T", rawName)}
		}
		var data map[string]interface{}
		if rawData, ok := m["data"].(map[string]interface{}); ok {
			data, err = decodeFields(rawData)
			if err != nil {
				return nil, err
			}
		}
		return &NamedDocument{Name: name, Collection: coll, TS: ts, Data: data}, nil
	}

	// Neither id nor name: the document could not be materialized.
	ref, err := decodeValue(m["ref"])
	if err != nil {
		return nil, err
	}
	if ref == nil && coll != nil {
		ref = &Ref{Collection: coll}
	}
	cause, _ := m["cause"].(string)
	return &NullDocument{Ref: ref, Cause: cause}, nil
}

func decodeSet(inner interface{}) (interface{}, error) {
	if token, ok := inner.(string); ok {
		// A bare token is a set the server chose not to materialize.
		return &Page{After: token}, nil
	}
	m, ok := inner.(map[string]interface{})
	if !ok {
		return nil, &DecodeError{Tag: tagSet, Message: fmt.Sprintf("expected an object or string, got %T", inner)}
	}
	page := &Page{}
	if rawData, ok := m["data"].([]interface{}); ok {
		data, err := decodeValue(rawData)
		if err != nil {
			return nil, err
		}
		page.Data = data.([]interface{})
	}
	if after, ok := m["after"].(string); ok {
		page.After = after
	}
	return page, nil
}

func decodeCollection(tag string, raw interface{}) (*Module, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := decodeValue(raw)
	if err != nil {
		return nil, err
	}
	coll, ok := d.(*Module)
	if !ok {
		return nil, &DecodeError{Tag: tag, Message: fmt.Sprintf("expected a module collection, got %T", d)}
	}
	return coll, nil
}

func decodeDocTS(raw interface{}) (*Time, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := decodeValue(raw)
	if err != nil {
		return nil, err
	}
	ts, ok := d.(Time)
	if !ok {
		return nil, &DecodeError{Tag: tagDoc, Message: fmt.Sprintf("expected a time ts, got %T", d)}
	}
	return &ts, nil
}
