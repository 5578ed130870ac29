/*
 * Copyright (c) 2020 Siemens AG
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of
 * this software and associated documentation files (the "Software"), to deal in
 * the Software without restriction, including without limitation the rights to
 * use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
 * the Software, and to permit persons to whom the Software is furnished to do so,
 * subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
 * FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
 * COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
 * IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
 * CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 *
 * Author(s): Jonas Plum
 */

package attribute

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Bytes, timestamps and strings that are not valid UTF-8 have no native JSON
// type; they are encoded as single key objects using these reserved keys.
// Map keys starting with "$" are written with an extra "$".
const (
	bytesKey = "$bytes"
	timeKey  = "$time"
	strKey   = "$str64"
)

func reserved(key string) bool {
	return key == bytesKey || key == timeKey || key == strKey
}

func escapeKey(key string) string {
	if strings.HasPrefix(key, "$") {
		return "$" + key
	}
	return key
}

func unescapeKey(key string) string {
	if strings.HasPrefix(key, "$$") {
		return key[1:]
	}
	return key
}

// MarshalJSON encodes the value.
func (v Value) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := v.encode(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the value.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	value, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = value
	return nil
}

// MarshalJSON encodes the bag as a JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := encodeMap(buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into the bag, keeping key order.
func (m *Map) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	if v.kind != KindMap {
		return errors.Errorf("expected object, got %s", v.kind)
	}
	*m = *v.m
	return nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindString:
		if !utf8.ValidString(v.s) {
			return writeTagged(buf, strKey, base64.StdEncoding.EncodeToString([]byte(v.s)))
		}
		return writeString(buf, v.s)
	case KindBytes:
		return writeTagged(buf, bytesKey, base64.StdEncoding.EncodeToString(v.raw))
	case KindTime:
		return writeTagged(buf, timeKey, v.t.Format(time.RFC3339Nano))
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		return encodeMap(buf, v.m)
	default:
		return errors.Wrapf(ErrUnsupported, "kind %s", v.kind)
	}
	return nil
}

func encodeMap(buf *bytes.Buffer, m *Map) error {
	buf.WriteByte('{')
	var err error
	first := true
	m.Range(func(key string, v Value) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err = writeString(buf, escapeKey(key)); err != nil {
			return false
		}
		buf.WriteByte(':')
		err = v.encode(buf)
		return err == nil
	})
	if err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func writeTagged(buf *bytes.Buffer, tag, s string) error {
	buf.WriteString(`{"` + tag + `":`)
	if err := writeString(buf, s); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) { // nolint:gocyclo
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return Null(), io.ErrUnexpectedEOF
		}
		return Null(), err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return Null(), errors.Wrapf(ErrUnsupported, "number %s", t)
		}
		return IntValue(i), nil
	case json.Delim:
		switch t {
		case '[':
			list := []Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Null(), err
				}
				list = append(list, item)
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			return Value{kind: KindList, list: list}, nil
		case '{':
			m := NewMap()
			tagged := false
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Null(), err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Null(), errors.Errorf("invalid object key %v", keyTok)
				}
				item, err := decodeValue(dec)
				if err != nil {
					return Null(), errors.Wrap(err, key)
				}
				if reserved(key) {
					tagged = true
				} else {
					key = unescapeKey(key)
				}
				m.Set(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			if tagged {
				return special(m)
			}
			return MapValue(m), nil
		}
	}
	return Null(), errors.Errorf("unexpected token %v", tok)
}

// special turns the reserved single key objects back into bytes, times and
// strings.
func special(m *Map) (Value, error) {
	if m.Len() != 1 {
		return MapValue(m), nil
	}
	if v, ok := m.Lookup(bytesKey); ok && v.kind == KindString {
		raw, err := base64.StdEncoding.DecodeString(v.s)
		if err != nil {
			return Null(), errors.Wrap(err, "invalid bytes value")
		}
		return Value{kind: KindBytes, raw: raw}, nil
	}
	if v, ok := m.Lookup(strKey); ok && v.kind == KindString {
		raw, err := base64.StdEncoding.DecodeString(v.s)
		if err != nil {
			return Null(), errors.Wrap(err, "invalid string value")
		}
		return StringValue(string(raw)), nil
	}
	if v, ok := m.Lookup(timeKey); ok && v.kind == KindString {
		t, err := time.Parse(time.RFC3339Nano, v.s)
		if err != nil {
			return Null(), errors.Wrap(err, "invalid time value")
		}
		return TimeValue(t), nil
	}
	return MapValue(m), nil
}
