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

// Package attribute implements the typed attribute bag that blocks use to
// carry decoder specific metadata. A Value is a closed sum of null, bool,
// int64, string, bytes, timestamp, list and map. Maps keep insertion order so
// that a bag serializes to the same bytes every time.
package attribute

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Kind identifies the type stored in a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindString
	KindBytes
	KindTime
	KindList
	KindMap
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindString: "string",
	KindBytes:  "bytes",
	KindTime:   "time",
	KindList:   "list",
	KindMap:    "map",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ErrUnsupported is returned when a Go value has no attribute representation.
var ErrUnsupported = errors.New("unsupported attribute value")

// Value is a single attribute value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	s    string
	raw  []byte
	t    time.Time
	list []Value
	m    *Map
}

// Null returns the null value.
func Null() Value { return Value{} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// IntValue wraps an integer.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// BytesValue wraps a copy of b.
func BytesValue(b []byte) Value {
	raw := make([]byte, len(b))
	copy(raw, b)
	return Value{kind: KindBytes, raw: raw}
}

// TimeValue wraps a timestamp. Timestamps are kept in UTC.
func TimeValue(t time.Time) Value { return Value{kind: KindTime, t: t.UTC()} }

// ListValue wraps a list of values.
func ListValue(values ...Value) Value {
	list := make([]Value, len(values))
	copy(list, values)
	return Value{kind: KindList, list: list}
}

// MapValue wraps a nested bag. A nil map becomes an empty one.
func MapValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// From converts native Go values into a Value. Go maps are converted with
// sorted keys.
func From(v interface{}) (Value, error) { // nolint:gocyclo
	switch v := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case *Map:
		return MapValue(v), nil
	case bool:
		return BoolValue(v), nil
	case int:
		return IntValue(int64(v)), nil
	case int8:
		return IntValue(int64(v)), nil
	case int16:
		return IntValue(int64(v)), nil
	case int32:
		return IntValue(int64(v)), nil
	case int64:
		return IntValue(v), nil
	case uint8:
		return IntValue(int64(v)), nil
	case uint16:
		return IntValue(int64(v)), nil
	case uint32:
		return IntValue(int64(v)), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return Null(), errors.Wrapf(ErrUnsupported, "%d overflows int64", v)
		}
		return IntValue(int64(v)), nil
	case uint64:
		if v > math.MaxInt64 {
			return Null(), errors.Wrapf(ErrUnsupported, "%d overflows int64", v)
		}
		return IntValue(int64(v)), nil
	case float64:
		if v != math.Trunc(v) {
			return Null(), errors.Wrapf(ErrUnsupported, "float %v", v)
		}
		return IntValue(int64(v)), nil
	case string:
		return StringValue(v), nil
	case []byte:
		return BytesValue(v), nil
	case time.Time:
		return TimeValue(v), nil
	case []Value:
		return ListValue(v...), nil
	case []string:
		list := make([]Value, 0, len(v))
		for _, s := range v {
			list = append(list, StringValue(s))
		}
		return ListValue(list...), nil
	case []int64:
		list := make([]Value, 0, len(v))
		for _, i := range v {
			list = append(list, IntValue(i))
		}
		return ListValue(list...), nil
	case []interface{}:
		list := make([]Value, 0, len(v))
		for _, item := range v {
			value, err := From(item)
			if err != nil {
				return Null(), err
			}
			list = append(list, value)
		}
		return ListValue(list...), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, key := range keys {
			value, err := From(v[key])
			if err != nil {
				return Null(), errors.Wrap(err, key)
			}
			m.Set(key, value)
		}
		return MapValue(m), nil
	}
	return Null(), errors.Wrapf(ErrUnsupported, "%T", v)
}

// MustFrom is like From but panics on unsupported values.
func MustFrom(v interface{}) Value {
	value, err := From(v)
	if err != nil {
		panic(err)
	}
	return value
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the bool content or false.
func (v Value) Bool() bool { return v.kind == KindBool && v.b }

// Int returns the integer content or 0.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		return 0
	}
	return v.i
}

// Str returns the string content or "".
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

// Bytes returns the byte content or nil.
func (v Value) Bytes() []byte {
	if v.kind != KindBytes {
		return nil
	}
	return v.raw
}

// Time returns the timestamp content or the zero time.
func (v Value) Time() time.Time {
	if v.kind != KindTime {
		return time.Time{}
	}
	return v.t
}

// List returns the list content or nil.
func (v Value) List() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Map returns the nested bag or nil.
func (v Value) Map() *Map {
	if v.kind != KindMap {
		return nil
	}
	return v.m
}

// Interface converts the value back into plain Go values.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindString:
		return v.s
	case KindBytes:
		return v.raw
	case KindTime:
		return v.t
	case KindList:
		list := make([]interface{}, 0, len(v.list))
		for _, item := range v.list {
			list = append(list, item.Interface())
		}
		return list
	case KindMap:
		return v.m.Interface()
	}
	return nil
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	case KindTime:
		return v.t.Equal(o.t)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.m.Equal(o.m)
	}
	return false
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindBytes:
		return BytesValue(v.raw)
	case KindList:
		list := make([]Value, 0, len(v.list))
		for _, item := range v.list {
			list = append(list, item.Clone())
		}
		return Value{kind: KindList, list: list}
	case KindMap:
		return MapValue(v.m.Clone())
	}
	return v
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("%x", v.raw)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v.Interface())
}
