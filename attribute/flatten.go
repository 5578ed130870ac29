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
	"strconv"
	"strings"

	"github.com/imdario/mergo"
)

// Delimiter separates the path components of flattened keys.
const Delimiter = "."

// Flatten returns the bag one level deep, e.g. {"a": {"b": [1]}} becomes
// {"a.b.0": 1}. Leaves are bool, int64 or string; bytes and timestamps are
// rendered with Value.String. Nulls, empty lists and empty maps produce no
// keys.
func Flatten(m *Map) map[string]interface{} {
	flat := map[string]interface{}{}
	flattenInto(flat, "", MapValue(m))
	return flat
}

func flattenInto(flat map[string]interface{}, prefix string, v Value) {
	join := func(key string) string {
		if prefix == "" {
			return key
		}
		return prefix + Delimiter + key
	}

	switch v.kind {
	case KindMap:
		v.m.Range(func(key string, item Value) bool {
			flattenInto(flat, join(key), item)
			return true
		})
	case KindList:
		for i, item := range v.list {
			flattenInto(flat, join(strconv.Itoa(i)), item)
		}
	case KindNull:
	case KindBytes, KindTime:
		flat[prefix] = v.String()
	default:
		flat[prefix] = v.Interface()
	}
}

// Unflatten reverses Flatten. Maps whose keys are exactly 0..n-1 become
// lists; key order of the result is sorted.
func Unflatten(flat map[string]interface{}) (*Map, error) {
	nested := map[string]interface{}{}
	for key, value := range flat {
		if err := mergo.Merge(&nested, expand(key, value)); err != nil {
			return nil, err
		}
	}

	v, err := From(lists(nested))
	if err != nil {
		return nil, err
	}
	return v.Map(), nil
}

func expand(key string, value interface{}) map[string]interface{} {
	parts := strings.Split(key, Delimiter)
	var n interface{} = value
	for i := len(parts) - 1; i >= 0; i-- {
		n = map[string]interface{}{parts[i]: n}
	}
	return n.(map[string]interface{})
}

func lists(x interface{}) interface{} {
	m, ok := x.(map[string]interface{})
	if !ok {
		return x
	}

	list := make([]interface{}, len(m))
	seen := make([]bool, len(m))
	isList := len(m) > 0
	for key := range m {
		j, err := strconv.Atoi(key)
		if err != nil || j < 0 || j >= len(m) || seen[j] {
			isList = false
			break
		}
		seen[j] = true
	}

	if isList {
		for key, value := range m {
			j, _ := strconv.Atoi(key)
			list[j] = lists(value)
		}
		return list
	}

	out := make(map[string]interface{}, len(m))
	for key, value := range m {
		out[key] = lists(value)
	}
	return out
}
