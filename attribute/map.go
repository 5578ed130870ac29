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

// Map is an insertion ordered key to Value bag.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap returns an empty bag.
func NewMap() *Map {
	return &Map{values: map[string]Value{}}
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Get returns the value for key, or null if the key is missing.
func (m *Map) Get(key string) Value {
	if m == nil {
		return Null()
	}
	return m.values[key]
}

// Lookup returns the value for key and whether it is set.
func (m *Map) Lookup(key string) (Value, bool) {
	if m == nil {
		return Null(), false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is set.
func (m *Map) Has(key string) bool {
	_, ok := m.Lookup(key)
	return ok
}

// Set inserts or replaces key. Replacing keeps the original position.
func (m *Map) Set(key string, v Value) {
	if m.values == nil {
		m.values = map[string]Value{}
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key.
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for every entry in order until fn returns false.
func (m *Map) Range(fn func(key string, v Value) bool) {
	if m == nil {
		return
	}
	for _, key := range m.keys {
		if !fn(key, m.values[key]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (m *Map) Clone() *Map {
	c := NewMap()
	m.Range(func(key string, v Value) bool {
		c.Set(key, v.Clone())
		return true
	})
	return c
}

// Equal reports deep equality including key order.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	if m.Len() == 0 {
		return true
	}
	for i, key := range m.keys {
		if o.keys[i] != key {
			return false
		}
		if !m.values[key].Equal(o.values[key]) {
			return false
		}
	}
	return true
}

// Interface converts the bag into a map[string]interface{}.
func (m *Map) Interface() map[string]interface{} {
	out := make(map[string]interface{}, m.Len())
	m.Range(func(key string, v Value) bool {
		out[key] = v.Interface()
		return true
	})
	return out
}
