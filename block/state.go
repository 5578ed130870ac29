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

package block

import (
	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensicblocks/attribute"
)

// Kinds of persisted blocks.
const (
	KindSource = "source"
	KindSlice  = "slice"
)

var requiredKeys = []string{"type", "start", "end", "size", "uid", "is_handled", "attributes", "parents", "children"}

// ErrInvalidState is returned for persisted states that cannot be restored.
var ErrInvalidState = errors.New("invalid block state")

func (b *Source) State() (*attribute.Map, error) {
	return state(b, &b.base, KindSource), nil
}

func (s *Slice) State() (*attribute.Map, error) {
	return state(s, &s.base, KindSlice), nil
}

func state(b Block, bs *base, kind string) *attribute.Map {
	m := attribute.NewMap()
	m.Set("kind", attribute.StringValue(kind))
	m.Set("type", attribute.StringValue(bs.typ))
	m.Set("start", attribute.IntValue(b.Start()))
	m.Set("end", attribute.IntValue(b.End()))
	m.Set("size", attribute.IntValue(b.Size()))
	m.Set("uid", attribute.IntValue(bs.uid))
	m.Set("is_handled", attribute.BoolValue(bs.handled))
	m.Set("is_complete", attribute.BoolValue(b.IsComplete()))
	m.Set("attributes", attribute.MapValue(bs.attributes.Clone()))
	m.Set("parents", uidList(bs.parents, bs.parentUIDs))
	m.Set("children", uidList(bs.children, bs.childUIDs))
	return m
}

func uidList(resolved []Block, pending []int64) attribute.Value {
	var list []attribute.Value
	if len(resolved) > 0 {
		for _, b := range resolved {
			list = append(list, attribute.IntValue(b.UID()))
		}
	} else {
		for _, uid := range pending {
			list = append(list, attribute.IntValue(uid))
		}
	}
	return attribute.ListValue(list...)
}

// FromState restores a block from its persisted state. Edges are restored
// as uids only; Graph.Relink resolves them. Restored sources have no stream
// until Attach is called, restored slices have no parent until AddParent.
func FromState(m *attribute.Map) (Block, error) {
	if m == nil {
		return Null(), ErrInvalidState
	}
	for _, key := range requiredKeys {
		if !m.Has(key) {
			return Null(), errors.Wrapf(ErrInvalidState, "missing %s", key)
		}
	}
	if m.Get("type").Kind() != attribute.KindString {
		return Null(), errors.Wrap(ErrInvalidState, "type is not a string")
	}

	b := newBase(m.Get("type").Str())
	b.uid = m.Get("uid").Int()
	b.handled = m.Get("is_handled").Bool()
	if attrs := m.Get("attributes").Map(); attrs != nil {
		b.attributes = attrs.Clone()
	}
	var err error
	if b.parentUIDs, err = uids(m.Get("parents")); err != nil {
		return Null(), err
	}
	if b.childUIDs, err = uids(m.Get("children")); err != nil {
		return Null(), err
	}

	start, end, size := m.Get("start").Int(), m.Get("end").Int(), m.Get("size").Int()
	kind := m.Get("kind").Str()
	if kind == "" {
		kind = KindSlice
		if len(b.parentUIDs) == 0 {
			kind = KindSource
		}
	}

	switch kind {
	case KindSource:
		if start != 0 || end != size-1 {
			return Null(), errors.Wrapf(ErrInvalidState, "source range [%d, %d] of %d bytes", start, end, size)
		}
		s := &Source{base: b, complete: m.Get("is_complete").Bool()}
		s.sizeOnce.Do(func() { s.size = size })
		return s, nil
	case KindSlice:
		if start < 0 || start > end || end-start+1 != size {
			return Null(), errors.Wrapf(ErrInvalidState, "slice range [%d, %d] of %d bytes", start, end, size)
		}
		return &Slice{base: b, start: start, end: end}, nil
	}
	return Null(), errors.Wrapf(ErrInvalidState, "unknown kind %s", kind)
}

func uids(v attribute.Value) ([]int64, error) {
	if v.Kind() != attribute.KindList {
		return nil, errors.Wrapf(ErrInvalidState, "uid list is %s", v.Kind())
	}
	var list []int64
	for _, item := range v.List() {
		if item.Kind() != attribute.KindInt {
			return nil, errors.Wrapf(ErrInvalidState, "uid is %s", item.Kind())
		}
		list = append(list, item.Int())
	}
	return list, nil
}
