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

	"github.com/forensicanalysis/forensicblocks/stream"
)

// Slice is a block covering [start, end] of exactly one parent. It owns no
// bytes: it is complete and available exactly when its parent is.
type Slice struct {
	base
	parent Block
	start  int64
	end    int64
}

// NewSlice returns a slice of type typ over [start, end] of parent. Negative
// offsets count from the end of the parent, so -1 is its last byte. The
// slice is not added to the children of parent.
func NewSlice(parent Block, typ string, start, end int64) (*Slice, error) {
	if parent == nil || !parent.Valid() {
		return nil, ErrInvalidBlock
	}
	start, end, err := resolveRange(parent.Size(), start, end)
	if err != nil {
		return nil, err
	}
	s := &Slice{base: newBase(typ), parent: parent, start: start, end: end}
	s.parents = []Block{parent}
	return s, nil
}

func resolveRange(size, start, end int64) (int64, int64, error) {
	if start < 0 {
		start += size
	}
	if end < 0 {
		end += size
	}
	if start < 0 || start > end || end >= size {
		return start, end, errors.Wrapf(ErrOutOfRange, "[%d, %d] of %d bytes", start, end, size)
	}
	return start, end, nil
}

func (s *Slice) Start() int64 { return s.start }

func (s *Slice) End() int64 { return s.end }

func (s *Slice) Size() int64 { return s.end - s.start + 1 }

func (s *Slice) IsAvailable() bool {
	return s.parent != nil && s.parent.IsAvailable()
}

func (s *Slice) SetAvailable(bool) error {
	return errors.Wrap(ErrContractViolation, "availability of a slice follows its parent")
}

func (s *Slice) IsComplete() bool { return true }

func (s *Slice) SetComplete(bool) error {
	return errors.Wrap(ErrContractViolation, "slices are always complete")
}

// AddParent sets the parent of a slice restored from a persisted state.
// Slices created with NewSlice already have their parent.
func (s *Slice) AddParent(parent Block) error {
	if parent == nil || !parent.Valid() {
		return ErrInvalidBlock
	}
	if s.parent != nil {
		return errors.Wrap(ErrContractViolation, "slice already has a parent")
	}
	if s.end >= parent.Size() {
		return errors.Wrapf(ErrOutOfRange, "[%d, %d] of %d bytes", s.start, s.end, parent.Size())
	}
	s.parent = parent
	s.parents = append([]Block{parent}, s.parents...)
	return nil
}

// NewReader returns a stream over the slice range of the parent stream. A
// slice spanning its whole parent returns the parent stream itself.
func (s *Slice) NewReader() (stream.Stream, error) {
	if s.parent == nil {
		return nil, errors.Wrap(ErrInvalidBlock, "slice has no parent")
	}
	if !s.parent.IsAvailable() {
		return nil, errors.Wrapf(ErrUnavailable, "parent of slice %d", s.uid)
	}
	r, err := s.parent.NewReader()
	if err != nil {
		return nil, err
	}
	if s.start == 0 && s.end == s.parent.Size()-1 {
		return r, nil
	}
	return stream.NewSlice(r, s.start, s.Size())
}
