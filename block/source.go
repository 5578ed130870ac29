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
	"sync"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensicblocks/stream"
)

// Source is a root block over a whole device or image stream.
type Source struct {
	base
	s         stream.Stream
	available bool
	complete  bool

	sizeOnce sync.Once
	size     int64
}

// NewSource returns a root block of type typ over s.
func NewSource(typ string, s stream.Stream) *Source {
	return &Source{base: newBase(typ), s: s, available: s != nil, complete: true}
}

// Attach connects a stream to a source that was restored from a persisted
// state. The stream must have the size the block was persisted with.
func (b *Source) Attach(s stream.Stream) error {
	if s == nil {
		return ErrInvalidBlock
	}
	if b.s != nil {
		return errors.Wrap(ErrContractViolation, "source already has a stream")
	}
	if b.Size() != 0 && s.Size() != b.Size() {
		return errors.Errorf("stream size %d does not match block size %d", s.Size(), b.Size())
	}
	b.s = s
	b.available = true
	return nil
}

func (b *Source) Start() int64 { return 0 }

func (b *Source) End() int64 { return b.Size() - 1 }

// Size returns the stream size, which is determined once.
func (b *Source) Size() int64 {
	b.sizeOnce.Do(func() {
		if b.s != nil {
			b.size = b.s.Size()
		}
	})
	return b.size
}

type availabler interface {
	Available() bool
}

// IsAvailable reports whether a stream is attached and, for streams that
// can tell, whether its file is still present.
func (b *Source) IsAvailable() bool {
	if b.s == nil || !b.available {
		return false
	}
	if a, ok := b.s.(availabler); ok {
		return a.Available()
	}
	return true
}

func (b *Source) SetAvailable(available bool) error {
	b.available = available
	return nil
}

func (b *Source) IsComplete() bool { return b.complete }

func (b *Source) SetComplete(complete bool) error {
	b.complete = complete
	return nil
}

// AddParent records a provenance parent; it does not change the bytes of
// the source.
func (b *Source) AddParent(parent Block) error {
	if parent == nil || !parent.Valid() {
		return ErrInvalidBlock
	}
	b.parents = append(b.parents, parent)
	return nil
}

func (b *Source) NewReader() (stream.Stream, error) {
	if !b.IsAvailable() {
		return nil, errors.Wrapf(ErrUnavailable, "source %d", b.uid)
	}
	return stream.NewSlice(b.s, 0, b.Size())
}
