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

package stream

import (
	"io"

	"github.com/pkg/errors"
)

// Slice is a window [start, start+size) into another stream. Reads use
// ReadAt on the underlying stream, so several slices can share one stream.
type Slice struct {
	s     Stream
	start int64
	size  int64
	pos   int64
}

// NewSlice returns a window of size bytes at start into s.
func NewSlice(s Stream, start, size int64) (*Slice, error) {
	if start < 0 || size < 0 || start+size > s.Size() {
		return nil, errors.Wrapf(ErrOutOfBounds, "window [%d, %d) of stream with size %d", start, start+size, s.Size())
	}
	return &Slice{s: s, start: start, size: size}, nil
}

// Size returns the window size.
func (s *Slice) Size() int64 { return s.size }

func (s *Slice) Read(p []byte) (int, error) {
	n, err := s.ReadAt(p, s.pos)
	s.pos += int64(n)
	return n, err
}

// ReadAt reads at off relative to the window start and never past its end.
func (s *Slice) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.Wrapf(ErrOutOfBounds, "offset %d", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	short := false
	if left := s.size - off; int64(len(p)) > left {
		p = p[:left]
		short = true
	}
	n, err := s.s.ReadAt(p, s.start+off)
	if err == nil && short {
		err = io.EOF
	}
	return n, err
}

func (s *Slice) Seek(offset int64, whence int) (int64, error) {
	pos, err := seek(s.pos, s.size, offset, whence)
	if err != nil {
		return s.pos, err
	}
	s.pos = pos
	return pos, nil
}

// Write writes at the current position, but never past the window end.
func (s *Slice) Write(p []byte) (int, error) {
	if s.pos >= s.size {
		return 0, io.ErrShortWrite
	}
	short := false
	if left := s.size - s.pos; int64(len(p)) > left {
		p = p[:left]
		short = true
	}
	if _, err := s.s.Seek(s.start+s.pos, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := s.s.Write(p)
	s.pos += int64(n)
	if err == nil && short {
		err = io.ErrShortWrite
	}
	return n, err
}
