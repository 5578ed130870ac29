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

// Package stream provides the seekable byte streams that blocks are read
// from: raw image or device files, split images made of several segment files
// and windows into other streams.
//
// Streams are not safe for concurrent use. Every consumer should obtain its
// own stream, e.g. through block.Block.NewReader.
package stream

import (
	"io"

	"github.com/pkg/errors"
)

// Stream is a seekable, sized byte stream. Read only streams return
// ErrReadOnly from Write.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.ReaderAt
	Size() int64
}

var (
	// ErrReadOnly is returned when writing to a read only stream.
	ErrReadOnly = errors.New("stream is read only")
	// ErrOutOfBounds is returned for offsets outside of a stream.
	ErrOutOfBounds = errors.New("offset out of bounds")
)

// Tell returns the current position of s.
func Tell(s io.Seeker) (int64, error) {
	return s.Seek(0, io.SeekCurrent)
}

// ReadAt reads exactly n bytes at off. Reading past the end of the stream
// fails with io.ErrUnexpectedEOF, or io.EOF if off is at or behind the end.
func ReadAt(s Stream, off int64, n int) ([]byte, error) {
	if off < 0 {
		return nil, errors.Wrapf(ErrOutOfBounds, "offset %d", off)
	}
	if off >= s.Size() {
		return nil, io.EOF
	}
	buf := make([]byte, n)
	read, err := s.ReadAt(buf, off)
	if read == n {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return buf[:read], err
}

func seek(pos, size, offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = pos + offset
	case io.SeekEnd:
		abs = size + offset
	default:
		return pos, errors.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return pos, errors.Wrapf(ErrOutOfBounds, "negative position %d", abs)
	}
	return abs, nil
}
