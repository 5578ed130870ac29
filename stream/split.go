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
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/forensicanalysis/fsdoublestar"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ErrNoSegments is returned when a split image has no segment files.
var ErrNoSegments = errors.New("no segments found")

type segment struct {
	name   string
	file   afero.File
	offset int64
	size   int64
}

// Split is a read only stream over an image that was split into numbered
// segment files (image.001, image.002, ...). The segments are presented as one
// contiguous stream. They are enumerated and opened on first use.
type Split struct {
	fs    afero.Fs
	first string
	pos   int64

	loadOnce sync.Once
	segments []segment
	size     int64
	err      error
}

// OpenSplit returns a split stream starting with the segment first.
func OpenSplit(fs afero.Fs, first string) (*Split, error) {
	exists, err := afero.Exists(fs, first)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Wrap(ErrNoSegments, first)
	}
	return &Split{fs: fs, first: path.Clean(first)}, nil
}

// IsSegmentName reports whether name looks like the first segment of a
// split image.
func IsSegmentName(name string) bool {
	ext := path.Ext(name)
	return len(ext) > 1 && isDigits(ext[1:]) && strings.TrimLeft(ext[1:], "0") == "1"
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

// Segments returns the segment file names in stream order.
func (s *Split) Segments() ([]string, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.segments))
	for _, seg := range s.segments {
		names = append(names, seg.name)
	}
	return names, nil
}

func (s *Split) load() error {
	s.loadOnce.Do(func() {
		s.err = s.enumerate()
	})
	return s.err
}

func (s *Split) enumerate() error {
	dir, base := path.Split(s.first)
	if dir == "" {
		dir = "."
	}
	ext := path.Ext(base)
	if !isDigits(strings.TrimPrefix(ext, ".")) {
		return s.open([]string{s.first})
	}

	stem := strings.TrimSuffix(base, ext)
	matches, err := fsdoublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(s.fs, dir)), stem+".*")
	if err != nil {
		return errors.Wrap(err, "could not enumerate segments")
	}

	var names []string
	for _, match := range matches {
		matchExt := path.Ext(match)
		if len(matchExt) == len(ext) && isDigits(matchExt[1:]) && matchExt >= ext {
			names = append(names, path.Join(dir, match))
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return errors.Wrap(ErrNoSegments, s.first)
	}
	return s.open(names)
}

func (s *Split) open(names []string) error {
	segments := make([]segment, 0, len(names))
	closeAll := func() {
		for _, seg := range segments {
			seg.file.Close() // nolint:errcheck
		}
	}
	var offset int64
	for _, name := range names {
		f, err := s.fs.Open(name)
		if err != nil {
			closeAll()
			return errors.Wrapf(err, "could not open segment %s", name)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close() // nolint:errcheck
			closeAll()
			return errors.Wrapf(err, "could not stat segment %s", name)
		}
		segments = append(segments, segment{name: name, file: f, offset: offset, size: info.Size()})
		offset += info.Size()
	}
	s.segments = segments
	s.size = offset
	return nil
}

// Size returns the combined size of all segments.
func (s *Split) Size() int64 {
	if err := s.load(); err != nil {
		return 0
	}
	return s.size
}

func (s *Split) Read(p []byte) (int, error) {
	n, err := s.ReadAt(p, s.pos)
	s.pos += int64(n)
	return n, err
}

// ReadAt reads across segment boundaries.
func (s *Split) ReadAt(p []byte, off int64) (int, error) {
	if err := s.load(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, errors.Wrapf(ErrOutOfBounds, "offset %d", off)
	}

	read := 0
	for read < len(p) {
		pos := off + int64(read)
		if pos >= s.size {
			return read, io.EOF
		}
		i := sort.Search(len(s.segments), func(i int) bool {
			return s.segments[i].offset+s.segments[i].size > pos
		})
		seg := s.segments[i]
		want := len(p) - read
		if left := seg.offset + seg.size - pos; int64(want) > left {
			want = int(left)
		}
		n, err := seg.file.ReadAt(p[read:read+want], pos-seg.offset)
		read += n
		if err != nil && err != io.EOF {
			return read, errors.Wrapf(err, "could not read segment %s", seg.name)
		}
		if n < want {
			return read, io.ErrUnexpectedEOF
		}
	}
	return read, nil
}

func (s *Split) Seek(offset int64, whence int) (int64, error) {
	pos, err := seek(s.pos, s.Size(), offset, whence)
	if err != nil {
		return s.pos, err
	}
	s.pos = pos
	return pos, nil
}

func (s *Split) Write([]byte) (int, error) { return 0, ErrReadOnly }

// Close closes all opened segments.
func (s *Split) Close() error {
	var firstErr error
	for _, seg := range s.segments {
		if err := seg.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
