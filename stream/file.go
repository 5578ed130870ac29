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
	"log"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// File is a stream over a raw image file or device node.
type File struct {
	fs       afero.Fs
	name     string
	file     afero.File
	writable bool

	sizeOnce sync.Once
	size     int64
}

// Open opens name read only.
func Open(fs afero.Fs, name string) (*File, error) {
	return openFile(fs, name, os.O_RDONLY)
}

// OpenWritable opens name for reading and writing.
func OpenWritable(fs afero.Fs, name string) (*File, error) {
	return openFile(fs, name, os.O_RDWR)
}

func openFile(fs afero.Fs, name string, flag int) (*File, error) {
	f, err := fs.OpenFile(name, flag, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", name)
	}
	return &File{fs: fs, name: name, file: f, writable: flag&os.O_RDWR != 0}, nil
}

// Name returns the file name the stream was opened with.
func (f *File) Name() string { return f.name }

// Size returns the file size. Device nodes report a zero size in their file
// info, so the end is located by seeking instead. The size is determined once.
func (f *File) Size() int64 {
	f.sizeOnce.Do(func() {
		info, err := f.file.Stat()
		if err == nil && info.Mode().IsRegular() {
			f.size = info.Size()
			return
		}

		pos, err := Tell(f.file)
		if err != nil {
			log.Printf("could not determine size of %s: %s", f.name, err)
			return
		}
		end, err := f.file.Seek(0, io.SeekEnd)
		if err != nil {
			log.Printf("could not determine size of %s: %s", f.name, err)
			return
		}
		f.size = end
		if _, err := f.file.Seek(pos, io.SeekStart); err != nil {
			log.Printf("could not restore position of %s: %s", f.name, err)
		}
	})
	return f.size
}

// Available reports whether the file still exists.
func (f *File) Available() bool {
	exists, err := afero.Exists(f.fs, f.name)
	return err == nil && exists
}

func (f *File) Read(p []byte) (int, error) { return f.file.Read(p) }

func (f *File) ReadAt(p []byte, off int64) (int, error) { return f.file.ReadAt(p, off) }

func (f *File) Seek(offset int64, whence int) (int64, error) { return f.file.Seek(offset, whence) }

func (f *File) Write(p []byte) (int, error) {
	if !f.writable {
		return 0, ErrReadOnly
	}
	return f.file.Write(p)
}

// Close closes the underlying file.
func (f *File) Close() error { return f.file.Close() }
