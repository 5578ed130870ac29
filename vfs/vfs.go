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

// Package vfs defines what filesystem analyzers provide for a recognized
// filesystem block: a tree of folders and files with their metadata. The
// package does not parse filesystems itself, analyzers are registered per
// filesystem type.
package vfs

import (
	"io/fs"
	"time"

	"github.com/forensicanalysis/forensicblocks/stream"
)

// Entry is a node of a filesystem tree.
type Entry interface {
	Name() string
	// Path is the full path of the entry starting with "/".
	Path() string
	Inode() int64
	Size() int64
	Owner() int64
	Group() int64
	Mode() fs.FileMode

	AccessTime() time.Time
	ModTime() time.Time
	ChangeTime() time.Time
	CreationTime() time.Time
	// DeletionTime and BackupTime are only recorded by some filesystems.
	DeletionTime() (time.Time, bool)
	BackupTime() (time.Time, bool)

	IsDeleted() bool
	// IsReallocated reports whether the metadata of a deleted entry was
	// reused by another entry.
	IsReallocated() bool
	IsHidden() bool
}

// File is an entry with content.
type File interface {
	Entry
	Open() (stream.Stream, error)
}

// Folder is an entry with children. Every child is a File or a Folder.
type Folder interface {
	Entry
	Children() ([]Entry, error)
}

// Info returns e as fs.FileInfo.
func Info(e Entry) fs.FileInfo {
	return info{e}
}

type info struct {
	Entry
}

func (i info) Mode() fs.FileMode {
	if _, ok := i.Entry.(Folder); ok {
		return i.Entry.Mode() | fs.ModeDir
	}
	return i.Entry.Mode()
}

func (i info) IsDir() bool {
	_, ok := i.Entry.(Folder)
	return ok
}

func (i info) Sys() interface{} { return i.Entry }
