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

package blockstore

import (
	"io"
	"os"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"github.com/pkg/errors"
)

// ErrNotArchived is returned by Extract for unknown names.
var ErrNotArchived = errors.New("file not in archive")

// The archive table follows the sqlar layout. Data is stored uncompressed
// (sz equals the blob length), so "sqlite3 -Ax" can extract carved files.
const archiveTable = "CREATE TABLE `sqlar` (name TEXT PRIMARY KEY, mode INT, mtime INT, sz INT, data BLOB)"

// ArchiveEntry describes a file in the archive of the store.
type ArchiveEntry struct {
	Name    string
	Mode    os.FileMode
	ModTime time.Time
	Size    int64
}

// Archive writes size bytes from r as file name into the store.
func (store *Store) Archive(name string, mode os.FileMode, size int64, r io.Reader) error {
	name = normalizeName(name)

	store.mutex.Lock()
	defer store.mutex.Unlock()

	stmt, err := store.cursor.Prepare("INSERT INTO `sqlar` (name, mode, mtime, sz, data) VALUES ($name, $mode, $mtime, $sz, $data)")
	if err != nil {
		return err
	}
	stmt.SetText("$name", name)
	stmt.SetInt64("$mode", int64(mode))
	stmt.SetInt64("$mtime", time.Now().Unix())
	stmt.SetInt64("$sz", size)
	stmt.SetZeroBlob("$data", size)
	if _, err := stmt.Step(); err != nil {
		stmt.Reset() // nolint:errcheck
		return errors.Wrapf(err, "could not archive %s", name)
	}
	if err := stmt.Reset(); err != nil {
		return err
	}

	blob, err := store.cursor.OpenBlob("", "sqlar", "data", store.cursor.LastInsertRowID(), true)
	if err != nil {
		return err
	}
	n, err := io.CopyN(blob, r, size)
	if err != nil {
		blob.Close() // nolint:errcheck
		if rmErr := store.unarchive(name); rmErr != nil {
			return rmErr
		}
		return errors.Wrapf(err, "could only archive %d of %d bytes", n, size)
	}
	return blob.Close()
}

func (store *Store) unarchive(name string) error {
	stmt, err := store.cursor.Prepare("DELETE FROM `sqlar` WHERE name = $name")
	if err != nil {
		return err
	}
	stmt.SetText("$name", name)
	if _, err := stmt.Step(); err != nil {
		return err
	}
	return stmt.Reset()
}

// Extract copies the archived file name to w.
func (store *Store) Extract(name string, w io.Writer) (int64, error) {
	name = normalizeName(name)

	store.mutex.Lock()
	defer store.mutex.Unlock()

	stmt, err := store.cursor.Prepare("SELECT rowid FROM `sqlar` WHERE name = $name")
	if err != nil {
		return 0, err
	}
	stmt.SetText("$name", name)
	hasRow, err := stmt.Step()
	if err != nil {
		return 0, err
	}
	if !hasRow {
		return 0, errors.Wrap(ErrNotArchived, name)
	}
	rowid := stmt.GetInt64("rowid")
	if err := stmt.Reset(); err != nil {
		return 0, err
	}

	blob, err := store.cursor.OpenBlob("", "sqlar", "data", rowid, false)
	if err != nil {
		return 0, err
	}
	defer blob.Close()
	return io.Copy(w, blob)
}

// Archived lists the files of the archive sorted by name.
func (store *Store) Archived() ([]*ArchiveEntry, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	stmt, err := store.cursor.Prepare("SELECT name, mode, mtime, sz FROM `sqlar` ORDER BY name")
	if err != nil {
		return nil, err
	}
	var entries []*ArchiveEntry
	err = rows(stmt, func(stmt *sqlite.Stmt) error {
		entries = append(entries, &ArchiveEntry{
			Name:    stmt.GetText("name"),
			Mode:    os.FileMode(stmt.GetInt64("mode")),
			ModTime: time.Unix(stmt.GetInt64("mtime"), 0),
			Size:    stmt.GetInt64("sz"),
		})
		return nil
	})
	return entries, err
}

func normalizeName(name string) string {
	return strings.Trim(strings.ReplaceAll(name, "\\", "/"), "/")
}
