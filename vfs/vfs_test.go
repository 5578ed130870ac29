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

package vfs

import (
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/forensicblocks/block"
	"github.com/forensicanalysis/forensicblocks/stream"
)

var epoch = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

type testEntry struct {
	name    string
	path    string
	size    int64
	deleted time.Time
}

func (e *testEntry) Name() string                    { return e.name }
func (e *testEntry) Path() string                    { return e.path }
func (e *testEntry) Inode() int64                    { return int64(len(e.path)) }
func (e *testEntry) Size() int64                     { return e.size }
func (e *testEntry) Owner() int64                    { return 1000 }
func (e *testEntry) Group() int64                    { return 100 }
func (e *testEntry) Mode() fs.FileMode               { return 0640 }
func (e *testEntry) AccessTime() time.Time           { return epoch }
func (e *testEntry) ModTime() time.Time              { return epoch }
func (e *testEntry) ChangeTime() time.Time           { return epoch }
func (e *testEntry) CreationTime() time.Time         { return epoch }
func (e *testEntry) DeletionTime() (time.Time, bool) { return e.deleted, !e.deleted.IsZero() }
func (e *testEntry) BackupTime() (time.Time, bool)   { return time.Time{}, false }
func (e *testEntry) IsDeleted() bool                 { return !e.deleted.IsZero() }
func (e *testEntry) IsReallocated() bool             { return false }
func (e *testEntry) IsHidden() bool                  { return e.name[0] == '.' }

type testFile struct {
	testEntry
	b     block.Block
	start int64
}

func (f *testFile) Open() (stream.Stream, error) {
	r, err := f.b.NewReader()
	if err != nil {
		return nil, err
	}
	return stream.NewSlice(r, f.start, f.size)
}

type testFolder struct {
	testEntry
	children []Entry
}

func (f *testFolder) Children() ([]Entry, error) { return f.children, nil }

// testAnalyzer exposes the first and second half of a block as two files.
func testAnalyzer(b block.Block) (Folder, error) {
	if b.Size() < 2 {
		return nil, errors.New("block too small")
	}
	half := b.Size() / 2
	return &testFolder{
		testEntry: testEntry{name: "/", path: "/"},
		children: []Entry{
			&testFile{testEntry: testEntry{name: "head", path: "/head", size: half}, b: b},
			&testFile{testEntry: testEntry{name: ".tail", path: "/.tail", size: b.Size() - half, deleted: epoch}, b: b, start: half},
		},
	}, nil
}

func testBlock(t *testing.T, typ string, data []byte) block.Block {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/fs.img", data, 0644))
	f, err := stream.Open(mem, "/fs.img")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return block.NewSource(typ, f)
}

func TestAnalyzers_Open(t *testing.T) {
	analyzers := NewAnalyzers()
	analyzers.Register("test_fs", testAnalyzer)
	assert.Equal(t, []string{"test_fs"}, analyzers.Types())

	root, err := analyzers.Open(testBlock(t, "test_fs", []byte("abcdefgh")))
	require.NoError(t, err)
	assert.True(t, Info(root).IsDir())
	assert.True(t, Info(root).Mode().IsDir())

	children, err := root.Children()
	require.NoError(t, err)
	require.Len(t, children, 2)

	tests := []struct {
		name    string
		data    string
		hidden  bool
		deleted bool
	}{
		{"head", "abcd", false, false},
		{".tail", "efgh", true, true},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, ok := children[i].(File)
			require.True(t, ok)
			assert.Equal(t, tt.name, file.Name())
			assert.Equal(t, tt.hidden, file.IsHidden())
			assert.Equal(t, tt.deleted, file.IsDeleted())
			_, ok = file.DeletionTime()
			assert.Equal(t, tt.deleted, ok)

			info := Info(file)
			assert.False(t, info.IsDir())
			assert.Equal(t, int64(4), info.Size())
			assert.Equal(t, fs.FileMode(0640), info.Mode())
			assert.Equal(t, epoch, info.ModTime())

			r, err := file.Open()
			require.NoError(t, err)
			data, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, tt.data, string(data))
		})
	}
}

func TestAnalyzers_Errors(t *testing.T) {
	analyzers := NewAnalyzers()
	analyzers.Register("test_fs", testAnalyzer)

	_, err := analyzers.Open(testBlock(t, "ext", []byte("abcdefgh")))
	assert.True(t, errors.Is(err, ErrNoAnalyzer))

	_, err = analyzers.Open(block.Null())
	assert.True(t, errors.Is(err, block.ErrInvalidBlock))

	_, err = analyzers.Open(testBlock(t, "test_fs", []byte("a")))
	assert.EqualError(t, err, "could not analyze test_fs block 0: block too small")

	analyzers.Register("test_fs", nil)
	_, ok := analyzers.Lookup("test_fs")
	assert.False(t, ok)
	assert.Empty(t, analyzers.Types())
}

func TestOpen(t *testing.T) {
	Register("test_fs", testAnalyzer)
	defer Register("test_fs", nil)

	root, err := Open(testBlock(t, "test_fs", []byte("abcdefgh")))
	require.NoError(t, err)
	assert.Equal(t, "/", root.Path())
}
