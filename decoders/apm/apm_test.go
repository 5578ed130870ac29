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

package apm

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/forensicblocks/block"
	"github.com/forensicanalysis/forensicblocks/decoder"
	"github.com/forensicanalysis/forensicblocks/stream"
)

type testEntry struct {
	typ, name    string
	start, count uint32
}

func image(size int, blockSize uint16, mapEntries uint32, entries []testEntry) []byte {
	data := make([]byte, size)
	binary.BigEndian.PutUint16(data[0:], ddrSignature)
	binary.BigEndian.PutUint16(data[2:], blockSize)
	binary.BigEndian.PutUint32(data[4:], uint32(size/int(blockSize)))
	for i, e := range entries {
		off := (i + 1) * int(blockSize)
		binary.BigEndian.PutUint16(data[off:], entrySignature)
		binary.BigEndian.PutUint32(data[off+4:], mapEntries)
		binary.BigEndian.PutUint32(data[off+8:], e.start)
		binary.BigEndian.PutUint32(data[off+12:], e.count)
		copy(data[off+16:off+48], e.name)
		copy(data[off+48:off+80], e.typ)
	}
	return data
}

func source(t *testing.T, data []byte) *block.Source {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/disk.dmg", data, 0644))
	f, err := stream.Open(fs, "/disk.dmg")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return block.NewSource(block.TypeSource, f)
}

func attr(t *testing.T, b block.Block, name string) int64 {
	v, err := b.Attribute(name)
	require.NoError(t, err)
	return v.Int()
}

func TestDecode(t *testing.T) {
	entries := []testEntry{
		{typ: typeMap, name: "Apple", start: 1, count: 3},
		{typ: "Apple_HFS", name: "Macintosh HD", start: 8, count: 16},
		{typ: typeFree, name: "Extra", start: 32, count: 16},
	}
	root := source(t, image(64*512, 512, 3, entries))

	r := decoder.NewRegistry()
	require.NoError(t, Register(r))
	report, err := decoder.NewDispatcher(r).Decode(root)
	require.NoError(t, err)

	assert.True(t, root.IsHandled())
	require.Len(t, root.Children(), 1)
	system := root.Children()[0]
	assert.Equal(t, block.TypePartitionSystem, system.Type())
	assert.Equal(t, int64(0), system.Start())
	assert.Equal(t, root.End(), system.End())
	assert.True(t, system.IsHandled())
	assert.Equal(t, int64(512), attr(t, system, "sector_size"))
	assert.Equal(t, int64(3), attr(t, system, "map_entries"))

	children := system.Children()
	require.Len(t, children, 7)

	want := []struct {
		typ        string
		start, end int64
	}{
		{TypeDriverDescriptor, 0, 0},
		{block.TypePartition, 1, 3},
		{block.TypeFreespace, 4, 7},
		{block.TypePartition, 8, 23},
		{block.TypeFreespace, 24, 31},
		{block.TypeFreespace, 32, 47},
		{block.TypeFreespace, 48, 63},
	}
	for i, w := range want {
		assert.Equal(t, w.typ, children[i].Type(), "child %d", i)
		assert.Equal(t, w.start, attr(t, children[i], "start_sector"), "child %d", i)
		assert.Equal(t, w.end, attr(t, children[i], "end_sector"), "child %d", i)
		assert.Equal(t, w.start*512, children[i].Start(), "child %d", i)
		assert.Equal(t, (w.end+1)*512-1, children[i].End(), "child %d", i)
	}
	assert.Equal(t, int64(511), children[0].End())

	hfs := children[3]
	name, err := hfs.Attribute("name")
	require.NoError(t, err)
	assert.Equal(t, "Macintosh HD", name.Str())
	typ, err := hfs.Attribute("partition_type")
	require.NoError(t, err)
	assert.Equal(t, "Apple_HFS", typ.Str())

	free, err := children[5].Attribute("partition_type")
	require.NoError(t, err)
	assert.Equal(t, typeFree, free.Str())

	assert.True(t, children[1].IsHandled())
	assert.Equal(t, []block.Block{hfs}, report.Unrecognized)
	assert.NoError(t, block.Verify(root))
}

func TestDecode_NotRecognized(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"zeros", make([]byte, 4096)},
		{"too small", []byte("ER")},
		{"no map entry", image(4096, 512, 1, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := source(t, tt.data)
			ok, err := Decode(root, &decoder.Output{})
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, root.Children())
		})
	}
}

func TestDecode_Structure(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"entry count exceeds block", image(4096, 512, 100, []testEntry{{typ: typeMap, start: 1, count: 1}})},
		{"entry exceeds block", image(4096, 512, 1, []testEntry{{typ: "Apple_HFS", start: 2, count: 100}})},
		{"overlapping entries", image(8192, 512, 2, []testEntry{
			{typ: "Apple_HFS", start: 4, count: 4},
			{typ: "Apple_HFS", start: 6, count: 4},
		})},
		{"entry over driver descriptor", image(4096, 512, 1, []testEntry{{typ: "Apple_HFS", start: 0, count: 2}})},
		{"bad block size", image(4096, 1000, 1, []testEntry{{typ: typeMap, start: 1, count: 1}})},
		{"missing entry signature", image(4096, 512, 3, []testEntry{{typ: typeMap, start: 1, count: 3}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := source(t, tt.data)
			ok, err := Decode(root, &decoder.Output{})
			assert.False(t, ok)
			assert.True(t, errors.Is(err, decoder.ErrStructure), "%v", err)
			assert.Empty(t, root.Children())
			assert.False(t, root.IsHandled())
		})
	}
}

func TestDecode_TruncatedDispatch(t *testing.T) {
	root := source(t, image(4096, 512, 100, []testEntry{{typ: typeMap, start: 1, count: 1}}))
	r := decoder.NewRegistry()
	require.NoError(t, Register(r))

	report, err := decoder.NewDispatcher(r).Decode(root)
	require.NoError(t, err)
	assert.False(t, root.IsHandled())
	assert.Empty(t, root.Children())
	assert.Equal(t, []block.Block{root}, report.Unrecognized)
}
