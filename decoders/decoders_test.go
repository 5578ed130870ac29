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

package decoders

import (
	"encoding/binary"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/forensicblocks/block"
	"github.com/forensicanalysis/forensicblocks/decoder"
	"github.com/forensicanalysis/forensicblocks/decoders/dos"
	"github.com/forensicanalysis/forensicblocks/decoders/filesystem"
	"github.com/forensicanalysis/forensicblocks/stream"
)

func TestRegisterAll(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{decoder.CategoryPartitionSystem, decoder.CategoryFilesystem}, r.Categories())

	var ids []string
	for _, d := range r.List(decoder.CategoryPartitionSystem) {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"apm", "dos"}, ids)
	assert.Len(t, r.List(decoder.CategoryFilesystem), len(filesystem.Signatures))
}

func TestDecode_Disk(t *testing.T) {
	const sector = 512
	data := make([]byte, 128*sector)

	// MBR with a FAT16 and an ext partition
	table := data[446:]
	table[4] = 0x06
	binary.LittleEndian.PutUint32(table[8:], 2)
	binary.LittleEndian.PutUint32(table[12:], 30)
	table[16+4] = 0x83
	binary.LittleEndian.PutUint32(table[16+8:], 64)
	binary.LittleEndian.PutUint32(table[16+12:], 32)
	binary.LittleEndian.PutUint16(data[510:], 0xAA55)

	fat := data[2*sector:]
	copy(fat[3:], "MSDOS5.0")
	copy(fat[54:], "FAT16   ")
	binary.LittleEndian.PutUint16(fat[510:], 0xAA55)

	ext := data[64*sector:]
	binary.LittleEndian.PutUint16(ext[1024+56:], 0xEF53)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/disk.raw", data, 0644))
	f, err := stream.Open(fs, "/disk.raw")
	require.NoError(t, err)
	defer f.Close()
	root := block.NewSource(block.TypeSource, f)

	r, err := NewRegistry()
	require.NoError(t, err)
	report, err := decoder.NewDispatcher(r).Decode(root)
	require.NoError(t, err)
	assert.Empty(t, report.Unrecognized)
	assert.NoError(t, block.Verify(root))

	system := root.Children()[0]
	var types []string
	for _, child := range system.Children() {
		types = append(types, child.Type())
	}
	assert.Equal(t, []string{
		dos.TypeBootRecord, block.TypeFreespace, block.TypePartition,
		block.TypeFreespace, block.TypePartition, block.TypeFreespace,
	}, types)

	fatPartition := system.Children()[2]
	require.Len(t, fatPartition.Children(), 1)
	assert.Equal(t, filesystem.TypeFAT, fatPartition.Children()[0].Type())

	extPartition := system.Children()[4]
	require.Len(t, extPartition.Children(), 1)
	extFS := extPartition.Children()[0]
	assert.Equal(t, filesystem.TypeExt, extFS.Type())
	sectors, err := extFS.Attribute("sectors")
	require.NoError(t, err)
	assert.Equal(t, int64(32), sectors.Int())

	r2, err := extFS.NewReader()
	require.NoError(t, err)
	magic, err := stream.ReadAt(r2, 1024+56, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x53, 0xEF}, magic)
}
