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

package filesystem

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

func source(t *testing.T, data []byte) *block.Source {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/volume.raw", data, 0644))
	f, err := stream.Open(fs, "/volume.raw")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return block.NewSource(block.TypeSource, f)
}

func extImage() []byte {
	data := make([]byte, 4096)
	sb := data[1024:]
	binary.LittleEndian.PutUint32(sb[0:], 128)
	binary.LittleEndian.PutUint32(sb[4:], 4)
	binary.LittleEndian.PutUint32(sb[24:], 0)
	binary.LittleEndian.PutUint16(sb[56:], 0xEF53)
	binary.LittleEndian.PutUint32(sb[96:], 0x40)
	copy(sb[104:], []byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0})
	copy(sb[120:], "rootfs")
	return data
}

func ntfsImage() []byte {
	data := make([]byte, 4096)
	copy(data[3:], "NTFS    ")
	binary.LittleEndian.PutUint16(data[11:], 512)
	data[13] = 8
	binary.LittleEndian.PutUint64(data[40:], 7)
	binary.LittleEndian.PutUint16(data[510:], 0xAA55)
	return data
}

func exfatImage() []byte {
	data := make([]byte, 4096)
	copy(data[3:], "EXFAT   ")
	data[108] = 9
	data[109] = 3
	binary.LittleEndian.PutUint16(data[510:], 0xAA55)
	return data
}

func fatImage(label string, offset int) []byte {
	data := make([]byte, 4096)
	copy(data[3:], "MSDOS5.0")
	binary.LittleEndian.PutUint16(data[11:], 512)
	data[13] = 4
	copy(data[offset:], label)
	binary.LittleEndian.PutUint16(data[510:], 0xAA55)
	return data
}

func hfsImage(sig string) []byte {
	data := make([]byte, 4096)
	copy(data[1024:], sig)
	binary.BigEndian.PutUint32(data[1024+40:], 4096)
	binary.BigEndian.PutUint32(data[1024+44:], 1)
	return data
}

func apfsImage() []byte {
	data := make([]byte, 4096)
	copy(data[32:], "NXSB")
	binary.LittleEndian.PutUint32(data[36:], 4096)
	binary.LittleEndian.PutUint64(data[40:], 1)
	return data
}

func isoImage() []byte {
	data := make([]byte, 36*1024)
	pvd := data[32768:]
	pvd[0] = 1
	copy(pvd[1:], "CD001")
	copy(pvd[40:72], "MY_DISC                         ")
	binary.LittleEndian.PutUint32(pvd[80:], 18)
	binary.LittleEndian.PutUint16(pvd[128:], 2048)
	return data
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		typ   string
		attrs map[string]interface{}
	}{
		{"ext4", extImage(), TypeExt, map[string]interface{}{
			"version": "ext4", "block_size": int64(1024), "volume_name": "rootfs",
			"volume_uuid": "12345678-9abc-def0-1234-56789abcdef0",
		}},
		{"ntfs", ntfsImage(), TypeNTFS, map[string]interface{}{"bytes_per_sector": int64(512), "total_sectors": int64(7)}},
		{"exfat", exfatImage(), TypeExFAT, map[string]interface{}{"bytes_per_sector": int64(512), "sectors_per_cluster": int64(8)}},
		{"fat16", fatImage("FAT16   ", 54), TypeFAT, map[string]interface{}{"version": "FAT16", "oem_name": "MSDOS5.0"}},
		{"fat32", fatImage("FAT32   ", 82), TypeFAT, map[string]interface{}{"version": "FAT32"}},
		{"hfs+", hfsImage("H+"), TypeHFSPlus, map[string]interface{}{"version": "HFS+", "block_size": int64(4096)}},
		{"hfsx", hfsImage("HX"), TypeHFSPlus, map[string]interface{}{"version": "HFSX"}},
		{"apfs", apfsImage(), TypeAPFS, map[string]interface{}{"block_size": int64(4096), "block_count": int64(1)}},
		{"iso9660", isoImage(), TypeISO9660, map[string]interface{}{"volume_id": "MY_DISC", "logical_block_size": int64(2048)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := decoder.NewRegistry()
			require.NoError(t, Register(r))
			root := source(t, tt.data)

			report, err := decoder.NewDispatcher(r).Decode(root)
			require.NoError(t, err)
			assert.Empty(t, report.Unrecognized)

			require.Len(t, root.Children(), 1)
			fs := root.Children()[0]
			assert.Equal(t, tt.typ, fs.Type())
			assert.True(t, fs.IsHandled())
			assert.Equal(t, root.Size(), fs.Size())

			filesystem, err := fs.Attribute("filesystem")
			require.NoError(t, err)
			assert.Equal(t, tt.typ, filesystem.Str())
			for name, want := range tt.attrs {
				got, err := fs.Attribute(name)
				require.NoError(t, err)
				assert.Equal(t, want, got.Interface(), name)
			}
		})
	}
}

func TestDecode_NotRecognized(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"zeros", make([]byte, 64*1024)},
		{"tiny", []byte{0x53, 0xEF}},
		{"boot signature only", func() []byte {
			data := make([]byte, 512)
			binary.LittleEndian.PutUint16(data[510:], 0xAA55)
			return data
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := decoder.NewRegistry()
			require.NoError(t, Register(r))
			root := source(t, tt.data)

			report, err := decoder.NewDispatcher(r).Decode(root)
			require.NoError(t, err)
			assert.Empty(t, root.Children())
			assert.Equal(t, []block.Block{root}, report.Unrecognized)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	mutate := func(data []byte, fn func(data []byte)) []byte {
		fn(data)
		return data
	}
	tests := []struct {
		name   string
		data   []byte
		detect DetectFunc
	}{
		{"ext log block size", mutate(extImage(), func(d []byte) { binary.LittleEndian.PutUint32(d[1024+24:], 54) }), detectExt},
		{"ntfs zero sector size", mutate(ntfsImage(), func(d []byte) { binary.LittleEndian.PutUint16(d[11:], 0) }), detectNTFS},
		{"ntfs odd sector size", mutate(ntfsImage(), func(d []byte) { binary.LittleEndian.PutUint16(d[11:], 520) }), detectNTFS},
		{"ntfs huge sector size", mutate(ntfsImage(), func(d []byte) { binary.LittleEndian.PutUint16(d[11:], 8192) }), detectNTFS},
		{"ntfs zero cluster", mutate(ntfsImage(), func(d []byte) { d[13] = 0 }), detectNTFS},
		{"exfat sector shift", mutate(exfatImage(), func(d []byte) { d[108] = 8 }), detectExFAT},
		{"exfat cluster shift", mutate(exfatImage(), func(d []byte) { d[108], d[109] = 12, 14 }), detectExFAT},
		{"fat sector size", mutate(fatImage("FAT16   ", 54), func(d []byte) { binary.LittleEndian.PutUint16(d[11:], 256) }), detectFAT},
		{"fat cluster size", mutate(fatImage("FAT32   ", 82), func(d []byte) { d[13] = 3 }), detectFAT},
		{"hfs zero block size", mutate(hfsImage("H+"), func(d []byte) { binary.BigEndian.PutUint32(d[1024+40:], 0) }), detectHFSPlus},
		{"hfs odd block size", mutate(hfsImage("HX"), func(d []byte) { binary.BigEndian.PutUint32(d[1024+40:], 1000) }), detectHFSPlus},
		{"apfs block size", mutate(apfsImage(), func(d []byte) { binary.LittleEndian.PutUint32(d[36:], 512) }), detectAPFS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := source(t, tt.data)
			s, err := root.NewReader()
			require.NoError(t, err)
			_, ok, err := tt.detect(&Reader{s: s})
			assert.False(t, ok)
			assert.True(t, errors.Is(err, decoder.ErrStructure), "%v", err)

			r := decoder.NewRegistry()
			require.NoError(t, Register(r))
			report, err := decoder.NewDispatcher(r).Decode(root)
			require.NoError(t, err)
			assert.Empty(t, root.Children())
			assert.False(t, root.IsHandled())
			assert.Equal(t, []block.Block{root}, report.Unrecognized)
		})
	}
}

func TestRegister(t *testing.T) {
	r := decoder.NewRegistry()
	require.NoError(t, Register(r))
	list := r.List(decoder.CategoryFilesystem)
	require.Len(t, list, len(Signatures))
	for i, sig := range Signatures {
		assert.Equal(t, sig.Type, list[i].ID)
	}
}
