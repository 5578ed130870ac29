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

package cmd

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/forensicblocks/block"
	"github.com/forensicanalysis/forensicblocks/blockstore"
	"github.com/forensicanalysis/forensicblocks/decoder"
	"github.com/forensicanalysis/forensicblocks/stream"
)

func init() {
	color.NoColor = true
}

// testImage returns a 16 sector image with a master boot record and one
// Linux partition in the sectors 2 to 9.
func testImage() []byte {
	data := make([]byte, 16*512)
	entry := data[446:462]
	entry[0] = 0x80
	entry[4] = 0x83
	binary.LittleEndian.PutUint32(entry[8:12], 2)
	binary.LittleEndian.PutUint32(entry[12:16], 8)
	binary.LittleEndian.PutUint16(data[510:512], 0xAA55)
	for i := 1024; i < 5120; i++ {
		data[i] = 0x5A
	}
	return data
}

func setup(t *testing.T) (dir, storePath, imagePath string) {
	dir = t.TempDir()
	storePath = filepath.Join(dir, "case.blocks")
	imagePath = filepath.Join(dir, "disk.raw")
	require.NoError(t, os.WriteFile(imagePath, testImage(), 0644))
	return dir, storePath, imagePath
}

func run(c *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	c.SetArgs(args)
	c.SetOut(&out)
	c.SetErr(&out)
	err := c.Execute()
	return out.String(), err
}

func decode(t *testing.T, storePath string, images ...string) string {
	args := append([]string{"--config", t.TempDir(), storePath}, images...)
	output, err := run(Decode(), args...)
	require.NoError(t, err)

	store, err := blockstore.Open(storePath)
	require.NoError(t, err)
	defer store.Close()
	trees, err := store.Trees()
	require.NoError(t, err)
	require.NotEmpty(t, trees)
	assert.Contains(t, output, trees[len(trees)-1].ID)
	return trees[len(trees)-1].ID
}

func TestDecode(t *testing.T) {
	_, storePath, imagePath := setup(t)

	output, err := run(Decode(), "--config", t.TempDir(), storePath, imagePath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(output, "tree--"))
	assert.True(t, strings.HasSuffix(output, "\t"+imagePath+"\t6 blocks, 1 unrecognized, 0 errors\n"), output)

	// a second run adds a second tree to the existing store
	decode(t, storePath, imagePath)
	store, err := blockstore.Open(storePath)
	require.NoError(t, err)
	defer store.Close()
	trees, err := store.Trees()
	require.NoError(t, err)
	assert.Len(t, trees, 2)
}

func TestDecode_Split(t *testing.T) {
	dir, storePath, _ := setup(t)
	data := testImage()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "usb.img.001"), data[:3000], 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "usb.img.002"), data[3000:], 0644))

	output, err := run(Decode(), "--config", t.TempDir(), storePath, filepath.Join(dir, "usb.img.001"))
	require.NoError(t, err)
	assert.Contains(t, output, "6 blocks, 1 unrecognized, 0 errors")
}

func TestDecode_Errors(t *testing.T) {
	dir, storePath, imagePath := setup(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing image", []string{"--config", t.TempDir(), storePath, filepath.Join(dir, "missing.raw")}},
		{"one argument", []string{storePath}},
		{"invalid sector size", []string{"--config", t.TempDir(), "--sector-size", "0", storePath, imagePath}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(Decode(), tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestDecode_Disabled(t *testing.T) {
	_, storePath, imagePath := setup(t)

	output, err := run(Decode(), "--config", t.TempDir(), "--disable", "dos", storePath, imagePath)
	require.NoError(t, err)
	assert.Contains(t, output, "1 blocks, 1 unrecognized, 0 errors")
}

func TestTree(t *testing.T) {
	_, storePath, imagePath := setup(t)
	id := decode(t, storePath, imagePath)

	output, err := run(Tree(), storePath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(output, id+"\t"+imagePath+"\t6 blocks\t"), output)

	want := "source [0, 8191] 8192 bytes (uid 1)\n" +
		"  partition_system [0, 8191] 8192 bytes (uid 2)\n" +
		"    master_boot_record [0, 511] 512 bytes (uid 3)\n" +
		"    freespace [512, 1023] 512 bytes (uid 4)\n" +
		"    partition [1024, 5119] 4096 bytes (uid 5)\n" +
		"    freespace [5120, 8191] 3072 bytes (uid 6)\n"
	tests := []struct {
		name string
		args []string
	}{
		{"print", []string{storePath, id}},
		{"verify", []string{"--verify", storePath, id}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := run(Tree(), tt.args...)
			require.NoError(t, err)
			assert.Equal(t, want, output)
		})
	}

	_, err = run(Tree(), storePath, "tree--missing")
	assert.True(t, errors.Is(err, blockstore.ErrTreeNotFound), "%v", err)
	_, err = run(Tree(), storePath+".missing")
	assert.Error(t, err)
}

func TestCarve(t *testing.T) {
	dir, storePath, imagePath := setup(t)
	id := decode(t, storePath, imagePath)
	out := filepath.Join(dir, "partition.bin")

	output, err := run(Carve(), storePath, id, "5", out)
	require.NoError(t, err)
	assert.Equal(t, "carved 4096 bytes to '"+out+"'\n", output)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0x5A}, 4096), data)

	_, err = run(Carve(), storePath, id, "99", out)
	assert.Error(t, err)
	_, err = run(Carve(), storePath, id, "five", out)
	assert.Error(t, err)
}

func TestCarve_MovedImage(t *testing.T) {
	_, storePath, imagePath := setup(t)
	id := decode(t, storePath, imagePath)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/evidence/disk.raw", testImage(), 0644))

	store, err := blockstore.Open(storePath)
	require.NoError(t, err)
	defer store.Close()

	_, _, err = carve(fs, store, id, 3, "", "")
	assert.Error(t, err)

	dest, n, err := carve(fs, store, id, 3, "/evidence/disk.raw", "")
	require.NoError(t, err)
	assert.Equal(t, "disk.raw_3_master_boot_record_0-511.bin", dest)
	assert.Equal(t, int64(512), n)
	data, err := afero.ReadFile(fs, dest)
	require.NoError(t, err)
	assert.Equal(t, testImage()[:512], data)
}

func TestCarve_Archive(t *testing.T) {
	_, storePath, imagePath := setup(t)
	id := decode(t, storePath, imagePath)

	output, err := run(Carve(), "--archive", storePath, id, "5")
	require.NoError(t, err)
	name := id + "/5_partition_1024-5119.bin"
	assert.Equal(t, "carved 4096 bytes to '"+name+"'\n", output)

	store, err := blockstore.Open(storePath)
	require.NoError(t, err)
	defer store.Close()
	var buf bytes.Buffer
	_, err = store.Extract(name, &buf)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0x5A}, 4096), buf.Bytes())
}

func TestDecoders(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"all", nil, []string{"apm", "dos", "ext", "ntfs", "exfat", "fat", "hfsplus", "apfs", "iso9660"}},
		{"category", []string{"--category", "partition_system"}, []string{"apm", "dos"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := run(Decoders(), tt.args...)
			require.NoError(t, err)

			var list []map[string]string
			require.NoError(t, json.Unmarshal([]byte(output), &list))
			var ids []string
			for _, d := range list {
				ids = append(ids, d["id"])
				assert.NotEmpty(t, d["description"])
				assert.NotEmpty(t, d["category"])
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestDescribe(t *testing.T) {
	d := decoder.Decoder{ID: "apm", Category: decoder.CategoryPartitionSystem}
	assert.Equal(t, map[string]interface{}{
		"id":       "apm",
		"category": decoder.CategoryPartitionSystem,
	}, describe(d))
}

func TestCarvedFileName(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/disk.raw", testImage(), 0644))
	f, err := stream.Open(fs, "/disk.raw")
	require.NoError(t, err)
	defer f.Close()
	root := block.NewSource(block.TypeSource, f)
	partition, err := block.NewSlice(root, block.TypePartition, 1024, 5119)
	require.NoError(t, err)
	require.NoError(t, partition.SetUID(5))

	tests := []struct {
		name  string
		image string
		want  string
	}{
		{"linux path", "/cases/2020/usb.img.001", "usb.img.001_5_partition_1024-5119.bin"},
		{"windows path", `C:\Users\user\disk.E01`, "disk.E01_5_partition_1024-5119.bin"},
		{"no image", "", "5_partition_1024-5119.bin"},
		{"long image", "/cases/" + strings.Repeat("x", 60) + ".raw", strings.Repeat("x", 34) + ".raw_5_partition_1024-5119.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := carvedFileName(tt.image, partition)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), maxFileName)
		})
	}
}
