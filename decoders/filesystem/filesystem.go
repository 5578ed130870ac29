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

// Package filesystem recognizes filesystems by the signatures of their
// superblocks or boot sectors. A recognized block gets a single handled
// child of the filesystem type, which vfs analyzers can open.
package filesystem

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensicblocks/block"
	"github.com/forensicanalysis/forensicblocks/decoder"
	"github.com/forensicanalysis/forensicblocks/stream"
)

// Filesystem types.
const (
	TypeExt     = "ext"
	TypeNTFS    = "ntfs"
	TypeExFAT   = "exfat"
	TypeFAT     = "fat"
	TypeHFSPlus = "hfsplus"
	TypeAPFS    = "apfs"
	TypeISO9660 = "iso9660"
)

// DetectFunc reads the superblock from r and returns the attributes of the
// filesystem if its signature matches.
type DetectFunc func(r *Reader) (map[string]interface{}, bool, error)

// Signature describes a recognizable filesystem.
type Signature struct {
	Type        string
	Description string
	Detect      DetectFunc `structs:"-"`
}

// Signatures in registration order.
var Signatures = []Signature{
	{TypeExt, "ext2/3/4 superblock", detectExt},
	{TypeNTFS, "NTFS boot sector", detectNTFS},
	{TypeExFAT, "exFAT boot sector", detectExFAT},
	{TypeFAT, "FAT12/16/32 boot sector", detectFAT},
	{TypeHFSPlus, "HFS+/HFSX volume header", detectHFSPlus},
	{TypeAPFS, "APFS container superblock", detectAPFS},
	{TypeISO9660, "ISO 9660 primary volume descriptor", detectISO9660},
}

// Register adds a decoder for each signature to r.
func Register(r *decoder.Registry) error {
	for _, sig := range Signatures {
		if err := r.Register(decoder.CategoryFilesystem, sig.Type, sig.Description, Decoder(sig)); err != nil {
			return err
		}
	}
	return nil
}

// Decoder returns the decoder for sig.
func Decoder(sig Signature) decoder.Func {
	return func(b block.Block, out *decoder.Output) (bool, error) {
		r, err := b.NewReader()
		if err != nil {
			return false, err
		}
		attrs, ok, err := sig.Detect(&Reader{s: r})
		if err != nil || !ok {
			return false, err
		}

		fs, err := block.NewSlice(b, sig.Type, 0, -1)
		if err != nil {
			return false, err
		}
		attrs["filesystem"] = sig.Type
		if err := decoder.SetAttributes(fs, attrs); err != nil {
			return false, err
		}
		if err := block.SetRange(fs, block.SectorSize(b)); err != nil {
			return false, err
		}
		if err := fs.SetHandled(true); err != nil {
			return false, err
		}
		if err := b.AddChild(fs); err != nil {
			return false, err
		}
		out.New = append(out.New, fs)
		return true, nil
	}
}

// Reader reads fixed size structures from a block stream. Reads outside of
// the stream return nil.
type Reader struct {
	s stream.Stream
}

// Read returns n bytes at off, or nil if the stream is too short.
func (r *Reader) Read(off int64, n int) ([]byte, error) {
	if off+int64(n) > r.s.Size() {
		return nil, nil
	}
	return stream.ReadAt(r.s, off, n)
}

// Match reports whether the bytes at off equal magic.
func (r *Reader) Match(off int64, magic string) (bool, error) {
	data, err := r.Read(off, len(magic))
	if err != nil || data == nil {
		return false, err
	}
	return string(data) == magic, nil
}

func trim(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " ")
}

func uuidString(b []byte) string {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return ""
	}
	return id.String()
}

func powerOfTwo(i int64) bool {
	return i > 0 && i&(i-1) == 0
}

func detectExt(r *Reader) (map[string]interface{}, bool, error) {
	sb, err := r.Read(1024, 1024)
	if err != nil || sb == nil {
		return nil, false, err
	}
	le := binary.LittleEndian
	if le.Uint16(sb[56:58]) != 0xEF53 {
		return nil, false, nil
	}
	compat, incompat := le.Uint32(sb[92:96]), le.Uint32(sb[96:100])
	version := "ext2"
	switch {
	case incompat&(0x40|0x80|0x200) != 0: // extents, 64bit, flex_bg
		version = "ext4"
	case compat&0x4 != 0: // has_journal
		version = "ext3"
	}
	logBlockSize := le.Uint32(sb[24:28])
	if logBlockSize > 6 {
		return nil, false, errors.Wrapf(decoder.ErrStructure, "ext log block size %d", logBlockSize)
	}
	blockSize := int64(1024) << logBlockSize
	return map[string]interface{}{
		"version":      version,
		"block_size":   blockSize,
		"block_count":  int64(le.Uint32(sb[4:8])),
		"inode_count":  int64(le.Uint32(sb[0:4])),
		"volume_name":  trim(sb[120:136]),
		"volume_uuid":  uuidString(sb[104:120]),
		"last_mounted": trim(sb[136:200]),
	}, true, nil
}

func detectNTFS(r *Reader) (map[string]interface{}, bool, error) {
	ok, err := r.Match(3, "NTFS    ")
	if err != nil || !ok {
		return nil, false, err
	}
	bs, err := r.Read(0, 512)
	if err != nil || bs == nil {
		return nil, false, err
	}
	le := binary.LittleEndian
	bytesPerSector := int64(le.Uint16(bs[11:13]))
	if !powerOfTwo(bytesPerSector) || bytesPerSector < 256 || bytesPerSector > 4096 {
		return nil, false, errors.Wrapf(decoder.ErrStructure, "ntfs bytes per sector %d", bytesPerSector)
	}
	if bs[13] == 0 {
		return nil, false, errors.Wrap(decoder.ErrStructure, "ntfs sectors per cluster 0")
	}
	return map[string]interface{}{
		"bytes_per_sector":    bytesPerSector,
		"sectors_per_cluster": int64(bs[13]),
		"total_sectors":       int64(le.Uint64(bs[40:48])),
		"mft_cluster":         int64(le.Uint64(bs[48:56])),
		"serial_number":       int64(le.Uint64(bs[72:80])),
	}, true, nil
}

func detectExFAT(r *Reader) (map[string]interface{}, bool, error) {
	ok, err := r.Match(3, "EXFAT   ")
	if err != nil || !ok {
		return nil, false, err
	}
	bs, err := r.Read(0, 512)
	if err != nil || bs == nil {
		return nil, false, err
	}
	sectorShift, clusterShift := bs[108], bs[109]
	if sectorShift < 9 || sectorShift > 12 || int(sectorShift)+int(clusterShift) > 25 {
		return nil, false, errors.Wrapf(decoder.ErrStructure, "exfat shifts %d and %d", sectorShift, clusterShift)
	}
	le := binary.LittleEndian
	return map[string]interface{}{
		"bytes_per_sector":    int64(1) << sectorShift,
		"sectors_per_cluster": int64(1) << clusterShift,
		"volume_length":       int64(le.Uint64(bs[72:80])),
		"cluster_count":       int64(le.Uint32(bs[92:96])),
		"serial_number":       int64(le.Uint32(bs[100:104])),
	}, true, nil
}

func detectFAT(r *Reader) (map[string]interface{}, bool, error) {
	bs, err := r.Read(0, 512)
	if err != nil || bs == nil {
		return nil, false, err
	}
	le := binary.LittleEndian
	if le.Uint16(bs[510:512]) != 0xAA55 {
		return nil, false, nil
	}
	var version, label string
	var serial uint32
	switch {
	case strings.HasPrefix(string(bs[82:90]), "FAT32"):
		version, label, serial = "FAT32", trim(bs[71:82]), le.Uint32(bs[67:71])
	case strings.HasPrefix(string(bs[54:62]), "FAT12"):
		version, label, serial = "FAT12", trim(bs[43:54]), le.Uint32(bs[39:43])
	case strings.HasPrefix(string(bs[54:62]), "FAT16"):
		version, label, serial = "FAT16", trim(bs[43:54]), le.Uint32(bs[39:43])
	default:
		return nil, false, nil
	}
	bytesPerSector := int64(le.Uint16(bs[11:13]))
	if !powerOfTwo(bytesPerSector) || bytesPerSector < 512 {
		return nil, false, errors.Wrapf(decoder.ErrStructure, "fat bytes per sector %d", bytesPerSector)
	}
	if !powerOfTwo(int64(bs[13])) {
		return nil, false, errors.Wrapf(decoder.ErrStructure, "fat sectors per cluster %d", bs[13])
	}
	return map[string]interface{}{
		"version":             version,
		"oem_name":            trim(bs[3:11]),
		"bytes_per_sector":    bytesPerSector,
		"sectors_per_cluster": int64(bs[13]),
		"volume_label":        label,
		"serial_number":       int64(serial),
	}, true, nil
}

func detectHFSPlus(r *Reader) (map[string]interface{}, bool, error) {
	vh, err := r.Read(1024, 512)
	if err != nil || vh == nil {
		return nil, false, err
	}
	var version string
	switch string(vh[0:2]) {
	case "H+":
		version = "HFS+"
	case "HX":
		version = "HFSX"
	default:
		return nil, false, nil
	}
	be := binary.BigEndian
	blockSize := int64(be.Uint32(vh[40:44]))
	if blockSize == 0 || blockSize%512 != 0 {
		return nil, false, errors.Wrapf(decoder.ErrStructure, "hfs block size %d", blockSize)
	}
	return map[string]interface{}{
		"version":      version,
		"block_size":   blockSize,
		"total_blocks": int64(be.Uint32(vh[44:48])),
		"free_blocks":  int64(be.Uint32(vh[48:52])),
		"file_count":   int64(be.Uint32(vh[32:36])),
	}, true, nil
}

func detectAPFS(r *Reader) (map[string]interface{}, bool, error) {
	ok, err := r.Match(32, "NXSB")
	if err != nil || !ok {
		return nil, false, err
	}
	sb, err := r.Read(0, 88)
	if err != nil || sb == nil {
		return nil, false, err
	}
	le := binary.LittleEndian
	blockSize := int64(le.Uint32(sb[36:40]))
	if blockSize < 4096 {
		return nil, false, errors.Wrapf(decoder.ErrStructure, "apfs block size %d", blockSize)
	}
	return map[string]interface{}{
		"block_size":     blockSize,
		"block_count":    int64(le.Uint64(sb[40:48])),
		"container_uuid": uuidString(sb[72:88]),
	}, true, nil
}

func detectISO9660(r *Reader) (map[string]interface{}, bool, error) {
	ok, err := r.Match(32769, "CD001")
	if err != nil || !ok {
		return nil, false, err
	}
	pvd, err := r.Read(32768, 2048)
	if err != nil || pvd == nil {
		return nil, false, err
	}
	le := binary.LittleEndian
	return map[string]interface{}{
		"system_id":          trim(pvd[8:40]),
		"volume_id":          trim(pvd[40:72]),
		"volume_blocks":      int64(le.Uint32(pvd[80:84])),
		"logical_block_size": int64(le.Uint16(pvd[128:130])),
	}, true, nil
}
