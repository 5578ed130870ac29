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

// Package dos decodes DOS partition tables (master boot records) including
// chains of extended boot records.
package dos

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensicblocks/block"
	"github.com/forensicanalysis/forensicblocks/decoder"
	"github.com/forensicanalysis/forensicblocks/stream"
)

// ID of the decoder in the registry.
const ID = "dos"

// Block types produced by the decoder.
const (
	TypeBootRecord         = "master_boot_record"
	TypeExtendedBootRecord = "extended_boot_record"
	TypeExtended           = "extended_partition"
)

const (
	sectorSize     = 512
	tableOffset    = 446
	entryLength    = 16
	signature      = 0xAA55
	maxLogical     = 128
	statusInactive = 0x00
	statusActive   = 0x80
)

var typeNames = map[uint8]string{
	0x01: "FAT12",
	0x04: "FAT16 <32M",
	0x05: "Extended",
	0x06: "FAT16",
	0x07: "NTFS/exFAT/HPFS",
	0x0B: "FAT32 (CHS)",
	0x0C: "FAT32 (LBA)",
	0x0E: "FAT16 (LBA)",
	0x0F: "Extended (LBA)",
	0x82: "Linux swap",
	0x83: "Linux",
	0x85: "Linux extended",
	0x8E: "Linux LVM",
	0xA5: "FreeBSD",
	0xA8: "Darwin UFS",
	0xAB: "Darwin boot",
	0xAF: "HFS/HFS+",
	0xEE: "GPT protective",
	0xEF: "EFI system",
	0xFD: "Linux RAID",
}

// Entry is a partition table entry.
type Entry struct {
	Status uint8
	Type   uint8
	Start  uint32
	Count  uint32
}

func (e Entry) empty() bool { return e.Type == 0 || e.Count == 0 }

func (e Entry) extended() bool { return e.Type == 0x05 || e.Type == 0x0F || e.Type == 0x85 }

// Register adds the decoder to r.
func Register(r *decoder.Registry) error {
	return r.Register(decoder.CategoryPartitionSystem, ID, "DOS partition table", Decode)
}

// readTable reads the boot record at off and returns its four entries, or
// nil if there is no boot record signature.
func readTable(r stream.Stream, off int64) ([]Entry, []byte, error) {
	data, err := stream.ReadAt(r, off, sectorSize)
	if err != nil {
		return nil, nil, err
	}
	if binary.LittleEndian.Uint16(data[510:512]) != signature {
		return nil, data, nil
	}
	entries := make([]Entry, 4)
	for i := range entries {
		e := data[tableOffset+i*entryLength : tableOffset+(i+1)*entryLength]
		entries[i] = Entry{
			Status: e[0],
			Type:   e[4],
			Start:  binary.LittleEndian.Uint32(e[8:12]),
			Count:  binary.LittleEndian.Uint32(e[12:16]),
		}
	}
	return entries, data, nil
}

type extent struct {
	typ        string
	start, end int64
	index      int
	entry      Entry
}

func checkExtents(extents []extent, size int64) error {
	sort.SliceStable(extents, func(i, j int) bool { return extents[i].start < extents[j].start })
	for i, e := range extents {
		if e.end >= size {
			return errors.Wrapf(decoder.ErrStructure, "dos %s [%d, %d] exceeds %d bytes", e.typ, e.start, e.end, size)
		}
		if i > 0 && e.start <= extents[i-1].end {
			return errors.Wrapf(decoder.ErrStructure, "dos %s at %d overlaps %s", e.typ, e.start, extents[i-1].typ)
		}
	}
	return nil
}

// Decode recognizes a master boot record at the start of b, or an extended
// boot record chain if b is an extended partition. Extended partitions are
// returned as pending so their chain is decoded in the same category.
func Decode(b block.Block, out *decoder.Output) (bool, error) {
	if b.Size() < sectorSize {
		return false, nil
	}
	r, err := b.NewReader()
	if err != nil {
		return false, err
	}
	if block.Is(b, TypeExtended) {
		return decodeExtended(b, r, out)
	}
	return decodeMaster(b, r, out)
}

func decodeMaster(b block.Block, r stream.Stream, out *decoder.Output) (bool, error) {
	entries, data, err := readTable(r, 0)
	if err != nil || entries == nil {
		return false, err
	}

	extents := []extent{{typ: TypeBootRecord, start: 0, end: sectorSize - 1, index: -1}}
	for i, e := range entries {
		if e.Status != statusInactive && e.Status != statusActive {
			return false, nil
		}
		if e.empty() {
			continue
		}
		typ := block.TypePartition
		if e.extended() {
			typ = TypeExtended
		}
		start := int64(e.Start) * sectorSize
		extents = append(extents, extent{typ: typ, start: start, end: start + int64(e.Count)*sectorSize - 1, index: i, entry: e})
	}
	if len(extents) == 1 {
		return false, nil
	}
	if err := checkExtents(extents, b.Size()); err != nil {
		return false, err
	}

	system, err := block.NewSlice(b, block.TypePartitionSystem, 0, -1)
	if err != nil {
		return false, err
	}
	if err := decoder.SetAttributes(system, map[string]interface{}{
		"partition_system": ID,
		"sector_size":      int64(sectorSize),
		"disk_signature":   int64(binary.LittleEndian.Uint32(data[440:444])),
	}); err != nil {
		return false, err
	}
	if err := addExtents(system, extents, out); err != nil {
		return false, err
	}
	if err := system.SetHandled(true); err != nil {
		return false, err
	}
	if err := b.AddChild(system); err != nil {
		return false, err
	}
	out.New = append(out.New, system)
	return true, nil
}

// decodeExtended follows the extended boot records of b. The first entry
// of each record is a logical partition relative to the record, the second
// points to the next record relative to the start of b.
func decodeExtended(b block.Block, r stream.Stream, out *decoder.Output) (bool, error) {
	var extents []extent
	seen := map[int64]bool{}
	for off := int64(0); ; {
		if seen[off] || len(seen) == maxLogical {
			return false, errors.Wrapf(decoder.ErrStructure, "dos extended boot record loop at %d", off)
		}
		seen[off] = true

		entries, _, err := readTable(r, off)
		if err != nil {
			return false, err
		}
		if entries == nil {
			if off == 0 {
				return false, nil
			}
			return false, errors.Wrapf(decoder.ErrStructure, "dos extended boot record at %d without signature", off)
		}
		extents = append(extents, extent{typ: TypeExtendedBootRecord, start: off, end: off + sectorSize - 1, index: -1})

		logical := entries[0]
		if !logical.empty() {
			start := off + int64(logical.Start)*sectorSize
			extents = append(extents, extent{
				typ: block.TypePartition, start: start, end: start + int64(logical.Count)*sectorSize - 1,
				index: len(seen) - 1, entry: logical,
			})
		}

		next := entries[1]
		if next.empty() || !next.extended() {
			break
		}
		off = int64(next.Start) * sectorSize
	}
	if err := checkExtents(extents, b.Size()); err != nil {
		return false, err
	}
	if err := decoder.SetAttributes(b, map[string]interface{}{
		"sector_size":     int64(sectorSize),
		"logical_entries": int64(len(seen)),
	}); err != nil {
		return false, err
	}
	if err := addExtents(b, extents, out); err != nil {
		return false, err
	}
	return true, nil
}

// addExtents creates the children of parent and fills the gaps between
// them.
func addExtents(parent block.Block, extents []extent, out *decoder.Output) error {
	for _, e := range extents {
		child, err := block.NewSlice(parent, e.typ, e.start, e.end)
		if err != nil {
			return err
		}
		if err := block.SetRange(child, sectorSize); err != nil {
			return err
		}
		if err := parent.AddChild(child); err != nil {
			return err
		}

		switch e.typ {
		case TypeBootRecord, TypeExtendedBootRecord:
			if err := child.SetHandled(true); err != nil {
				return err
			}
			continue
		case TypeExtended:
			out.Pending = append(out.Pending, child)
		default:
			out.New = append(out.New, child)
		}
		if err := decoder.SetAttributes(child, map[string]interface{}{
			"index":               int64(e.index),
			"bootable":            e.entry.Status == statusActive,
			"partition_type":      int64(e.entry.Type),
			"partition_type_name": typeNames[e.entry.Type],
		}); err != nil {
			return err
		}
	}
	freespace, err := block.FillFreespace(parent, sectorSize)
	if err != nil {
		return err
	}
	out.New = append(out.New, freespace...)
	return nil
}
