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

// Package apm decodes Apple Partition Maps.
//
// An Apple Partition Map starts with a driver descriptor record in the first
// block of the device, followed by one partition map entry per block. Block
// size and all addresses are big endian and counted in device blocks of the
// size declared by the driver descriptor.
package apm

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensicblocks/block"
	"github.com/forensicanalysis/forensicblocks/decoder"
	"github.com/forensicanalysis/forensicblocks/stream"
)

// ID of the decoder in the registry.
const ID = "apm"

// TypeDriverDescriptor is the block type of the first device block.
const TypeDriverDescriptor = "driver_descriptor"

const (
	ddrSignature   = 0x4552 // "ER"
	entrySignature = 0x504D // "PM"
	entrySize      = 92
	minBlockSize   = 512

	typeFree = "Apple_Free"
	typeMap  = "Apple_partition_map"
)

// DriverDescriptor is the first block of an APM device.
type DriverDescriptor struct {
	Signature  uint16
	BlockSize  uint16
	BlockCount uint32
	DevType    uint16
	DevID      uint16
	Data       uint32
	DrvrCount  uint16
}

// Entry is a partition map entry.
type Entry struct {
	Signature  uint16
	MapEntries uint32
	StartBlock uint32
	BlockCount uint32
	Name       string
	Type       string
	DataStart  uint32
	DataCount  uint32
	Status     uint32
}

// Register adds the decoder to r.
func Register(r *decoder.Registry) error {
	return r.Register(decoder.CategoryPartitionSystem, ID, "Apple Partition Map", Decode)
}

func parseDriverDescriptor(data []byte) DriverDescriptor {
	reader := binary.BigEndian
	return DriverDescriptor{
		Signature:  reader.Uint16(data[0:2]),
		BlockSize:  reader.Uint16(data[2:4]),
		BlockCount: reader.Uint32(data[4:8]),
		DevType:    reader.Uint16(data[8:10]),
		DevID:      reader.Uint16(data[10:12]),
		Data:       reader.Uint32(data[12:16]),
		DrvrCount:  reader.Uint16(data[16:18]),
	}
}

func parseEntry(data []byte) Entry {
	reader := binary.BigEndian
	return Entry{
		Signature:  reader.Uint16(data[0:2]),
		MapEntries: reader.Uint32(data[4:8]),
		StartBlock: reader.Uint32(data[8:12]),
		BlockCount: reader.Uint32(data[12:16]),
		Name:       cString(data[16:48]),
		Type:       cString(data[48:80]),
		DataStart:  reader.Uint32(data[80:84]),
		DataCount:  reader.Uint32(data[84:88]),
		Status:     reader.Uint32(data[88:92]),
	}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Decode recognizes an Apple Partition Map at the start of b. On success b
// gets a partition_system child covering all of it, which holds the driver
// descriptor, one block per map entry and freespace for the gaps.
func Decode(b block.Block, out *decoder.Output) (bool, error) {
	r, err := b.NewReader()
	if err != nil {
		return false, err
	}
	if b.Size() < 2*minBlockSize {
		return false, nil
	}

	data, err := stream.ReadAt(r, 0, minBlockSize)
	if err != nil {
		return false, err
	}
	ddr := parseDriverDescriptor(data)
	if ddr.Signature != ddrSignature {
		return false, nil
	}
	blockSize := int64(ddr.BlockSize)
	if blockSize < minBlockSize || blockSize%minBlockSize != 0 {
		return false, errors.Wrapf(decoder.ErrStructure, "apm block size %d", blockSize)
	}

	data, err = stream.ReadAt(r, blockSize, entrySize)
	if err != nil {
		return false, err
	}
	first := parseEntry(data)
	if first.Signature != entrySignature {
		return false, nil
	}

	count := int64(first.MapEntries)
	if count == 0 || (count+1)*blockSize > b.Size() {
		return false, errors.Wrapf(decoder.ErrStructure, "apm declares %d map entries in %d bytes", count, b.Size())
	}

	entries := []Entry{first}
	for i := int64(1); i < count; i++ {
		data, err := stream.ReadAt(r, (i+1)*blockSize, entrySize)
		if err != nil {
			return false, err
		}
		entry := parseEntry(data)
		if entry.Signature != entrySignature {
			return false, errors.Wrapf(decoder.ErrStructure, "apm entry %d has signature %#04x", i, entry.Signature)
		}
		entries = append(entries, entry)
	}

	// validate everything before the tree is modified
	type extent struct {
		index      int
		start, end int64
	}
	extents := []extent{{index: -1, start: 0, end: blockSize - 1}}
	for i, entry := range entries {
		if entry.BlockCount == 0 {
			continue
		}
		start := int64(entry.StartBlock) * blockSize
		end := start + int64(entry.BlockCount)*blockSize - 1
		if end >= b.Size() {
			return false, errors.Wrapf(decoder.ErrStructure, "apm entry %d [%d, %d] exceeds %d bytes", i, start, end, b.Size())
		}
		extents = append(extents, extent{index: i, start: start, end: end})
	}
	sort.SliceStable(extents, func(i, j int) bool { return extents[i].start < extents[j].start })
	for i := 1; i < len(extents); i++ {
		if extents[i].start <= extents[i-1].end {
			return false, errors.Wrapf(decoder.ErrStructure, "apm entries %d and %d overlap", extents[i-1].index, extents[i].index)
		}
	}

	system, err := block.NewSlice(b, block.TypePartitionSystem, 0, -1)
	if err != nil {
		return false, err
	}
	if err := decoder.SetAttributes(system, map[string]interface{}{
		"partition_system": ID,
		"sector_size":      blockSize,
		"block_count":      int64(ddr.BlockCount),
		"device_type":      int64(ddr.DevType),
		"device_id":        int64(ddr.DevID),
		"driver_count":     int64(ddr.DrvrCount),
		"map_entries":      count,
	}); err != nil {
		return false, err
	}

	for _, e := range extents {
		child, err := entryBlock(system, entries, e.index, e.start, e.end, blockSize)
		if err != nil {
			return false, err
		}
		if err := system.AddChild(child); err != nil {
			return false, err
		}
		out.New = append(out.New, child)
	}
	freespace, err := block.FillFreespace(system, blockSize)
	if err != nil {
		return false, err
	}
	out.New = append(out.New, freespace...)

	if err := system.SetHandled(true); err != nil {
		return false, err
	}
	if err := b.AddChild(system); err != nil {
		return false, err
	}
	out.New = append(out.New, system)
	return true, nil
}

func entryBlock(system block.Block, entries []Entry, index int, start, end, blockSize int64) (block.Block, error) {
	if index < 0 {
		ddr, err := block.NewSlice(system, TypeDriverDescriptor, start, end)
		if err != nil {
			return nil, err
		}
		if err := block.SetRange(ddr, blockSize); err != nil {
			return nil, err
		}
		return ddr, ddr.SetHandled(true)
	}

	entry := entries[index]
	typ := block.TypePartition
	if entry.Type == typeFree {
		typ = block.TypeFreespace
	}
	child, err := block.NewSlice(system, typ, start, end)
	if err != nil {
		return nil, err
	}
	if err := block.SetRange(child, blockSize); err != nil {
		return nil, err
	}
	if err := decoder.SetAttributes(child, map[string]interface{}{
		"index":          int64(index),
		"name":           entry.Name,
		"partition_type": entry.Type,
		"data_start":     int64(entry.DataStart),
		"data_count":     int64(entry.DataCount),
		"status":         int64(entry.Status),
	}); err != nil {
		return nil, err
	}
	// the map itself holds no filesystem
	if entry.Type == typeMap {
		return child, child.SetHandled(true)
	}
	return child, nil
}
