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

// Package block implements the block graph of the decomposition engine. A
// block is a typed, attributed byte range: a whole device or image (Source),
// a sub range of another block (Slice) or nothing at all (Null). Decoders
// attach slices as children of the blocks they recognize, so the graph
// describes a medium from the device down to partitions, filesystems and
// freespace.
package block

import (
	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensicblocks/attribute"
	"github.com/forensicanalysis/forensicblocks/stream"
)

// Well known block types.
const (
	TypeSource          = "source"
	TypePartitionSystem = "partition_system"
	TypePartition       = "partition"
	TypeFreespace       = "freespace"
)

var (
	// ErrInvalidBlock is returned by operations on the Null block and on
	// slices without a parent.
	ErrInvalidBlock = errors.New("invalid block")
	// ErrUnavailable is returned when the bytes of a block cannot be reached.
	ErrUnavailable = errors.New("block is unavailable")
	// ErrContractViolation is returned for calls a block variant does not
	// accept, e.g. setting a slice complete.
	ErrContractViolation = errors.New("operation not allowed on block")
	// ErrOutOfRange is returned for slice ranges outside of the parent.
	ErrOutOfRange = errors.New("range out of parent bounds")
	// ErrCycle is returned by Walk when a block is its own descendant.
	ErrCycle = errors.New("block graph has a cycle")
)

// Block is a node in the block graph.
//
// Getters of the Null block return zero values; every other operation on it
// fails with ErrInvalidBlock. Check Valid before use.
type Block interface {
	// Valid is false only for the Null block.
	Valid() bool

	// UID is 0 until the block is added to a Graph.
	UID() int64
	// SetUID assigns the uid. A uid can only be set once.
	SetUID(uid int64) error

	Type() string
	// Start and End are the inclusive range of the block within its
	// parent. A source block spans [0, Size()-1].
	Start() int64
	End() int64
	Size() int64

	// NewReader returns an independent stream over the bytes of the block.
	NewReader() (stream.Stream, error)

	// Attribute returns the named attribute, or null if it is not set.
	Attribute(name string) (attribute.Value, error)
	SetAttribute(name string, v attribute.Value) error
	HasAttribute(name string) bool
	Attributes() *attribute.Map

	IsHandled() bool
	SetHandled(handled bool) error
	IsAvailable() bool
	SetAvailable(available bool) error
	IsComplete() bool
	SetComplete(complete bool) error

	// Parent returns the first parent or Null.
	Parent() Block
	Parents() []Block
	AddParent(parent Block) error
	Children() []Block
	AddChild(child Block) error
	SetChildren(children []Block) error

	// State returns the persistable representation of the block.
	State() (*attribute.Map, error)
}

// base holds what source and slice blocks have in common.
type base struct {
	uid        int64
	typ        string
	attributes *attribute.Map
	handled    bool
	parents    []Block
	children   []Block

	// uids of edges read from a persisted state, resolved by Graph.Relink
	parentUIDs []int64
	childUIDs  []int64
}

func newBase(typ string) base {
	return base{typ: typ, attributes: attribute.NewMap()}
}

func (b *base) Valid() bool { return true }

func (b *base) UID() int64 { return b.uid }

func (b *base) SetUID(uid int64) error {
	if b.uid != 0 && b.uid != uid {
		return errors.Wrapf(ErrContractViolation, "uid already set to %d", b.uid)
	}
	b.uid = uid
	return nil
}

func (b *base) Type() string { return b.typ }

func (b *base) Attribute(name string) (attribute.Value, error) {
	return b.attributes.Get(name), nil
}

func (b *base) SetAttribute(name string, v attribute.Value) error {
	b.attributes.Set(name, v)
	return nil
}

func (b *base) HasAttribute(name string) bool { return b.attributes.Has(name) }

func (b *base) Attributes() *attribute.Map { return b.attributes }

func (b *base) IsHandled() bool { return b.handled }

func (b *base) SetHandled(handled bool) error {
	b.handled = handled
	return nil
}

func (b *base) Parent() Block {
	if len(b.parents) == 0 {
		return Null()
	}
	return b.parents[0]
}

func (b *base) Parents() []Block { return b.parents }

func (b *base) Children() []Block { return b.children }

func (b *base) AddChild(child Block) error {
	if child == nil || !child.Valid() {
		return ErrInvalidBlock
	}
	b.children = append(b.children, child)
	return nil
}

func (b *base) SetChildren(children []Block) error {
	for _, child := range children {
		if child == nil || !child.Valid() {
			return ErrInvalidBlock
		}
	}
	b.children = append([]Block(nil), children...)
	b.childUIDs = nil
	return nil
}

func (b *base) pending() (parents, children []int64) {
	return b.parentUIDs, b.childUIDs
}

// Is reports whether b is a valid block of type typ.
func Is(b Block, typ string) bool {
	return b != nil && b.Valid() && b.Type() == typ
}

// SetRange stores the range of b in its parent as start_address,
// end_address and size attributes. With a sector size the range is also
// stored in sectors.
func SetRange(b Block, sectorSize int64) error {
	if !b.Valid() {
		return ErrInvalidBlock
	}
	names := []string{"start_address", "end_address", "size"}
	values := []int64{b.Start(), b.End(), b.Size()}
	if sectorSize > 0 {
		names = append(names, "sector_size", "start_sector", "end_sector", "sectors")
		values = append(values, sectorSize, b.Start()/sectorSize, b.End()/sectorSize, (b.Size()+sectorSize-1)/sectorSize)
	}
	for i, name := range names {
		if err := b.SetAttribute(name, attribute.IntValue(values[i])); err != nil {
			return err
		}
	}
	return nil
}
