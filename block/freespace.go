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

package block

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrCoverage is returned by Verify when the children of a block do not
// cover it exactly.
var ErrCoverage = errors.New("children do not cover parent")

// SectorSize returns the sector_size attribute of b, or 0.
func SectorSize(b Block) int64 {
	v, err := b.Attribute("sector_size")
	if err != nil {
		return 0
	}
	return v.Int()
}

// FillFreespace closes the gaps between the children of parent with
// freespace slices, so that the children cover [0, Size()-1]. The children
// are replaced by the ordered union of the recognized children and the new
// freespace blocks, which are also returned. The freespace blocks carry the
// range attributes of SetRange; a sectorSize of 0 falls back to the
// sector_size attribute of parent.
//
// Children must not overlap.
func FillFreespace(parent Block, sectorSize int64) ([]Block, error) {
	if parent == nil || !parent.Valid() {
		return nil, ErrInvalidBlock
	}
	if sectorSize == 0 {
		sectorSize = SectorSize(parent)
	}

	children := append([]Block(nil), parent.Children()...)
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Start() < children[j].Start()
	})

	var (
		freespace []Block
		merged    []Block
		cursor    int64
	)
	addFree := func(start, end int64) error {
		free, err := NewSlice(parent, TypeFreespace, start, end)
		if err != nil {
			return err
		}
		if err := SetRange(free, sectorSize); err != nil {
			return err
		}
		freespace = append(freespace, free)
		merged = append(merged, free)
		return nil
	}

	for _, child := range children {
		if child.Start() > cursor {
			if err := addFree(cursor, child.Start()-1); err != nil {
				return nil, err
			}
		}
		merged = append(merged, child)
		if next := child.End() + 1; next > cursor {
			cursor = next
		}
	}
	if cursor <= parent.Size()-1 {
		if err := addFree(cursor, parent.Size()-1); err != nil {
			return nil, err
		}
	}

	if err := parent.SetChildren(merged); err != nil {
		return nil, err
	}
	return freespace, nil
}

// Verify checks that the children of every block below b cover their parent
// exactly, without gaps or overlaps.
func Verify(b Block) error {
	return Walk(b, func(b Block, _ int) error {
		children := append([]Block(nil), b.Children()...)
		if len(children) == 0 {
			return nil
		}
		sort.SliceStable(children, func(i, j int) bool {
			return children[i].Start() < children[j].Start()
		})
		var cursor int64
		for _, child := range children {
			switch {
			case child.Start() > cursor:
				return errors.Wrapf(ErrCoverage, "block %d: gap [%d, %d]", b.UID(), cursor, child.Start()-1)
			case child.Start() < cursor:
				return errors.Wrapf(ErrCoverage, "block %d: overlap at %d", b.UID(), child.Start())
			}
			cursor = child.End() + 1
		}
		if cursor != b.Size() {
			return errors.Wrapf(ErrCoverage, "block %d: gap [%d, %d]", b.UID(), cursor, b.Size()-1)
		}
		return nil
	})
}
