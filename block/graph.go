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
	"github.com/pkg/errors"
)

// Graph owns the blocks of one decomposed medium and indexes them by uid.
// Blocks get their uid when they are added.
type Graph struct {
	root   Block
	blocks map[int64]Block
	order  []int64
	last   int64
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{root: Null(), blocks: map[int64]Block{}}
}

// Add inserts b. Blocks without uid get the next free uid, blocks with a uid
// keep it. Adding a block twice is a no-op.
func (g *Graph) Add(b Block) error {
	if b == nil || !b.Valid() {
		return ErrInvalidBlock
	}
	uid := b.UID()
	if uid == 0 {
		g.last++
		for g.blocks[g.last] != nil {
			g.last++
		}
		if err := b.SetUID(g.last); err != nil {
			return err
		}
		uid = g.last
	} else if existing, ok := g.blocks[uid]; ok {
		if existing != b {
			return errors.Wrapf(ErrContractViolation, "uid %d is taken", uid)
		}
		return nil
	}
	if uid > g.last {
		g.last = uid
	}
	g.blocks[uid] = b
	g.order = append(g.order, uid)
	if !g.root.Valid() {
		g.root = b
	}
	return nil
}

// AddTree adds b and all of its descendants.
func (g *Graph) AddTree(b Block) error {
	return Walk(b, func(b Block, _ int) error {
		return g.Add(b)
	})
}

// SetRoot adds b and makes it the root of the graph.
func (g *Graph) SetRoot(b Block) error {
	if err := g.Add(b); err != nil {
		return err
	}
	g.root = b
	return nil
}

// Root returns the root block, or Null for an empty graph.
func (g *Graph) Root() Block { return g.root }

// Get returns the block with uid, or Null.
func (g *Graph) Get(uid int64) Block {
	if b, ok := g.blocks[uid]; ok {
		return b
	}
	return Null()
}

// Blocks returns all blocks in insertion order.
func (g *Graph) Blocks() []Block {
	blocks := make([]Block, 0, len(g.order))
	for _, uid := range g.order {
		blocks = append(blocks, g.blocks[uid])
	}
	return blocks
}

// Len returns the number of blocks.
func (g *Graph) Len() int { return len(g.order) }

// Relink resolves the parent and child uids of restored blocks into
// references. The first parent of a slice becomes the block it reads from;
// further parents are kept as provenance only.
func (g *Graph) Relink() error {
	for _, uid := range g.order {
		b, ok := g.blocks[uid].(interface {
			pending() ([]int64, []int64)
			resolved(extraParents []Block)
		})
		if !ok {
			continue
		}
		parentUIDs, childUIDs := b.pending()

		var extra []Block
		if len(parentUIDs) > 0 && len(g.blocks[uid].Parents()) == 0 {
			for i, parentUID := range parentUIDs {
				parent := g.Get(parentUID)
				if !parent.Valid() {
					return errors.Wrapf(ErrInvalidBlock, "block %d: unknown parent %d", uid, parentUID)
				}
				if i == 0 {
					if err := g.blocks[uid].AddParent(parent); err != nil {
						return errors.Wrapf(err, "block %d", uid)
					}
					continue
				}
				extra = append(extra, parent)
			}
		}

		if len(childUIDs) > 0 && len(g.blocks[uid].Children()) == 0 {
			children := make([]Block, 0, len(childUIDs))
			for _, childUID := range childUIDs {
				child := g.Get(childUID)
				if !child.Valid() {
					return errors.Wrapf(ErrInvalidBlock, "block %d: unknown child %d", uid, childUID)
				}
				children = append(children, child)
			}
			if err := g.blocks[uid].SetChildren(children); err != nil {
				return err
			}
		}
		b.resolved(extra)
	}
	return nil
}

func (b *base) resolved(extraParents []Block) {
	b.parents = append(b.parents, extraParents...)
	b.parentUIDs = nil
	b.childUIDs = nil
}

// WalkFunc is called for every block visited by Walk.
type WalkFunc func(b Block, depth int) error

// Walk visits b and its descendants depth first, parents before children.
// A block reachable over several parents is visited once.
func Walk(b Block, fn WalkFunc) error {
	w := &walker{fn: fn, visited: map[Block]bool{}, path: map[Block]bool{}}
	return w.walk(b, 0)
}

type walker struct {
	fn      WalkFunc
	visited map[Block]bool
	path    map[Block]bool
}

func (w *walker) walk(b Block, depth int) error {
	if b == nil || !b.Valid() {
		return ErrInvalidBlock
	}
	if w.path[b] {
		return errors.Wrapf(ErrCycle, "%s block %d", b.Type(), b.UID())
	}
	if w.visited[b] {
		return nil
	}
	w.visited[b] = true
	if err := w.fn(b, depth); err != nil {
		return err
	}
	w.path[b] = true
	defer delete(w.path, b)
	for _, child := range b.Children() {
		if err := w.walk(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
