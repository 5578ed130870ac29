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

package decoder

import (
	"io"
	"log"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensicblocks/block"
	"github.com/forensicanalysis/forensicblocks/stream"
)

// ErrStructure marks a decoder error as a violation of the structure of a
// recognized format, e.g. a partition entry that points outside the device.
var ErrStructure = errors.New("structure violation")

// IsStructural reports whether err is a structural violation rather than an
// I/O failure.
func IsStructural(err error) bool {
	for _, target := range []error{ErrStructure, io.EOF, io.ErrUnexpectedEOF, block.ErrOutOfRange, stream.ErrOutOfBounds} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Report is the result of a decode run.
type Report struct {
	// Graph contains the root and all blocks below it.
	Graph *block.Graph
	// Unrecognized lists the unhandled leaf blocks no decoder recognized.
	// Freespace blocks are not listed.
	Unrecognized []block.Block
	// Errors holds the I/O errors of aborted subtrees.
	Errors []error
}

// Dispatcher drives the decoders of a Registry.
type Dispatcher struct {
	registry   *Registry
	categories []string
	disabled   map[string]bool
}

// NewDispatcher returns a dispatcher that tries the decoders of r in the
// given category order, or in DefaultCategories if none are given.
func NewDispatcher(r *Registry, categories ...string) *Dispatcher {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	return &Dispatcher{
		registry:   r,
		categories: append([]string(nil), categories...),
		disabled:   map[string]bool{},
	}
}

// Disable excludes decoders from dispatching.
func (d *Dispatcher) Disable(ids ...string) {
	for _, id := range ids {
		d.disabled[id] = true
	}
}

type item struct {
	b        block.Block
	category int
}

// Decode decomposes root. Every block is tried against the categories in
// order, starting with the category after the one that produced it; within
// a category the first decoder that recognizes the block wins. Handled and
// freespace blocks are never dispatched, so decoding a tree a second time
// changes nothing.
//
// The report is returned even if subtrees failed. The error is nil unless
// root is invalid or a subtree was aborted by an I/O error.
func (d *Dispatcher) Decode(root block.Block) (*Report, error) {
	if root == nil || !root.Valid() {
		return nil, block.ErrInvalidBlock
	}
	report := &Report{Graph: block.NewGraph()}

	queue := []item{{b: root}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.b.IsHandled() || block.Is(it.b, block.TypeFreespace) {
			continue
		}
		for c := it.category; c < len(d.categories); c++ {
			out, ok, err := d.try(it.b, d.categories[c])
			if err != nil {
				log.Printf("abort decoding of %s block [%d, %d]: %s", it.b.Type(), it.b.Start(), it.b.End(), err)
				report.Errors = append(report.Errors, err)
				break
			}
			if !ok {
				continue
			}
			for _, b := range out.New {
				queue = append(queue, item{b: b, category: c + 1})
			}
			for _, b := range out.Pending {
				queue = append(queue, item{b: b, category: c})
			}
			break
		}
	}

	if err := report.Graph.SetRoot(root); err != nil {
		return nil, err
	}
	err := block.Walk(root, func(b block.Block, _ int) error {
		if err := report.Graph.Add(b); err != nil {
			return err
		}
		if !b.IsHandled() && len(b.Children()) == 0 && !block.Is(b, block.TypeFreespace) {
			report.Unrecognized = append(report.Unrecognized, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(report.Errors) > 0 {
		return report, errors.Wrapf(report.Errors[0], "%d subtrees failed", len(report.Errors))
	}
	return report, nil
}

// try runs the decoders of category against b until one recognizes it.
func (d *Dispatcher) try(b block.Block, category string) (*Output, bool, error) {
	for _, dec := range d.registry.List(category) {
		if d.disabled[dec.ID] {
			continue
		}
		out := &Output{}
		ok, err := dec.Decode(b, out)
		if err != nil {
			if IsStructural(err) {
				log.Printf("%s: %s block [%d, %d]: %s", dec.ID, b.Type(), b.Start(), b.End(), err)
				continue
			}
			return nil, false, errors.Wrap(err, dec.ID)
		}
		if ok {
			if err := b.SetHandled(true); err != nil {
				return nil, false, err
			}
			return out, true, nil
		}
	}
	return nil, false, nil
}
