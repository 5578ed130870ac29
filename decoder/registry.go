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

// Package decoder runs format decoders against blocks. Decoders are
// registered per category in a Registry; a Dispatcher tries them against a
// root block and everything they produce until no block can be decoded
// further.
package decoder

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensicblocks/block"
)

// Categories of decoders, in dispatch order.
const (
	CategoryPartitionSystem = "partition_system"
	CategoryFilesystem      = "filesystem"
)

// DefaultCategories is the dispatch order used when a Dispatcher is created
// without categories.
var DefaultCategories = []string{CategoryPartitionSystem, CategoryFilesystem}

// Output collects the blocks a decoder produced. New blocks that are not
// handled are passed on to the next category, Pending blocks are tried again
// in the same category.
type Output struct {
	New     []block.Block
	Pending []block.Block
}

// Func inspects b and reports whether it recognized the format. A decoder
// must not modify b unless it recognizes it. Not recognizing a block is not
// an error; errors wrapping ErrStructure (or an unexpected end of the
// stream) are structural violations of a recognized signature, all other
// errors are treated as I/O failures.
type Func func(b block.Block, out *Output) (bool, error)

// Decoder is a registered decoder.
type Decoder struct {
	ID          string
	Description string
	Category    string
	Decode      Func `structs:"-"`
}

// Registry is a category scoped, ordered table of decoders. It is safe for
// concurrent use; decoders can be registered while dispatching.
type Registry struct {
	sync.Mutex
	categories []string
	decoders   map[string][]Decoder
}

// ErrInvalidDecoder is returned when registering a decoder without id or
// function.
var ErrInvalidDecoder = errors.New("invalid decoder")

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: map[string][]Decoder{}}
}

// Register adds a decoder to category. Registering an id that already
// exists in the category replaces the decoder in place.
func (r *Registry) Register(category, id, description string, fn Func) error {
	if category == "" || id == "" || fn == nil {
		return errors.Wrapf(ErrInvalidDecoder, "%s/%s", category, id)
	}
	d := Decoder{ID: id, Description: description, Category: category, Decode: fn}

	r.Lock()
	defer r.Unlock()
	list, ok := r.decoders[category]
	if !ok {
		r.categories = append(r.categories, category)
	}
	for i := range list {
		if list[i].ID == id {
			list[i] = d
			return nil
		}
	}
	r.decoders[category] = append(list, d)
	return nil
}

// Unregister removes the decoder id from all categories and reports whether
// it was registered.
func (r *Registry) Unregister(id string) bool {
	r.Lock()
	defer r.Unlock()
	found := false
	for category, list := range r.decoders {
		for i := range list {
			if list[i].ID == id {
				r.decoders[category] = append(list[:i:i], list[i+1:]...)
				found = true
				break
			}
		}
	}
	return found
}

// List returns a copy of the decoders of category in registration order.
func (r *Registry) List(category string) []Decoder {
	r.Lock()
	defer r.Unlock()
	return append([]Decoder(nil), r.decoders[category]...)
}

// Get returns the first decoder registered with id.
func (r *Registry) Get(id string) (Decoder, bool) {
	r.Lock()
	defer r.Unlock()
	for _, category := range r.categories {
		for _, d := range r.decoders[category] {
			if d.ID == id {
				return d, true
			}
		}
	}
	return Decoder{}, false
}

// Categories returns the categories in order of their first registration.
func (r *Registry) Categories() []string {
	r.Lock()
	defer r.Unlock()
	return append([]string(nil), r.categories...)
}

// Clear removes all decoders.
func (r *Registry) Clear() {
	r.Lock()
	r.categories = nil
	r.decoders = map[string][]Decoder{}
	r.Unlock()
}
