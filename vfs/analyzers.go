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

package vfs

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensicblocks/block"
)

// Analyzer opens the root folder of a filesystem block.
type Analyzer func(b block.Block) (Folder, error)

// ErrNoAnalyzer is returned by Open for blocks without a registered analyzer.
var ErrNoAnalyzer = errors.New("no analyzer for block type")

// Analyzers maps filesystem types to analyzers.
type Analyzers struct {
	sync.RWMutex
	analyzers map[string]Analyzer
}

// NewAnalyzers returns an empty analyzer map.
func NewAnalyzers() *Analyzers {
	return &Analyzers{analyzers: map[string]Analyzer{}}
}

// Register sets the analyzer of filesystem type typ. A nil analyzer removes
// the entry.
func (a *Analyzers) Register(typ string, analyzer Analyzer) {
	a.Lock()
	defer a.Unlock()
	if analyzer == nil {
		delete(a.analyzers, typ)
		return
	}
	a.analyzers[typ] = analyzer
}

// Lookup returns the analyzer of typ.
func (a *Analyzers) Lookup(typ string) (Analyzer, bool) {
	a.RLock()
	defer a.RUnlock()
	analyzer, ok := a.analyzers[typ]
	return analyzer, ok
}

// Types returns the registered filesystem types in sorted order.
func (a *Analyzers) Types() []string {
	a.RLock()
	defer a.RUnlock()
	types := make([]string, 0, len(a.analyzers))
	for typ := range a.analyzers {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Open runs the analyzer registered for the type of b.
func (a *Analyzers) Open(b block.Block) (Folder, error) {
	if !b.Valid() {
		return nil, block.ErrInvalidBlock
	}
	analyzer, ok := a.Lookup(b.Type())
	if !ok {
		return nil, errors.Wrap(ErrNoAnalyzer, b.Type())
	}
	root, err := analyzer(b)
	if err != nil {
		return nil, errors.Wrapf(err, "could not analyze %s block %d", b.Type(), b.UID())
	}
	return root, nil
}

var defaultAnalyzers = NewAnalyzers()

// Register adds an analyzer to the process wide analyzer map, usually from
// an init function of the analyzer's package.
func Register(typ string, analyzer Analyzer) {
	defaultAnalyzers.Register(typ, analyzer)
}

// Open opens b with the analyzer registered for its type.
func Open(b block.Block) (Folder, error) {
	return defaultAnalyzers.Open(b)
}
