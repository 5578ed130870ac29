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

// Package decoders registers the built in decoders.
package decoders

import (
	"github.com/forensicanalysis/forensicblocks/decoder"
	"github.com/forensicanalysis/forensicblocks/decoders/apm"
	"github.com/forensicanalysis/forensicblocks/decoders/dos"
	"github.com/forensicanalysis/forensicblocks/decoders/filesystem"
)

// RegisterAll adds all built in decoders to r: partition systems first, so
// APM is tried before DOS, then the filesystem signatures.
func RegisterAll(r *decoder.Registry) error {
	for _, register := range []func(*decoder.Registry) error{apm.Register, dos.Register, filesystem.Register} {
		if err := register(r); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry with all built in decoders.
func NewRegistry() (*decoder.Registry, error) {
	r := decoder.NewRegistry()
	return r, RegisterAll(r)
}
