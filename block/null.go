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
	"github.com/forensicanalysis/forensicblocks/attribute"
	"github.com/forensicanalysis/forensicblocks/stream"
)

type null struct{}

// Null returns the block that stands in for "no block". It is not valid and
// all fallible operations on it return ErrInvalidBlock.
func Null() Block { return null{} }

func (null) Valid() bool { return false }
func (null) UID() int64 { return 0 }
func (null) SetUID(int64) error { return ErrInvalidBlock }
func (null) Type() string { return "" }
func (null) Start() int64 { return 0 }
func (null) End() int64 { return -1 }
func (null) Size() int64 { return 0 }
func (null) NewReader() (stream.Stream, error) { return nil, ErrInvalidBlock }
func (null) Attribute(string) (attribute.Value, error) { return attribute.Null(), ErrInvalidBlock }
func (null) SetAttribute(string, attribute.Value) error { return ErrInvalidBlock }
func (null) HasAttribute(string) bool { return false }
func (null) Attributes() *attribute.Map { return nil }
func (null) IsHandled() bool { return false }
func (null) SetHandled(bool) error { return ErrInvalidBlock }
func (null) IsAvailable() bool { return false }
func (null) SetAvailable(bool) error { return ErrInvalidBlock }
func (null) IsComplete() bool { return false }
func (null) SetComplete(bool) error { return ErrInvalidBlock }
func (null) Parent() Block { return null{} }
func (null) Parents() []Block { return nil }
func (null) AddParent(Block) error { return ErrInvalidBlock }
func (null) Children() []Block { return nil }
func (null) AddChild(Block) error { return ErrInvalidBlock }
func (null) SetChildren([]Block) error { return ErrInvalidBlock }
func (null) State() (*attribute.Map, error) { return nil, ErrInvalidBlock }
