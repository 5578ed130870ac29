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

// Package forensicblocks implements the forensicblocks command line tool that
// decomposes disk images into trees of partition systems, partitions,
// filesystems and freespace and saves them in a case database.
//     decode    Decode images into a case database
//     decoders  List the available decoders
//     tree      List stored trees or print one tree
//     carve     Write the bytes of a block to a file
//
// Usage
//
// Decode images
//     forensicblocks decode case.blocks disk.raw usb.img.001
// Print a tree and check its coverage
//     forensicblocks tree case.blocks
//     forensicblocks tree --verify case.blocks tree--16b02a2b-d1a1-4e79-aad6-2f2c1c286818
// Carve a partition
//     forensicblocks carve case.blocks tree--16b02a2b-d1a1-4e79-aad6-2f2c1c286818 4 partition.bin
package main

import (
	"fmt"
	"os"

	"github.com/forensicanalysis/forensicblocks/cmd"
)

func main() {
	if err := cmd.Root().Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
