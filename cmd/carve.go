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

package cmd

import (
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/forensicblocks/block"
	"github.com/forensicanalysis/forensicblocks/blockstore"
)

// Carve is the forensicblocks carve commandline subcommand
func Carve() *cobra.Command {
	var image string
	var archive bool
	carveCmd := &cobra.Command{
		Use:   "carve <store> <tree-id> <uid> [out]",
		Short: "Write the bytes of a block to a file or into the store",
		Args:  cobra.RangeArgs(3, 4), //nolint:gomnd
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return requireStore(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid uid %s", args[2])
			}
			var out string
			if len(args) == 4 {
				out = args[3]
			}

			store, err := openStore(args[0], false)
			if err != nil {
				return err
			}
			defer store.Close()

			var dest string
			var n int64
			if archive {
				dest, n, err = carveArchive(afero.NewOsFs(), store, args[1], uid, image, out)
			} else {
				dest, n, err = carve(afero.NewOsFs(), store, args[1], uid, image, out)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "carved %d bytes to '%s'\n", n, dest)
			return nil
		},
	}
	carveCmd.Flags().StringVar(&image, "image", "", "image path if it moved since decoding")
	carveCmd.Flags().BoolVar(&archive, "archive", false, "store the block in the sqlar table of the store")
	return carveCmd
}

// openBlock loads block uid of tree id and attaches the image to the root
// of the tree. The image is read from the path stored as tree name unless
// image is set.
func openBlock(fs afero.Fs, store *blockstore.Store, id string, uid int64, image string) (block.Block, io.Closer, error) {
	tree, err := store.Tree(id)
	if err != nil {
		return nil, nil, err
	}
	g, err := store.LoadGraph(id)
	if err != nil {
		return nil, nil, err
	}
	b := g.Get(uid)
	if !b.Valid() {
		return nil, nil, errors.Wrapf(block.ErrInvalidBlock, "block %d not found", uid)
	}

	if image == "" {
		image = tree.Name
	}
	root, ok := g.Root().(*block.Source)
	if !ok {
		return nil, nil, errors.Wrap(block.ErrInvalidBlock, "root is not a source block")
	}
	s, closer, err := openImage(fs, image)
	if err != nil {
		return nil, nil, err
	}
	if err := root.Attach(s); err != nil {
		closer.Close() // nolint:errcheck
		return nil, nil, err
	}
	return b, closer, nil
}

// carve copies block uid of tree id to out. Without out the destination
// name is derived from the image name and the block.
func carve(fs afero.Fs, store *blockstore.Store, id string, uid int64, image, out string) (string, int64, error) {
	b, closer, err := openBlock(fs, store, id, uid, image)
	if err != nil {
		return "", 0, err
	}
	defer closer.Close()

	r, err := b.NewReader()
	if err != nil {
		return "", 0, err
	}
	if out == "" {
		if image == "" {
			tree, err := store.Tree(id)
			if err != nil {
				return "", 0, err
			}
			image = tree.Name
		}
		out = carvedFileName(image, b)
	}
	dest, err := fs.Create(out)
	if err != nil {
		return "", 0, err
	}
	defer dest.Close()
	n, err := io.Copy(dest, r)
	return out, n, err
}

// carveArchive stores block uid of tree id in the archive of the store,
// by default as <tree-id>/<uid>_<type>_<start>-<end>.bin.
func carveArchive(fs afero.Fs, store *blockstore.Store, id string, uid int64, image, name string) (string, int64, error) {
	b, closer, err := openBlock(fs, store, id, uid, image)
	if err != nil {
		return "", 0, err
	}
	defer closer.Close()

	r, err := b.NewReader()
	if err != nil {
		return "", 0, err
	}
	if name == "" {
		name = id + "/" + blockFileName(b)
	}
	if err := store.Archive(name, 0644, b.Size(), r); err != nil {
		return "", 0, err
	}
	return name, b.Size(), nil
}

const maxFileName = 64

// blockFileName names a carved block by uid, type and range in its parent.
func blockFileName(b block.Block) string {
	return fmt.Sprintf("%d_%s_%d-%d.bin", b.UID(), b.Type(), b.Start(), b.End())
}

// carvedFileName prefixes blockFileName with the base name of the image. The
// image name is cut from the front to fit into maxFileName bytes.
func carvedFileName(image string, b block.Block) string {
	name := blockFileName(b)
	base := path.Base(strings.ReplaceAll(image, `\`, "/"))
	if base == "." || base == "/" {
		return name
	}
	room := maxFileName - len(name) - 1
	if room <= 0 {
		return name
	}
	if len(base) > room {
		base = base[len(base)-room:]
	}
	return base + "_" + name
}
