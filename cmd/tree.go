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
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/forensicblocks/block"
	"github.com/forensicanalysis/forensicblocks/blockstore"
)

var (
	handledColor      = color.New(color.FgGreen)
	unrecognizedColor = color.New(color.FgRed)
	freespaceColor    = color.New(color.FgYellow)
)

// Tree is the forensicblocks tree commandline subcommand
func Tree() *cobra.Command {
	var verify bool
	treeCmd := &cobra.Command{
		Use:   "tree <store> [tree-id]",
		Short: "List the stored trees or print the blocks of one tree",
		Args:  cobra.RangeArgs(1, 2), //nolint:gomnd
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return requireStore(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(args[0], false)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return printTrees(cmd.OutOrStdout(), store)
			}
			if verify {
				g, err := store.LoadGraph(args[1])
				if err != nil {
					return err
				}
				if err := block.Verify(g.Root()); err != nil {
					return err
				}
			}
			return printTree(cmd.OutOrStdout(), store, args[1])
		},
	}
	treeCmd.Flags().BoolVar(&verify, "verify", false, "check that the children of every block cover it")
	return treeCmd
}

func printTrees(w io.Writer, store *blockstore.Store) error {
	trees, err := store.Trees()
	if err != nil {
		return err
	}
	for _, tree := range trees {
		fmt.Fprintf(w, "%s\t%s\t%d blocks\t%s\n", tree.ID, tree.Name, tree.Blocks, tree.InsertTime)
	}
	return nil
}

func printTree(w io.Writer, store *blockstore.Store, id string) error {
	tree, err := store.Tree(id)
	if err != nil {
		return err
	}
	summaries, err := store.Summaries(id)
	if err != nil {
		return err
	}

	path := map[int64]bool{}
	var walk func(uid int64, depth int)
	walk = func(uid int64, depth int) {
		summary, ok := summaries[uid]
		if !ok || path[uid] {
			return
		}
		path[uid] = true
		defer delete(path, uid)
		c := handledColor
		switch {
		case summary.Type == block.TypeFreespace:
			c = freespaceColor
		case !summary.Handled && len(summary.Children) == 0:
			c = unrecognizedColor
		}
		fmt.Fprint(w, strings.Repeat("  ", depth))
		c.Fprintf(w, "%s", summary.Type) // nolint:errcheck
		fmt.Fprintf(w, " [%d, %d] %d bytes (uid %d)\n", summary.Start, summary.End, summary.Size, summary.UID)
		for _, child := range summary.Children {
			walk(child, depth+1)
		}
	}
	walk(tree.Root, 0)
	return nil
}
