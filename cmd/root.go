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

// Package cmd implements the subcommands of the forensicblocks command line
// tool.
package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/forensicblocks/blockstore"
	"github.com/forensicanalysis/forensicblocks/config"
)

// Root returns the forensicblocks command with all subcommands.
func Root() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forensicblocks",
		Short: "Decompose disk images into block trees",
	}
	rootCmd.AddCommand(Decode(), Decoders(), Tree(), Carve())
	return rootCmd
}

func requireStore(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("requires a store")
	}
	if _, err := os.Stat(args[0]); os.IsNotExist(err) {
		return errors.Wrap(os.ErrNotExist, args[0])
	}
	return nil
}

// openStore opens the store url and creates it if create is set and it does
// not exist yet.
func openStore(url string, create bool) (*blockstore.Store, error) {
	store, err := blockstore.Open(url)
	if create && errors.Is(err, blockstore.ErrStoreNotExists) {
		return blockstore.New(url)
	}
	return store, err
}

// loadConfig reads the configuration from dir, or the default paths if dir
// is empty. Flags of cmd override configured values.
func loadConfig(cmd *cobra.Command, dir string) (*config.Config, error) {
	var paths []string
	if dir != "" {
		paths = append(paths, dir)
	}
	v := config.New(paths...)
	for key, name := range map[string]string{"sector_size": "sector-size", "disabled_decoders": "disable"} {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, err
			}
		}
	}
	return config.Read(v)
}
