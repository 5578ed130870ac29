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
	"log"
	"runtime"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/forensicanalysis/forensicblocks/attribute"
	"github.com/forensicanalysis/forensicblocks/block"
	"github.com/forensicanalysis/forensicblocks/blockstore"
	"github.com/forensicanalysis/forensicblocks/config"
	"github.com/forensicanalysis/forensicblocks/decoder"
	"github.com/forensicanalysis/forensicblocks/decoders"
	"github.com/forensicanalysis/forensicblocks/stream"
)

// Decode is the forensicblocks decode commandline subcommand
func Decode() *cobra.Command {
	var configDir string
	var workers int
	decodeCmd := &cobra.Command{
		Use:   "decode <store> <image>...",
		Short: "Decode images and save their block trees",
		Args:  cobra.MinimumNArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd, configDir)
			if err != nil {
				return err
			}
			registry, err := decoders.NewRegistry()
			if err != nil {
				return err
			}

			store, err := openStore(args[0], true)
			if err != nil {
				return err
			}
			defer store.Close()
			store.CompressThreshold = conf.CompressThreshold

			images := args[1:]
			results := make([]*decodeResult, len(images))
			var group errgroup.Group
			group.SetLimit(workers)
			for i, image := range images {
				group.Go(func() error {
					result, err := decodeImage(afero.NewOsFs(), store, registry, conf, image)
					results[i] = result
					return err
				})
			}
			err = group.Wait()

			for _, result := range results {
				if result != nil {
					result.print(cmd.OutOrStdout())
				}
			}
			return err
		},
	}
	decodeCmd.Flags().StringVar(&configDir, "config", "", "directory containing forensicblocks.yaml")
	decodeCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "number of images decoded in parallel")
	decodeCmd.Flags().Int64("sector-size", 512, "sector size of images without partition system") //nolint:gomnd
	decodeCmd.Flags().StringSlice("disable", nil, "decoder ids to skip")
	return decodeCmd
}

type decodeResult struct {
	image        string
	tree         string
	blocks       int
	unrecognized int
	errors       int
}

func (r *decodeResult) print(w io.Writer) {
	fmt.Fprintf(w, "%s\t%s\t%d blocks, %d unrecognized, %d errors\n", r.tree, r.image, r.blocks, r.unrecognized, r.errors)
}

func openImage(fs afero.Fs, name string) (stream.Stream, io.Closer, error) {
	if stream.IsSegmentName(name) {
		split, err := stream.OpenSplit(fs, name)
		return split, split, err
	}
	file, err := stream.Open(fs, name)
	return file, file, err
}

// decodeImage decodes the image name and saves the resulting tree, also if
// parts of the image could not be decoded.
func decodeImage(fs afero.Fs, store *blockstore.Store, registry *decoder.Registry, conf *config.Config, name string) (*decodeResult, error) {
	s, closer, err := openImage(fs, name)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	root := block.NewSource(block.TypeSource, s)
	if err := root.SetAttribute("sector_size", attribute.IntValue(conf.SectorSize)); err != nil {
		return nil, err
	}

	dispatcher := decoder.NewDispatcher(registry, conf.Categories...)
	dispatcher.Disable(conf.DisabledDecoders...)
	report, decodeErr := dispatcher.Decode(root)
	if report == nil {
		return nil, decodeErr
	}
	if decodeErr != nil {
		log.Printf("%s: %s", name, decodeErr)
	}

	id, err := store.SaveGraph(name, report.Graph)
	if err != nil {
		return nil, err
	}
	return &decodeResult{
		image:        name,
		tree:         id,
		blocks:       report.Graph.Len(),
		unrecognized: len(report.Unrecognized),
		errors:       len(report.Errors),
	}, nil
}
