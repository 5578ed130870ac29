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
	"encoding/json"
	"fmt"

	"github.com/fatih/structs"
	"github.com/spf13/cobra"
	"github.com/stoewer/go-strcase"

	"github.com/forensicanalysis/forensicblocks/decoder"
	"github.com/forensicanalysis/forensicblocks/decoders"
)

// Decoders is the forensicblocks decoders commandline subcommand
func Decoders() *cobra.Command {
	var category string
	decodersCmd := &cobra.Command{
		Use:   "decoders",
		Short: "List the available decoders as json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := decoders.NewRegistry()
			if err != nil {
				return err
			}

			categories := registry.Categories()
			if category != "" {
				categories = []string{category}
			}
			var list []map[string]interface{}
			for _, category := range categories {
				for _, d := range registry.List(category) {
					list = append(list, describe(d))
				}
			}

			b, err := json.Marshal(list)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			return nil
		},
	}
	decodersCmd.Flags().StringVar(&category, "category", "", "only list decoders of this category")
	return decodersCmd
}

// describe returns the fields of d with snake case names. Empty fields and
// the decode function are left out.
func describe(d decoder.Decoder) map[string]interface{} {
	description := map[string]interface{}{}
	for _, field := range structs.New(d).Fields() {
		if !field.IsExported() || field.IsZero() {
			continue
		}
		description[strcase.SnakeCase(field.Name())] = field.Value()
	}
	return description
}
