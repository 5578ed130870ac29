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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/forensicblocks/decoder"
)

func TestLoad_Defaults(t *testing.T) {
	config, err := Load(t.TempDir())
	require.NoError(t, err)
	assertConfig(t, &Config{
		SectorSize:        512,
		Categories:        decoder.DefaultCategories,
		CompressThreshold: 4096,
	}, config)
}

func assertConfig(t *testing.T, want, got *Config) {
	assert.Equal(t, want.SectorSize, got.SectorSize)
	assert.Equal(t, want.Categories, got.Categories)
	assert.Equal(t, want.CompressThreshold, got.CompressThreshold)
	assert.ElementsMatch(t, want.DisabledDecoders, got.DisabledDecoders)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		want    *Config
		wantErr error
	}{
		{
			"file",
			"sector_size: 4096\ncategories: [filesystem]\ndisabled_decoders: [apm]\n",
			nil,
			&Config{SectorSize: 4096, Categories: []string{"filesystem"}, CompressThreshold: 4096, DisabledDecoders: []string{"apm"}},
			nil,
		},
		{
			"env overrides file",
			"sector_size: 4096\n",
			map[string]string{"FORENSICBLOCKS_SECTOR_SIZE": "2048", "FORENSICBLOCKS_COMPRESS_THRESHOLD": "-1"},
			&Config{SectorSize: 2048, Categories: decoder.DefaultCategories, CompressThreshold: -1},
			nil,
		},
		{"invalid sector size", "sector_size: 0\n", nil, nil, ErrInvalidConfig},
		{"no categories", "categories: []\n", nil, nil, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, Name+".yaml"), []byte(tt.yaml), 0644))
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			config, err := Load(dir)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "%v", err)
				return
			}
			require.NoError(t, err)
			assertConfig(t, tt.want, config)
		})
	}
}

func TestLoad_Broken(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, Name+".yaml"), []byte("sector_size: [\n"), 0644))
	_, err := Load(dir)
	assert.Error(t, err)
}
