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

// Package config loads the forensicblocks configuration from a
// forensicblocks.yaml file and FORENSICBLOCKS_* environment variables.
package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/forensicanalysis/forensicblocks/decoder"
)

// Name of the configuration file without extension.
const Name = "forensicblocks"

// DefaultPaths are searched for the configuration file.
var DefaultPaths = []string{".", "$HOME/.forensicblocks", "/etc/forensicblocks"}

// Config holds the settings of decoding and storing block trees.
type Config struct {
	// SectorSize is used for range attributes of blocks without a
	// partition system.
	SectorSize int64 `mapstructure:"sector_size"`

	// Categories is the order decoder categories are tried in.
	Categories []string `mapstructure:"categories"`

	// CompressThreshold is the state size in bytes above which stored
	// states are lz4 compressed. Negative values disable compression.
	CompressThreshold int `mapstructure:"compress_threshold"`

	DisabledDecoders []string `mapstructure:"disabled_decoders"`
}

// ErrInvalidConfig is returned for configurations that cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// New returns a viper instance with defaults, environment binding and the
// given search paths, or DefaultPaths.
func New(paths ...string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(Name)
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetDefault("sector_size", 512)
	v.SetDefault("categories", decoder.DefaultCategories)
	v.SetDefault("compress_threshold", 4096)
	v.SetDefault("disabled_decoders", []string{})

	v.SetEnvPrefix("FORENSICBLOCKS")
	v.AutomaticEnv()
	return v
}

// Load reads the configuration file if one exists in paths and returns the
// merged configuration.
func Load(paths ...string) (*Config, error) {
	return Read(New(paths...))
}

// Read unmarshals the configuration of v.
func Read(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "could not read config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.SectorSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "sector size %d", c.SectorSize)
	}
	if len(c.Categories) == 0 {
		return errors.Wrap(ErrInvalidConfig, "no decoder categories")
	}
	return nil
}
