/*
 * signac
 * Copyright (C) 2022 signac community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/pflag"

	"github.com/admdev8/signac"
)

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// config holds the CLI configuration, settable through flags or a YAML
// configuration file. Flags take precedence over file values.
type config struct {
	File       string    `yaml:"file"`
	PrimaryKey string    `yaml:"primary_key"`
	Cache      string    `yaml:"cache"`
	Log        logConfig `yaml:"log"`

	Limit  int  `yaml:"-"`
	ID     bool `yaml:"-"`
	Indent bool `yaml:"-"`
}

func defaultConfig() *config {
	return &config{
		PrimaryKey: signac.DefaultPrimaryKey,
		Log: logConfig{
			Level:  "info",
			Format: "logfmt",
		},
	}
}

func (c *config) registerFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&c.File, "file", "f", c.File,
		"collection file, ':memory:' for no backing file")
	flags.StringVar(&c.PrimaryKey, "primary-key", c.PrimaryKey,
		"name of the primary key field")
	flags.StringVar(&c.Cache, "cache", c.Cache,
		"path of a persistent read cache")
	flags.IntVarP(&c.Limit, "limit", "l", 0,
		"maximum number of search results, 0 (the default) means no limit")
	flags.BoolVar(&c.ID, "id", false,
		"print a document's primary key instead of the whole document")
	flags.BoolVarP(&c.Indent, "indent", "i", false,
		"print results in indented format")
	flags.StringVar(&c.Log.Level, "log-level", c.Log.Level,
		"log level, one of: error, warn, info, debug")
	flags.StringVar(&c.Log.Format, "log-format", c.Log.Format,
		"log format, one of: json, logfmt")
}

// applyFile merges values from a YAML configuration file into c, keeping any
// value that was set explicitly on the command line.
func (c *config) applyFile(path string, flags *pflag.FlagSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	fromFile := defaultConfig()
	if err := yaml.Unmarshal(data, fromFile); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if !flags.Changed("file") {
		c.File = fromFile.File
	}
	if !flags.Changed("primary-key") {
		c.PrimaryKey = fromFile.PrimaryKey
	}
	if !flags.Changed("cache") {
		c.Cache = fromFile.Cache
	}
	if !flags.Changed("log-level") {
		c.Log.Level = fromFile.Log.Level
	}
	if !flags.Changed("log-format") {
		c.Log.Format = fromFile.Log.Format
	}
	return nil
}
