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

// Package main provides the command line interface for searching signac
// document collections.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.jacobcolvin.com/x/log"

	"github.com/admdev8/signac"
)

func main() {
	cfg := defaultConfig()
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "signac [flags] [filter ...]",
		Short: "Search a signac document collection",
		Long: `signac searches a collection of JSON documents stored one per line in a
collection file. The positional arguments form a search filter in JSON
encoding; leave them empty to return all documents.`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, configPath, args)
		},
	}
	cfg.registerFlags(rootCmd.Flags())
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, cfg *config, configPath string, args []string) error {
	if configPath != "" {
		if err := cfg.applyFile(configPath, cmd.Flags()); err != nil {
			return err
		}
	}
	if cfg.ID && cfg.Indent {
		return errors.New("select either --id or --indent, not both")
	}
	if cfg.File == "" {
		return errors.New("no collection file given, use --file")
	}

	handler, err := log.CreateHandlerWithStrings(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	logger := slog.New(handler)

	opts := []signac.Option{
		signac.WithPrimaryKey(cfg.PrimaryKey),
		signac.WithLogger(logger),
		signac.WithReadOnly(),
	}
	if cfg.Cache != "" {
		cache, err := signac.NewBoltCache(cfg.Cache)
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()
		opts = append(opts, signac.WithCache(cache))
	}

	collection, err := signac.Open(cfg.File, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = collection.Close() }()

	filter, err := parseFilterArgs(args)
	if err != nil {
		return err
	}
	results, err := collection.Find(filter, cfg.Limit)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(os.Stdout)
	defer func() { _ = out.Flush() }()

	if cfg.ID {
		for _, id := range results.IDs() {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	docs, err := results.Docs()
	if err != nil {
		return err
	}
	for _, doc := range docs {
		var data []byte
		if cfg.Indent {
			data, err = json.MarshalIndent(doc, "", "  ")
		} else {
			data, err = json.Marshal(doc)
		}
		if err != nil {
			return err
		}
		if _, err := out.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// parseFilterArgs concatenates the positional filter fragments and parses
// them as a single JSON object. No fragments means no filter.
func parseFilterArgs(args []string) (signac.Document, error) {
	joined := strings.TrimSpace(strings.Join(args, " "))
	if joined == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(joined))
	dec.UseNumber()
	var filter signac.Document
	if err := dec.Decode(&filter); err != nil {
		return nil, fmt.Errorf("%w: %v", signac.ErrInvalidFilter, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after filter", signac.ErrInvalidFilter)
	}
	return filter, nil
}
