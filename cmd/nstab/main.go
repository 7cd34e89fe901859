package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/nsmapd/nsmapd/internal/logging"
	"github.com/nsmapd/nsmapd/internal/lookup/pebbledb"
	"github.com/nsmapd/nsmapd/internal/lookup/static"
)

// nstab builds pebble lookup tables from postmap-style text input and can
// query a built table directly, without a running daemon.
func main() {
	query := flag.String("q", "", "look up one key in an existing table instead of building")
	force := flag.Bool("force", false, "overwrite an existing table")
	flag.Parse()

	logging.ConfigureCLI()

	args := flag.Args()
	if *query != "" {
		if len(args) != 1 {
			log.Fatal().Msg("usage: nstab -q key table.db")
		}
		os.Exit(runQuery(*query, args[0]))
	}

	if len(args) != 2 {
		log.Fatal().Msg("usage: nstab [-force] input.map output.db")
	}
	count, err := buildTable(args[0], args[1], *force)
	if err != nil {
		log.Fatal().Err(err).Msg("table build failed")
	}
	log.Info().Int("entries", count).Str("table", args[1]).Msg("table built")
}

// buildTable reads postmap-style "key value" lines from input and writes a
// pebble table directory at output. Keys are written in sorted order so
// repeated builds of the same input produce the same table.
func buildTable(input, output string, force bool) (int, error) {
	f, err := os.Open(input)
	if err != nil {
		return 0, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	entries, err := static.Parse(f)
	if err != nil {
		return 0, fmt.Errorf("parse input: %w", err)
	}

	if _, err := os.Stat(output); err == nil {
		if !force {
			return 0, fmt.Errorf("table already exists: %s", output)
		}
		if err := os.RemoveAll(output); err != nil {
			return 0, fmt.Errorf("remove existing table: %w", err)
		}
	}

	builder, err := pebbledb.Create(output)
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := builder.Put(key, entries[key]); err != nil {
			_ = builder.Close()
			return 0, err
		}
	}
	if err := builder.Close(); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// runQuery prints the value for key on stdout. Exit codes follow the postmap
// convention: 0 found, 1 not found, 2 failure.
func runQuery(key, path string) int {
	value, found, err := queryTable(path, key)
	if err != nil {
		log.Error().Err(err).Str("table", path).Msg("table query failed")
		return 2
	}
	if !found {
		return 1
	}
	fmt.Println(value)
	return 0
}

func queryTable(path, key string) (string, bool, error) {
	table, err := pebbledb.Open("nstab", path)
	if err != nil {
		return "", false, err
	}
	defer table.Close()
	return table.Lookup(context.Background(), key)
}
