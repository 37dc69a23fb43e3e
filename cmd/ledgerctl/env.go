package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"asset-ledger/bootstrap"
	"asset-ledger/internal/application/ingest"
	"asset-ledger/internal/config"
	"asset-ledger/internal/pkg/logging"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"
)

var stdout io.Writer = os.Stdout

// open loads config and builds the service container. Logs go to stderr so stdout
// stays machine-readable.
func open() (*bootstrap.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	return bootstrap.New(cfg)
}

// run opens the container, calls fn and maps its error to an exit status.
func run(fn func(c *bootstrap.Container) error) subcommands.ExitStatus {
	c, err := open()
	if err != nil {
		log.Error().Err(err).Msg("startup")
		return subcommands.ExitFailure
	}
	defer c.Close()
	if err := fn(c); err != nil {
		log.Error().Err(err).Msg("command failed")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readJSON decodes a file, or stdin when name is "-".
func readJSON(name string, v interface{}) error {
	r, closeFn, err := input(name)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// readRows accepts either a JSON array of rows or a CSV export of the journal tab.
func readRows(name string) ([]ingest.RawRow, error) {
	if strings.HasSuffix(strings.ToLower(name), ".csv") {
		r, closeFn, err := input(name)
		if err != nil {
			return nil, err
		}
		defer closeFn()
		records, err := csv.NewReader(r).ReadAll()
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ingest.ErrEmptyBatch
		}
		return ingest.ParseSheet(records[0], records[1:], ingest.SheetMappingV1)
	}
	var rows []ingest.RawRow
	if err := readJSON(name, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func input(name string) (io.Reader, func(), error) {
	if name == "" {
		return nil, nil, fmt.Errorf("an input file is required (-f)")
	}
	if name == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
