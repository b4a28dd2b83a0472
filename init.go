package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/phobologic/sprocmap/internal/config"
)

// runInit implements the `sprocmap init` subcommand, which writes a starter
// config file.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sprocmap init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var dryRun, force bool
	fs.BoolVar(&dryRun, "dry-run", false, "print the config instead of writing it")
	fs.BoolVar(&force, "force", false, "overwrite an existing config")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: sprocmap init [flags] [path]

Write a commented starter config. path defaults to ./%s, which sprocmap
reads automatically when run against this directory.

Flags:
`, config.FileName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(reorderArgs(args, nil)); err != nil {
		return err
	}

	if dryRun {
		_, _ = fmt.Fprint(stdout, config.Starter)
		return nil
	}

	path := config.FileName
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}

	if err := os.WriteFile(path, []byte(config.Starter), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote starter config to %s\n", path)
	return nil
}
