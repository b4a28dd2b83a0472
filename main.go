// sprocmap maps the functions of a script codebase to the stored procedures
// they call and the tables those procedures touch.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/phobologic/sprocmap/internal/analyze"
	"github.com/phobologic/sprocmap/internal/catalog"
	"github.com/phobologic/sprocmap/internal/config"
	"github.com/phobologic/sprocmap/internal/discover"
	"github.com/phobologic/sprocmap/internal/export"
	"github.com/phobologic/sprocmap/internal/model"
	"github.com/phobologic/sprocmap/internal/render"
	"github.com/phobologic/sprocmap/internal/report"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "init":
			return runInit(args[1:], stdout, stderr)
		case "impact":
			return runImpact(args[1:], stdout, stderr)
		}
	}
	return runAnalyze(args, stdout, stderr)
}

// listFlag collects comma-separated values across repeated flags.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

func runAnalyze(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sprocmap", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath    string
		priorPath     string
		jsonPath      string
		textPath      string
		sqlitePath    string
		langs         listFlag
		excludes      listFlag
		catalogDriver string
		catalogDSN    string
		catalogDir    string
		maxFileSize   int64
		workers       int
		verbose       bool
		quiet         bool
		showVersion   bool
	)

	fs.StringVar(&configPath, "config", "", "config file (default <root>/"+config.FileName+")")
	fs.StringVar(&priorPath, "prior", "", "prior JSON report or SQLite export to seed procedure tables")
	fs.StringVar(&jsonPath, "json", "", "write the JSON report to this file")
	fs.StringVar(&textPath, "text", "", "write the text tree to this file instead of stdout")
	fs.StringVar(&sqlitePath, "sqlite", "", "append the run to this SQLite database")
	fs.Var(&langs, "l", "comma-separated languages to include")
	fs.Var(&langs, "langs", "comma-separated languages to include")
	fs.Var(&excludes, "exclude", "comma-separated glob patterns of files to skip")
	fs.StringVar(&catalogDriver, "catalog-driver", "", "catalog driver: "+strings.Join(catalog.Drivers(), " or "))
	fs.StringVar(&catalogDSN, "catalog-dsn", "", "catalog connection string (or $"+config.EnvCatalogDSN+")")
	fs.StringVar(&catalogDir, "catalog-dir", "", "directory of .sql procedure scripts")
	fs.Int64Var(&maxFileSize, "max-file-size", 0, "skip files larger than this many bytes")
	fs.IntVar(&workers, "workers", 0, "parallel file workers")
	fs.BoolVar(&verbose, "v", false, "verbose logging")
	fs.BoolVar(&quiet, "q", false, "log errors only")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: sprocmap [flags] [root]
       sprocmap init [-dry-run] [-force] [path]
       sprocmap impact -report FILE (-table T | -procedure P | -function F | -hotspots N)

Map script functions to the stored procedures they call and the tables those
procedures touch. root defaults to the current directory.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(reorderArgs(args, analyzeFlagsWithValue)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "sprocmap %s\n", version)
		return nil
	}

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault(root)
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["l"] || set["langs"] {
		cfg.Languages = langs
	}
	if set["exclude"] {
		cfg.Exclude = append(cfg.Exclude, excludes...)
	}
	if set["prior"] {
		cfg.PriorReport = priorPath
	}
	if set["json"] {
		cfg.Output.JSON = jsonPath
	}
	if set["text"] {
		cfg.Output.Text = textPath
	}
	if set["sqlite"] {
		cfg.Output.SQLite = sqlitePath
	}
	if set["catalog-driver"] {
		cfg.Catalog.Driver = catalogDriver
	}
	if set["catalog-dsn"] {
		cfg.Catalog.DSN = catalogDSN
	}
	if set["catalog-dir"] {
		cfg.Catalog.Dir = catalogDir
	}
	if set["max-file-size"] {
		cfg.MaxFileSize = maxFileSize
	}
	if set["workers"] {
		cfg.Workers = workers
	}
	if cfg.Catalog.Dir == "" {
		cfg.ApplyEnv(os.Getenv)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := newLogger(stderr, verbose, quiet)

	rec, err := cfg.Recognizer()
	if err != nil {
		return err
	}

	files, err := discover.Files(root, discover.Options{
		Languages:   cfg.Languages,
		Exclude:     cfg.Exclude,
		MaxFileSize: cfg.MaxFileSize,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		log.Warn("no script files found", "root", root)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := analyze.Run(ctx, analyze.Options{
		Root:       root,
		Files:      files,
		Recognizer: rec,
		PriorPath:  cfg.PriorReport,
		Catalog:    newCatalog(cfg, log),
		Workers:    cfg.Workers,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	if err := writeOutputs(cfg, root, res.Tree, stdout, log); err != nil {
		return err
	}
	if n := len(res.Failures); n > 0 {
		log.Warn("completed with skipped inputs", "count", n)
	}
	return nil
}

func newCatalog(cfg *config.Config, log *slog.Logger) catalog.Source {
	var src catalog.Source
	switch {
	case cfg.Catalog.Dir != "":
		src = catalog.Dir{Path: cfg.Catalog.Dir}
	case cfg.Catalog.DSN != "":
		src = catalog.Database{
			Driver:   cfg.Catalog.Driver,
			DSN:      cfg.Catalog.DSN,
			NameLike: cfg.Catalog.NameLike,
			Logger:   log,
		}
	default:
		return nil
	}
	return catalog.WithRetry(src, cfg.RetryPolicy(), log)
}

func writeOutputs(cfg *config.Config, root string, t *model.Tree, stdout io.Writer, log *slog.Logger) error {
	var errs []error

	if path := cfg.Output.JSON; path != "" {
		if err := report.WriteFile(path, t); err != nil {
			errs = append(errs, err)
		} else {
			log.Info("wrote report", "path", path)
		}
	}

	if path := cfg.Output.SQLite; path != "" {
		run, err := export.Write(path, root, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("exporting to %s: %w", path, err))
		} else {
			log.Info("exported run", "path", path, "run", run.ID)
		}
	}

	if path := cfg.Output.Text; path != "" {
		if err := os.WriteFile(path, []byte(render.Text(t)+"\n"), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("writing %s: %w", path, err))
		} else {
			log.Info("wrote tree", "path", path)
		}
	} else if err := render.WriteText(stdout, t); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// analyzeFlagsWithValue lists analyze flags that take a value argument.
var analyzeFlagsWithValue = map[string]bool{
	"-config": true, "--config": true,
	"-prior": true, "--prior": true,
	"-json": true, "--json": true,
	"-text": true, "--text": true,
	"-sqlite": true, "--sqlite": true,
	"-l": true, "--l": true,
	"-langs": true, "--langs": true,
	"-exclude": true, "--exclude": true,
	"-catalog-driver": true, "--catalog-driver": true,
	"-catalog-dsn": true, "--catalog-dsn": true,
	"-catalog-dir": true, "--catalog-dir": true,
	"-max-file-size": true, "--max-file-size": true,
	"-workers": true, "--workers": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string, withValue map[string]bool) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			// Keep the terminator so dash-prefixed roots stay positional.
			flags = append(flags, "--")
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if withValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
