// Package analyze runs the full extraction pipeline: segment script files,
// recognize procedure call sites, extract catalog table references and
// assemble the dependency tree.
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/sprocmap/internal/callsite"
	"github.com/phobologic/sprocmap/internal/catalog"
	"github.com/phobologic/sprocmap/internal/discover"
	"github.com/phobologic/sprocmap/internal/export"
	"github.com/phobologic/sprocmap/internal/lang"
	"github.com/phobologic/sprocmap/internal/model"
	"github.com/phobologic/sprocmap/internal/report"
	"github.com/phobologic/sprocmap/internal/segment"
	"github.com/phobologic/sprocmap/internal/store"
	"github.com/phobologic/sprocmap/internal/tables"
	"github.com/phobologic/sprocmap/internal/tree"
)

// Options configures one run.
type Options struct {
	// Root is the directory Files are relative to.
	Root  string
	Files []discover.FileEntry

	// Recognizer defaults to callsite.Default.
	Recognizer *callsite.Recognizer

	// PriorPath names a saved JSON report or SQLite export whose
	// procedure → tables mapping seeds the run. Optional.
	PriorPath string

	// Catalog supplies procedure definitions. Optional.
	Catalog catalog.Source

	// Workers bounds parallel file processing; <= 0 means one per CPU.
	Workers int

	Logger *slog.Logger
}

// Result is the outcome of a run. Failures are isolated to one input each
// and never prevent the tree from being assembled.
type Result struct {
	Tree     *model.Tree
	Failures []model.Failure
}

type fileResult struct {
	spans []model.FunctionSpan
	calls [][]string // parallel to spans
	err   error
}

// Run executes the pipeline. It returns an error only when ctx is done.
func Run(ctx context.Context, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	rec := opts.Recognizer
	if rec == nil {
		rec = callsite.Default
	}

	st := store.New()
	res := &Result{}
	fail := func(key string, err error) {
		f := model.Failure{Key: key, Err: model.Classify(err)}
		log.Warn("skipped input", "key", key, "err", f.Err)
		res.Failures = append(res.Failures, f)
	}

	// Prior data is imported before the catalog scan so that fresh catalog
	// table lists replace persisted ones for the same procedure.
	if opts.PriorPath != "" {
		prior, failures, err := LoadPrior(opts.PriorPath)
		if err != nil {
			fail(opts.PriorPath, err)
		}
		for _, f := range failures {
			fail(opts.PriorPath+": "+f.Key, f.Err)
		}
		st.ImportExisting(prior)
		log.Debug("imported prior report", "path", opts.PriorPath, "procedures", len(prior))
	}

	log.Info("analyzing files", "count", len(opts.Files))
	results, err := scanFiles(ctx, opts, rec)
	if err != nil {
		return nil, err
	}
	for i, e := range opts.Files {
		r := results[i]
		if r.err != nil {
			fail(e.Path, r.err)
			continue
		}
		st.RecordFileFunctions(e.Path, r.spans)
		for j, span := range r.spans {
			st.RecordCallSites(e.Path, span.Name, r.calls[j])
		}
	}

	if opts.Catalog != nil {
		if err := scanCatalog(ctx, opts.Catalog, st, log); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			fail("catalog", err)
		}
	}

	res.Tree = tree.Assemble(st.Snapshot())
	files, functions, procs := res.Tree.Counts()
	log.Info("done", "files", files, "functions", functions, "procedures", procs, "failures", len(res.Failures))
	return res, nil
}

// scanFiles segments and recognizes every file in parallel. Results are
// indexed like opts.Files so they can be recorded in discovery order.
func scanFiles(ctx context.Context, opts Options, rec *callsite.Recognizer) ([]fileResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]fileResult, len(opts.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, e := range opts.Files {
		i, e := i, e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = scanFile(opts.Root, e, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func scanFile(root string, e discover.FileEntry, rec *callsite.Recognizer) fileResult {
	l, ok := lang.Languages[e.Language]
	if !ok {
		return fileResult{err: fmt.Errorf("unsupported language %q", e.Language)}
	}
	data, err := os.ReadFile(filepath.Join(root, e.Path))
	if err != nil {
		return fileResult{err: err}
	}

	spans := segment.New(l.Keyword).Split(string(data))
	calls := make([][]string, len(spans))
	for i, span := range spans {
		calls[i] = rec.Procedures(span.Body)
	}
	return fileResult{spans: spans, calls: calls}
}

// scanCatalog records the tables each catalog procedure touches. A
// procedure whose definition yields no tables keeps any prior entry.
func scanCatalog(ctx context.Context, src catalog.Source, st *store.Store, log *slog.Logger) error {
	procs, err := src.Procedures(ctx)
	if err != nil {
		return err
	}
	log.Info("analyzing procedures", "count", len(procs))
	for _, p := range procs {
		name := model.CanonicalProcedure(p.Name)
		st.AddKnownProcedure(name)
		found := tables.Extract(p.Definition)
		if len(found) == 0 {
			log.Debug("no tables found", "procedure", name)
			continue
		}
		st.RecordProcedureTables(name, found)
	}
	return nil
}

// LoadPrior reads a prior procedure → tables mapping from a JSON report or,
// for .db/.sqlite/.sqlite3 paths, from a SQLite export.
func LoadPrior(path string) (map[string][]string, []model.Failure, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		m, err := export.LoadProcedureTables(path)
		return m, nil, err
	default:
		return report.LoadPrior(path)
	}
}
