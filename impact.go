package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/phobologic/sprocmap/internal/graph"
	"github.com/phobologic/sprocmap/internal/render"
	"github.com/phobologic/sprocmap/internal/report"
)

// runImpact implements the `sprocmap impact` subcommand, which answers
// what depends on a table, procedure or function in a saved report.
func runImpact(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sprocmap impact", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		reportPath string
		table      string
		procedure  string
		function   string
		hotspots   int
		showTree   bool
	)

	fs.StringVar(&reportPath, "report", "", "JSON report written by sprocmap -json (required)")
	fs.StringVar(&table, "table", "", "list procedures and functions touching this table")
	fs.StringVar(&procedure, "procedure", "", "list callers and tables of this procedure")
	fs.StringVar(&function, "function", "", "list procedures and tables reached from this function (name or path::name)")
	fs.IntVar(&hotspots, "hotspots", 0, "list the N most depended-on nodes")
	fs.BoolVar(&showTree, "tree", false, "print the affected part of the dependency tree")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: sprocmap impact -report FILE (-table T | -procedure P | -function F | -hotspots N)

Query a saved report for what a change would affect.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if reportPath == "" {
		return errors.New("impact: -report is required")
	}

	queries := 0
	for _, set := range []bool{table != "", procedure != "", function != "", hotspots > 0} {
		if set {
			queries++
		}
	}
	if queries != 1 {
		return errors.New("impact: give exactly one of -table, -procedure, -function or -hotspots")
	}

	t, err := report.ReadTreeFile(reportPath)
	if err != nil {
		return fmt.Errorf("reading report: %w", err)
	}
	ix := graph.Build(t)

	if hotspots > 0 {
		for _, h := range ix.Hotspots(hotspots) {
			_, _ = fmt.Fprintf(stdout, "%.4f  %-9s  %s\n", h.Rank, h.Kind, h.Name)
		}
		return nil
	}

	var (
		subject string
		imp     graph.Impact
	)
	switch {
	case table != "":
		subject, imp = "table "+table, ix.ByTable(table)
	case procedure != "":
		subject, imp = "procedure "+procedure, ix.ByProcedure(procedure)
	default:
		subject, imp = "function "+function, ix.ByFunction(function)
	}

	if len(imp.Functions) == 0 && len(imp.Procedures) == 0 {
		return fmt.Errorf("%s: not found in %s", subject, reportPath)
	}

	if showTree {
		return render.WriteText(stdout, graph.Prune(t, imp))
	}
	writeImpact(stdout, subject, imp)
	return nil
}

func writeImpact(w io.Writer, subject string, imp graph.Impact) {
	_, _ = fmt.Fprintln(w, subject)
	section := func(title string, items []string) {
		_, _ = fmt.Fprintf(w, "%s (%d):\n", title, len(items))
		for _, item := range items {
			_, _ = fmt.Fprintf(w, "  %s\n", item)
		}
	}
	fns := make([]string, len(imp.Functions))
	for i, ref := range imp.Functions {
		fns[i] = ref.String()
	}
	section("functions", fns)
	section("procedures", imp.Procedures)
	section("tables", imp.Tables)
}
