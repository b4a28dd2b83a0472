package analyze

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/sprocmap/internal/discover"
	"github.com/phobologic/sprocmap/internal/export"
	"github.com/phobologic/sprocmap/internal/model"
	"github.com/phobologic/sprocmap/internal/render"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type staticCatalog struct {
	procs []model.Procedure
	err   error
}

func (c staticCatalog) Procedures(context.Context) ([]model.Procedure, error) {
	return c.procs, c.err
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const widgetsPy = `import system

def getData():
    """docstring"""
    system.db.runStoredProcedure("stp_getWidgets")

def helper():
    return 1
`

const ordersJS = `function saveOrder(order) {
    return system.db.runProcedure("oee.stp_saveOrder", order);
}
`

func fixture(t *testing.T) (string, []discover.FileEntry) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "widgets.py", widgetsPy)
	writeFile(t, root, "web/orders.js", ordersJS)

	files, err := discover.Files(root, discover.Options{})
	require.NoError(t, err)
	return root, files
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	root, files := fixture(t)
	res, err := Run(context.Background(), Options{
		Root:  root,
		Files: files,
		Catalog: staticCatalog{procs: []model.Procedure{
			{Name: "stp_getWidgets", Definition: "SELECT * FROM oee.Widgets w JOIN dbo.Lines l ON w.id = l.id INTO #Staging"},
			{Name: "stp_saveOrder", Definition: "INSERT INTO Orders (id) VALUES (1)"},
		}},
		Workers: 2,
		Logger:  quiet,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Failures)

	require.Len(t, res.Tree.Files, 2)
	js, py := res.Tree.Files[0], res.Tree.Files[1]
	assert.Equal(t, filepath.Join("web", "orders.js"), js.Path)
	assert.Equal(t, "widgets.py", py.Path)

	require.Len(t, py.Functions, 2)
	assert.Equal(t, "getData", py.Functions[0].Name)
	assert.Equal(t, []model.ProcedureNode{
		{Name: "stp_getWidgets", Tables: []string{"#Staging", "Lines", "Widgets"}},
	}, py.Functions[0].Procedures)
	assert.Equal(t, "helper", py.Functions[1].Name)
	assert.Empty(t, py.Functions[1].Procedures)

	require.Len(t, js.Functions, 1)
	assert.Equal(t, []model.ProcedureNode{
		{Name: "stp_saveOrder", Tables: []string{"Orders"}},
	}, js.Functions[0].Procedures)

	text := render.Text(res.Tree)
	assert.Contains(t, text, "  │  └─(No stored procedures found)")
	assert.Contains(t, text, "  │  ├─💾 SP: stp_getWidgets")
}

func TestRunUnreadableFileIsolated(t *testing.T) {
	t.Parallel()

	root, files := fixture(t)
	files = append([]discover.FileEntry{{Path: "gone.py", Language: "python"}}, files...)

	res, err := Run(context.Background(), Options{Root: root, Files: files, Logger: quiet})
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "gone.py", res.Failures[0].Key)
	assert.Equal(t, model.ErrInputNotFound, res.Failures[0].Kind())
	assert.Len(t, res.Tree.Files, 2)
}

func TestRunCatalogFailureDegrades(t *testing.T) {
	t.Parallel()

	root, files := fixture(t)
	res, err := Run(context.Background(), Options{
		Root:    root,
		Files:   files,
		Catalog: staticCatalog{err: errors.New("no route to host")},
		Logger:  quiet,
	})
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "catalog", res.Failures[0].Key)
	assert.Equal(t, model.ErrIOFailure, res.Failures[0].Kind())

	// Call sites survive; tables are simply unknown.
	py := res.Tree.Files[1]
	assert.Equal(t, []model.ProcedureNode{{Name: "stp_getWidgets", Tables: []string{}}}, py.Functions[0].Procedures)
}

func TestRunCatalogOverridesPrior(t *testing.T) {
	t.Parallel()

	root, files := fixture(t)
	prior := filepath.Join(t.TempDir(), "prior.json")
	writeFile(t, filepath.Dir(prior), "prior.json",
		`{"sp_to_tables":{"getWidgets":["OldWidgets"],"saveOrder":["Orders_v1"],"stp_archive":["Archive"]}}`)

	res, err := Run(context.Background(), Options{
		Root:      root,
		Files:     files,
		PriorPath: prior,
		Catalog: staticCatalog{procs: []model.Procedure{
			{Name: "stp_getWidgets", Definition: "SELECT * FROM Widgets"},
			{Name: "stp_saveOrder", Definition: "-- body not visible"},
		}},
		Logger: quiet,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Failures)

	assert.Equal(t, []string{"Widgets"}, res.Tree.ProcedureTables["stp_getWidgets"], "fresh catalog wins")
	assert.Equal(t, []string{"Orders_v1"}, res.Tree.ProcedureTables["stp_saveOrder"], "empty scan keeps prior")
	assert.Equal(t, []string{"Archive"}, res.Tree.ProcedureTables["stp_archive"])
}

func TestRunPriorFailures(t *testing.T) {
	t.Parallel()

	root, files := fixture(t)
	dir := t.TempDir()

	writeFile(t, dir, "partial.json", `{"sp_to_tables":{"getWidgets":["Widgets"],"broken":42}}`)
	res, err := Run(context.Background(), Options{
		Root: root, Files: files, PriorPath: filepath.Join(dir, "partial.json"), Logger: quiet,
	})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, model.ErrMalformedPersistedData, res.Failures[0].Kind())
	assert.Equal(t, []string{"Widgets"}, res.Tree.ProcedureTables["stp_getWidgets"])

	writeFile(t, dir, "bad.json", `["not", "an", "object"]`)
	res, err = Run(context.Background(), Options{
		Root: root, Files: files, PriorPath: filepath.Join(dir, "bad.json"), Logger: quiet,
	})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, model.ErrMalformedPersistedData, res.Failures[0].Kind())
	assert.Len(t, res.Tree.Files, 2, "report still assembled")

	res, err = Run(context.Background(), Options{
		Root: root, Files: files, PriorPath: filepath.Join(dir, "missing.json"), Logger: quiet,
	})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, model.ErrInputNotFound, res.Failures[0].Kind())
}

func TestRunPriorFromSQLiteExport(t *testing.T) {
	t.Parallel()

	root, files := fixture(t)
	db := filepath.Join(t.TempDir(), "history.db")
	_, err := export.Write(db, root, &model.Tree{
		ProcedureTables: map[string][]string{"stp_getWidgets": {"Widgets"}},
	})
	require.NoError(t, err)

	res, err := Run(context.Background(), Options{Root: root, Files: files, PriorPath: db, Logger: quiet})
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	assert.Equal(t, []model.ProcedureNode{{Name: "stp_getWidgets", Tables: []string{"Widgets"}}},
		res.Tree.Files[1].Functions[0].Procedures)
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	root, files := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Options{Root: root, Files: files, Logger: quiet})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunEmpty(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), Options{Root: t.TempDir(), Logger: quiet})
	require.NoError(t, err)
	assert.Empty(t, res.Tree.Files)
	assert.Empty(t, res.Failures)
}

func TestRunDeterministicAcrossWorkers(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, name := range []string{"a.py", "b.py", "c.py", "d.py", "e.py"} {
		writeFile(t, root, name, "def f():\n    sp.run_"+name[:1]+"()\n")
	}
	files, err := discover.Files(root, discover.Options{})
	require.NoError(t, err)

	serial, err := Run(context.Background(), Options{Root: root, Files: files, Workers: 1, Logger: quiet})
	require.NoError(t, err)
	parallel, err := Run(context.Background(), Options{Root: root, Files: files, Workers: 8, Logger: quiet})
	require.NoError(t, err)
	assert.Equal(t, serial.Tree, parallel.Tree)
	assert.Equal(t, "stp_run_a", serial.Tree.Files[0].Functions[0].Procedures[0].Name)
}
