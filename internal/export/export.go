// Package export writes dependency trees into a SQLite database so runs can
// be queried with SQL and compared over time.
package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/phobologic/sprocmap/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	root       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	files      INTEGER NOT NULL,
	functions  INTEGER NOT NULL,
	procedures INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS files (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	path     TEXT NOT NULL,
	position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS functions (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	file     TEXT NOT NULL,
	name     TEXT NOT NULL,
	position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS call_sites (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	file      TEXT NOT NULL,
	function  TEXT NOT NULL,
	procedure TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS procedure_tables (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	procedure  TEXT NOT NULL,
	table_name TEXT
);
CREATE INDEX IF NOT EXISTS idx_call_sites_procedure ON call_sites(procedure);
CREATE INDEX IF NOT EXISTS idx_procedure_tables_table ON procedure_tables(table_name);
`

// Run describes one analysis run.
type Run struct {
	ID         string
	Root       string
	CreatedAt  time.Time
	Files      int
	Functions  int
	Procedures int
}

// Write appends t to the database at path as a new run and returns the run.
// The database and its tables are created when missing.
func Write(path, root string, t *model.Tree) (run Run, err error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return Run{}, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return Run{}, fmt.Errorf("create tables: %w", err)
	}

	files, functions, procedures := t.Counts()
	run = Run{
		ID:         uuid.NewString(),
		Root:       root,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		Files:      files,
		Functions:  functions,
		Procedures: procedures,
	}

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Run{}, fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	if err := sqlitex.ExecuteTransient(conn,
		`INSERT INTO runs (id, root, created_at, files, functions, procedures) VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			run.ID, run.Root, run.CreatedAt.Format(time.RFC3339),
			run.Files, run.Functions, run.Procedures,
		}}); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	if err := insertTree(conn, run.ID, t); err != nil {
		return Run{}, err
	}
	if err := insertProcedureTables(conn, run.ID, t.ProcedureTables); err != nil {
		return Run{}, err
	}
	return run, nil
}

func insertTree(conn *sqlite.Conn, runID string, t *model.Tree) error {
	fileStmt, err := conn.Prepare(`INSERT INTO files (run_id, path, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare files: %w", err)
	}
	defer func() { _ = fileStmt.Finalize() }()

	fnStmt, err := conn.Prepare(`INSERT INTO functions (run_id, file, name, position) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare functions: %w", err)
	}
	defer func() { _ = fnStmt.Finalize() }()

	callStmt, err := conn.Prepare(`INSERT INTO call_sites (run_id, file, function, procedure) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare call_sites: %w", err)
	}
	defer func() { _ = callStmt.Finalize() }()

	for i, f := range t.Files {
		fileStmt.BindText(1, runID)
		fileStmt.BindText(2, f.Path)
		fileStmt.BindInt64(3, int64(i))
		if _, err := fileStmt.Step(); err != nil {
			return fmt.Errorf("insert file %s: %w", f.Path, err)
		}
		_ = fileStmt.Reset()

		for j, fn := range f.Functions {
			fnStmt.BindText(1, runID)
			fnStmt.BindText(2, f.Path)
			fnStmt.BindText(3, fn.Name)
			fnStmt.BindInt64(4, int64(j))
			if _, err := fnStmt.Step(); err != nil {
				return fmt.Errorf("insert function %s::%s: %w", f.Path, fn.Name, err)
			}
			_ = fnStmt.Reset()

			for _, p := range fn.Procedures {
				callStmt.BindText(1, runID)
				callStmt.BindText(2, f.Path)
				callStmt.BindText(3, fn.Name)
				callStmt.BindText(4, p.Name)
				if _, err := callStmt.Step(); err != nil {
					return fmt.Errorf("insert call site %s::%s: %w", f.Path, fn.Name, err)
				}
				_ = callStmt.Reset()
			}
		}
	}
	return nil
}

func insertProcedureTables(conn *sqlite.Conn, runID string, m map[string][]string) error {
	stmt, err := conn.Prepare(`INSERT INTO procedure_tables (run_id, procedure, table_name) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare procedure_tables: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	procs := make([]string, 0, len(m))
	for p := range m {
		procs = append(procs, p)
	}
	sort.Strings(procs)

	// A procedure without tables is kept as one row with a NULL table_name.
	for _, p := range procs {
		if len(m[p]) == 0 {
			stmt.BindText(1, runID)
			stmt.BindText(2, p)
			stmt.BindNull(3)
			if _, err := stmt.Step(); err != nil {
				return fmt.Errorf("insert tables for %s: %w", p, err)
			}
			_ = stmt.Reset()
			continue
		}
		for _, table := range m[p] {
			stmt.BindText(1, runID)
			stmt.BindText(2, p)
			stmt.BindText(3, table)
			if _, err := stmt.Step(); err != nil {
				return fmt.Errorf("insert tables for %s: %w", p, err)
			}
			_ = stmt.Reset()
		}
	}
	return nil
}
