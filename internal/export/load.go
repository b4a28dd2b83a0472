package export

import (
	"fmt"
	"os"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/phobologic/sprocmap/internal/model"
)

// Runs lists the runs stored at path, newest first.
func Runs(path string) ([]Run, error) {
	conn, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	var runs []Run
	err = sqlitex.ExecuteTransient(conn,
		`SELECT id, root, created_at, files, functions, procedures FROM runs ORDER BY created_at DESC, rowid DESC`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				created, err := time.Parse(time.RFC3339, stmt.ColumnText(2))
				if err != nil {
					return fmt.Errorf("run %s: %w: %w", stmt.ColumnText(0), model.ErrMalformedPersistedData, err)
				}
				runs = append(runs, Run{
					ID:         stmt.ColumnText(0),
					Root:       stmt.ColumnText(1),
					CreatedAt:  created,
					Files:      stmt.ColumnInt(3),
					Functions:  stmt.ColumnInt(4),
					Procedures: stmt.ColumnInt(5),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// LoadProcedureTables returns the procedure → tables mapping of the newest
// run stored at path, so an export can seed the next analysis like a saved
// JSON report. A database without runs yields an empty mapping.
func LoadProcedureTables(path string) (map[string][]string, error) {
	conn, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	m := make(map[string][]string)
	err = sqlitex.ExecuteTransient(conn,
		`SELECT procedure, table_name FROM procedure_tables
		 WHERE run_id = (SELECT id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1)
		 ORDER BY procedure, table_name`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				p := stmt.ColumnText(0)
				if stmt.ColumnType(1) == sqlite.TypeNull {
					if _, ok := m[p]; !ok {
						m[p] = []string{}
					}
					return nil
				}
				m[p] = append(m[p], stmt.ColumnText(1))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("%w: loading procedure tables: %w", model.ErrMalformedPersistedData, err)
	}
	return m, nil
}

func openReadOnly(path string) (*sqlite.Conn, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, model.Classify(err)
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return conn, nil
}
