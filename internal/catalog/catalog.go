// Package catalog supplies stored procedure definitions to an analysis run.
//
// A Source may be a live database (SQL Server or SQLite via database/sql),
// a directory of .sql scripts, or either wrapped with retries. Only names
// following the stp convention are returned.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // registers "sqlserver"
	_ "modernc.org/sqlite"              // registers "sqlite"

	"github.com/phobologic/sprocmap/internal/model"
)

// Source lists the stored procedures of one catalog.
type Source interface {
	Procedures(ctx context.Context) ([]model.Procedure, error)
}

// Supported database/sql driver names.
const (
	DriverSQLServer = "sqlserver"
	DriverSQLite    = "sqlite"
)

type dialect struct {
	query       string
	defaultLike string
}

var dialects = map[string]dialect{
	DriverSQLServer: {
		query: `SELECT OBJECT_NAME(object_id) AS name, OBJECT_DEFINITION(object_id) AS definition
FROM sys.procedures
WHERE name LIKE @p1
ORDER BY name`,
		defaultLike: "stp[_.]%",
	},
	// SQLite has no procedures; a plain table stands in for the catalog.
	DriverSQLite: {
		query:       `SELECT name, definition FROM procedures WHERE name LIKE ? ORDER BY name`,
		defaultLike: "stp%",
	},
}

// Drivers returns the supported driver names.
func Drivers() []string {
	return []string{DriverSQLServer, DriverSQLite}
}

// SQL reads procedures from a database.
type SQL struct {
	DB     *sql.DB
	Driver string

	// NameLike overrides the driver's LIKE pattern for procedure names.
	NameLike string

	Logger *slog.Logger
}

// OpenSQL opens a database catalog and verifies the connection.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	if _, ok := dialects[driver]; !ok {
		return nil, fmt.Errorf("unsupported catalog driver %q (want one of %s)",
			driver, strings.Join(Drivers(), ", "))
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s catalog: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s catalog: %w", driver, err)
	}
	return &SQL{DB: db, Driver: driver}, nil
}

// Database is a Source that connects on every call, so a retry wrapper
// also covers connection failures.
type Database struct {
	Driver   string
	DSN      string
	NameLike string
	Logger   *slog.Logger
}

// Procedures connects, queries and disconnects.
func (d Database) Procedures(ctx context.Context) ([]model.Procedure, error) {
	s, err := OpenSQL(ctx, d.Driver, d.DSN)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	s.NameLike = d.NameLike
	s.Logger = d.Logger
	return s.Procedures(ctx)
}

// Close closes the underlying database.
func (s *SQL) Close() error {
	return s.DB.Close()
}

// Procedures queries the catalog. Procedures whose definition is NULL
// (encrypted, or not visible to the login) are skipped.
func (s *SQL) Procedures(ctx context.Context) ([]model.Procedure, error) {
	d, ok := dialects[s.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported catalog driver %q", s.Driver)
	}
	like := s.NameLike
	if like == "" {
		like = d.defaultLike
	}

	rows, err := s.DB.QueryContext(ctx, d.query, like)
	if err != nil {
		return nil, fmt.Errorf("querying procedures: %w", err)
	}
	defer rows.Close()

	var procs []model.Procedure
	for rows.Next() {
		var (
			name string
			def  sql.NullString
		)
		if err := rows.Scan(&name, &def); err != nil {
			return nil, fmt.Errorf("scanning procedure: %w", err)
		}
		if !def.Valid {
			logger(s.Logger).Debug("procedure definition unavailable", "procedure", name)
			continue
		}
		if !model.HasProcedurePrefix(name) {
			continue
		}
		procs = append(procs, model.Procedure{Name: name, Definition: def.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading procedures: %w", err)
	}
	return procs, nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
