package catalog

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/phobologic/sprocmap/internal/model"
)

var createProc = regexp.MustCompile(`(?im)^[ \t]*CREATE[ \t]+(?:OR[ \t]+ALTER[ \t]+)?PROC(?:EDURE)?[ \t]+([\w.\[\]"]+)`)

// Dir reads procedures from the .sql scripts under a directory, as exported
// by a schema dump. A script holding several CREATE PROCEDURE statements
// yields one procedure per statement; a script with none is treated as a
// single procedure named after the file.
type Dir struct {
	Path string
}

// Procedures walks the directory. Results are sorted by name; when two
// scripts define the same procedure the later path wins.
func (d Dir) Procedures(ctx context.Context) ([]model.Procedure, error) {
	byName := make(map[string]model.Procedure)

	err := filepath.WalkDir(d.Path, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".sql") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		for _, p := range splitScript(stem, string(data)) {
			byName[p.Name] = p
		}
		return nil
	})
	if err != nil {
		return nil, model.Classify(err)
	}

	procs := make([]model.Procedure, 0, len(byName))
	for _, p := range byName {
		if model.HasProcedurePrefix(p.Name) {
			procs = append(procs, p)
		}
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].Name < procs[j].Name })
	return procs, nil
}

func splitScript(stem, script string) []model.Procedure {
	locs := createProc.FindAllStringSubmatchIndex(script, -1)
	if len(locs) == 0 {
		return []model.Procedure{{Name: stem, Definition: script}}
	}
	procs := make([]model.Procedure, 0, len(locs))
	for i, loc := range locs {
		end := len(script)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		procs = append(procs, model.Procedure{
			Name:       procedureName(script[loc[2]:loc[3]]),
			Definition: script[loc[0]:end],
		})
	}
	return procs
}

// procedureName strips schema and quoting: [dbo].[stp_x] → stp_x.
func procedureName(raw string) string {
	if i := strings.LastIndex(raw, "."); i >= 0 {
		raw = raw[i+1:]
	}
	return strings.Trim(raw, `[]"`)
}
