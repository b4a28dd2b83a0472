// Package render draws an assembled dependency tree as indented text.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/phobologic/sprocmap/internal/model"
)

// Marker lines and prefixes of the text tree.
const (
	Header          = "Dependency Tree:"
	HeaderRule      = "================"
	NoProcedures    = "  │  └─(No stored procedures found)"
	NoTables        = "  │  │  └─(No tables found)"
	filePrefix      = "📄 "
	functionPrefix  = "  ├─📊 Function: "
	procedurePrefix = "  │  ├─💾 SP: "
	tableBranch     = "  │  │  ├─"
	tableLast       = "  │  │  └─"
	tableLabel      = "🗃️ Table: "
)

// Text renders t line by line. Each file is preceded by a blank line; a
// function without procedures and a procedure without tables get a marker
// line instead of an empty list.
func Text(t *model.Tree) string {
	lines := []string{Header, HeaderRule}

	for i := range t.Files {
		f := &t.Files[i]
		lines = append(lines, "", filePrefix+f.Path)

		for j := range f.Functions {
			fn := &f.Functions[j]
			lines = append(lines, functionPrefix+fn.Name)

			if len(fn.Procedures) == 0 {
				lines = append(lines, NoProcedures)
				continue
			}
			for _, p := range fn.Procedures {
				lines = append(lines, procedurePrefix+p.Name)
				if len(p.Tables) == 0 {
					lines = append(lines, NoTables)
					continue
				}
				for k, table := range p.Tables {
					prefix := tableBranch
					if k == len(p.Tables)-1 {
						prefix = tableLast
					}
					lines = append(lines, prefix+tableLabel+table)
				}
			}
		}
	}

	return strings.Join(lines, "\n")
}

// WriteText writes the text rendering of t to w, newline terminated.
func WriteText(w io.Writer, t *model.Tree) error {
	if _, err := fmt.Fprintln(w, Text(t)); err != nil {
		return fmt.Errorf("writing text tree: %w", err)
	}
	return nil
}
