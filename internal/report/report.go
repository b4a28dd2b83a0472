// Package report reads and writes the structured dependency report.
//
// The report nests files → functions → stored_procedures → tables. Object
// keys are written in tree order rather than sorted, and the top-level
// "sp_to_tables" map lets a saved report seed the next run.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/phobologic/sprocmap/internal/model"
)

// member is one key/value pair of an ordered JSON object.
type member struct {
	key   string
	value any
}

// object marshals as a JSON object with keys in slice order.
type object []member

func (o object) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(m.value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", m.key, err)
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Encode returns the indented JSON report for t.
func Encode(t *model.Tree) ([]byte, error) {
	files := make(object, 0, len(t.Files))
	for i := range t.Files {
		f := &t.Files[i]
		functions := make(object, 0, len(f.Functions))
		for j := range f.Functions {
			fn := &f.Functions[j]
			procs := make(object, 0, len(fn.Procedures))
			for _, p := range fn.Procedures {
				tables := p.Tables
				if tables == nil {
					tables = []string{}
				}
				procs = append(procs, member{p.Name, object{
					{"type", model.TypeProcedure},
					{"tables", tables},
				}})
			}
			functions = append(functions, member{fn.Name, object{
				{"type", model.TypeFunction},
				{"stored_procedures", procs},
			}})
		}
		files = append(files, member{f.Path, object{
			{"type", model.TypeFile},
			{"functions", functions},
		}})
	}

	spToTables := t.ProcedureTables
	if spToTables == nil {
		spToTables = map[string][]string{}
	}

	doc := object{
		{"type", model.TypeTree},
		{"files", files},
		{"sp_to_tables", spToTables},
	}
	return json.MarshalIndent(doc, "", "  ")
}

// WriteJSON writes the JSON report for t to w.
func WriteJSON(w io.Writer, t *model.Tree) error {
	data, err := Encode(t)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// WriteFile writes the JSON report for t to path.
func WriteFile(path string, t *model.Tree) error {
	data, err := Encode(t)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
