package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/phobologic/sprocmap/internal/model"
)

// ReadTree decodes a JSON report back into a Tree, preserving key order.
// Unknown keys are ignored.
func ReadTree(r io.Reader) (*model.Tree, error) {
	dec := json.NewDecoder(r)
	t := &model.Tree{ProcedureTables: make(map[string][]string)}

	err := readObject(dec, func(key string) error {
		switch key {
		case "files":
			return readObject(dec, func(path string) error {
				f, err := readFile(dec, path)
				if err != nil {
					return err
				}
				t.Files = append(t.Files, f)
				return nil
			})
		case "sp_to_tables":
			var m map[string][]string
			if err := dec.Decode(&m); err != nil {
				return fmt.Errorf("sp_to_tables: %w", err)
			}
			for k, v := range m {
				t.ProcedureTables[k] = v
			}
			return nil
		default:
			return skipValue(dec)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrMalformedPersistedData, err)
	}
	return t, nil
}

// ReadTreeFile reads a JSON report from path.
func ReadTreeFile(path string) (*model.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, model.Classify(err)
	}
	defer f.Close()

	t, err := ReadTree(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func readFile(dec *json.Decoder, path string) (model.FileNode, error) {
	f := model.FileNode{Path: path}
	err := readObject(dec, func(key string) error {
		if key != "functions" {
			return skipValue(dec)
		}
		return readObject(dec, func(name string) error {
			fn, err := readFunction(dec, name)
			if err != nil {
				return err
			}
			f.Functions = append(f.Functions, fn)
			return nil
		})
	})
	if err != nil {
		return f, fmt.Errorf("file %q: %w", path, err)
	}
	return f, nil
}

func readFunction(dec *json.Decoder, name string) (model.FunctionNode, error) {
	fn := model.FunctionNode{Name: name}
	err := readObject(dec, func(key string) error {
		if key != "stored_procedures" {
			return skipValue(dec)
		}
		return readObject(dec, func(proc string) error {
			p := model.ProcedureNode{Name: proc, Tables: []string{}}
			err := readObject(dec, func(key string) error {
				if key != "tables" {
					return skipValue(dec)
				}
				return dec.Decode(&p.Tables)
			})
			if err != nil {
				return fmt.Errorf("procedure %q: %w", proc, err)
			}
			fn.Procedures = append(fn.Procedures, p)
			return nil
		})
	})
	if err != nil {
		return fn, fmt.Errorf("function %q: %w", name, err)
	}
	return fn, nil
}

// readObject reads one JSON object, calling fn for each key. fn must
// consume the key's value.
func readObject(dec *json.Decoder, fn func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected key, got %v", tok)
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	_, err = dec.Token() // closing '}'
	return err
}

func skipValue(dec *json.Decoder) error {
	var raw json.RawMessage
	return dec.Decode(&raw)
}
