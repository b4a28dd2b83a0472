package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/phobologic/sprocmap/internal/model"
)

// LoadPrior reads the procedure → tables mapping from a previously saved
// report at path. Procedure names are returned as persisted; callers
// canonicalize them when importing.
//
// A missing or unreadable file, or a document whose top level or
// sp_to_tables section is not an object, returns an error and no data.
// Individual malformed entries are skipped and reported as failures while
// the remaining entries load.
func LoadPrior(path string) (map[string][]string, []model.Failure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, model.Classify(err)
	}
	prior, failures, err := ParsePrior(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return prior, failures, nil
}

// ParsePrior extracts the sp_to_tables mapping from report data. Extra keys
// are ignored; a document without sp_to_tables yields an empty mapping.
func ParsePrior(data []byte) (map[string][]string, []model.Failure, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", model.ErrMalformedPersistedData, err)
	}

	prior := make(map[string][]string)
	raw, ok := top["sp_to_tables"]
	if !ok {
		return prior, nil, nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, fmt.Errorf("sp_to_tables: %w: %w", model.ErrMalformedPersistedData, err)
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []model.Failure
	for _, name := range names {
		var tables []string
		if err := json.Unmarshal(entries[name], &tables); err != nil {
			failures = append(failures, model.Failure{
				Key: "sp_to_tables." + name,
				Err: fmt.Errorf("%w: %w", model.ErrMalformedPersistedData, err),
			})
			continue
		}
		prior[name] = tables
	}
	return prior, failures, nil
}
