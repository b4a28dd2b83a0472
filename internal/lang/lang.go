// Package lang provides a language registry mapping file extensions to the
// keyword that opens a function definition.
package lang

import (
	"sort"
	"strings"
	"sync"
)

// Language holds segmentation settings for a supported scripting language.
type Language struct {
	Name       string
	Extensions []string

	// Keyword opens a function definition, e.g. "def" for Python.
	Keyword string
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if
// unsupported. Matching is case-insensitive.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// Names returns the registered language names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Languages))
	for name := range Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
