// Package tables extracts table references from stored-procedure SQL text
// using clause-anchored patterns. It does not parse SQL.
package tables

import (
	"regexp"
	"sort"
	"strings"
)

// Permanent references: the capture stops at whitespace, parentheses and
// '#', so a temp table never matches here.
var permanentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)FROM\s+([^\s()#]+)`),
	regexp.MustCompile(`(?i)JOIN\s+([^\s()#]+)`),
	regexp.MustCompile(`(?i)INTO\s+([^\s()#]+)`),
	regexp.MustCompile(`(?i)UPDATE\s+([^\s()#]+)`),
	regexp.MustCompile(`(?i)INSERT\s+INTO\s+([^\s()#]+)`),
}

var temporaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(#\w+)`),
	regexp.MustCompile(`(?i)INTO\s+(#\w+)`),
	regexp.MustCompile(`(?i)FROM\s+(#\w+)`),
	regexp.MustCompile(`(?i)JOIN\s+(#\w+)`),
	regexp.MustCompile(`(?i)UPDATE\s+(#\w+)`),
	regexp.MustCompile(`(?i)INSERT\s+INTO\s+(#\w+)`),
}

// excluded holds keywords and noise tokens the clause patterns over-capture.
var excluded = map[string]struct{}{
	"dbo": {}, "into": {}, "from": {}, "join": {}, "update": {}, "insert": {},
	"where": {}, "and": {}, "or": {}, "null": {}, "not": {}, "as": {}, "on": {},
	"with": {}, "the": {}, "a": {}, "an": {}, "is": {}, "in": {},
}

// Extract returns the distinct permanent and temporary tables referenced in
// sql, sorted. Temporary tables keep their leading '#'.
func Extract(sql string) []string {
	set := make(map[string]struct{})
	for _, t := range Permanent(sql) {
		set[t] = struct{}{}
	}
	for _, t := range Temporary(sql) {
		set[t] = struct{}{}
	}
	return sortedKeys(set)
}

// Permanent returns the distinct permanent tables referenced in sql, sorted.
// Schema-qualified names are reduced to their trailing component, and
// keyword collisions such as "FROM dbo" are rejected.
func Permanent(sql string) []string {
	set := make(map[string]struct{})
	for _, re := range permanentPatterns {
		for _, m := range re.FindAllStringSubmatch(sql, -1) {
			name := tableName(m[1])
			if name == "" {
				continue
			}
			if _, skip := excluded[strings.ToLower(name)]; skip {
				continue
			}
			set[name] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Temporary returns the distinct temp tables referenced in sql, sorted.
// Temp tables are neither schema-split nor filtered.
func Temporary(sql string) []string {
	set := make(map[string]struct{})
	for _, re := range temporaryPatterns {
		for _, m := range re.FindAllStringSubmatch(sql, -1) {
			set[m[1]] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// tableName keeps the trailing component of a possibly schema-qualified
// reference and strips T-SQL bracket quoting and statement punctuation.
func tableName(ref string) string {
	ref = strings.TrimRight(ref, ";,")
	if i := strings.LastIndex(ref, "."); i >= 0 {
		ref = ref[i+1:]
	}
	return strings.Trim(ref, "[]\"`")
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
