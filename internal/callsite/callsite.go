// Package callsite recognizes stored-procedure invocations in function text.
package callsite

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/phobologic/sprocmap/internal/model"
)

// Pattern is one call-site idiom: a case-insensitive expression and the
// capture group holding the procedure identifier.
type Pattern struct {
	Name  string
	Expr  *regexp.Regexp
	Group int
}

func pattern(name, expr string, group int) Pattern {
	return Pattern{Name: name, Expr: regexp.MustCompile(`(?i)` + expr), Group: group}
}

// DefaultPatterns lists the built-in call-site idioms, evaluated in order.
// Literal-argument patterns capture dotted names so that schema-qualified
// spellings reduce to the same canonical name. Patterns keyed on the stp
// prefix keep it inside the capture, so every pattern matching one call site
// hands CanonicalProcedure the same spelling whatever its case.
var DefaultPatterns = []Pattern{
	pattern("run-stored-procedure-stp", `system\.db\.runStoredProcedure\(["']((?:stp\.|stp_)\w+)`, 1),
	pattern("run-prep-stmt-exec", `system\.db\.runPrepStmt\(["']EXEC\s+((?:stp\.|stp_)\w+)`, 1),
	pattern("run-query-exec", `system\.db\.runQuery\(["']EXEC\s+((?:stp\.|stp_)\w+)`, 1),
	pattern("exec", `\bEXEC(?:UTE)?\s+((?:stp\.|stp_)\w+)`, 1),
	pattern("exec-schema", `\bEXEC(?:UTE)?\s+\w+\.((?:stp\.|stp_)\w+)`, 1),
	pattern("quoted-literal", `["']((?:stp\.|stp_)\w+)["']`, 1),
	pattern("create-sproc-call", `system\.db\.createSProcCall\(["'](?:[\w.]+\.)?(\w+)`, 1),
	pattern("mes-sp", `mes\.[\w.]+\.sp\.(\w+)\(`, 1),
	pattern("mes-stp", `mes\.[\w.]+\.stp\.(\w+)\(`, 1),
	pattern("mes-sproc", `mes\.[\w.]+\.sproc\.(\w+)\(`, 1),
	pattern("sp-namespace", `\bsp\.(\w+)\(`, 1),
	pattern("stp-namespace", `\bstp\.(\w+)\(`, 1),
	pattern("sproc-namespace", `\bsproc\.(\w+)\(`, 1),
	pattern("run-procedure", `system\.db\.runProcedure\(["']([\w.]+)`, 1),
	pattern("run-stored-procedure", `system\.db\.runStoredProcedure\(["']([\w.]+)`, 1),
	pattern("call-procedure", `\.callProcedure\(["']([\w.]+)`, 1),
	pattern("stored-procedure", `\.storedProcedure\(["']([\w.]+)`, 1),
}

// Compile builds a Pattern from configuration. The expression is matched
// case-insensitively and must have a capture group at index group.
func Compile(name, expr string, group int) (Pattern, error) {
	re, err := regexp.Compile(`(?i)` + expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern %q: %w", name, err)
	}
	if group < 1 || group > re.NumSubexp() {
		return Pattern{}, fmt.Errorf("pattern %q: group %d out of range (expression has %d)", name, group, re.NumSubexp())
	}
	return Pattern{Name: name, Expr: re, Group: group}, nil
}

// Recognizer extracts canonical procedure names using a fixed pattern table.
// It is safe for concurrent use.
type Recognizer struct {
	patterns []Pattern
}

// New returns a Recognizer evaluating patterns in order.
func New(patterns ...Pattern) *Recognizer {
	return &Recognizer{patterns: append([]Pattern(nil), patterns...)}
}

// Default recognizes the built-in idioms.
var Default = New(DefaultPatterns...)

// With returns a Recognizer that evaluates extra after the receiver's patterns.
func (r *Recognizer) With(extra ...Pattern) *Recognizer {
	return New(append(append([]Pattern(nil), r.patterns...), extra...)...)
}

// Patterns returns a copy of the pattern table.
func (r *Recognizer) Patterns() []Pattern {
	return append([]Pattern(nil), r.patterns...)
}

// Procedures returns the distinct canonical procedure names referenced in
// body, sorted. Every pattern is applied to the whole text, so statements
// spanning several lines are matched and overlapping matches collapse.
func (r *Recognizer) Procedures(body string) []string {
	found := make(map[string]struct{})
	for _, p := range r.patterns {
		for _, m := range p.Expr.FindAllStringSubmatch(body, -1) {
			if p.Group >= len(m) || m[p.Group] == "" {
				continue
			}
			found[model.CanonicalProcedure(m[p.Group])] = struct{}{}
		}
	}

	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
