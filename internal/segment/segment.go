// Package segment splits indentation-structured source text into named
// function spans without parsing the language.
//
// A span starts at a definition line and runs until the first non-blank line
// indented at or below the definition. A nested definition closes the
// enclosing span, so nested functions are reported as siblings. Decorator
// lines above a definition are not part of any span, and indentation is
// measured in characters, so mixed tabs and spaces are not normalized.
package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/phobologic/sprocmap/internal/model"
)

const docstringDelim = `"""`

type state int

const (
	outside state = iota // no function open
	header               // consuming blank and docstring lines after a signature
	body                 // inside the function body
)

// Segmenter splits source text on definitions introduced by one keyword.
type Segmenter struct {
	definition *regexp.Regexp
}

// New returns a Segmenter for the given definition keyword, e.g. "def".
func New(keyword string) *Segmenter {
	pattern := fmt.Sprintf(`^\s*%s\s+([A-Za-z_][A-Za-z0-9_]*)`, regexp.QuoteMeta(keyword))
	return &Segmenter{definition: regexp.MustCompile(pattern)}
}

// Split returns the function spans of src in order of first definition.
// When a name is defined more than once the last body wins, keeping the
// position of the first occurrence.
func (s *Segmenter) Split(src string) []model.FunctionSpan {
	sc := &scanner{
		seg:   s,
		lines: strings.Split(src, "\n"),
		index: make(map[string]int),
	}
	sc.run()
	return sc.spans
}

type scanner struct {
	seg   *Segmenter
	lines []string
	pos   int
	state state

	name   string
	indent int
	buf    []string

	spans []model.FunctionSpan
	index map[string]int
}

func (sc *scanner) run() {
	for sc.pos < len(sc.lines) {
		line := sc.lines[sc.pos]

		switch sc.state {
		case outside:
			if name, ok := sc.seg.match(line); ok {
				sc.open(name, line)
			}
			sc.pos++

		case header:
			trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
			switch {
			case isBlank(line):
				sc.buf = append(sc.buf, line)
				sc.pos++
			case strings.HasPrefix(trimmed, docstringDelim):
				sc.docstring(trimmed)
			default:
				// Re-evaluate this line as the first body line.
				sc.state = body
			}

		case body:
			if name, ok := sc.seg.match(line); ok {
				sc.close()
				sc.open(name, line)
				sc.pos++
				continue
			}
			if isBlank(line) || indentOf(line) > sc.indent {
				sc.buf = append(sc.buf, line)
				sc.pos++
				continue
			}
			// Boundary line: close without consuming it.
			sc.close()
		}
	}

	if sc.state != outside {
		sc.close()
	}
}

// docstring consumes a docstring starting at the current line. A docstring
// whose opening line has no closing delimiter runs until the first line
// containing one, inclusive.
func (sc *scanner) docstring(trimmed string) {
	sc.buf = append(sc.buf, sc.lines[sc.pos])
	sc.pos++
	if strings.Contains(trimmed[len(docstringDelim):], docstringDelim) {
		return
	}
	for sc.pos < len(sc.lines) {
		line := sc.lines[sc.pos]
		sc.buf = append(sc.buf, line)
		sc.pos++
		if strings.Contains(line, docstringDelim) {
			return
		}
	}
}

func (sc *scanner) open(name, signature string) {
	sc.name = name
	sc.indent = indentOf(signature)
	sc.buf = []string{signature}
	sc.state = header
}

func (sc *scanner) close() {
	span := model.FunctionSpan{Name: sc.name, Body: strings.Join(sc.buf, "\n")}
	if i, ok := sc.index[sc.name]; ok {
		sc.spans[i] = span
	} else {
		sc.index[sc.name] = len(sc.spans)
		sc.spans = append(sc.spans, span)
	}
	sc.name = ""
	sc.buf = nil
	sc.state = outside
}

func (s *Segmenter) match(line string) (string, bool) {
	m := s.definition.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeftFunc(line, unicode.IsSpace))
}
