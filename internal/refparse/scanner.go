package refparse

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/docverify/internal/source"
)

// Extractor accumulates references and warnings for one document. Callers
// feed it line by line so literal blocks can be skipped upstream.
type Extractor struct {
	docID     string
	path      string
	codeSpans bool // single backticks open literal code spans
	refs      []Reference
	warnings  []source.Warning
}

// NewExtractor creates an extractor for the reStructuredText document docID
// stored at path.
func NewExtractor(docID, path string) *Extractor {
	return &Extractor{docID: docID, path: path}
}

// NewMarkdownExtractor creates an extractor for a Markdown document. Code
// spans (`...`, ``...``) are literal text and never contain references.
func NewMarkdownExtractor(docID, path string) *Extractor {
	return &Extractor{docID: docID, path: path, codeSpans: true}
}

// Extract scans every line of text.
func Extract(docID, path, text string) ([]Reference, []source.Warning) {
	e := NewExtractor(docID, path)
	for i, line := range strings.Split(text, "\n") {
		e.ScanLine(i+1, line)
	}
	return e.References(), e.Warnings()
}

// References returns the tokens found so far in source order.
func (e *Extractor) References() []Reference { return e.refs }

// Warnings returns malformed-token warnings found so far.
func (e *Extractor) Warnings() []source.Warning { return e.warnings }

// ScanLine extracts every token on one line. Inline literals (``...``) are
// skipped, and so are Markdown code spans. An unterminated body ends the scan
// of the line with a warning.
func (e *Extractor) ScanLine(lineNo int, line string) {
	if !strings.ContainsRune(line, ':') {
		return
	}
	rs := []rune(strings.TrimRight(line, "\r"))

	for i := 0; i < len(rs); {
		if rs[i] == '`' && e.codeSpans {
			i = skipCodeSpan(rs, i)
			continue
		}
		if rs[i] == '`' && i+1 < len(rs) && rs[i+1] == '`' {
			i = skipInlineLiteral(rs, i)
			continue
		}
		if rs[i] != ':' || (i > 0 && rs[i-1] == '\\') {
			i++
			continue
		}

		role, bodyStart, ok := scanRole(rs, i)
		if !ok {
			i++
			continue
		}

		end := indexRune(rs, bodyStart, '`')
		if end < 0 {
			e.warn(lineNo, i+1, fmt.Sprintf("unterminated cross-reference :%s:", role))
			return
		}

		target, display := splitBody(string(rs[bodyStart:end]))
		if target == "" {
			e.warn(lineNo, i+1, fmt.Sprintf("empty cross-reference target :%s:", role))
			i = end + 1
			continue
		}
		e.refs = append(e.refs, Reference{
			Role:     role,
			Target:   target,
			Display:  display,
			DocID:    e.docID,
			Path:     e.path,
			Line:     lineNo,
			Column:   i + 1,
			External: IsExternal(target),
		})
		i = end + 1
	}
}

func (e *Extractor) warn(line, column int, msg string) {
	e.warnings = append(e.warnings, source.Warning{
		Location: source.Location{Path: e.path, Line: line, Column: column},
		Message:  msg,
	})
}

// scanRole matches ":name(:name)*:`" starting at rs[i] == ':' and returns the
// role and the index of the first rune of the backtick body.
func scanRole(rs []rune, i int) (string, int, bool) {
	j := i + 1
	var parts []string
	for {
		start := j
		if j >= len(rs) || !isLetter(rs[j]) {
			return "", 0, false
		}
		for j < len(rs) && isRoleRune(rs[j]) {
			j++
		}
		parts = append(parts, string(rs[start:j]))
		if j >= len(rs) || rs[j] != ':' {
			return "", 0, false
		}
		j++
		if j < len(rs) && rs[j] == '`' {
			// A second backtick would start an inline literal, not a body.
			if j+1 < len(rs) && rs[j+1] == '`' {
				return "", 0, false
			}
			return strings.Join(parts, ":"), j + 1, true
		}
	}
}

// splitBody parses "target" or "display text <target>". Sphinx modifiers
// '~' and '!' are removed from the target.
func splitBody(body string) (target, display string) {
	body = strings.TrimSpace(body)
	if strings.HasSuffix(body, ">") {
		if lt := strings.LastIndexByte(body, '<'); lt >= 0 {
			inner := strings.TrimSpace(body[lt+1 : len(body)-1])
			text := strings.TrimSpace(body[:lt])
			if inner != "" && text != "" {
				return strings.TrimLeft(inner, "~!"), text
			}
		}
	}
	return strings.TrimLeft(body, "~!"), ""
}

func skipInlineLiteral(rs []rune, i int) int {
	for j := i + 2; j+1 < len(rs); j++ {
		if rs[j] == '`' && rs[j+1] == '`' {
			return j + 2
		}
	}
	// Unclosed literal: skip the opening marker only.
	return i + 2
}

// skipCodeSpan skips the Markdown code span opened by the backtick run at
// rs[i]. The span ends at the next run of the same length; without one the
// opening run is plain text.
func skipCodeSpan(rs []rune, i int) int {
	n := backtickRun(rs, i)
	for j := i + n; j < len(rs); {
		if rs[j] != '`' {
			j++
			continue
		}
		m := backtickRun(rs, j)
		if m == n {
			return j + m
		}
		j += m
	}
	return i + n
}

func backtickRun(rs []rune, i int) int {
	n := 0
	for i+n < len(rs) && rs[i+n] == '`' {
		n++
	}
	return n
}

func indexRune(rs []rune, from int, r rune) int {
	for j := from; j < len(rs); j++ {
		if rs[j] == r {
			return j
		}
	}
	return -1
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isRoleRune(r rune) bool {
	return isLetter(r) || (r >= '0' && r <= '9') || r == '_' || r == '-'
}
