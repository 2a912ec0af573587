package parser

import (
	"strings"
	"unicode/utf8"
)

const adornmentChars = "=-~^\"'*+#<>"

// parseRST walks the document line by line. Titles are recognised by their
// adornment; explicit markup (".. ") introduces labels, directives and
// comments; paragraphs ending in "::" introduce literal blocks.
func parseRST(s *docState, text string) {
	lines := strings.Split(text, "\n")
	levels := map[string]int{}
	literalPending, literalIndent := -1, -1

	for i := 0; i < len(lines); {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		ind := indentOf(line)

		if literalIndent >= 0 {
			if trimmed == "" || ind > literalIndent {
				i++
				continue
			}
			literalIndent = -1
		}
		if trimmed == "" {
			i++
			continue
		}
		if literalPending >= 0 {
			if ind > literalPending {
				literalIndent = literalPending
				literalPending = -1
				i++
				continue
			}
			literalPending = -1
		}

		if trimmed == ".." || strings.HasPrefix(trimmed, ".. ") {
			i = s.rstExplicit(lines, i, ind)
			continue
		}

		if level, title, textLine, next, ok := rstTitle(lines, i, levels); ok {
			s.heading(level, title, textLine)
			s.scan(textLine, lines[textLine-1])
			i = next
			continue
		}

		s.content()
		s.scan(i+1, line)
		if strings.HasSuffix(trimmed, "::") {
			literalPending = ind
		}
		i++
	}
}

// rstExplicit handles one explicit markup block starting at lines[i] and
// returns the index of the first line after what it consumed.
func (s *docState) rstExplicit(lines []string, i, ind int) int {
	body := strings.TrimSpace(strings.TrimSpace(lines[i])[2:])
	blockEnd := blockEnd(lines, i+1, ind)

	// .. _label:
	if strings.HasPrefix(body, "_") && strings.HasSuffix(body, ":") && body != "__:" {
		name := strings.Trim(body[1:len(body)-1], "`")
		s.label(name, i+1, ind+1)
		return i + 1
	}
	if strings.HasPrefix(body, "_") {
		// External hyperlink target (.. _name: https://...) or anonymous target.
		return blockEnd
	}

	sep := strings.Index(body, "::")
	if sep <= 0 || !isDirectiveName(body[:sep]) {
		// Comment or substitution definition; its block is skipped.
		return blockEnd
	}

	d := &directive{
		Name:   strings.ToLower(body[:sep]),
		Arg:    strings.TrimSpace(body[sep+2:]),
		Line:   i + 1,
		Column: ind + 1,
	}
	if !literalDirectives[d.Name] {
		s.scan(i+1, lines[i])
	}
	j := i + 1
	for ; j < blockEnd; j++ {
		name, value, ok := parseOption(lines[j])
		if !ok || strings.TrimSpace(lines[j]) == "" {
			break
		}
		d.Options = append(d.Options, option{Name: strings.ToLower(name), Value: value, Line: j + 1})
	}
	s.content()
	s.record(d, j < blockEnd)

	if !s.p.consumesContent(d.Name) {
		for _, o := range d.Options {
			s.scan(o.Line, lines[o.Line-1])
		}
		s.directive(d)
		return j
	}

	for k := j; k < blockEnd; k++ {
		d.Content = append(d.Content, contentLine{No: k + 1, Text: lines[k]})
	}
	if !literalDirectives[d.Name] {
		for _, o := range d.Options {
			s.scan(o.Line, lines[o.Line-1])
		}
		s.directive(d)
	}
	return blockEnd
}

// blockEnd returns the index after the indented block that starts at from
// and belongs to a construct at indentation ind. Trailing blank lines are
// left out.
func blockEnd(lines []string, from, ind int) int {
	end := from
	for k := from; k < len(lines); k++ {
		if strings.TrimSpace(lines[k]) == "" {
			continue
		}
		if indentOf(lines[k]) <= ind {
			break
		}
		end = k + 1
	}
	return end
}

func isDirectiveName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == ':' || r == '.':
		default:
			return false
		}
	}
	return true
}

// rstTitle recognises an over- and underlined or an underlined title at
// lines[i]. Levels are assigned in the order adornment styles are first seen.
func rstTitle(lines []string, i int, levels map[string]int) (level int, title string, textLine, next int, ok bool) {
	if c, ok := adornment(lines[i]); ok && i+2 < len(lines) {
		text := strings.TrimSpace(lines[i+1])
		if c2, ok2 := adornment(lines[i+2]); ok2 && c2 == c && text != "" {
			return levelFor(levels, "o"+string(c)), text, i + 2, i + 3, true
		}
	}

	if indentOf(lines[i]) > 0 || i+1 >= len(lines) {
		return 0, "", 0, 0, false
	}
	if _, isAdorn := adornment(lines[i]); isAdorn {
		return 0, "", 0, 0, false
	}
	c, ok := adornment(lines[i+1])
	text := strings.TrimSpace(lines[i])
	if !ok || utf8.RuneCountInString(strings.TrimSpace(lines[i+1])) < utf8.RuneCountInString(text) {
		return 0, "", 0, 0, false
	}
	return levelFor(levels, "u"+string(c)), text, i + 1, i + 2, true
}

func levelFor(levels map[string]int, key string) int {
	if l, ok := levels[key]; ok {
		return l
	}
	levels[key] = len(levels) + 1
	return levels[key]
}

// adornment reports whether line is an unindented run of one adornment character.
func adornment(line string) (rune, bool) {
	line = strings.TrimRight(line, " \t")
	if len(line) < 2 || indentOf(line) > 0 {
		return 0, false
	}
	c := rune(line[0])
	if !strings.ContainsRune(adornmentChars, c) {
		return 0, false
	}
	for _, r := range line {
		if r != c {
			return 0, false
		}
	}
	return c, true
}
