package parser

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docverify/internal/frontmatter"
)

type mdHeading struct {
	Level int
	Title string
}

// parseMarkdown handles CommonMark plus the MyST conventions used for
// documentation: "(label)=" targets and ```{directive} fenced directives.
// Headings and indented code blocks come from goldmark; fences are read
// line by line so directive bodies can be parsed.
func parseMarkdown(s *docState, text string) {
	parts, err := frontmatter.Split([]byte(text))
	if err != nil {
		s.warn(1, err.Error())
	}
	var fmTitle string
	if parts.Had {
		fmTitle = s.frontmatter(parts.Frontmatter)
	}

	body := parts.Body
	offset := parts.BodyLine - 1
	headings, codeLines := markdownStructure(body)
	lines := strings.Split(string(body), "\n")

	for i := 0; i < len(lines); {
		no := i + 1 + offset
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if marker, info, ok := openFence(trimmed); ok {
			end := closeFence(lines, i+1, marker)
			if name, arg, ok := mystDirective(info); ok {
				s.mdDirective(name, arg, line, lines[i+1:end], no)
			}
			i = end + 1
			continue
		}
		if codeLines[i+1] {
			i++
			continue
		}
		if h, ok := headings[i+1]; ok {
			s.heading(h.Level, h.Title, no)
			s.scan(no, line)
			i++
			continue
		}
		if strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")=") {
			s.label(trimmed[1:len(trimmed)-2], no, indentOf(line)+1)
			i++
			continue
		}
		if trimmed != "" {
			s.content()
			s.scan(no, line)
		}
		i++
	}

	if s.doc.Title == "" {
		s.doc.Title = fmTitle
	}
}

// markdownStructure returns headings keyed by 1-based body line and the set
// of lines inside indented code blocks.
func markdownStructure(body []byte) (map[int]mdHeading, map[int]bool) {
	headings := map[int]mdHeading{}
	code := map[int]bool{}
	root := goldmark.New().Parser().Parse(text.NewReader(body))

	lineOf := func(offset int) int { return bytes.Count(body[:offset], []byte("\n")) + 1 }

	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			if node.Lines().Len() > 0 {
				headings[lineOf(node.Lines().At(0).Start)] = mdHeading{Level: node.Level, Title: nodeText(node, body)}
			}
			return gmast.WalkSkipChildren, nil
		case *gmast.CodeBlock:
			for i := 0; i < node.Lines().Len(); i++ {
				code[lineOf(node.Lines().At(i).Start)] = true
			}
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})
	return headings, code
}

func nodeText(n gmast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *gmast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.Write(t.Value)
		default:
			b.WriteString(nodeText(c, src))
		}
	}
	return strings.TrimSpace(b.String())
}

// openFence matches ``` or ~~~ (three or more) and returns the marker and info string.
func openFence(trimmed string) (marker, info string, ok bool) {
	for _, c := range []byte{'`', '~'} {
		n := 0
		for n < len(trimmed) && trimmed[n] == c {
			n++
		}
		if n >= 3 {
			return trimmed[:n], strings.TrimSpace(trimmed[n:]), true
		}
	}
	return "", "", false
}

// closeFence returns the index of the closing fence line, or len(lines).
func closeFence(lines []string, from int, marker string) int {
	for k := from; k < len(lines); k++ {
		t := strings.TrimSpace(lines[k])
		if strings.HasPrefix(t, marker) && strings.Trim(t, marker[:1]) == "" {
			return k
		}
	}
	return len(lines)
}

// mystDirective parses an info string of the form "{name} argument".
func mystDirective(info string) (name, arg string, ok bool) {
	if !strings.HasPrefix(info, "{") {
		return "", "", false
	}
	end := strings.IndexByte(info, '}')
	if end <= 1 || !isDirectiveName(info[1:end]) {
		return "", "", false
	}
	return strings.ToLower(info[1:end]), strings.TrimSpace(info[end+1:]), true
}

// mdDirective parses the body of a fenced directive: an optional YAML block
// between "---" lines or leading ":name: value" lines, then content.
func (s *docState) mdDirective(name, arg, fence string, block []string, fenceLine int) {
	d := &directive{Name: name, Arg: arg, Line: fenceLine, Column: indentOf(fence) + 1}
	if !literalDirectives[name] {
		// Only the argument after "{name}" is prose; the fence itself is not.
		s.scan(fenceLine, blankPrefix(fence, strings.IndexByte(fence, '}')+1))
	}
	first := fenceLine + 1
	j := 0

	if len(block) > 0 && strings.TrimSpace(block[0]) == "---" {
		end := 1
		for end < len(block) && strings.TrimSpace(block[end]) != "---" {
			end++
		}
		var opts map[string]any
		if err := yaml.Unmarshal([]byte(strings.Join(block[1:end], "\n")), &opts); err != nil {
			s.warn(fenceLine, fmt.Sprintf("invalid %s options: %v", name, err))
		}
		for _, k := range sortedKeys(opts) {
			d.Options = append(d.Options, option{Name: strings.ToLower(k), Value: stringify(opts[k]), Line: first})
		}
		j = min(end+1, len(block))
	} else {
		for ; j < len(block); j++ {
			oname, value, ok := parseOption(block[j])
			if !ok {
				break
			}
			d.Options = append(d.Options, option{Name: strings.ToLower(oname), Value: value, Line: first + j})
			s.scan(first+j, block[j])
		}
	}
	for k := j; k < len(block); k++ {
		d.Content = append(d.Content, contentLine{No: first + k, Text: block[k]})
	}

	s.content()
	s.record(d, slices.ContainsFunc(d.Content, func(cl contentLine) bool {
		return strings.TrimSpace(cl.Text) != ""
	}))
	if literalDirectives[name] {
		return
	}
	s.directive(d)
	if !s.p.consumesContent(name) {
		for _, cl := range d.Content {
			s.scan(cl.No, cl.Text)
		}
	}
}

// blankPrefix replaces the first n bytes of line with spaces, one per rune,
// so columns of the remaining text are unchanged.
func blankPrefix(line string, n int) string {
	return strings.Repeat(" ", utf8.RuneCountInString(line[:n])) + line[n:]
}

// frontmatter reads `needs:` items and returns the `title` field, if any.
func (s *docState) frontmatter(fm []byte) string {
	var root yaml.Node
	if err := yaml.Unmarshal(fm, &root); err != nil {
		s.warn(1, "invalid frontmatter: "+err.Error())
		return ""
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return ""
	}

	var title string
	m := root.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i], m.Content[i+1]
		switch key.Value {
		case "title":
			title = val.Value
		case "needs":
			if val.Kind != yaml.SequenceNode {
				s.warn(key.Line+1, "frontmatter needs must be a list")
				continue
			}
			for _, n := range val.Content {
				s.frontmatterNeed(n)
			}
		}
	}
	return title
}

func (s *docState) frontmatterNeed(n *yaml.Node) {
	line := n.Line + 1 // frontmatter starts on line 2
	var fields map[string]any
	if err := n.Decode(&fields); err != nil {
		s.warn(line, "invalid need in frontmatter: "+err.Error())
		return
	}
	id := strings.TrimSpace(stringify(fields["id"]))
	if id == "" {
		s.warn(line, "need in frontmatter without id is ignored")
		return
	}

	item := ContentItem{
		ID:       id,
		Type:     "need",
		Fields:   map[string]any{},
		Location: s.loc(line, n.Column),
	}
	if t := stringify(fields["type"]); t != "" {
		item.Type = t
	}
	item.Title = stringify(fields["title"])
	for _, k := range sortedKeys(fields) {
		switch k {
		case "id", "type":
			continue
		}
		s.setFieldValue(&item, k, fields[k])
	}
	s.finishItem(&item)
}

// setFieldValue stores a YAML-decoded value, keeping its native type.
func (s *docState) setFieldValue(item *ContentItem, name string, v any) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch val := v.(type) {
	case []any:
		list := make([]string, 0, len(val))
		for _, e := range val {
			list = append(list, stringify(e))
		}
		s.setList(item, name, list)
	case string:
		if s.isListField(name) {
			s.setList(item, name, splitList(val))
			return
		}
		item.Fields[name] = val
	case int:
		item.Fields[name] = int64(val)
	case float64, bool:
		item.Fields[name] = val
	default:
		s.setField(item, name, stringify(val))
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, stringify(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
