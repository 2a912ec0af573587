// Package frontmatter separates a leading YAML block from a Markdown body.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// Parts is the result of splitting a document.
type Parts struct {
	Frontmatter []byte // raw YAML without delimiters; nil when absent
	Body        []byte
	Had         bool
	// BodyLine is the 1-based line of the original content on which Body starts.
	BodyLine int
}

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Split separates YAML frontmatter (`---` delimited) from the Markdown body.
// Documents without a leading delimiter are returned whole as the body.
func Split(content []byte) (Parts, error) {
	nl := detectNewline(content)
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return Parts{Body: content, BodyLine: 1}, nil
	}

	start := len(open)
	if bytes.HasPrefix(content[start:], open) {
		return Parts{Frontmatter: []byte{}, Body: content[start+len(open):], Had: true, BodyLine: 3}, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(content[start:], closeSeq)
	if idx < 0 {
		return Parts{Body: content, BodyLine: 1}, ErrMissingClosingDelimiter
	}

	fm := content[start : start+idx+len(nl)]
	return Parts{
		Frontmatter: fm,
		Body:        content[start+idx+len(closeSeq):],
		Had:         true,
		BodyLine:    bytes.Count(fm, []byte("\n")) + 3,
	}, nil
}

// ParseYAML parses raw YAML frontmatter (without --- delimiters) into a map.
func ParseYAML(frontmatter []byte) (map[string]any, error) {
	if len(frontmatter) == 0 {
		return map[string]any{}, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(frontmatter, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
