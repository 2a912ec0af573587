// Package parser turns the raw text of one reStructuredText or Markdown file
// into a Document: title, headings, toctree entries, cross-reference tokens,
// declared objects and content items. Parsing is a pure function of the file.
package parser

import (
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
	"git.home.luguber.info/inful/docverify/internal/refparse"
	"git.home.luguber.info/inful/docverify/internal/source"
	"git.home.luguber.info/inful/docverify/internal/util/sets"
)

// Options configures which directives declare content items.
type Options struct {
	NeedDirectives []string // directive names that declare content items ("req", "spec", ...)
	RelationFields []string // item options holding ids of related items ("links", ...)
}

// Parser parses source files. It is safe for concurrent use.
type Parser struct {
	needs     sets.Set[string]
	relations sets.Set[string]
}

// New creates a parser.
func New(opts Options) *Parser {
	return &Parser{
		needs:     sets.New(opts.NeedDirectives...),
		relations: sets.New(opts.RelationFields...),
	}
}

// Parse builds the Document for f. Markdown is chosen by extension
// (.md, .markdown); everything else is read as reStructuredText. Content is
// NFC-normalised first. An error is returned only when the file cannot be
// parsed at all; recoverable problems are recorded as Document warnings.
func (p *Parser) Parse(f source.File) (*Document, error) {
	if !utf8.Valid(f.Content) {
		return nil, derrors.ParseError("content is not valid UTF-8").WithContext("path", f.Path).Build()
	}
	text := norm.NFC.String(string(f.Content))
	text = strings.ReplaceAll(text, "\r\n", "\n")

	markdown := isMarkdown(f.Path)
	s := newDocState(p, f, markdown)
	if markdown {
		parseMarkdown(s, text)
	} else {
		parseRST(s, text)
	}
	return s.finish(), nil
}

// docState accumulates the parts of one Document.
type docState struct {
	p       *Parser
	doc     *Document
	refs    *refparse.Extractor
	module  string // current Python module prefix
	class   string // qualified name of the last declared class
	pending []int  // indexes into doc.Labels waiting for a heading
}

func isMarkdown(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

func newDocState(p *Parser, f source.File, markdown bool) *docState {
	id := f.DocID()
	refs := refparse.NewExtractor(id, f.Path)
	if markdown {
		refs = refparse.NewMarkdownExtractor(id, f.Path)
	}
	return &docState{
		p: p,
		doc: &Document{
			ID:          id,
			Path:        f.Path,
			SourceBytes: int64(len(f.Content)),
		},
		refs: refs,
	}
}

func (s *docState) loc(line, column int) source.Location {
	return source.Location{Path: s.doc.Path, Line: line, Column: column}
}

func (s *docState) warn(line int, msg string) {
	s.doc.Warnings = append(s.doc.Warnings, source.Warning{Location: s.loc(line, 0), Message: msg})
}

func (s *docState) scan(line int, text string) {
	s.refs.ScanLine(line, text)
}

func (s *docState) heading(level int, title string, line int) {
	title = strings.TrimSpace(title)
	s.doc.Headings = append(s.doc.Headings, Heading{Level: level, Title: title, Line: line})
	if s.doc.Title == "" {
		s.doc.Title = title
	}
	for _, i := range s.pending {
		s.doc.Labels[i].Title = title
	}
	s.pending = s.pending[:0]
}

// label declares an explicit target. It binds to the next heading unless
// other content intervenes.
func (s *docState) label(name string, line, column int) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	s.doc.Labels = append(s.doc.Labels, Label{Name: name, Location: s.loc(line, column)})
	s.pending = append(s.pending, len(s.doc.Labels)-1)
	s.object("std", "label", strings.ToLower(name), line, column)
}

// content marks that a non-heading block was seen.
func (s *docState) content() {
	s.pending = s.pending[:0]
}

func (s *docState) object(domain, typ, name string, line, column int) {
	if name == "" {
		return
	}
	s.doc.Objects = append(s.doc.Objects, Object{
		Domain:   domain,
		Type:     typ,
		Name:     name,
		Location: s.loc(line, column),
	})
}

func (s *docState) finish() *Document {
	s.doc.References = s.refs.References()
	s.doc.Warnings = append(s.doc.Warnings, s.refs.Warnings()...)
	source.SortWarnings(s.doc.Warnings)
	return s.doc
}
