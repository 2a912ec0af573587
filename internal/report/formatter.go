package report

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docverify/internal/foundation/normalization"
	"git.home.luguber.info/inful/docverify/internal/source"
)

// Formatter writes a report.
type Formatter interface {
	Format(w io.Writer, r *Report) error
}

// OutputFormat selects a Formatter.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

var outputNormalizer = normalization.NewNormalizer("output format", map[string]OutputFormat{
	"text":  OutputText,
	"human": OutputText,
	"json":  OutputJSON,
}, OutputText)

// NewFormatter returns the formatter for name ("text" or "json").
func NewFormatter(name string) (Formatter, error) {
	f, err := outputNormalizer.Parse(name)
	if err != nil {
		return nil, err
	}
	if f == OutputJSON {
		return NewJSONFormatter(), nil
	}
	return NewTextFormatter(), nil
}

// TextFormatter formats reports as human-readable text, one issue per
// block in report order.
type TextFormatter struct{}

// NewTextFormatter creates a text formatter.
func NewTextFormatter() *TextFormatter { return &TextFormatter{} }

// Format outputs the report in human-readable text format.
func (f *TextFormatter) Format(w io.Writer, r *Report) error {
	p := &printer{w: w}
	p.printf("docverify build %s\n", r.BuildID)
	p.println(strings.Repeat("━", 60))

	for _, issue := range r.Issues {
		f.formatIssue(p, issue)
	}
	if len(r.Issues) > 0 {
		p.println(strings.Repeat("━", 60))
	}

	s := r.Stats
	p.println("Results:")
	p.printf("  %d document%s (%d from cache)\n", s.Documents, pluralize(s.Documents), s.CacheHits)
	p.printf("  %d reference%s: %d resolved, %d broken, %d external, %d unknown role%s\n",
		s.References, pluralize(s.References), s.Resolved, s.Broken, s.External, s.UnknownRoles, pluralize(s.UnknownRoles))
	for _, d := range slices.Sorted(maps.Keys(s.ReferencesByDomain)) {
		c := s.ReferencesByDomain[d]
		p.printf("    %s: %d resolved, %d broken\n", d, c.Resolved, c.Broken)
	}
	p.printf("  %d item%s, %d constraint check%s failed\n", s.Items, pluralize(s.Items), s.RulesFailed, pluralize(s.RulesFailed))
	c := r.Counts
	p.printf("  %d critical, %d error%s, %d warning%s, %d info\n",
		c.Critical, c.Error, pluralize(c.Error), c.Warning, pluralize(c.Warning), c.Info)
	p.println()

	switch {
	case r.Incomplete:
		p.println("✗ Build was interrupted; the report is incomplete.")
	case r.Passed():
		p.printf("✓ Passed (failing at %s and above)\n", strings.ToLower(r.Threshold.String()))
	case r.Forced && c.AtLeast(r.Threshold) == 0:
		p.println("✗ Failed: a constraint with fail_build did not hold.")
	default:
		p.printf("✗ Failed: %d issue%s at %s or above\n",
			c.AtLeast(r.Threshold), pluralize(c.AtLeast(r.Threshold)), strings.ToLower(r.Threshold.String()))
	}
	return p.err
}

func (f *TextFormatter) formatIssue(p *printer, issue Issue) {
	p.printf("%s %s: %s [%s]\n", icon(issue.Severity), issue.Location, issue.Message, issue.Code)
	if len(issue.Suggestions) > 0 {
		p.printf("  did you mean: %s\n", strings.Join(issue.Suggestions, ", "))
	}
	for _, rel := range issue.Related {
		p.printf("  see also: %s\n", rel)
	}
}

func icon(s Severity) string {
	switch s {
	case SeverityCritical:
		return "‼"
	case SeverityError:
		return "✗"
	case SeverityWarning:
		return "⚠"
	default:
		return "ℹ"
	}
}

// printer remembers the first write error so formatting code stays linear.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err == nil {
		_, p.err = fmt.Fprintf(p.w, format, args...)
	}
}

func (p *printer) println(args ...any) {
	if p.err == nil {
		_, p.err = fmt.Fprintln(p.w, args...)
	}
}

// JSONFormatter formats reports as indented JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter() *JSONFormatter { return &JSONFormatter{} }

// JSONOutput is the JSON document written by JSONFormatter.
type JSONOutput struct {
	*Report
	Passed bool        `json:"passed"`
	Issues []JSONIssue `json:"issues"`
}

// JSONIssue is an issue with its location flattened for tooling.
type JSONIssue struct {
	Issue
	Position string   `json:"position"`
	See      []string `json:"see_also,omitempty"`
}

// Format outputs the report as JSON.
func (f *JSONFormatter) Format(w io.Writer, r *Report) error {
	out := JSONOutput{Report: r, Passed: r.Passed(), Issues: make([]JSONIssue, 0, len(r.Issues))}
	for _, issue := range r.Issues {
		out.Issues = append(out.Issues, JSONIssue{
			Issue:    issue,
			Position: issue.Location.String(),
			See:      locations(issue.Related),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func locations(locs []source.Location) []string {
	if len(locs) == 0 {
		return nil
	}
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.String()
	}
	return out
}

func pluralize(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
