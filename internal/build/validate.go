package build

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/docverify/internal/directive"
	"git.home.luguber.info/inful/docverify/internal/domain"
	"git.home.luguber.info/inful/docverify/internal/logfields"
	"git.home.luguber.info/inful/docverify/internal/observability"
	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/report"
	"git.home.luguber.info/inful/docverify/internal/source"
	"git.home.luguber.info/inful/docverify/internal/util/sets"
)

// collectItems gathers the content items of docs in corpus order.
func collectItems(docs []*parser.Document) []parser.ContentItem {
	var items []parser.ContentItem
	for _, doc := range docs {
		items = append(items, doc.Items...)
	}
	slices.SortStableFunc(items, func(a, b parser.ContentItem) int {
		return a.Location.Compare(b.Location)
	})
	return items
}

func duplicateObjectIssues(dups []domain.Duplicate) []report.Issue {
	out := make([]report.Issue, 0, len(dups))
	for _, d := range dups {
		out = append(out, report.Issue{
			Code:     report.CodeDuplicateObject,
			Severity: report.SeverityWarning,
			Location: d.Object.Location,
			Message: fmt.Sprintf("duplicate %s:%s %q, first declared at %s",
				d.Object.Domain, d.Object.Type, d.Object.Name, d.First.Location),
			Related: []source.Location{d.First.Location},
		})
	}
	return out
}

// duplicateIDIssues reports one critical issue per content item id that is
// declared more than once, at its second declaration. items must be in
// corpus order.
func duplicateIDIssues(items []parser.ContentItem) []report.Issue {
	byID := make(map[string][]source.Location)
	var order []string
	for _, it := range items {
		if _, ok := byID[it.ID]; !ok {
			order = append(order, it.ID)
		}
		byID[it.ID] = append(byID[it.ID], it.Location)
	}

	var out []report.Issue
	for _, id := range order {
		locs := byID[id]
		if len(locs) < 2 {
			continue
		}
		related := append([]source.Location{locs[0]}, locs[2:]...)
		out = append(out, report.Issue{
			Code:     report.CodeDuplicateID,
			Severity: report.SeverityCritical,
			Location: locs[1],
			Message: fmt.Sprintf("content item id %q declared %d times, first at %s",
				id, len(locs), locs[0]),
			Related: related,
			ItemID:  id,
		})
	}
	return out
}

// validation accumulates phase 3 results.
type validation struct {
	mu        sync.Mutex
	refs      domain.Stats
	evaluated int
	failed    int
	forced    bool
	listed    sets.Set[string] // document ids reachable from a toctree
	items     []parser.ContentItem
}

// validate runs phase 3 against the frozen registry. Items are evaluated on
// clones so cached documents are never mutated.
func (r *run) validate(ctx context.Context, items []parser.ContentItem) *validation {
	v := &validation{
		listed: sets.New[string](),
		items:  make([]parser.ContentItem, len(items)),
	}
	itemIDs := sets.New[string]()
	for _, it := range items {
		itemIDs.Add(it.ID)
	}
	sortedIDs := sets.Sorted(itemIDs)

	var g errgroup.Group
	g.SetLimit(r.o.opts.Workers)
	for _, doc := range r.docs {
		g.Go(func() error {
			r.checkReferences(ctx, v, doc)
			r.checkToctree(v, doc)
			if r.o.opts.CheckDirectives {
				r.checkDirectives(doc)
			}
			return nil
		})
	}
	for i := range items {
		g.Go(func() error {
			item := items[i].Clone()
			r.checkItemLinks(&item, itemIDs, sortedIDs)
			out := r.o.engine.Evaluate(&item)
			r.add(out.Issues...)
			v.mu.Lock()
			v.evaluated += out.Evaluated
			v.failed += out.Failed
			v.forced = v.forced || out.FailBuild
			v.mu.Unlock()
			v.items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	if r.o.opts.CheckOrphans {
		r.checkOrphans(v)
	}
	return v
}

func (r *run) checkReferences(ctx context.Context, v *validation, doc *parser.Document) {
	var stats domain.Stats
	var issues []report.Issue
	for _, ref := range doc.References {
		res := r.reg.Resolve(ref)
		stats.Add(res)
		switch res.Status {
		case domain.StatusUnknownRole:
			issues = append(issues, report.Issue{
				Code:     report.CodeUnknownRole,
				Severity: report.SeverityWarning,
				Location: ref.Location(),
				Message:  fmt.Sprintf("unknown role %q", ref.Role),
			})
		case domain.StatusBroken:
			observability.DebugContext(ctx, "Broken reference",
				logfields.Role(ref.Role), logfields.Target(ref.Target), logfields.Path(ref.Path))
			issues = append(issues, report.Issue{
				Code:        report.CodeBrokenReference,
				Severity:    r.o.opts.brokenSeverity(ref.Role),
				Location:    ref.Location(),
				Message:     fmt.Sprintf(":%s: target %q not found", ref.Role, ref.Target),
				Suggestions: res.Suggestions,
			})
		}
	}
	r.add(issues...)
	v.mu.Lock()
	v.refs.Merge(stats)
	v.mu.Unlock()
}

var directiveCodes = map[directive.Kind]report.Code{
	directive.UnknownDirective: report.CodeUnknownDirective,
	directive.InvalidOption:    report.CodeInvalidDirectiveOption,
	directive.InvalidShape:     report.CodeInvalidDirective,
}

// checkDirectives reports directives of doc that are unknown or malformed.
func (r *run) checkDirectives(doc *parser.Document) {
	problems := r.o.directives.CheckAll(doc)
	if len(problems) == 0 {
		return
	}
	issues := make([]report.Issue, 0, len(problems))
	for _, p := range problems {
		issues = append(issues, report.Issue{
			Code:        directiveCodes[p.Kind],
			Severity:    report.SeverityWarning,
			Location:    p.Location,
			Message:     p.Message,
			Suggestions: p.Suggestions,
		})
	}
	r.add(issues...)
}

// checkToctree resolves the toctree entries of doc like :doc: targets. Glob
// entries match document ids relative to the directory of doc.
func (r *run) checkToctree(v *validation, doc *parser.Document) {
	var listed []string
	var issues []report.Issue
	for _, entry := range doc.Toctree {
		if entry.Glob {
			matched, err := r.globDocs(doc.ID, entry.Target)
			if err != nil || len(matched) == 0 {
				issues = append(issues, report.Issue{
					Code:     report.CodeMissingToctreeEntry,
					Severity: report.SeverityWarning,
					Location: entry.Location,
					Message:  fmt.Sprintf("toctree glob pattern %q matches no documents", entry.Target),
				})
			}
			listed = append(listed, matched...)
			continue
		}
		id, ok := r.lookupDoc(doc.ID, entry.Target)
		if !ok {
			var suggestions []string
			if cands := domain.DocCandidates(doc.ID, entry.Target); len(cands) > 0 {
				suggestions = domain.Rank(cands[0], r.reg.Names("std", "doc"))
			}
			issues = append(issues, report.Issue{
				Code:        report.CodeMissingToctreeEntry,
				Severity:    report.SeverityWarning,
				Location:    entry.Location,
				Message:     fmt.Sprintf("toctree contains reference to nonexisting document %q", entry.Target),
				Suggestions: suggestions,
			})
			continue
		}
		listed = append(listed, id)
	}
	r.add(issues...)
	v.mu.Lock()
	for _, id := range listed {
		v.listed.Add(id)
	}
	v.mu.Unlock()
}

func (r *run) lookupDoc(from, target string) (string, bool) {
	for _, cand := range domain.DocCandidates(from, target) {
		if o, ok := r.reg.Lookup("std", "doc", cand); ok {
			return o.Name, true
		}
	}
	return "", false
}

func (r *run) globDocs(from, pattern string) ([]string, error) {
	if strings.HasPrefix(pattern, "/") {
		pattern = strings.TrimPrefix(pattern, "/")
	} else {
		pattern = path.Join(path.Dir(from), pattern)
	}
	var matched []string
	for _, id := range r.reg.Names("std", "doc") {
		if id == from {
			continue
		}
		ok, err := doublestar.Match(pattern, id)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, id)
		}
	}
	return matched, nil
}

func (r *run) checkOrphans(v *validation) {
	var issues []report.Issue
	for _, doc := range r.docs {
		if doc.ID == r.o.opts.RootDoc || v.listed.Has(doc.ID) {
			continue
		}
		issues = append(issues, report.Issue{
			Code:     report.CodeOrphanDocument,
			Severity: report.SeverityInfo,
			Location: source.Location{Path: doc.Path},
			Message:  fmt.Sprintf("document %q is not included in any toctree", doc.ID),
		})
	}
	r.add(issues...)
}

func (r *run) checkItemLinks(item *parser.ContentItem, known sets.Set[string], sortedIDs []string) {
	var issues []report.Issue
	for _, field := range sortedKeys(item.Relations) {
		for _, target := range item.Relations[field] {
			if known.Has(target) {
				continue
			}
			issues = append(issues, report.Issue{
				Code:        report.CodeBrokenItemLink,
				Severity:    report.SeverityWarning,
				Location:    item.Location,
				Message:     fmt.Sprintf("item %s links to unknown item %q via %s", item.ID, target, field),
				Suggestions: domain.Rank(target, sortedIDs),
				ItemID:      item.ID,
			})
		}
	}
	r.add(issues...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func referenceCounts(m map[string]domain.Tally) map[string]report.ReferenceCounts {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]report.ReferenceCounts, len(m))
	for k, t := range m {
		out[k] = report.ReferenceCounts{
			Total:       t.Total,
			Resolved:    t.Valid,
			Broken:      t.Broken,
			External:    t.External,
			UnknownRole: t.UnknownRole,
		}
	}
	return out
}
