package domain

import (
	"cmp"
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"sync"
	"sync/atomic"

	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/refparse"
	"git.home.luguber.info/inful/docverify/internal/source"
)

// ErrFrozen is returned when registering into a frozen registry.
var ErrFrozen = errors.New("domain registry is frozen")

const shardCount = 32

// key identifies one namespace entry. Scope separates object types that do
// not share a namespace within a domain (std documents versus std labels).
type key struct {
	domain string
	scope  string
	name   string
}

type scopeKey struct {
	domain string
	scope  string
}

type shard struct {
	mu   sync.Mutex
	regs []Object
}

// Duplicate reports an object registered under a name that was already taken
// at an earlier location.
type Duplicate struct {
	Object Object // the ignored registration
	First  Object // the authoritative registration
}

// Registry accumulates objects across a corpus and resolves references.
type Registry struct {
	table   Table
	domains map[string]Domain
	shards  [shardCount]shard
	frozen  atomic.Bool

	// Populated by Freeze; read-only afterwards.
	objects    map[key]Object
	names      map[scopeKey][]string
	duplicates []Duplicate
}

// NewRegistry creates an empty registry for one build.
func NewRegistry(table Table, domains ...Domain) *Registry {
	r := &Registry{
		table:   table,
		domains: make(map[string]Domain, len(domains)),
	}
	for _, d := range domains {
		r.domains[d.Name()] = d
	}
	return r
}

// Builtin returns the statically known domains.
func Builtin() []Domain {
	return []Domain{PythonDomain{}, StdDomain{}}
}

// Domain returns the registered domain called name.
func (r *Registry) Domain(name string) (Domain, bool) {
	d, ok := r.domains[name]
	return d, ok
}

// Table returns the role table used for resolution.
func (r *Registry) Table() Table { return r.table }

// ValidateTable reports roles mapped to domains the registry does not know.
func (r *Registry) ValidateTable() error {
	for _, role := range r.table.Roles() {
		if _, ok := r.domains[r.table[role].Domain]; !ok {
			return fmt.Errorf("role %q maps to unknown domain %q", role, r.table[role].Domain)
		}
	}
	return nil
}

// RegisterDocument lets every domain register the objects doc declares.
func (r *Registry) RegisterDocument(doc *parser.Document) error {
	for _, name := range r.domainNames() {
		if err := r.domains[name].RegisterObjects(r, doc); err != nil {
			return err
		}
	}
	return nil
}

// RegisterObject records a declaration. It is safe for concurrent use until
// Freeze. Registering the same name at the same location twice is a no-op;
// a different location is reported as a Duplicate by Freeze.
func (r *Registry) RegisterObject(domain, typ, name string, loc source.Location) error {
	if r.frozen.Load() {
		return ErrFrozen
	}
	s := &r.shards[shardFor(domain, name)]
	s.mu.Lock()
	s.regs = append(s.regs, Object{Domain: domain, Type: typ, Name: name, Location: loc})
	s.mu.Unlock()
	return nil
}

func shardFor(domain, name string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(domain))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(name))
	return int(h.Sum32() % shardCount)
}

// Freeze ends registration and indexes every object. For each name the
// registration with the smallest location (path, line, column) is
// authoritative, so the outcome does not depend on registration order.
// Freeze returns the duplicates sorted by location; later calls return the
// same result.
func (r *Registry) Freeze() []Duplicate {
	if !r.frozen.CompareAndSwap(false, true) {
		return r.duplicates
	}

	var all []Object
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		all = append(all, s.regs...)
		s.regs = nil
		s.mu.Unlock()
	}

	keyOf := func(o Object) key {
		return key{domain: o.Domain, scope: r.scope(o.Domain, o.Type), name: o.Name}
	}
	slices.SortFunc(all, func(a, b Object) int {
		ka, kb := keyOf(a), keyOf(b)
		if c := cmp.Compare(ka.domain, kb.domain); c != 0 {
			return c
		}
		if c := cmp.Compare(ka.scope, kb.scope); c != 0 {
			return c
		}
		if c := cmp.Compare(ka.name, kb.name); c != 0 {
			return c
		}
		if c := a.Location.Compare(b.Location); c != 0 {
			return c
		}
		return cmp.Compare(a.Type, b.Type)
	})

	r.objects = make(map[key]Object, len(all))
	r.names = make(map[scopeKey][]string)
	var prev Object
	for i, o := range all {
		k := keyOf(o)
		first, seen := r.objects[k]
		switch {
		case !seen:
			r.objects[k] = o
			sk := scopeKey{k.domain, k.scope}
			r.names[sk] = append(r.names[sk], o.Name)
		case o.Location == first.Location:
			// Same declaration registered again.
		case i > 0 && o.Location == prev.Location && keyOf(prev) == k:
			// Already reported at this location.
		default:
			r.duplicates = append(r.duplicates, Duplicate{Object: o, First: first})
		}
		prev = o
	}
	slices.SortStableFunc(r.duplicates, func(a, b Duplicate) int {
		return a.Object.Location.Compare(b.Object.Location)
	})
	return r.duplicates
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool { return r.frozen.Load() }

// Len returns the number of distinct registered names. Valid after Freeze.
func (r *Registry) Len() int { return len(r.objects) }

// Lookup returns the authoritative object for name. Valid after Freeze.
func (r *Registry) Lookup(domain, typ, name string) (Object, bool) {
	o, ok := r.objects[key{domain: domain, scope: r.scope(domain, typ), name: name}]
	return o, ok
}

// Names returns the sorted names registered in the namespace of typ.
func (r *Registry) Names(domain, typ string) []string {
	return r.names[scopeKey{domain, r.scope(domain, typ)}]
}

// Resolve classifies ref. It must only be called after Freeze: before that a
// reference to an object declared in a not yet parsed file would be judged
// broken.
func (r *Registry) Resolve(ref refparse.Reference) Resolution {
	if !r.frozen.Load() {
		panic("domain: Resolve called before Freeze")
	}
	if ref.External {
		return Resolution{Reference: ref, Status: StatusExternal}
	}
	rt, ok := r.table.Lookup(ref.Role)
	if !ok {
		return Resolution{Reference: ref, Status: StatusUnknownRole}
	}
	d, ok := r.domains[rt.Domain]
	if !ok {
		return Resolution{Reference: ref, Status: StatusUnknownRole}
	}
	res := d.ValidateReference(r, ref, rt)
	res.Reference = ref
	res.Target = rt
	if res.Status == StatusBroken && res.Suggestions == nil {
		res.Suggestions = d.Suggestions(r, rt, ref)
	}
	return res
}

// Suggestions returns up to three registered names close to the target of
// ref. Unknown roles yield nil.
func (r *Registry) Suggestions(ref refparse.Reference) []string {
	rt, ok := r.table.Lookup(ref.Role)
	if !ok {
		return nil
	}
	d, ok := r.domains[rt.Domain]
	if !ok {
		return nil
	}
	return d.Suggestions(r, rt, ref)
}

func (r *Registry) scope(domain, typ string) string {
	if d, ok := r.domains[domain]; ok {
		return d.Scope(typ)
	}
	return typ
}

func (r *Registry) domainNames() []string {
	names := make([]string, 0, len(r.domains))
	for n := range r.domains {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
