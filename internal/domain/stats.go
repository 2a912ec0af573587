package domain

// Tally counts resolutions by outcome.
type Tally struct {
	Total       int `json:"total"`
	Valid       int `json:"valid"`
	Broken      int `json:"broken"`
	External    int `json:"external"`
	UnknownRole int `json:"unknown_role"`
}

func (t *Tally) add(st Status) {
	t.Total++
	switch st {
	case StatusValid:
		t.Valid++
	case StatusBroken:
		t.Broken++
	case StatusExternal:
		t.External++
	case StatusUnknownRole:
		t.UnknownRole++
	}
}

func (t *Tally) merge(o Tally) {
	t.Total += o.Total
	t.Valid += o.Valid
	t.Broken += o.Broken
	t.External += o.External
	t.UnknownRole += o.UnknownRole
}

// Stats counts resolutions overall, per domain and per role as written in
// the source. External references and unknown roles have no domain and are
// only counted by role.
type Stats struct {
	Tally
	ByDomain map[string]Tally `json:"by_domain,omitempty"`
	ByRole   map[string]Tally `json:"by_role,omitempty"`
}

// Summarize tallies res.
func Summarize(res []Resolution) Stats {
	var s Stats
	for _, r := range res {
		s.Add(r)
	}
	return s
}

// Add counts one resolution.
func (s *Stats) Add(res Resolution) {
	s.Tally.add(res.Status)
	if d := res.Target.Domain; d != "" {
		s.ByDomain = addTo(s.ByDomain, d, res.Status)
	}
	s.ByRole = addTo(s.ByRole, res.Reference.Role, res.Status)
}

// Merge adds o into s.
func (s *Stats) Merge(o Stats) {
	s.Tally.merge(o.Tally)
	s.ByDomain = mergeInto(s.ByDomain, o.ByDomain)
	s.ByRole = mergeInto(s.ByRole, o.ByRole)
}

func addTo(m map[string]Tally, key string, st Status) map[string]Tally {
	if m == nil {
		m = map[string]Tally{}
	}
	t := m[key]
	t.add(st)
	m[key] = t
	return m
}

func mergeInto(dst, src map[string]Tally) map[string]Tally {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]Tally, len(src))
	}
	for k, o := range src {
		t := dst[k]
		t.merge(o)
		dst[k] = t
	}
	return dst
}
