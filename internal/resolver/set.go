package resolver

// packageSet is an insertion-ordered set of package identifiers with O(1)
// membership test and removal. Removal leaves a tombstone so the relative
// order of the survivors is preserved without shifting.
type packageSet struct {
	items []string
	index map[string]int
	live  int
}

func newPackageSet(pkgs []string) *packageSet {
	s := &packageSet{
		items: make([]string, 0, len(pkgs)),
		index: make(map[string]int, len(pkgs)),
	}
	for _, pkg := range pkgs {
		s.add(pkg)
	}
	return s
}

func (s *packageSet) add(pkg string) {
	if pkg == "" {
		return
	}
	if _, ok := s.index[pkg]; ok {
		return
	}
	s.index[pkg] = len(s.items)
	s.items = append(s.items, pkg)
	s.live++
}

// Contains reports whether pkg is still in the set.
func (s *packageSet) Contains(pkg string) bool {
	_, ok := s.index[pkg]
	return ok
}

// Remove deletes pkg and reports whether it was present.
func (s *packageSet) Remove(pkg string) bool {
	i, ok := s.index[pkg]
	if !ok {
		return false
	}
	delete(s.index, pkg)
	s.items[i] = ""
	s.live--
	return true
}

// Len returns the number of packages still in the set.
func (s *packageSet) Len() int {
	return s.live
}

// Snapshot returns the current members in insertion order. The returned
// slice is independent of later removals.
func (s *packageSet) Snapshot() []string {
	out := make([]string, 0, s.live)
	for _, pkg := range s.items {
		if pkg != "" {
			out = append(out, pkg)
		}
	}
	return out
}
