// Package subset enumerates size-bounded subsets of {1..n} in minimal-change
// (Gray code) order.
//
// Successive subsets differ by one insertion, one removal or one
// substitution. Each subset carries a fitness flag computed from a caller
// supplied group for every index: a subset is unfit when two neighbouring
// entries of its ordered index array fall into the same group.
package subset

// Enumerator walks every subset of {1..n} whose size lies in [kmin, kmax].
type Enumerator struct {
	n, kmin, kmax int
	groups        []int

	// member is indexed by the internal (unreflected) index 1..n.
	member []bool
	k      int

	s   []int
	fit bool
}

// New creates an enumerator positioned at the first subset {n-kmin+1..n}.
// Out-of-range bounds are corrected rather than rejected: kmax is clamped to
// n, inverted bounds are swapped and kmin is raised to at least 1. groups
// holds the group of every index (groups[i-1] for index i); a nil or short
// slice places the missing indices in distinct groups.
func New(n, kmin, kmax int, groups []int) *Enumerator {
	if n < 0 {
		n = 0
	}
	if kmax > n {
		kmax = n
	}
	if kmin > kmax {
		kmin, kmax = kmax, kmin
	}
	if kmin < 1 {
		kmin = 1
	}
	e := &Enumerator{
		n:      n,
		kmin:   kmin,
		kmax:   kmax,
		groups: groups,
		member: make([]bool, n+1),
	}
	e.First()
	return e
}

// N returns the size of the universe.
func (e *Enumerator) N() int { return e.n }

// Bounds returns the effective subset size bounds.
func (e *Enumerator) Bounds() (kmin, kmax int) { return e.kmin, e.kmax }

// K returns the size of the current subset.
func (e *Enumerator) K() int { return e.k }

// Subset returns the current subset as ascending 1-based indices. The slice
// is reused by the next move.
func (e *Enumerator) Subset() []int { return e.s }

// Fit reports whether no two neighbouring entries of the current subset
// share a group.
func (e *Enumerator) Fit() bool { return e.fit }

func (e *Enumerator) empty() bool {
	return e.n == 0 || e.kmin > e.kmax
}

// First resets to the first subset of size kmin.
func (e *Enumerator) First() {
	if e.empty() {
		e.clear(e.n)
		e.update()
		return
	}
	e.setFirst(e.n, e.kmin)
	e.update()
}

// Last resets to the last subset of the walk, which also has size kmin.
func (e *Enumerator) Last() {
	if e.empty() {
		e.clear(e.n)
		e.update()
		return
	}
	e.setLast(e.n, e.kmin, e.kmax)
	e.update()
}

// Next moves one step forward and returns the new subset size. At the end of
// the walk it wraps to the first subset and returns 0.
func (e *Enumerator) Next() int {
	if e.empty() {
		return 0
	}
	if e.step(e.n, e.kmin, e.kmax, true) {
		e.update()
		return e.k
	}
	e.First()
	return 0
}

// Prev moves one step backward and returns the new subset size. At the start
// of the walk it wraps to the last subset and returns 0.
func (e *Enumerator) Prev() int {
	if e.empty() {
		return 0
	}
	if e.step(e.n, e.kmin, e.kmax, false) {
		e.update()
		return e.k
	}
	e.Last()
	return 0
}

// The walk over {1..m} with sizes in [a, b] is the reflected recursion
//
//	L(m, a, b) = L(m-1, a, b) ++ reverse(L(m-1, max(a-1, 0), b-1)) + {m}
//
// whose first element is {1..a} and whose last is {1..max(a-1, 0)} + {m}.
// step moves the restriction of the member set to {1..m} one element along
// L(m, a, b) and reports false, leaving the set untouched, at the boundary.
func (e *Enumerator) step(m, a, b int, forward bool) bool {
	if m == 0 {
		return false
	}
	lower := a - 1
	if lower < 0 {
		lower = 0
	}

	if !e.member[m] {
		if !forward {
			return e.step(m-1, a, b, false)
		}
		if e.step(m-1, a, b, true) {
			return true
		}
		if b < 1 || lower > m-1 {
			return false
		}
		e.setLast(m-1, lower, b-1)
		e.member[m] = true
		e.k++
		return true
	}

	if forward {
		return e.step(m-1, lower, b-1, false)
	}
	if e.step(m-1, lower, b-1, true) {
		return true
	}
	if a > m-1 {
		return false
	}
	e.member[m] = false
	e.k--
	e.setLast(m-1, a, b)
	return true
}

// setFirst makes the restriction to {1..m} equal {1..a}.
func (e *Enumerator) setFirst(m, a int) {
	e.clear(m)
	for i := 1; i <= a && i <= m; i++ {
		e.member[i] = true
		e.k++
	}
}

// setLast makes the restriction to {1..m} equal the last element of L(m, a, b).
func (e *Enumerator) setLast(m, a, b int) {
	e.clear(m)
	if m == 0 || b < 1 {
		return
	}
	for i := 1; i <= a-1; i++ {
		e.member[i] = true
		e.k++
	}
	e.member[m] = true
	e.k++
}

func (e *Enumerator) clear(m int) {
	for i := 1; i <= m; i++ {
		if e.member[i] {
			e.member[i] = false
			e.k--
		}
	}
}

// update rebuilds the exposed subset, reflecting internal index i to n+1-i,
// and recomputes fitness.
func (e *Enumerator) update() {
	e.s = e.s[:0]
	for i := e.n; i >= 1; i-- {
		if e.member[i] {
			e.s = append(e.s, e.n+1-i)
		}
	}
	e.fit = true
	for i := 1; i < len(e.s); i++ {
		if e.group(e.s[i]) == e.group(e.s[i-1]) {
			e.fit = false
			break
		}
	}
}

func (e *Enumerator) group(index int) int {
	if index-1 < len(e.groups) {
		return e.groups[index-1]
	}
	return -index
}
