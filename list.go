package bdelta

import "sort"

// ref is a stable handle to a node in a matchList. Unlike a Go slice
// index into a growable []Match, a ref survives unrelated inserts and
// removals elsewhere in the list -- the property UnusedRange.mL/mR
// needs (spec §3, design note "Match list as doubly-linked sequence").
// It is the idiomatic equivalent of the original's
// std::list<Match>::iterator: an arena of nodes addressed by index
// instead of by pointer, since Go gives no pointer-stability guarantee
// for slice elements.
type ref int32

type matchNode struct {
	m          Match
	prev, next ref
}

// matchList is a doubly-linked list of Match, arena-backed with a free
// list for reclaimed nodes. Index 0 is a permanent root sentinel: its
// "next" is the first real element (list begin), its "prev" is the
// last real element (list back); the root itself is never a valid
// element and stands in for the original's matches.end().
type matchList struct {
	nodes []matchNode
	free  []ref
	size  int
	// generation increments on every structural mutation (insert or
	// remove) so GetMatch can detect a cursor invalidated by a Pass,
	// CleanMatches, or SwapInputs call (spec §7 "Misuse").
	generation uint64
}

const rootRef ref = 0

func newMatchList() *matchList {
	l := &matchList{nodes: make([]matchNode, 1)}
	l.nodes[rootRef] = matchNode{prev: rootRef, next: rootRef}
	return l
}

func (l *matchList) alloc(m Match, prev, next ref) ref {
	if n := len(l.free); n > 0 {
		r := l.free[n-1]
		l.free = l.free[:n-1]
		l.nodes[r] = matchNode{m: m, prev: prev, next: next}
		return r
	}
	l.nodes = append(l.nodes, matchNode{m: m, prev: prev, next: next})
	return ref(len(l.nodes) - 1)
}

// begin returns the first element, or end() if the list is empty.
func (l *matchList) begin() ref { return l.nodes[rootRef].next }

// end is the one-past-the-last sentinel, matching std::list::end().
func (l *matchList) end() ref { return rootRef }

// back returns the last element. Only valid on a non-empty list.
func (l *matchList) back() ref { return l.nodes[rootRef].prev }

func (l *matchList) next(r ref) ref { return l.nodes[r].next }
func (l *matchList) prev(r ref) ref { return l.nodes[r].prev }

func (l *matchList) at(r ref) *Match { return &l.nodes[r].m }

func (l *matchList) Len() int { return l.size }

// insertBefore inserts m immediately before at (at may be end()) and
// returns its ref.
func (l *matchList) insertBefore(at ref, m Match) ref {
	p := l.nodes[at].prev
	n := l.alloc(m, p, at)
	l.nodes[p].next = n
	l.nodes[at].prev = n
	l.size++
	l.generation++
	return n
}

func (l *matchList) pushFront(m Match) ref { return l.insertBefore(l.begin(), m) }
func (l *matchList) pushBack(m Match) ref  { return l.insertBefore(l.end(), m) }

// remove unlinks r and returns its node to the free list. The caller
// must not use r afterward.
func (l *matchList) remove(r ref) {
	n := l.nodes[r]
	l.nodes[n.prev].next = n.next
	l.nodes[n.next].prev = n.prev
	l.nodes[r] = matchNode{}
	l.free = append(l.free, r)
	l.size--
	l.generation++
}

// popBack removes and discards the last element.
func (l *matchList) popBack() {
	if l.size > 0 {
		l.remove(l.back())
	}
}

// addMatch inserts (p1, p2, n) preserving the p2-ascending,
// larger-n-first sort order (spec §4.5). Starting from place, it walks
// left while the left neighbor does not already sort before the new
// match, then right while the neighbor does sort before it, and
// inserts immediately before the final position. Because the scanner
// emits matches in near-sorted p2 order, place is usually already
// close to the correct spot and the walk is short.
func (l *matchList) addMatch(p1, p2, n uint32, place ref) ref {
	newMatch := Match{P1: p1, P2: p2, N: n}
	for place != l.begin() && !l.at(place).less(newMatch) {
		place = l.prev(place)
	}
	for place != l.end() && l.at(place).less(newMatch) {
		place = l.next(place)
	}
	return l.insertBefore(place, newMatch)
}

// sortByP2 re-sorts the whole list by the Match.less order (used after
// SwapInputs exchanges P1/P2 on every match, spec §4.7). Existing refs
// stay valid -- only the prev/next links are rewritten.
func (l *matchList) sortByP2() {
	if l.size == 0 {
		return
	}
	refs := make([]ref, 0, l.size)
	for r := l.begin(); r != l.end(); r = l.next(r) {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool {
		return l.at(refs[i]).less(*l.at(refs[j]))
	})
	prev := rootRef
	for _, r := range refs {
		l.nodes[prev].next = r
		l.nodes[r].prev = prev
		prev = r
	}
	l.nodes[prev].next = rootRef
	l.nodes[rootRef].prev = prev
	l.generation++
}
