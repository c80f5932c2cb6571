package objects

import (
	"slices"
	"sort"
)

// RankedObject pairs an object with its distance from a query.
type RankedObject struct {
	Object   *Object `cbor:"object" json:"object"`
	Distance float32 `cbor:"distance" json:"distance"`
}

// RankedList keeps objects ordered by ascending distance. A positive limit
// caps the list at the k nearest; zero keeps everything.
type RankedList struct {
	limit  int
	ranked []RankedObject
}

func NewRankedList(limit int) *RankedList {
	return &RankedList{limit: limit}
}

func (l *RankedList) Insert(ro RankedObject) {
	idx := sort.Search(len(l.ranked), func(i int) bool {
		return l.ranked[i].Distance > ro.Distance
	})
	l.ranked = slices.Insert(l.ranked, idx, ro)
	if l.limit > 0 && len(l.ranked) > l.limit {
		l.ranked = l.ranked[:l.limit]
	}
}

func (l *RankedList) Merge(items []RankedObject) {
	for _, ro := range items {
		l.Insert(ro)
	}
}

func (l *RankedList) Len() int {
	return len(l.ranked)
}

// Threshold returns the current worst retained distance, or false while the
// list is not yet full. Useful for pruning scans.
func (l *RankedList) Threshold() (float32, bool) {
	if l.limit == 0 || len(l.ranked) < l.limit {
		return 0, false
	}
	return l.ranked[len(l.ranked)-1].Distance, true
}

func (l *RankedList) Items() []RankedObject {
	out := make([]RankedObject, len(l.ranked))
	copy(out, l.ranked)
	return out
}

// SearchResult is the outcome of a query that may span several nodes.
// Complete is false when the wait timed out with answers still outstanding;
// Remaining counts the unanswered nodes.
type SearchResult struct {
	Results   []RankedObject `json:"results"`
	Complete  bool           `json:"complete"`
	Remaining int            `json:"remaining,omitempty"`
}
