package strategy

import "sort"

// roundRobin rotates its starting point across successive ticks so one
// folder's backlog of ready tasks doesn't permanently sit at the front of
// the queue once priorities tie. The cursor is instance state: each
// assignment loop holds its own roundRobin per folder (see
// internal/assignment), not a single shared one.
type roundRobin struct {
	cursor int
}

func init() { register("roundrobin", func() Strategy { return &roundRobin{} }) }

func (r *roundRobin) Order(candidates []Candidate) []Candidate {
	ordered := append([]Candidate(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].TaskID < ordered[j].TaskID
	})
	if len(ordered) == 0 {
		return ordered
	}
	start := r.cursor % len(ordered)
	r.cursor++
	return append(append([]Candidate(nil), ordered[start:]...), ordered[:start]...)
}
