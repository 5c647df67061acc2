package strategy

import "sort"

type fifo struct{}

func init() { register("fifo", func() Strategy { return fifo{} }) }

// Order sorts by descending priority, then ascending DispatchKey, then
// ascending TaskID. Task IDs are assigned sequentially at submission
// decode time, so the TaskID tie-break is submission order — "first in,
// first out" once priority and dispatch key are equal.
func (fifo) Order(candidates []Candidate) []Candidate {
	out := append([]Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if out[i].DispatchKey != out[j].DispatchKey {
			return out[i].DispatchKey < out[j].DispatchKey
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out
}
