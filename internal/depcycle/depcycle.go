// Package depcycle implements the dependency-cycle detector shared by the
// client-side graph builder (pre-submission) and the server-side submission
// decoder (post-resolution). Both sides have their own node representation,
// so the detector works over an index-space adjacency the caller builds,
// rather than over a concrete node type.
package depcycle

import "dispatchd/internal/apperrors"

type color int

const (
	white color = iota
	gray
	black
)

// Detect runs a DFS white/gray/black cycle check over n nodes numbered
// [0,n). edges(i) returns the indices i depends on; name(i) returns the
// display name used to build the reported cycle path. Detect visits nodes
// in index order for determinism.
func Detect(n int, edges func(i int) []int, name func(i int) string) error {
	colors := make([]color, n)
	var stack []int

	var visit func(i int) error
	visit = func(i int) error {
		colors[i] = gray
		stack = append(stack, i)
		for _, j := range edges(i) {
			switch colors[j] {
			case gray:
				path := cyclePath(stack, j, name)
				return &apperrors.CycleError{Path: path}
			case white:
				if err := visit(j); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		colors[i] = black
		return nil
	}

	for i := 0; i < n; i++ {
		if colors[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

func cyclePath(stack []int, closeAt int, name func(i int) string) []string {
	start := 0
	for idx, v := range stack {
		if v == closeAt {
			start = idx
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, v := range stack[start:] {
		path = append(path, name(v))
	}
	path = append(path, name(closeAt))
	return path
}
