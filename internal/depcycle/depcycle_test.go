package depcycle

import (
	"errors"
	"testing"

	"dispatchd/internal/apperrors"
)

func TestDetectNoCycle(t *testing.T) {
	// 0 -> 1 -> 2
	edges := map[int][]int{0: {1}, 1: {2}, 2: {}}
	names := []string{"a", "b", "c"}
	err := Detect(3, func(i int) []int { return edges[i] }, func(i int) string { return names[i] })
	if err != nil {
		t.Fatalf("unexpected cycle error: %v", err)
	}
}

func TestDetectReportsCycle(t *testing.T) {
	// 0 -> 1 -> 2 -> 0
	edges := map[int][]int{0: {1}, 1: {2}, 2: {0}}
	names := []string{"a", "b", "c"}
	err := Detect(3, func(i int) []int { return edges[i] }, func(i int) string { return names[i] })
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	var cycleErr *apperrors.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *apperrors.CycleError, got %T", err)
	}
	if len(cycleErr.Path) < 2 {
		t.Fatalf("expected a non-trivial cycle path, got %v", cycleErr.Path)
	}
}
