package strategy

import "testing"

func TestFifoOrdersByPriorityThenDispatchKeyThenID(t *testing.T) {
	s := Lookup("fifo")
	out := s.Order([]Candidate{
		{TaskID: 3, Priority: 0, DispatchKey: 5},
		{TaskID: 1, Priority: 1, DispatchKey: 5},
		{TaskID: 2, Priority: 1, DispatchKey: 1},
	})
	want := []int{2, 1, 3}
	for i, c := range out {
		if c.TaskID != want[i] {
			t.Fatalf("order = %v, want TaskIDs %v", out, want)
		}
	}
}

func TestRoundRobinRotatesStartingPoint(t *testing.T) {
	s := Lookup("roundrobin")
	cands := []Candidate{{TaskID: 1}, {TaskID: 2}, {TaskID: 3}}

	first := s.Order(cands)
	second := s.Order(cands)

	if first[0].TaskID != 1 {
		t.Fatalf("expected first tick to start at task 1, got %d", first[0].TaskID)
	}
	if second[0].TaskID != 2 {
		t.Fatalf("expected second tick to rotate to task 2, got %d", second[0].TaskID)
	}
}

func TestLookupDefaultsToFifo(t *testing.T) {
	if _, ok := Lookup("").(fifo); !ok {
		t.Fatalf("expected empty name to default to fifo")
	}
	if _, ok := Lookup("unknown").(fifo); !ok {
		t.Fatalf("expected unknown name to fall back to fifo")
	}
}
