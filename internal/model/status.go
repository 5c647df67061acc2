package model

// Status is the dispatch status state machine shared by every node in the
// tree (folders, tasks, commands). Values match the wire protocol's
// integers verbatim; never renumber them, they are serialized as-is.
type Status int

const (
	StatusBlocked Status = 0
	StatusReady   Status = 1
	StatusRunning Status = 2
	StatusDone    Status = 3
	StatusError   Status = 4
	StatusCanceled Status = 5
	StatusPaused  Status = 6
)

func (s Status) String() string {
	switch s {
	case StatusBlocked:
		return "BLOCKED"
	case StatusReady:
		return "READY"
	case StatusRunning:
		return "RUNNING"
	case StatusDone:
		return "DONE"
	case StatusError:
		return "ERROR"
	case StatusCanceled:
		return "CANCELED"
	case StatusPaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether a command/task will never transition again
// without external intervention (a user control op, or a retry that
// creates a fresh command).
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusError, StatusCanceled:
		return true
	default:
		return false
	}
}

// rollupRank gives each status its precedence in the folder/task rollup:
// lower rank wins. Order is ERROR > CANCELED > PAUSED > RUNNING > READY >
// BLOCKED > DONE.
var rollupRank = map[Status]int{
	StatusError:    0,
	StatusCanceled: 1,
	StatusPaused:   2,
	StatusRunning:  3,
	StatusReady:    4,
	StatusBlocked:  5,
	StatusDone:     6,
}

// Rollup computes the aggregate status of a node from its children's
// statuses, per the fixed precedence order. An empty child set rolls up to
// DONE (a folder with no children has nothing left to do).
func Rollup(children []Status) Status {
	if len(children) == 0 {
		return StatusDone
	}
	best := children[0]
	bestRank := rollupRank[best]
	for _, c := range children[1:] {
		if r := rollupRank[c]; r < bestRank {
			best = c
			bestRank = r
		}
	}
	return best
}
