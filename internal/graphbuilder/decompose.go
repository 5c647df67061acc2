package graphbuilder

import (
	"fmt"
	"math"
	"strconv"
)

// defaultDecompose implements the Open Question resolution for frame-range
// semantics: if the task declares "start", "end" and "packetSize"
// arguments, it expands into ceil((end-start+1)/packetSize) commands, each
// covering a non-overlapping slice of the range, the last one shorter.
// Otherwise it produces a single command carrying the task's own
// arguments unchanged.
func defaultDecompose(t *Task) ([]Command, error) {
	if t.explicit {
		return t.commands, nil
	}

	start, hasStart := intArg(t.arguments, "start")
	end, hasEnd := intArg(t.arguments, "end")
	packetSize, hasPacket := intArg(t.arguments, "packetSize")

	if !hasStart || !hasEnd || !hasPacket || packetSize <= 0 {
		return []Command{{
			Name:      t.name,
			Runner:    t.runner,
			Arguments: cloneArgs(t.arguments),
		}}, nil
	}

	if end < start {
		return nil, fmt.Errorf("graphbuilder: task %q has end < start", t.name)
	}

	total := end - start + 1
	nPackets := int(math.Ceil(float64(total) / float64(packetSize)))
	commands := make([]Command, 0, nPackets)
	for i := 0; i < nPackets; i++ {
		lo := start + i*packetSize
		hi := lo + packetSize - 1
		if hi > end {
			hi = end
		}
		args := cloneArgs(t.arguments)
		args["start"] = strconv.Itoa(lo)
		args["end"] = strconv.Itoa(hi)
		commands = append(commands, Command{
			Name:      fmt.Sprintf("%s.%d-%d", t.name, lo, hi),
			Runner:    t.runner,
			Arguments: args,
		})
	}
	return commands, nil
}

func intArg(args map[string]string, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func cloneArgs(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
