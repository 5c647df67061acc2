package postgres

import (
	"encoding/json"

	"dispatchd/internal/model"
)

// wireDependency and wireNodeRef are the jsonb shape of a persisted
// dependency. Unlike the submission wire format (internal/wire), which
// names a target by its index in the document, the target here is a
// {kind, id} reference to an already-allocated node.
type wireNodeRef struct {
	Kind model.EntityKind `json:"kind"`
	ID   int              `json:"id"`
}

type wireDependency struct {
	Target    wireNodeRef    `json:"target"`
	StatusSet []model.Status `json:"statusSet"`
}

func encodeNodeRefs(refs []model.NodeRef) ([]byte, error) {
	out := make([]wireNodeRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, wireNodeRef{Kind: r.Kind, ID: r.ID})
	}
	return json.Marshal(out)
}

func decodeNodeRefs(data []byte) ([]model.NodeRef, error) {
	var wire []wireNodeRef
	if err := unmarshalOrEmpty(data, &wire); err != nil {
		return nil, err
	}
	out := make([]model.NodeRef, 0, len(wire))
	for _, w := range wire {
		out = append(out, model.NodeRef{Kind: w.Kind, ID: w.ID})
	}
	return out, nil
}

func encodeDependencies(deps []model.Dependency) ([]byte, error) {
	out := make([]wireDependency, 0, len(deps))
	for _, d := range deps {
		out = append(out, wireDependency{
			Target:    wireNodeRef{Kind: d.Target.Kind, ID: d.Target.ID},
			StatusSet: d.StatusSet,
		})
	}
	return json.Marshal(out)
}

func decodeDependencies(data []byte) ([]model.Dependency, error) {
	var wire []wireDependency
	if err := unmarshalOrEmpty(data, &wire); err != nil {
		return nil, err
	}
	out := make([]model.Dependency, 0, len(wire))
	for _, w := range wire {
		out = append(out, model.Dependency{
			Target:    model.NodeRef{Kind: w.Target.Kind, ID: w.Target.ID},
			StatusSet: w.StatusSet,
		})
	}
	return out, nil
}

func encodeStringMap(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

func decodeStringMap(data []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeStrings(s []string) ([]byte, error) {
	if s == nil {
		s = []string{}
	}
	return json.Marshal(s)
}

func decodeStrings(data []byte) ([]string, error) {
	var out []string
	if err := unmarshalOrEmpty(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeInts(v []int) ([]byte, error) {
	if v == nil {
		v = []int{}
	}
	return json.Marshal(v)
}

func decodeInts(data []byte) ([]int, error) {
	var out []int
	if err := unmarshalOrEmpty(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func unmarshalOrEmpty(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
