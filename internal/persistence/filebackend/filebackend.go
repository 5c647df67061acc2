// Package filebackend implements the flat-file pools/render-nodes/licences
// store used when POOLS_BACKEND_TYPE=file. The server reads
// <server_home>/pools/rendernodes.json and <server_home>/pools/pools.json;
// LoadLicenceCapacity and SaveRenderNodes are available to callers but the
// server itself does not call them. It does not implement
// persistence.Store — the dispatch tree itself still requires a
// relational backend (internal/persistence/postgres) since the restart
// invariant depends on transactional create/modify/archive semantics a
// flat file cannot give. What this package replaces is only the
// worker-topology side: which render nodes exist, which pools they belong
// to, and how many tokens each named licence has.
//
// Loading is strict: a field name an entry's row type does not know is
// rejected rather than silently ignored, so a typo'd field name is an
// error at boot. Field values, such as a render node's pool names, are
// not checked against anything.
package filebackend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"dispatchd/internal/apperrors"
	"dispatchd/internal/model"
)

// renderNodeRow is the on-disk shape of one render-node file entry.
type renderNodeRow struct {
	Name  string   `json:"name"`
	Host  string   `json:"host"`
	Port  int      `json:"port"`
	Pools []string `json:"pools"`
	Cores int      `json:"cores"`
	RAM   int      `json:"ram"`
}

// poolRow is the on-disk shape of one pool file entry.
type poolRow struct {
	Name        string   `json:"name"`
	RenderNodes []string `json:"renderNodes"`
}

// licenceRow is the on-disk shape of one licence file entry.
type licenceRow struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// LoadRenderNodes reads and strictly parses the render-node topology file.
func LoadRenderNodes(path string) (map[string]*model.RenderNode, error) {
	var rows []renderNodeRow
	if err := readStrict(path, &rows); err != nil {
		return nil, err
	}
	out := map[string]*model.RenderNode{}
	for _, r := range rows {
		if r.Name == "" {
			return nil, &apperrors.ValidationError{Kind: "filebackend", Msg: "render node entry missing name"}
		}
		out[r.Name] = &model.RenderNode{
			Name:   r.Name,
			Host:   r.Host,
			Port:   r.Port,
			Pools:  r.Pools,
			Cores:  r.Cores,
			RAM:    r.RAM,
			Status: model.RenderNodeUp,
		}
	}
	return out, nil
}

// LoadPools reads and strictly parses the pool-membership file.
func LoadPools(path string) (map[string]*model.Pool, error) {
	var rows []poolRow
	if err := readStrict(path, &rows); err != nil {
		return nil, err
	}
	out := map[string]*model.Pool{}
	for _, r := range rows {
		if r.Name == "" {
			return nil, &apperrors.ValidationError{Kind: "filebackend", Msg: "pool entry missing name"}
		}
		out[r.Name] = &model.Pool{Name: r.Name, RenderNodes: r.RenderNodes}
	}
	return out, nil
}

// LoadLicenceCapacity reads and strictly parses the licence-quota file into
// the capacity map internal/assignment.LicenceTracker expects.
func LoadLicenceCapacity(path string) (map[string]int, error) {
	var rows []licenceRow
	if err := readStrict(path, &rows); err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, r := range rows {
		if r.Name == "" {
			return nil, &apperrors.ValidationError{Kind: "filebackend", Msg: "licence entry missing name"}
		}
		if r.Capacity < 0 {
			return nil, &apperrors.ValidationError{Kind: "filebackend", Msg: fmt.Sprintf("licence %q has negative capacity", r.Name)}
		}
		out[r.Name] = r.Capacity
	}
	return out, nil
}

// readStrict decodes path into v, rejecting any field v's struct tags
// don't recognize. A missing file is not an error — LoadRenderNodes et al.
// return an empty map so a freshly installed server boots with zero
// topology rather than failing.
func readStrict(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", apperrors.ErrPersistence, path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &apperrors.ValidationError{Kind: "filebackend", Msg: fmt.Sprintf("%s: %v", path, err)}
	}
	return nil
}

// SaveRenderNodes writes the given render-node topology to path in the
// format LoadRenderNodes reads. Nothing in the server calls it.
func SaveRenderNodes(path string, nodes map[string]*model.RenderNode) error {
	rows := make([]renderNodeRow, 0, len(nodes))
	for _, rn := range nodes {
		rows = append(rows, renderNodeRow{Name: rn.Name, Host: rn.Host, Port: rn.Port, Pools: rn.Pools, Cores: rn.Cores, RAM: rn.RAM})
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal render nodes: %v", apperrors.ErrPersistence, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", apperrors.ErrPersistence, path, err)
	}
	return nil
}
