package filebackend

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRenderNodesMissingFileReturnsEmpty(t *testing.T) {
	nodes, err := LoadRenderNodes(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadRenderNodes: %v", err)
	}
	if len(nodes) != 0 {
		t.Fatalf("expected empty map, got %d entries", len(nodes))
	}
}

func TestLoadRenderNodesParsesKnownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rn.json")
	content := `[{"name":"rn1","host":"10.0.0.1","port":9000,"pools":["default"],"cores":4,"ram":16000}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	nodes, err := LoadRenderNodes(path)
	if err != nil {
		t.Fatalf("LoadRenderNodes: %v", err)
	}
	rn, ok := nodes["rn1"]
	if !ok {
		t.Fatalf("expected rn1 to be loaded, got %+v", nodes)
	}
	if rn.Host != "10.0.0.1" || rn.Port != 9000 || rn.Cores != 4 {
		t.Fatalf("unexpected render node fields: %+v", rn)
	}
}

func TestLoadRenderNodesRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rn.json")
	content := `[{"name":"rn1","gpu":"rtx"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadRenderNodes(path); err == nil {
		t.Fatalf("expected error for unknown field, got nil")
	}
}

func TestLoadRenderNodesRejectsMissingName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rn.json")
	if err := os.WriteFile(path, []byte(`[{"host":"10.0.0.1"}]`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadRenderNodes(path); err == nil {
		t.Fatalf("expected error for missing name, got nil")
	}
}

func TestLoadLicenceCapacityRejectsNegative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "licences.json")
	if err := os.WriteFile(path, []byte(`[{"name":"maya","capacity":-1}]`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadLicenceCapacity(path); err == nil {
		t.Fatalf("expected error for negative capacity, got nil")
	}
}

func TestLoadLicenceCapacityParsesPositive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "licences.json")
	if err := os.WriteFile(path, []byte(`[{"name":"maya","capacity":4}]`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	caps, err := LoadLicenceCapacity(path)
	if err != nil {
		t.Fatalf("LoadLicenceCapacity: %v", err)
	}
	if caps["maya"] != 4 {
		t.Fatalf("expected maya capacity 4, got %d", caps["maya"])
	}
}

func TestSaveRenderNodesRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rn.json")
	content := `[{"name":"rn1","host":"10.0.0.1","port":9000,"pools":["default"],"cores":4,"ram":16000}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	nodes, err := LoadRenderNodes(path)
	if err != nil {
		t.Fatalf("LoadRenderNodes: %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "out.json")
	if err := SaveRenderNodes(outPath, nodes); err != nil {
		t.Fatalf("SaveRenderNodes: %v", err)
	}

	roundTripped, err := LoadRenderNodes(outPath)
	if err != nil {
		t.Fatalf("LoadRenderNodes(round-tripped): %v", err)
	}
	if roundTripped["rn1"].Host != "10.0.0.1" {
		t.Fatalf("expected round-tripped host to survive, got %+v", roundTripped["rn1"])
	}
}
