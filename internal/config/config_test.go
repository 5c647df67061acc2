package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dispatchd/internal/apperrors"
)

func TestLoadDefaultsToPostgresAndRejectsMissingURL(t *testing.T) {
	withEmptyDir(t)
	_, err := Load("")
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error for missing database_url, got %v", err)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := withEmptyDir(t)
	content := "pools_backend_type: file\nserver_home: /var/dispatchd\ndatabase_url: postgres://localhost/dispatchd\n"
	if err := os.WriteFile(filepath.Join(dir, "dispatchd.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PoolsBackend != BackendFile {
		t.Fatalf("expected file backend, got %v", cfg.PoolsBackend)
	}
	if cfg.ServerHome != "/var/dispatchd" {
		t.Fatalf("expected server_home to be read from the file, got %q", cfg.ServerHome)
	}
}

func TestLoadRejectsUnsupportedWSBackend(t *testing.T) {
	dir := withEmptyDir(t)
	content := "pools_backend_type: ws\n"
	if err := os.WriteFile(filepath.Join(dir, "dispatchd.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load("")
	if !errors.Is(err, apperrors.ErrUnsupportedBackend) {
		t.Fatalf("expected ErrUnsupportedBackend, got %v", err)
	}
}

func withEmptyDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}
