// Package serverhome manages dispatchd's on-disk server home: the
// directory holding the file-backend's pools/render-nodes flat files,
// logs, and a PID file. Zero-config directory bootstrap with strict
// rejection of any top-level entry it doesn't recognize, for a standalone
// server home directory rather than a directory relative to some
// detected project root.
package serverhome

import (
	"fmt"
	"os"
	"path/filepath"

	"dispatchd/internal/apperrors"
)

// Home is the bootstrapped server home directory layout.
type Home struct {
	Dir      string
	PoolsDir string // file backend: pools.json, rendernodes.json
	LogsDir  string
	PIDFile  string
}

// Ensure validates and initializes dir as a server home, creating any
// missing required subdirectory (zero-config) and rejecting any top-level
// entry that isn't one this package manages.
func Ensure(dir string) (Home, error) {
	if dir == "" {
		return Home{}, &apperrors.ValidationError{Kind: "serverhome", Msg: "server home directory is required"}
	}

	home := Home{
		Dir:      dir,
		PoolsDir: filepath.Join(dir, "pools"),
		LogsDir:  filepath.Join(dir, "logs"),
		PIDFile:  filepath.Join(dir, "dispatchd.pid"),
	}

	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return Home{}, fmt.Errorf("stat server home: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Home{}, fmt.Errorf("create server home: %w", err)
		}
	} else if !info.IsDir() {
		return Home{}, &apperrors.ValidationError{Kind: "serverhome", Msg: dir + " exists but is not a directory"}
	}

	if err := validateTopLevel(dir); err != nil {
		return Home{}, err
	}
	if err := ensureDir(home.PoolsDir); err != nil {
		return Home{}, err
	}
	if err := ensureDir(home.LogsDir); err != nil {
		return Home{}, err
	}
	return home, nil
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return &apperrors.ValidationError{Kind: "serverhome", Msg: path + " exists but is not a directory"}
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return os.MkdirAll(path, 0o755)
}

func validateTopLevel(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read server home: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		switch name {
		case "pools", "logs":
			if !entry.IsDir() {
				return &apperrors.ValidationError{Kind: "serverhome", Msg: filepath.Join(dir, name) + " must be a directory"}
			}
		case "dispatchd.pid":
			if entry.IsDir() {
				return &apperrors.ValidationError{Kind: "serverhome", Msg: filepath.Join(dir, name) + " must be a file"}
			}
		default:
			return &apperrors.ValidationError{Kind: "serverhome", Msg: "unauthorized entry: " + filepath.Join(dir, name)}
		}
	}
	return nil
}
