// Package logging wraps go.uber.org/zap behind a minimal Printf-style
// Logger interface (one method, satisfied by *log.Logger and any test
// double) — cmd/dispatchd wires a zap-backed implementation of that same
// shape everywhere a Logger is wanted, instead of hand-rolling a second
// logging abstraction.
package logging

import (
	"go.uber.org/zap"
)

// Logger is satisfied by *log.Logger, nopLogger, and the zap adapter
// below, matching the shape internal/assignment expects.
type Logger interface {
	Printf(format string, args ...any)
}

// zapLogger adapts a *zap.SugaredLogger to the single-method Logger shape.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Printf(format string, args ...any) {
	l.s.Infof(format, args...)
}

// New builds a production zap logger (JSON encoding, ISO8601 timestamps)
// and returns it both as the structured *zap.Logger for direct use and as
// the Printf-shaped Logger for packages that only need that much.
func New() (*zap.Logger, Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, nil, err
	}
	return z, zapLogger{s: z.Sugar()}, nil
}

// NewDevelopment builds a human-readable console logger, used by cmd/farmctl
// and local development runs of cmd/dispatchd.
func NewDevelopment() (*zap.Logger, Logger, error) {
	z, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, err
	}
	return z, zapLogger{s: z.Sugar()}, nil
}

// Nop is a Logger that discards everything, used by tests that don't care
// about log output.
type Nop struct{}

func (Nop) Printf(string, ...any) {}
