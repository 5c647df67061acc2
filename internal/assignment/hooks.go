package assignment

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Plugin is the minimal runtime interface a tick-hook plugin implements.
// Which hook methods actually get called is governed by Manifest().Hooks,
// not by Go's structural typing alone.
type Plugin interface {
	Manifest() Manifest
}

type beforeTickPlugin interface{ BeforeTick(ctx context.Context) error }
type afterTickPlugin interface{ AfterTick(ctx context.Context) error }
type beforeAssignPlugin interface {
	BeforeAssign(ctx context.Context, taskID int) error
}
type afterAssignPlugin interface {
	AfterAssign(ctx context.Context, taskID int) error
}

type pluginEntry struct {
	plugin Plugin
	id     string
	hooks  map[string]struct{}
}

// HookEngine runs registered plugins at tick boundaries. Plugin panics and
// errors are recovered/recorded, never propagated to the assignment loop —
// a broken plugin must not stall dispatch. Execution order is deterministic,
// sorted by plugin_id.
type HookEngine struct {
	mu      sync.Mutex
	err     []error
	entries []pluginEntry
}

// NewHookEngine validates and sorts plugins by plugin_id, rejecting
// duplicate IDs.
func NewHookEngine(plugins []Plugin) (*HookEngine, error) {
	entries := make([]pluginEntry, 0, len(plugins))
	for _, p := range plugins {
		if p == nil {
			continue
		}
		m := p.Manifest()
		if err := validateManifest(m); err != nil {
			return nil, err
		}
		hooks := make(map[string]struct{}, len(m.Hooks))
		for _, h := range m.Hooks {
			hooks[h] = struct{}{}
		}
		entries = append(entries, pluginEntry{plugin: p, id: m.PluginID, hooks: hooks})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	for i := 1; i < len(entries); i++ {
		if entries[i].id == entries[i-1].id {
			return nil, fmt.Errorf("assignment: duplicate plugin id %s", entries[i].id)
		}
	}
	return &HookEngine{entries: entries}, nil
}

// Errors returns a snapshot of hook errors/panics observed so far.
func (e *HookEngine) Errors() []error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.err))
	copy(out, e.err)
	return out
}

func (e *HookEngine) record(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.err = append(e.err, err)
	e.mu.Unlock()
}

func guard(run func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run()
}

// BeforeTick invokes every plugin that declared the BeforeTick hook.
func (e *HookEngine) BeforeTick(ctx context.Context) {
	if e == nil {
		return
	}
	for _, ent := range e.entries {
		if _, ok := ent.hooks["BeforeTick"]; !ok {
			continue
		}
		h, ok := ent.plugin.(beforeTickPlugin)
		if !ok {
			continue
		}
		if err := guard(func() error { return h.BeforeTick(ctx) }); err != nil {
			e.record(fmt.Errorf("plugin %s BeforeTick: %w", ent.id, err))
		}
	}
}

// AfterTick invokes every plugin that declared the AfterTick hook.
func (e *HookEngine) AfterTick(ctx context.Context) {
	if e == nil {
		return
	}
	for _, ent := range e.entries {
		if _, ok := ent.hooks["AfterTick"]; !ok {
			continue
		}
		h, ok := ent.plugin.(afterTickPlugin)
		if !ok {
			continue
		}
		if err := guard(func() error { return h.AfterTick(ctx) }); err != nil {
			e.record(fmt.Errorf("plugin %s AfterTick: %w", ent.id, err))
		}
	}
}

// BeforeAssign invokes every plugin that declared the BeforeAssign hook,
// just before taskID's commands are dispatched.
func (e *HookEngine) BeforeAssign(ctx context.Context, taskID int) {
	if e == nil {
		return
	}
	for _, ent := range e.entries {
		if _, ok := ent.hooks["BeforeAssign"]; !ok {
			continue
		}
		h, ok := ent.plugin.(beforeAssignPlugin)
		if !ok {
			continue
		}
		if err := guard(func() error { return h.BeforeAssign(ctx, taskID) }); err != nil {
			e.record(fmt.Errorf("plugin %s BeforeAssign(%d): %w", ent.id, taskID, err))
		}
	}
}

// AfterAssign invokes every plugin that declared the AfterAssign hook,
// right after taskID's commands were dispatched.
func (e *HookEngine) AfterAssign(ctx context.Context, taskID int) {
	if e == nil {
		return
	}
	for _, ent := range e.entries {
		if _, ok := ent.hooks["AfterAssign"]; !ok {
			continue
		}
		h, ok := ent.plugin.(afterAssignPlugin)
		if !ok {
			continue
		}
		if err := guard(func() error { return h.AfterAssign(ctx, taskID) }); err != nil {
			e.record(fmt.Errorf("plugin %s AfterAssign(%d): %w", ent.id, taskID, err))
		}
	}
}
