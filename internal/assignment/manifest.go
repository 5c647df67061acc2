// Package assignment implements the assignment loop (C5): each Tick scans
// READY tasks, groups them by parent folder, orders each group with the folder's
// strategy, enforces pool-quota and licence-token limits, and dispatches
// commands to eligible RenderNodes. The tick-boundary hook mechanism uses
// manifest-declared hooks, panic-recovering execution, and deterministic
// plugin_id ordering, retargeted from a script run's
// BeforeRun/AfterRun/BeforeNode/AfterNode boundaries to an assignment
// tick's BeforeTick/AfterTick/BeforeAssign/AfterAssign boundaries.
// Filesystem plugin discovery is not carried over: this domain has no
// on-disk plugin marketplace, so plugins are registered programmatically
// by cmd/dispatchd at startup.
package assignment

import "fmt"

// Manifest declares a plugin's identity and which hook points it wants
// invoked. Hooks the manifest does not list are never called even if the
// plugin implements the corresponding interface.
type Manifest struct {
	PluginID string
	Hooks    []string
}

func supportedHooks() map[string]struct{} {
	return map[string]struct{}{
		"BeforeTick":   {},
		"AfterTick":    {},
		"BeforeAssign": {},
		"AfterAssign":  {},
	}
}

func validateManifest(m Manifest) error {
	if m.PluginID == "" {
		return fmt.Errorf("assignment: plugin manifest missing plugin id")
	}
	if len(m.Hooks) == 0 {
		return fmt.Errorf("assignment: plugin %s declares no hooks", m.PluginID)
	}
	supported := supportedHooks()
	for _, h := range m.Hooks {
		if _, ok := supported[h]; !ok {
			return fmt.Errorf("assignment: plugin %s declares unsupported hook %s", m.PluginID, h)
		}
	}
	return nil
}
