// Package wire implements the submission JSON format: the document a
// client posts to create a graph of folders, tasks and commands. Parsing
// and validation proceed in four phases:
//
//  1. Parse: syntactic JSON decoding, unknown fields rejected outright.
//  2. Schema: required top-level fields present, schema version supported.
//  3. Structural: every index reference resolves, no dangling or
//     self-referential edges, the child tree is acyclic.
//  4. Semantic: everything structurally valid but still meaningless —
//     an unknown strategy name, a folder carrying commands, a task with
//     children, a task declared with zero commands. Duplicate node names
//     and runner names are not checked.
//
// Dependency-cycle detection is deliberately not done here: it needs the
// fully-resolved node graph the submission decoder builds, so it lives in
// internal/depcycle, shared with internal/graphbuilder.
package wire
