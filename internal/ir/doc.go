// Package ir holds the data model shared by every vox package: command
// patterns and their compiled templates, match results, entities, workflow
// contexts and the sealed Value union used for parameters and variables.
//
// This package contains types and serialization only. All other internal
// packages import ir; ir imports nothing internal.
//
// Conventions:
//   - JSON tags use snake_case
//   - Values are always one of the sealed Value types, never raw Go data
//   - Canonical JSON (MarshalCanonical) is the only input to content hashes
package ir
