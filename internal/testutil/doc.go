// Package testutil holds deterministic stand-ins for time and identity:
// a manually advanced clock and fixed or sequential id generators.
package testutil
