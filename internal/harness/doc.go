// Package harness runs conversation scenarios against the command matcher
// and the context manager.
//
// A scenario is a YAML file naming a pattern directory and a list of
// steps. Each step is one operation:
//
//	say:     transcript to classify in the current context
//	set:     context type to switch to (data, force)
//	push:    context type to switch to, always stacking the current one
//	pop:     resume the most recently suspended context
//	error:   error message to report (from)
//	recover: retry, abort or fallback
//	advance: duration to move the fake clock (fires timeouts)
//	var:     variable name to set (value, global) or remove (remove)
//
// Steps may carry an expect clause; assertions check the whole trace and
// the final state. Runs are deterministic: the clock starts at a fixed
// instant and context ids are ctx-1, ctx-2, and so on, so traces can be
// compared against golden files (RunWithGolden).
package harness
