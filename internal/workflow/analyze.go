package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/vox/internal/ir"
)

// Table warning kinds.
const (
	WarnUnreachable = "unreachable"
	WarnTrap        = "trap"
)

// TableWarning describes a structural problem in the transition tables.
//
// Warnings, not errors: Force and PopContext leave any context regardless
// of the tables, so a strict-mode trap is still escapable.
type TableWarning struct {
	Kind     string           `json:"kind"`
	Contexts []ir.ContextType `json:"contexts"`
	Message  string           `json:"message"`
}

// Analyze checks the transition graph of t. Edges are the allowed
// transitions plus the timeout transition of every context with a timeout.
// It reports:
//
//   - unreachable: a context no path from idle or error_recovery leads to
//     (error_recovery is entered by escalation, not by a transition)
//   - trap: a reachable group of contexts with no edge leaving it that
//     does not contain idle; once entered, strict mode never returns to idle
//
// Default tables yield no warnings.
func (t Tables) Analyze() []TableWarning {
	g := t.graph()
	var warnings []TableWarning

	reached := g.reachable(ir.ContextIdle, ir.ContextErrorRecovery)
	for _, ct := range ir.ContextTypes {
		if !reached[ct] {
			warnings = append(warnings, TableWarning{
				Kind:     WarnUnreachable,
				Contexts: []ir.ContextType{ct},
				Message:  fmt.Sprintf("no transition leads to %s", ct),
			})
		}
	}

	for _, scc := range g.tarjanSCC() {
		if !reached[scc[0]] || g.leaves(scc) || containsContext(scc, ir.ContextIdle) {
			continue
		}
		names := make([]string, len(scc))
		for i, ct := range scc {
			names[i] = string(ct)
		}
		warnings = append(warnings, TableWarning{
			Kind:     WarnTrap,
			Contexts: scc,
			Message:  fmt.Sprintf("idle is unreachable from %s", strings.Join(names, ", ")),
		})
	}
	return warnings
}

// transitionGraph maps a context to the contexts it may move to.
type transitionGraph map[ir.ContextType][]ir.ContextType

func (t Tables) graph() transitionGraph {
	g := make(transitionGraph, len(ir.ContextTypes))
	for _, from := range ir.ContextTypes {
		edges := append([]ir.ContextType(nil), t.Transitions[from]...)
		if t.Timeouts[from] > 0 {
			edges = append(edges, t.TimeoutTarget(from))
		}
		g[from] = edges
	}
	return g
}

func (g transitionGraph) reachable(roots ...ir.ContextType) map[ir.ContextType]bool {
	seen := make(map[ir.ContextType]bool)
	queue := append([]ir.ContextType(nil), roots...)
	for _, r := range roots {
		seen[r] = true
	}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, next := range g[c] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// leaves reports whether any edge goes from scc to a context outside it.
func (g transitionGraph) leaves(scc []ir.ContextType) bool {
	for _, c := range scc {
		for _, next := range g[c] {
			if !containsContext(scc, next) {
				return true
			}
		}
	}
	return false
}

// tarjanSCC returns the strongly connected components of g. Nodes are
// visited in ir.ContextTypes order and each component is sorted the same
// way, so the result is deterministic.
func (g transitionGraph) tarjanSCC() [][]ir.ContextType {
	var (
		index   int
		stack   []ir.ContextType
		indices = make(map[ir.ContextType]int)
		lowlink = make(map[ir.ContextType]int)
		onStack = make(map[ir.ContextType]bool)
		sccs    [][]ir.ContextType
	)

	var strongConnect func(ir.ContextType)
	strongConnect = func(v ir.ContextType) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []ir.ContextType
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Slice(scc, func(i, j int) bool { return contextOrder(scc[i]) < contextOrder(scc[j]) })
			sccs = append(sccs, scc)
		}
	}

	for _, c := range ir.ContextTypes {
		if _, visited := indices[c]; !visited {
			strongConnect(c)
		}
	}
	return sccs
}

func contextOrder(c ir.ContextType) int {
	for i, t := range ir.ContextTypes {
		if t == c {
			return i
		}
	}
	return len(ir.ContextTypes)
}

func containsContext(list []ir.ContextType, c ir.ContextType) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}
