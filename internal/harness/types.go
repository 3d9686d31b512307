package harness

import (
	"math"

	"github.com/roach88/vox/internal/ir"
)

// TraceEvent records one executed step and the state it left behind.
type TraceEvent struct {
	Step       int       `json:"step"` // 1-based
	Op         string    `json:"op"`
	Input      string    `json:"input,omitempty"`
	Intent     string    `json:"intent,omitempty"`
	MatchType  string    `json:"match_type,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Params     ir.Object `json:"params,omitempty"`
	Escalated  bool      `json:"escalated,omitempty"`
	Error      string    `json:"error,omitempty"` // workflow error code

	// Context and Depth describe the manager after the step.
	Context string `json:"context"`
	Depth   int    `json:"depth"`

	// Notifications lists the kinds delivered during the step, in order.
	Notifications []string `json:"notifications,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// State is the final manager state keyed as final_state assertions
	// address it: context, depth, the stats counters, var.<name> for
	// variables of the current context and global.<name> for globals.
	State map[string]ir.Value `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]ir.Value),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// roundConfidence keeps traces stable across platforms.
func roundConfidence(c float64) float64 {
	return math.Round(c*1000) / 1000
}
