package harness

import "github.com/roach88/tabstore/internal/ir"

// TraceEvent is one listener firing.
type TraceEvent struct {
	Seq      int64    `json:"seq"`
	Listener string   `json:"listener"`
	Category string   `json:"category"`
	IDs      []string `json:"ids,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every listener firing in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Content is the store content after the last step.
	Content ir.Content `json:"content"`

	// JSON is the store serialization after the last step.
	JSON string `json:"json"`

	// ListenerStats counts registered listeners per category.
	ListenerStats map[string]int `json:"listener_stats,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a listener firing to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}

// Firings returns the trace events of one listener.
func (r *Result) Firings(listenerID string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Listener == listenerID {
			out = append(out, e)
		}
	}
	return out
}
