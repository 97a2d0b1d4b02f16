package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %s %s\n",
			event.Seq, event.Listener, event.Category, strings.Join(event.IDs, "/"), event.Detail)
	}

	return buf.String()
}

// AssertionContext provides the store for content assertions.
type AssertionContext struct {
	Store *store.Store
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertContent:
		return assertContent(actx.Store, a, result.Trace)
	case AssertCell:
		return assertScalar(AssertCell, fmt.Sprintf("%s/%s/%s", a.Table, a.Row, a.Cell),
			actx.Store.GetCell(a.Table, a.Row, a.Cell), a.Expect, result.Trace)
	case AssertValue:
		return assertScalar(AssertValue, a.ValueID, actx.Store.GetValue(a.ValueID), a.Expect, result.Trace)
	case AssertJSON:
		if got := actx.Store.GetJSON(); got != a.JSON {
			return &AssertionError{Type: AssertJSON, Expected: a.JSON, Actual: got, Trace: result.Trace}
		}
		return nil
	case AssertFired:
		return assertFired(result.Trace, a)
	case AssertNotFired:
		if n := countFirings(result.Trace, a.Listener, nil); n > 0 {
			return &AssertionError{
				Type:     AssertNotFired,
				Expected: fmt.Sprintf("%s never fires", a.Listener),
				Actual:   fmt.Sprintf("%d firings", n),
				Trace:    result.Trace,
			}
		}
		return nil
	case AssertFireCount:
		if n := countFirings(result.Trace, a.Listener, a.IDs); n != a.Count {
			return &AssertionError{
				Type:     AssertFireCount,
				Expected: fmt.Sprintf("%d firings of %s", a.Count, a.Listener),
				Actual:   fmt.Sprintf("%d firings", n),
				Trace:    result.Trace,
			}
		}
		return nil
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertContent compares canonical forms. The expectation is loaded into a
// scratch store so it goes through the same coercion as real writes.
func assertContent(st *store.Store, a Assertion, trace []TraceEvent) error {
	scratch := store.New()
	if a.Tables != nil {
		scratch.SetTables(a.Tables)
	}
	if a.Values != nil {
		scratch.SetValues(a.Values)
	}

	want, err := ir.MarshalCanonical(scratch.GetContent())
	if err != nil {
		return fmt.Errorf("expected content: %w", err)
	}
	got, err := ir.MarshalCanonical(st.GetContent())
	if err != nil {
		return fmt.Errorf("actual content: %w", err)
	}
	if string(want) != string(got) {
		return &AssertionError{
			Type:     AssertContent,
			Expected: string(want),
			Actual:   string(got),
			Trace:    trace,
		}
	}
	return nil
}

func assertScalar(kind, where string, got ir.Scalar, expect any, trace []TraceEvent) error {
	var want ir.Scalar
	if expect != nil {
		s, ok := ir.ToScalar(expect)
		if !ok {
			return fmt.Errorf("%s %s: expect %v is not a cell value", kind, where, expect)
		}
		want = s
	}
	if got != want {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%s = %s", where, ir.AppendScalarJSON(nil, want)),
			Actual:   fmt.Sprintf("%s = %s", where, ir.AppendScalarJSON(nil, got)),
			Trace:    trace,
		}
	}
	return nil
}

func assertFired(trace []TraceEvent, a Assertion) error {
	if countFirings(trace, a.Listener, a.IDs) > 0 {
		return nil
	}
	expected := a.Listener + " fires"
	if len(a.IDs) > 0 {
		expected = fmt.Sprintf("%s fires for %s", a.Listener, strings.Join(a.IDs, "/"))
	}
	return &AssertionError{
		Type:     AssertFired,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// countFirings counts the firings of listenerID, restricted to ids when
// ids is non-empty.
func countFirings(trace []TraceEvent, listenerID string, ids []string) int {
	n := 0
	for _, e := range trace {
		if e.Listener != listenerID {
			continue
		}
		if len(ids) > 0 && !slices.Equal(e.IDs, ids) {
			continue
		}
		n++
	}
	return n
}

// assertTraceOrder checks that listeners first fire in the given order.
// Listeners don't need to be consecutive (intervening firings are allowed).
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, e := range trace {
		if _, seen := positions[e.Listener]; !seen {
			positions[e.Listener] = i + 1 // 1-indexed for readability
		}
	}

	for _, l := range a.Listeners {
		if positions[l] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all listeners fire: %v", a.Listeners),
				Actual:   fmt.Sprintf("missing listener: %s", l),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Listeners); i++ {
		prev, curr := a.Listeners[i-1], a.Listeners[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("listeners in order: %v", a.Listeners),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}
