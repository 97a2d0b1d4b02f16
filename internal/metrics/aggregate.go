package metrics

import (
	"fmt"
	"math"
)

// Aggregate folds the numbers of a table's rows into one metric.
//
// Full is required. The incremental functions are optional: each receives
// the current metric, the number added and/or removed, and the row count
// after the change, and may return false to request a full recomputation.
type Aggregate struct {
	Full    func(numbers []float64) float64
	Add     func(metric, add float64, length int) (float64, bool)
	Remove  func(metric, remove float64, length int) (float64, bool)
	Replace func(metric, add, remove float64, length int) (float64, bool)
}

// Sum adds all numbers.
var Sum = Aggregate{
	Full: func(numbers []float64) float64 {
		var total float64
		for _, n := range numbers {
			total += n
		}
		return total
	},
	Add: func(metric, add float64, _ int) (float64, bool) {
		return metric + add, true
	},
	Remove: func(metric, remove float64, _ int) (float64, bool) {
		return metric - remove, true
	},
	Replace: func(metric, add, remove float64, _ int) (float64, bool) {
		return metric + add - remove, true
	},
}

// Avg is the arithmetic mean.
var Avg = Aggregate{
	Full: func(numbers []float64) float64 {
		return Sum.Full(numbers) / float64(len(numbers))
	},
	Add: func(metric, add float64, length int) (float64, bool) {
		return metric + (add-metric)/float64(length), true
	},
	Remove: func(metric, remove float64, length int) (float64, bool) {
		return metric + (metric-remove)/float64(length), true
	},
	Replace: func(metric, add, remove float64, length int) (float64, bool) {
		return metric + (add-remove)/float64(length), true
	},
}

// Min is the smallest number.
var Min = Aggregate{
	Full: func(numbers []float64) float64 {
		out := math.Inf(1)
		for _, n := range numbers {
			out = math.Min(out, n)
		}
		return out
	},
	Add: func(metric, add float64, _ int) (float64, bool) {
		return math.Min(metric, add), true
	},
	Remove: func(metric, remove float64, _ int) (float64, bool) {
		return metric, remove != metric
	},
	Replace: func(metric, add, remove float64, _ int) (float64, bool) {
		if add <= metric {
			return add, true
		}
		return metric, remove != metric
	},
}

// Max is the largest number.
var Max = Aggregate{
	Full: func(numbers []float64) float64 {
		out := math.Inf(-1)
		for _, n := range numbers {
			out = math.Max(out, n)
		}
		return out
	},
	Add: func(metric, add float64, _ int) (float64, bool) {
		return math.Max(metric, add), true
	},
	Remove: func(metric, remove float64, _ int) (float64, bool) {
		return metric, remove != metric
	},
	Replace: func(metric, add, remove float64, _ int) (float64, bool) {
		if add >= metric {
			return add, true
		}
		return metric, remove != metric
	},
}

// ParseAggregate resolves a built-in aggregate name. An empty name is sum.
func ParseAggregate(name string) (Aggregate, error) {
	switch name {
	case "", "sum":
		return Sum, nil
	case "avg":
		return Avg, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	}
	return Aggregate{}, fmt.Errorf("unknown aggregate %q", name)
}
