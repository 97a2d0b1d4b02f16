package metrics

import (
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/listener"
	"github.com/roach88/tabstore/internal/store"
)

// Metric is the listener category for metric changes.
const Metric = listener.FirstCustom

// NumberFunc reads the number a row contributes. Returning false leaves the
// row out of the metric.
type NumberFunc func(getCell func(cellID string) ir.Scalar, rowID string) (float64, bool)

// Listener receives a metric change. A nil pointer means the metric has no
// value.
type Listener func(m *Metrics, metricID string, newMetric, oldMetric *float64)

type definition struct {
	tableID   string
	aggregate Aggregate
	number    NumberFunc
	numbers   *orderedmap.OrderedMap[string, float64]
	value     float64
	has       bool

	storeListener string
}

type snapshot struct {
	value float64
	has   bool
}

// Metrics maintains the metrics defined over one store.
//
// Like the store, Metrics is not safe for concurrent use.
type Metrics struct {
	store     *store.Store
	defs      *orderedmap.OrderedMap[string, *definition]
	listeners *listener.Registry

	// metric values when the current store transaction started
	dirty  *orderedmap.OrderedMap[string, snapshot]
	finish string
}

// New creates a Metrics object bound to st.
func New(st *store.Store) *Metrics {
	m := &Metrics{
		store:     st,
		defs:      orderedmap.New[string, *definition](),
		listeners: listener.NewRegistry(),
		dirty:     orderedmap.New[string, snapshot](),
	}
	m.finish = st.AddDidFinishTransactionListener(func(*store.Store) { m.flush() })
	return m
}

// GetStore returns the underlying store.
func (m *Metrics) GetStore() *store.Store {
	return m.store
}

// SetMetricDefinition defines or replaces a metric over tableID.
//
// aggregate is a built-in name ("sum", "avg", "min", "max"; "" is sum) or an
// Aggregate. source selects each row's number: nil counts every row as 1, a
// string names a cell converted with ir.ToNumber, and a NumberFunc computes
// it.
func (m *Metrics) SetMetricDefinition(metricID, tableID string, aggregate any, source any) error {
	agg, err := toAggregate(aggregate)
	if err != nil {
		return fmt.Errorf("metric %q: %w", metricID, err)
	}
	number, err := toNumberFunc(source)
	if err != nil {
		return fmt.Errorf("metric %q: %w", metricID, err)
	}

	m.delDefinition(metricID)
	d := &definition{
		tableID:   tableID,
		aggregate: agg,
		number:    number,
		numbers:   orderedmap.New[string, float64](),
	}
	before := snapshot{}
	m.defs.Set(metricID, d)

	for _, rowID := range m.store.GetRowIDs(tableID) {
		if n, ok := d.number(m.getCell(tableID, rowID), rowID); ok {
			d.numbers.Set(rowID, n)
		}
	}
	d.recompute()
	d.storeListener = m.store.AddRowListener(tableID, nil, func(_ *store.Store, _, rowID string, _ store.GetCellChange) {
		m.rowChanged(metricID, d, rowID)
	}, false)

	m.notify(metricID, before, snapshot{d.value, d.has})
	return nil
}

func toAggregate(aggregate any) (Aggregate, error) {
	switch a := aggregate.(type) {
	case nil:
		return Sum, nil
	case string:
		return ParseAggregate(a)
	case Aggregate:
		if a.Full == nil {
			return Aggregate{}, errors.New("aggregate without Full function")
		}
		return a, nil
	}
	return Aggregate{}, fmt.Errorf("unsupported aggregate %T", aggregate)
}

func toNumberFunc(source any) (NumberFunc, error) {
	switch src := source.(type) {
	case nil:
		return func(func(string) ir.Scalar, string) (float64, bool) { return 1, true }, nil
	case string:
		return func(getCell func(string) ir.Scalar, _ string) (float64, bool) {
			return ir.ToNumber(getCell(src))
		}, nil
	case NumberFunc:
		return src, nil
	case func(func(string) ir.Scalar, string) (float64, bool):
		return src, nil
	}
	return nil, fmt.Errorf("unsupported number source %T", source)
}

func (m *Metrics) getCell(tableID, rowID string) func(string) ir.Scalar {
	return func(cellID string) ir.Scalar {
		return m.store.GetCell(tableID, rowID, cellID)
	}
}

// DelMetricDefinition removes a metric. Its listeners stay registered and
// fire if the metric is defined again.
func (m *Metrics) DelMetricDefinition(metricID string) {
	d, ok := m.defs.Get(metricID)
	if !ok {
		return
	}
	before := snapshot{d.value, d.has}
	m.delDefinition(metricID)
	m.notify(metricID, before, snapshot{})
}

func (m *Metrics) delDefinition(metricID string) {
	if d, ok := m.defs.Get(metricID); ok {
		m.store.DelListener(d.storeListener)
		m.defs.Delete(metricID)
		m.dirty.Delete(metricID)
	}
}

// GetMetric returns the current value of a metric.
func (m *Metrics) GetMetric(metricID string) (float64, bool) {
	d, ok := m.defs.Get(metricID)
	if !ok || !d.has {
		return 0, false
	}
	return d.value, true
}

// HasMetric reports whether a metric is defined.
func (m *Metrics) HasMetric(metricID string) bool {
	_, ok := m.defs.Get(metricID)
	return ok
}

// GetMetricIDs returns the defined metric ids in definition order.
func (m *Metrics) GetMetricIDs() []string {
	ids := make([]string, 0, m.defs.Len())
	for pair := m.defs.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// GetTableID returns the table a metric aggregates.
func (m *Metrics) GetTableID(metricID string) (string, bool) {
	d, ok := m.defs.Get(metricID)
	if !ok {
		return "", false
	}
	return d.tableID, true
}

// AddMetricListener registers fn for one metric, or for every metric when
// metricID is nil.
func (m *Metrics) AddMetricListener(metricID any, fn Listener) string {
	return m.listeners.Add(Metric, listener.PathOf(metricID), fn, false, nil)
}

// DelListener removes a metric listener.
func (m *Metrics) DelListener(id string) {
	m.listeners.Del(id)
}

// GetListenerStats returns the number of metric listeners.
func (m *Metrics) GetListenerStats() map[string]int {
	return map[string]int{"metric": m.listeners.Count(Metric)}
}

// Destroy removes every definition and detaches from the store.
func (m *Metrics) Destroy() {
	for _, id := range m.GetMetricIDs() {
		m.delDefinition(id)
	}
	m.store.DelListener(m.finish)
	m.listeners.Clear()
}

func (m *Metrics) rowChanged(metricID string, d *definition, rowID string) {
	if _, ok := m.dirty.Get(metricID); !ok {
		m.dirty.Set(metricID, snapshot{d.value, d.has})
	}

	oldNum, hadOld := d.numbers.Get(rowID)
	var newNum float64
	hasNew := false
	if m.store.HasRow(d.tableID, rowID) {
		newNum, hasNew = d.number(m.getCell(d.tableID, rowID), rowID)
	}

	agg := d.aggregate
	switch {
	case !hadOld && !hasNew:
		return
	case hadOld && !hasNew:
		d.numbers.Delete(rowID)
		d.fold(func() (float64, bool) {
			if agg.Remove == nil {
				return 0, false
			}
			return agg.Remove(d.value, oldNum, d.numbers.Len())
		})
	case !hadOld && hasNew:
		d.numbers.Set(rowID, newNum)
		d.fold(func() (float64, bool) {
			if agg.Add == nil {
				return 0, false
			}
			return agg.Add(d.value, newNum, d.numbers.Len())
		})
	case oldNum != newNum:
		d.numbers.Set(rowID, newNum)
		d.fold(func() (float64, bool) {
			if agg.Replace == nil {
				return 0, false
			}
			return agg.Replace(d.value, newNum, oldNum, d.numbers.Len())
		})
	}
}

// fold applies an incremental update when the metric already has a value,
// and recomputes from all numbers when the update declines.
func (d *definition) fold(incremental func() (float64, bool)) {
	if d.numbers.Len() == 0 {
		d.value, d.has = 0, false
		return
	}
	if d.has {
		if v, ok := incremental(); ok {
			d.value = v
			return
		}
	}
	d.recompute()
}

func (d *definition) recompute() {
	if d.numbers.Len() == 0 {
		d.value, d.has = 0, false
		return
	}
	numbers := make([]float64, 0, d.numbers.Len())
	for pair := d.numbers.Oldest(); pair != nil; pair = pair.Next() {
		numbers = append(numbers, pair.Value)
	}
	d.value, d.has = d.aggregate.Full(numbers), true
}

func (m *Metrics) flush() {
	for pair := m.dirty.Oldest(); pair != nil; pair = pair.Next() {
		if d, ok := m.defs.Get(pair.Key); ok {
			m.notify(pair.Key, pair.Value, snapshot{d.value, d.has})
		}
	}
	m.dirty = orderedmap.New[string, snapshot]()
}

func (m *Metrics) notify(metricID string, before, after snapshot) {
	if before == after || (!before.has && !after.has) {
		return
	}
	var newMetric, oldMetric *float64
	if after.has {
		v := after.value
		newMetric = &v
	}
	if before.has {
		v := before.value
		oldMetric = &v
	}
	for _, l := range m.listeners.Match(Metric, metricID) {
		if m.listeners.Alive(l) {
			l.Callback.(Listener)(m, metricID, newMetric, oldMetric)
		}
	}
}
