package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/qualmom/internal/calendar"
	"github.com/wonny/qualmom/internal/contracts"
)

// ErrNotFound is returned when no value exists on or before the requested date
var ErrNotFound = errors.New("not found")

type datedValue struct {
	asOf  time.Time
	value contracts.FactorValue
}

type datedClose struct {
	date  time.Time
	close float64
}

// Memory is an in-memory point-in-time provider.
// Used by tests, dry runs and the paper broker's price feed.
type Memory struct {
	mu       sync.RWMutex
	universe map[time.Time][]contracts.Security
	factors  map[contracts.Security]map[contracts.FactorName][]datedValue
	closes   map[contracts.Security][]datedClose
	failures map[string]error
	cal      *calendar.Calendar
}

// NewMemory creates an empty in-memory provider on a weekday calendar
func NewMemory() *Memory {
	return &Memory{
		universe: make(map[time.Time][]contracts.Security),
		factors:  make(map[contracts.Security]map[contracts.FactorName][]datedValue),
		closes:   make(map[contracts.Security][]datedClose),
		failures: make(map[string]error),
		cal:      calendar.New(),
	}
}

// SetUniverse publishes the universe membership effective from asOf
func (m *Memory) SetUniverse(asOf time.Time, securities ...contracts.Security) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.universe[calendar.Day(asOf)] = append([]contracts.Security(nil), securities...)
}

// SetFactor publishes a fundamental value known from asOf
func (m *Memory) SetFactor(sec contracts.Security, name contracts.FactorName, asOf time.Time, value contracts.FactorValue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byName, ok := m.factors[sec]
	if !ok {
		byName = make(map[contracts.FactorName][]datedValue)
		m.factors[sec] = byName
	}
	series := append(byName[name], datedValue{asOf: calendar.Day(asOf), value: value})
	sort.SliceStable(series, func(i, j int) bool { return series[i].asOf.Before(series[j].asOf) })
	byName[name] = series
}

// SetCloses assigns closes (oldest first) to consecutive sessions ending at end
func (m *Memory) SetCloses(sec contracts.Security, end time.Time, closes ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := make([]datedClose, len(closes))
	d := calendar.Day(end)
	if !m.cal.IsSession(d) {
		d = m.cal.PreviousSession(d)
	}
	for i := len(closes) - 1; i >= 0; i-- {
		series[i] = datedClose{date: d, close: closes[i]}
		d = m.cal.PreviousSession(d)
	}

	merged := append(m.closes[sec], series...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].date.Before(merged[j].date) })
	m.closes[sec] = merged
}

// Fail makes every lookup of kind ("universe", "factor", "price", "closes")
// for sec fail with err. Use an empty sec for universe.
func (m *Memory) Fail(kind string, sec contracts.Security, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[kind+":"+string(sec)] = err
}

// ClearFailures removes injected failures
func (m *Memory) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = make(map[string]error)
}

func (m *Memory) failure(kind string, sec contracts.Security) error {
	return m.failures[kind+":"+string(sec)]
}

// Universe returns the latest membership effective on or before date
func (m *Memory) Universe(ctx context.Context, date time.Time) ([]contracts.Security, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("universe", ""); err != nil {
		return nil, err
	}

	day := calendar.Day(date)
	var latest time.Time
	found := false
	for asOf := range m.universe {
		if !asOf.After(day) && (!found || asOf.After(latest)) {
			latest, found = asOf, true
		}
	}
	if !found {
		return nil, nil
	}
	return append([]contracts.Security(nil), m.universe[latest]...), nil
}

// Factor returns the latest value known on or before date
func (m *Memory) Factor(ctx context.Context, sec contracts.Security, name contracts.FactorName, date time.Time) (contracts.FactorValue, error) {
	if err := ctx.Err(); err != nil {
		return contracts.Missing(), err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("factor", sec); err != nil {
		return contracts.Missing(), err
	}

	day := calendar.Day(date)
	series := m.factors[sec][name]
	for i := len(series) - 1; i >= 0; i-- {
		if !series[i].asOf.After(day) {
			return series[i].value, nil
		}
	}
	return contracts.Missing(), nil
}

// Price returns the close on or before date
func (m *Memory) Price(ctx context.Context, sec contracts.Security, date time.Time) (float64, error) {
	closes, err := m.closesUpTo(ctx, "price", sec, date, 1)
	if err != nil {
		return 0, err
	}
	if len(closes) == 0 {
		return 0, fmt.Errorf("price %s as of %s: %w", sec, date.Format(time.DateOnly), ErrNotFound)
	}
	return closes[0], nil
}

// Closes returns up to n closes ending on or before end, oldest first
func (m *Memory) Closes(ctx context.Context, sec contracts.Security, end time.Time, n int) ([]float64, error) {
	return m.closesUpTo(ctx, "closes", sec, end, n)
}

func (m *Memory) closesUpTo(ctx context.Context, kind string, sec contracts.Security, end time.Time, n int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure(kind, sec); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	day := calendar.Day(end)
	series := m.closes[sec]
	last := sort.Search(len(series), func(i int) bool { return series[i].date.After(day) })
	first := last - n
	if first < 0 {
		first = 0
	}

	out := make([]float64, 0, last-first)
	for _, c := range series[first:last] {
		out = append(out, c.close)
	}
	return out, nil
}
