package contracts

import (
	"sort"
	"time"
)

// Holdings is the broker's position state at cycle start. Read-only to the core.
type Holdings struct {
	AsOf      time.Time            `json:"as_of"`
	Positions map[Security]float64 `json:"positions"` // 수량
	Cash      float64              `json:"cash"`
}

// Contains reports a nonzero position in sec
func (h *Holdings) Contains(sec Security) bool {
	if h == nil {
		return false
	}
	return h.Positions[sec] != 0
}

// Securities returns held securities in sorted order
func (h *Holdings) Securities() []Security {
	if h == nil {
		return nil
	}
	out := make([]Security, 0, len(h.Positions))
	for sec, qty := range h.Positions {
		if qty != 0 {
			out = append(out, sec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy so callers cannot mutate broker state
func (h *Holdings) Clone() *Holdings {
	if h == nil {
		return nil
	}
	positions := make(map[Security]float64, len(h.Positions))
	for sec, qty := range h.Positions {
		positions[sec] = qty
	}
	return &Holdings{AsOf: h.AsOf, Positions: positions, Cash: h.Cash}
}
