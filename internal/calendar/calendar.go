package calendar

import "time"

// Calendar answers trading-session questions. Sessions are weekdays not listed
// as holidays. Dates are normalized to UTC midnight.
// ⭐ SSOT: 거래일 판단은 여기서만
type Calendar struct {
	holidays map[time.Time]bool
}

// New creates a calendar with the given market holidays
func New(holidays ...time.Time) *Calendar {
	c := &Calendar{holidays: make(map[time.Time]bool, len(holidays))}
	for _, h := range holidays {
		c.holidays[Day(h)] = true
	}
	return c
}

// Day truncates t to its calendar date in UTC
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsSession reports whether date is a trading session
func (c *Calendar) IsSession(date time.Time) bool {
	d := Day(date)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays[d]
}

// PreviousSession returns the last session strictly before date.
// This is the point-in-time data cut for a cycle running on date.
func (c *Calendar) PreviousSession(date time.Time) time.Time {
	d := Day(date).AddDate(0, 0, -1)
	for !c.IsSession(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextSession returns the first session strictly after date
func (c *Calendar) NextSession(date time.Time) time.Time {
	d := Day(date).AddDate(0, 0, 1)
	for !c.IsSession(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// SessionsLeftInMonth counts sessions after date within date's month
func (c *Calendar) SessionsLeftInMonth(date time.Time) int {
	d := Day(date)
	month := d.Month()
	n := 0
	for next := d.AddDate(0, 0, 1); next.Month() == month; next = next.AddDate(0, 0, 1) {
		if c.IsSession(next) {
			n++
		}
	}
	return n
}

// IsMonthEndOffset reports whether date is the session exactly offset sessions
// before the month's last session. offset 0 is the last session itself.
func (c *Calendar) IsMonthEndOffset(date time.Time, offset int) bool {
	if offset < 0 || !c.IsSession(date) {
		return false
	}
	return c.SessionsLeftInMonth(date) == offset
}

// maxSessionScan bounds NextMonthEndOffset; four months of sessions covers any
// offset that exists in a month
const maxSessionScan = 100

// NextMonthEndOffset returns the first rebalance session on or after date
func (c *Calendar) NextMonthEndOffset(date time.Time, offset int) (time.Time, bool) {
	d := c.PreviousSession(date)
	for i := 0; i < maxSessionScan; i++ {
		d = c.NextSession(d)
		if c.IsMonthEndOffset(d, offset) {
			return d, true
		}
	}
	return time.Time{}, false
}
