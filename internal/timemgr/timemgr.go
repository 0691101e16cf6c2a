// Package timemgr tracks a player's clock in whole seconds and derives the
// search budget for the next move.
package timemgr

import "time"

// RemainingTime is one side's clock. Remaining never leaves [0, Total].
type RemainingTime struct {
	Total     int
	Remaining int
	Byoyomi   int
}

func New(total, byoyomi int) RemainingTime {
	if total < 0 {
		total = 0
	}
	if byoyomi < 0 {
		byoyomi = 0
	}
	return RemainingTime{Total: total, Remaining: total, Byoyomi: byoyomi}
}

// Use charges sec seconds against the main time, stopping at zero.
func (r *RemainingTime) Use(sec int) {
	if sec <= 0 {
		return
	}
	r.Remaining -= sec
	if r.Remaining < 0 {
		r.Remaining = 0
	}
}

func (r *RemainingTime) Reset() { r.Remaining = r.Total }

// Usable is the time available for the next move including byoyomi.
func (r RemainingTime) Usable() int { return r.Remaining + r.Byoyomi }

// InByoyomi reports whether the main time is spent.
func (r RemainingTime) InByoyomi() bool { return r.Remaining == 0 }

type Policy struct {
	// Margin is held back from the usable time to absorb network lag.
	Margin time.Duration
	// MaxPerMove caps every budget and is used as-is once in byoyomi.
	MaxPerMove time.Duration
}

const minBudget = time.Second

// Budget returns the search time for the next own move.
func Budget(rt RemainingTime, p Policy) time.Duration {
	if rt.InByoyomi() {
		return floor(p.MaxPerMove)
	}
	usable := time.Duration(rt.Usable()) * time.Second
	byoyomi := time.Duration(rt.Byoyomi) * time.Second

	adaptive := max(usable/5, byoyomi*3)
	bounded := min(usable-p.Margin, adaptive)
	if p.MaxPerMove > 0 && bounded > p.MaxPerMove {
		bounded = p.MaxPerMove
	}
	return floor(bounded)
}

func floor(d time.Duration) time.Duration {
	if d < minBudget {
		return minBudget
	}
	return d
}
