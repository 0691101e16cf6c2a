package csa

import (
	"strings"
	"sync/atomic"
)

// Flag classifies a server line. Values are bits so waiters can ask for
// several kinds at once.
type Flag uint32

const (
	FlagLoginOK Flag = 1 << iota
	FlagLoginIncorrect
	FlagLogout
	FlagMoveEx
	FlagMoveBlack
	FlagMoveWhite
	FlagSummary
	FlagStart
	FlagReject
	FlagWin
	FlagLose
	FlagWinLose
	FlagDraw
	FlagChudan
	FlagSennichite
	FlagOuteSennichite
	FlagIllegalMove
	FlagTimeUp
	FlagResign
	FlagJishogi
	FlagMaxMoves
	FlagCensored
	// FlagClosed is pushed once the receiver stops; no line maps to it.
	FlagClosed
)

const (
	EndMask      = FlagWin | FlagLose | FlagWinLose | FlagDraw | FlagChudan | FlagSennichite | FlagOuteSennichite | FlagIllegalMove | FlagTimeUp | FlagResign | FlagJishogi | FlagMaxMoves | FlagCensored
	terminalMask = FlagLogout | FlagClosed
)

type rule struct {
	pattern string
	flag    Flag
	label   string
	// handler runs on the receiver goroutine before the event is queued.
	handler func(ev *Event) error
}

var endRules = []rule{
	{pattern: "#WIN", flag: FlagWin, label: "win"},
	{pattern: "#LOSE", flag: FlagLose, label: "lose"},
	{pattern: "#WIN(LOSE)", flag: FlagWinLose, label: "win(lose)"},
	{pattern: "#DRAW", flag: FlagDraw, label: "draw"},
	{pattern: "#CHUDAN", flag: FlagChudan, label: "chudan"},
	{pattern: "#SENNICHITE", flag: FlagSennichite, label: "sennichite"},
	{pattern: "#OUTE_SENNICHITE", flag: FlagOuteSennichite, label: "oute sennichite"},
	{pattern: "#ILLEGAL_MOVE", flag: FlagIllegalMove, label: "illegal move"},
	{pattern: "#TIME_UP", flag: FlagTimeUp, label: "time up"},
	{pattern: "#RESIGN", flag: FlagResign, label: "resign"},
	{pattern: "#JISHOGI", flag: FlagJishogi, label: "jishogi"},
	{pattern: "#MAX_MOVES", flag: FlagMaxMoves, label: "max moves"},
	{pattern: "#CENSORED", flag: FlagCensored, label: "censored"},
}

// newRules builds the top level table. Order matters: the first match wins.
func newRules(summary func(ev *Event) error) []rule {
	rules := []rule{
		{pattern: "LOGIN:* OK", flag: FlagLoginOK, label: "login ok"},
		{pattern: "LOGIN:incorrect", flag: FlagLoginIncorrect, label: "login incorrect"},
		{pattern: "LOGOUT:completed", flag: FlagLogout, label: "logout"},
		{pattern: "%*", flag: FlagMoveEx, label: "move(ex)"},
		{pattern: "+*", flag: FlagMoveBlack, label: "black move"},
		{pattern: "-*", flag: FlagMoveWhite, label: "white move"},
		{pattern: "BEGIN Game_Summary", flag: FlagSummary, label: "game summary", handler: summary},
		{pattern: "START:*", flag: FlagStart, label: "start"},
		{pattern: "REJECT:* by *", flag: FlagReject, label: "reject"},
	}
	return append(rules, endRules...)
}

func matchRule(rules []rule, line string) (rule, bool) {
	for _, r := range rules {
		if matchWildcard(r.pattern, line) {
			return r, true
		}
	}
	return rule{}, false
}

// Labels names the end flags set in f, in table order.
func Labels(f Flag) []string {
	var out []string
	for _, r := range endRules {
		if f&r.flag != 0 {
			out = append(out, r.label)
		}
	}
	return out
}

func (f Flag) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, r := range newRules(nil) {
		if f&r.flag != 0 {
			names = append(names, r.label)
		}
	}
	if f&FlagClosed != 0 {
		names = append(names, "closed")
	}
	return strings.Join(names, "|")
}

// endStatus accumulates every end marker seen during a game.
type endStatus struct{ v atomic.Uint32 }

func (e *endStatus) add(f Flag) {
	for {
		old := e.v.Load()
		if e.v.CompareAndSwap(old, old|uint32(f&EndMask)) {
			return
		}
	}
}

func (e *endStatus) load() Flag { return Flag(e.v.Load()) }
