// Package result persists finished games: a CSV summary row and a CSA record
// file, plus optional Redis, Postgres and webhook sinks.
package result

import (
	"slices"
	"strings"
	"time"

	"github.com/park285/csa-client/internal/shogi"
	"github.com/park285/csa-client/pkg/gamedto"
)

// Game is everything known about a game once it is over.
type Game struct {
	ID        string
	SessionID string
	Black     string
	White     string
	Mine      shogi.Color
	// Labels are the end markers received, e.g. "resign lose".
	Labels []string
	// Special is the last "%" line seen, e.g. "%TORYO".
	Special string
	Record  *shogi.Record
	Start   time.Time
	End     time.Time

	BlackRemaining int
	WhiteRemaining int
}

func (g Game) Player() string {
	if g.Mine == shogi.White {
		return g.White
	}
	return g.Black
}

// Outcome reduces the labels to win, lose or draw.
func (g Game) Outcome() string {
	switch {
	case slices.Contains(g.Labels, "win"), slices.Contains(g.Labels, "win(lose)"):
		return gamedto.OutcomeWin
	case slices.Contains(g.Labels, "lose"):
		return gamedto.OutcomeLose
	case slices.Contains(g.Labels, "draw"):
		return gamedto.OutcomeDraw
	}
	return gamedto.OutcomeUnknown
}

func (g Game) LabelText() string { return strings.Join(g.Labels, " ") }

// csaMoves lists the moves with color prefixes, e.g. "+7776FU".
func (g Game) csaMoves() []string {
	if g.Record == nil {
		return nil
	}
	moves := g.Record.Moves()
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = shogi.FormatCSAMove(m, g.Record.Mover(i))
	}
	return out
}

func (g Game) DTO() gamedto.FinishedGame {
	moves := g.csaMoves()
	dur := g.End.Sub(g.Start).Milliseconds()
	if dur < 0 {
		dur = 0
	}
	return gamedto.FinishedGame{
		GameID:         g.ID,
		SessionID:      g.SessionID,
		Black:          g.Black,
		White:          g.White,
		Player:         g.Player(),
		Color:          g.Mine.String(),
		Labels:         append([]string{}, g.Labels...),
		Outcome:        g.Outcome(),
		Special:        g.Special,
		Moves:          moves,
		Plies:          len(moves),
		BlackRemaining: g.BlackRemaining,
		WhiteRemaining: g.WhiteRemaining,
		StartedAt:      g.Start,
		EndedAt:        g.End,
		DurationMS:     dur,
	}
}
