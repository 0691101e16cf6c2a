package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/park285/csa-client/internal/csa"
	"github.com/park285/csa-client/internal/result"
	"github.com/park285/csa-client/pkg/gamedto"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// PrintError writes err to stderr in red.
func PrintError(err error) {
	red.Fprintf(os.Stderr, "error: %v\n", err)
}

// tally prints one line per finished game and keeps the run totals.
type tally struct {
	next csa.Recorder
	out  io.Writer

	mu                    sync.Mutex
	win, lose, draw, none int
}

func newTally(next csa.Recorder, out io.Writer) *tally {
	return &tally{next: next, out: out}
}

func (t *tally) Record(ctx context.Context, g result.Game) error {
	t.mu.Lock()
	c := cyan
	switch g.Outcome() {
	case gamedto.OutcomeWin:
		t.win++
		c = green
	case gamedto.OutcomeLose:
		t.lose++
		c = red
	case gamedto.OutcomeDraw:
		t.draw++
		c = yellow
	default:
		t.none++
	}
	t.mu.Unlock()

	plies := 0
	if g.Record != nil {
		plies = g.Record.Len()
	}
	c.Fprintf(t.out, "%-6s", g.Outcome())
	fmt.Fprintf(t.out, " %s  %s vs %s  %d plies  [%s]\n", g.ID, g.Black, g.White, plies, g.LabelText())
	return t.next.Record(ctx, g)
}

func (t *tally) summary() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, "games: ")
	green.Fprintf(t.out, "%d win", t.win)
	fmt.Fprint(t.out, " / ")
	red.Fprintf(t.out, "%d lose", t.lose)
	fmt.Fprint(t.out, " / ")
	yellow.Fprintf(t.out, "%d draw", t.draw)
	if t.none > 0 {
		fmt.Fprintf(t.out, " / %d other", t.none)
	}
	fmt.Fprintln(t.out)
}
