package shogi

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// Record is a starting position plus the moves played from it.
type Record struct {
	initial *Position
	pos     *Position
	moves   []Move
	elapsed []int
}

func NewRecord(initial *Position) *Record {
	return &Record{initial: initial.Clone(), pos: initial.Clone()}
}

// Position is the current position. Callers must not modify it.
func (r *Record) Position() *Position { return r.pos }

func (r *Record) Initial() *Position { return r.initial }

func (r *Record) Len() int { return len(r.moves) }

func (r *Record) Moves() []Move {
	out := make([]Move, len(r.moves))
	copy(out, r.moves)
	return out
}

// Apply plays m on the current position. The record is unchanged on error.
func (r *Record) Apply(m Move) error {
	if err := r.pos.Apply(m); err != nil {
		return err
	}
	r.moves = append(r.moves, m)
	r.elapsed = append(r.elapsed, 0)
	return nil
}

// SetLastElapsed stores the seconds consumed by the last move.
func (r *Record) SetLastElapsed(sec int) {
	if len(r.elapsed) > 0 {
		r.elapsed[len(r.elapsed)-1] = sec
	}
}

func (r *Record) Elapsed(i int) int {
	if i < 0 || i >= len(r.elapsed) {
		return 0
	}
	return r.elapsed[i]
}

// Mover returns the color that played move i.
func (r *Record) Mover(i int) Color {
	if i%2 == 0 {
		return r.initial.turn
	}
	return r.initial.turn.Opp()
}

func (r *Record) Clone() *Record {
	return &Record{
		initial: r.initial.Clone(),
		pos:     r.pos.Clone(),
		moves:   append([]Move(nil), r.moves...),
		elapsed: append([]int(nil), r.elapsed...),
	}
}

// Header carries the record file metadata.
type Header struct {
	Event string
	Black string
	White string
	Start time.Time
	End   time.Time
	// Result is the terminating special move, e.g. "%TORYO" or "%TORYO,T1".
	Result string
	// Comments are written as "'" lines after the moves.
	Comments []string
}

const csaTimeLayout = "2006/01/02 15:04:05"

// WriteCSA writes rec as a CSA V2.2 record file.
func WriteCSA(w io.Writer, rec *Record, h Header) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "V2.2")
	fmt.Fprintf(bw, "N+%s\n", h.Black)
	fmt.Fprintf(bw, "N-%s\n", h.White)
	if h.Event != "" {
		fmt.Fprintf(bw, "$EVENT:%s\n", h.Event)
	}
	if !h.Start.IsZero() {
		fmt.Fprintf(bw, "$START_TIME:%s\n", h.Start.Format(csaTimeLayout))
	}
	if !h.End.IsZero() {
		fmt.Fprintf(bw, "$END_TIME:%s\n", h.End.Format(csaTimeLayout))
	}
	writeBoard(bw, rec.initial)
	for i, m := range rec.moves {
		fmt.Fprintln(bw, FormatCSAMove(m, rec.Mover(i)))
		fmt.Fprintf(bw, "T%d\n", rec.elapsed[i])
	}
	if h.Result != "" {
		special, sec, hasTime := SplitMoveLine(h.Result)
		fmt.Fprintln(bw, special)
		if hasTime {
			fmt.Fprintf(bw, "T%d\n", sec)
		}
	}
	for _, c := range h.Comments {
		fmt.Fprintf(bw, "'%s\n", c)
	}
	return bw.Flush()
}

func writeBoard(w io.Writer, p *Position) {
	var sb strings.Builder
	for r := 1; r <= 9; r++ {
		sb.Reset()
		fmt.Fprintf(&sb, "P%d", r)
		for f := 9; f >= 1; f-- {
			sb.WriteString(p.board[SquareAt(f, r)].String())
		}
		fmt.Fprintln(w, sb.String())
	}
	for c := Black; c <= White; c++ {
		sb.Reset()
		for t := Rook; t >= Pawn; t-- {
			for n := 0; n < p.hands[c][t]; n++ {
				sb.WriteString("00" + t.CSA())
			}
		}
		if sb.Len() > 0 {
			fmt.Fprintf(w, "P%s%s\n", c.Sign(), sb.String())
		}
	}
	fmt.Fprintln(w, p.turn.Sign())
}

// ReadCSA parses a CSA record file written by WriteCSA or by a server.
func ReadCSA(r io.Reader) (*Record, Header, error) {
	cp := newCSAParser(false)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := cp.line(sc.Text()); err != nil {
			return nil, Header{}, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, Header{}, fmt.Errorf("read csa: %w", err)
	}
	return cp.record(), cp.header, nil
}
