package shogi

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatCSAMove renders m for the mover c, e.g. "+7776FU".
func FormatCSAMove(m Move, c Color) string { return c.Sign() + m.String() }

// ParseCSAMove decodes a move token such as "+7776FU" against pos. The token
// must not carry the ",T" suffix; see SplitMoveLine.
func ParseCSAMove(s string, pos *Position) (Move, error) {
	if len(s) != 7 {
		return Move{}, fmt.Errorf("malformed csa move %q", s)
	}
	c, err := ColorFromSign(s[:1])
	if err != nil {
		return Move{}, err
	}
	if c != pos.Turn() {
		return Move{}, fmt.Errorf("csa move %q: not %s's turn", s, c)
	}
	from, err := parseCSASquare(s[1:3], true)
	if err != nil {
		return Move{}, fmt.Errorf("csa move %q: %w", s, err)
	}
	to, err := parseCSASquare(s[3:5], false)
	if err != nil {
		return Move{}, fmt.Errorf("csa move %q: %w", s, err)
	}
	t, err := PieceTypeFromCSA(s[5:7])
	if err != nil {
		return Move{}, fmt.Errorf("csa move %q: %w", s, err)
	}
	m := pos.completeMove(Move{From: from, To: to, Type: t})
	if err := pos.Validate(m); err != nil {
		return Move{}, fmt.Errorf("csa move %q: %w", s, err)
	}
	return m, nil
}

// SplitMoveLine splits a server move line such as "+7776FU,T12" into the
// move token and the elapsed seconds. Other comma separated fields are
// ignored.
func SplitMoveLine(line string) (move string, elapsed int, hasTime bool) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	move = parts[0]
	for _, p := range parts[1:] {
		if !strings.HasPrefix(p, "T") {
			continue
		}
		if n, err := strconv.Atoi(p[1:]); err == nil {
			elapsed, hasTime = n, true
		}
	}
	return move, elapsed, hasTime
}

func parseCSASquare(s string, allowNone bool) (Square, error) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return NoSquare, fmt.Errorf("bad square %q", s)
	}
	sq := SquareAt(int(s[0]-'0'), int(s[1]-'0'))
	if sq == NoSquare && allowNone {
		return NoSquare, nil
	}
	if !sq.Valid() {
		return NoSquare, fmt.Errorf("bad square %q", s)
	}
	return sq, nil
}

// csaParser consumes CSA board text and move lines. It is shared by the
// summary position block and record files.
type csaParser struct {
	pos    *Position
	rec    *Record
	header Header
	// strict rejects header and unknown lines (position block mode).
	strict bool
	// ended is set by a special move; its time line is not a move's.
	ended bool
}

func newCSAParser(strict bool) *csaParser {
	return &csaParser{pos: &Position{}, strict: strict}
}

func (cp *csaParser) record() *Record {
	if cp.rec == nil {
		cp.rec = NewRecord(cp.pos)
	}
	return cp.rec
}

func (cp *csaParser) line(raw string) error {
	line := strings.TrimRight(raw, "\r\n")
	switch {
	case line == "", strings.HasPrefix(line, "'"):
		return nil
	case line == "+" || line == "-":
		if cp.rec != nil {
			return fmt.Errorf("side to move after moves: %q", line)
		}
		c, _ := ColorFromSign(line)
		cp.pos.turn = c
		return nil
	case line[0] == '+' || line[0] == '-':
		return cp.move(line)
	case strings.HasPrefix(line, "T") && cp.ended:
		return nil
	case strings.HasPrefix(line, "T") && cp.rec != nil:
		n, err := strconv.Atoi(strings.TrimPrefix(line, "T"))
		if err != nil {
			return fmt.Errorf("bad time line %q", line)
		}
		cp.rec.SetLastElapsed(n)
		return nil
	case strings.HasPrefix(line, "PI"):
		return cp.handicap(line[2:])
	case strings.HasPrefix(line, "P+") || strings.HasPrefix(line, "P-"):
		return cp.placements(line)
	case len(line) >= 2 && line[0] == 'P' && line[1] >= '1' && line[1] <= '9':
		return cp.row(line)
	}
	if cp.strict {
		return fmt.Errorf("unexpected position line %q", line)
	}
	return cp.headerLine(line)
}

func (cp *csaParser) move(line string) error {
	tok, elapsed, hasTime := SplitMoveLine(line)
	rec := cp.record()
	m, err := ParseCSAMove(tok, rec.Position())
	if err != nil {
		return err
	}
	if err := rec.Apply(m); err != nil {
		return err
	}
	if hasTime {
		rec.SetLastElapsed(elapsed)
	}
	return nil
}

func (cp *csaParser) row(line string) error {
	if cp.rec != nil {
		return fmt.Errorf("board row after moves: %q", line)
	}
	rank := int(line[1] - '0')
	cells := line[2:]
	if len(cells) < 27 {
		return fmt.Errorf("short board row %q", line)
	}
	for i := 0; i < 9; i++ {
		cell := cells[3*i : 3*i+3]
		sq := SquareAt(9-i, rank)
		if strings.TrimSpace(cell) == "*" {
			cp.pos.put(sq, 0)
			continue
		}
		c, err := ColorFromSign(cell[:1])
		if err != nil {
			return fmt.Errorf("board row %q: %w", line, err)
		}
		t, err := PieceTypeFromCSA(cell[1:])
		if err != nil {
			return fmt.Errorf("board row %q: %w", line, err)
		}
		cp.pos.put(sq, NewPiece(c, t))
	}
	return nil
}

func (cp *csaParser) handicap(body string) error {
	cp.pos = NewPosition()
	for len(body) >= 4 {
		sq, err := parseCSASquare(body[:2], false)
		if err != nil {
			return err
		}
		if _, err := PieceTypeFromCSA(body[2:4]); err != nil {
			return err
		}
		cp.pos.put(sq, 0)
		body = body[4:]
	}
	return nil
}

func (cp *csaParser) placements(line string) error {
	c, _ := ColorFromSign(line[1:2])
	body := line[2:]
	for len(body) >= 4 {
		chunk := body[:4]
		body = body[4:]
		if chunk == "00AL" {
			left := cp.pos.remaining()
			for t := Pawn; t < King; t++ {
				if left[t] > 0 {
					cp.pos.addHand(c, t, left[t])
				}
			}
			continue
		}
		sq, err := parseCSASquare(chunk[:2], true)
		if err != nil {
			return err
		}
		t, err := PieceTypeFromCSA(chunk[2:])
		if err != nil {
			return err
		}
		if sq == NoSquare {
			if t >= King {
				return fmt.Errorf("piece %s cannot be in hand", t)
			}
			cp.pos.addHand(c, t, 1)
			continue
		}
		cp.pos.put(sq, NewPiece(c, t))
	}
	return nil
}

func (cp *csaParser) headerLine(line string) error {
	switch {
	case strings.HasPrefix(line, "V"):
	case strings.HasPrefix(line, "N+"):
		cp.header.Black = line[2:]
	case strings.HasPrefix(line, "N-"):
		cp.header.White = line[2:]
	case strings.HasPrefix(line, "$EVENT:"):
		cp.header.Event = strings.TrimPrefix(line, "$EVENT:")
	case strings.HasPrefix(line, "$"):
	case strings.HasPrefix(line, "%"):
		cp.header.Result = strings.SplitN(line, ",", 2)[0]
		cp.ended = true
	default:
		return fmt.Errorf("unexpected record line %q", line)
	}
	return nil
}

// ParsePositionBlock decodes the lines between "BEGIN Position" and
// "END Position" of a game summary. History moves listed in the block are
// replayed into the returned record together with their elapsed times.
func ParsePositionBlock(lines []string) (*Record, error) {
	cp := newCSAParser(true)
	for _, l := range lines {
		if err := cp.line(l); err != nil {
			return nil, err
		}
	}
	return cp.record(), nil
}
