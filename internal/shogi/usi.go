package shogi

import (
	"fmt"
	"strconv"
	"strings"
)

func usiSquare(s Square) string {
	return strconv.Itoa(s.File()) + string(rune('a'+s.Rank()-1))
}

func parseUSISquare(s string) (Square, error) {
	if len(s) != 2 || s[0] < '1' || s[0] > '9' || s[1] < 'a' || s[1] > 'i' {
		return NoSquare, fmt.Errorf("bad usi square %q", s)
	}
	return SquareAt(int(s[0]-'0'), int(s[1]-'a')+1), nil
}

// FormatUSIMove renders m in USI notation ("7g7f", "P*5e", "8h2b+").
func FormatUSIMove(m Move) string {
	if m.IsDrop() {
		return string(usiPieceLetters[m.Type]) + "*" + usiSquare(m.To)
	}
	s := usiSquare(m.From) + usiSquare(m.To)
	if m.Promote {
		s += "+"
	}
	return s
}

// ParseUSIMove decodes a USI move against pos, resolving the moving piece.
func ParseUSIMove(s string, pos *Position) (Move, error) {
	var m Move
	switch {
	case len(s) == 4 && s[1] == '*':
		t := pieceTypeFromUSI(s[0])
		if t == NoPieceType || t == King {
			return Move{}, fmt.Errorf("usi move %q: bad drop piece", s)
		}
		to, err := parseUSISquare(s[2:4])
		if err != nil {
			return Move{}, err
		}
		m = Move{To: to, Type: t}
	case len(s) == 4 || (len(s) == 5 && s[4] == '+'):
		from, err := parseUSISquare(s[0:2])
		if err != nil {
			return Move{}, err
		}
		to, err := parseUSISquare(s[2:4])
		if err != nil {
			return Move{}, err
		}
		src := pos.At(from)
		if src.Empty() {
			return Move{}, fmt.Errorf("usi move %q: %w", s, ErrNoPiece)
		}
		m = Move{From: from, To: to, Type: src.Type(), Promote: len(s) == 5}
		if m.Promote {
			m.Type = m.Type.Promote()
		}
	default:
		return Move{}, fmt.Errorf("malformed usi move %q", s)
	}
	if err := pos.Validate(m); err != nil {
		return Move{}, fmt.Errorf("usi move %q: %w", s, err)
	}
	return m, nil
}

func usiPieceString(pc Piece) string {
	t := pc.Type()
	s := string(usiPieceLetters[t.Base()])
	if t.IsPromoted() {
		s = "+" + s
	}
	if pc.Color() == White {
		s = strings.ToLower(s)
	}
	return s
}

var sfenHandOrder = [...]PieceType{Rook, Bishop, Gold, Silver, Knight, Lance, Pawn}

// SFEN renders the position with move number 1.
func (p *Position) SFEN() string {
	var sb strings.Builder
	for r := 1; r <= 9; r++ {
		if r > 1 {
			sb.WriteByte('/')
		}
		empty := 0
		for f := 9; f >= 1; f-- {
			pc := p.board[SquareAt(f, r)]
			if pc.Empty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteString(usiPieceString(pc))
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
	}
	if p.turn == White {
		sb.WriteString(" w ")
	} else {
		sb.WriteString(" b ")
	}
	hands := 0
	for c := Black; c <= White; c++ {
		for _, t := range sfenHandOrder {
			n := p.hands[c][t]
			if n == 0 {
				continue
			}
			hands++
			if n > 1 {
				sb.WriteString(strconv.Itoa(n))
			}
			sb.WriteString(usiPieceString(NewPiece(c, t)))
		}
	}
	if hands == 0 {
		sb.WriteByte('-')
	}
	sb.WriteString(" 1")
	return sb.String()
}
