package shogi

import (
	"errors"
	"fmt"
)

var (
	ErrNoPiece       = errors.New("no own piece on source square")
	ErrOccupied      = errors.New("destination occupied by own piece")
	ErrNotInHand     = errors.New("piece not in hand")
	ErrBadPromotion  = errors.New("inconsistent promotion")
	ErrBadDrop       = errors.New("invalid drop")
	ErrInvalidSquare = errors.New("invalid square")
)

// Position is a board snapshot. The zero value is an empty board with black
// to move.
type Position struct {
	board [100]Piece
	hands [2][King]int
	turn  Color
}

var hirateBackRank = [9]PieceType{Lance, Knight, Silver, Gold, King, Gold, Silver, Knight, Lance}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	p := &Position{}
	for i, t := range hirateBackRank {
		file := 9 - i
		p.board[SquareAt(file, 1)] = NewPiece(White, t)
		p.board[SquareAt(file, 9)] = NewPiece(Black, t)
		p.board[SquareAt(file, 3)] = NewPiece(White, Pawn)
		p.board[SquareAt(file, 7)] = NewPiece(Black, Pawn)
	}
	p.board[SquareAt(8, 2)] = NewPiece(White, Rook)
	p.board[SquareAt(2, 2)] = NewPiece(White, Bishop)
	p.board[SquareAt(8, 8)] = NewPiece(Black, Bishop)
	p.board[SquareAt(2, 8)] = NewPiece(Black, Rook)
	return p
}

func (p *Position) Clone() *Position {
	c := *p
	return &c
}

func (p *Position) Turn() Color { return p.turn }

func (p *Position) SetTurn(c Color) { p.turn = c }

func (p *Position) At(s Square) Piece {
	if !s.Valid() {
		return 0
	}
	return p.board[s]
}

func (p *Position) Hand(c Color, t PieceType) int {
	if t <= NoPieceType || t >= King {
		return 0
	}
	return p.hands[c][t]
}

func (p *Position) put(s Square, pc Piece) { p.board[s] = pc }

func (p *Position) addHand(c Color, t PieceType, n int) { p.hands[c][t.Base()] += n }

// Validate performs the pseudo-legal checks applied before a move is
// committed: ownership, hand contents and promotion consistency.
func (p *Position) Validate(m Move) error {
	if !m.To.Valid() || !m.Type.Valid() {
		return ErrInvalidSquare
	}
	dst := p.board[m.To]
	if !dst.Empty() && dst.Color() == p.turn {
		return ErrOccupied
	}
	if m.IsDrop() {
		if m.Promote || m.Type >= King || !dst.Empty() {
			return ErrBadDrop
		}
		if p.hands[p.turn][m.Type] == 0 {
			return ErrNotInHand
		}
		return nil
	}
	if !m.From.Valid() {
		return ErrInvalidSquare
	}
	src := p.board[m.From]
	if src.Empty() || src.Color() != p.turn {
		return ErrNoPiece
	}
	if m.Promote {
		if !src.Type().CanPromote() || src.Type().Promote() != m.Type {
			return ErrBadPromotion
		}
		if !inPromotionZone(p.turn, m.From) && !inPromotionZone(p.turn, m.To) {
			return ErrBadPromotion
		}
		return nil
	}
	if src.Type() != m.Type {
		return ErrBadPromotion
	}
	return nil
}

// Apply validates m and plays it for the side to move.
func (p *Position) Apply(m Move) error {
	if err := p.Validate(m); err != nil {
		return fmt.Errorf("move %s: %w", m, err)
	}
	if m.IsDrop() {
		p.hands[p.turn][m.Type]--
	} else {
		if captured := p.board[m.To]; !captured.Empty() && captured.Type() != King {
			p.addHand(p.turn, captured.Type(), 1)
		}
		p.board[m.From] = 0
	}
	p.board[m.To] = NewPiece(p.turn, m.Type)
	p.turn = p.turn.Opp()
	return nil
}

// completeMove fills Promote for a move whose Type came from a dialect that
// only names the destination piece.
func (p *Position) completeMove(m Move) Move {
	if m.IsDrop() {
		return m
	}
	src := p.At(m.From)
	m.Promote = !src.Empty() && src.Type() != m.Type && src.Type().Promote() == m.Type
	return m
}

// pieceCounts is the number of each base type in a full set.
var pieceCounts = [King]int{Pawn: 18, Lance: 4, Knight: 4, Silver: 4, Gold: 4, Bishop: 2, Rook: 2}

// remaining returns how many pieces of each base type are neither on the
// board nor in either hand.
func (p *Position) remaining() [King]int {
	left := pieceCounts
	for f := 1; f <= 9; f++ {
		for r := 1; r <= 9; r++ {
			pc := p.board[SquareAt(f, r)]
			if pc.Empty() || pc.Type() == King {
				continue
			}
			left[pc.Type().Base()]--
		}
	}
	for c := Black; c <= White; c++ {
		for t := Pawn; t < King; t++ {
			left[t] -= p.hands[c][t]
		}
	}
	return left
}
