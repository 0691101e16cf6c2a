// Package shogi keeps the board bookkeeping the client needs to talk to a CSA
// server and a USI engine: piece placement, hands, side to move, move
// translation between dialects and a zobrist key for the opening book.
//
// It performs only pseudo-legal checks (ownership, hands, promotion zone).
// Full legality is left to the server and the engine.
package shogi

import "fmt"

type Color int8

const (
	Black Color = iota
	White
)

func (c Color) Opp() Color { return c ^ 1 }

// Sign is the CSA prefix for the color.
func (c Color) Sign() string {
	if c == White {
		return "-"
	}
	return "+"
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

func ColorFromSign(s string) (Color, error) {
	switch s {
	case "+":
		return Black, nil
	case "-":
		return White, nil
	}
	return Black, fmt.Errorf("invalid color sign %q", s)
}

type PieceType int8

const (
	NoPieceType PieceType = iota
	Pawn
	Lance
	Knight
	Silver
	Gold
	Bishop
	Rook
	King
	ProPawn
	ProLance
	ProKnight
	ProSilver
	Horse
	Dragon
)

const numPieceTypes = 15

var csaPieceNames = [numPieceTypes]string{
	"", "FU", "KY", "KE", "GI", "KI", "KA", "HI", "OU", "TO", "NY", "NK", "NG", "UM", "RY",
}

var usiPieceLetters = [numPieceTypes]byte{
	0, 'P', 'L', 'N', 'S', 'G', 'B', 'R', 'K', 0, 0, 0, 0, 0, 0,
}

var promoted = [numPieceTypes]PieceType{
	Pawn: ProPawn, Lance: ProLance, Knight: ProKnight, Silver: ProSilver, Bishop: Horse, Rook: Dragon,
}

var unpromoted = [numPieceTypes]PieceType{
	Pawn: Pawn, Lance: Lance, Knight: Knight, Silver: Silver, Gold: Gold, Bishop: Bishop, Rook: Rook, King: King,
	ProPawn: Pawn, ProLance: Lance, ProKnight: Knight, ProSilver: Silver, Horse: Bishop, Dragon: Rook,
}

func (t PieceType) Valid() bool { return t > NoPieceType && t < numPieceTypes }

func (t PieceType) CanPromote() bool { return t.Valid() && promoted[t] != NoPieceType }

func (t PieceType) Promote() PieceType {
	if !t.CanPromote() {
		return t
	}
	return promoted[t]
}

func (t PieceType) IsPromoted() bool { return t >= ProPawn && t <= Dragon }

// Base returns the unpromoted type, which is also the type a captured piece
// takes in hand.
func (t PieceType) Base() PieceType {
	if !t.Valid() {
		return NoPieceType
	}
	return unpromoted[t]
}

func (t PieceType) CSA() string {
	if !t.Valid() {
		return ""
	}
	return csaPieceNames[t]
}

func (t PieceType) String() string { return t.CSA() }

func PieceTypeFromCSA(s string) (PieceType, error) {
	for i := 1; i < numPieceTypes; i++ {
		if csaPieceNames[i] == s {
			return PieceType(i), nil
		}
	}
	return NoPieceType, fmt.Errorf("unknown piece %q", s)
}

func pieceTypeFromUSI(b byte) PieceType {
	for i := 1; i <= int(King); i++ {
		if usiPieceLetters[i] == b {
			return PieceType(i)
		}
	}
	return NoPieceType
}

// Piece packs a color and a type; the zero value is an empty square.
type Piece uint8

const whiteBit Piece = 0x10

func NewPiece(c Color, t PieceType) Piece {
	p := Piece(t)
	if c == White {
		p |= whiteBit
	}
	return p
}

func (p Piece) Empty() bool { return p == 0 }

func (p Piece) Type() PieceType { return PieceType(p & 0x0f) }

func (p Piece) Color() Color {
	if p&whiteBit != 0 {
		return White
	}
	return Black
}

func (p Piece) String() string {
	if p.Empty() {
		return " * "
	}
	return p.Color().Sign() + p.Type().CSA()
}

// Square is file*10+rank as written in CSA (77 is file 7, rank 7). Zero is
// "no square", used as the origin of drops.
type Square int8

const NoSquare Square = 0

func SquareAt(file, rank int) Square { return Square(file*10 + rank) }

func (s Square) File() int { return int(s) / 10 }

func (s Square) Rank() int { return int(s) % 10 }

func (s Square) Valid() bool {
	f, r := s.File(), s.Rank()
	return f >= 1 && f <= 9 && r >= 1 && r <= 9
}

func (s Square) String() string { return fmt.Sprintf("%d%d", s.File(), s.Rank()) }

func inPromotionZone(c Color, s Square) bool {
	if c == Black {
		return s.Rank() <= 3
	}
	return s.Rank() >= 7
}
