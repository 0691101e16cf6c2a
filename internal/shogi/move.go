package shogi

// Move follows the CSA convention: Type is the piece type standing on To
// after the move. From is NoSquare for drops.
type Move struct {
	From    Square
	To      Square
	Type    PieceType
	Promote bool
}

func (m Move) IsDrop() bool { return m.From == NoSquare }

func (m Move) IsZero() bool { return m == Move{} }

func (m Move) String() string {
	return m.From.String() + m.To.String() + m.Type.CSA()
}

// Encode packs the move into 32 bits for the book file:
// to (7 bits) | from (7 bits) | type (4 bits) | promote (1 bit).
func (m Move) Encode() uint32 {
	v := uint32(uint8(m.To)) & 0x7f
	v |= (uint32(uint8(m.From)) & 0x7f) << 7
	v |= (uint32(m.Type) & 0x0f) << 14
	if m.Promote {
		v |= 1 << 18
	}
	return v
}

func DecodeMove(v uint32) Move {
	return Move{
		To:      Square(v & 0x7f),
		From:    Square((v >> 7) & 0x7f),
		Type:    PieceType((v >> 14) & 0x0f),
		Promote: v&(1<<18) != 0,
	}
}
