package shogi

import "sync"

const maxHandCount = 19

type zobristTable struct {
	board [100][32]uint64
	hand  [2][King][maxHandCount]uint64
	side  uint64
}

var (
	zobristOnce sync.Once
	zobrist     *zobristTable
)

type splitmix64 struct{ state uint64 }

func (s *splitmix64) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// keys are fixed across runs so book files stay valid between builds.
func zobristKeys() *zobristTable {
	zobristOnce.Do(func() {
		rng := splitmix64{state: 0x5348_4f47_4931_2024}
		t := &zobristTable{}
		for sq := range t.board {
			for pc := range t.board[sq] {
				t.board[sq][pc] = rng.next()
			}
		}
		for c := range t.hand {
			for pt := range t.hand[c] {
				for n := range t.hand[c][pt] {
					t.hand[c][pt][n] = rng.next()
				}
			}
		}
		t.side = rng.next()
		zobrist = t
	})
	return zobrist
}

// Hash is the zobrist key of the placement, hands and side to move.
func (p *Position) Hash() uint64 {
	z := zobristKeys()
	var h uint64
	for f := 1; f <= 9; f++ {
		for r := 1; r <= 9; r++ {
			sq := SquareAt(f, r)
			if pc := p.board[sq]; !pc.Empty() {
				h ^= z.board[sq][pc]
			}
		}
	}
	for c := Black; c <= White; c++ {
		for t := Pawn; t < King; t++ {
			n := p.hands[c][t]
			if n >= maxHandCount {
				n = maxHandCount - 1
			}
			h ^= z.hand[c][t][n]
		}
	}
	if p.turn == White {
		h ^= z.side
	}
	return h
}
