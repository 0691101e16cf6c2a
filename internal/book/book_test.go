package book

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/csa-client/internal/shogi"
)

var (
	moveA = shogi.Move{From: shogi.SquareAt(7, 7), To: shogi.SquareAt(7, 6), Type: shogi.Pawn}
	moveB = shogi.Move{From: shogi.SquareAt(2, 7), To: shogi.SquareAt(2, 6), Type: shogi.Pawn}
	moveC = shogi.Move{To: shogi.SquareAt(5, 5), Type: shogi.Bishop}
)

func TestAddMergesDuplicates(t *testing.T) {
	b := New()
	for i := 0; i < 3; i++ {
		b.Add(0x1, moveA)
	}
	b.Add(0x1, moveB)

	entries := b.Lookup(0x1)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Move: moveA, Count: 3}, entries[0])
	assert.Equal(t, Entry{Move: moveB, Count: 1}, entries[1])
	assert.Equal(t, uint32(4), b.elements[0x1].total)
}

func TestPickBoundaries(t *testing.T) {
	b := New()
	for i := 0; i < 3; i++ {
		b.Add(0x1, moveA)
	}
	b.Add(0x1, moveB)

	for r := uint32(0); r < 3; r++ {
		got := b.pick(0x1, r)
		assert.Equal(t, moveA, got.Move, "draw %d", r)
		assert.Equal(t, uint32(3), got.Count)
		assert.Equal(t, uint32(4), got.Total)
	}
	got := b.pick(0x1, 3)
	assert.Equal(t, moveB, got.Move)
	assert.Equal(t, uint32(1), got.Count)
}

func TestSelectRandomUnknown(t *testing.T) {
	b := New()
	got := b.SelectRandom(0xdead)
	assert.False(t, got.Found())
	assert.Equal(t, Result{}, got)
}

func TestSelectRandomProportional(t *testing.T) {
	b := New(WithRand(rand.New(rand.NewSource(42))))
	for i := 0; i < 3; i++ {
		b.Add(0x1, moveA)
	}
	b.Add(0x1, moveB)

	// Replay the same seeded draws and map each onto the cumulative
	// boundaries [0,3) -> A, [3,4) -> B.
	ref := rand.New(rand.NewSource(42))
	counts := map[shogi.Move]int{}
	for i := 0; i < 4000; i++ {
		want := moveA
		if ref.Int63n(4) >= 3 {
			want = moveB
		}
		got := b.SelectRandom(0x1)
		require.Equal(t, want, got.Move)
		counts[got.Move]++
	}
	assert.InDelta(t, 3000, counts[moveA], 150)
	assert.InDelta(t, 1000, counts[moveB], 150)
}

func TestFilter(t *testing.T) {
	b := New()
	b.Add(0x1, moveA)
	b.Add(0x1, moveA)
	b.Add(0x1, moveB)
	b.Add(0x2, moveC)

	b.Filter(MinCount(2))

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, []Entry{{Move: moveA, Count: 2}}, b.Lookup(0x1))
	assert.Equal(t, uint32(2), b.elements[0x1].total)
	assert.Nil(t, b.Lookup(0x2))
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := New()
	b.Add(0x1, moveA)
	b.Add(0x1, moveA)
	b.Add(0x1, moveB)
	b.Add(0xffffffffffffffff, moveC)

	var buf bytes.Buffer
	require.NoError(t, b.Write(&buf))
	assert.Equal(t, 2*12+3*8, buf.Len())

	got := New()
	require.NoError(t, got.Read(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, b.Len(), got.Len())
	for hash, el := range b.elements {
		assert.Equal(t, el.entries, got.Lookup(hash))
		assert.Equal(t, el.total, got.elements[hash].total)
	}
}

func TestReadTruncated(t *testing.T) {
	b := New()
	b.Add(0x1, moveA)
	var buf bytes.Buffer
	require.NoError(t, b.Write(&buf))

	data := buf.Bytes()
	for _, n := range []int{5, 12, 17} {
		err := New().Read(bytes.NewReader(data[:n]))
		assert.ErrorIs(t, err, ErrTruncated, "cut at %d", n)
	}
	assert.NoError(t, New().Read(bytes.NewReader(nil)))
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "book.bin")

	b := New()
	b.Add(0x42, moveA)
	require.NoError(t, b.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Move: moveA, Count: 1}}, got.Lookup(0x42))

	empty, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	_, err = Load(filepath.Join(dir, "missing.bin"))
	assert.Error(t, err)
}

func TestAddRecordFile(t *testing.T) {
	const text = `V2.2
N+a
N-b
PI
+
+7776FU
T1
-3334FU
T1
+2726FU
T1
`
	path := filepath.Join(t.TempDir(), "g.csa")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	b := New()
	require.NoError(t, b.AddRecordFile(path, 2))
	assert.Equal(t, 2, b.Len())

	start := shogi.NewPosition()
	res := b.SelectRandom(start.Hash())
	require.True(t, res.Found())
	assert.Equal(t, "7776FU", res.Move.String())

	rec, _, err := shogi.ReadCSA(strings.NewReader(text))
	require.NoError(t, err)
	require.NoError(t, b.AddRecord(rec, 0))
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, uint32(2), b.SelectRandom(start.Hash()).Count)
}
