package shogi

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

var hirateBlock = []string{
	"P1-KY-KE-GI-KI-OU-KI-GI-KE-KY",
	"P2 * -HI *  *  *  *  * -KA * ",
	"P3-FU-FU-FU-FU-FU-FU-FU-FU-FU",
	"P4 *  *  *  *  *  *  *  *  * ",
	"P5 *  *  *  *  *  *  *  *  * ",
	"P6 *  *  *  *  *  *  *  *  * ",
	"P7+FU+FU+FU+FU+FU+FU+FU+FU+FU",
	"P8 * +KA *  *  *  *  * +HI * ",
	"P9+KY+KE+GI+KI+OU+KI+GI+KE+KY",
	"P+",
	"P-",
	"+",
}

func TestParsePositionBlockHirate(t *testing.T) {
	rec, err := ParsePositionBlock(hirateBlock)
	if err != nil {
		t.Fatalf("ParsePositionBlock: %v", err)
	}
	if rec.Position().Hash() != NewPosition().Hash() {
		t.Fatalf("parsed position differs from hirate")
	}
	if rec.Len() != 0 {
		t.Fatalf("expected no history, got %d", rec.Len())
	}
}

func TestParsePositionBlockHistory(t *testing.T) {
	lines := append(append([]string{}, hirateBlock...), "+2726FU,T12", "-3334FU,T6")
	rec, err := ParsePositionBlock(lines)
	if err != nil {
		t.Fatalf("ParsePositionBlock: %v", err)
	}
	if rec.Len() != 2 || rec.Elapsed(0) != 12 || rec.Elapsed(1) != 6 {
		t.Fatalf("history: len=%d elapsed=%d,%d", rec.Len(), rec.Elapsed(0), rec.Elapsed(1))
	}
	if rec.Initial().Hash() != NewPosition().Hash() {
		t.Fatalf("initial position should be the block placement")
	}
	if rec.Position().Turn() != Black {
		t.Fatalf("expected black to move after two plies")
	}
}

func TestParsePositionBlockHandicapAndHands(t *testing.T) {
	rec, err := ParsePositionBlock([]string{"PI82HI22KA", "-"})
	if err != nil {
		t.Fatalf("PI: %v", err)
	}
	p := rec.Position()
	if !p.At(SquareAt(8, 2)).Empty() || !p.At(SquareAt(2, 2)).Empty() {
		t.Fatalf("handicap pieces not removed")
	}
	if p.Turn() != White {
		t.Fatalf("expected white to move")
	}

	rec, err = ParsePositionBlock([]string{
		"P-11OU",
		"P+99OU00KI00FU",
		"P-00AL",
		"+",
	})
	if err != nil {
		t.Fatalf("placements: %v", err)
	}
	p = rec.Position()
	if p.Hand(Black, Gold) != 1 || p.Hand(Black, Pawn) != 1 {
		t.Fatalf("black hand = gold %d pawn %d", p.Hand(Black, Gold), p.Hand(Black, Pawn))
	}
	if p.Hand(White, Pawn) != 17 || p.Hand(White, Rook) != 2 || p.Hand(White, Gold) != 3 {
		t.Fatalf("00AL: pawn %d rook %d gold %d", p.Hand(White, Pawn), p.Hand(White, Rook), p.Hand(White, Gold))
	}
}

func TestParsePositionBlockRejectsGarbage(t *testing.T) {
	if _, err := ParsePositionBlock([]string{"Hello"}); err == nil {
		t.Fatalf("expected error for unknown line")
	}
	if _, err := ParsePositionBlock(append(append([]string{}, hirateBlock...), "+5554FU")); err == nil {
		t.Fatalf("expected error for move from empty square")
	}
}

func TestSplitMoveLine(t *testing.T) {
	mv, sec, ok := SplitMoveLine("+7776FU,T12")
	if mv != "+7776FU" || sec != 12 || !ok {
		t.Fatalf("got %q %d %v", mv, sec, ok)
	}
	mv, _, ok = SplitMoveLine("-3334FU")
	if mv != "-3334FU" || ok {
		t.Fatalf("got %q %v", mv, ok)
	}
}

func TestParseCSAMoveSetsPromote(t *testing.T) {
	rec := NewRecord(NewPosition())
	for _, tok := range []string{"+7776FU", "-3334FU"} {
		m, _ := ParseCSAMove(tok, rec.Position())
		_ = rec.Apply(m)
	}
	m, err := ParseCSAMove("+8822UM", rec.Position())
	if err != nil {
		t.Fatalf("ParseCSAMove: %v", err)
	}
	if !m.Promote || m.Type != Horse {
		t.Fatalf("expected promotion to horse: %+v", m)
	}
	if got := FormatCSAMove(m, Black); got != "+8822UM" {
		t.Fatalf("FormatCSAMove = %q", got)
	}
	if _, err := ParseCSAMove("-8822UM", rec.Position()); err == nil {
		t.Fatalf("expected wrong-side error")
	}
}

func TestWriteReadCSA(t *testing.T) {
	rec := NewRecord(NewPosition())
	for i, tok := range []string{"+7776FU", "-3334FU", "+2726FU"} {
		m, _ := ParseCSAMove(tok, rec.Position())
		if err := rec.Apply(m); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		rec.SetLastElapsed(i + 1)
	}
	h := Header{
		Event:    "game1",
		Black:    "alice",
		White:    "bob",
		Start:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Result:   "%TORYO",
		Comments: []string{"win"},
	}
	var buf bytes.Buffer
	if err := WriteCSA(&buf, rec, h); err != nil {
		t.Fatalf("WriteCSA: %v", err)
	}
	text := buf.String()
	for _, want := range []string{"N+alice\n", "$EVENT:game1\n", "$START_TIME:2024/05/01 10:00:00\n", "-3334FU\nT2\n", "%TORYO\n", "'win\n"} {
		if !strings.Contains(text, want) {
			t.Fatalf("record missing %q:\n%s", want, text)
		}
	}

	got, gh, err := ReadCSA(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ReadCSA: %v", err)
	}
	if got.Len() != 3 || got.Elapsed(2) != 3 {
		t.Fatalf("read back len=%d elapsed=%d", got.Len(), got.Elapsed(2))
	}
	if got.Position().Hash() != rec.Position().Hash() {
		t.Fatalf("final positions differ")
	}
	if gh.Black != "alice" || gh.White != "bob" || gh.Event != "game1" || gh.Result != "%TORYO" {
		t.Fatalf("header = %+v", gh)
	}
}

func TestWriteCSASplitsResultTime(t *testing.T) {
	rec := NewRecord(NewPosition())
	m, _ := ParseCSAMove("+7776FU", rec.Position())
	if err := rec.Apply(m); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	rec.SetLastElapsed(4)

	var buf bytes.Buffer
	if err := WriteCSA(&buf, rec, Header{Result: "%TORYO,T1"}); err != nil {
		t.Fatalf("WriteCSA: %v", err)
	}
	text := buf.String()
	if !strings.Contains(text, "+7776FU\nT4\n%TORYO\nT1\n") || strings.Contains(text, "%TORYO,") {
		t.Fatalf("special move not split:\n%s", text)
	}

	got, gh, err := ReadCSA(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ReadCSA: %v", err)
	}
	if gh.Result != "%TORYO" || got.Elapsed(0) != 4 {
		t.Fatalf("result=%q elapsed=%d; the time after the special move must not touch the last move", gh.Result, got.Elapsed(0))
	}
}
