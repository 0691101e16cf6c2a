package csa

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/park285/csa-client/internal/shogi"
)

var hiratePosition = []string{
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

func summaryLines(gameID, yourTurn string, extraPosition ...string) []string {
	lines := []string{
		"BEGIN Game_Summary",
		"Protocol_Version:1.2",
		"Protocol_Mode:Server",
		"Format:Shogi 1.0",
		"Declaration:Jishogi 1.1",
		"Game_ID:" + gameID,
		"Name+:tester",
		"Name-:opp",
		"Your_Turn:" + yourTurn,
		"Rematch_On_Draw:NO",
		"To_Move:+",
		"Max_Moves:256",
		"BEGIN Time",
		"Time_Unit:1sec",
		"Total_Time:600",
		"Byoyomi:30",
		"Least_Time_Per_Move:1",
		"END Time",
		"BEGIN Position",
	}
	lines = append(lines, hiratePosition...)
	lines = append(lines, extraPosition...)
	return append(lines, "END Position", "END Game_Summary")
}

type sliceSource struct{ lines []string }

func (s *sliceSource) Receive() (string, error) {
	if len(s.lines) == 0 {
		return "", ErrClosed
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}

func TestParseSummary(t *testing.T) {
	src := &sliceSource{lines: summaryLines("game1", "-")[1:]}
	sum, err := parseSummary(src, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, sum.Err)

	assert.Equal(t, "game1", sum.GameID)
	assert.Equal(t, "tester", sum.BlackName)
	assert.Equal(t, "opp", sum.Name(shogi.White))
	assert.Equal(t, shogi.White, sum.YourTurn)
	assert.Equal(t, shogi.Black, sum.ToMove)
	assert.Equal(t, 256, sum.MaxMoves)
	assert.Equal(t, TimeRule{Total: 600, Byoyomi: 30}, sum.Time[shogi.Black])
	assert.Equal(t, TimeRule{Total: 600, Byoyomi: 30}, sum.Time[shogi.White])
	assert.Equal(t, shogi.NewPosition().Hash(), sum.Record.Position().Hash())
	assert.Empty(t, src.lines)
}

func TestParseSummaryHistoryAndSideTimes(t *testing.T) {
	lines := summaryLines("g2", "+", "+7776FU,T3", "-3334FU,T5")
	// replace the shared time block with per side blocks
	var out []string
	for _, l := range lines[1:] {
		switch l {
		case "BEGIN Time":
			out = append(out, "BEGIN Time+", "Total_Time:300", "END Time+", "BEGIN Time-", "Total_Time:900", "Byoyomi:10", "END Time-")
		case "Time_Unit:1sec", "Total_Time:600", "Byoyomi:30", "Least_Time_Per_Move:1", "END Time":
		default:
			out = append(out, l)
		}
	}
	sum, err := parseSummary(&sliceSource{lines: out}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, sum.Err)
	assert.Equal(t, TimeRule{Total: 300}, sum.Time[shogi.Black])
	assert.Equal(t, TimeRule{Total: 900, Byoyomi: 10}, sum.Time[shogi.White])
	assert.Equal(t, 2, sum.Record.Len())
	assert.Equal(t, 5, sum.Record.Elapsed(1))
}

func TestParseSummaryDropsMalformedTime(t *testing.T) {
	lines := summaryLines("g3", "+")[1:]
	for i, l := range lines {
		if l == "Total_Time:600" {
			lines[i] = "Total_Time:ten"
		}
	}
	sum, err := parseSummary(&sliceSource{lines: lines}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, sum.Err)
	assert.Equal(t, 0, sum.Time[shogi.Black].Total)
	assert.Equal(t, 30, sum.Time[shogi.Black].Byoyomi)
}

func TestParseSummaryInvalidPosition(t *testing.T) {
	lines := summaryLines("g4", "+", "+5554FU")[1:]
	sum, err := parseSummary(&sliceSource{lines: lines}, zap.NewNop())
	require.NoError(t, err)
	assert.ErrorIs(t, sum.Err, ErrInvalidSummary)
}

func TestParseSummaryTruncated(t *testing.T) {
	lines := summaryLines("g5", "+")[1:10]
	_, err := parseSummary(&sliceSource{lines: lines}, zap.NewNop())
	assert.True(t, errors.Is(err, ErrClosed))
}

// The summary handler reads the nested block straight off the connection
// before the event is queued.
func TestReceiverQueuesCompleteSummary(t *testing.T) {
	server, client := net.Pipe()
	conn := newConn(client, zap.NewNop())
	c := New(Config{}, nil, nil, zap.NewNop())
	s := newSession(c, conn, "test", zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- s.receive() }()

	go func() {
		text := strings.Join(append(summaryLines("game9", "+"), "START:game9"), "\n") + "\n"
		_, _ = server.Write([]byte(text))
		server.Close()
	}()

	ev := s.queue.waitReceive(t.Context(), FlagSummary)
	require.Equal(t, FlagSummary, ev.Flag)
	require.NotNil(t, ev.Summary)
	assert.Equal(t, "game9", ev.Summary.GameID)

	ev = s.queue.waitReceive(t.Context(), FlagStart)
	assert.Equal(t, "START:game9", ev.Line)

	require.NoError(t, <-done)
	assert.Equal(t, Flag(0), s.queue.waitReceive(t.Context(), FlagStart).Flag)
}
