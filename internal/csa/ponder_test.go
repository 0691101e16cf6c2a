package csa

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/park285/csa-client/internal/shogi"
	"github.com/park285/csa-client/internal/timemgr"
	"github.com/park285/csa-client/internal/usi"
)

// fakeSearcher answers bounded searches from a script keyed by ply and
// blocks infinite ones until interrupted. Interrupts raised before an
// infinite search is running are lost, like a real engine ignoring "stop"
// while idle.
type fakeSearcher struct {
	script     map[int]string
	startDelay time.Duration

	running atomic.Bool
	mu      sync.Mutex
	stopCh  chan struct{}

	ponders    atomic.Int32
	ponderEnds []int
	searches   []usi.Limits
}

func (f *fakeSearcher) Search(ctx context.Context, rec *shogi.Record, limits usi.Limits) (usi.Result, error) {
	if !limits.Infinite {
		f.mu.Lock()
		f.searches = append(f.searches, limits)
		f.mu.Unlock()
		text, ok := f.script[rec.Len()]
		if !ok {
			return usi.Result{Resign: true}, nil
		}
		m, err := shogi.ParseUSIMove(text, rec.Position())
		if err != nil {
			return usi.Result{}, err
		}
		return usi.Result{Move: m, Found: true, Score: 42, PV: []shogi.Move{m}}, nil
	}

	f.ponders.Add(1)
	time.Sleep(f.startDelay)
	stop := make(chan struct{})
	f.mu.Lock()
	f.stopCh = stop
	f.mu.Unlock()
	f.running.Store(true)

	select {
	case <-stop:
	case <-ctx.Done():
	}
	f.running.Store(false)
	f.mu.Lock()
	f.ponderEnds = append(f.ponderEnds, rec.Len())
	f.mu.Unlock()
	return usi.Result{}, nil
}

func (f *fakeSearcher) Interrupt() {
	if !f.running.Load() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopCh != nil {
		close(f.stopCh)
		f.stopCh = nil
	}
}

func (f *fakeSearcher) IsRunning() bool { return f.running.Load() }

func (f *fakeSearcher) ends() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.ponderEnds...)
}

// opponentSession returns a session where black has played 7g7f and white
// is to move.
func opponentSession(t *testing.T, searcher Searcher) *session {
	t.Helper()
	c := New(Config{Ponder: true}, searcher, nil, zap.NewNop())
	s := newSession(c, nil, "test", zap.NewNop())
	s.me = shogi.Black
	s.record = shogi.NewRecord(shogi.NewPosition())
	m, err := shogi.ParseCSAMove("+7776FU", s.record.Position())
	require.NoError(t, err)
	require.NoError(t, s.record.Apply(m))
	s.clocks[shogi.Black] = timemgr.New(600, 0)
	s.clocks[shogi.White] = timemgr.New(600, 0)
	return s
}

func TestPonderStoppedBeforeOpponentMove(t *testing.T) {
	f := &fakeSearcher{}
	s := opponentSession(t, f)

	go func() {
		for !f.IsRunning() {
			time.Sleep(time.Millisecond)
		}
		s.queue.push(Event{Flag: FlagMoveWhite, Line: "-3334FU,T5"})
	}()

	done, err := s.opponentTurn(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, []int{1}, f.ends(), "ponder must end before the move is applied")
	assert.Equal(t, 2, s.record.Len())
	assert.Equal(t, 595, s.clocks[shogi.White].Remaining)
	assert.False(t, f.IsRunning())
}

// The move arrives before the ponder search is running: the first interrupt
// is lost and stop has to keep trying.
func TestPonderStopBeforeSearchStarts(t *testing.T) {
	f := &fakeSearcher{startDelay: 50 * time.Millisecond}
	s := opponentSession(t, f)
	s.queue.push(Event{Flag: FlagMoveWhite, Line: "-3334FU,T1"})

	done, err := s.opponentTurn(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, []int{1}, f.ends())
	assert.Equal(t, 2, s.record.Len())
}

func TestOpponentTurnEndMarker(t *testing.T) {
	f := &fakeSearcher{}
	s := opponentSession(t, f)
	s.queue.push(Event{Flag: FlagLose, Line: "#LOSE"})

	done, err := s.opponentTurn(context.Background())
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 1, s.record.Len())
	assert.Equal(t, int32(1), f.ponders.Load())
}

func TestOpponentTurnIllegalMove(t *testing.T) {
	s := opponentSession(t, &fakeSearcher{})
	s.client.cfg.Ponder = false
	s.queue.push(Event{Flag: FlagMoveWhite, Line: "-5554FU,T1"})

	_, err := s.opponentTurn(context.Background())
	var illegal *IllegalMoveError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, "-5554FU", illegal.Move)
	assert.Equal(t, 1, s.record.Len())
}

func TestOpponentTurnConnectionClosed(t *testing.T) {
	s := opponentSession(t, &fakeSearcher{})
	s.client.cfg.Ponder = false
	s.queue.push(Event{Flag: FlagClosed})

	done, err := s.opponentTurn(context.Background())
	assert.True(t, done)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFloodgateComment(t *testing.T) {
	pos := shogi.NewPosition()
	m1, _ := shogi.ParseUSIMove("7g7f", pos)
	next := pos.Clone()
	require.NoError(t, next.Apply(m1))
	m2, _ := shogi.ParseUSIMove("3c3d", next)

	res := &usi.Result{Score: 120, PV: []shogi.Move{m1, m2}}
	assert.Equal(t, ",'* 120 -3334FU", floodgateComment(m1, shogi.Black, res))
	assert.Equal(t, ",'* -120 +3334FU", floodgateComment(m1, shogi.White, res))
	assert.Equal(t, ",'* 0", floodgateComment(m1, shogi.Black, &usi.Result{}))
}
