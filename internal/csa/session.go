package csa

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/csa-client/internal/result"
	"github.com/park285/csa-client/internal/shogi"
	"github.com/park285/csa-client/internal/timemgr"
	"github.com/park285/csa-client/pkg/gamedto"
)

// session is the state of one connection, from dial to disconnect.
type session struct {
	client *Client
	conn   *Conn
	queue  *eventQueue
	rules  []rule
	id     string
	log    *zap.Logger

	status    endStatus
	specialMu sync.Mutex
	special   string

	summary *GameSummary
	record  *shogi.Record
	clocks  [2]timemgr.RemainingTime
	me      shogi.Color
	started bool
	start   time.Time
}

func newSession(c *Client, conn *Conn, id string, log *zap.Logger) *session {
	s := &session{
		client: c,
		conn:   conn,
		queue:  newEventQueue(log),
		id:     id,
		log:    log,
	}
	s.rules = newRules(s.handleSummary)
	return s
}

// receive is the receiver goroutine. It ends when the stream does and always
// leaves a FlagClosed event behind.
func (s *session) receive() error {
	defer s.queue.push(Event{Flag: FlagClosed})
	for {
		line, err := s.conn.Receive()
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		r, ok := matchRule(s.rules, line)
		if !ok {
			s.log.Warn("unrecognized line", zap.String("line", line))
			continue
		}
		ev := Event{Flag: r.flag, Line: line}
		if r.flag&EndMask != 0 {
			s.status.add(r.flag)
		}
		if r.flag == FlagMoveEx {
			s.setSpecial(line)
		}
		if r.handler != nil {
			if err := r.handler(&ev); err != nil {
				if errors.Is(err, ErrClosed) {
					return nil
				}
				return err
			}
		}
		s.queue.push(ev)
	}
}

func (s *session) handleSummary(ev *Event) error {
	sum, err := parseSummary(s.conn, s.log)
	if err != nil {
		return err
	}
	ev.Summary = sum
	return nil
}

func (s *session) setSpecial(line string) {
	s.specialMu.Lock()
	s.special = line
	s.specialMu.Unlock()
}

func (s *session) lastSpecial() string {
	s.specialMu.Lock()
	defer s.specialMu.Unlock()
	return s.special
}

func (s *session) run(ctx context.Context) error {
	if err := s.login(ctx); err != nil {
		return err
	}
	s.client.setState(StateLoggedIn, s.log)
	defer s.logout(ctx)

	if err := s.negotiate(ctx); err != nil {
		return err
	}
	err := s.play(ctx)
	s.client.setState(StateFinished, s.log)
	return err
}

func (s *session) send(line string) error {
	if err := s.conn.SendLine(line); err != nil {
		return &ConnectionError{Message: "send", Cause: err}
	}
	return nil
}

func (s *session) login(ctx context.Context) error {
	user := s.client.cfg.User
	if err := s.send("LOGIN " + user + " " + s.client.cfg.Password); err != nil {
		return err
	}
	ev := s.queue.waitReceive(ctx, FlagLoginOK|FlagLoginIncorrect)
	switch {
	case ev.Flag&FlagLoginOK != 0:
		s.log.Info("logged in", zap.String("user", user))
		return nil
	case ev.Flag&FlagLoginIncorrect != 0:
		return &LoginError{User: user, Reason: "incorrect"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return &LoginError{User: user, Reason: "no response"}
}

func (s *session) logout(ctx context.Context) {
	if err := s.conn.SendLine("LOGOUT"); err != nil {
		s.log.Debug("logout not sent", zap.Error(err))
		return
	}
	if ev := s.queue.waitReceive(ctx, FlagLogout); ev.Flag == 0 {
		s.log.Debug("no logout acknowledgement")
		return
	}
	s.log.Info("logged out")
}

func (s *session) negotiate(ctx context.Context) error {
	s.client.setState(StateNegotiating, s.log)

	ev := s.queue.waitReceive(ctx, FlagSummary)
	if ev.Flag == 0 {
		return s.closedErr(ctx, "waiting for game summary")
	}
	sum := ev.Summary
	if sum == nil || sum.Err != nil {
		var cause error = ErrInvalidSummary
		if sum != nil {
			cause = sum.Err
		}
		if err := s.conn.SendLine("REJECT"); err != nil {
			s.log.Debug("reject not sent", zap.Error(err))
		}
		return &ProtocolError{Line: ev.Line, Cause: cause}
	}
	s.summary = sum
	s.log.Info("game summary",
		zap.String("game_id", sum.GameID),
		zap.String("black", sum.BlackName),
		zap.String("white", sum.WhiteName),
		zap.Stringer("my_color", sum.YourTurn),
		zap.Int("total_time", sum.Time[shogi.Black].Total),
		zap.Int("byoyomi", sum.Time[shogi.Black].Byoyomi))

	if err := s.send("AGREE"); err != nil {
		return err
	}
	ev = s.queue.waitReceive(ctx, FlagStart|FlagReject)
	switch {
	case ev.Flag&FlagStart != 0:
	case ev.Flag&FlagReject != 0:
		return &ProtocolError{Line: ev.Line, Cause: ErrGameRejected}
	default:
		return s.closedErr(ctx, "waiting for start")
	}
	if id := ev.Line[len("START:"):]; id != sum.GameID {
		s.log.Warn("start id differs from summary", zap.String("start", id), zap.String("summary", sum.GameID))
	}

	s.started = true
	s.start = time.Now()
	s.me = sum.YourTurn
	s.record = sum.Record.Clone()
	for c := shogi.Black; c <= shogi.White; c++ {
		s.clocks[c] = timemgr.New(sum.Time[c].Total, sum.Time[c].Byoyomi)
	}
	for i := 0; i < s.record.Len(); i++ {
		s.clocks[s.record.Mover(i)].Use(s.record.Elapsed(i))
	}

	if n, ok := s.client.searcher.(gameNotifier); ok {
		if err := n.NewGame(ctx); err != nil {
			s.log.Warn("engine new game failed", zap.Error(err))
		}
	}
	return nil
}

func (s *session) closedErr(ctx context.Context, while string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return &ProtocolError{Line: while, Cause: ErrClosed}
}

func (s *session) play(ctx context.Context) error {
	s.client.setState(StatePlaying, s.log)
	for {
		done, err := s.turn(ctx)
		if err != nil {
			return err
		}
		if done {
			s.log.Info("game over", zap.Strings("labels", Labels(s.status.load())))
			return nil
		}
	}
}

// finish runs after the receiver has been joined, so every end marker the
// server sent is in status.
func (s *session) finish(ctx context.Context) {
	labels := Labels(s.status.load())
	g := result.Game{
		ID:             s.summary.GameID,
		SessionID:      s.id,
		Black:          s.summary.BlackName,
		White:          s.summary.WhiteName,
		Mine:           s.me,
		Labels:         labels,
		Special:        s.lastSpecial(),
		Record:         s.record,
		Start:          s.start,
		End:            time.Now(),
		BlackRemaining: s.clocks[shogi.Black].Remaining,
		WhiteRemaining: s.clocks[shogi.White].Remaining,
	}

	if n, ok := s.client.searcher.(gameNotifier); ok {
		if out := g.Outcome(); out != gamedto.OutcomeUnknown {
			if err := n.GameOver(out); err != nil {
				s.log.Debug("engine gameover failed", zap.Error(err))
			}
		}
	}
	if s.client.recorder == nil {
		return
	}
	if err := s.client.recorder.Record(context.WithoutCancel(ctx), g); err != nil {
		s.log.Error("record game failed", zap.String("game_id", g.ID), zap.Error(err))
	}
}
