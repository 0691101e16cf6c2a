package csa

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/csa-client/internal/shogi"
	"github.com/park285/csa-client/internal/timemgr"
	"github.com/park285/csa-client/internal/usi"
)

// turn plays one ply. done reports that the game is over.
func (s *session) turn(ctx context.Context) (done bool, err error) {
	if s.record.Position().Turn() == s.me {
		return s.ownTurn(ctx)
	}
	return s.opponentTurn(ctx)
}

func moveFlag(c shogi.Color) Flag {
	if c == shogi.White {
		return FlagMoveWhite
	}
	return FlagMoveBlack
}

// decision is the move chosen for the current ply and what the engine
// thought of it.
type decision struct {
	move   shogi.Move
	source string
	search *usi.Result
}

func (s *session) decide(ctx context.Context) (decision, error) {
	pos := s.record.Position()
	if b := s.client.book; b != nil {
		if res := b.SelectRandom(pos.Hash()); res.Found() {
			if err := pos.Validate(res.Move); err == nil {
				return decision{move: res.Move, source: "book"}, nil
			}
			s.log.Warn("book move rejected", zap.Stringer("move", res.Move))
		}
	}
	if s.client.searcher == nil {
		return decision{}, &SearchFailure{}
	}
	budget := timemgr.Budget(s.clocks[s.me], s.client.cfg.Time)
	s.log.Debug("search", zap.Duration("budget", budget), zap.Int("remaining", s.clocks[s.me].Remaining))
	res, err := s.client.searcher.Search(ctx, s.record, usi.Limits{Time: budget})
	if err != nil {
		return decision{}, &SearchFailure{Cause: err}
	}
	if !res.Found {
		return decision{}, &SearchFailure{}
	}
	return decision{move: res.Move, source: "search", search: &res}, nil
}

func (s *session) resign() {
	if err := s.conn.SendLine("%TORYO"); err != nil {
		s.log.Warn("resign not sent", zap.Error(err))
	}
}

func (s *session) ownTurn(ctx context.Context) (bool, error) {
	d, err := s.decide(ctx)
	if err != nil {
		s.log.Warn("no move, resigning", zap.Error(err))
		s.resign()
		return true, err
	}
	text := shogi.FormatCSAMove(d.move, s.me)
	if err := s.record.Apply(d.move); err != nil {
		s.resign()
		return true, &IllegalMoveError{Move: text, Own: true, Cause: err}
	}

	line := text
	if s.client.cfg.Verbose && d.search != nil {
		line += floodgateComment(d.move, s.me, d.search)
	}
	s.log.Info("own move", zap.String("move", text), zap.String("source", d.source), zap.Int("ply", s.record.Len()))
	if err := s.send(line); err != nil {
		return true, err
	}

	ev := s.queue.waitReceive(ctx, moveFlag(s.me)|EndMask)
	switch {
	case ev.Flag&moveFlag(s.me) != 0:
		tok, sec, _ := shogi.SplitMoveLine(ev.Line)
		if tok != text {
			return true, &ProtocolError{Line: ev.Line, Cause: &IllegalMoveError{Move: text, Own: true}}
		}
		s.clocks[s.me].Use(sec)
		return false, nil
	case ev.Flag&EndMask != 0:
		return true, nil
	}
	return true, s.closedErr(ctx, "waiting for own move echo")
}

func (s *session) opponentTurn(ctx context.Context) (bool, error) {
	opp := s.me.Opp()
	var p *ponderTask
	if s.client.cfg.Ponder && s.client.searcher != nil {
		p = startPonder(ctx, s.client.searcher, s.record, s.log)
	}

	ev := s.queue.waitReceive(ctx, moveFlag(opp)|EndMask)
	if p != nil {
		p.stop()
	}

	switch {
	case ev.Flag&moveFlag(opp) != 0:
		tok, sec, _ := shogi.SplitMoveLine(ev.Line)
		m, err := shogi.ParseCSAMove(tok, s.record.Position())
		if err != nil {
			return true, &IllegalMoveError{Move: tok, Cause: err}
		}
		if err := s.record.Apply(m); err != nil {
			return true, &IllegalMoveError{Move: tok, Cause: err}
		}
		s.clocks[opp].Use(sec)
		s.log.Info("opponent move", zap.String("move", tok), zap.Int("sec", sec), zap.Int("ply", s.record.Len()))
		return false, nil
	case ev.Flag&EndMask != 0:
		return true, nil
	}
	return true, s.closedErr(ctx, "waiting for opponent move")
}

// floodgateComment renders ",'* <value> <pv>" with the value from black's
// point of view and the PV continuing after the move itself.
func floodgateComment(move shogi.Move, mover shogi.Color, res *usi.Result) string {
	value := res.Score
	if mover == shogi.White {
		value = -value
	}
	var sb strings.Builder
	sb.WriteString(",'* ")
	sb.WriteString(strconv.Itoa(value))
	pv := res.PV
	if len(pv) > 0 && pv[0] == move {
		pv = pv[1:]
	}
	c := mover.Opp()
	for _, m := range pv {
		sb.WriteByte(' ')
		sb.WriteString(shogi.FormatCSAMove(m, c))
		c = c.Opp()
	}
	return sb.String()
}
