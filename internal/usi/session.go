// Package usi drives an external shogi engine over the USI protocol.
package usi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/park285/csa-client/internal/shogi"
)

const (
	defaultReadyTimeout  = 10 * time.Second
	newGameRetryAttempts = 3
	newGameRetryDelay    = 150 * time.Millisecond
	stopDrainTimeout     = 2 * time.Second
	quitTimeout          = 2 * time.Second
	lineBuffer           = 256
)

var ErrEngineClosed = errors.New("usi: engine output closed")

type Config struct {
	Path string
	Args []string
	// Options are sent as "setoption name <k> value <v>" in key order.
	Options map[string]string
}

type Limits struct {
	Time     time.Duration
	Infinite bool
}

// Result is the outcome of a search. Score is in centipawns from the point of
// view of the side to move; mate scores are clamped to ±MateScore.
type Result struct {
	Move   shogi.Move
	Found  bool
	Resign bool
	Score  int
	Mate   bool
	PV     []shogi.Move
}

const MateScore = 30000

type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	logger *zap.Logger

	mu      sync.Mutex
	search  sync.Mutex
	running atomic.Bool

	resultMu sync.Mutex
	last     Result
}

func NewSession(ctx context.Context, cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("engine path required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.Command(cfg.Path, cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string, lineBuffer),
		logger: logger.With(zap.String("engine", cfg.Path)),
	}
	go s.readLoop(stdoutPipe)

	if err := s.initialize(ctx, cfg.Options); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) readLoop(r io.Reader) {
	defer close(s.lines)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			s.lines <- line
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("engine read failed", zap.Error(err))
			}
			return
		}
	}
}

func (s *Session) initialize(ctx context.Context, options map[string]string) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("usi"); err != nil {
		return fmt.Errorf("send usi: %w", err)
	}
	if err := s.awaitToken(initCtx, "usiok"); err != nil {
		return fmt.Errorf("wait usiok: %w", err)
	}
	if err := s.applyOptions(options); err != nil {
		return err
	}
	if err := s.send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) applyOptions(options map[string]string) error {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := s.send(fmt.Sprintf("setoption name %s value %s", k, options[k])); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) NewGame(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := s.EnsureReady(ctx)
		if err == nil {
			break
		}
		if attempt == newGameRetryAttempts {
			return err
		}
		s.logger.Warn("ensure ready retry before usinewgame",
			zap.Int("attempt", attempt), zap.Int("max", newGameRetryAttempts), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
	if err := s.send("usinewgame"); err != nil {
		return fmt.Errorf("send usinewgame: %w", err)
	}
	return nil
}

func (s *Session) GameOver(result string) error {
	if err := s.send("gameover " + result); err != nil {
		return fmt.Errorf("send gameover: %w", err)
	}
	return nil
}

// Search runs one search on the current position of rec. It is safe to call
// Interrupt from another goroutine while Search blocks.
func (s *Session) Search(ctx context.Context, rec *shogi.Record, limits Limits) (Result, error) {
	s.search.Lock()
	defer s.search.Unlock()

	if err := s.send(buildPositionCommand(rec)); err != nil {
		return Result{}, fmt.Errorf("send position: %w", err)
	}
	goCmd := buildGoCommand(limits)
	if err := s.send(goCmd); err != nil {
		return Result{}, fmt.Errorf("send go: %w", err)
	}
	s.running.Store(true)
	defer s.running.Store(false)

	searchCtx := ctx
	if !limits.Infinite {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, computeSearchTimeout(limits))
		defer cancel()
	}

	pos := rec.Position()
	var res Result
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			s.logger.Warn("search read failed", zap.String("go", goCmd), zap.Error(err))
			if !errors.Is(err, ErrEngineClosed) {
				s.drainAfterStop()
			}
			return Result{}, fmt.Errorf("read line: %w", err)
		}
		switch {
		case strings.HasPrefix(line, "info "):
			if info, ok := parseInfo(line); ok {
				res.Score, res.Mate = info.score, info.mate
				res.PV = convertPV(pos, info.pv)
			}
		case strings.HasPrefix(line, "bestmove"):
			finishBestMove(&res, line, pos)
			s.resultMu.Lock()
			s.last = res
			s.resultMu.Unlock()
			return res, nil
		}
	}
}

func finishBestMove(res *Result, line string, pos *shogi.Position) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return
	}
	switch parts[1] {
	case "resign":
		res.Resign = true
	case "win":
	default:
		if m, err := shogi.ParseUSIMove(parts[1], pos); err == nil {
			res.Move, res.Found = m, true
		}
	}
}

// drainAfterStop keeps the output in step after an abandoned search by
// stopping the engine and consuming its bestmove.
func (s *Session) drainAfterStop() {
	if err := s.send("stop"); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopDrainTimeout)
	defer cancel()
	_ = s.awaitToken(ctx, "bestmove")
}

func (s *Session) Interrupt() {
	if !s.running.Load() {
		return
	}
	if err := s.send("stop"); err != nil {
		s.logger.Debug("send stop failed", zap.Error(err))
	}
}

func (s *Session) IsRunning() bool { return s.running.Load() }

func (s *Session) LastResult() Result {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()
	return s.last
}

func (s *Session) Close() error {
	_ = s.send("quit")

	s.mu.Lock()
	if s.stdin != nil {
		s.stdin.Close()
	}
	s.mu.Unlock()

	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(quitTimeout):
		_ = s.cmd.Process.Kill()
		return <-done
	}
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug("engine <", zap.String("line", msg))
	_, err := io.WriteString(s.stdin, msg+"\n")
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", ErrEngineClosed
		}
		s.logger.Debug("engine >", zap.String("line", line))
		return line, nil
	}
}

func buildPositionCommand(rec *shogi.Record) string {
	var sb strings.Builder
	sb.WriteString("position sfen ")
	sb.WriteString(rec.Initial().SFEN())
	if moves := rec.Moves(); len(moves) > 0 {
		sb.WriteString(" moves")
		for _, m := range moves {
			sb.WriteByte(' ')
			sb.WriteString(shogi.FormatUSIMove(m))
		}
	}
	return sb.String()
}

func buildGoCommand(l Limits) string {
	if l.Infinite || l.Time <= 0 {
		return "go infinite"
	}
	return "go btime 0 wtime 0 byoyomi " + strconv.FormatInt(l.Time.Milliseconds(), 10)
}

func computeSearchTimeout(l Limits) time.Duration {
	return l.Time*3 + 2*time.Second
}

type info struct {
	score int
	mate  bool
	pv    []string
}

func parseInfo(line string) (info, bool) {
	parts := strings.Fields(line)
	var (
		out   info
		found bool
	)
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "score":
			if i+2 >= len(parts) {
				continue
			}
			kind, val := parts[i+1], parts[i+2]
			i += 2
			switch kind {
			case "cp":
				if v, err := strconv.Atoi(val); err == nil {
					out.score, out.mate, found = v, false, true
				}
			case "mate":
				out.mate, found = true, true
				// "mate +" and "mate -" carry no distance.
				if strings.HasPrefix(val, "-") {
					out.score = -MateScore
				} else {
					out.score = MateScore
				}
			}
		case "pv":
			out.pv = append([]string(nil), parts[i+1:]...)
			i = len(parts)
		}
	}
	return out, found && len(out.pv) > 0
}

func convertPV(pos *shogi.Position, pv []string) []shogi.Move {
	p := pos.Clone()
	out := make([]shogi.Move, 0, len(pv))
	for _, tok := range pv {
		m, err := shogi.ParseUSIMove(tok, p)
		if err != nil {
			break
		}
		if err := p.Apply(m); err != nil {
			break
		}
		out = append(out, m)
	}
	return out
}
