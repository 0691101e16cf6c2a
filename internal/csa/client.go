// Package csa plays shogi games against a CSA protocol server.
//
// A Client runs one connection per game. A receiver goroutine reads lines,
// classifies them and queues events; the caller's goroutine drives login,
// negotiation, the play loop and logout from that queue. During the
// opponent's turn an optional ponder search runs on a third goroutine and is
// always stopped before the opponent's move touches the record.
package csa

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/csa-client/internal/book"
	"github.com/park285/csa-client/internal/result"
	"github.com/park285/csa-client/internal/shogi"
	"github.com/park285/csa-client/internal/timemgr"
	"github.com/park285/csa-client/internal/usi"
)

// Searcher is the engine contract. Interrupt and IsRunning must be safe to
// call while Search blocks on another goroutine.
type Searcher interface {
	Search(ctx context.Context, rec *shogi.Record, limits usi.Limits) (usi.Result, error)
	Interrupt()
	IsRunning() bool
}

// gameNotifier is implemented by engines that want to hear about game
// boundaries.
type gameNotifier interface {
	NewGame(ctx context.Context) error
	GameOver(result string) error
}

type Recorder interface {
	Record(ctx context.Context, g result.Game) error
}

type Config struct {
	Dial     DialConfig
	User     string
	Password string
	// Repeat is the number of games to play; values below 1 mean 1.
	Repeat int
	Ponder bool
	// Verbose appends the evaluation and PV to each move as a comment.
	Verbose  bool
	Time     timemgr.Policy
	BookPath string
}

type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateLoggedIn
	StateNegotiating
	StatePlaying
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateLoggedIn:
		return "logged_in"
	case StateNegotiating:
		return "negotiating"
	case StatePlaying:
		return "playing"
	case StateFinished:
		return "finished"
	}
	return "disconnected"
}

type Client struct {
	cfg      Config
	searcher Searcher
	recorder Recorder
	logger   *zap.Logger

	bookOnce sync.Once
	book     *book.Book
	bookErr  error

	stateMu sync.Mutex
	state   State
}

type Option func(*Client)

// WithBook installs an already loaded book instead of reading BookPath.
func WithBook(b *book.Book) Option {
	return func(c *Client) {
		c.bookOnce.Do(func() { c.book = b })
	}
}

func New(cfg Config, searcher Searcher, recorder Recorder, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{cfg: cfg, searcher: searcher, recorder: recorder, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Client) setState(s State, log *zap.Logger) {
	c.stateMu.Lock()
	prev := c.state
	c.state = s
	c.stateMu.Unlock()
	if prev != s {
		log.Info("state", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

func (c *Client) loadBook() (*book.Book, error) {
	c.bookOnce.Do(func() {
		path, err := book.ResolvePath(c.cfg.BookPath)
		if err != nil {
			c.bookErr = err
			return
		}
		c.book, c.bookErr = book.Load(path)
		if c.bookErr == nil && path != "" {
			c.logger.Info("opening book loaded", zap.String("path", path), zap.Int("positions", c.book.Len()))
		}
	})
	return c.book, c.bookErr
}

// Execute plays the configured number of games. Connection and login
// failures end the run; any other game failure is logged and the next game
// starts.
func (c *Client) Execute(ctx context.Context) error {
	if _, err := c.loadBook(); err != nil {
		return fmt.Errorf("load book: %w", err)
	}
	repeat := max(c.cfg.Repeat, 1)
	for i := 1; i <= repeat; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.game(ctx, i)
		if err == nil {
			continue
		}
		if abortsRun(err) || errors.Is(err, context.Canceled) {
			return err
		}
		c.logger.Warn("game failed", zap.Int("game_no", i), zap.Error(err))
	}
	return nil
}

func (c *Client) game(ctx context.Context, n int) error {
	sessionID := uuid.NewString()
	log := c.logger.With(zap.String("session", sessionID), zap.Int("game_no", n))

	conn, err := Dial(ctx, c.cfg.Dial, log)
	if err != nil {
		return err
	}
	c.setState(StateConnected, log)

	s := newSession(c, conn, sessionID, log)
	var g errgroup.Group
	g.Go(s.receive)

	err = func() error {
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer func() {
			stop()
			conn.Close()
			if werr := g.Wait(); werr != nil {
				log.Debug("receiver stopped", zap.Error(werr))
			}
			c.setState(StateDisconnected, log)
		}()
		return s.run(ctx)
	}()

	if s.started {
		s.finish(ctx)
	}
	return err
}
