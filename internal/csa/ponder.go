package csa

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/park285/csa-client/internal/shogi"
	"github.com/park285/csa-client/internal/usi"
)

const ponderStopInterval = 20 * time.Millisecond

// ponderTask is an unbounded search over the opponent's thinking time. The
// record must not change until stop returns.
type ponderTask struct {
	searcher Searcher
	done     chan struct{}
}

func startPonder(ctx context.Context, searcher Searcher, rec *shogi.Record, log *zap.Logger) *ponderTask {
	t := &ponderTask{searcher: searcher, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		res, err := searcher.Search(ctx, rec, usi.Limits{Infinite: true})
		if err != nil {
			log.Debug("ponder ended", zap.Error(err))
			return
		}
		log.Debug("ponder result", zap.Bool("found", res.Found), zap.Int("score", res.Score))
	}()
	return t
}

// stop interrupts the search and waits for its goroutine. The interrupt is
// repeated until the goroutine exits, since the search may not have started
// when the first one was raised.
func (t *ponderTask) stop() {
	tick := time.NewTicker(ponderStopInterval)
	defer tick.Stop()
	for {
		t.searcher.Interrupt()
		select {
		case <-t.done:
			return
		case <-tick.C:
		}
	}
}
