package result

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/park285/csa-client/internal/shogi"
)

const (
	EncodingUTF8 = "utf-8"
	EncodingSJIS = "sjis"

	defaultRecordExt = "csa"
)

type Config struct {
	// CSVPath receives one row per game; empty disables it.
	CSVPath string
	// RecordDir receives <game id>.<RecordExt>; empty disables it.
	RecordDir string
	RecordExt string
	// Encoding of record files: utf-8 (default) or sjis.
	Encoding string
}

// Sink is an optional destination for finished games. Sink failures are
// logged and never fail Record.
type Sink interface {
	Name() string
	Save(ctx context.Context, g Game) error
}

type Recorder struct {
	cfg    Config
	sinks  []Sink
	logger *zap.Logger
	mu     sync.Mutex
}

func NewRecorder(cfg Config, logger *zap.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RecordExt == "" {
		cfg.RecordExt = defaultRecordExt
	}
	cfg.RecordExt = strings.TrimPrefix(cfg.RecordExt, ".")
	return &Recorder{cfg: cfg, sinks: sinks, logger: logger}
}

// Record writes the CSV row and the record file, then hands the game to the
// sinks.
func (r *Recorder) Record(ctx context.Context, g Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.cfg.CSVPath != "" {
		if err := appendRow(r.cfg.CSVPath, g); err != nil {
			errs = append(errs, err)
		}
	}
	if r.cfg.RecordDir != "" && g.Record != nil {
		path := r.RecordPath(g.ID)
		if err := writeRecordFile(path, g, r.cfg.Encoding); err != nil {
			errs = append(errs, err)
		} else {
			r.logger.Info("record saved", zap.String("game_id", g.ID), zap.String("path", path))
		}
	}
	for _, s := range r.sinks {
		if err := s.Save(ctx, g); err != nil {
			r.logger.Warn("result sink failed", zap.String("sink", s.Name()), zap.String("game_id", g.ID), zap.Error(err))
		}
	}
	return errors.Join(errs...)
}

func (r *Recorder) RecordPath(gameID string) string {
	return filepath.Join(r.cfg.RecordDir, safeName(gameID)+"."+r.cfg.RecordExt)
}

// Row is the CSV summary line for g.
func Row(g Game) []string {
	return []string{g.ID, g.Black, g.White, g.LabelText()}
}

func appendRow(path string, g Game) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open result csv: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Row(g)); err != nil {
		f.Close()
		return fmt.Errorf("write result csv: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write result csv: %w", err)
	}
	return f.Close()
}

func writeRecordFile(path string, g Game, encoding string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	var w io.Writer = f
	var enc io.WriteCloser
	if strings.EqualFold(encoding, EncodingSJIS) {
		enc = transform.NewWriter(f, japanese.ShiftJIS.NewEncoder())
		w = enc
	}
	if err := shogi.WriteCSA(w, g.Record, header(g)); err != nil {
		f.Close()
		return fmt.Errorf("write record: %w", err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			f.Close()
			return fmt.Errorf("encode record: %w", err)
		}
	}
	return f.Close()
}

func header(g Game) shogi.Header {
	h := shogi.Header{
		Event:  g.ID,
		Black:  g.Black,
		White:  g.White,
		Start:  g.Start,
		End:    g.End,
		Result: g.Special,
	}
	if len(g.Labels) > 0 {
		h.Comments = append(h.Comments, "result: "+g.LabelText())
	}
	h.Comments = append(h.Comments, fmt.Sprintf("remaining: +%d -%d", g.BlackRemaining, g.WhiteRemaining))
	return h
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %q: %w", dir, err)
	}
	return nil
}

// safeName keeps game ids usable as file names.
func safeName(id string) string {
	if id == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, id)
}
