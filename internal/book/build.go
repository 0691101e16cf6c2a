package book

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/park285/csa-client/internal/shogi"
)

const defaultMaxPly = 24

// AddRecord replays rec from its initial position and adds each of the first
// maxPly moves under the hash of the position it was played from.
func (b *Book) AddRecord(rec *shogi.Record, maxPly int) error {
	if maxPly <= 0 {
		maxPly = defaultMaxPly
	}
	replay := shogi.NewRecord(rec.Initial())
	for i, m := range rec.Moves() {
		if i >= maxPly {
			break
		}
		b.Add(replay.Position().Hash(), m)
		if err := replay.Apply(m); err != nil {
			return fmt.Errorf("replay ply %d: %w", i+1, err)
		}
	}
	return nil
}

// AddRecordFile reads a CSA record file and adds its opening moves.
func (b *Book) AddRecordFile(path string, maxPly int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open record %q: %w", path, err)
	}
	defer f.Close()
	rec, _, err := shogi.ReadCSA(f)
	if err != nil {
		return fmt.Errorf("parse record %q: %w", path, err)
	}
	return b.AddRecord(rec, maxPly)
}

// ResolvePath returns the configured book path, falling back to the
// CSA_BOOK_PATH environment variable and then the default locations. An empty
// result means no book.
func ResolvePath(configured string) (string, error) {
	if configured != "" {
		if exists(configured) {
			return configured, nil
		}
		return "", fmt.Errorf("book file not found: %s", configured)
	}
	if envPath := os.Getenv("CSA_BOOK_PATH"); envPath != "" {
		if exists(envPath) {
			return envPath, nil
		}
		return "", fmt.Errorf("env CSA_BOOK_PATH points to missing file: %s", envPath)
	}
	for _, candidate := range defaultPaths() {
		if exists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

func defaultPaths() []string {
	return []string{
		"book.bin",
		filepath.Join("resources", "book", "book.bin"),
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
