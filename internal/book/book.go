// Package book is a weighted opening book keyed by position hash.
package book

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/park285/csa-client/internal/shogi"
)

type Entry struct {
	Move  shogi.Move
	Count uint32
}

type element struct {
	entries []Entry
	total   uint32
}

// Result is the outcome of SelectRandom. The zero value means no book move.
type Result struct {
	Move  shogi.Move
	Count uint32
	Total uint32
}

func (r Result) Found() bool { return r.Count > 0 }

type Book struct {
	elements map[uint64]*element

	randMu sync.Mutex
	rand   *rand.Rand
}

type Option func(*Book)

func WithRand(r *rand.Rand) Option {
	return func(b *Book) { b.rand = r }
}

func New(opts ...Option) *Book {
	b := &Book{
		elements: make(map[uint64]*element),
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Book) Len() int { return len(b.elements) }

func (b *Book) Add(hash uint64, move shogi.Move) {
	b.addCount(hash, move, 1)
}

func (b *Book) addCount(hash uint64, move shogi.Move, n uint32) {
	if n == 0 {
		return
	}
	el, ok := b.elements[hash]
	if !ok {
		el = &element{}
		b.elements[hash] = el
	}
	el.total += n
	for i := range el.entries {
		if el.entries[i].Move == move {
			el.entries[i].Count += n
			return
		}
	}
	el.entries = append(el.entries, Entry{Move: move, Count: n})
}

func (b *Book) Lookup(hash uint64) []Entry {
	el, ok := b.elements[hash]
	if !ok {
		return nil
	}
	return slices.Clone(el.entries)
}

// SelectRandom draws a move with probability proportional to its count.
func (b *Book) SelectRandom(hash uint64) Result {
	el, ok := b.elements[hash]
	if !ok || el.total == 0 {
		return Result{}
	}
	b.randMu.Lock()
	r := uint32(b.rand.Int63n(int64(el.total)))
	b.randMu.Unlock()
	return b.pick(hash, r)
}

// pick walks the cumulative counts for hash and returns the first entry
// whose running sum exceeds r.
func (b *Book) pick(hash uint64, r uint32) Result {
	el, ok := b.elements[hash]
	if !ok || el.total == 0 {
		return Result{}
	}
	var sum uint32
	for _, e := range el.entries {
		sum += e.Count
		if sum > r {
			return Result{Move: e.Move, Count: e.Count, Total: el.total}
		}
	}
	return Result{}
}

// Filter keeps only the entries for which keep returns true. Positions left
// without moves are dropped.
func (b *Book) Filter(keep func(hash uint64, e Entry) bool) {
	for hash, el := range b.elements {
		kept := el.entries[:0]
		var total uint32
		for _, e := range el.entries {
			if keep(hash, e) {
				kept = append(kept, e)
				total += e.Count
			}
		}
		el.entries = kept
		el.total = total
		if total == 0 {
			delete(b.elements, hash)
		}
	}
}

func MinCount(n uint32) func(uint64, Entry) bool {
	return func(_ uint64, e Entry) bool { return e.Count >= n }
}

var ErrTruncated = errors.New("book: truncated record")

// Write serialises the book in ascending hash order. All integers are
// little-endian: hash (8), N (4), then N times move (4) and count (4).
func (b *Book) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	hashes := make([]uint64, 0, len(b.elements))
	for h := range b.elements {
		hashes = append(hashes, h)
	}
	slices.Sort(hashes)

	var buf [12]byte
	for _, h := range hashes {
		el := b.elements[h]
		binary.LittleEndian.PutUint64(buf[0:8], h)
		binary.LittleEndian.PutUint32(buf[8:12], uint32(len(el.entries)))
		if _, err := bw.Write(buf[:12]); err != nil {
			return fmt.Errorf("write book: %w", err)
		}
		for _, e := range el.entries {
			binary.LittleEndian.PutUint32(buf[0:4], e.Move.Encode())
			binary.LittleEndian.PutUint32(buf[4:8], e.Count)
			if _, err := bw.Write(buf[:8]); err != nil {
				return fmt.Errorf("write book: %w", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write book: %w", err)
	}
	return nil
}

func (b *Book) Read(r io.Reader) error {
	br := bufio.NewReader(r)
	var head [12]byte
	var body [8]byte
	for {
		if _, err := io.ReadFull(br, head[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return ErrTruncated
			}
			return fmt.Errorf("read book: %w", err)
		}
		hash := binary.LittleEndian.Uint64(head[0:8])
		n := binary.LittleEndian.Uint32(head[8:12])
		for i := uint32(0); i < n; i++ {
			if _, err := io.ReadFull(br, body[:]); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return ErrTruncated
				}
				return fmt.Errorf("read book: %w", err)
			}
			move := shogi.DecodeMove(binary.LittleEndian.Uint32(body[0:4]))
			b.addCount(hash, move, binary.LittleEndian.Uint32(body[4:8]))
		}
	}
}

// Load reads the book file at path. An empty path yields an empty book.
func Load(path string, opts ...Option) (*Book, error) {
	b := New(opts...)
	if path == "" {
		return b, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open book %q: %w", path, err)
	}
	defer f.Close()
	if err := b.Read(f); err != nil {
		return nil, fmt.Errorf("load book %q: %w", path, err)
	}
	return b, nil
}

func (b *Book) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create book dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create book %q: %w", path, err)
	}
	if err := b.Write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close book %q: %w", path, err)
	}
	return os.Rename(tmp, path)
}
