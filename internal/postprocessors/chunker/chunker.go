// Package chunker splits document text into overlapping, boundary-aware
// chunks.
//
// Sizes, overlap and lookback count characters (runes); spans are byte
// offsets into the UTF-8 text and always fall on rune boundaries. Trailing
// whitespace does not count toward a chunk's size. A cut prefers, within a
// lookback window before the size limit, the nearest blank line or
// sentence end. Source code additionally prefers function and class
// declarations found by codescan, and treats lines as indivisible: a line
// longer than the limit becomes one oversize chunk flagged in
// Chunk.Oversize.
package chunker

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/devrag-cli/internal/codescan"
	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// Defaults match the ingestion settings defaults.
const (
	DefaultMaxSize  = 1000
	DefaultOverlap  = 200
	DefaultLookback = 200
)

// chunkNamespace seeds deterministic chunk IDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("devrag/chunk"))

// ChunkID returns the deterministic ID of a document's chunk. Re-ingesting
// a document yields the same IDs for the same ordinals.
func ChunkID(key domain.DocumentKey, ordinal int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(key.String()+"#"+strconv.Itoa(ordinal))).String()
}

// Split chunks doc with the default lookback window.
func Split(doc domain.Document, maxSize, overlap int) ([]domain.Chunk, error) {
	p, err := New(WithMaxSize(maxSize), WithOverlap(overlap))
	if err != nil {
		return nil, err
	}
	return p.Split(&doc)
}

// piece is a chunk span before it is materialised.
type piece struct {
	start, end int
	overlap    int
	oversize   bool
}

// Split chunks one document. Empty text yields no chunks.
func (p *Processor) Split(doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, &domain.ChunkingError{Err: fmt.Errorf("%w: nil document", domain.ErrInvalidInput)}
	}
	text := doc.Text
	if !utf8.ValidString(text) {
		return nil, &domain.ChunkingError{Document: doc.Key.String(), Err: domain.ErrUndecodableText}
	}
	if text == "" {
		return nil, nil
	}

	var structural []int
	code := doc.IsCode()
	if code {
		if s, ok := codescan.For(doc.Language); ok {
			structural = codescan.Boundaries(s.Scan(text))
		}
	}

	pieces := p.pieces(text, code, structural)

	meta := domain.NewChunkMetadata(*doc)
	chunks := make([]domain.Chunk, len(pieces))
	for i, pc := range pieces {
		chunks[i] = domain.Chunk{
			ID:       ChunkID(doc.Key, i),
			Document: doc.Key,
			Ordinal:  i,
			Span:     domain.Span{Start: pc.start, End: pc.end},
			Overlap:  pc.overlap,
			Text:     text[pc.start:pc.end],
			Oversize: pc.oversize,
			Metadata: meta,
		}
	}
	return chunks, nil
}

func (p *Processor) pieces(text string, code bool, structural []int) []piece {
	offs := newRuneOffsets(text)
	n := len(text)
	out := make([]piece, 0, offs.runes()/(p.maxSize-p.overlap)+1)

	emit := func(start, end, shared int) {
		out = append(out, piece{start: start, end: end, overlap: shared, oversize: offs.size(text, start, end) > p.maxSize})
	}

	start, shared := 0, 0
	for {
		first := offs.runeAt(start)
		if first+p.maxSize >= offs.runes() {
			emit(start, n, shared)
			return out
		}
		limit := offs.byteAt(first + p.maxSize)

		cut := p.cut(text, offs, start, limit, code, structural)
		if cut >= n || isBlank(text[cut:]) {
			// The tail has nothing worth a chunk of its own.
			emit(start, n, shared)
			return out
		}
		emit(start, cut, shared)

		next := offs.byteAt(offs.runeAt(cut) - p.overlap)
		shared = cut - next
		start = next
	}
}

// cut picks the end of the chunk starting at start. limit is the offset
// maxSize runes past start. The returned cut is always more than overlap
// runes past start so the walk makes progress. It only exceeds limit when
// an indivisible unit crosses it.
func (p *Processor) cut(text string, offs runeOffsets, start, limit int, code bool, structural []int) int {
	minCut := offs.byteAt(offs.runeAt(start) + p.overlap + 1)
	windowStart := max(offs.byteAt(offs.runeAt(limit)-p.lookback), minCut)

	if windowStart <= limit {
		if code {
			if b, ok := lastWithin(structural, windowStart, limit); ok {
				return b
			}
		}
		if c, ok := lastTextBoundary(text, start, windowStart, limit, code); ok {
			return c
		}
	}

	if code {
		if i := strings.LastIndexByte(text[minCut-1:limit], '\n'); i >= 0 {
			return minCut + i
		}
		// The line crossing the limit is kept whole.
		if i := strings.IndexByte(text[limit:], '\n'); i >= 0 {
			if i == 0 {
				return limit
			}
			return limit + i + 1
		}
		return len(text)
	}
	return limit
}

// runeOffsets maps rune indices to byte offsets. The final entry is the
// text length.
type runeOffsets []int

func newRuneOffsets(text string) runeOffsets {
	offs := make(runeOffsets, 0, len(text)+1)
	for i := range text {
		offs = append(offs, i)
	}
	return append(offs, len(text))
}

func (o runeOffsets) runes() int {
	return len(o) - 1
}

// byteAt returns the offset of rune r, clamped to the text.
func (o runeOffsets) byteAt(r int) int {
	if r <= 0 {
		return 0
	}
	if r >= len(o) {
		return o[len(o)-1]
	}
	return o[r]
}

// runeAt returns the index of the rune starting at byte offset b.
func (o runeOffsets) runeAt(b int) int {
	return sort.SearchInts(o, b)
}

// size is the rune length of text[start:end] without trailing whitespace.
func (o runeOffsets) size(text string, start, end int) int {
	end = start + len(strings.TrimRightFunc(text[start:end], unicode.IsSpace))
	return o.runeAt(end) - o.runeAt(start)
}

// lastWithin returns the largest sorted offset in [lo, hi].
func lastWithin(offsets []int, lo, hi int) (int, bool) {
	for i := len(offsets) - 1; i >= 0; i-- {
		o := offsets[i]
		if o > hi {
			continue
		}
		if o >= lo {
			return o, true
		}
		break
	}
	return 0, false
}

// lastTextBoundary scans back from hi to lo for the nearest position that
// follows a blank line or a sentence end. In code only line ends qualify.
func lastTextBoundary(text string, start, lo, hi int, code bool) (int, bool) {
	for c := hi; c >= lo; c-- {
		if code && text[c-1] != '\n' {
			continue
		}
		if isBlankLineEnd(text, start, c) || isSentenceEnd(text, start, c) {
			return c, true
		}
	}
	return 0, false
}

// isBlankLineEnd reports whether c directly follows an empty line.
func isBlankLineEnd(text string, start, c int) bool {
	if c-2 < start || text[c-1] != '\n' {
		return false
	}
	if text[c-2] == '\n' {
		return true
	}
	return text[c-2] == '\r' && c-3 >= start && text[c-3] == '\n'
}

// isSentenceEnd reports whether c follows terminal punctuation and one
// whitespace byte.
func isSentenceEnd(text string, start, c int) bool {
	if c-2 < start {
		return false
	}
	switch text[c-1] {
	case ' ', '\n', '\t':
	default:
		return false
	}
	switch text[c-2] {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
