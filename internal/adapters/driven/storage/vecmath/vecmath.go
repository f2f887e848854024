// Package vecmath holds the vector helpers shared by the index adapters
// that score candidates in process.
package vecmath

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is
// the zero vector. The vectors must have equal length.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Rounding can push identical vectors just past 1.
	return math.Max(-1, math.Min(1, s))
}

// CheckDimensions fails with a configuration error when the vector length
// is not want.
func CheckDimensions(op string, vector []float32, want int) error {
	if len(vector) == want {
		return nil
	}
	return &domain.ConfigurationError{
		Op:  op,
		Err: fmt.Errorf("%w: got %d, index expects %d", domain.ErrDimensionMismatch, len(vector), want),
	}
}

// CheckRecords runs CheckDimensions over every record of a batch.
func CheckRecords(op string, records []domain.IndexRecord, want int) error {
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%s: %w: record without id", op, domain.ErrInvalidInput)
		}
		if err := CheckDimensions(op, r.Vector, want); err != nil {
			return err
		}
	}
	return nil
}

// Encode packs a vector as little-endian float32 values.
func Encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// Decode unpacks a vector written by Encode.
func Decode(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: vector blob of %d bytes", domain.ErrMalformed, len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}

// Rank sorts results by descending score, breaking ties by document and
// ordinal, and keeps at most topK.
func Rank(results []domain.SearchResult, topK int) []domain.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.Document != b.Chunk.Document {
			return a.Chunk.Document.String() < b.Chunk.Document.String()
		}
		return a.Chunk.Ordinal < b.Chunk.Ordinal
	})
	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
