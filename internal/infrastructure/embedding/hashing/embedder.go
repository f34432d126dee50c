// Package hashing embeds text by feature hashing. It needs no model server and
// is deterministic, which makes it the offline and test embedder.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	DefaultDimensions = 384

	tfSaturation = 1.2
)

type Embedder struct {
	dims int
}

func New(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}
}

func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, e.vector(t))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

// vector maps saturated term frequencies into a signed hashed space and
// normalizes to unit length. Text without tokens yields the zero vector.
func (e *Embedder) vector(text string) []float32 {
	termFreq := make(map[string]float64, 32)
	for _, token := range tokenize(text) {
		termFreq[token]++
	}

	acc := make([]float64, e.dims)
	for token, tf := range termFreq {
		weight := (tf * (tfSaturation + 1)) / (tf + tfSaturation)
		h := hashToken(token)
		idx := int(h % uint32(e.dims))
		if h&(1<<31) != 0 {
			weight = -weight
		}
		acc[idx] += weight
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	out := make([]float32, e.dims)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}

func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
