package embeddings

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"math"
	"strings"
)

// DefaultDimensions matches the dimension the original hash embedder
// produced, so existing vector blobs stay comparable.
const DefaultDimensions = 384

// HashEmbedder derives a deterministic pseudo-embedding from MD5 and
// SHA-256 digests of the input text. It has no external dependency and
// never fails, which makes it the fallback of last resort when no real
// embedding model is reachable.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder returns a HashEmbedder producing vectors of dim
// dimensions. dim <= 0 falls back to DefaultDimensions.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Name() string    { return "hash" }
func (h *HashEmbedder) Dimensions() int { return h.dim }

// Embed concatenates the text's MD5 and SHA-256 digests, cycles through
// the resulting bytes to fill the target dimension, maps each byte from
// [0,255] to [-1,1], and L2-normalizes the result. Text is lowercased
// and trimmed first, so equivalent inputs always produce an identical
// vector.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	md5Sum := md5.Sum([]byte(normalized))
	sha := sha256.Sum256([]byte(normalized))
	digest := append(md5Sum[:], sha[:]...)

	vec := make([]float32, h.dim)
	for i := 0; i < h.dim; i++ {
		b := digest[i%len(digest)]
		vec[i] = float32(b)/127.5 - 1.0
	}
	normalize(vec)
	return vec, nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// normalize L2-normalizes vec in place. A zero vector is left untouched.
func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
}
