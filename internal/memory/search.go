package memory

import (
	"math"
	"strings"
)

// cosineSimilarity computes cosine similarity between two vectors of
// equal length; mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// buildFTSQuery converts a natural-language query into FTS5 MATCH
// syntax: each word becomes a prefix term, implicitly AND-ed.
func buildFTSQuery(query string) string {
	words := strings.Fields(query)
	if len(words) == 0 {
		return ""
	}

	var parts []string
	for _, word := range words {
		word = strings.ReplaceAll(word, "*", "")
		word = strings.ReplaceAll(word, "\"", "")
		word = strings.ReplaceAll(word, "'", "")
		word = strings.TrimSpace(word)
		if word != "" {
			parts = append(parts, word+"*")
		}
	}
	return strings.Join(parts, " ")
}
