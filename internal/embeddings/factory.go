package embeddings

import (
	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// Options configures CreateEmbedder.
type Options struct {
	OllamaURL string
	Dimension int
}

// CreateEmbedder builds an Embedder for the given model name:
//
//   - "noop"  -> NoopEmbedder, disables similarity search entirely.
//   - "hash"  -> HashEmbedder, deterministic and dependency-free.
//   - "" or any other name -> OllamaEmbedder using that model, which
//     itself falls back to hashing if Ollama can't be reached.
func CreateEmbedder(model string, opts Options) Embedder {
	switch model {
	case "noop":
		L_info("embeddings: using noop embedder")
		return NewNoopEmbedder(opts.Dimension)
	case "hash":
		L_info("embeddings: using hash embedder")
		return NewHashEmbedder(opts.Dimension)
	default:
		if model == "" {
			model = "nomic-embed-text"
		}
		url := opts.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		L_info("embeddings: using ollama embedder with hash fallback", "model", model, "url", url)
		return NewOllamaEmbedder(url, model, opts.Dimension)
	}
}
