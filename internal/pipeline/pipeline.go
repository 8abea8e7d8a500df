// Package pipeline orchestrates a single chat-completion request
// through sanitization, classification, context assembly, optional
// memory augmentation, and upstream forwarding.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roelfdiedericks/ctxproxy/internal/assembler"
	"github.com/roelfdiedericks/ctxproxy/internal/breaker"
	"github.com/roelfdiedericks/ctxproxy/internal/classifier"
	"github.com/roelfdiedericks/ctxproxy/internal/degradation"
	"github.com/roelfdiedericks/ctxproxy/internal/forward"
	"github.com/roelfdiedericks/ctxproxy/internal/memory"
	"github.com/roelfdiedericks/ctxproxy/internal/metrics"
	"github.com/roelfdiedericks/ctxproxy/internal/providers"
	"github.com/roelfdiedericks/ctxproxy/internal/sanitizer"
	"github.com/roelfdiedericks/ctxproxy/internal/types"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// Config tunes pipeline behavior beyond what its collaborators own.
type Config struct {
	OptimizationEnabled bool
	MemoryTopK          int
}

// DefaultConfig matches spec.md's defaults.
func DefaultConfig() Config {
	return Config{OptimizationEnabled: true, MemoryTopK: 3}
}

// Pipeline wires every stage together for a single request.
type Pipeline struct {
	cfg         Config
	sanitizer   *sanitizer.Sanitizer
	classifier  *classifier.Classifier
	assembler   *assembler.Assembler
	registry    *providers.Registry
	breakers    *breaker.Registry
	degradation *degradation.Manager
	retriever   *memory.Retriever // nil disables memory entirely
	forward     *forward.Client
	analyzer    *metrics.Analyzer
	prom        *metrics.PrometheusMetrics // nil disables Prometheus export
}

// New assembles a Pipeline from its collaborators. retriever and prom
// may be nil to disable memory augmentation / Prometheus export.
func New(cfg Config, s *sanitizer.Sanitizer, c *classifier.Classifier, a *assembler.Assembler,
	registry *providers.Registry, breakers *breaker.Registry, deg *degradation.Manager,
	retriever *memory.Retriever, fwd *forward.Client, analyzer *metrics.Analyzer, prom *metrics.PrometheusMetrics) *Pipeline {
	return &Pipeline{
		cfg: cfg, sanitizer: s, classifier: c, assembler: a,
		registry: registry, breakers: breakers, degradation: deg,
		retriever: retriever, forward: fwd, analyzer: analyzer, prom: prom,
	}
}

// Response is the result of a non-streaming Process call.
type Response struct {
	RequestID string
	Body      map[string]any
	Metrics   types.RequestMetrics
}

const memoryBreakerName = "memory"

// ErrBreakerOpen is returned when a provider's circuit breaker is open
// and the call is short-circuited before reaching forward.Send, per
// spec.md §7's breaker_open taxonomy entry.
type ErrBreakerOpen struct {
	Provider   string
	RecoveryIn time.Duration
}

func (e *ErrBreakerOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for provider %q", e.Provider)
}

// forwardWithBreaker gates a forward.Send call behind provider's circuit
// breaker, the same short-circuit/record pattern tryRetrieveMemory uses
// for the memory breaker, keyed by provider id instead of "memory" so
// upstream failures never contend with memory's breaker state.
func (p *Pipeline) forwardWithBreaker(ctx context.Context, provider providers.Provider, payload map[string]any, stream bool) (*http.Response, error) {
	b := p.breakers.GetOrCreate(provider.ID)
	if !b.CanExecute() {
		return nil, &ErrBreakerOpen{Provider: provider.ID, RecoveryIn: b.Config().RecoveryTimeout}
	}

	resp, err := p.forward.Send(ctx, provider, payload, stream)
	if err != nil {
		if _, permanent := err.(*forward.ErrUpstreamPermanent); !permanent {
			b.RecordFailure()
		} else {
			b.RecordSuccess()
		}
		return nil, err
	}

	b.RecordSuccess()
	return resp, nil
}

// Process runs steps 1-9 of the pipeline for a non-streaming request.
func (p *Pipeline) Process(ctx context.Context, req *types.ChatRequest) (*Response, error) {
	requestID := newRequestID()
	start := time.Now()

	original := cloneMessages(req.Messages)

	flags := p.sanitizer.Sanitize(req)
	intent := p.classifier.Classify(req)

	memoryContext := p.tryRetrieveMemory(ctx, requestID, intent, req)

	var optimized *types.ChatRequest
	if p.cfg.OptimizationEnabled {
		optimized = p.assembler.Assemble(req, intent, flags)
	} else {
		optimized = req
	}

	if memoryContext != "" {
		injectMemoryContext(optimized, memoryContext)
	}

	validateAssembly(requestID, original, optimized.Messages)

	provider, ok := p.registry.GetForModel(req.Model)
	if !ok {
		return nil, fmt.Errorf("internal: no provider available for model %q", req.Model)
	}

	payload := requestToPayload(optimized)
	resp, err := p.forwardWithBreaker(ctx, provider, payload, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("internal: decode upstream response: %w", err)
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	m := p.analyzer.AnalyzeRequest(requestID, req.Model, original, optimized.Messages, intent, elapsed)
	if p.prom != nil {
		p.prom.Observe(m)
	}

	L_info("pipeline: request processed", "request_id", requestID, "model", req.Model,
		"intent", intent, "tokens_saved", m.TokensSaved, "response_time_ms", elapsed)

	return &Response{RequestID: requestID, Body: body, Metrics: m}, nil
}

// Stream runs the same steps but tees the upstream SSE response to w,
// flushing after every chunk. Accounting is skipped for streaming
// responses per spec.md §4.5 step 8. Response headers are only
// committed once the upstream call actually succeeds, so a breaker-open
// or upstream error still surfaces as a normal HTTP error status
// instead of a half-written 200.
func (p *Pipeline) Stream(ctx context.Context, req *types.ChatRequest, w http.ResponseWriter, flusher http.Flusher) error {
	requestID := newRequestID()

	flags := p.sanitizer.Sanitize(req)
	intent := p.classifier.Classify(req)

	memoryContext := p.tryRetrieveMemory(ctx, requestID, intent, req)

	var optimized *types.ChatRequest
	if p.cfg.OptimizationEnabled {
		optimized = p.assembler.Assemble(req, intent, flags)
	} else {
		optimized = req
	}
	if memoryContext != "" {
		injectMemoryContext(optimized, memoryContext)
	}

	provider, ok := p.registry.GetForModel(req.Model)
	if !ok {
		return fmt.Errorf("internal: no provider available for model %q", req.Model)
	}

	payload := requestToPayload(optimized)
	resp, err := p.forwardWithBreaker(ctx, provider, payload, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	L_info("pipeline: streaming request forwarded", "request_id", requestID, "model", req.Model, "intent", intent)
	if err := forward.CopyStream(w, flusher, resp); err != nil {
		L_warn("pipeline: stream copy ended early", "request_id", requestID, "error", err)
	}
	return nil
}

// tryRetrieveMemory runs step 5: memory augmentation, gated on intent,
// retriever availability, and the memory breaker, with failures always
// swallowed.
func (p *Pipeline) tryRetrieveMemory(ctx context.Context, requestID string, intent types.Intent, req *types.ChatRequest) string {
	if intent != types.IntentRetrieval || p.retriever == nil {
		return ""
	}

	b := p.breakers.GetOrCreate(memoryBreakerName)
	if !b.CanExecute() {
		L_debug("pipeline: memory breaker open, skipping retrieval", "request_id", requestID)
		return ""
	}

	query, ok := lastUserContent(req)
	if !ok || query == "" {
		return ""
	}

	memCtx, err := p.retriever.RetrieveForContext(ctx, query, p.cfg.MemoryTopK)
	if err != nil {
		b.RecordFailure()
		p.degradation.RecordFailure(memoryBreakerName, err)
		L_warn("pipeline: memory retrieval failed, continuing without it", "request_id", requestID, "error", err)
		return ""
	}

	b.RecordSuccess()
	p.degradation.RecordSuccess(memoryBreakerName)
	return memCtx
}

// injectMemoryContext appends to an existing leading system message or
// inserts a new one at index 0, per spec.md §4.5 step 7.
func injectMemoryContext(req *types.ChatRequest, memoryContext string) {
	if len(req.Messages) > 0 && req.Messages[0].Role == types.RoleSystem {
		existing := req.Messages[0].ContentString()
		merged := existing + "\n\n" + memoryContext
		req.Messages[0].Content = &merged
		return
	}

	sysContent := memoryContext
	sysMsg := types.Message{Role: types.RoleSystem, Content: &sysContent}
	req.Messages = append([]types.Message{sysMsg}, req.Messages...)
}

// validateAssembly is the NEW step 6.5 output validator: a non-fatal
// assertion that a leading system message and the last message survive
// assembly. Violations are logged, not repaired.
func validateAssembly(requestID string, original, optimized []types.Message) {
	if len(original) == 0 {
		return
	}

	if original[0].Role == types.RoleSystem {
		if len(optimized) == 0 || optimized[0].Role != types.RoleSystem {
			L_error("pipeline: output validator: leading system message missing after assembly", "request_id", requestID)
		}
	}

	last := original[len(original)-1]
	if len(optimized) == 0 || optimized[len(optimized)-1].ContentString() != last.ContentString() {
		L_error("pipeline: output validator: last message not preserved after assembly", "request_id", requestID)
	}
}

func lastUserContent(req *types.ChatRequest) (string, bool) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == types.RoleUser {
			return req.Messages[i].ContentString(), true
		}
	}
	return "", false
}

func cloneMessages(msgs []types.Message) []types.Message {
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out
}

// requestToPayload converts a ChatRequest into the JSON map the
// forward client sends upstream.
func requestToPayload(req *types.ChatRequest) map[string]any {
	payload := make(map[string]any, len(req.Extra)+6)
	for k, v := range req.Extra {
		payload[k] = v
	}
	payload["model"] = req.Model
	payload["messages"] = messagesToJSON(req.Messages)
	payload["stream"] = req.Stream
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		payload["max_tokens"] = *req.MaxTokens
	}
	if req.Tools != nil {
		payload["tools"] = req.Tools
	}
	if req.ToolChoice != nil {
		payload["tool_choice"] = req.ToolChoice
	}
	return payload
}

func messagesToJSON(msgs []types.Message) []map[string]any {
	out := make([]map[string]any, len(msgs))
	for i, m := range msgs {
		entry := map[string]any{"role": string(m.Role)}
		for k, v := range m.Extra {
			entry[k] = v
		}
		if m.Content != nil {
			entry["content"] = *m.Content
		}
		if m.Name != "" {
			entry["name"] = m.Name
		}
		if m.ToolCalls != nil {
			entry["tool_calls"] = m.ToolCalls
		}
		if m.ToolCallID != "" {
			entry["tool_call_id"] = m.ToolCallID
		}
		out[i] = entry
	}
	return out
}

// newRequestID returns 8 hex chars from a fresh UUID, per spec.md
// §4.5 step 1.
func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
