// Package mockapi serves a small in-process imitation of an Ollama-compatible
// inference API protected by a bearer token. It backs the test suite and the
// `llmprobe mock` command, so probes can be exercised without a GPU host.
package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"llmprobe/pkg/types"
)

// DefaultReply is streamed back for every prompt unless Options.Reply is set.
const DefaultReply = "Hello! I am a mock model answering from llmprobe."

// Options configures the mock server. The zero value serves one model,
// gemma3:1b, without authentication.
type Options struct {
	// Token required in "Authorization: Bearer <token>". Empty disables auth.
	Token string
	// Models advertised by /api/tags and accepted by generation endpoints.
	Models []string
	// Reply is the text every generation returns.
	Reply string
	// ChunkDelay is slept between streamed fragments.
	ChunkDelay time.Duration
	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
	// MaxBodyBytes limits request bodies; 0 means 1 MiB.
	MaxBodyBytes int64
	// Logger receives one line per request. Nil disables request logging.
	Logger *zerolog.Logger
}

type server struct {
	opts  Options
	seq   atomic.Int64
	start time.Time
}

// NewMux builds the router.
func NewMux(opts Options) http.Handler {
	if len(opts.Models) == 0 {
		opts.Models = []string{"gemma3:1b"}
	}
	if opts.Reply == "" {
		opts.Reply = DefaultReply
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	s := &server{opts: opts, start: time.Now()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if opts.Logger != nil {
		r.Use(requestLogger(*opts.Logger))
	}
	r.Use(MetricsMiddleware)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(opts.Token))
		r.Get("/api/tags", s.handleTags)
		r.Post("/api/generate", s.handleGenerate)
		r.Post("/v1/chat/completions", s.handleChat)
	})
	return r
}

func (s *server) knownModel(name string) bool { return slices.Contains(s.opts.Models, name) }

// fragments splits the reply into word-sized pieces that concatenate back to it.
func (s *server) fragments() []string { return strings.SplitAfter(s.opts.Reply, " ") }

func (s *server) pause(r *http.Request) bool {
	if s.opts.ChunkDelay <= 0 {
		return r.Context().Err() == nil
	}
	select {
	case <-time.After(s.opts.ChunkDelay):
		return true
	case <-r.Context().Done():
		return false
	}
}

func (s *server) handleTags(w http.ResponseWriter, r *http.Request) {
	out := types.TagsResponse{Models: make([]types.ModelInfo, 0, len(s.opts.Models))}
	for i, name := range s.opts.Models {
		out.Models = append(out.Models, types.ModelInfo{
			Name:       name,
			Model:      name,
			ModifiedAt: s.start.UTC().Format(time.RFC3339),
			Size:       int64(815_000_000 + i),
			Digest:     fmt.Sprintf("sha256:%064x", i+1),
			Details:    types.ModelDetails{Format: "gguf", Family: familyOf(name), QuantizationLevel: "Q4_K_M"},
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func familyOf(name string) string {
	base, _, _ := strings.Cut(name, ":")
	return base
}

// generateBody honors the native API default of stream=true when omitted.
type generateBody struct {
	types.GenerateRequest
	Stream *bool `json:"stream"`
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	var req generateBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeJSONError(w, http.StatusBadRequest, "model is required")
		return
	}
	if !s.knownModel(req.Model) {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("model '%s' not found", req.Model))
		return
	}
	created := time.Now().UTC().Format(time.RFC3339Nano)
	if req.Stream != nil && !*req.Stream {
		writeJSON(w, http.StatusOK, types.GenerateResponse{
			Model:      req.Model,
			CreatedAt:  created,
			Response:   s.opts.Reply,
			Done:       true,
			DoneReason: "stop",
			EvalCount:  len(s.fragments()),
		})
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	frags := s.fragments()
	for _, f := range frags {
		if !s.pause(r) {
			return
		}
		_ = enc.Encode(types.GenerateResponse{Model: req.Model, CreatedAt: created, Response: f})
		if flusher != nil {
			flusher.Flush()
		}
	}
	_ = enc.Encode(types.GenerateResponse{Model: req.Model, CreatedAt: created, Done: true, DoneReason: "stop", EvalCount: len(frags)})
	if flusher != nil {
		flusher.Flush()
	}
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	var req types.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOpenAIError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeOpenAIError(w, http.StatusBadRequest, "invalid_request_error", "messages must not be empty")
		return
	}
	if !s.knownModel(req.Model) {
		writeOpenAIError(w, http.StatusNotFound, "api_error", fmt.Sprintf("model %q not found, try pulling it first", req.Model))
		return
	}
	id := fmt.Sprintf("chatcmpl-%d", s.seq.Add(1))
	created := time.Now().Unix()
	if !req.Stream {
		prompt := 0
		for _, m := range req.Messages {
			prompt += len(strings.Fields(m.Content))
		}
		completion := len(s.fragments())
		writeJSON(w, http.StatusOK, types.ChatCompletionResponse{
			ID:      id,
			Object:  "chat.completion",
			Created: created,
			Model:   req.Model,
			Choices: []types.ChatChoice{{
				Index:        0,
				Message:      types.ChatMessage{Role: types.RoleAssistant, Content: s.opts.Reply},
				FinishReason: "stop",
			}},
			Usage: &types.Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion},
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	send := func(delta types.ChatDelta, finish *string) {
		b, _ := json.Marshal(types.ChatCompletionChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   req.Model,
			Choices: []types.ChatChunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
		})
		fmt.Fprintf(w, "data: %s\n\n", b)
		if flusher != nil {
			flusher.Flush()
		}
	}
	for i, f := range s.fragments() {
		if !s.pause(r) {
			return
		}
		d := types.ChatDelta{Content: f}
		if i == 0 {
			d.Role = types.RoleAssistant
		}
		send(d, nil)
	}
	stop := "stop"
	send(types.ChatDelta{}, &stop)
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}
