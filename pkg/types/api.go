package types

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	// Model name as listed by /api/tags.
	Model string `json:"model"`
	// Prompt text to generate a completion for.
	Prompt string `json:"prompt"`
	// Optional system prompt overriding the model template default.
	System string `json:"system,omitempty"`
	// If true, the server replies with newline-delimited JSON chunks.
	Stream bool `json:"stream"`
	// Runtime options passed through to the model (temperature, num_predict, ...).
	Options map[string]any `json:"options,omitempty"`
}

// GenerateResponse is the non-streaming reply of POST /api/generate and also
// the shape of every streamed NDJSON chunk.
type GenerateResponse struct {
	Model     string `json:"model,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	// Generated text; an incremental fragment when streaming.
	Response string `json:"response"`
	// True on the final chunk.
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
	// Durations are in nanoseconds.
	TotalDuration   int64 `json:"total_duration,omitempty"`
	LoadDuration    int64 `json:"load_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
	EvalDuration    int64 `json:"eval_duration,omitempty"`
	// Set by the server when generation fails mid-stream.
	Error string `json:"error,omitempty"`
}

// ErrorResponse is the error payload used by the native API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// OpenAIErrorResponse is the error payload used by the /v1 endpoints.
type OpenAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type,omitempty"`
		Code    any    `json:"code,omitempty"`
	} `json:"error"`
}
