package types

// ModelDetails carries the descriptive metadata the server reports per model.
type ModelDetails struct {
	// Storage format, e.g. gguf.
	Format string `json:"format,omitempty"`
	// Model family (e.g., llama, gemma3, qwen2).
	Family string `json:"family,omitempty"`
	// Human-readable parameter count, e.g. 1B.
	ParameterSize string `json:"parameter_size,omitempty"`
	// Quantization level or variant string, e.g. Q4_K_M.
	QuantizationLevel string `json:"quantization_level,omitempty"`
}

// ModelInfo is one entry of the GET /api/tags listing.
type ModelInfo struct {
	// Name as used in requests, e.g. gemma3:1b.
	Name string `json:"name"`
	// Canonical model reference; usually equal to Name.
	Model string `json:"model,omitempty"`
	// Last modification time as reported by the server (RFC 3339).
	ModifiedAt string `json:"modified_at,omitempty"`
	// Size on disk in bytes.
	Size int64 `json:"size,omitempty"`
	// Content digest of the model manifest.
	Digest  string       `json:"digest,omitempty"`
	Details ModelDetails `json:"details,omitempty"`
}

// TagsResponse wraps the list of models returned by GET /api/tags.
type TagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// Names returns the model names in server order.
func (t TagsResponse) Names() []string {
	out := make([]string, 0, len(t.Models))
	for _, m := range t.Models {
		out = append(out, m.Name)
	}
	return out
}
