package mockapi

import (
	"encoding/json"
	"net/http"

	"llmprobe/pkg/types"
)

// writeJSONError writes the native {"error": "..."} payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

// writeOpenAIError writes the {"error": {"message": ...}} payload used by /v1.
func writeOpenAIError(w http.ResponseWriter, status int, typ, msg string) {
	var body types.OpenAIErrorResponse
	body.Error.Message = msg
	body.Error.Type = typ
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
