package server

import (
	"encoding/json"
	"net/http"

	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// errorBody is the error envelope returned for every failed request.
type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Kind      types.ErrorCode `json:"kind"`
	Message   string          `json:"message"`
	Retryable bool            `json:"retryable"`
}

// errorEnvelope builds the envelope for a classified error.
func errorEnvelope(err error) errorBody {
	code := types.CodeOf(err)
	return errorBody{
		Error: errorDetail{
			Kind:      code,
			Message:   err.Error(),
			Retryable: types.IsRetryable(err),
		},
	}
}

// writeJSON serializes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the error envelope with the status mapped from the
// error's code.
func writeError(w http.ResponseWriter, err error) {
	code := types.CodeOf(err)
	writeJSON(w, types.HTTPStatus(code), errorEnvelope(err))
}
