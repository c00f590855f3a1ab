package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/corral-proxy/corral/internal/core/constants"
)

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeJSONError uses the OpenAI error envelope so SDKs surface the message
func writeJSONError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]errorBody{
		"error": {Message: message, Type: errType},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
