package security

import (
	"encoding/json"
	"net/http"

	"github.com/corral-proxy/corral/internal/core/constants"
)

// writeError answers in the same error envelope the chat endpoints use so
// OpenAI SDKs surface the message
func writeError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    errType,
			"code":    status,
		},
	})
}
