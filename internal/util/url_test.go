package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveURLPath(t *testing.T) {
	tests := []struct {
		name      string
		baseURL   string
		pathOrURL string
		expected  string
	}{
		{
			name:      "base with trailing slash, path with leading slash",
			baseURL:   "http://localhost:11434/ollama/",
			pathOrURL: "/api/chat",
			expected:  "http://localhost:11434/ollama/api/chat",
		},
		{
			name:      "base without trailing slash",
			baseURL:   "http://localhost:11434",
			pathOrURL: "/api/chat",
			expected:  "http://localhost:11434/api/chat",
		},
		{
			name:      "relative path",
			baseURL:   "http://localhost:11434/",
			pathOrURL: "v1/chat/completions",
			expected:  "http://localhost:11434/v1/chat/completions",
		},
		{
			name:      "absolute url wins",
			baseURL:   "http://localhost:11434/",
			pathOrURL: "http://other:9000/api/chat",
			expected:  "http://other:9000/api/chat",
		},
		{
			name:      "empty base",
			baseURL:   "",
			pathOrURL: "/api/chat",
			expected:  "/api/chat",
		},
		{
			name:      "empty path",
			baseURL:   "http://localhost:11434",
			pathOrURL: "",
			expected:  "http://localhost:11434",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveURLPath(tt.baseURL, tt.pathOrURL))
		})
	}
}
