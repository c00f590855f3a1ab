package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	ansiSample  = "\x1b[31mError:\x1b[0m Something went \x1b[1;33mwrong\x1b[0m"
	strippedOut = "Error: Something went wrong"
)

func TestStripAnsiCodes(t *testing.T) {
	assert.Equal(t, strippedOut, stripAnsiCodes(ansiSample))
	assert.Equal(t, "plain", stripAnsiCodes("plain"))
}

func buildLargeAnsiInput(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(ansiSample)
	}
	return b.String()
}

func BenchmarkStripAnsiCodes_Large(b *testing.B) {
	large := buildLargeAnsiInput(1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		stripAnsiCodes(large)
	}
}
