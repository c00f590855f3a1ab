package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBytes(t *testing.T) {
	assert.Equal(t, "0B", Bytes(0))
	assert.Equal(t, "512B", Bytes(512))
	assert.Equal(t, "1.5KiB", Bytes(1536))
	assert.Equal(t, "10MiB", Bytes(10*1024*1024))
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 1*time.Minute + 9*time.Second, "2h1m9s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Duration(tt.in))
	}
}

func TestPercentageAndLatency(t *testing.T) {
	assert.Equal(t, "0%", Percentage(0))
	assert.Equal(t, "100%", Percentage(100))
	assert.Equal(t, "66.7%", Percentage(66.666))

	assert.Equal(t, "0ms", Latency(0))
	assert.Equal(t, "7ms", Latency(7))
	assert.Equal(t, "950ms", Latency(950))
	assert.Equal(t, "2.5s", Latency(2500))
}

func TestBackendsUp(t *testing.T) {
	assert.Equal(t, "2/3", BackendsUp(2, 3))
	assert.Equal(t, "12/15", BackendsUp(12, 15))
}

func TestTimeAgo(t *testing.T) {
	assert.Equal(t, "never", TimeAgo(time.Time{}))
	assert.Equal(t, "3 minutes ago", TimeAgo(time.Now().Add(-3*time.Minute)))
}
