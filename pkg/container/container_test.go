package container

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func TestDetector(t *testing.T) {
	t.Run("bare host", func(t *testing.T) {
		assert.Empty(t, Detector{Root: t.TempDir(), Getenv: noEnv}.Detect())
	})

	t.Run("kubernetes env", func(t *testing.T) {
		env := func(key string) string {
			if key == "KUBERNETES_SERVICE_HOST" {
				return "10.0.0.1"
			}
			return ""
		}
		assert.Equal(t, "kubernetes", Detector{Root: t.TempDir(), Getenv: env}.Detect())
	})

	t.Run("dockerenv file", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, ".dockerenv"), nil, 0o600))
		assert.Equal(t, "docker", Detector{Root: root, Getenv: noEnv}.Detect())
	})

	t.Run("cgroup", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "proc", "1")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "cgroup"), []byte("0::/system.slice/containerd.service\n"), 0o600))
		assert.Equal(t, "containerd", Detector{Root: root, Getenv: noEnv}.Detect())
	})
}

func TestIsLoopbackHost(t *testing.T) {
	for host, want := range map[string]bool{
		"localhost": true,
		"127.0.0.1": true,
		"127.0.1.1": true,
		"::1":       true,
		"0.0.0.0":   false,
		"":          false,
		"10.0.0.5":  false,
	} {
		assert.Equal(t, want, IsLoopbackHost(host), host)
	}
}
