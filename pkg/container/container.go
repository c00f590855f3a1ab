package container

import (
	"os"
	"path/filepath"
	"strings"
)

// Detector looks for the usual signs of running inside a container. Root
// and Getenv are swappable so the checks can run against a fake filesystem.
type Detector struct {
	Getenv func(string) string
	Root   string
}

// Detect checks the real filesystem and environment
func Detect() string {
	return Detector{Root: "/", Getenv: os.Getenv}.Detect()
}

// Detect returns what gave the container away, empty when nothing did
func (d Detector) Detect() string {
	if d.Getenv != nil && d.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "kubernetes"
	}
	if _, err := os.Stat(filepath.Join(d.Root, ".dockerenv")); err == nil {
		return "docker"
	}

	data, err := os.ReadFile(filepath.Join(d.Root, "proc", "1", "cgroup"))
	if err != nil {
		return ""
	}
	for _, runtime := range []string{"kubepods", "docker", "containerd", "libpod"} {
		if strings.Contains(string(data), runtime) {
			return runtime
		}
	}
	return ""
}

// IsLoopbackHost is true for bind hosts nothing outside the container can reach
func IsLoopbackHost(host string) bool {
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasPrefix(host, "127.")
}
