package version

import (
	"fmt"
	"log"
	"runtime"
	"strings"

	"github.com/corral-proxy/corral/theme"
)

var (
	Name        = "corral"
	ShortName   = "corral"
	Authors     = "Corral Contributors"
	Description = "One chat-completions endpoint in front of many LLM backends"
	Version     = "v0.0.1"
	Commit      = "none"
	Date        = "nowish"
	User        = "local"
)

const (
	GithubHomeText  = "github.com/corral-proxy/corral"
	GithubHomeUri   = "https://github.com/corral-proxy/corral"
	GithubLatestUri = "https://github.com/corral-proxy/corral/releases/latest"
)

// Info is the payload served by the version endpoint
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	BuiltBy   string `json:"built_by"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		BuildDate: Date,
		BuiltBy:   User,
		GoVersion: runtime.Version(),
	}
}

// UserAgent is sent on every outbound backend request
func UserAgent() string {
	return Name + "/" + Version
}

func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	githubUri := theme.Hyperlink(GithubHomeUri, GithubHomeText)
	latestUri := theme.Hyperlink(GithubLatestUri, Version)
	padBuffer := fmt.Sprintf("%*s", 2, "")

	var b strings.Builder

	b.WriteString(theme.ColourSplash(`
╔──────────────────────────────────────────────────╗
│   ___ ___  _ __ _ __ __ _| |                     │
│  / __/ _ \| '__| '__/ _' | |                     │
│ | (_| (_) | |  | | | (_| | |                     │
│  \___\___/|_|  |_|  \__,_|_|                     │` + "\n"))

	b.WriteString(theme.ColourSplash("│ "))
	b.WriteString(theme.StyleUrl(githubUri))
	b.WriteString(padBuffer)
	b.WriteString(theme.ColourVersion(latestUri))
	b.WriteString("\n")
	b.WriteString(theme.ColourSplash("╚──────────────────────────────────────────────────╝"))

	if extendedInfo {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf(" Commit: %s\n", Commit))
		b.WriteString(fmt.Sprintf("  Built: %s\n", Date))
		b.WriteString(fmt.Sprintf("  Using: %s\n", User))
		b.WriteString(fmt.Sprintf("     Go: %s\n", runtime.Version()))
	}

	vlog.Println(b.String())
}
