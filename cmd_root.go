package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corral-proxy/corral/internal/config"
	"github.com/corral-proxy/corral/internal/version"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   version.ShortName,
	Short: version.Description,
	Long: `Corral is a reverse proxy and load balancer for LLM chat completions.

It accepts OpenAI style /v1/chat/completions requests and spreads them over
the configured backends, holding each backend to its concurrency limit,
failing over once on overload or server errors and tracking backend health.

Running corral with no command starts the server.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default config.yaml in . or ./config, or $"+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config, existing variables win")
}

// loadConfig reads the dotenv file then the config, the order API key
// references like ${OPENAI_API_KEY} need
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	return config.Load(cfgFile)
}
