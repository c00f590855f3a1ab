package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corral-proxy/corral/internal/app"
	"github.com/corral-proxy/corral/internal/config"
	"github.com/corral-proxy/corral/internal/logger"
	"github.com/corral-proxy/corral/internal/version"
	"github.com/corral-proxy/corral/pkg/container"
	"github.com/corral-proxy/corral/pkg/format"
	"github.com/corral-proxy/corral/pkg/nerdstats"
	"github.com/corral-proxy/corral/pkg/profiler"
)

var profileAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proxy (default command)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&profileAddr, "profile", "", "serve pprof on this address, e.g. localhost:6060")
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	version.PrintVersionInfo(false, log.New(cmd.OutOrStdout(), "", 0))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lcfg := buildLoggerConfig(cfg)
	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		return fmt.Errorf("failed to initialise logger: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logInstance)

	styledLogger.Info("Initialising", "version", version.Version, "pid", os.Getpid(), "config", cfg.Filename)

	if kind := container.Detect(); kind != "" {
		styledLogger.Info("Running in a container", "detected", kind)
		if container.IsLoopbackHost(cfg.Server.Host) {
			styledLogger.Warn("Server is bound to a loopback address, it will not be reachable from outside the container",
				"host", cfg.Server.Host, "hint", "set server.host to 0.0.0.0")
		}
	}

	if profileAddr != "" {
		prof, err := profiler.Start(profileAddr)
		if err != nil {
			return err
		}
		styledLogger.Warn("Profiler enabled", "address", "http://"+prof.Addr()+"/debug/pprof/")
		defer func() {
			if err := prof.Stop(context.Background()); err != nil {
				styledLogger.Error("Profiler shutdown error", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(startTime, cfg, lcfg.LevelVar, styledLogger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		styledLogger.Info("Shutdown signal received")
	case serveErr = <-application.Errors():
		styledLogger.Error("Server stopped unexpectedly", "error", serveErr)
	}
	stop()

	if err := application.Stop(context.Background()); err != nil {
		styledLogger.Error("Error during shutdown", "error", err)
	}

	reportProcessStats(styledLogger, startTime, application.ExpectedWorkers())
	styledLogger.Info("Corral has shutdown")
	return serveErr
}

func buildLoggerConfig(cfg *config.Config) *logger.Config {
	return &logger.Config{
		Level:      cfg.Logging.Level,
		FileOutput: cfg.Logging.FileOutput,
		LogDir:     cfg.Logging.LogDir,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Theme:      cfg.Logging.Theme,
	}
}

func reportProcessStats(styled logger.StyledLogger, startTime time.Time, expectedWorkers int) {
	runtime.GC()

	stats := nerdstats.Snapshot(startTime)

	styled.Info("Process Memory Stats",
		"heap_alloc", format.Bytes(stats.HeapAlloc),
		"heap_sys", format.Bytes(stats.HeapSys),
		"heap_inuse", format.Bytes(stats.HeapInuse),
		"heap_released", format.Bytes(stats.HeapReleased),
		"stack_inuse", format.Bytes(stats.StackInuse),
		"total_alloc", format.Bytes(stats.TotalAlloc),
		"memory_pressure", stats.MemoryPressure(),
	)

	styled.Info("Process Allocation Stats",
		"total_mallocs", stats.Mallocs,
		"total_frees", stats.Frees,
		"net_objects", stats.NetObjects(),
	)

	if stats.NumGC > 0 {
		styled.Info("Garbage Collection Stats",
			"num_gc_cycles", stats.NumGC,
			"last_gc", stats.LastGC.Format(time.RFC3339),
			"total_gc_time", format.Duration(stats.TotalGCTime),
			"avg_gc_pause", format.Duration(stats.AverageGCPause()),
			"gc_cpu_fraction", fmt.Sprintf("%.4f%%", stats.GCCPUFraction*100),
		)
	}

	if build := stats.BuildSummary(); len(build) > 0 {
		keys := make([]string, 0, len(build))
		for key := range build {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		buildArgs := make([]any, 0, len(keys)*2)
		for _, key := range keys {
			buildArgs = append(buildArgs, key, build[key])
		}
		styled.Info("Build Info", buildArgs...)
	}

	styled.Info("Process Health Summary",
		"memory_pressure", stats.MemoryPressure(),
		"goroutines", stats.NumGoroutines,
		"goroutine_status", stats.GoroutineStatus(expectedWorkers),
		"uptime", format.Duration(stats.Uptime),
		"go_version", stats.GoVersion,
	)
}
