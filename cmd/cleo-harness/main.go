// Command cleo-harness is a CLI standing in for the mobile host app: it
// loads a CLEO engine against the local filesystem and exposes its state
// for manual exercise, the way a real host would wire the library in but
// without a real game process backing it (spec.md §5 "Lifecycle").
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/cleoruntime/cleo"
	"github.com/cleoruntime/cleo/internal/cheat"
	"github.com/cleoruntime/cleo/pkg/config"
	"github.com/cleoruntime/cleo/pkg/logging"
	"github.com/cleoruntime/cleo/pkg/metrics"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var (
	configFile    string
	catalogueRoot string
	metricsPort   int
	debugPort     int
)

func main() {
	root := &cobra.Command{
		Use:   "cleo-harness",
		Short: "Exercise a CLEO engine outside a real host process",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to an engine config file (optional)")
	root.PersistentFlags().StringVar(&catalogueRoot, "catalogue-root", "", "CLEO/ directory (default: ~/.cleo-harness/CLEO)")
	root.PersistentFlags().IntVar(&metricsPort, "metrics-port", 9090, "Prometheus metrics port")
	root.PersistentFlags().IntVar(&debugPort, "debug-port", 8090, "debug HTTP endpoint port")

	root.AddCommand(
		newRunCommand(),
		newCheatsCommand(),
		newScriptsCommand(),
		newStreamCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildEngine loads configuration, sets up logging and metrics, and
// constructs (but does not start) a cleo.Engine, following the teacher's
// config-load -> logger -> metrics -> service-struct order.
func buildEngine() (*cleo.Engine, *slog.Logger, *metrics.Registry, error) {
	root := catalogueRoot
	if root == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("resolve home directory: %w", err)
		}
		root = home + "/.cleo-harness/CLEO"
	}

	var cfg config.EngineConfig
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load config: %w", err)
		}
		cfg = *loaded
	}
	if cfg.CatalogueRoot != "" {
		root = cfg.CatalogueRoot
	}

	logger := logging.New("cleo-harness", logging.DefaultConfig(root))
	metricsRegistry := metrics.NewRegistry(version, buildTime, gitCommit, logger)

	if metricsPort > 0 {
		go func() {
			if err := metricsRegistry.StartMetricsServer(metricsPort); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	engine, err := cleo.New(cleo.Options{
		CatalogueRoot: root,
		Host:          cfg.Host,
		Streaming:     cfg.Streaming,
		Updater:       cfg.Updater,
		Version:       version,
		Logger:        logger,
		Metrics:       metricsRegistry,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build engine: %w", err)
	}

	engine.WithCheats(cheat.NewManager(sampleCheats(), nil, newMemoryBackingStore(), root+"/cheats.bin", false, logger))
	return engine, logger, metricsRegistry, nil
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the engine and block until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, logger, metricsRegistry, err := buildEngine()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := engine.Start(ctx); err != nil {
				return fmt.Errorf("start engine: %w", err)
			}

			debug := newDebugServer(debugPort, engine, logger)
			if err := debug.Start(); err != nil {
				logger.Error("debug server failed to start", "error", err)
			}

			logger.Info("cleo-harness running", "catalogue_root", engine.Catalogue.Root())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			logger.Info("shutting down")
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()

			if err := engine.Stop(stopCtx); err != nil {
				logger.Error("engine stop error", "error", err)
			}
			if err := debug.Stop(stopCtx); err != nil {
				logger.Error("debug server stop error", "error", err)
			}
			if err := metricsRegistry.StopMetricsServer(stopCtx); err != nil {
				logger.Error("metrics server stop error", "error", err)
			}
			return nil
		},
	}
}
