// Command launcherd is the headless daemon entrypoint, replacing the
// teacher's Wails desktop shell (main.go, app.go) per spec.md §1's
// Non-goals: this binary wires every core component and exposes them
// over internal/httpapi, with no GUI, systray, or embedded frontend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tachyon-launcher/internal/cache"
	"tachyon-launcher/internal/config"
	"tachyon-launcher/internal/dlengine"
	"tachyon-launcher/internal/dlevents"
	"tachyon-launcher/internal/dlqueue"
	"tachyon-launcher/internal/envmanager"
	"tachyon-launcher/internal/fsio"
	"tachyon-launcher/internal/history"
	"tachyon-launcher/internal/hostapi"
	"tachyon-launcher/internal/httpapi"
	"tachyon-launcher/internal/httpport"
	"tachyon-launcher/internal/logger"
	"tachyon-launcher/internal/maintenance"
	"tachyon-launcher/internal/provider"
	"tachyon-launcher/internal/ratelimit"
	"tachyon-launcher/internal/storage"
)

const version = "1.0.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the daemon's CLI surface, grounded on
// bodaay-HuggingFaceModelDownloader's cobra root+serve command pair:
// persistent flags for the knobs a process manager or developer needs
// at launch, with `run` (also the default action) starting the daemon.
func newRootCmd() *cobra.Command {
	var dataDir string
	var apiPort int

	root := &cobra.Command{
		Use:           "launcherd",
		Short:         "Toolchain download engine and environment manager daemon",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (defaults to the OS per-user config dir)")
	root.PersistentFlags().IntVar(&apiPort, "api-port", 0, "Override the persisted host API port (0 = use stored setting)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the daemon (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), dataDir, apiPort)
		},
	}
	root.AddCommand(runCmd)
	root.RunE = runCmd.RunE

	return root
}

// run wires every component package into a running daemon and blocks
// until ctx is cancelled (SIGINT/SIGTERM), then shuts down in the
// reverse order of construction.
func run(ctx context.Context, dataDir string, apiPortOverride int) error {
	if dataDir == "" {
		dd, err := storage.DefaultDataDir()
		if err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
		dataDir = dd
	}

	store, err := storage.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	q, err := dlqueue.New(store)
	if err != nil {
		return fmt.Errorf("open download queue: %w", err)
	}
	cfg := config.NewManager(store)
	if apiPortOverride > 0 {
		if err := cfg.SetAPIPort(apiPortOverride); err != nil {
			return fmt.Errorf("set api port: %w", err)
		}
	}

	c := cache.New(store, cfg.GetCacheMaxSize(), time.Duration(cfg.GetCacheMaxAgeSeconds())*time.Second)
	h := history.New(store)

	httpClient := httpport.New(cfg.GetUserAgent())

	runner := fsio.NewRunner()
	reg := provider.NewRegistry()
	reg.Register(provider.NewRustupProvider(runner))
	reg.Register(provider.NewZigProvider(runner))
	reg.Register(provider.NewAdoptiumProvider(httpClient))
	reg.Register(provider.NewUvProvider(runner))
	envMgr := envmanager.New(reg, cfg)

	bus := dlevents.NewBroadcaster()
	log, err := logger.New(dataDir, os.Stdout, bus)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	limiter := ratelimit.New(cfg.GetGlobalSpeedLimit())
	engine := dlengine.New(log, q, c, h, httpClient, limiter, bus, cfg.GetMaxConcurrent(), 0)

	facade := hostapi.New(log, cfg, q, engine, c, h, envMgr, reg, limiter, bus)

	audit := httpapi.NewAuditLogger(log, dataDir)
	defer audit.Close()
	server := httpapi.New(facade, cfg, audit, log)

	upkeep := maintenance.New(log, c, envMgr)
	if err := upkeep.Start(); err != nil {
		return fmt.Errorf("start maintenance scheduler: %w", err)
	}
	defer upkeep.Stop()

	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()
	go engine.Run(engineCtx)

	log.Info("launcherd starting", "data_dir", dataDir, "version", version)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start(ctx) }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, draining")
	case err := <-serveErr:
		if err != nil {
			log.Error("host API server exited", "error", err)
		}
	}

	stopEngine()
	engine.Shutdown()
	return nil
}
