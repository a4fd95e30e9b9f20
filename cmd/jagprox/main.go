// JagProx is a local Minecraft 1.8 relay. The game client connects to it
// instead of the server; it forwards every frame upstream while answering
// its own chat commands, tracking games and decorating the tab list.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/energizer-project/jagprox/internal/api"
	"github.com/energizer-project/jagprox/internal/cli"
	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/db"
	"github.com/energizer-project/jagprox/internal/directory"
	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/network"
	"github.com/energizer-project/jagprox/internal/relay"
	"github.com/energizer-project/jagprox/internal/scheduler"
	"github.com/energizer-project/jagprox/internal/telemetry"
	"github.com/energizer-project/jagprox/internal/util"
)

const (
	AppName    = "JagProx"
	AppVersion = "1.0.0"
	Banner     = `
     _             ____
    | | __ _  __ _|  _ \ _ __ _____  __
 _  | |/ _' |/ _' | |_) | '__/ _ \ \/ /
| |_| | (_| | (_| |  __/| | | (_) >  <
 \___/ \__,_|\__, |_|   |_|  \___/_/\_\
             |___/  v%s
`
)

// options are the command-line flags. Empty values leave the config
// file in charge.
type options struct {
	configDir string
	listen    string
	upstream  string
	logLevel  string
	noCLI     bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("jagprox", flag.ContinueOnError)
	fs.StringVar(&o.configDir, "config-dir", config.DefaultConfigDir, "directory holding config.yml")
	fs.StringVar(&o.listen, "listen", "", "address the game client connects to (overrides proxy.listen)")
	fs.StringVar(&o.upstream, "upstream", "", "server to relay to (overrides proxy.upstream)")
	fs.StringVar(&o.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	fs.BoolVar(&o.noCLI, "no-cli", false, "disable the interactive console")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return o, nil
}

// overrides turns the set flags into a runtime config override.
func (o options) overrides() func(*config.Settings) {
	return func(s *config.Settings) {
		if o.listen != "" {
			s.Proxy.Listen = o.listen
		}
		if o.upstream != "" {
			s.Proxy.Upstream = o.upstream
		}
		if o.logLevel != "" {
			s.Logging.Level = o.logLevel
		}
	}
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("starting JagProx")

	cfg, err := config.Load(opts.configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	cfg.Override(opts.overrides())

	logging := cfg.GetLogging()
	logCfg := util.LogConfig{
		Level:      logging.Level,
		Directory:  logging.Directory,
		MaxBackups: logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read credentials from the environment")
	}

	if cfg.IsFirstRun() && !opts.noCLI {
		log.Info().Msg("first run detected, launching setup wizard")
		if err := config.RunSetupWizard(cfg, secrets); err != nil {
			log.Fatal().Err(err).Msg("setup wizard failed")
		}
	}

	validation := config.Validate(cfg, secrets)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Str("path", cfg.Path()).Msg("configuration validation failed, please fix the errors above")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	database, err := db.Open(cfg.GetStorage().DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	goals := db.NewGoals(database)
	results := db.NewResults(database)
	statCache := db.NewStatCache(database)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()

	dir := directory.NewClient(cfg.GetDirectory(), secrets.HypixelAPIKey, AppVersion, statCache)
	if !dir.HasAPIKey() {
		log.Warn().Msg("HYPIXEL_API_KEY not set, stat commands will report errors")
	}
	presence := telemetry.NewPresencePublisher(cfg, bus)

	registry := relay.NewRegistry(relay.Options{
		Config:    cfg,
		Dialer:    network.NewUpstream(cfg, secrets),
		Directory: dir,
		Goals:     goals,
		Results:   results,
		Links:     dir,
		Presence:  presence,
		Bus:       bus,
		Logger:    util.ComponentLogger("relay"),
	})

	listener := network.NewTCPListener(cfg, registry)
	sched := scheduler.NewScheduler(cfg, statCache, results, presence)

	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	shutdownCh := make(chan struct{}, 1)

	bus.Subscribe(events.EventShutdown, "main.shutdown", func(context.Context, events.Event) error {
		select {
		case shutdownCh <- struct{}{}:
		default:
		}
		return nil
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := startWithRetry(ctx, "listener", listener.Start, 5); err != nil {
			errCh <- fmt.Errorf("listener: %w", err)
		}
	}()

	if cfg.GetAdmin().Enabled {
		apiServer := api.NewServer(cfg, bus, registry, results)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := startWithRetry(ctx, "admin API", apiServer.Start, 5); err != nil {
				log.Warn().Err(err).Msg("admin API failed after retries (non-fatal)")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := presence.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("presence publisher failed")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	if !opts.noCLI {
		console := cli.NewCLI(cfg, bus, registry, results)
		go console.Start(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-shutdownCh:
		log.Info().Msg("shutdown requested from console")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
	registry.Shutdown(drainCtx)
	drainCancel()

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("shutdown timed out after 15 seconds, forcing exit")
	}

	bus.Stop()
	log.Info().Msg("JagProx stopped")
}

// startWithRetry retries startFn on failure, typically a bind error left
// over from a previous run.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return nil
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("start failed, retrying in 3s...")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(3 * time.Second):
			}
		}
	}
	return lastErr
}
