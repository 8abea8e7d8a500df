package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/roelfdiedericks/ctxproxy/internal/assembler"
	"github.com/roelfdiedericks/ctxproxy/internal/breaker"
	"github.com/roelfdiedericks/ctxproxy/internal/classifier"
	"github.com/roelfdiedericks/ctxproxy/internal/config"
	"github.com/roelfdiedericks/ctxproxy/internal/cron"
	"github.com/roelfdiedericks/ctxproxy/internal/degradation"
	"github.com/roelfdiedericks/ctxproxy/internal/embeddings"
	"github.com/roelfdiedericks/ctxproxy/internal/forward"
	ctxhttp "github.com/roelfdiedericks/ctxproxy/internal/http"
	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
	"github.com/roelfdiedericks/ctxproxy/internal/memory"
	"github.com/roelfdiedericks/ctxproxy/internal/metrics"
	"github.com/roelfdiedericks/ctxproxy/internal/pipeline"
	"github.com/roelfdiedericks/ctxproxy/internal/providers"
	"github.com/roelfdiedericks/ctxproxy/internal/sanitizer"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/mattn/go-sqlite3"
)

// version is set by the release build via ldflags: -X main.version=...
var version = "dev"

// CLI defines the command-line interface.
type CLI struct {
	Debug bool `help:"Enable debug logging" short:"d"`
	Trace bool `help:"Enable trace logging" short:"t"`

	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Run the proxy server"`
	Version VersionCmd `cmd:"" help:"Show version"`
}

// ServeCmd runs the proxy in the foreground.
type ServeCmd struct {
	Config    string `help:"YAML config overlay path" short:"c" type:"path"`
	Providers string `help:"TOML provider-seed file path" short:"p" type:"path"`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (v *VersionCmd) Run() error {
	fmt.Println("ctxproxy", version)
	return nil
}

func (s *ServeCmd) Run(cli *CLI) error {
	logCfg := DefaultConfig()
	if cli.Trace {
		logCfg.Level = LevelTrace
	} else if cli.Debug {
		logCfg.Level = LevelDebug
	}
	Init(logCfg)

	configPath := config.ResolveDefaultPath(s.Config, "./ctxproxy.yaml", "./config.yaml")
	providersPath := config.ResolveDefaultPath(s.Providers, "./providers.toml")

	loadResult, err := config.Load(configPath, providersPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := loadResult.Config
	if lvl, ok := levelFromName(cfg.LogLevel); ok && !cli.Debug && !cli.Trace {
		SetLevel(lvl)
	}

	registry := providers.NewRegistry()
	for _, p := range loadResult.ProviderSeeds {
		registry.Add(p, false)
	}
	if _, ok := registry.Get("default"); !ok && cfg.LLM.BaseURL != "" {
		registry.Add(providers.Provider{
			ID:            "default",
			Name:          "default",
			BaseURL:       cfg.LLM.BaseURL,
			APIKey:        cfg.LLM.APIKey,
			DefaultModel:  cfg.LLM.Model,
			TimeoutSec:    cfg.RequestTimeoutSeconds,
			MaxRetries:    cfg.MaxRetries,
			ContextWindow: providers.DefaultContextWindow,
			Enabled:       true,
		}, true)
	}

	if providersPath != "" {
		watcher, err := config.NewWatcher(providersPath, registry)
		if err != nil {
			L_warn("config: failed to start provider hot-reload watcher", "error", err)
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	breakerCfg := breaker.DefaultConfig()
	breakerCfg.FailureThreshold = cfg.Breaker.FailureThreshold
	breakerCfg.RecoveryTimeout = time.Duration(cfg.Breaker.RecoveryTimeout) * time.Second
	breakers := breaker.NewRegistry(breakerCfg)

	degManager := degradation.NewManager()

	var retriever *memory.Retriever
	if cfg.Memory.Enabled {
		store, err := memory.CreateStore("sqlite", cfg.Memory.VectorDBPath)
		if err != nil {
			L_warn("memory: failed to open store, disabling memory", "error", err)
		} else {
			embedder := embeddings.CreateEmbedder(cfg.Memory.EmbeddingModel, embeddings.Options{Dimension: 256})
			retrieverCfg := memory.DefaultRetrieverConfig()
			retrieverCfg.DefaultTopK = cfg.Memory.MaxResults
			retriever = memory.NewRetriever(store, embedder, retrieverCfg)
			L_info("memory: retrieval augmentation enabled", "backend", "sqlite", "path", cfg.Memory.VectorDBPath)
		}
	}

	analyzer := metrics.NewAnalyzer(cfg.Optimization.Enabled)
	prom := metrics.NewPrometheusMetrics(prometheus.DefaultRegisterer)

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.OptimizationEnabled = cfg.Optimization.Enabled
	pipelineCfg.MemoryTopK = cfg.Memory.MaxResults

	assemblerCfg := assembler.DefaultConfig()
	assemblerCfg.PreserveLastN = cfg.Optimization.PreserveLastNMessages
	assemblerCfg.MaxHistoryTokens = cfg.Optimization.MaxHistoryTokens
	assemblerCfg.EnableSystemCleanup = cfg.Optimization.SystemPromptCleanup

	p := pipeline.New(
		pipelineCfg,
		sanitizer.New(),
		classifier.New(),
		assembler.New(assemblerCfg),
		registry,
		breakers,
		degManager,
		retriever,
		forward.New(),
		analyzer,
		prom,
	)

	scheduler := cron.New(cron.DefaultConfig(), breakers, registry)
	if err := scheduler.Start(); err != nil {
		L_warn("cron: failed to start housekeeping scheduler", "error", err)
	} else {
		defer scheduler.Stop()
	}

	srv := ctxhttp.NewServer(ctxhttp.Config{Listen: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}, ctxhttp.Deps{
		Pipeline:  p,
		Registry:  registry,
		Breakers:  breakers,
		Retriever: retriever,
		Analyzer:  analyzer,
	})

	if err := srv.Start(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	L_info("received signal, shutting down", "signal", sig)
	signal.Stop(sigCh)
	if err := srv.Stop(); err != nil {
		L_warn("http: error during shutdown", "error", err)
	}

	L_info("ctxproxy: stopped")
	return nil
}

func levelFromName(name string) (int, bool) {
	switch name {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return 0, false
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("ctxproxy"),
		kong.Description("Context-optimizing reverse proxy for OpenAI-compatible chat APIs."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
