package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pokescout/internal/config"
	"pokescout/internal/db"
	"pokescout/internal/dispatch"
	"pokescout/internal/domain"
	"pokescout/internal/embedding"
	"pokescout/internal/explore"
	"pokescout/internal/gateway"
	"pokescout/internal/llm"
	"pokescout/internal/orchestrator"
	"pokescout/internal/pokeapi"
	"pokescout/internal/researchcache"
	"pokescout/internal/retry"
	"pokescout/internal/scheduler"
	"pokescout/internal/session"
	"pokescout/internal/tokenizer"
	"pokescout/internal/tooling"
)

// buildMeta holds version and build metadata (injectable via ldflags).
type buildMeta struct {
	Version string
	GoOS    string
	GoArch  string
}

func newBuildMeta(version, goos, goarch string) buildMeta {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return buildMeta{Version: version, GoOS: goos, GoArch: goarch}
}

func (m buildMeta) String() string {
	return fmt.Sprintf("pokescout %s %s/%s", m.Version, m.GoOS, m.GoArch)
}

func newRootCommand(bm buildMeta) *cobra.Command {
	root := &cobra.Command{
		Use:   "pokescout",
		Short: "Pokémon research service",
		Long:  "Pokescout is a tool-calling research service over the PokéAPI with cached answers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), bm.String())
				return nil
			}
			return runDaemon(cmd, daemonShutdownCh)
		},
	}
	root.Flags().BoolP("version", "V", false, "print version and build metadata")
	root.PersistentFlags().StringP("config", "c", "", "config file path (default pokescout.json, env POKESCOUT_CONFIG)")

	researchCmd := &cobra.Command{
		Use:   "research <query>",
		Short: "Run a one-shot research query and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runResearch,
	}
	root.AddCommand(researchCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired cache entries and print how many were removed",
		RunE:  runSweep,
	}
	root.AddCommand(sweepCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath(cmd)
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	root.AddCommand(initCmd)

	return root
}

// configPath resolves the config file path: flag, then env, then default.
func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	if p := os.Getenv("POKESCOUT_CONFIG"); p != "" {
		return p
	}
	return "pokescout.json"
}

// loadConfig loads the config file, falling back to defaults when it is absent.
func loadConfig(cmd *cobra.Command) (*domain.Config, string) {
	path := configPath(cmd)
	cfg, err := config.Load(path)
	if err != nil {
		return config.Default(), path
	}
	return cfg, path
}

// newLogger builds the process logger from config.
func newLogger(infra domain.InfraConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(infra.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(infra.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// components is the wired service graph shared by the daemon and the one-shot
// commands.
type components struct {
	db       *sql.DB
	research *orchestrator.Orchestrator
	semantic *researchcache.SemanticCache // nil for the exact strategy
	sessions *session.Store
	logger   *slog.Logger
}

// buildComponents wires the full service from config.
func buildComponents(cfg *domain.Config, logger *slog.Logger) (*components, error) {
	database, err := db.Connect(cfg.Cache.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	provider, err := llm.NewProvider(&cfg.Agent)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("reasoning provider: %w", err)
	}
	retryCfg := retry.FromDomain(cfg.Retry)
	if err := retryCfg.Validate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("retry config: %w", err)
	}
	reasoner := retry.NewRetryableProvider(provider, retryCfg)

	resources, err := pokeapi.NewResourceCache(database, time.Duration(cfg.Cache.ResourceTTLHours)*time.Hour)
	if err != nil {
		database.Close()
		return nil, err
	}
	pokedex := pokeapi.NewClient(resources)

	registry := tooling.NewRegistry()
	tools := append(tooling.PokedexTools(pokedex), tooling.NewCrossQueryTool(pokedex), tooling.NewArticleTool(nil))
	if err := registry.RegisterAll(tools...); err != nil {
		database.Close()
		return nil, fmt.Errorf("register tools: %w", err)
	}

	dispatchOpts := []dispatch.Option{dispatch.WithLogger(logger)}
	if tok, err := tokenizer.NewTikToken(cfg.Agent.Encoding); err != nil {
		// Results go out untruncated; the loop still works.
		logger.Warn("tokenizer unavailable, result truncation disabled", "encoding", cfg.Agent.Encoding, "error", err)
	} else {
		dispatchOpts = append(dispatchOpts, dispatch.WithTokenizer(tok, cfg.Agent.ResultTokens))
	}
	dispatcher := dispatch.NewDispatcher(database, registry, explore.NewExplorer(cfg.Agent.ExploreDepth), dispatchOpts...)

	var (
		store    researchcache.CacheStore
		semantic *researchcache.SemanticCache
	)
	switch cfg.Cache.Strategy {
	case "semantic":
		embedder := embedding.NewOllamaEmbedder(cfg.Cache.EmbedModel)
		semantic, err = researchcache.NewSemanticCache(database, embedder, cfg.Cache.SimilarityThreshold)
		if err != nil {
			database.Close()
			return nil, err
		}
		store = semantic
	default:
		store, err = researchcache.NewExactCache(database)
		if err != nil {
			database.Close()
			return nil, err
		}
	}

	research := orchestrator.New(reasoner, dispatcher, registry,
		orchestrator.WithCache(store),
		orchestrator.WithMaxIterations(cfg.Agent.MaxIterations),
		orchestrator.WithCacheTTL(time.Duration(cfg.Cache.TTLHours)*time.Hour),
		orchestrator.WithRequestTimeout(time.Duration(cfg.Agent.RequestTimeout)*time.Second),
		orchestrator.WithLogger(logger),
	)

	sessions, err := session.NewStore(database)
	if err != nil {
		database.Close()
		return nil, err
	}

	return &components{
		db:       database,
		research: research,
		semantic: semantic,
		sessions: sessions,
		logger:   logger,
	}, nil
}

// runDaemon starts the gateway, the sweep scheduler, and the config watcher,
// then blocks until shutdown. If shutdownCh is non-nil it returns when the
// channel closes (for tests); otherwise it blocks on OS signals.
func runDaemon(cmd *cobra.Command, shutdownCh <-chan struct{}) error {
	cfg, cfgPath := loadConfig(cmd)
	logger := newLogger(cfg.Infra)
	slog.SetDefault(logger)

	comps, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.db.Close()

	srv, err := gateway.NewServer(&cfg.Gateway, comps.research, comps.sessions, logger)
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler(scheduler.NewRobfigCronEngine(), scheduler.WithLogger(logger))
	if cfg.Cache.SweepSchedule != "" {
		err := sched.AddJob(scheduler.Job{
			ID:       "cache-sweep",
			Name:     "expired cache sweep",
			CronExpr: cfg.Cache.SweepSchedule,
			Run: func(ctx context.Context) error {
				removed, err := comps.research.SweepExpired(ctx)
				if err != nil {
					return err
				}
				logger.Info("cache sweep complete", "removed", removed)
				return nil
			},
		})
		if err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	// Threshold and TTL changes apply without a restart; everything else in
	// the file needs one.
	watcher := config.NewWatcher(cfgPath)
	if err := watcher.Start(func(updated *domain.Config) {
		comps.research.SetCacheTTL(time.Duration(updated.Cache.TTLHours) * time.Hour)
		if comps.semantic != nil {
			comps.semantic.SetThreshold(updated.Cache.SimilarityThreshold)
		}
		logger.Info("config reloaded",
			"ttl_hours", updated.Cache.TTLHours,
			"similarity_threshold", updated.Cache.SimilarityThreshold)
	}); err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else {
		defer watcher.Stop()
	}

	gatewayShutdown := make(chan struct{})
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Run(gatewayShutdown)
	}()

	// Wait until the server has bound so "ready" means clients can connect.
	var bound string
	for i := 0; i < daemonBindWaitIterations; i++ {
		if a := srv.Addr(); a != "" {
			bound = a
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if bound == "" {
		close(gatewayShutdown)
		if err := srv.ListenErr(); err != nil {
			return fmt.Errorf("gateway failed to bind: %w", err)
		}
		return fmt.Errorf("gateway failed to bind (check port or permissions)")
	}
	logger.Info("ready", "listen", bound, "strategy", cfg.Cache.Strategy, "model", cfg.Agent.Model)

	if shutdownCh != nil {
		<-shutdownCh
	} else {
		daemonWaitForShutdown()
	}
	close(gatewayShutdown)
	return <-serveDone
}

// runResearch answers one query from the command line and prints the result.
func runResearch(cmd *cobra.Command, args []string) error {
	cfg, _ := loadConfig(cmd)
	logger := newLogger(cfg.Infra)
	slog.SetDefault(logger)

	comps, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.db.Close()

	result := comps.research.Research(cmd.Context(), args[0])
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// runSweep removes expired cache entries once and exits.
func runSweep(cmd *cobra.Command, args []string) error {
	cfg, _ := loadConfig(cmd)
	logger := newLogger(cfg.Infra)

	comps, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.db.Close()

	removed, err := comps.research.SweepExpired(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", removed)
	return nil
}

func getVersion() string {
	if version != "" {
		return version
	}
	b, err := os.ReadFile("VERSION")
	if err != nil {
		return "dev"
	}
	return strings.TrimSpace(string(b))
}

// version is set at build time via ldflags, e.g.:
//
//	go build -ldflags "-X main.version=1.0.0" -o pokescout ./cmd/pokescout
var version string

// daemonShutdownCh is set by tests to unblock runDaemon without signals.
// Production leaves it nil.
var daemonShutdownCh <-chan struct{}

// daemonWaitForShutdown is set by init in main_signal.go so tests can inject
// a no-op.
var daemonWaitForShutdown func()

// daemonBindWaitIterations is the max loop count waiting for the gateway to
// bind. Tests may lower it to cover the bind-failure branch.
var daemonBindWaitIterations = 50

// runApp runs the root command with the given args and returns the exit code.
func runApp(args []string) int {
	bm := newBuildMeta(version, "", "")
	if bm.Version == "" {
		bm.Version = getVersion()
	}
	root := newRootCommand(bm)
	root.SetArgs(args[1:])
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
