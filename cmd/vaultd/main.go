package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"rebasevault/config"
	"rebasevault/core"
	"rebasevault/core/events"
	"rebasevault/core/genesis"
	"rebasevault/gateway/middleware"
	"rebasevault/native/rebase"
	"rebasevault/observability/logging"
	telemetry "rebasevault/observability/otel"
	"rebasevault/rpc"
	"rebasevault/storage"
	"rebasevault/storage/journal"
)

const (
	serviceName     = "vaultd"
	shutdownTimeout = 10 * time.Second
	eventHistory    = 1024
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		slog.Error("vaultd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configFile, genesisOverride string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv("VAULT_ENV")); override != "" {
		env = override
	}
	var logger *slog.Logger
	if strings.TrimSpace(cfg.LogFile) != "" {
		logger = logging.SetupWithFile(serviceName, env, logging.FileOptions{Path: cfg.LogFile})
	} else {
		logger = logging.Setup(serviceName, env)
	}

	providers, err := telemetry.Init(context.Background(), serviceName, env, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}
	dsn, err := journal.FileDSN(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("journal path: %w", err)
	}
	opJournal, err := journal.Open(dsn)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer opJournal.Close()

	recorder := events.NewRecorder(eventHistory)
	vault, err := core.New(db, vaultConfig(cfg),
		core.WithJournal(opJournal),
		core.WithEmitter(recorder),
		core.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("construct vault: %w", err)
	}
	defer vault.Close()

	genesisPath := cfg.GenesisFile
	if strings.TrimSpace(genesisOverride) != "" {
		genesisPath = genesisOverride
	}
	if err := ensureGenesis(context.Background(), vault, genesisPath, logger); err != nil {
		return err
	}

	handler, err := buildHandler(cfg, vault, recorder, logger)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("vaultd listening", slog.String("address", cfg.ListenAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("vaultd stopped")
	return nil
}

func vaultConfig(cfg *config.Config) core.Config {
	pools := make([]core.PoolConfig, 0, len(cfg.Pools))
	for _, pool := range cfg.Pools {
		pools = append(pools, core.PoolConfig{ID: pool.ID, PlainAsset: pool.PlainAsset, FeePPM: pool.FeePPM})
	}
	return core.Config{
		Token:  rebase.Metadata{Symbol: cfg.Token.Symbol, Name: cfg.Token.Name, Decimals: cfg.Token.Decimals},
		Pools:  pools,
		Pauses: cfg.PauseSet(),
	}
}

// ensureGenesis seeds a fresh database. A database that already carries a
// genesis ignores the file.
func ensureGenesis(ctx context.Context, vault *core.Vault, path string, logger *slog.Logger) error {
	applied, err := vault.Initialised(ctx)
	if err != nil {
		return fmt.Errorf("inspect genesis: %w", err)
	}
	if applied {
		return nil
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("database is empty and no genesis file is configured")
	}
	resolved, err := genesis.Load(path)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	if err := vault.ApplyGenesis(ctx, resolved); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("genesis applied",
		slog.String("file", path),
		slog.Int("assets", len(resolved.Assets)),
		slog.Int("deposits", len(resolved.Deposits)))
	return nil
}

func buildHandler(cfg *config.Config, vault *core.Vault, recorder *events.Recorder, logger *slog.Logger) (http.Handler, error) {
	var secret string
	if cfg.Auth.Enabled {
		resolved, err := cfg.Auth.ResolveHMACSecret()
		if err != nil {
			return nil, err
		}
		secret = resolved
	} else {
		if err := cfg.CheckExposure(); err != nil {
			return nil, err
		}
		logger.Warn("authentication disabled; callers are taken from the request header",
			slog.String("header", middleware.CallerHeader),
			slog.String("address", cfg.ListenAddress))
	}
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:        cfg.Auth.Enabled,
		HMACSecret:     secret,
		Issuer:         cfg.Auth.Issuer,
		Audience:       cfg.Auth.Audience,
		ScopeClaim:     cfg.Auth.ScopeClaim,
		OptionalPaths:  cfg.Auth.OptionalPaths,
		AllowAnonymous: cfg.Auth.AllowAnonymous,
		ClockSkew:      time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
	}, logger)

	limits := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for key, limit := range cfg.RateLimits {
		limits[key] = middleware.RateLimit{RequestsPerMinute: limit.RequestsPerMinute, Burst: limit.Burst}
	}

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName: serviceName,
		LogRequests: cfg.Telemetry.LogRequests,
		Enabled:     true,
	}, logger)

	server := rpc.NewServer(vault, recorder, logger)
	return server.Router(rpc.RouterConfig{
		ServiceName:   serviceName,
		Authenticator: auth,
		RateLimiter:   middleware.NewRateLimiter(limits, logger),
		Observability: obs,
		CORS:          middleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins},
	}), nil
}
