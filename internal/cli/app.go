package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/MidnightGrind/ghost/internal/codec"
	"github.com/MidnightGrind/ghost/internal/config"
	"github.com/MidnightGrind/ghost/internal/database"
	"github.com/MidnightGrind/ghost/internal/logging"
	intotel "github.com/MidnightGrind/ghost/internal/otel"
	"github.com/MidnightGrind/ghost/internal/remote"
	"github.com/MidnightGrind/ghost/internal/storage"
	"github.com/MidnightGrind/ghost/internal/storage/memory"
	pgstorage "github.com/MidnightGrind/ghost/internal/storage/postgres"
	sqlitestorage "github.com/MidnightGrind/ghost/internal/storage/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type globalOptions struct {
	configDir  string
	storageDir string
	catalog    string
	logLevel   string
}

func (o *globalOptions) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.configDir, "config", ".", "directory containing "+config.ConfigFileName)
	cmd.PersistentFlags().StringVar(&o.storageDir, "storage-dir", "", "ghost store directory (overrides storage.dir)")
	cmd.PersistentFlags().StringVar(&o.catalog, "catalog", "", "catalog backend: none, memory, sqlite, postgres (overrides catalog.type)")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level (overrides logLevel)")
}

// app holds everything a command needs. Build it with newApp and Close it
// when the command returns.
type app struct {
	logger  *slog.Logger
	slog    *logging.SlogManager
	otel    *intotel.Provider
	logFile *os.File
	gelf    *gelf.Writer
	zlog    zerolog.Logger

	db      *database.Manager
	catalog storage.Catalog
	codec   *codec.Codec
	store   *storage.Store
}

func newApp(opts *globalOptions) (_ *app, err error) {
	a := &app{slog: logging.NewSlogManager(), codec: codec.Default()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	configErr := config.Load(opts.configDir)
	if configErr != nil {
		config.SetDefaults()
	}
	if opts.storageDir != "" {
		viper.Set("storage.dir", opts.storageDir)
	}
	if opts.catalog != "" {
		viper.Set("catalog.type", opts.catalog)
	}
	if opts.logLevel != "" {
		viper.Set("logLevel", opts.logLevel)
	}

	if err := a.setupLogging(); err != nil {
		return nil, err
	}
	if configErr != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", configErr)
	}

	a.catalog, err = a.openCatalog(config.GetCatalogConfig())
	if err != nil {
		return nil, err
	}

	storeOpts := []storage.Option{
		storage.WithCodec(a.codec),
		storage.WithLogger(a.logger),
	}
	if a.catalog != nil {
		storeOpts = append(storeOpts, storage.WithCatalog(a.catalog))
	}
	a.store, err = storage.Open(config.GetStorageConfig().Dir, storeOpts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) setupLogging() error {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}
	path := logging.FilePath(logsDir, time.Now(), os.Getpid())
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	a.logFile = file
	a.zlog = zerolog.New(file).With().Timestamp().Logger()

	a.otel, err = intotel.New(config.GetOTelConfig(), file)
	if err != nil {
		return fmt.Errorf("failed to initialize OTel provider: %w", err)
	}

	var setupOpts []logging.SetupOption
	if gc := config.GetGraylogConfig(); gc.Enabled {
		a.gelf, err = logging.NewGraylogWriter(gc.Address)
		if err != nil {
			return fmt.Errorf("failed to connect to graylog: %w", err)
		}
		setupOpts = append(setupOpts, logging.WithGraylog(a.gelf))
	}

	a.slog.Setup(file, viper.GetString("logLevel"), a.otel.LoggerProvider(), setupOpts...)
	a.logger = a.slog.Logger()
	a.logger.Info("Logging to file", "path", path)
	return nil
}

func (a *app) openCatalog(cfg config.CatalogConfig) (storage.Catalog, error) {
	var cat storage.Catalog
	switch cfg.Type {
	case "", "none":
		return nil, nil

	case "memory":
		cat = memory.New(cfg.Memory)

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.DumpPath,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite catalog: %w", err)
		}
		cat = backend

	case "postgres":
		a.db = database.NewManager(a.zlog)
		if err := a.db.ConnectPostgres(cfg.Postgres); err != nil {
			return nil, err
		}
		cat = pgstorage.New(pgstorage.Dependencies{
			DB:     a.db.DB,
			Config: cfg.Postgres,
			Logger: a.logger,
		})

	default:
		return nil, fmt.Errorf("unknown catalog type %q", cfg.Type)
	}

	if err := cat.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s catalog: %w", cfg.Type, err)
	}
	a.logger.Info("Catalog initialized", "type", cfg.Type)
	return cat, nil
}

func (a *app) remoteClient() (*remote.Client, error) {
	cfg := config.GetRemoteConfig()
	if !cfg.Enabled {
		return nil, errors.New("remote.enabled is false")
	}
	return remote.New(cfg, a.codec)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.catalog != nil {
		errs = append(errs, a.catalog.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.otel != nil {
		errs = append(errs, a.otel.Shutdown(context.Background()))
	}
	if a.gelf != nil {
		errs = append(errs, a.gelf.Close())
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
	}
	return errors.Join(errs...)
}

// withApp builds the app, runs fn and closes the app again.
func withApp(opts *globalOptions, fn func(a *app) error) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid ghost id %q: %w", s, err)
	}
	return id, nil
}
