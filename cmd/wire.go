package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/bnema/jellyfin-enrich/internal/adapters/hostclient"
	statusadapter "github.com/bnema/jellyfin-enrich/internal/adapters/render/status"
	"github.com/bnema/jellyfin-enrich/internal/adapters/scheduler"
	"github.com/bnema/jellyfin-enrich/internal/adapters/storage/chain"
	"github.com/bnema/jellyfin-enrich/internal/adapters/storage/memory"
	"github.com/bnema/jellyfin-enrich/internal/adapters/storage/sqlite"
	tomlstore "github.com/bnema/jellyfin-enrich/internal/adapters/storage/toml"
	"github.com/bnema/jellyfin-enrich/internal/application"
	"github.com/bnema/jellyfin-enrich/internal/config"
	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/evictcache"
	"github.com/bnema/jellyfin-enrich/internal/gateway"
	"github.com/bnema/jellyfin-enrich/internal/identity"
	"github.com/bnema/jellyfin-enrich/internal/ports"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const sqliteFile = "storage.db"

var errNoServer = errors.New("no server configured: run `jfe login --server URL` or set server.url")

type app struct {
	settings           config.Settings
	logger             *slog.Logger
	storage            ports.Storage
	session            *hostclient.Session
	resolver           *identity.Resolver
	catalog            *gateway.Catalog
	service            *application.Service
	serverURL          string
	httpClient         *http.Client
	statusRenderer     func(statusadapter.Status, statusadapter.RenderOptions) (string, error)
	annotationRenderer func([]application.Annotation, application.Attribute) (string, error)
	newDeviceID        func() string
	closers            []func() error
}

func (a *app) wire(cmd *cobra.Command, opts rootOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	v, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.serverURL != "" {
		v.Set(config.KeyServerURL, opts.serverURL)
	}
	settings, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	a.settings = settings
	a.logger = newLogger(cmd, opts.verbose)
	a.httpClient = http.DefaultClient
	a.statusRenderer = statusadapter.Render
	a.annotationRenderer = statusadapter.RenderAnnotations
	a.newDeviceID = uuid.NewString

	storage, err := a.openStorage(v)
	if err != nil {
		return err
	}
	a.storage = storage

	a.session = hostclient.NewSession(domain.Identity{})
	settings.Identity.Logger = a.logger
	resolver, err := identity.New(hostclient.Probe(a.session), storage, settings.Identity)
	if err != nil {
		return fmt.Errorf("wire identity resolver: %w", err)
	}
	a.resolver = resolver
	if id, err := resolver.Resolve(ctx); err == nil {
		a.session.Update(id)
	}

	a.serverURL = settings.ServerURL
	if a.serverURL == "" {
		if stored, err := storage.Get(ctx, application.ServerURLKey); err == nil {
			a.serverURL = stored
		}
	}

	client, err := gateway.New(resolver, gateway.Options{
		BaseURL:        a.serverURL,
		HTTPClient:     a.httpClient,
		RequestTimeout: settings.Gateway.Timeout,
		Instrument:     settings.Gateway.Instrument,
		Logger:         a.logger,
	})
	if err != nil {
		return fmt.Errorf("wire gateway: %w", err)
	}
	catalogOpts := settings.Gateway.Catalog
	catalogOpts.Logger = a.logger
	a.catalog = gateway.NewCatalog(client, catalogOpts)

	quality := evictcache.New[string](ctx, settings.Cache, storage,
		evictcache.WithScheduler(scheduler.NewDebounce(settings.FlushWait)),
		evictcache.WithLogger(a.logger),
	)
	sessionCfg := evictcache.SessionConfig()
	sessionCfg.HardMax = settings.Cache.HardMax
	sessionCfg.SoftCeiling = settings.Cache.SoftCeiling
	sessionCache := evictcache.New[string](ctx, sessionCfg, memory.NewStore(settings.Storage.QuotaBytes),
		evictcache.WithLogger(a.logger),
	)

	a.service = application.NewService(application.Deps{
		Identity:     resolver,
		Catalog:      a.catalog,
		Cache:        quality,
		SessionCache: sessionCache,
		Storage:      storage,
		Session:      a.session,
		Pipeline:     settings.Pipeline,
		ReadyWait:    settings.ReadyWait,
		Logger:       a.logger,
	})

	return nil
}

// openStorage builds the backend named by storage.backend. In chain mode
// storage.path names the TOML fallback and the database sits next to the
// config file.
func (a *app) openStorage(v *viper.Viper) (ports.Storage, error) {
	quota := a.settings.Storage.QuotaBytes

	switch a.settings.Storage.Backend {
	case config.BackendMemory:
		return memory.NewStore(quota), nil
	case config.BackendSQLite:
		path := a.settings.Storage.Path
		if path == "" {
			dir, err := config.Dir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, sqliteFile)
		}
		store, err := sqlite.Open(path, sqlite.WithQuota(quota))
		if err != nil {
			return nil, fmt.Errorf("wire sqlite storage: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.BackendChain:
		dir, err := config.Dir()
		if err != nil {
			return nil, err
		}
		primary, err := sqlite.Open(filepath.Join(dir, sqliteFile), sqlite.WithQuota(quota))
		if err != nil {
			return nil, fmt.Errorf("wire sqlite storage: %w", err)
		}
		a.closers = append(a.closers, primary.Close)
		fallback, err := tomlstore.NewStore(v)
		if err != nil {
			return nil, fmt.Errorf("wire toml storage: %w", err)
		}
		store, err := chain.NewStoreChecked(primary, fallback)
		if err != nil {
			return nil, fmt.Errorf("wire storage chain: %w", err)
		}
		return store, nil
	default:
		store, err := tomlstore.NewStore(v)
		if err != nil {
			return nil, fmt.Errorf("wire toml storage: %w", err)
		}
		return store, nil
	}
}

// close flushes the caches before the storage handles they write to.
func (a *app) close(ctx context.Context) error {
	if a.service != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		if err := a.service.Flush(ctx); err != nil {
			a.logger.Warn("flush caches failed", "error", err)
		}
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) requireServer() (string, error) {
	if a.serverURL == "" {
		return "", errNoServer
	}
	return a.serverURL, nil
}

func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
