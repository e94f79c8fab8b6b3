// Package config loads jfe settings from ~/.config/jfe/config.toml with
// JFE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/evictcache"
	"github.com/bnema/jellyfin-enrich/internal/gateway"
	"github.com/bnema/jellyfin-enrich/internal/identity"
	"github.com/bnema/jellyfin-enrich/internal/pipeline"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "JFE"
	configDir  = ".config/jfe"
	configName = "config"
	configType = "toml"
)

const (
	BackendTOML   = "toml"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendChain  = "chain"
)

const (
	KeyServerURL          = "server.url"
	KeyClientName         = "client.name"
	KeyClientVersion      = "client.version"
	KeyIdentityWarmup     = "identity.warmup"
	KeyIdentityReadyPoll  = "identity.ready_poll"
	KeyIdentityReadyWait  = "identity.ready_timeout"
	KeyTombstoneTTL       = "gateway.tombstone_ttl"
	KeyTombstoneMax       = "gateway.tombstone_max"
	KeyItemCacheTTL       = "gateway.item_cache_ttl"
	KeyItemCacheMax       = "gateway.item_cache_max"
	KeyGatewayTimeout     = "gateway.timeout"
	KeyCacheHardMax       = "cache.hard_max"
	KeyCacheSoftCeiling   = "cache.soft_ceiling"
	KeyCacheExpiry        = "cache.expiry"
	KeyCacheEvictBatch    = "cache.evict_batch"
	KeyCacheQuotaAttempts = "cache.max_quota_attempts"
	KeyCacheFlushDelay    = "cache.flush_delay"
	KeyStorageBackend     = "storage.backend"
	KeyStoragePath        = "storage.path"
	KeyStorageQuota       = "storage.quota_bytes"
	KeyPipelineConcurrent = "pipeline.concurrency"
	KeyPipelineBatch      = "pipeline.batch_size"
	KeyPipelineDebounce   = "pipeline.debounce"
	KeyPipelineHintsMax   = "pipeline.hints_max"
	KeyViewportMargin     = "viewport.margin"
	KeyViewportHeight     = "viewport.height"
	KeyTelemetryHTTP      = "telemetry.http"
)

// Load builds a viper instance with defaults, the config file and env
// overrides applied. An empty path reads ~/.config/jfe/config.toml when it
// exists; an explicit path must exist.
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType(configType)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return v, nil
	}

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	v.AddConfigPath(dir)
	v.SetConfigName(configName)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Dir is the directory holding config.toml and the default storage files.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, configDir), nil
}

func setDefaults(v *viper.Viper) {
	cache := evictcache.DefaultConfig()
	pipe := pipeline.DefaultConfig()

	v.SetDefault(KeyServerURL, "")
	v.SetDefault(KeyClientName, domain.DefaultClientName)
	v.SetDefault(KeyClientVersion, domain.DefaultClientVersion)
	// The CLI seeds its session before any request, so there is no boot race
	// to tolerate. 0 disables the window.
	v.SetDefault(KeyIdentityWarmup, time.Duration(0))
	v.SetDefault(KeyIdentityReadyPoll, identity.DefaultReadyPoll)
	v.SetDefault(KeyIdentityReadyWait, identity.DefaultReadyTimeout)
	v.SetDefault(KeyTombstoneTTL, gateway.DefaultTombstoneTTL)
	v.SetDefault(KeyTombstoneMax, gateway.DefaultTombstoneMax)
	v.SetDefault(KeyItemCacheTTL, gateway.DefaultItemCacheTTL)
	v.SetDefault(KeyItemCacheMax, gateway.DefaultItemCacheMax)
	v.SetDefault(KeyGatewayTimeout, 30*time.Second)
	v.SetDefault(KeyCacheHardMax, cache.HardMax)
	v.SetDefault(KeyCacheSoftCeiling, cache.SoftCeiling)
	v.SetDefault(KeyCacheExpiry, cache.Expiry)
	v.SetDefault(KeyCacheEvictBatch, cache.EvictBatch)
	v.SetDefault(KeyCacheQuotaAttempts, cache.MaxQuotaAttempts)
	v.SetDefault(KeyCacheFlushDelay, 200*time.Millisecond)
	v.SetDefault(KeyStorageBackend, BackendTOML)
	v.SetDefault(KeyStoragePath, "")
	v.SetDefault(KeyStorageQuota, int64(5<<20))
	v.SetDefault(KeyPipelineConcurrent, pipe.Concurrency)
	v.SetDefault(KeyPipelineBatch, pipe.BatchSize)
	v.SetDefault(KeyPipelineDebounce, pipe.Debounce)
	v.SetDefault(KeyPipelineHintsMax, pipe.HintsMax)
	v.SetDefault(KeyViewportMargin, 300)
	v.SetDefault(KeyViewportHeight, 900)
	v.SetDefault(KeyTelemetryHTTP, false)
}

// Settings is the typed view of a loaded configuration.
type Settings struct {
	ServerURL     string
	ClientName    string
	ClientVersion string

	Identity  identity.Options
	Gateway   GatewaySettings
	Cache     evictcache.Config
	FlushWait time.Duration
	// ReadyWait bounds how long annotate waits for a signed-in session.
	ReadyWait time.Duration
	Storage   StorageSettings
	Pipeline  pipeline.Config
	Viewport  ViewportSettings
}

type GatewaySettings struct {
	Timeout    time.Duration
	Instrument bool
	Catalog    gateway.CatalogOptions
}

type StorageSettings struct {
	Backend    string
	Path       string
	QuotaBytes int64
}

type ViewportSettings struct {
	Margin int
	Height int
}

var errUnknownBackend = errors.New("unknown storage backend")

func FromViper(v *viper.Viper) (Settings, error) {
	backend := strings.ToLower(strings.TrimSpace(v.GetString(KeyStorageBackend)))
	switch backend {
	case BackendTOML, BackendSQLite, BackendMemory, BackendChain:
	default:
		return Settings{}, fmt.Errorf("%w %q (want toml, sqlite, memory or chain)", errUnknownBackend, backend)
	}

	cache := evictcache.DefaultConfig()
	cache.HardMax = v.GetInt(KeyCacheHardMax)
	cache.SoftCeiling = v.GetInt(KeyCacheSoftCeiling)
	cache.Expiry = v.GetDuration(KeyCacheExpiry)
	cache.EvictBatch = v.GetInt(KeyCacheEvictBatch)
	cache.MaxQuotaAttempts = v.GetInt(KeyCacheQuotaAttempts)

	return Settings{
		ServerURL:     strings.TrimSpace(v.GetString(KeyServerURL)),
		ClientName:    v.GetString(KeyClientName),
		ClientVersion: v.GetString(KeyClientVersion),
		Identity: identity.Options{
			Warmup:        warmup(v.GetDuration(KeyIdentityWarmup)),
			ReadyPoll:     v.GetDuration(KeyIdentityReadyPoll),
			ClientName:    v.GetString(KeyClientName),
			ClientVersion: v.GetString(KeyClientVersion),
		},
		Gateway: GatewaySettings{
			Timeout:    v.GetDuration(KeyGatewayTimeout),
			Instrument: v.GetBool(KeyTelemetryHTTP),
			Catalog: gateway.CatalogOptions{
				TombstoneTTL: v.GetDuration(KeyTombstoneTTL),
				TombstoneMax: v.GetInt(KeyTombstoneMax),
				ItemCacheTTL: v.GetDuration(KeyItemCacheTTL),
				ItemCacheMax: v.GetInt(KeyItemCacheMax),
			},
		},
		Cache:     cache,
		FlushWait: v.GetDuration(KeyCacheFlushDelay),
		ReadyWait: v.GetDuration(KeyIdentityReadyWait),
		Storage: StorageSettings{
			Backend:    backend,
			Path:       v.GetString(KeyStoragePath),
			QuotaBytes: v.GetInt64(KeyStorageQuota),
		},
		Pipeline: pipeline.Config{
			Concurrency: v.GetInt(KeyPipelineConcurrent),
			BatchSize:   v.GetInt(KeyPipelineBatch),
			Debounce:    v.GetDuration(KeyPipelineDebounce),
			HintsMax:    v.GetInt(KeyPipelineHintsMax),
		},
		Viewport: ViewportSettings{
			Margin: v.GetInt(KeyViewportMargin),
			Height: v.GetInt(KeyViewportHeight),
		},
	}, nil
}

func warmup(d time.Duration) time.Duration {
	if d <= 0 {
		return identity.NoWarmup
	}
	return d
}
