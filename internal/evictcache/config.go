package evictcache

import (
	"time"

	"github.com/bnema/jellyfin-enrich/internal/domain"
)

const (
	QualityStorageKey = "videoQualityCache"
	SessionStorageKey = "sessionAttributeCache"
)

// Config sizes one cache tier.
type Config struct {
	HardMax          int
	SoftCeiling      int
	Expiry           time.Duration
	EvictBatch       int
	MaxQuotaAttempts int
	AllowedKinds     []domain.ItemKind
	StorageKey       string
}

// DefaultConfig is the durable quality tier.
func DefaultConfig() Config {
	return Config{
		HardMax:          300,
		SoftCeiling:      260,
		Expiry:           7 * 24 * time.Hour,
		EvictBatch:       40,
		MaxQuotaAttempts: 10,
		AllowedKinds:     []domain.ItemKind{domain.ItemKindMovie, domain.ItemKindEpisode},
		StorageKey:       QualityStorageKey,
	}
}

// SessionConfig is the short-lived tier used for per-session attributes.
func SessionConfig() Config {
	cfg := DefaultConfig()
	cfg.Expiry = 24 * time.Hour
	cfg.StorageKey = SessionStorageKey
	return cfg
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.HardMax <= 0 {
		c.HardMax = def.HardMax
	}
	if c.SoftCeiling <= 0 || c.SoftCeiling > c.HardMax {
		c.SoftCeiling = c.HardMax
	}
	if c.Expiry <= 0 {
		c.Expiry = def.Expiry
	}
	if c.EvictBatch <= 0 {
		c.EvictBatch = def.EvictBatch
	}
	if c.MaxQuotaAttempts <= 0 {
		c.MaxQuotaAttempts = def.MaxQuotaAttempts
	}
	if len(c.AllowedKinds) == 0 {
		c.AllowedKinds = def.AllowedKinds
	}
	if c.StorageKey == "" {
		c.StorageKey = def.StorageKey
	}
	return c
}
