package application

import (
	"time"

	"github.com/bnema/jellyfin-enrich/internal/domain"
)

type WhoAmI struct {
	SignedIn  bool
	Ready     bool
	ServerURL string
	Identity  domain.Identity
	// Admin is nil when the policy could not be checked.
	Admin *bool
}

type LookupResult struct {
	Found   []domain.Item
	Missing []string
}

type CacheStats struct {
	StorageKey  string
	Entries     int
	HardMax     int
	SoftCeiling int
	Expiry      time.Duration
	MemoryOnly  bool
}

type Annotation struct {
	ItemID string
	Value  string
}
