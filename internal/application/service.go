package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/evictcache"
	"github.com/bnema/jellyfin-enrich/internal/gateway"
	"github.com/bnema/jellyfin-enrich/internal/identity"
	"github.com/bnema/jellyfin-enrich/internal/pipeline"
	"github.com/bnema/jellyfin-enrich/internal/ports"
)

// ServerURLKey is the storage slot holding the server address saved at
// login.
const ServerURLKey = "jfe_serverUrl"

type IdentityResolver interface {
	Resolve(ctx context.Context) (domain.Identity, error)
	IsReady() bool
	WaitUntilReady(ctx context.Context, timeout time.Duration) bool
	SignOut(ctx context.Context) error
	OnChange(fn identity.ChangeFunc)
}

type Catalog interface {
	pipeline.ItemSource
	ItemsBulk(ctx context.Context, ids []string) (gateway.BulkResult, error)
	SetFavorite(ctx context.Context, id string, favorite bool) (domain.UserData, error)
	SetPlayed(ctx context.Context, id string, played bool) (domain.UserData, error)
	IsAdmin(ctx context.Context) (bool, error)
	ClearCaches()
}

type AttributeCache interface {
	pipeline.AttributeCache
	ClearAll(ctx context.Context) error
	Len() int
	MemoryOnly() bool
	Config() evictcache.Config
	Flush(ctx context.Context) error
}

// SessionHolder is the in-process host client updated by login and logout.
type SessionHolder interface {
	Update(id domain.Identity)
	Clear()
}

type Deps struct {
	Identity IdentityResolver
	Catalog  Catalog
	// Cache is the durable quality tier.
	Cache AttributeCache
	// SessionCache holds per-session attributes such as genres. Optional.
	SessionCache AttributeCache
	Storage      ports.Storage
	Session      SessionHolder
	Pipeline     pipeline.Config
	// ReadyWait bounds how long Annotate waits for a signed-in session.
	// Zero means identity.DefaultReadyTimeout.
	ReadyWait time.Duration
	Logger    *slog.Logger
}

type Service struct {
	identity     IdentityResolver
	catalog      Catalog
	cache        AttributeCache
	sessionCache AttributeCache
	storage      ports.Storage
	session      SessionHolder
	pipelineCfg  pipeline.Config
	readyWait    time.Duration
	logger       *slog.Logger

	mu        sync.Mutex
	pipelines map[*pipeline.Pipeline]struct{}
}

func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	readyWait := deps.ReadyWait
	if readyWait <= 0 {
		readyWait = identity.DefaultReadyTimeout
	}

	s := &Service{
		identity:     deps.Identity,
		catalog:      deps.Catalog,
		cache:        deps.Cache,
		sessionCache: deps.SessionCache,
		storage:      deps.Storage,
		session:      deps.Session,
		pipelineCfg:  deps.Pipeline,
		readyWait:    readyWait,
		logger:       logger,
		pipelines:    make(map[*pipeline.Pipeline]struct{}),
	}
	deps.Identity.OnChange(func(prev, next domain.Identity) {
		s.logger.Info("identity changed, clearing caches", "previous_user_id", prev.UserID, "user_id", next.UserID)
		s.invalidate(context.Background())
	})
	return s
}

// invalidate wipes every cache scoped to the previous subject.
func (s *Service) invalidate(ctx context.Context) {
	s.catalog.ClearCaches()
	for _, cache := range []AttributeCache{s.cache, s.sessionCache} {
		if cache == nil {
			continue
		}
		if err := cache.ClearAll(ctx); err != nil {
			s.logger.Warn("clear attribute cache failed", "storage_key", cache.Config().StorageKey, "error", err)
		}
	}

	s.mu.Lock()
	active := make([]*pipeline.Pipeline, 0, len(s.pipelines))
	for p := range s.pipelines {
		active = append(active, p)
	}
	s.mu.Unlock()
	for _, p := range active {
		p.ResetHints()
	}
}

// Login stores the session issued by the server so later runs resolve it.
// Caches are wiped when the stored session belonged to another subject.
func (s *Service) Login(ctx context.Context, cmd LoginCommand) (domain.Identity, error) {
	if !cmd.Identity.IsUsable() {
		return domain.Identity{}, errors.New("login identity requires a user id and an access token")
	}

	// The resolver must hold the outgoing snapshot so that the final Resolve
	// raises its change signal. That signal is the only cache invalidation.
	_, _ = s.identity.Resolve(ctx)

	encoded, err := identity.EncodeCredentials(cmd.Identity)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("encode credentials: %w", err)
	}
	if err := s.storage.Set(ctx, identity.KeyJellyfinCredentials, encoded); err != nil {
		return domain.Identity{}, fmt.Errorf("store credentials: %w", err)
	}
	if cmd.ServerURL != "" {
		if err := s.storage.Set(ctx, ServerURLKey, cmd.ServerURL); err != nil {
			return domain.Identity{}, fmt.Errorf("store server url: %w", err)
		}
	}
	if s.session != nil {
		s.session.Update(cmd.Identity)
	}

	resolved, err := s.identity.Resolve(ctx)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("resolve identity after login: %w", err)
	}
	return resolved, nil
}

// Logout signs out hard. The resolver's change signal wipes the
// subject-scoped caches.
func (s *Service) Logout(ctx context.Context) error {
	if s.session != nil {
		s.session.Clear()
	}
	return s.identity.SignOut(ctx)
}

// ServerURL returns the address saved at login, or "" when none is stored.
func (s *Service) ServerURL(ctx context.Context) (string, error) {
	value, err := s.storage.Get(ctx, ServerURLKey)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read server url: %w", err)
	}
	return value, nil
}

func (s *Service) WhoAmI(ctx context.Context) (WhoAmI, error) {
	id, err := s.identity.Resolve(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityUnavailable) {
			return WhoAmI{}, nil
		}
		return WhoAmI{}, fmt.Errorf("resolve identity: %w", err)
	}

	result := WhoAmI{
		SignedIn: id.IsUsable(),
		Ready:    s.identity.IsReady(),
		Identity: id,
	}
	if url, err := s.ServerURL(ctx); err == nil {
		result.ServerURL = url
	}
	if result.Ready && result.ServerURL != "" {
		admin, err := s.catalog.IsAdmin(ctx)
		if err != nil {
			return result, fmt.Errorf("lookup admin policy: %w", err)
		}
		result.Admin = &admin
	}
	return result, nil
}

func (s *Service) LookupItems(ctx context.Context, ids []string) (LookupResult, error) {
	bulk, err := s.catalog.ItemsBulk(ctx, ids)
	if err != nil {
		return LookupResult{}, err
	}

	result := LookupResult{
		Found:   make([]domain.Item, 0, len(bulk.Found)),
		Missing: make([]string, 0, len(bulk.Missing)),
	}
	for _, item := range bulk.Found {
		result.Found = append(result.Found, item)
	}
	for id := range bulk.Missing {
		result.Missing = append(result.Missing, id)
	}
	sort.Slice(result.Found, func(i, j int) bool { return result.Found[i].ID < result.Found[j].ID })
	sort.Strings(result.Missing)
	return result, nil
}

func (s *Service) SetFavorite(ctx context.Context, cmd ToggleCommand) (domain.UserData, error) {
	data, err := s.catalog.SetFavorite(ctx, cmd.ItemID, cmd.On)
	if err != nil {
		return domain.UserData{}, fmt.Errorf("set favorite: %w", err)
	}
	return data, nil
}

func (s *Service) SetPlayed(ctx context.Context, cmd ToggleCommand) (domain.UserData, error) {
	data, err := s.catalog.SetPlayed(ctx, cmd.ItemID, cmd.On)
	if err != nil {
		return domain.UserData{}, fmt.Errorf("set played: %w", err)
	}
	return data, nil
}

func (s *Service) CacheStats() []CacheStats {
	var stats []CacheStats
	for _, cache := range []AttributeCache{s.cache, s.sessionCache} {
		if cache == nil {
			continue
		}
		cfg := cache.Config()
		stats = append(stats, CacheStats{
			StorageKey:  cfg.StorageKey,
			Entries:     cache.Len(),
			HardMax:     cfg.HardMax,
			SoftCeiling: cfg.SoftCeiling,
			Expiry:      cfg.Expiry,
			MemoryOnly:  cache.MemoryOnly(),
		})
	}
	return stats
}

// ClearCache wipes the attribute caches and the lookup memo on demand.
func (s *Service) ClearCache(ctx context.Context) error {
	s.catalog.ClearCaches()
	var errs []error
	for _, cache := range []AttributeCache{s.cache, s.sessionCache} {
		if cache == nil {
			continue
		}
		if err := cache.ClearAll(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", cache.Config().StorageKey, err))
		}
	}
	return errors.Join(errs...)
}

// Flush forces pending cache writes, for use before the process exits.
func (s *Service) Flush(ctx context.Context) error {
	var errs []error
	for _, cache := range []AttributeCache{s.cache, s.sessionCache} {
		if cache == nil {
			continue
		}
		if err := cache.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) track(p *pipeline.Pipeline) func() {
	s.mu.Lock()
	s.pipelines[p] = struct{}{}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.pipelines, p)
		s.mu.Unlock()
	}
}
