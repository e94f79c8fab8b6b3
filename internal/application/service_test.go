package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/adapters/hostclient"
	"github.com/bnema/jellyfin-enrich/internal/adapters/storage/memory"
	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/evictcache"
	"github.com/bnema/jellyfin-enrich/internal/gateway"
	"github.com/bnema/jellyfin-enrich/internal/identity"
	"github.com/bnema/jellyfin-enrich/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct {
	mu        sync.Mutex
	host      *hostclient.Session
	listeners []identity.ChangeFunc
	last      domain.Identity
	signOuts  int
	waits     []time.Duration
}

func (f *fakeIdentity) Resolve(context.Context) (domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := domain.Identity{UserID: f.host.UserID(), AccessToken: f.host.AccessToken(), ServerID: f.host.ServerID()}
	if !id.IsUsable() {
		return domain.Identity{}, domain.ErrIdentityUnavailable
	}
	f.last = id
	return id, nil
}

func (f *fakeIdentity) IsReady() bool {
	return f.host.AccessToken() != "" && f.host.UserID() != ""
}

func (f *fakeIdentity) WaitUntilReady(ctx context.Context, timeout time.Duration) bool {
	f.mu.Lock()
	f.waits = append(f.waits, timeout)
	f.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for !f.IsReady() {
		if ctx.Err() != nil || time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

func (f *fakeIdentity) SignOut(context.Context) error {
	f.mu.Lock()
	prev := f.last
	f.last = domain.Identity{}
	f.signOuts++
	listeners := append([]identity.ChangeFunc(nil), f.listeners...)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(prev, domain.Identity{})
	}
	return nil
}

func (f *fakeIdentity) OnChange(fn identity.ChangeFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

func (f *fakeIdentity) fire(prev, next domain.Identity) {
	f.mu.Lock()
	listeners := append([]identity.ChangeFunc(nil), f.listeners...)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(prev, next)
	}
}

type fakeCatalog struct {
	mu        sync.Mutex
	items     map[string]domain.Item
	clears    int
	favorites map[string]bool
	admin     bool
	actionErr error
}

func newFakeCatalog(items ...domain.Item) *fakeCatalog {
	c := &fakeCatalog{items: make(map[string]domain.Item), favorites: make(map[string]bool)}
	for _, item := range items {
		c.items[item.ID] = item
	}
	return c
}

func (c *fakeCatalog) CachedItem(_ context.Context, id string) (*domain.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (c *fakeCatalog) ItemsBulk(_ context.Context, ids []string) (gateway.BulkResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := gateway.BulkResult{Found: map[string]domain.Item{}, Missing: map[string]struct{}{}}
	for _, id := range ids {
		if item, ok := c.items[id]; ok {
			result.Found[id] = item
		} else {
			result.Missing[id] = struct{}{}
		}
	}
	return result, nil
}

func (c *fakeCatalog) SetFavorite(_ context.Context, id string, favorite bool) (domain.UserData, error) {
	if c.actionErr != nil {
		return domain.UserData{}, c.actionErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.favorites[id] = favorite
	return domain.UserData{IsFavorite: favorite}, nil
}

func (c *fakeCatalog) SetPlayed(_ context.Context, _ string, played bool) (domain.UserData, error) {
	if c.actionErr != nil {
		return domain.UserData{}, c.actionErr
	}
	return domain.UserData{Played: played}, nil
}

func (c *fakeCatalog) IsAdmin(context.Context) (bool, error) {
	return c.admin, nil
}

func (c *fakeCatalog) ClearCaches() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
}

func (c *fakeCatalog) clearCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clears
}

type fixture struct {
	service  *Service
	identity *fakeIdentity
	session  *hostclient.Session
	catalog  *fakeCatalog
	cache    *evictcache.Cache[string]
	genres   *evictcache.Cache[string]
	storage  *memory.Store
}

func newFixture(t *testing.T, signedIn domain.Identity, items ...domain.Item) fixture {
	t.Helper()

	ctx := context.Background()
	storage := memory.NewStore(0)
	session := hostclient.NewSession(signedIn)
	ident := &fakeIdentity{host: session}
	catalog := newFakeCatalog(items...)
	cache := evictcache.New[string](ctx, evictcache.DefaultConfig(), storage)
	genres := evictcache.New[string](ctx, evictcache.SessionConfig(), nil)

	service := NewService(Deps{
		Identity:     ident,
		Catalog:      catalog,
		Cache:        cache,
		SessionCache: genres,
		Storage:      storage,
		Session:      session,
		Pipeline:     pipeline.Config{Debounce: time.Millisecond},
		ReadyWait:    20 * time.Millisecond,
	})

	return fixture{
		service:  service,
		identity: ident,
		session:  session,
		catalog:  catalog,
		cache:    cache,
		genres:   genres,
		storage:  storage,
	}
}

var alice = domain.Identity{UserID: "user-a", AccessToken: "tok-a", ServerID: "srv-1", DeviceID: "dev-1"}

func movie(id string, width int) domain.Item {
	return domain.Item{
		ID:           id,
		Type:         domain.ItemKindMovie,
		Genres:       []string{"Drama"},
		MediaStreams: []domain.MediaStream{{Type: "Video", Codec: "h264", Width: width}},
	}
}

func TestIdentityChangeClearsCaches(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alice)
	f.cache.Set("m1", "fhd/sdr/h264", domain.ItemKindMovie)
	f.genres.Set("m1", "Drama", domain.ItemKindMovie)

	bob := domain.Identity{UserID: "user-b", AccessToken: "tok-b", ServerID: "srv-1"}
	f.identity.fire(alice, bob)

	assert.Equal(t, 1, f.catalog.clearCount())
	assert.Zero(t, f.cache.Len())
	assert.Zero(t, f.genres.Len())
}

func TestLoginStoresCredentialsAndServerURL(t *testing.T) {
	t.Parallel()

	f := newFixture(t, domain.Identity{})
	ctx := context.Background()

	id, err := f.service.Login(ctx, LoginCommand{Identity: alice, ServerURL: "https://media.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "user-a", id.UserID)
	assert.Equal(t, "tok-a", f.session.AccessToken())

	raw, err := f.storage.Get(ctx, identity.KeyJellyfinCredentials)
	require.NoError(t, err)
	assert.Contains(t, raw, `"AccessToken":"tok-a"`)

	url, err := f.service.ServerURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com", url)
	assert.Zero(t, f.catalog.clearCount())
}

func TestLoginAsAnotherSubjectClearsCachesOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := memory.NewStore(0)
	session := hostclient.NewSession(alice)
	resolver, err := identity.New(session, storage, identity.Options{})
	require.NoError(t, err)

	catalog := newFakeCatalog()
	cache := evictcache.New[string](ctx, evictcache.DefaultConfig(), storage)
	service := NewService(Deps{
		Identity: resolver,
		Catalog:  catalog,
		Cache:    cache,
		Storage:  storage,
		Session:  session,
		Pipeline: pipeline.Config{Debounce: time.Millisecond},
	})

	current, err := resolver.Resolve(ctx)
	require.NoError(t, err)
	require.Equal(t, "user-a", current.UserID)
	cache.Set("m1", "fhd/sdr/h264", domain.ItemKindMovie)

	bob := domain.Identity{UserID: "user-b", AccessToken: "tok-b", ServerID: "srv-1"}
	id, err := service.Login(ctx, LoginCommand{Identity: bob})
	require.NoError(t, err)
	assert.Equal(t, "user-b", id.UserID)

	assert.Equal(t, 1, catalog.clearCount())
	assert.Zero(t, cache.Len())
}

func TestLoginAsSameSubjectKeepsCaches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := memory.NewStore(0)
	session := hostclient.NewSession(alice)
	resolver, err := identity.New(session, storage, identity.Options{})
	require.NoError(t, err)

	catalog := newFakeCatalog()
	cache := evictcache.New[string](ctx, evictcache.DefaultConfig(), storage)
	service := NewService(Deps{
		Identity: resolver,
		Catalog:  catalog,
		Cache:    cache,
		Storage:  storage,
		Session:  session,
	})
	cache.Set("m1", "fhd/sdr/h264", domain.ItemKindMovie)

	_, err = service.Login(ctx, LoginCommand{Identity: alice})
	require.NoError(t, err)

	assert.Zero(t, catalog.clearCount())
	assert.Equal(t, 1, cache.Len())
}

func TestLoginRejectsUnusableIdentity(t *testing.T) {
	t.Parallel()

	f := newFixture(t, domain.Identity{})
	_, err := f.service.Login(context.Background(), LoginCommand{Identity: domain.Identity{UserID: "u"}})
	require.Error(t, err)
}

func TestLogoutClearsSessionAndCaches(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alice)
	f.cache.Set("m1", "fhd/sdr/h264", domain.ItemKindMovie)

	require.NoError(t, f.service.Logout(context.Background()))
	assert.Equal(t, 1, f.identity.signOuts)
	assert.Empty(t, f.session.UserID())
	assert.Zero(t, f.cache.Len())
	assert.Equal(t, 1, f.catalog.clearCount())
}

func TestWhoAmI(t *testing.T) {
	t.Parallel()

	signedOut := newFixture(t, domain.Identity{})
	who, err := signedOut.service.WhoAmI(context.Background())
	require.NoError(t, err)
	assert.False(t, who.SignedIn)

	f := newFixture(t, alice)
	f.catalog.admin = true
	require.NoError(t, f.storage.Set(context.Background(), ServerURLKey, "https://media.example.com"))

	who, err = f.service.WhoAmI(context.Background())
	require.NoError(t, err)
	assert.True(t, who.SignedIn)
	assert.True(t, who.Ready)
	assert.Equal(t, "https://media.example.com", who.ServerURL)
	require.NotNil(t, who.Admin)
	assert.True(t, *who.Admin)
}

func TestLookupItemsSortsResults(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alice, movie("b", 1920), movie("a", 1280))

	result, err := f.service.LookupItems(context.Background(), []string{"b", "z", "a", "y"})
	require.NoError(t, err)
	require.Len(t, result.Found, 2)
	assert.Equal(t, "a", result.Found[0].ID)
	assert.Equal(t, []string{"y", "z"}, result.Missing)
}

func TestUserActionsSurfaceErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alice, movie("m1", 1920))

	data, err := f.service.SetFavorite(context.Background(), ToggleCommand{ItemID: "m1", On: true})
	require.NoError(t, err)
	assert.True(t, data.IsFavorite)

	f.catalog.actionErr = fmt.Errorf("post user data: %w", domain.ErrForbidden)
	_, err = f.service.SetPlayed(context.Background(), ToggleCommand{ItemID: "m1", On: true})
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Contains(t, err.Error(), "set played")
}

func TestCacheStatsAndClear(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alice)
	f.cache.Set("m1", "fhd/sdr/h264", domain.ItemKindMovie)
	f.cache.Set("s1", "hd/sdr", domain.ItemKindSeries)

	stats := f.service.CacheStats()
	require.Len(t, stats, 2)
	assert.Equal(t, evictcache.QualityStorageKey, stats[0].StorageKey)
	assert.Equal(t, 1, stats[0].Entries)
	assert.False(t, stats[0].MemoryOnly)
	assert.True(t, stats[1].MemoryOnly)

	require.NoError(t, f.service.ClearCache(context.Background()))
	assert.Zero(t, f.cache.Len())
	assert.Equal(t, 1, f.catalog.clearCount())

	_, err := f.storage.Get(context.Background(), evictcache.QualityStorageKey)
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))
}
