// Package identity derives the active user/token/server tuple from the host
// client and from stored credentials, and signals when the subject changes.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/ports"
)

const (
	DefaultWarmup       = 15 * time.Second
	DefaultReadyPoll    = 250 * time.Millisecond
	DefaultReadyTimeout = 2 * time.Second

	// NoWarmup disables the warm-up window. Use it when the host client is
	// seeded before the first request.
	NoWarmup time.Duration = -1
)

type Options struct {
	Warmup        time.Duration
	ReadyPoll     time.Duration
	ClientName    string
	ClientVersion string
	Sources       []Source
	Clock         ports.Clock
	Logger        *slog.Logger
}

// ChangeFunc receives the previous and the new snapshot. next is the zero
// Identity after a sign-out or a credential change signal.
type ChangeFunc func(prev, next domain.Identity)

type Resolver struct {
	host          ports.HostClient
	storage       ports.Storage
	clock         ports.Clock
	logger        *slog.Logger
	sources       []Source
	warmup        time.Duration
	readyPoll     time.Duration
	clientName    string
	clientVersion string
	startedAt     time.Time

	mu        sync.Mutex
	last      *domain.Identity
	persisted domain.Identity
	listeners []ChangeFunc
}

var errNilStorage = errors.New("identity storage is nil")

// New builds a resolver. host may be nil when no embedding client exists.
// The warm-up window starts now.
func New(host ports.HostClient, storage ports.Storage, opts Options) (*Resolver, error) {
	if storage == nil {
		return nil, errNilStorage
	}
	switch {
	case opts.Warmup < 0:
		opts.Warmup = 0
	case opts.Warmup == 0:
		opts.Warmup = DefaultWarmup
	}
	if opts.ReadyPoll <= 0 {
		opts.ReadyPoll = DefaultReadyPoll
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.Sources) == 0 {
		opts.Sources = DefaultSources()
	}

	return &Resolver{
		host:          host,
		storage:       storage,
		clock:         opts.Clock,
		logger:        opts.Logger,
		sources:       opts.Sources,
		warmup:        opts.Warmup,
		readyPoll:     opts.ReadyPoll,
		clientName:    opts.ClientName,
		clientVersion: opts.ClientVersion,
		startedAt:     opts.Clock.Now(),
	}, nil
}

// Resolve evaluates the sources in order and returns the first hit.
func (r *Resolver) Resolve(ctx context.Context) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}

	for _, source := range r.sources {
		candidate, ok := source.Lookup(ctx, r)
		if !ok {
			continue
		}

		id := r.complete(ctx, candidate)
		if !source.Replay {
			r.commit(ctx, id)
		}
		r.logger.Debug("identity resolved", "source", source.Name, "user_id", id.UserID, "server_id", id.ServerID)
		return id, nil
	}

	return domain.Identity{}, domain.ErrIdentityUnavailable
}

// complete applies device id precedence and client descriptor defaults.
func (r *Resolver) complete(ctx context.Context, id domain.Identity) domain.Identity {
	var hostDevice string
	if r.host != nil {
		hostDevice = r.host.DeviceID()
	}
	id.DeviceID = firstNonEmpty(r.read(ctx, KeyDeviceID), hostDevice, id.DeviceID)
	if id.ServerID == "" {
		id.ServerID = r.read(ctx, KeyServerID)
	}
	if id.ClientName == "" {
		id.ClientName = r.clientName
	}
	if id.ClientVersion == "" {
		id.ClientVersion = r.clientVersion
	}
	return id.WithDefaults()
}

// commit persists the identity hints and fires listeners on a subject change.
// The first snapshot is never a change.
func (r *Resolver) commit(ctx context.Context, id domain.Identity) {
	r.mu.Lock()
	prev := r.last
	next := id
	r.last = &next
	listeners := append([]ChangeFunc(nil), r.listeners...)
	persisted := r.persisted
	r.mu.Unlock()

	r.persist(ctx, persisted, id)

	if prev == nil || prev.SameSubject(id) {
		return
	}
	r.logger.Info("identity changed", "prev_user_id", prev.UserID, "user_id", id.UserID, "server_id", id.ServerID)
	for _, fn := range listeners {
		fn(*prev, id)
	}
}

func (r *Resolver) persist(ctx context.Context, persisted, id domain.Identity) {
	writes := []struct{ key, value, prev string }{
		{KeyUserID, id.UserID, persisted.UserID},
		{KeyServerID, id.ServerID, persisted.ServerID},
	}
	if id.DeviceID != domain.DefaultDeviceID {
		writes = append(writes, struct{ key, value, prev string }{KeyDeviceID, id.DeviceID, persisted.DeviceID})
	}

	for _, w := range writes {
		if w.value == "" || w.value == w.prev {
			continue
		}
		if err := r.storage.Set(ctx, w.key, w.value); err != nil {
			r.logger.Debug("persist identity slot failed", "key", w.key, "error", err)
			continue
		}
		r.mu.Lock()
		switch w.key {
		case KeyUserID:
			r.persisted.UserID = w.value
		case KeyServerID:
			r.persisted.ServerID = w.value
		case KeyDeviceID:
			r.persisted.DeviceID = w.value
		}
		r.mu.Unlock()
	}
}

// IsReady reports whether the host client currently holds a token and a
// user id. It performs no storage I/O.
func (r *Resolver) IsReady() bool {
	if r.host == nil {
		return false
	}
	return strings.TrimSpace(r.host.AccessToken()) != "" && strings.TrimSpace(r.host.UserID()) != ""
}

// WaitUntilReady polls IsReady until it holds, the timeout elapses or ctx
// is done.
func (r *Resolver) WaitUntilReady(ctx context.Context, timeout time.Duration) bool {
	if r.IsReady() {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(r.readyPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return r.IsReady()
		case <-ticker.C:
			if r.IsReady() {
				return true
			}
		}
	}
}

func (r *Resolver) InWarmup() bool {
	return r.clock.Now().Sub(r.startedAt) < r.warmup
}

func (r *Resolver) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Resolver) lastKnown() (domain.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return domain.Identity{}, false
	}
	return *r.last, true
}

// InvalidateCredentials wipes stored credentials and the persisted identity
// hints after the server rejected them.
func (r *Resolver) InvalidateCredentials(ctx context.Context) error {
	err := r.remove(ctx, append(append([]string(nil), credentialKeys...), persistedIdentity...))
	r.mu.Lock()
	r.persisted = domain.Identity{}
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("invalidate credentials: %w", err)
	}
	return nil
}

// SignOut removes every credential and identity slot, forgets the last known
// snapshot and notifies listeners so dependent caches are wiped.
func (r *Resolver) SignOut(ctx context.Context) error {
	keys := append([]string{KeyJellyfinCredentials, KeyEmbyToken}, credentialKeys...)
	keys = append(keys, persistedIdentity...)
	if stored, err := r.storage.Keys(ctx); err == nil {
		for _, key := range stored {
			if jellyfinCredentialsPattern.MatchString(key) {
				keys = append(keys, key)
			}
		}
	}

	err := r.remove(ctx, keys)
	r.reset()
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// HandleStorageChange reacts to a credential slot changing outside this
// process. removed is true when the slot was deleted. Embedders that watch
// a shared store call it; the jfe CLI reads storage once per run and has
// nothing to forward.
func (r *Resolver) HandleStorageChange(ctx context.Context, key string, removed bool) {
	if _, ok := signalingKeys[key]; !ok {
		return
	}

	r.logger.Debug("credential slot changed", "key", key, "removed", removed)
	if key == KeyJSONCredentials && removed {
		if err := r.remove(ctx, persistedIdentity); err != nil {
			r.logger.Debug("clear persisted identity failed", "error", err)
		}
	}
	r.reset()
}

func (r *Resolver) reset() {
	r.mu.Lock()
	var prev domain.Identity
	if r.last != nil {
		prev = *r.last
	}
	r.last = nil
	r.persisted = domain.Identity{}
	listeners := append([]ChangeFunc(nil), r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(prev, domain.Identity{})
	}
}

func (r *Resolver) remove(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := r.storage.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// AuthorizationHeader returns the host client's header when it provides one
// and builds the MediaBrowser header from id otherwise.
func (r *Resolver) AuthorizationHeader(id domain.Identity) string {
	if r.host != nil {
		if header := r.host.AuthorizationHeader(); header != "" {
			return header
		}
	}
	return BuildAuthorizationHeader(id)
}

func BuildAuthorizationHeader(id domain.Identity) string {
	id = id.WithDefaults()
	header := fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s"`,
		id.ClientName, id.DeviceID, id.DeviceID, id.ClientVersion)
	if id.AccessToken != "" {
		header += fmt.Sprintf(`, Token="%s"`, id.AccessToken)
	}
	return header
}
