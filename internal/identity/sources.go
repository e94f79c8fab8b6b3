package identity

import (
	"context"
	"errors"

	"github.com/bnema/jellyfin-enrich/internal/domain"
)

// Source yields a candidate identity or reports that it has none. Sources
// that replay earlier state set Replay so the resolver does not treat their
// result as fresh evidence.
type Source struct {
	Name   string
	Replay bool
	Lookup func(ctx context.Context, r *Resolver) (domain.Identity, bool)
}

// DefaultSources is the priority order used by New.
func DefaultSources() []Source {
	return []Source{
		{Name: "host_client", Lookup: hostClientSource},
		{Name: "warmup_snapshot", Replay: true, Lookup: warmupSource},
		{Name: "jellyfin_credentials", Lookup: jellyfinCredentialsSource},
		{Name: "json_credentials", Lookup: jsonCredentialsSource},
		{Name: "identity_hints", Lookup: hintsSource},
	}
}

func hostClientSource(_ context.Context, r *Resolver) (domain.Identity, bool) {
	if !r.IsReady() {
		return domain.Identity{}, false
	}
	return domain.Identity{
		UserID:      r.host.UserID(),
		AccessToken: r.host.AccessToken(),
		SessionID:   r.host.SessionID(),
		ServerID:    r.host.ServerID(),
		DeviceID:    r.host.DeviceID(),
	}, true
}

// warmupSource covers the startup race where the host client exists but has
// not restored its session yet.
func warmupSource(_ context.Context, r *Resolver) (domain.Identity, bool) {
	if r.host == nil || !r.InWarmup() {
		return domain.Identity{}, false
	}

	last, ok := r.lastKnown()
	if !ok || !last.IsUsable() {
		return domain.Identity{}, false
	}
	return domain.Identity{
		UserID:      last.UserID,
		AccessToken: last.AccessToken,
		ServerID:    last.ServerID,
	}, true
}

func jellyfinCredentialsSource(ctx context.Context, r *Resolver) (domain.Identity, bool) {
	raw := r.read(ctx, KeyJellyfinCredentials)
	if raw == "" {
		keys, err := r.storage.Keys(ctx)
		if err != nil {
			return domain.Identity{}, false
		}
		for _, key := range keys {
			if jellyfinCredentialsPattern.MatchString(key) {
				raw = r.read(ctx, key)
				break
			}
		}
	}

	creds, ok := parseCredentials(raw)
	if !ok {
		return domain.Identity{}, false
	}
	return creds.flat()
}

func jsonCredentialsSource(ctx context.Context, r *Resolver) (domain.Identity, bool) {
	creds, ok := parseCredentials(r.read(ctx, KeyJSONCredentials))
	if !ok {
		return domain.Identity{}, false
	}
	hints := r.hints(ctx)

	topLevelServer := firstNonEmpty(creds.ServerID, creds.SystemID, hints.ServerID, creds.firstServer().SystemID, creds.firstServer().ID)
	top := domain.Identity{
		AccessToken:   firstNonEmpty(creds.AccessToken, hints.AccessToken),
		SessionID:     firstNonEmpty(creds.SessionID, hints.SessionID),
		ServerID:      topLevelServer,
		DeviceID:      firstNonEmpty(creds.DeviceID, creds.ClientDeviceID, hints.DeviceID),
		ClientName:    creds.Client,
		ClientVersion: creds.Version,
	}
	if creds.User != nil {
		top.UserID = creds.User.ID
	}
	if top.IsUsable() {
		return top, true
	}

	server := creds.firstServer()
	old := domain.Identity{
		UserID:        server.UserID,
		AccessToken:   firstNonEmpty(server.AccessToken, hints.AccessToken),
		SessionID:     firstNonEmpty(server.ID, hints.SessionID),
		ServerID:      firstNonEmpty(server.SystemID, server.ID, topLevelServer),
		DeviceID:      firstNonEmpty(server.SystemID, hints.DeviceID),
		ClientName:    creds.Client,
		ClientVersion: creds.Version,
	}
	return old, old.IsUsable()
}

// hintsSource pairs a bare persisted user id with whatever scattered fields
// are around. The token may be empty; callers then fail auth explicitly.
func hintsSource(ctx context.Context, r *Resolver) (domain.Identity, bool) {
	userID := r.read(ctx, KeyUserID)
	if userID == "" {
		return domain.Identity{}, false
	}

	id := r.hints(ctx)
	id.UserID = userID
	return id, true
}

// hints gathers loose identity fragments from the host client and from
// individually stored slots.
func (r *Resolver) hints(ctx context.Context) domain.Identity {
	var id domain.Identity
	if r.host != nil {
		id.AccessToken = r.host.AccessToken()
		id.SessionID = r.host.SessionID()
		id.ServerID = r.host.ServerID()
		id.DeviceID = r.host.DeviceID()
	}
	if id.AccessToken == "" {
		id.AccessToken = r.readFirst(ctx, hintTokenKeys)
	}
	if id.SessionID == "" {
		id.SessionID = r.readFirst(ctx, hintSessionKeys)
	}
	if id.ServerID == "" {
		id.ServerID = r.readFirst(ctx, hintServerKeys)
	}
	if id.DeviceID == "" {
		id.DeviceID = r.readFirst(ctx, hintDeviceKeys)
	}
	return id
}

func (r *Resolver) read(ctx context.Context, key string) string {
	value, err := r.storage.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			r.logger.Debug("identity slot unreadable", "key", key, "error", err)
		}
		return ""
	}
	return value
}

func (r *Resolver) readFirst(ctx context.Context, keys []string) string {
	for _, key := range keys {
		if value := r.read(ctx, key); value != "" {
			return value
		}
	}
	return ""
}
