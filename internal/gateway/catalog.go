package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/ports"
	"golang.org/x/sync/singleflight"
)

const itemFields = "MediaStreams,Genres,Tags"

type CatalogOptions struct {
	TombstoneTTL time.Duration
	TombstoneMax int
	ItemCacheTTL time.Duration
	ItemCacheMax int
	Clock        ports.Clock
	Logger       *slog.Logger
}

// Catalog is the item lookup surface on top of Client.
type Catalog struct {
	client     *Client
	tombstones *TombstoneSet
	items      *itemCache
	calls      singleflight.Group
	logger     *slog.Logger

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context shared by every caller waiting on one item id. It is
// cancelled when the last waiter leaves, not when the first one does.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// BulkResult splits a bulk lookup into found items and ids known absent.
type BulkResult struct {
	Found   map[string]domain.Item
	Missing map[string]struct{}
}

func NewCatalog(client *Client, opts CatalogOptions) *Catalog {
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = client.logger
	}
	return &Catalog{
		client:     client,
		tombstones: NewTombstoneSet(opts.TombstoneTTL, opts.TombstoneMax, opts.Clock),
		items:      newItemCache(opts.ItemCacheTTL, opts.ItemCacheMax, opts.Clock),
		logger:     opts.Logger,
		flights:    make(map[string]*flight),
	}
}

func (c *Catalog) Tombstones() *TombstoneSet {
	return c.tombstones
}

// Item fetches one item. A nil item with a nil error means the server does
// not know the id; the id is tombstoned so repeat lookups skip the network.
func (c *Catalog) Item(ctx context.Context, id string) (*domain.Item, error) {
	if !domain.ValidItemID(id) {
		return nil, fmt.Errorf("lookup item %q: %w", id, domain.ErrInvalidItemID)
	}
	if c.tombstones.IsTombstoned(id) {
		return nil, nil
	}

	f := c.join(ctx, id)
	ch := c.calls.DoChan(id, func() (any, error) {
		return c.fetchItem(f.ctx, id)
	})

	select {
	case <-ctx.Done():
		c.leave(id, f)
		return nil, fmt.Errorf("lookup item %s: %w: %w", id, domain.ErrAborted, ctx.Err())
	case res := <-ch:
		c.leave(id, f)
		if res.Err != nil {
			return nil, res.Err
		}
		item, _ := res.Val.(*domain.Item)
		return item, nil
	}
}

func (c *Catalog) join(ctx context.Context, id string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flights[id]
	if !ok {
		shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: shared, cancel: cancel}
		c.flights[id] = f
	}
	f.waiters++
	return f
}

// leave drops one waiter. The last one out cancels the shared fetch and makes
// the next lookup start a fresh call instead of joining the cancelled one.
func (c *Catalog) leave(id string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[id] == f {
		delete(c.flights, id)
	}
	c.calls.Forget(id)
}

func (c *Catalog) fetchItem(ctx context.Context, id string) (*domain.Item, error) {
	userID, err := c.userID(ctx)
	if err != nil {
		return nil, fmt.Errorf("lookup item %s: %w", id, err)
	}

	path := "/Users/" + url.PathEscape(userID) + "/Items/" + url.PathEscape(id) + "?Fields=" + itemFields
	raw, err := c.client.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("lookup item %s: %w", id, err)
	}
	if raw == nil {
		c.tombstones.Mark(id)
		c.logger.Debug("item not found, tombstoned", "item_id", id)
		return nil, nil
	}

	var item domain.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", id, err)
	}
	if item.ID == "" {
		item.ID = id
	}
	c.items.put(item)
	return &item, nil
}

// CachedItem serves recently fetched items from memory before calling Item.
func (c *Catalog) CachedItem(ctx context.Context, id string) (*domain.Item, error) {
	if item, ok := c.items.get(id); ok {
		return &item, nil
	}
	return c.Item(ctx, id)
}

type itemsPage struct {
	Items []domain.Item `json:"Items"`
}

// ItemsBulk resolves many ids with one request. Tombstoned ids are reported
// missing without being requested. An aborted request yields an empty result
// and marks nothing.
func (c *Catalog) ItemsBulk(ctx context.Context, ids []string) (BulkResult, error) {
	result := emptyBulk()

	seen := make(map[string]struct{}, len(ids))
	request := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if c.tombstones.IsTombstoned(id) {
			result.Missing[id] = struct{}{}
			continue
		}
		request = append(request, id)
	}
	if len(request) == 0 {
		return result, nil
	}

	userID, err := c.userID(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrAborted) {
			return emptyBulk(), nil
		}
		return result, fmt.Errorf("lookup items: %w", err)
	}

	query := url.Values{}
	query.Set("Ids", strings.Join(request, ","))
	query.Set("Fields", itemFields)
	path := "/Users/" + url.PathEscape(userID) + "/Items?" + query.Encode()

	raw, err := c.client.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		if errors.Is(err, domain.ErrAborted) {
			return emptyBulk(), nil
		}
		return result, fmt.Errorf("lookup items: %w", err)
	}

	var page itemsPage
	if raw != nil {
		if err := json.Unmarshal(raw, &page); err != nil {
			return result, fmt.Errorf("decode items: %w", err)
		}
	}

	for _, item := range page.Items {
		if item.ID == "" {
			continue
		}
		result.Found[item.ID] = item
		c.items.put(item)
	}

	for _, id := range request {
		if _, ok := result.Found[id]; ok {
			continue
		}
		c.tombstones.Mark(id)
		result.Missing[id] = struct{}{}
	}

	c.logger.Debug("bulk lookup complete", "requested", len(request), "found", len(result.Found), "missing", len(result.Missing))
	return result, nil
}

func emptyBulk() BulkResult {
	return BulkResult{
		Found:   make(map[string]domain.Item),
		Missing: make(map[string]struct{}),
	}
}

// SetFavorite toggles the favorite flag. Errors are returned for the caller
// to surface.
func (c *Catalog) SetFavorite(ctx context.Context, id string, favorite bool) (domain.UserData, error) {
	return c.updateUserData(ctx, id, map[string]bool{"IsFavorite": favorite})
}

func (c *Catalog) SetPlayed(ctx context.Context, id string, played bool) (domain.UserData, error) {
	return c.updateUserData(ctx, id, map[string]bool{"Played": played})
}

func (c *Catalog) updateUserData(ctx context.Context, id string, body map[string]bool) (domain.UserData, error) {
	if !domain.ValidItemID(id) {
		return domain.UserData{}, fmt.Errorf("update user data %q: %w", id, domain.ErrInvalidItemID)
	}

	userID, err := c.userID(ctx)
	if err != nil {
		return domain.UserData{}, fmt.Errorf("update user data %s: %w", id, err)
	}

	path := "/Users/" + url.PathEscape(userID) + "/Items/" + url.PathEscape(id) + "/UserData"
	raw, err := c.client.Do(ctx, http.MethodPost, path, body)
	if err != nil {
		return domain.UserData{}, fmt.Errorf("update user data %s: %w", id, err)
	}
	if raw == nil {
		return domain.UserData{}, fmt.Errorf("update user data %s: %w", id, &domain.HTTPError{Status: http.StatusNotFound, Message: "item not found"})
	}

	var data domain.UserData
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.UserData{}, fmt.Errorf("decode user data %s: %w", id, err)
	}
	c.items.drop(id)
	return data, nil
}

type userPolicy struct {
	Policy struct {
		IsAdministrator bool `json:"IsAdministrator"`
	} `json:"Policy"`
}

// IsAdmin reports whether the current user has the administrator policy.
func (c *Catalog) IsAdmin(ctx context.Context) (bool, error) {
	userID, err := c.userID(ctx)
	if err != nil {
		return false, fmt.Errorf("lookup user policy: %w", err)
	}

	raw, err := c.client.Do(ctx, http.MethodGet, "/Users/"+url.PathEscape(userID), nil)
	if err != nil {
		return false, fmt.Errorf("lookup user policy: %w", err)
	}
	if raw == nil {
		return false, nil
	}

	var user userPolicy
	if err := json.Unmarshal(raw, &user); err != nil {
		return false, fmt.Errorf("decode user policy: %w", err)
	}
	return user.Policy.IsAdministrator, nil
}

// ClearCaches drops tombstones and cached items. It runs whenever the
// identity changes.
func (c *Catalog) ClearCaches() {
	c.tombstones.Clear()
	c.items.clear()
}

func (c *Catalog) CachedItems() int {
	return c.items.len()
}

func (c *Catalog) userID(ctx context.Context) (string, error) {
	if !c.client.auth.IsReady() {
		return "", domain.ErrAuthNotReady
	}
	id, err := c.client.auth.Resolve(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityUnavailable) {
			return "", domain.ErrAuthNotReady
		}
		if isAbort(ctx) {
			return "", fmt.Errorf("%w: %w", domain.ErrAborted, err)
		}
		return "", err
	}
	if id.UserID == "" {
		return "", domain.ErrAuthNotReady
	}
	return id.UserID, nil
}
