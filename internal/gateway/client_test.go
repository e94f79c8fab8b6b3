package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	mu            sync.Mutex
	ready         bool
	warmup        bool
	id            domain.Identity
	resolveErr    error
	resolves      int
	invalidations int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		ready: true,
		id:    domain.Identity{UserID: "u1", AccessToken: "tok-1", ServerID: "srv", DeviceID: "dev"},
	}
}

func (a *fakeAuth) IsReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

func (a *fakeAuth) InWarmup() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.warmup
}

func (a *fakeAuth) Resolve(ctx context.Context) (domain.Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resolves++
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}
	if a.resolveErr != nil {
		return domain.Identity{}, a.resolveErr
	}
	return a.id, nil
}

func (a *fakeAuth) AuthorizationHeader(id domain.Identity) string {
	return `MediaBrowser Token="` + id.AccessToken + `"`
}

func (a *fakeAuth) InvalidateCredentials(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invalidations++
	return nil
}

func (a *fakeAuth) invalidationCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.invalidations
}

func newTestClient(t *testing.T, auth Authenticator, handler http.Handler, logs *bytes.Buffer) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	if logs == nil {
		logs = &bytes.Buffer{}
	}
	client, err := New(auth, Options{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	require.NoError(t, err)
	return client
}

func TestRequiresAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{path: "/Users/u1/Items/abc", want: true},
		{path: "/Sessions", want: true},
		{path: "/Sessions/Playing", want: true},
		{path: "/Items/abc/PlaybackInfo", want: true},
		{path: "/Videos/abc/stream", want: true},
		{path: "https://media.example.com/Users/u1", want: true},
		{path: "http://[::1:bad/Items", want: true},
		{path: "/System/Info/Public", want: false},
		{path: "/Items/abc/Images/Primary", want: false},
		{path: "https://media.example.com/Branding/Configuration", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RequiresAuth(tt.path))
		})
	}
}

func TestDoRejectsAuthPathBeforeReady(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	auth := newFakeAuth()
	auth.ready = false
	client := newTestClient(t, auth, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}), nil)

	_, err := client.Do(context.Background(), http.MethodGet, "/Users/u1/Items/x", nil)
	require.ErrorIs(t, err, domain.ErrAuthNotReady)
	assert.True(t, domain.IsSilent(err))
	assert.Zero(t, hits.Load())
}

func TestDoAllowsPublicPathBeforeReady(t *testing.T) {
	t.Parallel()

	auth := newFakeAuth()
	auth.ready = false
	auth.resolveErr = domain.ErrIdentityUnavailable
	client := newTestClient(t, auth, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Emby-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ServerName":"home"}`))
	}), nil)

	raw, err := client.Do(context.Background(), http.MethodGet, "/System/Info/Public", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ServerName":"home"}`, string(raw))
}

func TestDoMissingTokenOnAuthPathIsUnauthorized(t *testing.T) {
	t.Parallel()

	auth := newFakeAuth()
	auth.id.AccessToken = ""
	client := newTestClient(t, auth, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}), nil)

	_, err := client.Do(context.Background(), http.MethodGet, "/Users/u1", nil)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestDoAttachesAuthHeadersAndBody(t *testing.T) {
	t.Parallel()

	router := chi.NewRouter()
	router.Post("/Users/{userID}/Items/{itemID}/UserData", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u1", chi.URLParam(r, "userID"))
		assert.Equal(t, `MediaBrowser Token="tok-1"`, r.Header.Get("X-Emby-Authorization"))
		assert.Equal(t, "tok-1", r.Header.Get("X-Emby-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]bool{"IsFavorite": true}, body)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"IsFavorite":true}`))
	})
	client := newTestClient(t, newFakeAuth(), router, nil)

	raw, err := client.Do(context.Background(), http.MethodPost, "/Users/u1/Items/x/UserData", map[string]bool{"IsFavorite": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"IsFavorite":true}`, string(raw))
}

func TestDoNotFoundReturnsNil(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, newFakeAuth(), http.NotFoundHandler(), nil)

	raw, err := client.Do(context.Background(), http.MethodGet, "/Users/u1/Items/x", nil)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestDoRetriesOnceOn401(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	auth := newFakeAuth()
	client := newTestClient(t, auth, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Id":"x"}`))
	}), nil)

	raw, err := client.Do(context.Background(), http.MethodGet, "/Users/u1/Items/x", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Id":"x"}`, string(raw))
	assert.Equal(t, int32(2), hits.Load())
	assert.Zero(t, auth.invalidationCount())
}

func TestDoSecond401InvalidatesCredentials(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	auth := newFakeAuth()
	logs := &bytes.Buffer{}
	client := newTestClient(t, auth, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}), logs)

	_, err := client.Do(context.Background(), http.MethodGet, "/Users/u1/Items/x", nil)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 1, auth.invalidationCount())
	assert.NotContains(t, logs.String(), "level=ERROR")
}

func TestDo401DuringWarmupSkipsInvalidation(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	auth := newFakeAuth()
	auth.warmup = true
	client := newTestClient(t, auth, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}), nil)

	_, err := client.Do(context.Background(), http.MethodGet, "/Users/u1/Items/x", nil)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, int32(2), hits.Load())
	assert.Zero(t, auth.invalidationCount())
}

func TestDoForbiddenIsNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client := newTestClient(t, newFakeAuth(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}), nil)

	_, err := client.Do(context.Background(), http.MethodGet, "/Users/u1/Items/x", nil)
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDoServerErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "message field", body: `{"message":"database locked"}`, want: "database locked"},
		{name: "title and description", body: `{"Title":"Oops","Description":"disk full"}`, want: "Oops: disk full"},
		{name: "no details", body: `not json`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logs := &bytes.Buffer{}
			client := newTestClient(t, newFakeAuth(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(tt.body))
			}), logs)

			_, err := client.Do(context.Background(), http.MethodGet, "/Users/u1/Items/x", nil)
			var httpErr *domain.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
			assert.Equal(t, tt.want, httpErr.Message)
			assert.Contains(t, logs.String(), "level=ERROR")
		})
	}
}

func TestDoEmptyAndNonJSONBodiesYieldEmptyObject(t *testing.T) {
	t.Parallel()

	router := chi.NewRouter()
	router.Post("/Sessions/Playing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Get("/Users/u1/Views", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/Users/u1/Broken", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{truncated"))
	})
	client := newTestClient(t, newFakeAuth(), router, nil)

	for _, req := range []struct{ method, path string }{
		{http.MethodPost, "/Sessions/Playing"},
		{http.MethodGet, "/Users/u1/Views"},
		{http.MethodGet, "/Users/u1/Broken"},
	} {
		raw, err := client.Do(context.Background(), req.method, req.path, nil)
		require.NoError(t, err, req.path)
		assert.JSONEq(t, `{}`, string(raw), req.path)
	}
}

func TestDoAbortIsSilent(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	started := make(chan struct{}, 1)

	logs := &bytes.Buffer{}
	client := newTestClient(t, newFakeAuth(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), logs)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.Do(ctx, http.MethodGet, "/Users/u1/Items/x", nil)
	require.ErrorIs(t, err, domain.ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, logs.String(), "level=ERROR")
}

func slowServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDoRequestTimeoutIsATransportFailure(t *testing.T) {
	t.Parallel()

	server := slowServer(t)
	logs := &bytes.Buffer{}
	client, err := New(newFakeAuth(), Options{
		BaseURL:        server.URL,
		HTTPClient:     server.Client(),
		RequestTimeout: 20 * time.Millisecond,
		Logger:         slog.New(slog.NewTextHandler(logs, nil)),
	})
	require.NoError(t, err)

	_, err = client.Do(context.Background(), http.MethodGet, "/System/Info/Public", nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrAborted))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, logs.String(), "level=ERROR")
}

func TestDoCallerDeadlineIsAbort(t *testing.T) {
	t.Parallel()

	server := slowServer(t)
	logs := &bytes.Buffer{}
	client, err := New(newFakeAuth(), Options{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     slog.New(slog.NewTextHandler(logs, nil)),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.Do(ctx, http.MethodGet, "/System/Info/Public", nil)
	require.ErrorIs(t, err, domain.ErrAborted)
	assert.NotContains(t, logs.String(), "level=ERROR")
}

func TestNewValidatesServerURL(t *testing.T) {
	t.Parallel()

	_, err := New(newFakeAuth(), Options{BaseURL: "ftp://media.example.com"})
	require.Error(t, err)

	_, err = New(newFakeAuth(), Options{BaseURL: "https://"})
	require.Error(t, err)

	_, err = New(nil, Options{})
	require.Error(t, err)

	client, err := New(newFakeAuth(), Options{BaseURL: "https://media.example.com/jellyfin/", Instrument: true})
	require.NoError(t, err)
	endpoint, err := client.endpoint("/Users/u1/Items?Ids=a,b")
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/jellyfin/Users/u1/Items?Ids=a,b", endpoint)
}
