package hostclient

import (
	"testing"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/stretchr/testify/assert"
)

type legacyClient struct{}

func (legacyClient) Token() string                  { return "tok" }
func (legacyClient) GetCurrentUserID() string       { return "u1" }
func (legacyClient) GetDeviceID() string            { return "dev" }
func (legacyClient) SystemID() string               { return "srv" }
func (legacyClient) GetAuthorizationHeader() string { return `MediaBrowser Token="tok"` }

type tokenOnlyClient struct{}

func (tokenOnlyClient) AccessToken() string { return "tok" }

func TestProbeMapsAlternateMethodNames(t *testing.T) {
	t.Parallel()

	hc := Probe(legacyClient{})

	assert.Equal(t, "tok", hc.AccessToken())
	assert.Equal(t, "u1", hc.UserID())
	assert.Equal(t, "dev", hc.DeviceID())
	assert.Equal(t, "srv", hc.ServerID())
	assert.Empty(t, hc.SessionID())
	assert.Equal(t, `MediaBrowser Token="tok"`, hc.AuthorizationHeader())
}

func TestProbeMissingCapabilitiesReportEmpty(t *testing.T) {
	t.Parallel()

	hc := Probe(tokenOnlyClient{})

	assert.Equal(t, "tok", hc.AccessToken())
	assert.Empty(t, hc.UserID())
	assert.Empty(t, hc.DeviceID())
	assert.Empty(t, hc.AuthorizationHeader())
}

func TestProbeNilAndPassThrough(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Probe(nil))

	session := NewSession(domain.Identity{UserID: "u1", AccessToken: "tok", ServerID: "srv", SessionID: "sess", DeviceID: "dev"})
	assert.Same(t, session, Probe(session))
	assert.Equal(t, "sess", session.SessionID())
	assert.Empty(t, session.AuthorizationHeader())
}

func TestSessionUpdateAndClear(t *testing.T) {
	t.Parallel()

	session := NewSession(domain.Identity{})
	assert.Empty(t, session.AccessToken())

	session.Update(domain.Identity{UserID: "u2", AccessToken: "tok-2"})
	assert.Equal(t, "u2", session.UserID())
	assert.Equal(t, "tok-2", session.AccessToken())

	session.Clear()
	assert.Empty(t, session.UserID())
}
