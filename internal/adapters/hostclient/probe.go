// Package hostclient adapts whatever API client the embedding application
// exposes to ports.HostClient.
package hostclient

import (
	"sync"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/ports"
)

type (
	accessTokener      interface{ AccessToken() string }
	tokener            interface{ Token() string }
	currentUserIDer    interface{ CurrentUserID() string }
	getCurrentUserIDer interface{ GetCurrentUserID() string }
	userIDer           interface{ UserID() string }
	deviceIDer         interface{ DeviceID() string }
	getDeviceIDer      interface{ GetDeviceID() string }
	serverIDer         interface{ ServerID() string }
	systemIDer         interface{ SystemID() string }
	sessionIDer        interface{ SessionID() string }
	authHeaderer       interface{ AuthorizationHeader() string }
	getAuthHeaderer    interface{ GetAuthorizationHeader() string }
)

// probed resolves each capability once, at Probe time.
type probed struct {
	accessToken func() string
	userID      func() string
	deviceID    func() string
	serverID    func() string
	sessionID   func() string
	authHeader  func() string
}

var _ ports.HostClient = (*probed)(nil)

func empty() string { return "" }

// Probe wraps v, trying the known method spellings for every capability.
// A nil v yields a nil client. A value that already implements
// ports.HostClient is returned unchanged.
func Probe(v any) ports.HostClient {
	if v == nil {
		return nil
	}
	if hc, ok := v.(ports.HostClient); ok {
		return hc
	}

	p := &probed{
		accessToken: empty,
		userID:      empty,
		deviceID:    empty,
		serverID:    empty,
		sessionID:   empty,
		authHeader:  empty,
	}

	switch c := v.(type) {
	case accessTokener:
		p.accessToken = c.AccessToken
	case tokener:
		p.accessToken = c.Token
	}

	switch c := v.(type) {
	case currentUserIDer:
		p.userID = c.CurrentUserID
	case getCurrentUserIDer:
		p.userID = c.GetCurrentUserID
	case userIDer:
		p.userID = c.UserID
	}

	switch c := v.(type) {
	case deviceIDer:
		p.deviceID = c.DeviceID
	case getDeviceIDer:
		p.deviceID = c.GetDeviceID
	}

	switch c := v.(type) {
	case serverIDer:
		p.serverID = c.ServerID
	case systemIDer:
		p.serverID = c.SystemID
	}

	if c, ok := v.(sessionIDer); ok {
		p.sessionID = c.SessionID
	}

	switch c := v.(type) {
	case authHeaderer:
		p.authHeader = c.AuthorizationHeader
	case getAuthHeaderer:
		p.authHeader = c.GetAuthorizationHeader
	}

	return p
}

func (p *probed) AccessToken() string         { return p.accessToken() }
func (p *probed) UserID() string              { return p.userID() }
func (p *probed) DeviceID() string            { return p.deviceID() }
func (p *probed) ServerID() string            { return p.serverID() }
func (p *probed) SessionID() string           { return p.sessionID() }
func (p *probed) AuthorizationHeader() string { return p.authHeader() }

// Session is a host client backed by an identity the process holds itself,
// used when no embedding application provides one.
type Session struct {
	mu       sync.RWMutex
	identity domain.Identity
}

var _ ports.HostClient = (*Session)(nil)

func NewSession(id domain.Identity) *Session {
	return &Session{identity: id}
}

// Update replaces the held identity after a login.
func (s *Session) Update(id domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
}

func (s *Session) Clear() {
	s.Update(domain.Identity{})
}

func (s *Session) current() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) AccessToken() string         { return s.current().AccessToken }
func (s *Session) UserID() string              { return s.current().UserID }
func (s *Session) DeviceID() string            { return s.current().DeviceID }
func (s *Session) ServerID() string            { return s.current().ServerID }
func (s *Session) SessionID() string           { return s.current().SessionID }
func (s *Session) AuthorizationHeader() string { return "" }
