package identity

import (
	"encoding/json"
	"strings"

	"github.com/bnema/jellyfin-enrich/internal/domain"
)

// storedCredentials covers the spellings found in credential blobs written by
// the different web client generations.
type storedCredentials struct {
	AccessToken    string `json:"AccessToken"`
	AccessTokenAlt string `json:"accessToken"`
	Token          string `json:"Token"`
	User           *struct {
		ID string `json:"Id"`
	} `json:"User"`
	UserIDAlt      string         `json:"userId"`
	UserID         string         `json:"UserId"`
	SessionID      string         `json:"SessionId"`
	SessionIDAlt   string         `json:"sessionId"`
	ServerID       string         `json:"ServerId"`
	SystemID       string         `json:"SystemId"`
	DeviceID       string         `json:"DeviceId"`
	ClientDeviceID string         `json:"ClientDeviceId"`
	Client         string         `json:"Client"`
	Version        string         `json:"Version"`
	Servers        []serverRecord `json:"Servers"`
}

type serverRecord struct {
	ID          string `json:"Id"`
	SystemID    string `json:"SystemId"`
	AccessToken string `json:"AccessToken"`
	UserID      string `json:"UserId"`
}

func parseCredentials(raw string) (storedCredentials, bool) {
	var creds storedCredentials
	if strings.TrimSpace(raw) == "" {
		return creds, false
	}
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return creds, false
	}
	return creds, true
}

func (c storedCredentials) firstServer() serverRecord {
	if len(c.Servers) == 0 {
		return serverRecord{}
	}
	return c.Servers[0]
}

func (c storedCredentials) userID() string {
	if c.User != nil && c.User.ID != "" {
		return c.User.ID
	}
	return firstNonEmpty(c.UserIDAlt, c.UserID)
}

func (c storedCredentials) serverID() string {
	server := c.firstServer()
	return firstNonEmpty(c.ServerID, c.SystemID, server.SystemID, server.ID)
}

// flat reads the single-object layout written by jellyfin-web and by
// `jfe login`.
func (c storedCredentials) flat() (domain.Identity, bool) {
	id := domain.Identity{
		AccessToken:   firstNonEmpty(c.AccessToken, c.AccessTokenAlt, c.Token),
		UserID:        c.userID(),
		SessionID:     firstNonEmpty(c.SessionID, c.SessionIDAlt),
		ServerID:      c.serverID(),
		DeviceID:      firstNonEmpty(c.DeviceID, c.ClientDeviceID),
		ClientName:    c.Client,
		ClientVersion: c.Version,
	}
	return id, id.IsUsable()
}

// EncodeCredentials renders id in the flat layout read back by the stored
// credentials source.
func EncodeCredentials(id domain.Identity) (string, error) {
	type user struct {
		ID string `json:"Id"`
	}
	payload := struct {
		AccessToken string `json:"AccessToken"`
		User        user   `json:"User"`
		SessionID   string `json:"SessionId,omitempty"`
		ServerID    string `json:"ServerId,omitempty"`
		DeviceID    string `json:"DeviceId,omitempty"`
		Client      string `json:"Client,omitempty"`
		Version     string `json:"Version,omitempty"`
	}{
		AccessToken: id.AccessToken,
		User:        user{ID: id.UserID},
		SessionID:   id.SessionID,
		ServerID:    id.ServerID,
		DeviceID:    id.DeviceID,
		Client:      id.ClientName,
		Version:     id.ClientVersion,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
