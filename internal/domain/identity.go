package domain

import "strings"

const (
	DefaultClientName    = "Jellyfin Web Client"
	DefaultClientVersion = "1.0.0"
	DefaultDeviceID      = "web-client"
)

// Identity is the resolved subject used to authorize catalog requests. A new
// value replaces the previous one; it is never mutated in place.
type Identity struct {
	UserID        string `json:"user_id"`
	AccessToken   string `json:"access_token"`
	SessionID     string `json:"session_id,omitempty"`
	ServerID      string `json:"server_id,omitempty"`
	DeviceID      string `json:"device_id"`
	ClientName    string `json:"client_name"`
	ClientVersion string `json:"client_version"`
}

// IsUsable reports whether the identity carries both a token and a user id.
func (i Identity) IsUsable() bool {
	return strings.TrimSpace(i.UserID) != "" && strings.TrimSpace(i.AccessToken) != ""
}

// IsZero reports whether no field has been set.
func (i Identity) IsZero() bool {
	return i == Identity{}
}

// SameSubject reports whether two snapshots describe the same subject: user,
// server and token must all match.
func (i Identity) SameSubject(other Identity) bool {
	return i.UserID == other.UserID &&
		i.ServerID == other.ServerID &&
		i.AccessToken == other.AccessToken
}

// WithDefaults fills client descriptors and device id when they are empty.
func (i Identity) WithDefaults() Identity {
	if strings.TrimSpace(i.ClientName) == "" {
		i.ClientName = DefaultClientName
	}
	if strings.TrimSpace(i.ClientVersion) == "" {
		i.ClientVersion = DefaultClientVersion
	}
	if strings.TrimSpace(i.DeviceID) == "" {
		i.DeviceID = DefaultDeviceID
	}
	return i
}
