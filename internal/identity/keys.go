package identity

import "regexp"

// Storage slots read or written by the resolver.
const (
	KeyUserID              = "jf_userId"
	KeyDeviceID            = "jf_api_deviceId"
	KeyJSONCredentials     = "json-credentials"
	KeyJellyfinCredentials = "jellyfin_credentials"
	KeyAPIKey              = "api-key"
	KeyAccessToken         = "accessToken"
	KeyServerID            = "serverId"
	KeyEmbyToken           = "embyToken"
)

var (
	jellyfinCredentialsPattern = regexp.MustCompile(`(?i)jellyfin.*credentials`)

	hintDeviceKeys  = []string{"deviceId", "emby.device.id"}
	hintSessionKeys = []string{"sessionId", "emby.session.id"}
	hintServerKeys  = []string{KeyServerID, "emby.server.id"}
	hintTokenKeys   = []string{KeyAPIKey, KeyAccessToken, KeyEmbyToken}

	credentialKeys    = []string{KeyJSONCredentials, KeyAPIKey, KeyAccessToken, KeyServerID}
	persistedIdentity = []string{KeyUserID, KeyDeviceID}
	signalingKeys     = map[string]struct{}{KeyJSONCredentials: {}, KeyEmbyToken: {}, KeyServerID: {}}
)
