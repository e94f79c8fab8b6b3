package ports

// HostClient is the embedding application's API client. Empty strings mean
// the value is not known yet.
type HostClient interface {
	AccessToken() string
	UserID() string
	DeviceID() string
	ServerID() string
	SessionID() string
	AuthorizationHeader() string
}
