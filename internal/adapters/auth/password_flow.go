package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/identity"
)

const (
	authenticatePath = "/Users/AuthenticateByName"
	publicInfoPath   = "/System/Info/Public"
	maxAuthResponse  = 1 << 20
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// PasswordFlowAdapter signs a user in with a username and password and
// returns the session identity the server issued.
type PasswordFlowAdapter struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	ClientName     string
	ClientVersion  string
	DeviceID       string
}

type PublicInfo struct {
	ID         string `json:"Id"`
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
}

type authenticateRequest struct {
	Username string `json:"Username"`
	Pw       string `json:"Pw"`
}

type authenticateResponse struct {
	AccessToken string `json:"AccessToken"`
	ServerID    string `json:"ServerId"`
	User        struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
	} `json:"User"`
	SessionInfo struct {
		ID       string `json:"Id"`
		DeviceID string `json:"DeviceId"`
	} `json:"SessionInfo"`
}

type serverErrorResponse struct {
	Message     string `json:"message"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
}

func (a PasswordFlowAdapter) Authenticate(ctx context.Context, username, password string) (domain.Identity, error) {
	if strings.TrimSpace(username) == "" {
		return domain.Identity{}, errors.New("username is required")
	}

	endpoint, err := buildAPIURL(a.BaseURL, authenticatePath)
	if err != nil {
		return domain.Identity{}, err
	}

	body, err := json.Marshal(authenticateRequest{Username: username, Pw: password})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("encode authenticate request: %w", err)
	}

	requestCtx, cancel := a.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("create authenticate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Emby-Authorization", identity.BuildAuthorizationHeader(a.client()))

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("authenticate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return domain.Identity{}, ErrInvalidCredentials
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return domain.Identity{}, fmt.Errorf("authenticate: %s", decodeServerError(resp))
	}

	var payload authenticateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAuthResponse)).Decode(&payload); err != nil {
		return domain.Identity{}, fmt.Errorf("decode authenticate response: %w", err)
	}
	if payload.AccessToken == "" || payload.User.ID == "" {
		return domain.Identity{}, errors.New("authenticate response missing access token or user id")
	}

	id := a.client()
	id.UserID = payload.User.ID
	id.AccessToken = payload.AccessToken
	id.ServerID = payload.ServerID
	id.SessionID = payload.SessionInfo.ID
	return id, nil
}

// ServerInfo reads the unauthenticated server descriptor.
func (a PasswordFlowAdapter) ServerInfo(ctx context.Context) (PublicInfo, error) {
	endpoint, err := buildAPIURL(a.BaseURL, publicInfoPath)
	if err != nil {
		return PublicInfo{}, err
	}

	requestCtx, cancel := a.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return PublicInfo{}, fmt.Errorf("create server info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return PublicInfo{}, fmt.Errorf("request server info: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return PublicInfo{}, fmt.Errorf("request server info: %s", decodeServerError(resp))
	}

	var info PublicInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAuthResponse)).Decode(&info); err != nil {
		return PublicInfo{}, fmt.Errorf("decode server info: %w", err)
	}
	return info, nil
}

func (a PasswordFlowAdapter) client() domain.Identity {
	return domain.Identity{
		DeviceID:      a.DeviceID,
		ClientName:    a.ClientName,
		ClientVersion: a.ClientVersion,
	}.WithDefaults()
}

func (a PasswordFlowAdapter) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

func (a PasswordFlowAdapter) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := a.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func decodeServerError(resp *http.Response) string {
	var serverErr serverErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAuthResponse)).Decode(&serverErr); err != nil {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	switch {
	case serverErr.Message != "":
		return serverErr.Message
	case serverErr.Title != "" && serverErr.Description != "":
		return serverErr.Title + ": " + serverErr.Description
	default:
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("server url is required")
	}
	if path == "" {
		return "", errors.New("api path is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("server url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("server url host is required")
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + path
	return parsed.String(), nil
}
