// Notion API client
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/cloudnote/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultNotionURL = "https://api.notion.com"
	NotionVersion    = "2022-06-28"
)

// OAuthClient is the public integration credential used for the authorization code flow.
type OAuthClient struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
	RedirectURI  string `json:"redirect_uri" validate:"required,url"`
}

// NotionService talks to the Notion REST API on behalf of whichever token the caller passes.
type NotionService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	client     OAuthClient
}

// NewNotionService creates a Notion client from cfg.
//
// When client is nil a client with cfg.TimeoutSeconds (default 30s) is used.
func NewNotionService(cfg shared.NotionConfig, client *http.Client) *NotionService {
	baseURL := strings.TrimRight(cfg.APIURL, "/")
	if baseURL == "" {
		baseURL = DefaultNotionURL
	}
	if client == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	svc := &NotionService{
		baseURL:    baseURL,
		httpClient: client,
		client: OAuthClient{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  cfg.RedirectURI,
		},
	}

	if cfg.RequestsPerSecond > 0 {
		burst := int(math.Ceil(cfg.RequestsPerSecond))
		svc.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return svc
}

// Name returns the service name.
func (n *NotionService) Name() string { return "Notion" }

// HasClient reports whether an OAuth client credential is configured.
func (n *NotionService) HasClient() bool {
	return n.client.ClientID != "" && n.client.ClientSecret != ""
}

// Client returns the configured OAuth client credential.
func (n *NotionService) Client() OAuthClient { return n.client }

// OAuthConfig builds the [oauth2.Config] for c. Notion expects client credentials in a Basic auth header.
func (n *NotionService) OAuthConfig(c OAuthClient) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   n.baseURL + "/v1/oauth/authorize",
			TokenURL:  n.baseURL + "/v1/oauth/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// AuthURL returns the user-facing authorization URL for the configured client.
func (n *NotionService) AuthURL(state string) (string, error) {
	if n.client.ClientID == "" {
		return "", fmt.Errorf("%w: notion client_id is not set", shared.ErrMissingCredentials)
	}
	return n.OAuthConfig(n.client).AuthCodeURL(state, oauth2.SetAuthURLParam("owner", "user")), nil
}

// Exchange trades an authorization code using the configured client.
func (n *NotionService) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	if !n.HasClient() {
		return nil, fmt.Errorf("%w: notion client_id and client_secret must be set", shared.ErrMissingCredentials)
	}
	return n.ExchangeWith(ctx, n.client, code)
}

// ExchangeWith trades an authorization code using caller supplied credentials.
//
// A rejected exchange returns an error wrapping both [shared.ErrAuthFailed] and a [NotionAPIError] with the
// upstream status and body.
func (n *NotionService) ExchangeWith(ctx context.Context, c OAuthClient, code string) (*TokenResponse, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is required", shared.ErrInvalidInput)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, n.httpClient)
	token, err := n.OAuthConfig(c).Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			apiErr := newNotionAPIError(rerr.Response.StatusCode, rerr.Body)
			if apiErr.Code == "" {
				apiErr.Code = rerr.ErrorCode
			}
			if apiErr.Message == "" {
				apiErr.Message = rerr.ErrorDescription
			}
			return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, apiErr)
		}
		return nil, fmt.Errorf("%w: token exchange failed: %v", shared.ErrAuthFailed, err)
	}

	return tokenResponse(token), nil
}

func tokenResponse(token *oauth2.Token) *TokenResponse {
	extra := func(key string) string {
		if v, ok := token.Extra(key).(string); ok {
			return v
		}
		return ""
	}

	return &TokenResponse{
		AccessToken:          token.AccessToken,
		TokenType:            token.TokenType,
		BotID:                extra("bot_id"),
		WorkspaceID:          extra("workspace_id"),
		WorkspaceName:        extra("workspace_name"),
		WorkspaceIcon:        extra("workspace_icon"),
		DuplicatedTemplateID: extra("duplicated_template_id"),
		Owner:                token.Extra("owner"),
	}
}

// Me returns the bot user behind token. Used to check a token is still valid.
func (n *NotionService) Me(ctx context.Context, token string) (*NotionUser, error) {
	var user NotionUser
	if err := n.call(ctx, token, http.MethodGet, "/v1/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchPages lists pages shared with the integration, most recently edited first. Only the first result page is read.
func (n *NotionService) SearchPages(ctx context.Context, token string) ([]NotionPage, error) {
	body := map[string]any{
		"filter": map[string]string{"value": "page", "property": "object"},
		"sort":   map[string]string{"direction": "descending", "timestamp": "last_edited_time"},
	}

	var result struct {
		Results []NotionPage `json:"results"`
	}
	if err := n.call(ctx, token, http.MethodPost, "/v1/search", body, &result); err != nil {
		return nil, err
	}
	if result.Results == nil {
		result.Results = []NotionPage{}
	}
	return result.Results, nil
}

// CreateDatabase creates a database. A rejected request returns a [shared.ProvisioningError] holding the body verbatim.
func (n *NotionService) CreateDatabase(ctx context.Context, token string, req CreateDatabaseRequest) (*NotionDatabase, error) {
	status, body, err := n.do(ctx, token, http.MethodPost, "/v1/databases", req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrProvisioningFailed, err)
	}
	if status < 200 || status >= 300 {
		return nil, &shared.ProvisioningError{Status: status, Body: string(body)}
	}

	var db NotionDatabase
	if err := json.Unmarshal(body, &db); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", shared.ErrProvisioningFailed, err)
	}
	return &db, nil
}

// CreatePage creates one page.
func (n *NotionService) CreatePage(ctx context.Context, token string, req CreatePageRequest) (*NotionPage, error) {
	var page NotionPage
	if err := n.call(ctx, token, http.MethodPost, "/v1/pages", req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateSnapshotPage creates a page under parentPageID with one paragraph per item holding its JSON.
func (n *NotionService) CreateSnapshotPage(ctx context.Context, token, parentPageID, title string, items []json.RawMessage) (*NotionPage, error) {
	children := make([]Block, 0, len(items))
	for _, item := range items {
		var buf bytes.Buffer
		if err := json.Compact(&buf, item); err != nil {
			return nil, fmt.Errorf("%w: item is not JSON: %v", shared.ErrInvalidInput, err)
		}
		children = append(children, ParagraphBlock(buf.String()))
	}

	return n.CreatePage(ctx, token, CreatePageRequest{
		Parent:     PageParent(parentPageID),
		Properties: map[string]PropertyValue{PropTitle: TitleValue(title)},
		Children:   children,
	})
}

// call performs a request and decodes a 2xx body into result; other statuses become a [NotionAPIError].
func (n *NotionService) call(ctx context.Context, token, method, path string, payload, result any) error {
	status, body, err := n.do(ctx, token, method, path, payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return newNotionAPIError(status, body)
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

func (n *NotionService) do(ctx context.Context, token, method, path string, payload any) (int, []byte, error) {
	if token == "" {
		return 0, nil, fmt.Errorf("%w: notion token is required", shared.ErrNotAuthenticated)
	}

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Notion-Version", NotionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}
	return resp.StatusCode, body, nil
}

// Unwrap lets callers match any Notion rejection with [shared.ErrAPIRequest].
func (e *NotionAPIError) Unwrap() error { return shared.ErrAPIRequest }
