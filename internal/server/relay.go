package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"

	"github.com/desertthunder/cloudnote/internal/services"
	"github.com/desertthunder/cloudnote/internal/shared"
	"github.com/desertthunder/cloudnote/internal/web"
)

const stateCookie = "notion_oauth_state"

// ExchangeRequest is the body of POST /api/notion/exchange.
type ExchangeRequest struct {
	Code         string `json:"code" validate:"required"`
	RedirectURI  string `json:"redirect_uri" validate:"required"`
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// exchangeFields lists the required exchange fields in the order reported to clients.
var exchangeFields = []string{"code", "redirect_uri", "client_id", "client_secret"}

// handleAuthorize redirects to Notion's consent screen. The state is also set as a cookie and checked on callback.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()
	authURL, err := s.notion.AuthURL(state)
	if err != nil {
		s.render(w, http.StatusInternalServerError, web.PageError, s.missingCredentialsPage())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/notion",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback completes the authorization code flow and hands the token to /auth-result.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		desc := q.Get("error_description")
		if desc == "" {
			desc = "无详细信息"
		}
		s.logger.Warn("authorization denied", "error", errParam, "description", desc)
		s.render(w, http.StatusBadRequest, web.PageError, web.ErrorData{
			Title:   "授权失败",
			Message: "错误: " + errParam,
			Details: []web.Detail{{Label: "描述", Value: desc}},
		})
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	if cookie, err := r.Cookie(stateCookie); err == nil && cookie.Value != q.Get("state") {
		s.render(w, http.StatusBadRequest, web.PageError, web.ErrorData{
			Title:   "授权失败",
			Message: "state 参数不匹配，请重新授权。",
		})
		return
	}

	if !s.notion.HasClient() {
		s.logger.Error("notion client credentials are not configured")
		s.render(w, http.StatusInternalServerError, web.PageError, s.missingCredentialsPage())
		return
	}

	s.logger.Info("exchanging authorization code", "code", shared.Redact(code, 10))
	token, err := s.notion.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Error("token exchange failed", "error", err)
		page := web.ErrorData{
			Title:   "令牌交换失败",
			Message: err.Error(),
			Details: []web.Detail{{Label: "重定向URI", Value: s.notion.Client().RedirectURI}},
		}
		var apiErr *services.NotionAPIError
		if errors.As(err, &apiErr) {
			page.Body = apiErr.Body
		}
		s.render(w, http.StatusBadRequest, web.PageError, page)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/api/notion", MaxAge: -1})
	s.logger.Info("token exchange succeeded", "workspace_id", token.WorkspaceID, "workspace_name", token.WorkspaceName)

	params := url.Values{"access_token": {token.AccessToken}}
	if token.WorkspaceName != "" {
		params.Set("workspace_name", token.WorkspaceName)
	}
	http.Redirect(w, r, "/auth-result?"+params.Encode(), http.StatusFound)
}

func (s *Server) missingCredentialsPage() web.ErrorData {
	status := func(set bool) string {
		if set {
			return "已设置"
		}
		return "未设置"
	}
	client := s.notion.Client()
	return web.ErrorData{
		Title:   "服务器配置错误",
		Message: "服务器缺少必要的 Notion 集成凭据",
		Details: []web.Detail{
			{Label: "Client ID", Value: status(client.ClientID != "")},
			{Label: "Client Secret", Value: status(client.ClientSecret != "")},
		},
	}
}

// handleExchange trades a code with credentials supplied by the caller, e.g. a browser extension.
func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	var req ExchangeRequest
	body, _ := json.Marshal(raw)
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "request fields must be strings")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		received := make([]string, 0, len(raw))
		for key := range raw {
			received = append(received, key)
		}
		sort.Strings(received)

		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "missing required parameters",
			"required": exchangeFields,
			"received": received,
		})
		return
	}

	client := services.OAuthClient{ClientID: req.ClientID, ClientSecret: req.ClientSecret, RedirectURI: req.RedirectURI}
	token, err := s.notion.ExchangeWith(r.Context(), client, req.Code)
	if err != nil {
		var apiErr *services.NotionAPIError
		if errors.As(err, &apiErr) {
			s.logger.Warn("notion rejected token exchange", "status", apiErr.Status, "code", apiErr.Code)
			writeJSON(w, apiErr.Status, map[string]any{
				"error":   "notion token exchange failed",
				"status":  apiErr.Status,
				"details": upstreamDetails(apiErr.Body),
			})
			return
		}

		s.logger.Error("token exchange failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error", "message": err.Error()})
		return
	}

	s.logger.Info("token exchange succeeded", "workspace_id", token.WorkspaceID, "bot_id", token.BotID)
	writeJSON(w, http.StatusOK, token)
}

// upstreamDetails returns body as JSON when it parses, or as a string.
func upstreamDetails(body string) any {
	if json.Valid([]byte(body)) {
		return json.RawMessage(body)
	}
	return body
}

// handleNeteaseData proxies a playlist, song or album lookup.
func (s *Server) handleNeteaseData(w http.ResponseWriter, r *http.Request) {
	kind, id := r.URL.Query().Get("type"), r.URL.Query().Get("id")
	if kind == "" || id == "" {
		writeError(w, http.StatusBadRequest, "missing type or id")
		return
	}

	data, err := s.netease.Detail(r.Context(), kind, id)
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid type, use one of: playlist, song, album")
	case err != nil:
		s.logger.Error("netease detail failed", "type", kind, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "failed to fetch data from NetEase API",
			"detail": err.Error(),
		})
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
