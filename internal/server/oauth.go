package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/desertthunder/cloudnote/internal/services"
	"github.com/desertthunder/cloudnote/internal/shared"
	"github.com/desertthunder/cloudnote/internal/web"
	"github.com/go-chi/chi/v5"
)

// DefaultCallbackPath is served when the redirect URI has no path.
const DefaultCallbackPath = "/callback"

// TokenExchanger trades an authorization code for a Notion token.
type TokenExchanger interface {
	Exchange(ctx context.Context, code string) (*services.TokenResponse, error)
}

// LoginResult contains the result of an OAuth authorization flow.
type LoginResult struct {
	Token *services.TokenResponse
	err   error
}

func (o *LoginResult) Error() error {
	return o.err
}

// LoginHandler serves the one-shot OAuth callback for `cloudnote auth login`.
type LoginHandler struct {
	exchanger   TokenExchanger
	pages       *web.Pages
	path        string
	state       string
	resultChan  chan LoginResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewLoginHandler creates a callback handler listening on the path of redirectURI. The state token should be
// random; callbacks with any other state are rejected.
func NewLoginHandler(exchanger TokenExchanger, pages *web.Pages, redirectURI, state string) *LoginHandler {
	path := DefaultCallbackPath
	if u, err := url.Parse(redirectURI); err == nil && u.Path != "" && u.Path != "/" {
		path = u.Path
	}
	return &LoginHandler{
		exchanger:  exchanger,
		pages:      pages,
		path:       path,
		state:      state,
		resultChan: make(chan LoginResult, 1),
	}
}

// Path returns the callback route.
func (h *LoginHandler) Path() string {
	return h.path
}

// Router mounts the handler on its callback path.
func (h *LoginHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get(h.path, h.ServeHTTP)
	return r
}

// ServeHTTP validates the state, exchanges the code and sends the result. Only the first callback counts.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(LoginResult{err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		h.fail(w, http.StatusBadRequest, "state 参数无效")
		return
	}

	code := q.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description"))
		h.Send(LoginResult{err: err})
		h.fail(w, http.StatusBadRequest, q.Get("error"))
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.Send(LoginResult{err: fmt.Errorf("token exchange failed: %w", err)})
		h.fail(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.Send(LoginResult{Token: token})
	_ = h.pages.Write(w, http.StatusOK, web.PageLogin, web.LoginData{WorkspaceName: token.WorkspaceName})
}

func (h *LoginHandler) fail(w http.ResponseWriter, status int, message string) {
	_ = h.pages.Write(w, status, web.PageError, web.ErrorData{Title: "授权失败", Message: message})
}

// Send sends the result through the channel (only once).
func (h *LoginHandler) Send(result LoginResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *LoginHandler) Result() <-chan LoginResult {
	return h.resultChan
}
