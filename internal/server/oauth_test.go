package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/cloudnote/internal/services"
	"github.com/desertthunder/cloudnote/internal/shared"
	"github.com/desertthunder/cloudnote/internal/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExchanger struct {
	token *services.TokenResponse
	err   error
	codes []string
}

func (s *stubExchanger) Exchange(ctx context.Context, code string) (*services.TokenResponse, error) {
	s.codes = append(s.codes, code)
	return s.token, s.err
}

func newLoginHandler(ex TokenExchanger) *LoginHandler {
	return NewLoginHandler(ex, web.MustNew(), "http://localhost:3000/api/notion/callback", "state-1")
}

func callback(h *LoginHandler, query string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, h.Path()+"?"+query, nil))
	return rec
}

func TestLoginHandler(t *testing.T) {
	t.Run("Path From Redirect URI", func(t *testing.T) {
		assert.Equal(t, "/api/notion/callback", newLoginHandler(&stubExchanger{}).Path())
		assert.Equal(t, DefaultCallbackPath, NewLoginHandler(nil, nil, "http://localhost:3000", "s").Path())
		assert.Equal(t, DefaultCallbackPath, NewLoginHandler(nil, nil, "", "s").Path())
	})

	t.Run("Success", func(t *testing.T) {
		ex := &stubExchanger{token: &services.TokenResponse{AccessToken: "secret_abc", WorkspaceName: "Acme"}}
		h := newLoginHandler(ex)

		rec := callback(h, "code=auth-code&state=state-1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Acme")
		assert.Equal(t, []string{"auth-code"}, ex.codes)

		result := <-h.Result()
		require.NoError(t, result.Error())
		assert.Equal(t, "secret_abc", result.Token.AccessToken)

		_, open := <-h.Result()
		assert.False(t, open, "result channel should be closed")
	})

	t.Run("Invalid State", func(t *testing.T) {
		ex := &stubExchanger{}
		h := newLoginHandler(ex)

		rec := callback(h, "code=auth-code&state=forged")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, ex.codes)

		result := <-h.Result()
		assert.ErrorIs(t, result.Error(), shared.ErrAuthFailed)
	})

	t.Run("Denied", func(t *testing.T) {
		h := newLoginHandler(&stubExchanger{})

		rec := callback(h, "state=state-1&error=access_denied")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		result := <-h.Result()
		require.Error(t, result.Error())
		assert.Contains(t, result.Error().Error(), "access_denied")
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		h := newLoginHandler(&stubExchanger{err: errors.New("upstream down")})

		rec := callback(h, "code=auth-code&state=state-1")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		result := <-h.Result()
		assert.ErrorContains(t, result.Error(), "upstream down")
	})

	t.Run("Second Callback Rejected", func(t *testing.T) {
		ex := &stubExchanger{token: &services.TokenResponse{AccessToken: "secret_abc"}}
		h := newLoginHandler(ex)

		callback(h, "code=first&state=state-1")
		rec := callback(h, "code=second&state=state-1")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{"first"}, ex.codes)
	})
}
