package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/cloudnote/internal/server"
	"github.com/desertthunder/cloudnote/internal/services"
	"github.com/desertthunder/cloudnote/internal/shared"
	"github.com/desertthunder/cloudnote/internal/web"
	"github.com/urfave/cli/v3"
)

const authTimeout = 2 * time.Minute

// AuthLogin runs the OAuth flow against a local callback server and saves the token to the config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if !r.notion.HasClient() {
		return fmt.Errorf("%w: set notion.client_id and notion.client_secret (or %s/%s)",
			shared.ErrMissingCredentials, shared.EnvNotionClientID, shared.EnvNotionClientSecret)
	}

	token, err := r.doOAuth(ctx)
	if err != nil {
		return err
	}

	r.config.Notion.AccessToken = token.AccessToken
	r.config.Notion.WorkspaceName = token.WorkspaceName
	if err := r.saveConfig(); err != nil {
		return fmt.Errorf("authorized but failed to save token: %w", err)
	}

	r.logger.Info("authorization successful", "workspace", token.WorkspaceName, "token", shared.Redact(token.AccessToken, 4))
	r.writePlain("✓ Authorized with Notion workspace %q\n", token.WorkspaceName)
	return r.writePlain("Access token saved to %s\n", r.configPath)
}

func (r *Runner) doOAuth(ctx context.Context) (*services.TokenResponse, error) {
	state := shared.GenerateID()
	authURL, err := r.notion.AuthURL(state)
	if err != nil {
		return nil, err
	}

	handler := server.NewLoginHandler(r.notion, web.MustNew(), r.config.Notion.RedirectURI, state)
	httpServer := &http.Server{
		Addr:              callbackAddr(r.config.Notion.RedirectURI, r.config.Server.Addr()),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v%v", httpServer.Addr, handler.Path())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Notion authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.LoginResult

	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil || result.Token.AccessToken == "" {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}

// callbackAddr is the listen address for the redirect URI's host, or fallback when the URI has none.
func callbackAddr(redirectURI, fallback string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return fallback
	}
	if _, _, err := net.SplitHostPort(u.Host); err == nil {
		return u.Host
	}
	if u.Scheme == "https" {
		return net.JoinHostPort(u.Host, "443")
	}
	return net.JoinHostPort(u.Host, "80")
}

// AuthStatus checks the saved token by fetching the bot user behind it.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	token := r.config.Notion.AccessToken
	if token == "" {
		return fmt.Errorf("%w: run 'cloudnote auth login' or set %s", shared.ErrNotAuthenticated, shared.EnvNotionToken)
	}

	r.logger.Info("checking auth status", "token", shared.Redact(token, 4))

	user, err := r.notion.Me(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, true)
	}

	r.writePlainHeader("Notion Authorization")
	r.writePlain("Bot:       %s (%s)\n", user.Name, user.ID)
	if ws := user.WorkspaceName(); ws != "" {
		r.writePlain("Workspace: %s\n", ws)
	}
	return r.writePlain("Token:     %s\n", shared.Redact(token, 4))
}
