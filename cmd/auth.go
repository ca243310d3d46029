package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/stepsync/internal/server"
	"github.com/desertthunder/stepsync/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// tokenKey is the KV entry holding the persisted session token.
const tokenKey = "auth_token"

// AuthLogin runs the browser OAuth flow: it serves the loopback redirect
// endpoint, prints the authorization URL, exchanges the returned code
// and persists the session token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.oauth == nil {
		return fmt.Errorf("%w: auth service not initialized", shared.ErrServiceUnavailable)
	}
	if r.store == nil {
		return fmt.Errorf("%w: run 'stepsync setup' first", shared.ErrStorageUnavailable)
	}

	redirect, err := url.Parse(r.config.Auth.RedirectURI)
	if err != nil {
		return fmt.Errorf("%w: invalid redirect_uri: %v", shared.ErrInvalidConfig, err)
	}

	state := shared.GenerateID()
	callback := server.NewCallbackServer(redirect.Host, state)
	if err := callback.Start(); err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}

	r.writePlain("Open this URL in your browser to sign in:\n\n  %s\n\n", r.oauth.AuthCodeURL(state))
	r.writePlain("Waiting for the browser callback...\n")

	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(cmd.Int("timeout"))*time.Second)
	defer cancel()

	result, err := callback.Wait(waitCtx)
	if err != nil {
		return fmt.Errorf("sign-in did not complete: %w", err)
	}
	if result.Err != nil {
		return fmt.Errorf("sign-in rejected: %w", result.Err)
	}

	identity, err := r.oauth.Exchange(ctx, result.Code)
	if err != nil {
		return fmt.Errorf("failed to complete sign-in: %w", err)
	}

	if err := r.persistToken(ctx); err != nil {
		r.logger.Warn("session will not survive restarts", "error", err)
	}

	r.logger.Info("signed in", "uid", identity.UID)
	return r.writePlain("✓ Signed in as %s <%s>\n", identity.DisplayName, identity.Email)
}

// AuthLogout signs out and forgets the persisted session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if r.oauth == nil {
		return fmt.Errorf("%w: auth service not initialized", shared.ErrServiceUnavailable)
	}

	r.oauth.SignOut()
	if r.store != nil {
		if err := r.store.Remove(ctx, tokenKey); err != nil {
			r.logger.Warn("failed to forget stored session", "error", err)
		}
	}

	return r.writePlain("✓ Signed out\n")
}

// AuthWhoami shows the signed-in user.
func (r *Runner) AuthWhoami(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil {
		return fmt.Errorf("%w: auth service not initialized", shared.ErrServiceUnavailable)
	}

	identity, ok := r.auth.Identity()
	if !ok {
		return r.writePlain("Not signed in\n")
	}

	if cmd.Bool("json") {
		return r.writeJSON(identity, true)
	}
	return r.writePlain("%s <%s> (uid %s)\n", identity.DisplayName, identity.Email, identity.UID)
}

// persistToken stores the current session token in the KV store.
func (r *Runner) persistToken(ctx context.Context) error {
	token, err := r.oauth.Token()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return r.store.Set(ctx, tokenKey, string(raw))
}

// restoreSession signs in with a previously persisted token, if any.
// Failures are silent; the user simply stays anonymous.
func (r *Runner) restoreSession(ctx context.Context) {
	if r.oauth == nil || r.store == nil {
		return
	}

	raw, ok, err := r.store.Get(ctx, tokenKey)
	if err != nil || !ok {
		return
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		r.logger.Debug("stored token is undecodable, ignoring", "error", err)
		return
	}

	if _, err := r.oauth.SignInWithToken(ctx, &token); err != nil {
		r.logger.Debug("stored session could not be restored", "error", err)
	}
}
