package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/stepsync/internal/shared"
	"golang.org/x/oauth2"
)

// Authenticator manages the user's session with the identity service.
//
// It wraps an [oauth2.Config] for the sign-in exchange, holds the
// resulting token source, and notifies subscribers on every auth-state
// transition (sign-in, sign-out). It doubles as the [TokenProvider] for
// the document client.
type Authenticator struct {
	config      *oauth2.Config
	httpClient  *http.Client
	userInfoURL string

	mu       sync.Mutex
	source   oauth2.TokenSource
	identity *Identity
	watchers []func(*Identity)
}

var _ TokenProvider = (*Authenticator)(nil)

// NewAuthenticator creates an Authenticator from auth config.
func NewAuthenticator(cfg shared.AuthConfig, client *http.Client) *Authenticator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Authenticator{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		httpClient:  client,
		userInfoURL: cfg.UserInfoURL,
	}
}

// AuthCodeURL returns the URL the user visits to authorize; state should
// be cryptographically random.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token, fetches the user's
// identity, and transitions to the signed-in state.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return a.SignInWithToken(ctx, token)
}

// SignInWithToken installs an existing token (e.g. restored from keyring)
// and resolves the identity behind it.
func (a *Authenticator) SignInWithToken(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	source := a.config.TokenSource(ctx, token)

	identity, err := a.fetchIdentity(ctx, source)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.source = source
	a.identity = identity
	watchers := append([]func(*Identity){}, a.watchers...)
	a.mu.Unlock()

	for _, fn := range watchers {
		fn(identity)
	}
	return identity, nil
}

// SignOut clears the session and notifies watchers with a nil identity.
func (a *Authenticator) SignOut() {
	a.mu.Lock()
	a.source = nil
	a.identity = nil
	watchers := append([]func(*Identity){}, a.watchers...)
	a.mu.Unlock()

	for _, fn := range watchers {
		fn(nil)
	}
}

// Identity returns the signed-in user, if any.
func (a *Authenticator) Identity() (*Identity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.identity, a.identity != nil
}

// OnAuthStateChanged registers fn for sign-in/sign-out transitions.
// A nil identity means signed out.
func (a *Authenticator) OnAuthStateChanged(fn func(*Identity)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.watchers = append(a.watchers, fn)
}

// Token returns the current token for persistence, refreshed if stale.
func (a *Authenticator) Token() (*oauth2.Token, error) {
	a.mu.Lock()
	source := a.source
	a.mu.Unlock()

	if source == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return source.Token()
}

// AccessToken implements [TokenProvider].
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	source := a.source
	a.mu.Unlock()

	if source == nil {
		return "", shared.ErrNotAuthenticated
	}

	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	}
	return token.AccessToken, nil
}

func (a *Authenticator) fetchIdentity(ctx context.Context, source oauth2.TokenSource) (*Identity, error) {
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: userinfo returned %d", shared.ErrPermissionDenied, resp.StatusCode)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	if identity.UID == "" {
		return nil, fmt.Errorf("%w: identity missing uid", shared.ErrPermissionDenied)
	}
	return &identity, nil
}
