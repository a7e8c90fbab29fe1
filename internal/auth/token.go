// Package auth obtains and refreshes bearer credentials for outbound model
// requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrAuthUnavailable indicates the credential backend is unreachable. Model
// calls cannot proceed until it recovers; callers must not retry with a
// stale token.
var ErrAuthUnavailable = errors.New("credential backend unavailable")

// Credential is a bearer token with its expiry. A zero Expiry means the
// credential does not expire.
type Credential struct {
	Token  string
	Expiry time.Time
}

// TokenProvider yields valid credentials for outbound model requests.
// Implementations refresh transparently; callers never see an expired
// credential.
type TokenProvider interface {
	Acquire(ctx context.Context) (Credential, error)
}

// ClientCredentialsConfig configures an OAuth2 client-credentials token
// provider (the Azure AD service-principal flow).
type ClientCredentialsConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

type oauthProvider struct {
	src oauth2.TokenSource
}

// NewClientCredentials creates a TokenProvider backed by the OAuth2
// client-credentials grant. The underlying token source caches tokens and
// refreshes them before expiry.
func NewClientCredentials(ctx context.Context, cfg ClientCredentialsConfig) (TokenProvider, error) {
	if cfg.TokenURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("incomplete client credentials: token URL, client ID and secret are required")
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}

	return &oauthProvider{src: cc.TokenSource(ctx)}, nil
}

func (p *oauthProvider) Acquire(ctx context.Context) (Credential, error) {
	tok, err := p.src.Token()
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	return Credential{Token: tok.AccessToken, Expiry: tok.Expiry}, nil
}

type staticProvider struct {
	cred Credential
}

// NewStatic creates a TokenProvider that always returns the given key.
// Used for plain API-key deployments.
func NewStatic(key string) TokenProvider {
	return &staticProvider{cred: Credential{Token: key}}
}

func (p *staticProvider) Acquire(context.Context) (Credential, error) {
	if p.cred.Token == "" {
		return Credential{}, fmt.Errorf("%w: no API key configured", ErrAuthUnavailable)
	}
	return p.cred, nil
}

// Transport returns an http.RoundTripper that injects the bearer credential
// into every outbound request. Requests fail with ErrAuthUnavailable when a
// credential cannot be acquired.
func Transport(provider TokenProvider, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &bearerRoundTripper{provider: provider, next: next}
}

type bearerRoundTripper struct {
	provider TokenProvider
	next     http.RoundTripper
}

func (b *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cred, err := b.provider.Acquire(req.Context())
	if err != nil {
		return nil, err
	}

	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", "Bearer "+cred.Token)
	return b.next.RoundTrip(cloned)
}
