package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleIssuer = "https://accounts.google.com"

// GoogleConfig holds the OAuth client settings for Google sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GoogleOptions customises provider behaviour, primarily for testing.
type GoogleOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// GoogleProvider verifies Google ID tokens and exchanges authorization
// codes. OIDC discovery runs lazily on first use so construction never
// touches the network.
type GoogleProvider struct {
	cfg         GoogleConfig
	oauthConfig *oauth2.Config
	httpClient  *http.Client
	timeout     time.Duration

	initMu   sync.Mutex
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider validates the configuration and builds the provider.
func NewGoogleProvider(cfg GoogleConfig, opts GoogleOptions) (*GoogleProvider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("google provider: client id is required")
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	return &GoogleProvider{
		cfg: cfg,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
	}, nil
}

// AuthURL builds the Google authorization URL.
func (p *GoogleProvider) AuthURL(state string) (string, error) {
	if strings.TrimSpace(p.cfg.RedirectURL) == "" {
		return "", errors.New("google provider: redirect url is required")
	}
	return p.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// Exchange redeems an authorization code and verifies the returned ID token.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (Identity, error) {
	if strings.TrimSpace(code) == "" {
		return Identity{}, errors.New("google provider: code is required")
	}

	ctx, cancel := context.WithTimeout(p.clientContext(ctx), p.timeout)
	defer cancel()

	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("google provider: exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return Identity{}, errors.New("google provider: response missing id_token")
	}

	return p.VerifyIDToken(ctx, rawIDToken)
}

// VerifyIDToken validates a Google-issued ID token signature and
// audience and extracts the asserted identity.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (Identity, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return Identity{}, errors.New("google provider: id token is required")
	}

	verifier, err := p.idTokenVerifier(ctx)
	if err != nil {
		return Identity{}, err
	}

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("google provider: verify id token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("google provider: decode claims: %w", err)
	}
	if claims.Email == "" {
		return Identity{}, errors.New("google provider: id token missing email claim")
	}

	return Identity{
		Email:         strings.ToLower(claims.Email),
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}

// idTokenVerifier runs OIDC discovery on first use. A failed discovery
// is not cached, so the next call retries instead of pinning a
// transient network error for the process lifetime.
func (p *GoogleProvider) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	p.initMu.Lock()
	defer p.initMu.Unlock()

	if p.verifier != nil {
		return p.verifier, nil
	}

	discoveryCtx, cancel := context.WithTimeout(p.clientContext(context.Background()), p.timeout)
	defer cancel()

	issuer, err := oidc.NewProvider(discoveryCtx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("google provider: discovery failed: %w", err)
	}
	p.verifier = issuer.Verifier(&oidc.Config{ClientID: p.cfg.ClientID})
	return p.verifier, nil
}

func (p *GoogleProvider) clientContext(ctx context.Context) context.Context {
	if p.httpClient != nil {
		return oidc.ClientContext(ctx, p.httpClient)
	}
	return ctx
}
