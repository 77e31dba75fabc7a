// Package auth acquires bearer tokens for the platform API.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// expirySlack is subtracted from the token expiry so a token is refreshed
// before it lapses mid-operation.
const expirySlack = 30 * time.Second

// ClientCredentialsConfig configures the machine-to-machine token flow.
type ClientCredentialsConfig struct {
	// Domain is the tenant domain, for example cytoreason-pyy.eu.auth0.com.
	// TokenURL overrides the derived https://<domain>/oauth/token when set.
	Domain   string
	TokenURL string

	ClientID     string
	ClientSecret string

	// Audience is sent as the audience endpoint parameter when set.
	Audience string

	// HTTPClient is used for the token request. Nil uses http.DefaultClient.
	HTTPClient *http.Client

	Log *zap.Logger
}

// ClientCredentialsSource fetches tokens via the OAuth2 client-credentials
// grant and caches them until shortly before expiry.
type ClientCredentialsSource struct {
	cfg    clientcredentials.Config
	client *http.Client
	log    *zap.Logger

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClientCredentialsSource builds a token source from the credential bundle.
func NewClientCredentialsSource(cfg ClientCredentialsConfig) (*ClientCredentialsSource, error) {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		if cfg.Domain == "" {
			return nil, fmt.Errorf("auth: domain or token URL required")
		}
		tokenURL = fmt.Sprintf("https://%s/oauth/token", cfg.Domain)
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("auth: client id and secret required")
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}
	if cfg.Audience != "" {
		cc.EndpointParams = map[string][]string{"audience": {cfg.Audience}}
	}

	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &ClientCredentialsSource{
		cfg:    cc,
		client: cfg.HTTPClient,
		log:    log,
	}, nil
}

// Token returns a cached token, fetching a fresh one when the cached token
// is within expirySlack of its expiry.
func (s *ClientCredentialsSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expires.Add(-expirySlack)) {
		return s.token, nil
	}

	if s.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	}

	tok, err := s.cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("auth: fetch token: %w", err)
	}

	s.token = tok.AccessToken
	s.expires = tok.Expiry
	if s.expires.IsZero() {
		// Some token endpoints omit expires_in. Fall back to the exp claim.
		if exp, ok := ExpiryFromJWT(tok.AccessToken); ok {
			s.expires = exp
		}
	}

	s.log.Debug("fetched access token", zap.Time("expires", s.expires))
	return s.token, nil
}

// Invalidate drops the cached token so the next Token call refetches.
func (s *ClientCredentialsSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expires = time.Time{}
}

// ExpiryFromJWT reads the exp claim without verifying the signature. The
// platform verifies tokens; locally the expiry only gates cache refresh.
func ExpiryFromJWT(raw string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// StaticSource serves one pre-provisioned token.
type StaticSource struct {
	token string
}

// NewStaticSource wraps a fixed token, for example from the AUTH_TOKEN key
// of the credential bundle.
func NewStaticSource(token string) *StaticSource {
	return &StaticSource{token: token}
}

func (s *StaticSource) Token(_ context.Context) (string, error) {
	if s.token == "" {
		return "", fmt.Errorf("auth: no token provisioned")
	}
	return s.token, nil
}
