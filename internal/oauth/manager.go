package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/partscout/partscout/internal/cache"
	"github.com/partscout/partscout/internal/logging"
	"github.com/partscout/partscout/internal/providers"
)

// AppConfig describes one registered OAuth client-credentials app
type AppConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scope        string
}

// token is the cached access token with its absolute expiry
type token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (t token) valid() bool {
	return t.AccessToken != "" && time.Until(t.ExpiresAt) > 30*time.Second
}

// Manager obtains and caches access tokens for named OAuth apps using the
// client-credentials grant. Tokens live in the shared cache so multiple
// instances reuse each other's tokens; a SetNX lock keeps concurrent
// refreshes down to one upstream request.
type Manager struct {
	apps   map[string]AppConfig
	cache  cache.Cache
	client *http.Client
	logger *logging.Logger
}

// NewManager creates a token manager for the given apps
func NewManager(apps map[string]AppConfig, c cache.Cache, logger *logging.Logger) *Manager {
	if apps == nil {
		apps = map[string]AppConfig{}
	}
	return &Manager{
		apps:   apps,
		cache:  c,
		client: &http.Client{Timeout: 20 * time.Second},
		logger: logger,
	}
}

// Register adds or replaces an app configuration
func (m *Manager) Register(name string, cfg AppConfig) {
	m.apps[name] = cfg
}

// Configured reports whether the named app has usable credentials
func (m *Manager) Configured(name string) bool {
	cfg, ok := m.apps[name]
	return ok && cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.TokenURL != ""
}

// HasToken reports whether a token for the app exists or can be obtained.
// It never performs network IO; configured credentials count as obtainable.
func (m *Manager) HasToken(name string) bool {
	if _, ok := m.cachedToken(name); ok {
		return true
	}
	return m.Configured(name)
}

// TokenString returns a valid bearer token for the app, refreshing it via
// the client-credentials grant when the cached one is missing or expired
func (m *Manager) TokenString(ctx context.Context, name string) (string, error) {
	if tok, ok := m.cachedToken(name); ok {
		return tok.AccessToken, nil
	}

	cfg, ok := m.apps[name]
	if !ok || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return "", fmt.Errorf("%w: oauth app %q is not configured", providers.ErrAuthentication, name)
	}

	return m.refresh(ctx, name, cfg)
}

// refresh fetches a new token, letting only one caller per app talk to the
// token endpoint at a time
func (m *Manager) refresh(ctx context.Context, name string, cfg AppConfig) (string, error) {
	lockKey := "oauth:lock:" + name

	for attempt := 0; attempt < 3; attempt++ {
		if m.cache.SetNX(lockKey, "1", 15*time.Second) {
			defer m.cache.Delete(lockKey)

			tok, err := m.fetchToken(ctx, cfg)
			if err != nil {
				return "", err
			}
			ttl := time.Until(tok.ExpiresAt)
			if ttl > time.Minute {
				ttl -= 30 * time.Second
			}
			m.cache.SetWithTTL(m.tokenKey(name), tok, ttl)
			m.logger.Debug("oauth token refreshed", logging.WithFields(map[string]interface{}{
				"app":        name,
				"expires_at": tok.ExpiresAt,
			}))
			return tok.AccessToken, nil
		}

		// Another caller holds the refresh lock; wait for its result
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
		if tok, ok := m.cachedToken(name); ok {
			return tok.AccessToken, nil
		}
	}

	return "", fmt.Errorf("%w: timed out waiting for oauth token of %q", providers.ErrAuthentication, name)
}

func (m *Manager) fetchToken(ctx context.Context, cfg AppConfig) (token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)
	if cfg.Scope != "" {
		form.Set("scope", cfg.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return token{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return token{}, fmt.Errorf("%w: token request failed: %v", providers.ErrAuthentication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return token{}, fmt.Errorf("%w: token endpoint returned %d", providers.ErrAuthentication, resp.StatusCode)
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return token{}, fmt.Errorf("%w: failed to decode token response: %v", providers.ErrAuthentication, err)
	}
	if decoded.AccessToken == "" {
		return token{}, fmt.Errorf("%w: token endpoint returned no access token", providers.ErrAuthentication)
	}

	return token{
		AccessToken: decoded.AccessToken,
		ExpiresAt:   tokenExpiry(decoded.AccessToken, decoded.ExpiresIn),
	}, nil
}

func (m *Manager) cachedToken(name string) (token, bool) {
	raw, ok := m.cache.Get(m.tokenKey(name))
	if !ok {
		return token{}, false
	}

	switch v := raw.(type) {
	case token:
		if v.valid() {
			return v, true
		}
	default:
		// Redis round trip loses the concrete type; re-decode via JSON
		data, err := json.Marshal(raw)
		if err != nil {
			return token{}, false
		}
		var tok token
		if err := json.Unmarshal(data, &tok); err != nil {
			return token{}, false
		}
		if tok.valid() {
			return tok, true
		}
	}
	return token{}, false
}

func (m *Manager) tokenKey(name string) string {
	return "oauth:token:" + name
}

// tokenExpiry derives the absolute expiry from expires_in, falling back to
// the exp claim when the token happens to be a JWT and expires_in is absent
func tokenExpiry(accessToken string, expiresIn int) time.Time {
	if expiresIn > 0 {
		return time.Now().Add(time.Duration(expiresIn) * time.Second)
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}

	// Opaque token without expiry info, assume a conservative lifetime
	return time.Now().Add(10 * time.Minute)
}

var _ providers.TokenSource = (*Manager)(nil)
