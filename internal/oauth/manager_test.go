package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/partscout/partscout/internal/cache"
	"github.com/partscout/partscout/internal/logging"
	"github.com/partscout/partscout/internal/providers"
)

func newTestManager(t *testing.T, apps map[string]AppConfig) (*Manager, cache.Cache) {
	t.Helper()
	c := cache.NewMemory(5 * time.Minute)
	t.Cleanup(c.Stop)
	return NewManager(apps, c, logging.New(logging.LevelError)), c
}

func tokenServer(t *testing.T, calls *int32, accessToken string, expiresIn int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Fatalf("bad form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("unexpected grant type %q", got)
		}
		resp := map[string]interface{}{"access_token": accessToken, "token_type": "Bearer"}
		if expiresIn > 0 {
			resp["expires_in"] = expiresIn
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestManager_Configured(t *testing.T) {
	m, _ := newTestManager(t, map[string]AppConfig{
		"full":    {ClientID: "id", ClientSecret: "sec", TokenURL: "https://x/token"},
		"partial": {ClientID: "id"},
	})

	if !m.Configured("full") {
		t.Error("app with all fields must be configured")
	}
	if m.Configured("partial") {
		t.Error("app missing secret and token url must not be configured")
	}
	if m.Configured("unknown") {
		t.Error("unknown app must not be configured")
	}
}

func TestManager_TokenStringFetchesAndCaches(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls, "tok-abc", 3600)

	m, _ := newTestManager(t, map[string]AppConfig{
		"digikey": {ClientID: "id", ClientSecret: "sec", TokenURL: srv.URL},
	})

	for i := 0; i < 3; i++ {
		tok, err := m.TokenString(context.Background(), "digikey")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok != "tok-abc" {
			t.Errorf("unexpected token %q", tok)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
}

func TestManager_TokenStringUnconfigured(t *testing.T) {
	m, _ := newTestManager(t, nil)

	_, err := m.TokenString(context.Background(), "missing")
	if !errors.Is(err, providers.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestManager_TokenEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	m, _ := newTestManager(t, map[string]AppConfig{
		"app": {ClientID: "id", ClientSecret: "sec", TokenURL: srv.URL},
	})

	if _, err := m.TokenString(context.Background(), "app"); !errors.Is(err, providers.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestManager_HasToken(t *testing.T) {
	m, _ := newTestManager(t, map[string]AppConfig{
		"configured": {ClientID: "id", ClientSecret: "sec", TokenURL: "https://x/token"},
	})

	if !m.HasToken("configured") {
		t.Error("configured app counts as obtainable")
	}
	if m.HasToken("unknown") {
		t.Error("unknown app has no token")
	}
}

func TestManager_ConcurrentRefreshSingleFlight(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls, "tok-xyz", 3600)

	m, _ := newTestManager(t, map[string]AppConfig{
		"app": {ClientID: "id", ClientSecret: "sec", TokenURL: srv.URL},
	})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.TokenString(context.Background(), "app")
			if err != nil {
				errs <- err
				return
			}
			if tok != "tok-xyz" {
				errs <- fmt.Errorf("unexpected token %q", tok)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single upstream refresh, got %d", got)
	}
}

func TestTokenExpiry(t *testing.T) {
	t.Run("expires_in wins", func(t *testing.T) {
		got := tokenExpiry("opaque", 3600)
		want := time.Now().Add(time.Hour)
		if got.Before(want.Add(-5*time.Second)) || got.After(want.Add(5*time.Second)) {
			t.Errorf("expected expiry near %v, got %v", want, got)
		}
	})

	t.Run("jwt exp claim fallback", func(t *testing.T) {
		exp := time.Now().Add(42 * time.Minute).Truncate(time.Second)
		claims := jwt.MapClaims{"exp": exp.Unix()}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
		if err != nil {
			t.Fatalf("failed to sign test token: %v", err)
		}

		got := tokenExpiry(signed, 0)
		if !got.Equal(exp) {
			t.Errorf("expected %v, got %v", exp, got)
		}
	})

	t.Run("opaque token conservative default", func(t *testing.T) {
		got := tokenExpiry("not-a-jwt", 0)
		if time.Until(got) > 11*time.Minute || time.Until(got) < 9*time.Minute {
			t.Errorf("expected roughly 10 minute lifetime, got %v", time.Until(got))
		}
	})
}
