package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTestToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "m2m@clients",
		"exp": exp.Unix(),
	})
	raw, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func newTokenServer(t *testing.T, calls *atomic.Int64, accessToken string, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
		}
		if expiresIn > 0 {
			resp["expires_in"] = expiresIn
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClientCredentialsSource_Validation(t *testing.T) {
	_, err := NewClientCredentialsSource(ClientCredentialsConfig{})
	assert.Error(t, err)

	_, err = NewClientCredentialsSource(ClientCredentialsConfig{Domain: "example.auth0.com"})
	assert.Error(t, err)

	src, err := NewClientCredentialsSource(ClientCredentialsConfig{
		Domain:       "example.auth0.com",
		ClientID:     "id",
		ClientSecret: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.auth0.com/oauth/token", src.cfg.TokenURL)
}

func TestClientCredentialsSource_FetchesAndCaches(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, &calls, "tok-1", 3600)
	defer srv.Close()

	src, err := NewClientCredentialsSource(ClientCredentialsConfig{
		TokenURL:     srv.URL,
		ClientID:     "id",
		ClientSecret: "secret",
	})
	require.NoError(t, err)

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// Second call is served from cache.
	tok, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int64(1), calls.Load())
}

func TestClientCredentialsSource_InvalidateForcesRefetch(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, &calls, "tok-2", 3600)
	defer srv.Close()

	src, err := NewClientCredentialsSource(ClientCredentialsConfig{
		TokenURL:     srv.URL,
		ClientID:     "id",
		ClientSecret: "secret",
	})
	require.NoError(t, err)

	_, err = src.Token(context.Background())
	require.NoError(t, err)
	src.Invalidate()
	_, err = src.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load())
}

func TestClientCredentialsSource_ExpiryFromClaimWhenOmitted(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signedTestToken(t, exp)

	var calls atomic.Int64
	srv := newTokenServer(t, &calls, raw, 0)
	defer srv.Close()

	src, err := NewClientCredentialsSource(ClientCredentialsConfig{
		TokenURL:     srv.URL,
		ClientID:     "id",
		ClientSecret: "secret",
	})
	require.NoError(t, err)

	_, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.WithinDuration(t, exp, src.expires, time.Second)
}

func TestClientCredentialsSource_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"access_denied"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	src, err := NewClientCredentialsSource(ClientCredentialsConfig{
		TokenURL:     srv.URL,
		ClientID:     "id",
		ClientSecret: "wrong",
	})
	require.NoError(t, err)

	_, err = src.Token(context.Background())
	assert.Error(t, err)
}

func TestExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	raw := signedTestToken(t, exp)

	got, ok := ExpiryFromJWT(raw)
	require.True(t, ok)
	assert.WithinDuration(t, exp, got, time.Second)

	_, ok = ExpiryFromJWT("not-a-jwt")
	assert.False(t, ok)
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource("pre-provisioned")
	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pre-provisioned", tok)

	empty := NewStaticSource("")
	_, err = empty.Token(context.Background())
	assert.Error(t, err)
}
