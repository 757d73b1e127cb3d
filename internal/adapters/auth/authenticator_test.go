package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var authNow = time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

func signedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func tokenServer(t *testing.T, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestAuthenticator(issuer string) *Authenticator {
	return NewAuthenticator(Config{
		Issuer:   issuer,
		ClientID: "client-123",
		Now:      func() time.Time { return authNow },
	}, zerolog.Nop())
}

func TestAuthenticatorExchangeBuildsCredential(t *testing.T) {
	idToken := signedIDToken(t, jwt.MapClaims{"sub": "user-42"})
	server := tokenServer(t, fmt.Sprintf(`{"access_token":"at","refresh_token":"rt","id_token":%q,"expires_in":3600}`, idToken))

	cred, err := newTestAuthenticator(server.URL).Exchange(context.Background(), "code", "verifier", 2259)
	require.NoError(t, err)

	assert.Equal(t, domain.Credential{
		AccessToken:  "at",
		RefreshToken: "rt",
		IDToken:      idToken,
		ExpiresAt:    authNow.Add(time.Hour),
		UserID:       "user-42",
	}, cred)
}

func TestAuthenticatorRefreshFallsBackToTokenExpiry(t *testing.T) {
	exp := authNow.Add(90 * time.Minute)
	idToken := signedIDToken(t, jwt.MapClaims{"sub": "user-42", "exp": exp.Unix()})
	server := tokenServer(t, fmt.Sprintf(`{"access_token":"at2","id_token":%q}`, idToken))

	cred, err := newTestAuthenticator(server.URL).Refresh(context.Background(), "rt")
	require.NoError(t, err)

	assert.Equal(t, "at2", cred.AccessToken)
	assert.Empty(t, cred.RefreshToken)
	assert.True(t, exp.Equal(cred.ExpiresAt))
}

func TestAuthenticatorLoginCompletesThroughCallback(t *testing.T) {
	idToken := signedIDToken(t, jwt.MapClaims{"sub": "user-7"})
	server := tokenServer(t, fmt.Sprintf(`{"access_token":"at","refresh_token":"rt","id_token":%q,"expires_in":60}`, idToken))
	authenticator := NewAuthenticator(Config{
		Issuer:     server.URL,
		ClientID:   "client-123",
		ListenAddr: "127.0.0.1:0",
		Now:        func() time.Time { return authNow },
	}, zerolog.Nop())

	open := func(authURL string) error {
		parsed, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := parsed.Query()
		go func() {
			resp, err := http.Get(q.Get("redirect_uri") + "?code=the-code&state=" + url.QueryEscape(q.Get("state")))
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}

	cred, err := authenticator.Login(context.Background(), domain.LoginProvider{}, open)
	require.NoError(t, err)
	assert.Equal(t, "user-7", cred.UserID)
	assert.Equal(t, authNow.Add(time.Minute), cred.ExpiresAt)
}
