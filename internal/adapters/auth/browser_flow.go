package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	maxTokenResponseBytes = 1 << 20
	callbackPath          = "/auth/callback"
)

var (
	ErrStateMismatch       = errors.New("oauth callback state mismatch")
	ErrCallbackTimeout     = errors.New("timed out waiting for oauth callback")
	ErrMissingState        = errors.New("expected state is required")
	ErrRefreshTokenInvalid = errors.New("refresh token is invalid or expired")
)

type AuthorizationRequest struct {
	AuthURL       string
	ClientID      string
	RedirectURI   string
	Scopes        []string
	State         string
	CodeChallenge string
	// IdpID selects the identity provider for alliance-partner logins.
	IdpID string
}

type TokenExchangeRequest struct {
	Issuer       string
	ClientID     string
	RedirectURI  string
	Code         string
	CodeVerifier string
}

type RefreshTokenRequest struct {
	Issuer       string
	ClientID     string
	RefreshToken string
}

type ExchangedTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func NewState() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// RedirectURIForPort is the loopback redirect registered for the client.
func RedirectURIForPort(port int) string {
	return fmt.Sprintf("http://localhost:%d%s", port, callbackPath)
}

func BuildAuthorizationURL(req AuthorizationRequest) (string, error) {
	if req.AuthURL == "" {
		return "", errors.New("auth url is required")
	}
	if req.ClientID == "" {
		return "", errors.New("client id is required")
	}
	if req.RedirectURI == "" {
		return "", errors.New("redirect uri is required")
	}
	if req.State == "" {
		return "", errors.New("state is required")
	}
	if req.CodeChallenge == "" {
		return "", errors.New("code challenge is required")
	}

	parsed, err := url.Parse(req.AuthURL)
	if err != nil {
		return "", fmt.Errorf("parse auth url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("auth url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("auth url host is required")
	}

	q := parsed.Query()
	q.Set("response_type", "code")
	q.Set("client_id", req.ClientID)
	q.Set("redirect_uri", req.RedirectURI)
	if len(req.Scopes) > 0 {
		q.Set("scope", strings.Join(req.Scopes, " "))
	}
	q.Set("state", req.State)
	q.Set("code_challenge", req.CodeChallenge)
	q.Set("code_challenge_method", PKCEChallengeMethodS256)
	if req.IdpID != "" {
		q.Set("idp_id", req.IdpID)
	}
	parsed.RawQuery = q.Encode()

	return parsed.String(), nil
}

type CallbackServer struct {
	expectedState string
	listener      net.Listener
	server        *http.Server
	resultCh      chan callbackResult
	resultOnce    sync.Once
	closeOnce     sync.Once
}

type callbackResult struct {
	code string
	err  error
}

func StartCallbackServer(listenAddr string, expectedState string) (*CallbackServer, error) {
	if expectedState == "" {
		return nil, ErrMissingState
	}
	if listenAddr == "" {
		listenAddr = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen callback server: %w", err)
	}

	cb := &CallbackServer{
		expectedState: expectedState,
		listener:      listener,
		resultCh:      make(chan callbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, cb.handleCallback)

	cb.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if serveErr := cb.server.Serve(cb.listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			cb.trySendResult(callbackResult{err: serveErr})
		}
	}()

	return cb, nil
}

func (c *CallbackServer) Port() int {
	if tcpAddr, ok := c.listener.Addr().(*net.TCPAddr); ok {
		return tcpAddr.Port
	}
	return 0
}

func (c *CallbackServer) RedirectURI() string {
	return RedirectURIForPort(c.Port())
}

// WaitForCode blocks until the browser hits the callback, the timeout
// elapses or ctx is done. The server is closed on return.
func (c *CallbackServer) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	defer func() { _ = c.Close() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-c.resultCh:
		return result.code, result.err
	case <-timer.C:
		return "", ErrCallbackTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *CallbackServer) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		closeErr = c.server.Close()
	})
	return closeErr
}

func (c *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	if c.expectedState != "" && state != c.expectedState {
		c.trySendResult(callbackResult{err: ErrStateMismatch})
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	if oauthError := r.URL.Query().Get("error"); oauthError != "" {
		description := r.URL.Query().Get("error_description")
		if description != "" {
			oauthError = oauthError + ": " + description
		}
		c.trySendResult(callbackResult{err: errors.New(oauthError)})
		http.Error(w, "oauth error", http.StatusBadRequest)
		return
	}
	if code == "" {
		c.trySendResult(callbackResult{err: errors.New("missing authorization code")})
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	c.trySendResult(callbackResult{code: code})
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Login complete. You can close this window and return to OpenNOW."))
}

func (c *CallbackServer) trySendResult(result callbackResult) {
	c.resultOnce.Do(func() {
		c.resultCh <- result
	})
}

func ExchangeCodeForTokens(ctx context.Context, client *http.Client, req TokenExchangeRequest) (ExchangedTokens, error) {
	if req.Issuer == "" {
		return ExchangedTokens{}, errors.New("issuer is required")
	}
	if req.ClientID == "" {
		return ExchangedTokens{}, errors.New("client id is required")
	}
	if req.RedirectURI == "" {
		return ExchangedTokens{}, errors.New("redirect uri is required")
	}
	if req.Code == "" {
		return ExchangedTokens{}, errors.New("authorization code is required")
	}
	if req.CodeVerifier == "" {
		return ExchangedTokens{}, errors.New("code verifier is required")
	}

	values := url.Values{}
	values.Set("grant_type", "authorization_code")
	values.Set("code", req.Code)
	values.Set("redirect_uri", req.RedirectURI)
	values.Set("client_id", req.ClientID)
	values.Set("code_verifier", req.CodeVerifier)

	tokens, err := postTokenForm(ctx, client, req.Issuer, values)
	if err != nil {
		return ExchangedTokens{}, fmt.Errorf("exchange code for tokens: %w", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" || tokens.IDToken == "" {
		return ExchangedTokens{}, errors.New("token response missing required fields")
	}

	return tokens, nil
}

// RefreshTokens trades a refresh token for a new token set. The response
// may omit the refresh token; callers keep the old one in that case.
func RefreshTokens(ctx context.Context, client *http.Client, req RefreshTokenRequest) (ExchangedTokens, error) {
	if req.Issuer == "" {
		return ExchangedTokens{}, errors.New("issuer is required")
	}
	if req.ClientID == "" {
		return ExchangedTokens{}, errors.New("client id is required")
	}
	if req.RefreshToken == "" {
		return ExchangedTokens{}, errors.New("refresh token is required")
	}

	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", req.RefreshToken)
	values.Set("client_id", req.ClientID)

	tokens, err := postTokenForm(ctx, client, req.Issuer, values)
	if err != nil {
		var oauthErr *OAuthError
		if errors.As(err, &oauthErr) && oauthErr.Code == "invalid_grant" {
			return ExchangedTokens{}, fmt.Errorf("%w: %s", ErrRefreshTokenInvalid, oauthErr)
		}
		return ExchangedTokens{}, fmt.Errorf("refresh tokens: %w", err)
	}
	if tokens.AccessToken == "" {
		return ExchangedTokens{}, errors.New("token response missing access token")
	}

	return tokens, nil
}

func postTokenForm(ctx context.Context, client *http.Client, issuer string, values url.Values) (ExchangedTokens, error) {
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := strings.TrimRight(issuer, "/") + "/token"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return ExchangedTokens{}, fmt.Errorf("create token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return ExchangedTokens{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return ExchangedTokens{}, decodeOAuthError(resp)
	}

	var tokens ExchangedTokens
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTokenResponseBytes)).Decode(&tokens); err != nil {
		return ExchangedTokens{}, fmt.Errorf("decode token response: %w", err)
	}

	return tokens, nil
}

// OAuthError is a non-2xx token endpoint response.
type OAuthError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *OAuthError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("token endpoint returned status %d", e.StatusCode)
	}
	if e.Description != "" {
		return fmt.Sprintf("token endpoint returned status %d: %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("token endpoint returned status %d: %s", e.StatusCode, e.Code)
}

func decodeOAuthError(resp *http.Response) error {
	var body oauthErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxTokenResponseBytes)).Decode(&body)

	return &OAuthError{StatusCode: resp.StatusCode, Code: body.Error, Description: body.ErrorDescription}
}
