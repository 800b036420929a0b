package iol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the InvertirOnline API root.
const DefaultBaseURL = "https://api.invertironline.com"

// APIError is an API answer that is not a success, as received.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("iol api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), strings.TrimSpace(e.Body))
}

// Session holds the bearer token of an API user.
//
// The token is obtained on first use with a password grant. When the API
// rejects it, the session refreshes it once and retries the request once.
// A Session is safe for concurrent use.
type Session struct {
	conf     oauth2.Config
	username string
	password string
	client   *http.Client
	logger   *zap.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewSession returns a Session for username on the API at baseURL. A nil
// client means http.DefaultClient.
func NewSession(baseURL, username, password string, client *http.Client, logger *zap.Logger) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Session{
		conf: oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		username: username,
		password: password,
		client:   client,
		logger:   logger,
	}
}

// oauthContext makes the oauth2 package use the session's client.
func (s *Session) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.client)
}

// Token returns a valid token, logging in or refreshing when needed.
func (s *Session) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.token == nil:
		return s.login(ctx)
	case !s.token.Valid():
		return s.refresh(ctx)
	}
	return s.token, nil
}

// Invalidate forces a refresh of stale, unless the token has already been
// replaced by a concurrent request.
func (s *Session) Invalidate(ctx context.Context, stale *oauth2.Token) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil && s.token.AccessToken != stale.AccessToken {
		return s.token, nil
	}
	return s.refresh(ctx)
}

func (s *Session) login(ctx context.Context) (*oauth2.Token, error) {
	token, err := s.conf.PasswordCredentialsToken(s.oauthContext(ctx), s.username, s.password)
	if err != nil {
		s.token = nil
		return nil, fmt.Errorf("iol login failed: %w", asAPIError(err))
	}
	s.logger.Debug("iol login", zap.String("username", s.username), zap.Time("expiry", token.Expiry))
	s.token = token
	return token, nil
}

// refresh uses the refresh token when there is one, and logs in again
// otherwise or when the refresh is rejected.
func (s *Session) refresh(ctx context.Context) (*oauth2.Token, error) {
	if s.token == nil || s.token.RefreshToken == "" {
		return s.login(ctx)
	}
	expired := *s.token
	expired.Expiry = time.Now().Add(-time.Minute)
	token, err := s.conf.TokenSource(s.oauthContext(ctx), &expired).Token()
	if err != nil {
		s.logger.Debug("iol refresh rejected, logging in again", zap.Error(err))
		return s.login(ctx)
	}
	s.token = token
	return token, nil
}

// Do sends an authenticated request built by newReq and returns the response
// body of a 2xx answer. A 401 answer triggers one token refresh and one
// retry; any other failure is returned as an *APIError.
func (s *Session) Do(ctx context.Context, newReq func(context.Context) (*http.Request, error)) ([]byte, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	status, body, err := s.send(ctx, newReq, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		s.logger.Debug("iol token rejected, refreshing")
		if token, err = s.Invalidate(ctx, token); err != nil {
			return nil, err
		}
		if status, body, err = s.send(ctx, newReq, token); err != nil {
			return nil, err
		}
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}
	return body, nil
}

func (s *Session) send(ctx context.Context, newReq func(context.Context) (*http.Request, error), token *oauth2.Token) (int, []byte, error) {
	req, err := newReq(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("cannot create http request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("cannot execute http request: %w", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return 0, nil, fmt.Errorf("cannot read receiving http body: %w", err)
	}
	return resp.StatusCode, buf.Bytes(), nil
}

// asAPIError exposes the token endpoint answer as an *APIError.
func asAPIError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &APIError{StatusCode: re.Response.StatusCode, Body: string(re.Body)}
	}
	return err
}
