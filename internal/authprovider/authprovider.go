// Package authprovider implements a client for the hosted identity
// service speaking a GoTrue-compatible REST API. The client owns the
// authoritative session record, persists its refresh token between
// restarts, and fans session-state transitions out to subscribers.
package authprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Metadata carries the profile attributes the application stores with
// the provider-side user record.
type Metadata struct {
	Name   string   `json:"name"`
	Skills []string `json:"skills"`
}

// Identity is one linked identity (email, google, ...) of a provider user.
type Identity struct {
	IdentityID string `json:"identity_id"`
	Provider   string `json:"provider"`
}

// ProviderUser is the raw user record embedded in a provider session.
type ProviderUser struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	CreatedAt    time.Time  `json:"created_at"`
	UserMetadata Metadata   `json:"user_metadata"`
	Identities   []Identity `json:"identities"`
}

// Session is the provider-issued proof of an authenticated identity.
// It is opaque to the application beyond the embedded user record:
// never mutated, only replaced wholesale.
type Session struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	RefreshToken string       `json:"refresh_token"`
	User         ProviderUser `json:"user"`
}

// SignupResult is the raw provider payload of a sign-up call. Session
// is nil when the account requires an email confirmation step, and the
// Identities list of User is empty when the account already existed.
type SignupResult struct {
	User    *ProviderUser `json:"user"`
	Session *Session      `json:"session"`
}

// APIError is a service-reported failure from the identity provider.
type APIError struct {
	StatusCode  int    `json:"-"`
	Message     string `json:"msg"`
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	message := e.Message
	if message == "" {
		message = e.Description
	}
	if message == "" {
		message = "identity provider request failed"
	}
	return fmt.Sprintf("auth provider: %s (status %d)", message, e.StatusCode)
}

type persistedToken struct {
	RefreshToken string `json:"refresh_token"`
}

// Client talks to the hosted identity service. One Client serves one
// device session; notifications are delivered in the serialized order
// of the provider calls that produced them.
type Client struct {
	httpClient *resty.Client
	tokenFile  string

	mu               sync.Mutex
	session          *Session
	subscribers      map[int]func(*Session)
	nextSubscriberID int
}

// New creates a provider client for the given service base URL and API
// key. tokenFile is where the client keeps its refresh token between
// process restarts.
func New(baseURL, apiKey, tokenFile string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("apikey", apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		httpClient:  httpClient,
		tokenFile:   tokenFile,
		subscribers: map[int]func(*Session){},
	}
}

// OnSessionChange registers a handler invoked on every session-state
// transition. The handler receives the new session, or nil on sign-out.
// The returned function removes the subscription; calling it more than
// once is safe.
func (c *Client) OnSessionChange(handler func(*Session)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubscriberID++
	id := c.nextSubscriberID
	c.subscribers[id] = handler

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// GetSession returns the current session, restoring it from the
// persisted refresh token when the process has just started. It
// returns (nil, nil) when no session exists. GetSession does not
// notify subscribers; only state transitions do.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		return session, nil
	}

	refreshToken, err := c.loadRefreshToken()
	if err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, nil
	}

	session, err = c.tokenGrant(ctx, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode < 500 {
			// Stale or revoked refresh token: drop it and report no session.
			c.clearRefreshToken()
			return nil, nil
		}
		return nil, err
	}

	c.setSession(session)

	return session, nil
}

// SignInWithPassword authenticates with email/password credentials.
// On success the new session becomes current and subscribers are notified.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.tokenGrant(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	c.setSession(session)
	c.notify(session)

	return session, nil
}

// SignUpOption configures a sign-up request.
type SignUpOption func(map[string]any)

// WithEmailRedirectTo sets the post-confirmation redirect target.
func WithEmailRedirectTo(redirectTo string) SignUpOption {
	return func(body map[string]any) {
		body["email_redirect_to"] = redirectTo
	}
}

// SignUp registers a new account and returns the raw provider payload.
// When the provider activates the account immediately the embedded
// session becomes current and subscribers are notified.
func (c *Client) SignUp(ctx context.Context, email, password string, options ...SignUpOption) (*SignupResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	for _, option := range options {
		option(body)
	}

	var result SignupResult
	response, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/signup")
	if err != nil {
		return nil, fmt.Errorf("in internal/authprovider/authprovider.go/SignUp(): error while `/signup` requesting: %w", err)
	}
	if response.IsError() {
		return nil, parseAPIError(response)
	}

	// A signup payload may be the bare user record instead of the
	// {user, session} envelope; fall back to decoding it as such.
	if result.User == nil && result.Session == nil {
		var bareUser ProviderUser
		if err := json.Unmarshal(response.Body(), &bareUser); err == nil && bareUser.ID != "" {
			result.User = &bareUser
		}
	}
	if result.Session != nil && result.User == nil {
		result.User = &result.Session.User
	}

	if result.Session != nil {
		c.setSession(result.Session)
		c.notify(result.Session)
	}

	return &result, nil
}

// SignInWithOAuth builds the redirect URL initiating the external
// OAuth flow. Success means the redirect was issued; authentication
// itself completes asynchronously via the change-notification stream
// once the user returns.
func (c *Client) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error) {
	base, err := url.Parse(c.httpClient.BaseURL)
	if err != nil {
		return "", fmt.Errorf("in internal/authprovider/authprovider.go/SignInWithOAuth(): error while `url.Parse()` calling: %w", err)
	}

	base.Path, err = url.JoinPath(base.Path, "authorize")
	if err != nil {
		return "", err
	}

	query := base.Query()
	query.Set("provider", provider)
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	base.RawQuery = query.Encode()

	return base.String(), nil
}

// SignOut revokes the session on the provider side. The local session
// is dropped and subscribers are notified of the sign-out regardless
// of whether the remote call succeeded.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	var requestErr error
	if session != nil {
		response, err := c.httpClient.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+session.AccessToken).
			Post("/logout")
		if err != nil {
			requestErr = fmt.Errorf("in internal/authprovider/authprovider.go/SignOut(): error while `/logout` requesting: %w", err)
		} else if response.IsError() {
			requestErr = parseAPIError(response)
		}
	}

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.clearRefreshToken()
	c.notify(nil)

	return requestErr
}

func (c *Client) tokenGrant(ctx context.Context, grantType string, body map[string]string) (*Session, error) {
	var session Session
	response, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("grant_type", grantType).
		SetBody(body).
		SetResult(&session).
		Post("/token")
	if err != nil {
		return nil, fmt.Errorf("in internal/authprovider/authprovider.go/tokenGrant(): error while `/token` requesting: %w", err)
	}
	if response.IsError() {
		return nil, parseAPIError(response)
	}

	return &session, nil
}

func parseAPIError(response *resty.Response) *APIError {
	apiErr := &APIError{StatusCode: response.StatusCode()}
	if err := json.Unmarshal(response.Body(), apiErr); err != nil {
		apiErr.Message = response.Status()
	}

	return apiErr
}

func (c *Client) setSession(session *Session) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	if session.RefreshToken != "" {
		c.saveRefreshToken(session.RefreshToken)
	}
}

// notify delivers the session transition to every subscriber. Handlers
// run synchronously so notifications keep the serialized order of the
// provider calls that produced them.
func (c *Client) notify(session *Session) {
	c.mu.Lock()
	handlers := make([]func(*Session), 0, len(c.subscribers))
	for _, handler := range c.subscribers {
		handlers = append(handlers, handler)
	}
	c.mu.Unlock()

	for _, handler := range handlers {
		handler(session)
	}
}

func (c *Client) loadRefreshToken() (string, error) {
	data, err := os.ReadFile(c.tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var token persistedToken
	if err := json.Unmarshal(data, &token); err != nil {
		// Corrupt token file, drop it.
		c.clearRefreshToken()
		return "", nil
	}

	return token.RefreshToken, nil
}

func (c *Client) saveRefreshToken(refreshToken string) {
	data, err := json.Marshal(persistedToken{RefreshToken: refreshToken})
	if err != nil {
		return
	}
	_ = os.WriteFile(c.tokenFile, data, 0600)
}

func (c *Client) clearRefreshToken() {
	_ = os.Remove(c.tokenFile)
}
