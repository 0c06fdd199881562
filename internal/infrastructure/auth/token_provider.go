// Package auth implements the identity-service client and the local
// credential cache. The stream core only sees the ports.IdentityGateway
// interface: an on-demand accessor for the current token pair that fails
// when no session exists.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gavel.live/cli/internal/application/ports"
)

// ErrNotAuthenticated is returned when no credentials are stored.
var ErrNotAuthenticated = errors.New("not authenticated, run `gavel login` first")

// IdentityProvider implements ports.IdentityGateway against the identity
// service behind the gateway.
type IdentityProvider struct {
	endpoint   string
	httpClient *http.Client
	store      *CredentialsStore
}

// NewIdentityProvider creates a provider backed by the given credentials
// store.
func NewIdentityProvider(endpoint string, store *CredentialsStore) *IdentityProvider {
	return &IdentityProvider{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		store: store,
	}
}

// SignIn exchanges a username/password for a token pair and persists it.
func (p *IdentityProvider) SignIn(ctx context.Context, username, password string) (*ports.TokenPair, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}
	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/identity/login", p.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "gavel-cli/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("login failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var pair ports.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if err := p.store.Save(pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// SignOut discards the stored credentials.
func (p *IdentityProvider) SignOut() error {
	return p.store.Clear()
}

// Tokens returns the stored token pair, failing when unauthenticated.
func (p *IdentityProvider) Tokens(ctx context.Context) (*ports.TokenPair, error) {
	pair, err := p.store.Load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}
	if pair.IDToken == "" && pair.BearerToken == "" {
		return nil, ErrNotAuthenticated
	}
	return pair, nil
}

// StreamToken returns the credential used on the event stream. The stream
// authenticates with the identity token, carried as a query parameter.
func (p *IdentityProvider) StreamToken(ctx context.Context) (string, error) {
	pair, err := p.Tokens(ctx)
	if err != nil {
		return "", err
	}
	if pair.IDToken == "" {
		return "", ErrNotAuthenticated
	}
	return pair.IDToken, nil
}

// Username extracts the locally authenticated username from the identity
// token's claims. The token is parsed without signature verification: the
// client is not the token's audience and only needs the claim the server
// already vouched for.
func (p *IdentityProvider) Username() (string, error) {
	pair, err := p.Tokens(context.Background())
	if err != nil {
		return "", err
	}
	return UsernameFromToken(pair.IDToken)
}

// UsernameFromToken pulls the username claim out of an identity JWT.
func UsernameFromToken(idToken string) (string, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return "", fmt.Errorf("parsing identity token: %w", err)
	}

	for _, key := range []string{"cognito:username", "preferred_username", "username", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", errors.New("identity token carries no username claim")
}

var _ ports.IdentityGateway = (*IdentityProvider)(nil)
