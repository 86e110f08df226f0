package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/maritimeconnect/mir/pkg/observability"
)

// KeycloakConfig holds the connection settings for one realm of the
// federation service
type KeycloakConfig struct {
	BaseURL       string
	Realm         string
	AdminClientID string
	AdminUser     string
	AdminPassword string
	Timeout       time.Duration
}

// KeycloakClient is the concrete Client over the Keycloak admin REST API.
// Admin access tokens are obtained through the password grant and cached
// until shortly before expiry.
type KeycloakClient struct {
	config  KeycloakConfig
	http    *http.Client
	logger  *observability.Logger
	metrics *observability.Metrics

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

const (
	retryAttempts     = 3
	retryInitialDelay = 500 * time.Millisecond
)

// NewKeycloakClient creates a client for one realm of the federation service
func NewKeycloakClient(config KeycloakConfig, logger *observability.Logger) *KeycloakClient {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &KeycloakClient{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// SetMetrics enables request instrumentation
func (c *KeycloakClient) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// accessToken returns a cached admin token, refreshing it when expired
func (c *KeycloakClient) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {c.config.AdminClientID},
		"username":   {c.config.AdminUser},
		"password":   {c.config.AdminPassword},
	}
	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.config.BaseURL, c.config.Realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token request returned %d", ErrExternalService, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %v", ErrExternalService, err)
	}

	c.token = body.AccessToken
	// Refresh a little early so in-flight requests do not race expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - 10*time.Second)
	return c.token, nil
}

// adminURL builds an admin API URL under the configured realm
func (c *KeycloakClient) adminURL(parts ...string) string {
	base := fmt.Sprintf("%s/admin/realms/%s", c.config.BaseURL, c.config.Realm)
	if len(parts) == 0 {
		return base
	}
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return base + "/" + strings.Join(escaped, "/")
}

// do sends an authenticated request and returns the response. The caller
// owns the response body.
func (c *KeycloakClient) do(ctx context.Context, method, rawURL string, body interface{}) (*http.Response, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if c.metrics != nil {
		status := "error"
		if err == nil {
			status = fmt.Sprintf("%d", resp.StatusCode)
		}
		c.metrics.FederationRequestsTotal.WithLabelValues(method, status).Inc()
		c.metrics.FederationDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	return resp, nil
}

// doGet sends an authenticated GET with bounded retries. Only lookups are
// retried; writes go through do exactly once so a create is never blindly
// repeated.
func (c *KeycloakClient) doGet(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	delay := retryInitialDelay
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.FederationRetriesTotal.WithLabelValues(http.MethodGet).Inc()
			}
			c.logger.WithFields(map[string]interface{}{
				"url":     rawURL,
				"attempt": attempt + 1,
			}).Warn("retrying federation lookup")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}
		resp, err := c.do(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: lookup returned %d", ErrExternalService, resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

// expectStatus drains and closes the response, converting unexpected
// statuses into ErrExternalService
func expectStatus(resp *http.Response, accepted ...int) error {
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	for _, code := range accepted {
		if resp.StatusCode == code {
			return nil
		}
	}
	return fmt.Errorf("%w: unexpected status %d", ErrExternalService, resp.StatusCode)
}

// GetProvider looks up an identity provider by alias. A missing provider
// yields (nil, nil); absence is an expected branch, not an error.
func (c *KeycloakClient) GetProvider(ctx context.Context, alias string) (*Provider, error) {
	resp, err := c.doGet(ctx, c.adminURL("identity-provider", "instances", alias))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider lookup returned %d", ErrExternalService, resp.StatusCode)
	}
	var provider Provider
	if err := json.NewDecoder(resp.Body).Decode(&provider); err != nil {
		return nil, fmt.Errorf("%w: decoding provider: %v", ErrExternalService, err)
	}
	return &provider, nil
}

// CreateProvider creates a new identity provider
func (c *KeycloakClient) CreateProvider(ctx context.Context, provider *Provider) error {
	resp, err := c.do(ctx, http.MethodPost, c.adminURL("identity-provider", "instances"), provider)
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusCreated)
}

// UpdateProvider replaces an existing identity provider
func (c *KeycloakClient) UpdateProvider(ctx context.Context, provider *Provider) error {
	resp, err := c.do(ctx, http.MethodPut, c.adminURL("identity-provider", "instances", provider.Alias), provider)
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusNoContent, http.StatusOK)
}

// DeleteProvider removes an identity provider by alias
func (c *KeycloakClient) DeleteProvider(ctx context.Context, alias string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.adminURL("identity-provider", "instances", alias), nil)
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusNoContent, http.StatusOK, http.StatusNotFound)
}

// ListMappers returns the attribute mappers attached to a provider
func (c *KeycloakClient) ListMappers(ctx context.Context, alias string) ([]Mapper, error) {
	resp, err := c.doGet(ctx, c.adminURL("identity-provider", "instances", alias, "mappers"))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: mapper listing returned %d", ErrExternalService, resp.StatusCode)
	}
	var mappers []Mapper
	if err := json.NewDecoder(resp.Body).Decode(&mappers); err != nil {
		return nil, fmt.Errorf("%w: decoding mappers: %v", ErrExternalService, err)
	}
	return mappers, nil
}

// AddMapper attaches a mapper to a provider
func (c *KeycloakClient) AddMapper(ctx context.Context, mapper *Mapper) error {
	resp, err := c.do(ctx, http.MethodPost, c.adminURL("identity-provider", "instances", mapper.IdentityProviderAlias, "mappers"), mapper)
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusCreated)
}

// DeleteMapper removes a mapper from a provider
func (c *KeycloakClient) DeleteMapper(ctx context.Context, alias, mapperID string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.adminURL("identity-provider", "instances", alias, "mappers", mapperID), nil)
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusNoContent, http.StatusOK)
}

// ImportConfig asks the federation service to parse provider configuration
// from a well-known URL
func (c *KeycloakClient) ImportConfig(ctx context.Context, fromURL, providerID string) (map[string]string, error) {
	payload := map[string]interface{}{
		"fromUrl":    fromURL,
		"providerId": providerID,
	}
	resp, err := c.do(ctx, http.MethodPost, c.adminURL("identity-provider", "import-config"), payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: import-config returned %d", ErrExternalService, resp.StatusCode)
	}
	var config map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&config); err != nil {
		return nil, fmt.Errorf("%w: decoding import-config: %v", ErrExternalService, err)
	}
	return config, nil
}

// SearchUsers searches the realm's user directory by username
func (c *KeycloakClient) SearchUsers(ctx context.Context, search string) ([]User, error) {
	searchURL := c.adminURL("users") + "?username=" + url.QueryEscape(search)
	resp, err := c.doGet(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: user search returned %d", ErrExternalService, resp.StatusCode)
	}
	var users []User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("%w: decoding users: %v", ErrExternalService, err)
	}
	return users, nil
}

// CreateUser creates a user in the realm's directory
func (c *KeycloakClient) CreateUser(ctx context.Context, user *User) error {
	resp, err := c.do(ctx, http.MethodPost, c.adminURL("users"), user)
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusCreated)
}

// UpdateUser replaces the user record identified by user.ID
func (c *KeycloakClient) UpdateUser(ctx context.Context, user *User) error {
	resp, err := c.do(ctx, http.MethodPut, c.adminURL("users", user.ID), user)
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusNoContent, http.StatusOK)
}

// DeleteUser removes a user by id
func (c *KeycloakClient) DeleteUser(ctx context.Context, userID string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.adminURL("users", userID), nil)
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusNoContent, http.StatusOK, http.StatusNotFound)
}

// ResetPassword sets a user's password, optionally marking it temporary so
// the user must change it at first login
func (c *KeycloakClient) ResetPassword(ctx context.Context, userID, password string, temporary bool) error {
	payload := map[string]interface{}{
		"type":      "password",
		"value":     password,
		"temporary": temporary,
	}
	resp, err := c.do(ctx, http.MethodPut, c.adminURL("users", userID, "reset-password"), payload)
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusNoContent, http.StatusOK)
}

// CreateClient registers a service client in the realm
func (c *KeycloakClient) CreateClient(ctx context.Context, client *OIDCClient) error {
	resp, err := c.do(ctx, http.MethodPost, c.adminURL("clients"), client)
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusCreated)
}

// UpdateClient replaces the registration of the client with the same
// clientId
func (c *KeycloakClient) UpdateClient(ctx context.Context, client *OIDCClient) error {
	id, err := c.lookupClientID(ctx, client.ClientID)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPut, c.adminURL("clients", id), client)
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusNoContent, http.StatusOK)
}

// DeleteClient removes the client registration with the given clientId
func (c *KeycloakClient) DeleteClient(ctx context.Context, clientID string) error {
	id, err := c.lookupClientID(ctx, clientID)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodDelete, c.adminURL("clients", id), nil)
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusNoContent, http.StatusOK)
}

// lookupClientID resolves a clientId to the federation service's internal
// client record id
func (c *KeycloakClient) lookupClientID(ctx context.Context, clientID string) (string, error) {
	lookupURL := c.adminURL("clients") + "?clientId=" + url.QueryEscape(clientID)
	resp, err := c.doGet(ctx, lookupURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: client lookup returned %d", ErrExternalService, resp.StatusCode)
	}
	var clients []struct {
		ID       string `json:"id"`
		ClientID string `json:"clientId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&clients); err != nil {
		return "", fmt.Errorf("%w: decoding clients: %v", ErrExternalService, err)
	}
	for _, entry := range clients {
		if entry.ClientID == clientID {
			return entry.ID, nil
		}
	}
	return "", fmt.Errorf("%w: client %s not found", ErrExternalService, clientID)
}
