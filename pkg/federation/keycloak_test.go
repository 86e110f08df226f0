package federation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maritimeconnect/mir/pkg/observability"
)

// newKeycloakServer builds a test server that serves the token endpoint and
// delegates admin API calls to handler
func newKeycloakServer(t *testing.T, tokenCount *int32, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	// Admin tokens come from the configured realm, not a fixed one.
	mux.HandleFunc("/realms/mcp-broker/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		if tokenCount != nil {
			atomic.AddInt32(tokenCount, 1)
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.Form.Get("grant_type"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token",
			"expires_in":   300,
		})
	})
	mux.HandleFunc("/admin/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		handler(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, server *httptest.Server) *KeycloakClient {
	t.Helper()
	return NewKeycloakClient(KeycloakConfig{
		BaseURL:       server.URL,
		Realm:         "mcp-broker",
		AdminClientID: "admin-cli",
		AdminUser:     "admin",
		AdminPassword: "secret",
		Timeout:       5 * time.Second,
	}, observability.NewLogger(observability.ErrorLevel, io.Discard))
}

func TestKeycloakClient_GetProvider(t *testing.T) {
	server := newKeycloakServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/realms/mcp-broker/identity-provider/instances/dma", r.URL.Path)
		json.NewEncoder(w).Encode(Provider{Alias: "dma", ProviderID: "oidc", Enabled: true})
	})

	client := newTestClient(t, server)
	provider, err := client.GetProvider(context.Background(), "dma")
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.Equal(t, "dma", provider.Alias)
	assert.Equal(t, "oidc", provider.ProviderID)
}

func TestKeycloakClient_GetProvider_AbsentIsNotError(t *testing.T) {
	server := newKeycloakServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client := newTestClient(t, server)
	provider, err := client.GetProvider(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, provider)
}

func TestKeycloakClient_GetProvider_RetriesServerErrors(t *testing.T) {
	var attempts int32
	server := newKeycloakServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(Provider{Alias: "dma"})
	})

	client := newTestClient(t, server)
	provider, err := client.GetProvider(context.Background(), "dma")
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestKeycloakClient_CreateProvider(t *testing.T) {
	var created Provider
	server := newKeycloakServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		w.WriteHeader(http.StatusCreated)
	})

	client := newTestClient(t, server)
	err := client.CreateProvider(context.Background(), &Provider{Alias: "dma", ProviderID: "saml"})
	require.NoError(t, err)
	assert.Equal(t, "dma", created.Alias)
}

func TestKeycloakClient_CreateProvider_FailureStatus(t *testing.T) {
	var attempts int32
	server := newKeycloakServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusConflict)
	})

	client := newTestClient(t, server)
	err := client.CreateProvider(context.Background(), &Provider{Alias: "dma"})
	assert.ErrorIs(t, err, ErrExternalService)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "writes are never retried")
}

func TestKeycloakClient_TokenIsCached(t *testing.T) {
	var tokenCount int32
	server := newKeycloakServer(t, &tokenCount, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]User{})
	})

	client := newTestClient(t, server)
	for i := 0; i < 3; i++ {
		_, err := client.SearchUsers(context.Background(), "urn:mrn:mcl:org:dma:user:")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCount))
}

func TestKeycloakClient_TokenUsesConfiguredRealm(t *testing.T) {
	var tokenPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/", func(w http.ResponseWriter, r *http.Request) {
		tokenPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token",
			"expires_in":   300,
		})
	})
	mux.HandleFunc("/admin/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]User{})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := NewKeycloakClient(KeycloakConfig{
		BaseURL:       server.URL,
		Realm:         "mcp-users",
		AdminClientID: "admin-cli",
		AdminUser:     "admin",
		AdminPassword: "secret",
		Timeout:       5 * time.Second,
	}, observability.NewLogger(observability.ErrorLevel, io.Discard))

	_, err := client.SearchUsers(context.Background(), "urn:mrn:mcl:org:dma:user:")
	require.NoError(t, err)
	assert.Equal(t, "/realms/mcp-users/protocol/openid-connect/token", tokenPath)
}

func TestKeycloakClient_ImportConfig(t *testing.T) {
	server := newKeycloakServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/realms/mcp-broker/identity-provider/import-config", r.URL.Path)
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "https://idp.dma.dk/.well-known", payload["fromUrl"])
		assert.Equal(t, "oidc", payload["providerId"])
		json.NewEncoder(w).Encode(map[string]string{"authorizationUrl": "https://idp.dma.dk/auth"})
	})

	client := newTestClient(t, server)
	config, err := client.ImportConfig(context.Background(), "https://idp.dma.dk/.well-known", "oidc")
	require.NoError(t, err)
	assert.Equal(t, "https://idp.dma.dk/auth", config["authorizationUrl"])
}

func TestKeycloakClient_SearchUsers(t *testing.T) {
	server := newKeycloakServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "urn:mrn:mcl:org:dma:user:", r.URL.Query().Get("username"))
		json.NewEncoder(w).Encode([]User{{ID: "u1", Username: "urn:mrn:mcl:org:dma:user:jdoe"}})
	})

	client := newTestClient(t, server)
	users, err := client.SearchUsers(context.Background(), "urn:mrn:mcl:org:dma:user:")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].ID)
}

func TestKeycloakClient_DeleteClientResolvesInternalID(t *testing.T) {
	var deletedPath string
	server := newKeycloakServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]string{
				{"id": "internal-1", "clientId": "mcl_dma_nw-nm_nw-nm2"},
			})
		case http.MethodDelete:
			deletedPath = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		}
	})

	client := newTestClient(t, server)
	require.NoError(t, client.DeleteClient(context.Background(), "mcl_dma_nw-nm_nw-nm2"))
	assert.Equal(t, "/admin/realms/mcp-broker/clients/internal-1", deletedPath)
}
