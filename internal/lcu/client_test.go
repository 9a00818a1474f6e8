// ABOUTME: Tests for the control-plane request client
// ABOUTME: Covers auth headers, body encoding, and mapping of every failure kind

package lcu

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/lcu-gateway/internal/credential"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(credFor(t, srv.URL, "test-token"), Options{HTTPClient: srv.Client()}, nil), srv
}

func credFor(t *testing.T, rawURL, token string) credential.Credential {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return credential.Credential{Host: host, Port: port, AuthToken: token}
}

func TestClient_GetReturnsRawJSON(t *testing.T) {
	var gotAuth, gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"gameName":"Tester","tagLine":"EUW"}`))
	})

	data, err := c.Get(t.Context(), "/lol-summoner/v1/current-summoner")
	require.NoError(t, err)

	assert.Equal(t, "/lol-summoner/v1/current-summoner", gotPath)
	assert.Equal(t, c.Credential().AuthorizationHeader(), gotAuth)
	assert.JSONEq(t, `{"gameName":"Tester","tagLine":"EUW"}`, string(data))
}

func TestClient_PathWithoutLeadingSlash(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`"ok"`))
	})

	_, err := c.Get(t.Context(), "lol-gameflow/v1/gameflow-phase")
	require.NoError(t, err)
	assert.Equal(t, "/lol-gameflow/v1/gameflow-phase", gotPath)
}

func TestClient_PostEncodesBody(t *testing.T) {
	var gotBody map[string]any
	var gotMethod, gotType string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	})

	body := map[string]any{"challengeIds": []int{301103, 301104}}
	data, err := c.Post(t.Context(), "/lol-challenges/v1/update-player-preferences", body)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotType)
	assert.Len(t, gotBody["challengeIds"], 2)
	assert.Equal(t, "null", string(data), "204 should map to JSON null")
}

func TestClient_PutPassesRawJSONThrough(t *testing.T) {
	var gotBody string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.Put(t.Context(), "/lol-lobby/v2/lobby/partyType", json.RawMessage(`"open"`))
	require.NoError(t, err)
	assert.Equal(t, `"open"`, gotBody)
}

func TestClient_NonSuccessMapsToRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorCode":"RPC_ERROR","httpStatus":404,"message":"No active delegate"}`))
	})

	_, err := c.Get(t.Context(), "/lol-lobby/v2/lobby")
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindRejected, reqErr.Kind)
	assert.Equal(t, http.StatusNotFound, reqErr.Status)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "No active delegate")
}

func TestClient_UnparsableBodyMapsToMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"truncated":`))
	})

	_, err := c.Get(t.Context(), "/lol-loot/v2/player-loot-map")
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestClient_RefusedCredentialMapsToRejected(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		_, err := c.Get(t.Context(), "/help")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRejected)
		assert.NotErrorIs(t, err, ErrUnauthenticated)

		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, KindRejected, reqErr.Kind)
		assert.Equal(t, status, reqErr.Status)
	}
}

func TestClient_ClosedServerMapsToUnreachable(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.Get(t.Context(), "/help")
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestClient_UnsupportedMethod(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})

	_, err := c.Request(t.Context(), http.MethodDelete, "/lol-lobby/v2/lobby", nil)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.Equal(t, ErrorKind(0), KindOf(err))
}

func TestClient_HelpReturnsNullWhenAbsent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	assert.Equal(t, "null", string(c.Help(t.Context())))
}

func TestClient_HelpReturnsListing(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"events":{},"functions":{}}`))
	})

	assert.JSONEq(t, `{"events":{},"functions":{}}`, string(c.Help(t.Context())))
}
