// ABOUTME: In-process fake of the local control plane for gateway tests
// ABOUTME: Serves REST routes and the event WebSocket behind one TLS listener

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/2389/lcu-gateway/internal/channel"
	"github.com/2389/lcu-gateway/internal/credential"
	"github.com/2389/lcu-gateway/internal/lcu"
)

const testToken = "secret"

type fakeLCU struct {
	srv       *httptest.Server
	dialDelay time.Duration
	connects  atomic.Int32
	// rejectEvents refuses event stream upgrades while REST calls still pass.
	rejectEvents atomic.Bool

	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	conns  chan *websocket.Conn
}

func newFakeLCU(t *testing.T) *fakeLCU {
	t.Helper()
	f := &fakeLCU{
		routes: map[string]http.HandlerFunc{},
		conns:  make(chan *websocket.Conn, 8),
	}
	f.srv = httptest.NewTLSServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLCU) serve(w http.ResponseWriter, r *http.Request) {
	want := credential.Credential{AuthToken: testToken}.AuthorizationHeader()
	if r.Header.Get("Authorization") != want {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if f.rejectEvents.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.serveEvents(w, r)
		return
	}

	f.mu.Lock()
	h, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorCode":"RPC_ERROR","message":"Invalid URI format"}`))
		return
	}
	h(w, r)
}

func (f *fakeLCU) serveEvents(w http.ResponseWriter, r *http.Request) {
	time.Sleep(f.dialDelay)
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	f.connects.Add(1)

	// Subscribe frame.
	if _, _, err := conn.Read(r.Context()); err != nil {
		return
	}
	f.conns <- conn

	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}

func (f *fakeLCU) handle(pattern string, h http.HandlerFunc) {
	f.mu.Lock()
	f.routes[pattern] = h
	f.mu.Unlock()
}

func (f *fakeLCU) handleJSON(pattern string, status int, body string) {
	f.handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

// stream waits for the gateway's event connection.
func (f *fakeLCU) stream(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-f.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("gateway never subscribed to the event stream")
		return nil
	}
}

func (f *fakeLCU) credential(t *testing.T, token string) credential.Credential {
	t.Helper()
	u, err := url.Parse(f.srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return credential.Credential{Host: u.Hostname(), Port: port, AuthToken: token}
}

func (f *fakeLCU) options(t *testing.T, source credential.Source) Options {
	t.Helper()
	return Options{
		Source: source,
		Client: lcu.Options{HTTPClient: f.srv.Client()},
		Channel: channel.Config{
			HTTPClient:       f.srv.Client(),
			ReconnectInitial: 10 * time.Millisecond,
			ReconnectMax:     50 * time.Millisecond,
		},
		HTTPAddr: "127.0.0.1:0",
	}
}

// newTestGateway builds a gateway against f with a valid credential.
func newTestGateway(t *testing.T, f *fakeLCU) *Gateway {
	t.Helper()
	cred := f.credential(t, testToken)
	g, err := New(f.options(t, credential.NewStatic(cred.Host, cred.Port, cred.AuthToken)), nil)
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return g
}

func pushEvent(t *testing.T, conn *websocket.Conn, uri, eventType, data string) {
	t.Helper()
	frame := `[8,"OnJsonApiEvent",{"uri":"` + uri + `","eventType":"` + eventType + `","data":` + data + `}]`
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(frame)))
}

// sourceFunc adapts a function to credential.Source.
type sourceFunc func(ctx context.Context) (credential.Credential, error)

func (f sourceFunc) Resolve(ctx context.Context) (credential.Credential, error) {
	return f(ctx)
}
