// ABOUTME: Minimal fake control plane for E2E testing: REST routes plus a scripted event stream.
// ABOUTME: Usage: fake-lcu [--addr 127.0.0.1:2999] [--token secret] [--interval 2s]
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/pflag"

	"github.com/2389/lcu-gateway/internal/credential"
)

// step is one scripted change pushed to every subscriber.
type step struct {
	uri       string
	eventType string
	data      any
}

var script = []step{
	{"/lol-lobby/v2/lobby", "Create", map[string]any{"partyId": "fake-party"}},
	{"/lol-lobby/v2/lobby/members", "Update", []map[string]any{{"puuid": "fake-puuid-1", "summonerName": "One"}}},
	{"/lol-gameflow/v1/gameflow-phase", "Update", "Lobby"},
	{"/lol-lobby/v2/lobby/members", "Update", []map[string]any{{"puuid": "fake-puuid-1"}, {"puuid": "fake-puuid-2"}}},
	{"/lol-gameflow/v1/gameflow-phase", "Update", "Matchmaking"},
	{"/lol-lobby/v2/lobby", "Delete", nil},
	{"/lol-gameflow/v1/gameflow-phase", "Update", "None"},
}

func main() {
	addr := pflag.String("addr", "127.0.0.1:2999", "listen address")
	token := pflag.String("token", "secret", "auth token clients must present")
	interval := pflag.Duration("interval", 2*time.Second, "delay between scripted events")
	pflag.Parse()

	if err := run(*addr, *token, *interval); err != nil {
		log.Fatal(err)
	}
}

func run(addr, token string, interval time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	f := &fakeLCU{
		auth:     credential.Credential{AuthToken: token}.AuthorizationHeader(),
		interval: interval,
		phase:    "None",
	}

	// httptest provides the self-signed certificate the real client also uses.
	srv := httptest.NewUnstartedServer(f)
	srv.Listener = ln
	srv.StartTLS()
	defer srv.Close()

	fmt.Fprintf(os.Stderr, "fake control plane on https://%s (token %q)\n", ln.Addr(), token)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	<-ctx.Done()
	return nil
}

type fakeLCU struct {
	auth     string
	interval time.Duration

	mu    sync.Mutex
	phase string
}

func (f *fakeLCU) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != f.auth {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		f.serveEvents(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.Method + " " + r.URL.Path {
	case "GET /help":
		_, _ = w.Write([]byte(`{"events":{"OnJsonApiEvent":"all JSON API changes"},"functions":{},"types":{}}`))
	case "GET /lol-gameflow/v1/gameflow-phase":
		f.mu.Lock()
		phase := f.phase
		f.mu.Unlock()
		_, _ = fmt.Fprintf(w, "%q", phase)
	case "GET /lol-summoner/v1/current-summoner":
		_, _ = w.Write([]byte(`{"gameName":"Fake","tagLine":"E2E","puuid":"fake-puuid-1"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorCode":"RPC_ERROR","httpStatus":404,"message":"Invalid URI format"}`))
	}
}

func (f *fakeLCU) serveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	// The client subscribes once, then only reads.
	if _, _, err := conn.Read(r.Context()); err != nil {
		return
	}
	ctx := conn.CloseRead(r.Context())

	fmt.Fprintf(os.Stderr, "subscriber connected from %s\n", r.RemoteAddr)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "subscriber %s gone\n", r.RemoteAddr)
			return
		case <-ticker.C:
		}

		s := script[i%len(script)]
		if phase, ok := s.data.(string); ok && s.uri == "/lol-gameflow/v1/gameflow-phase" {
			f.mu.Lock()
			f.phase = phase
			f.mu.Unlock()
		}
		frame := []any{8, "OnJsonApiEvent", map[string]any{
			"uri":       s.uri,
			"eventType": s.eventType,
			"data":      s.data,
		}}
		if err := wsjson.Write(ctx, conn, frame); err != nil {
			return
		}
	}
}
