package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircflood/internal/flood"
	"github.com/vovakirdan/ircflood/internal/session"
	"github.com/vovakirdan/ircflood/internal/transport/irc"
)

type fixedStatus irc.Status

func (f fixedStatus) Status() irc.Status { return irc.Status(f) }

func newTestServer(t *testing.T) *http.Server {
	t.Helper()
	disabledLogger := zerolog.New(nil)
	src := fixedStatus{
		Served: 3,
		Active: 1,
		Sessions: []session.Info{{
			ID:      "0f8fad5b-d9cb-469f-a165-70867728950e",
			Remote:  "127.0.0.1:5555",
			Nick:    "tester",
			State:   "flooding",
			Seed:    7,
			Started: time.Now(),
			Stats:   flood.Snapshot{Events: 42, Kinds: map[string]int64{"privmsg": 42}},
		}},
	}
	return NewServer(src, ServerConfig{Addr: ":0", ReadHeaderTimeout: time.Second, Version: "test"}, &disabledLogger)
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)

	resp := httptest.NewRecorder()
	server.Handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", resp.Code, resp.Body.String())
	}
}

func TestStats(t *testing.T) {
	server := newTestServer(t)

	resp := httptest.NewRecorder()
	server.Handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var body StatsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if body.Version != "test" || body.Served != 3 || body.Active != 1 {
		t.Fatalf("unexpected stats: %+v", body)
	}
	if len(body.Sessions) != 1 || body.Sessions[0].Nick != "tester" || body.Sessions[0].Stats.Events != 42 {
		t.Fatalf("unexpected sessions: %+v", body.Sessions)
	}
}

func TestSessionByID(t *testing.T) {
	server := newTestServer(t)

	resp := httptest.NewRecorder()
	server.Handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stats/0f8fad5b-d9cb-469f-a165-70867728950e", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var info session.Info
	if err := json.Unmarshal(resp.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if info.Seed != 7 || info.Stats.Kinds["privmsg"] != 42 {
		t.Fatalf("unexpected session: %+v", info)
	}

	resp = httptest.NewRecorder()
	server.Handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stats/unknown", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}
