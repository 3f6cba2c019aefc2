package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"duoaccount/internal/core"
)

func dial(t *testing.T, srv *httptest.Server, duo string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if duo != "" {
		url += "?duo=" + duo
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSessions(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Sessions() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d sessions, have %d", n, h.Sessions())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsToMatchingDuoOnly(t *testing.T) {
	hub := NewHub(nil, func() string { return "duo-default" })
	defer hub.Close()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	mine := dial(t, srv, "duo-a")
	other := dial(t, srv, "duo-b")
	fallback := dial(t, srv, "")
	waitSessions(t, hub, 3)

	hub.Broadcast(core.NewChangeEvent("duo-a", core.OpInserted, "e1"))
	hub.Broadcast(core.NewChangeEvent("duo-default", core.OpDeleted, "e2"))

	mine.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := mine.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev core.ChangeEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.DuoID != "duo-a" || ev.ExpenseID != "e1" || ev.Op != core.OpInserted {
		t.Fatalf("unexpected event %+v", ev)
	}

	fallback.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, msg, err = fallback.ReadMessage(); err != nil || !strings.Contains(string(msg), `"expenseId":"e2"`) {
		t.Fatalf("default duo session: %s %v", msg, err)
	}

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Fatal("session of another duo must not receive the event")
	}
}

func TestHubRejectsMissingDuo(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %v", resp)
	}
}

type fakeHub struct{ events []core.ChangeEvent }

func (f *fakeHub) Broadcast(ev core.ChangeEvent) { f.events = append(f.events, ev) }

type fakeLedger struct {
	calls int
	err   error
}

func (f *fakeLedger) HandleRemoteChange(context.Context, core.ChangeEvent) error {
	f.calls++
	return f.err
}

func TestRelay(t *testing.T) {
	hub := &fakeHub{}
	led := &fakeLedger{}
	r := NewRelay(hub, led, "instance-1", nil)
	ctx := context.Background()

	own := core.NewChangeEvent("duo", core.OpInserted, "x")
	own.Source = "instance-1"
	if err := r.Handle(ctx, own); err != nil {
		t.Fatal(err)
	}
	if len(hub.events) != 0 || led.calls != 0 {
		t.Fatal("own events must be skipped")
	}

	remote := core.NewChangeEvent("duo", core.OpUpdated, "x")
	remote.Source = "instance-2"
	if err := r.Handle(ctx, remote); err != nil {
		t.Fatal(err)
	}
	if len(hub.events) != 1 || led.calls != 1 {
		t.Fatalf("expected relay, got %d events and %d refreshes", len(hub.events), led.calls)
	}

	led.err = errors.New("store down")
	if err := r.Handle(ctx, remote); err == nil {
		t.Fatal("refresh failure should be returned so the message is requeued")
	}
	if len(hub.events) != 1 {
		t.Fatal("nothing should be broadcast when the refresh failed")
	}
}
