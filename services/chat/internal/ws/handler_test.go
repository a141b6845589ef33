package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestHandleEnforcesOriginAllowlist(t *testing.T) {
	hub := NewHub()
	allowed := []string{"https://app.example.com"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Handle(hub, "alice", allowed, w, r)
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{
		"Origin": []string{"https://evil.example.com"},
	})
	if err == nil {
		conn.Close()
		t.Fatalf("expected upgrade from foreign origin to be refused")
	}

	conn, _, err = websocket.DefaultDialer.Dial(wsURL, http.Header{
		"Origin": []string{"https://app.example.com"},
	})
	if err != nil {
		t.Fatalf("dial with allowed origin: %v", err)
	}
	conn.Close()

	// No Origin header means a non-browser client; upstream auth applies.
	conn, _, err = websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial without origin: %v", err)
	}
	conn.Close()
}

func TestHandleDefaultsToSameHostOrigin(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Handle(hub, "bob", nil, w, r)
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{
		"Origin": []string{srv.URL},
	})
	if err != nil {
		t.Fatalf("dial with same-host origin: %v", err)
	}
	conn.Close()

	conn, _, err = websocket.DefaultDialer.Dial(wsURL, http.Header{
		"Origin": []string{"https://elsewhere.example.com"},
	})
	if err == nil {
		conn.Close()
		t.Fatalf("expected cross-host origin to be refused by default")
	}
}
