package stream

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func testOptions() Options {
	return Options{
		HeartbeatInterval: time.Hour, // keep pings out of the way
		HeartbeatTimeout:  time.Hour,
		ReceiveTimeout:    time.Hour,
		ReconnectDelay:    50 * time.Millisecond,
		AckTimeout:        30 * time.Second,
		MaxFilterSize:     45000,
		Logger:            log.New(io.Discard, "", 0),
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// startManager runs m until the test ends.
func startManager(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("manager did not stop")
		}
	})
}

func readRequest(t *testing.T, c *websocket.Conn) rpcRequest {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	var req rpcRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	return req
}

func ackSubscription(t *testing.T, c *websocket.Conn, reqID string, subID int64) {
	t.Helper()
	raw, _ := json.Marshal(subID)
	resp := rpcResponse{JSONRPC: "2.0", ID: reqID, Result: raw}
	if err := c.WriteJSON(resp); err != nil {
		t.Fatalf("server write ack: %v", err)
	}
}

func sendNotification(t *testing.T, c *websocket.Conn, subID int64, payload string) {
	t.Helper()
	notif := rpcNotification{
		JSONRPC: "2.0",
		Method:  "transactionNotification",
		Params: &notificationParams{
			Subscription: subID,
			Result:       json.RawMessage(payload),
		},
	}
	if err := c.WriteJSON(notif); err != nil {
		t.Fatalf("server write notification: %v", err)
	}
}

func subscribeAddresses(t *testing.T, req rpcRequest) []string {
	t.Helper()
	if len(req.Params) == 0 {
		t.Fatal("subscribe request has no params")
	}
	raw, err := json.Marshal(req.Params[0])
	if err != nil {
		t.Fatalf("re-marshal params: %v", err)
	}
	var filter transactionFilter
	if err := json.Unmarshal(raw, &filter); err != nil {
		t.Fatalf("unmarshal filter: %v", err)
	}
	return filter.AccountInclude
}

func TestManagerSubscribeAndNotify(t *testing.T) {
	payloads := make(chan string, 10)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		req := readRequest(t, c)
		if req.Method != "transactionSubscribe" {
			t.Errorf("expected transactionSubscribe, got %s", req.Method)
		}
		if addrs := subscribeAddresses(t, req); len(addrs) != 1 || addrs[0] != "mintA" {
			t.Errorf("unexpected filter: %v", addrs)
		}

		ackSubscription(t, c, req.ID, 7)
		sendNotification(t, c, 7, `{"signature":"sig1"}`)

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	m := New(wsURL(server), func(p []byte) { payloads <- string(p) }, testOptions())
	m.SetFilter([]string{"mintA"})
	startManager(t, m)

	select {
	case p := <-payloads:
		if p != `{"signature":"sig1"}` {
			t.Errorf("unexpected payload: %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestManagerDiscardsStaleSubscriptionID(t *testing.T) {
	payloads := make(chan string, 10)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		req := readRequest(t, c)
		ackSubscription(t, c, req.ID, 7)

		// Stale id first, then the live one.
		sendNotification(t, c, 999, `{"signature":"stale"}`)
		sendNotification(t, c, 7, `{"signature":"live"}`)

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	m := New(wsURL(server), func(p []byte) { payloads <- string(p) }, testOptions())
	m.SetFilter([]string{"mintA"})
	startManager(t, m)

	select {
	case p := <-payloads:
		if !strings.Contains(p, "live") {
			t.Errorf("stale notification delivered: %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}

	select {
	case p := <-payloads:
		t.Errorf("unexpected extra payload: %s", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManagerReplacesFilterOnChange(t *testing.T) {
	requests := make(chan rpcRequest, 10)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		var nextSub int64 = 100
		for {
			c.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var req rpcRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			requests <- req
			if req.Method == "transactionSubscribe" {
				nextSub++
				ackSubscription(t, c, req.ID, nextSub)
			}
		}
	}))
	defer server.Close()

	m := New(wsURL(server), nil, testOptions())
	m.SetFilter([]string{"mintA"})
	startManager(t, m)

	first := <-requests
	if got := subscribeAddresses(t, first); len(got) != 1 || got[0] != "mintA" {
		t.Fatalf("first filter: %v", got)
	}

	m.SetFilter([]string{"mintA", "mintB"})

	// Whole-set replacement: the second subscribe carries both addresses.
	var second rpcRequest
	select {
	case second = <-requests:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for replacement subscribe")
	}
	if second.Method != "transactionSubscribe" {
		t.Fatalf("expected transactionSubscribe, got %s", second.Method)
	}
	got := subscribeAddresses(t, second)
	if len(got) != 2 || got[0] != "mintA" || got[1] != "mintB" {
		t.Errorf("replacement filter: %v", got)
	}

	// The superseded subscription is retired.
	select {
	case third := <-requests:
		if third.Method != "transactionUnsubscribe" {
			t.Errorf("expected transactionUnsubscribe, got %s", third.Method)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for unsubscribe of old subscription")
	}
}

func TestManagerUnsubscribesWhenIntendedEmpties(t *testing.T) {
	requests := make(chan rpcRequest, 10)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			c.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var req rpcRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			requests <- req
			if req.Method == "transactionSubscribe" {
				ackSubscription(t, c, req.ID, 5)
			}
		}
	}))
	defer server.Close()

	m := New(wsURL(server), nil, testOptions())
	m.SetFilter([]string{"mintA"})
	startManager(t, m)

	<-requests // initial subscribe

	m.SetFilter(nil)

	select {
	case req := <-requests:
		if req.Method != "transactionUnsubscribe" {
			t.Errorf("expected transactionUnsubscribe, got %s", req.Method)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for unsubscribe")
	}
}

func TestManagerRollsBackOnAckTimeout(t *testing.T) {
	requests := make(chan rpcRequest, 10)

	// Server that never acknowledges.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			c.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var req rpcRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			requests <- req
		}
	}))
	defer server.Close()

	opts := testOptions()
	opts.AckTimeout = 100 * time.Millisecond

	m := New(wsURL(server), nil, opts)
	m.SetFilter([]string{"mintA"})
	startManager(t, m)

	first := <-requests

	// After the ack timeout the confirmed set rolls back and the diff is
	// re-sent with a fresh correlation id.
	select {
	case second := <-requests:
		if second.ID == first.ID {
			t.Error("retry must use a new correlation id")
		}
		if second.Method != "transactionSubscribe" {
			t.Errorf("expected transactionSubscribe retry, got %s", second.Method)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for retry after rollback")
	}
}

func TestManagerReconnectPreservesIntendedSet(t *testing.T) {
	requests := make(chan rpcRequest, 10)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		req := readRequest(t, c)
		requests <- req
		ackSubscription(t, c, req.ID, 42)

		// First connection dies right after the ack; later connections stay.
		if req.ID == "sub-1" {
			c.Close()
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	m := New(wsURL(server), nil, testOptions())
	m.SetFilter([]string{"mintA", "mintB"})
	startManager(t, m)

	first := <-requests
	if got := subscribeAddresses(t, first); len(got) != 2 {
		t.Fatalf("first filter: %v", got)
	}

	// After the drop the manager reconnects and reissues the full filter.
	select {
	case second := <-requests:
		got := subscribeAddresses(t, second)
		if len(got) != 2 || got[0] != "mintA" || got[1] != "mintB" {
			t.Errorf("reconnect filter: %v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for resubscribe after reconnect")
	}
}

func TestManagerTruncatesOversizedFilter(t *testing.T) {
	requests := make(chan rpcRequest, 10)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		req := readRequest(t, c)
		requests <- req
		ackSubscription(t, c, req.ID, 1)

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	opts := testOptions()
	opts.MaxFilterSize = 2

	m := New(wsURL(server), nil, opts)
	m.SetFilter([]string{"a", "b", "c", "d"})
	startManager(t, m)

	select {
	case req := <-requests:
		if got := subscribeAddresses(t, req); len(got) != 2 {
			t.Errorf("expected truncation to 2 addresses, got %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for subscribe")
	}

	// The full intended set survives truncation.
	if got := m.Intended(); len(got) != 4 {
		t.Errorf("intended set should keep all addresses, got %v", got)
	}
}
