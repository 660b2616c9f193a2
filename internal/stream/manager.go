// Package stream maintains a single websocket transaction subscription whose
// address filter follows the set of tracked mints. The manager keeps two
// views of the filter: the intended set (what callers asked for) and the
// confirmed set (what the server last acknowledged), and reconciles them
// through whole-set replacement.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"token-sentinel/internal/observability"
)

// Handler receives the raw result payload of each transaction notification.
type Handler func(payload []byte)

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	HeartbeatInterval time.Duration // ping cadence
	HeartbeatTimeout  time.Duration // pong wait before forced disconnect
	ReceiveTimeout    time.Duration // per-read deadline
	ReconnectDelay    time.Duration // fixed delay before reconnect
	AckTimeout        time.Duration // replacement ack wait before rollback
	MaxFilterSize     int           // addresses per subscription before truncation
	WriteTimeout      time.Duration
	Logger            *log.Logger
}

// Manager owns the websocket connection and the subscription lifecycle.
type Manager struct {
	endpoint string
	handler  Handler

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	receiveTimeout    time.Duration
	reconnectDelay    time.Duration
	ackTimeout        time.Duration
	maxFilterSize     int
	writeTimeout      time.Duration
	logger            *log.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	intended  map[string]struct{}
	confirmed map[string]struct{}
	subID     int64 // server-assigned; 0 means unsubscribed
	hasSub    bool

	// In-flight whole-set replacement: correlation id, the optimistic set it
	// carries, and the confirmed set to restore on failure.
	pendingID  string
	pendingSet map[string]struct{}
	priorSet   map[string]struct{}

	reqCounter int
	lastPong   atomic.Int64 // unix nanos
}

// New creates a Manager. Run must be called to start it.
func New(endpoint string, handler Handler, opts Options) *Manager {
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.HeartbeatTimeout == 0 {
		opts.HeartbeatTimeout = 20 * time.Second
	}
	if opts.ReceiveTimeout == 0 {
		opts.ReceiveTimeout = 80 * time.Second
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.AckTimeout == 0 {
		opts.AckTimeout = 30 * time.Second
	}
	if opts.MaxFilterSize == 0 {
		opts.MaxFilterSize = 45000
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Manager{
		endpoint:          endpoint,
		handler:           handler,
		heartbeatInterval: opts.HeartbeatInterval,
		heartbeatTimeout:  opts.HeartbeatTimeout,
		receiveTimeout:    opts.ReceiveTimeout,
		reconnectDelay:    opts.ReconnectDelay,
		ackTimeout:        opts.AckTimeout,
		maxFilterSize:     opts.MaxFilterSize,
		writeTimeout:      opts.WriteTimeout,
		logger:            opts.Logger,
		intended:          make(map[string]struct{}),
		confirmed:         make(map[string]struct{}),
	}
}

// SetFilter replaces the intended address set. The connection, if up, is
// reconciled immediately; otherwise the set is applied on the next connect.
func (m *Manager) SetFilter(addresses []string) {
	next := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		if a != "" {
			next[a] = struct{}{}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.intended = next
	m.syncLocked()
}

// Intended returns the current intended address set, sorted.
func (m *Manager) Intended() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.intended))
	for a := range m.intended {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Run connects and serves until ctx is cancelled, reconnecting after a fixed
// delay on any connection loss. The confirmed set is cleared on every
// disconnect; the intended set survives and drives resubscription.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if err := m.runConnection(ctx); err != nil && ctx.Err() == nil {
			m.logger.Printf("[stream] connection lost: %v", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.reconnectDelay):
			observability.DefaultMetrics.StreamReconnects.Inc()
		}
	}
}

func (m *Manager) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, m.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	m.lastPong.Store(time.Now().UnixNano())
	conn.SetPongHandler(func(string) error {
		m.lastPong.Store(time.Now().UnixNano())
		return nil
	})

	m.mu.Lock()
	m.conn = conn
	// Fresh connection acknowledges nothing yet.
	m.confirmed = make(map[string]struct{})
	m.subID = 0
	m.hasSub = false
	m.pendingID = ""
	m.pendingSet = nil
	m.priorSet = nil
	m.syncLocked()
	m.mu.Unlock()

	hbDone := make(chan struct{})
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		m.heartbeatLoop(conn, hbDone)
	}()

	// Close the connection when ctx ends so the blocked read returns.
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	readErr := m.readLoop(conn)

	stop()
	close(hbDone)
	conn.Close()
	hbWG.Wait()

	m.mu.Lock()
	m.conn = nil
	m.mu.Unlock()

	return readErr
}

func (m *Manager) readLoop(conn *websocket.Conn) error {
	for {
		conn.SetReadDeadline(time.Now().Add(m.receiveTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		m.handleMessage(message)
	}
}

func (m *Manager) heartbeatLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			sentAt := time.Now()
			conn.SetWriteDeadline(sentAt.Add(m.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Reader will observe the dead connection.
				continue
			}
			time.AfterFunc(m.heartbeatTimeout, func() {
				if m.lastPong.Load() < sentAt.UnixNano() {
					m.logger.Printf("[stream] pong timeout, forcing disconnect")
					conn.Close()
				}
			})
		}
	}
}

// syncLocked reconciles intended vs confirmed. Caller holds m.mu.
func (m *Manager) syncLocked() {
	if m.conn == nil || m.pendingID != "" {
		return
	}

	if len(m.intended) == 0 {
		if m.hasSub {
			m.unsubscribeLocked()
		}
		return
	}

	addresses := m.targetAddressesLocked()
	sent := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		sent[a] = struct{}{}
	}

	// Compare against the truncated target, not the raw intended set, so an
	// oversized filter does not resubscribe forever.
	if setsEqual(sent, m.confirmed) {
		return
	}

	m.replaceLocked(addresses, sent)
}

// targetAddressesLocked returns the intended set sorted and truncated to the
// filter size limit. Caller holds m.mu.
func (m *Manager) targetAddressesLocked() []string {
	addresses := make([]string, 0, len(m.intended))
	for a := range m.intended {
		addresses = append(addresses, a)
	}
	sort.Strings(addresses)

	if len(addresses) > m.maxFilterSize {
		m.logger.Printf("[stream] filter size %d exceeds limit %d, truncating", len(addresses), m.maxFilterSize)
		addresses = addresses[:m.maxFilterSize]
	}
	return addresses
}

// replaceLocked sends a whole-set transactionSubscribe, confirms
// optimistically, and arms the rollback timer. Caller holds m.mu.
func (m *Manager) replaceLocked(addresses []string, sent map[string]struct{}) {
	m.reqCounter++
	corrID := fmt.Sprintf("sub-%d", m.reqCounter)

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      corrID,
		Method:  "transactionSubscribe",
		Params: []interface{}{
			transactionFilter{AccountInclude: addresses, Failed: false},
			transactionOptions{Commitment: "confirmed"},
		},
	}

	// Optimistic confirm; priorSet restores on send failure or ack timeout.
	m.priorSet = m.confirmed
	m.confirmed = sent
	m.pendingID = corrID
	m.pendingSet = sent

	m.conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
	if err := m.conn.WriteJSON(req); err != nil {
		m.logger.Printf("[stream] subscribe send failed: %v", err)
		m.rollbackLocked(corrID)
		return
	}

	time.AfterFunc(m.ackTimeout, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.pendingID == corrID {
			m.logger.Printf("[stream] ack timeout for %s, rolling back", corrID)
			m.rollbackLocked(corrID)
			m.syncLocked()
		}
	})

	observability.DefaultMetrics.FilterReplacements.Inc()
	m.logger.Printf("[stream] sent %s with %d addresses", corrID, len(addresses))
}

// rollbackLocked restores the confirmed set recorded before the in-flight
// replacement. Caller holds m.mu.
func (m *Manager) rollbackLocked(corrID string) {
	if m.pendingID != corrID {
		return
	}
	observability.DefaultMetrics.FilterRollbacks.Inc()
	m.confirmed = m.priorSet
	m.pendingID = ""
	m.pendingSet = nil
	m.priorSet = nil
}

// unsubscribeLocked drops the active subscription. Caller holds m.mu.
func (m *Manager) unsubscribeLocked() {
	m.reqCounter++
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      fmt.Sprintf("unsub-%d", m.reqCounter),
		Method:  "transactionUnsubscribe",
		Params:  []interface{}{m.subID},
	}

	m.conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
	if err := m.conn.WriteJSON(req); err != nil {
		m.logger.Printf("[stream] unsubscribe send failed: %v", err)
	}

	// Notifications for the old id are discarded regardless of whether the
	// server processed the unsubscribe.
	m.subID = 0
	m.hasSub = false
	m.confirmed = make(map[string]struct{})
	m.logger.Printf("[stream] unsubscribed")
}

func (m *Manager) handleMessage(message []byte) {
	// Notifications first: they are the common case.
	var notif rpcNotification
	if err := json.Unmarshal(message, &notif); err == nil &&
		notif.Method == "transactionNotification" && notif.Params != nil {
		m.handleNotification(&notif)
		return
	}

	var resp rpcResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.ID != "" {
		m.handleResponse(&resp)
		return
	}

	m.logger.Printf("[stream] dropping unrecognized message (%d bytes)", len(message))
}

func (m *Manager) handleResponse(resp *rpcResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if resp.ID != m.pendingID {
		// Late ack for a superseded request or an unsubscribe receipt.
		return
	}

	if resp.Error != nil {
		m.logger.Printf("[stream] %s rejected: code=%d msg=%s", resp.ID, resp.Error.Code, resp.Error.Message)
		m.rollbackLocked(resp.ID)
		m.syncLocked()
		return
	}

	var subID int64
	if err := json.Unmarshal(resp.Result, &subID); err != nil {
		m.logger.Printf("[stream] %s carried malformed subscription id: %v", resp.ID, err)
		m.rollbackLocked(resp.ID)
		m.syncLocked()
		return
	}

	oldSub := m.subID
	hadSub := m.hasSub

	m.subID = subID
	m.hasSub = true
	m.confirmed = m.pendingSet
	m.pendingID = ""
	m.pendingSet = nil
	m.priorSet = nil

	// Retire the superseded subscription.
	if hadSub && oldSub != subID && m.conn != nil {
		m.reqCounter++
		req := rpcRequest{
			JSONRPC: "2.0",
			ID:      fmt.Sprintf("unsub-%d", m.reqCounter),
			Method:  "transactionUnsubscribe",
			Params:  []interface{}{oldSub},
		}
		m.conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
		if err := m.conn.WriteJSON(req); err != nil {
			m.logger.Printf("[stream] retire old subscription %d: %v", oldSub, err)
		}
	}

	m.logger.Printf("[stream] subscription %d confirmed (%d addresses)", subID, len(m.confirmed))

	// The intended set may have moved while the ack was in flight.
	m.syncLocked()
}

func (m *Manager) handleNotification(notif *rpcNotification) {
	m.mu.Lock()
	current := m.hasSub && notif.Params.Subscription == m.subID
	m.mu.Unlock()

	if !current {
		// Stale subscription id from a superseded filter set.
		return
	}

	if m.handler != nil {
		m.handler(notif.Params.Result)
	}
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
