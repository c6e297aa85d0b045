package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeWSConn is an in-memory double for WebSocketConn: writes are recorded,
// reads are served from a queue, then block until closed.
type fakeWSConn struct {
	mu      sync.Mutex
	writes  [][]byte
	reads   chan []byte
	closed  chan struct{}
	closeOn sync.Once
}

func newFakeWSConn() *fakeWSConn {
	return &fakeWSConn{reads: make(chan []byte, 8), closed: make(chan struct{})}
}

func (c *fakeWSConn) ReadMessage() (int, []byte, error) {
	select {
	case raw, ok := <-c.reads:
		if !ok {
			return 0, nil, context.Canceled
		}
		return 1, raw, nil
	case <-c.closed:
		return 0, nil, context.Canceled
	}
}

func (c *fakeWSConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *fakeWSConn) Close() error {
	c.closeOn.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeWSConn) writtenMessages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

type fakeWSDialer struct {
	conn *fakeWSConn
}

func (d *fakeWSDialer) DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (WebSocketConn, error) {
	return d.conn, nil
}

func TestRunWSSendsDistinctHashOpenFrameForOldServers(t *testing.T) {
	conn := newFakeWSConn()
	heartbeat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(heartbeat.Close)
	s := NewSession(Config{
		HTTPClient: heartbeat.Client(),
		Dialer:     &fakeWSDialer{conn: conn},
		FetchConfigFunc: func(ctx context.Context, appReference string) (ServerConfig, API, error) {
			return ServerConfig{
				Root:     heartbeat.URL,
				Protocol: ProtocolWS,
				Version:  "3.1.0",
			}, API{NamedEndpoints: map[string]APIInfo{"predict": {FnIndex: 0, EndpointPath: "/predict"}}}, nil
		},
	})
	t.Cleanup(s.Close)
	require.NoError(t, s.Create(context.Background(), "anything"))

	handle, err := s.Submit(context.Background(), "predict", []any{"x"}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(handle.Cancel)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return len(conn.writtenMessages()) >= 1
	}, time.Second, 10*time.Millisecond)

	var open hashOpenFrame
	require.NoError(t, json.Unmarshal(conn.writtenMessages()[0], &open))
	require.Equal(t, s.SessionHash(), open.Hash)

	// The open frame is distinct from the send_hash reply shape: it has no
	// fn_index field at all.
	var asMap map[string]any
	require.NoError(t, json.Unmarshal(conn.writtenMessages()[0], &asMap))
	require.NotContains(t, asMap, "fn_index")
	require.Contains(t, asMap, "hash")
}

func TestRunWSSkipsHashOpenFrameForNewServers(t *testing.T) {
	conn := newFakeWSConn()
	heartbeat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(heartbeat.Close)
	s := NewSession(Config{
		HTTPClient: heartbeat.Client(),
		Dialer:     &fakeWSDialer{conn: conn},
		FetchConfigFunc: func(ctx context.Context, appReference string) (ServerConfig, API, error) {
			return ServerConfig{
				Root:     heartbeat.URL,
				Protocol: ProtocolWS,
				Version:  "4.20.0",
			}, API{NamedEndpoints: map[string]APIInfo{"predict": {FnIndex: 0, EndpointPath: "/predict"}}}, nil
		},
	})
	t.Cleanup(s.Close)
	require.NoError(t, s.Create(context.Background(), "anything"))

	handle, err := s.Submit(context.Background(), "predict", []any{"x"}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(handle.Cancel)
	t.Cleanup(func() { conn.Close() })

	// Send a send_hash frame and confirm the reply uses the fn_index-bearing
	// shape (hashReply), never the open-frame shape, once a server opts in
	// to the modern handshake.
	conn.reads <- []byte(`{"msg":"send_hash"}`)

	require.Eventually(t, func() bool {
		return len(conn.writtenMessages()) >= 1
	}, time.Second, 10*time.Millisecond)

	var asMap map[string]any
	require.NoError(t, json.Unmarshal(conn.writtenMessages()[0], &asMap))
	require.Contains(t, asMap, "fn_index")
}
