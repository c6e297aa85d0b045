package client

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// gorillaDialer adapts gorilla/websocket.Dialer to the engine's minimal
// WebSocketDialer surface, so the dedicated WS transport (protocol = "ws")
// never imports gorilla/websocket directly outside this file.
type gorillaDialer struct {
	dialer *websocket.Dialer
}

func newGorillaDialer() *gorillaDialer {
	return &gorillaDialer{dialer: websocket.DefaultDialer}
}

func (d *gorillaDialer) DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (WebSocketConn, error) {
	conn, _, err := d.dialer.DialContext(ctx, urlStr, requestHeader)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
