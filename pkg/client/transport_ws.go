package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	pkgerrors "github.com/OnlyFor/gradio/pkg/errors"
)

// runWS implements the dedicated WS transport (§4.6): one socket per
// submission, joined at queue/join, replying to send_hash/send_data frames
// and otherwise dispatching through the shared handleFrame.
func (sub *submission) runWS(payload []any) {
	var root, version string
	sub.session.do(func() {
		root = sub.session.serverConfig.Root
		version = sub.session.serverConfig.Version
	})

	url := wsURL(root) + "/queue/join"
	if tokenFn := sub.session.cfg.TokenFunc; tokenFn != nil {
		if token, err := tokenFn(sub.ctx); err == nil && token != "" {
			url += "?__sign=" + token
		}
	}
	streamCtx, cancel := context.WithCancel(sub.ctx)
	sub.setTeardown(cancel)

	conn, err := sub.session.cfg.Dialer.DialContext(streamCtx, url, http.Header{})
	if err != nil {
		cancel()
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: pkgerrors.MsgBrokenConnection, Err: pkgerrors.NewBrokenConnectionError(err),
		})
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, raw)
	}

	sub.onHash = func() {
		if err := write(hashReply{FnIndex: sub.fnIndex, SessionHash: sub.session.sessionHash}); err != nil {
			sub.fireStatus(&StatusEvent{
				Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
				Message: pkgerrors.MsgBrokenConnection, Err: pkgerrors.NewBrokenConnectionError(err),
			})
		}
	}
	sub.onDataRequest = func() {
		err := write(dataReply{
			FnIndex:     sub.fnIndex,
			Data:        payload,
			EventData:   sub.eventData,
			TriggerID:   sub.triggerID,
			SessionHash: sub.session.sessionHash,
		})
		if err != nil {
			sub.fireStatus(&StatusEvent{
				Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
				Message: pkgerrors.MsgBrokenConnection, Err: pkgerrors.NewBrokenConnectionError(err),
			})
		}
	}

	// Servers older than 3.6.0 expect a bare {hash: session_hash} frame
	// immediately on open, before any send_hash frame arrives (§9,
	// version.go) — a different wire shape than the send_hash reply.
	if needsHashOpenFrame(version) {
		if err := write(hashOpenFrame{Hash: sub.session.sessionHash}); err != nil {
			sub.fireStatus(&StatusEvent{
				Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
				Message: pkgerrors.MsgBrokenConnection, Err: pkgerrors.NewBrokenConnectionError(err),
			})
			return
		}
	}

	for {
		select {
		case <-streamCtx.Done():
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if isUncleanWSClose(err) {
				sub.fireStatus(&StatusEvent{
					Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
					Queue: true, Broken: true, Message: pkgerrors.MsgBrokenConnection, Err: pkgerrors.NewBrokenConnectionError(err),
				})
			}
			return
		}

		fr, err := decodeFrame(raw)
		if err != nil {
			sub.session.cfg.Logger.WithField("err", err).Warn("malformed ws frame")
			continue
		}

		sub.handleFrame(fr)

		if fr.Msg == "update" && fr.Stage == string(StageError) {
			return
		}
	}
}

func isUncleanWSClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return false
	}
	return true
}

func wsURL(root string) string {
	switch {
	case strings.HasPrefix(root, "https://"):
		return "wss://" + strings.TrimPrefix(root, "https://")
	case strings.HasPrefix(root, "http://"):
		return "ws://" + strings.TrimPrefix(root, "http://")
	default:
		return root
	}
}
