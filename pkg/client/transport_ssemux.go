package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	pkgerrors "github.com/OnlyFor/gradio/pkg/errors"
)

// runSSEMux implements the sse_v1/v2/v2.1/v3 transport (§4.6): a single
// POST to queue/join registers the call and returns an event_id; frames for
// that event_id then arrive over the session's shared multiplex stream
// (C5), delivered to handleFrame by Session.muxRegister.
func (sub *submission) runSSEMux(payload []any) {
	var root, spaceID string
	sub.session.do(func() {
		root = sub.session.serverConfig.Root
		spaceID = sub.session.serverConfig.SpaceID
	})

	raw, err := json.Marshal(joinBody{
		Data:        payload,
		EventData:   sub.eventData,
		FnIndex:     sub.fnIndex,
		TriggerID:   sub.triggerID,
		SessionHash: sub.session.sessionHash,
	})
	if err != nil {
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: err.Error(), Err: pkgerrors.NewClientExceptionError(err),
		})
		return
	}

	url := fmt.Sprintf("%s/queue/join", root)
	req, err := http.NewRequestWithContext(sub.ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: err.Error(), Err: pkgerrors.NewClientExceptionError(err),
		})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	sub.attachAuth(req)

	if sub.dependency.ZeroGPU && spaceID != "" && sub.session.cfg.ZeroGPUHandshakeFunc != nil {
		extra, err := sub.session.cfg.ZeroGPUHandshakeFunc(sub.ctx, spaceID)
		if err != nil {
			sub.session.cfg.Logger.WithField("err", err).Warn("zerogpu handshake failed, continuing without it")
		}
		for k, vs := range extra {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	resp, err := sub.session.cfg.HTTPClient.Do(req)
	if err != nil {
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: pkgerrors.MsgBrokenConnection, Err: pkgerrors.NewBrokenConnectionError(err),
		})
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: pkgerrors.MsgQueueFull, Err: pkgerrors.NewQueueFullError(),
		})
		return
	case resp.StatusCode != http.StatusOK:
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: pkgerrors.MsgBrokenConnection,
			Err:     pkgerrors.NewBrokenConnectionError(fmt.Errorf("queue/join returned status %d", resp.StatusCode)),
		})
		return
	}

	var jr joinResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil || jr.EventID == "" {
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: pkgerrors.MsgBrokenConnection, Err: pkgerrors.NewBrokenConnectionError(err),
		})
		return
	}

	sub.setEventID(jr.EventID)
	sub.setTeardown(func() { sub.session.muxUnregister(jr.EventID) })

	if err := sub.session.muxRegister(sub.ctx, jr.EventID, sub.handleFrame); err != nil {
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: pkgerrors.MsgBrokenConnection, Err: pkgerrors.NewBrokenConnectionError(err),
		})
	}
}
