package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	pkgerrors "github.com/OnlyFor/gradio/pkg/errors"
	"github.com/OnlyFor/gradio/pkg/client/sse"
)

// runSSELegacy implements protocol = "sse" (§4.6): a dedicated GET-based
// event stream per submission, with the payload delivered by a follow-up
// POST once the server has handed back an event_id on the "send_data"
// frame.
func (sub *submission) runSSELegacy(payload []any) {
	var root string
	sub.session.do(func() { root = sub.session.serverConfig.Root })

	streamCtx, cancel := context.WithCancel(sub.ctx)
	sub.setTeardown(cancel)

	url := fmt.Sprintf("%s/queue/join?fn_index=%d&session_hash=%s", root, sub.fnIndex, sub.session.sessionHash)
	body, err := sub.session.cfg.StreamFactory(streamCtx, url, http.Header{"Accept": {"text/event-stream"}})
	if err != nil {
		cancel()
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: pkgerrors.MsgBrokenConnection, Err: pkgerrors.NewBrokenConnectionError(err),
		})
		return
	}
	defer body.Close()

	parser := sse.NewParser(sse.ParserConfig{})
	frames, errs := parser.ParseStream(streamCtx, body)

	for {
		select {
		case <-streamCtx.Done():
			return

		case err, ok := <-errs:
			if !ok {
				continue
			}
			if err != nil {
				sub.fireStatus(&StatusEvent{
					Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
					Message: pkgerrors.MsgBrokenConnection, Err: pkgerrors.NewBrokenConnectionError(err),
				})
				return
			}

		case pf, ok := <-frames:
			if !ok {
				return
			}
			if len(pf.DataRaw) == 0 {
				continue
			}
			fr, err := decodeFrame(pf.DataRaw)
			if err != nil {
				sub.session.cfg.Logger.WithField("err", err).Warn("malformed sse-legacy frame")
				continue
			}

			if fr.Msg == "send_data" {
				sub.setEventID(fr.EventID)
				sub.postSSELegacyData(root, payload)
				continue
			}

			sub.handleFrame(fr)
		}
	}
}

// postSSELegacyData delivers the call's payload once the send_data frame
// has arrived on the stream (§4.6). A non-200 here closes the stream with a
// broken-connection status, since the GET side has no other way to learn
// the POST failed.
func (sub *submission) postSSELegacyData(root string, payload []any) {
	raw, err := json.Marshal(dataReply{
		Data:        payload,
		EventData:   sub.eventData,
		FnIndex:     sub.fnIndex,
		TriggerID:   sub.triggerID,
		SessionHash: sub.session.sessionHash,
		EventID:     sub.getEventID(),
	})
	if err != nil {
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: err.Error(), Err: pkgerrors.NewClientExceptionError(err),
		})
		return
	}

	url := fmt.Sprintf("%s/queue/data", root)
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

	resp, err := sub.session.cfg.HTTPClient.Do(req)
	if err != nil {
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: pkgerrors.MsgBrokenConnection, Err: pkgerrors.NewBrokenConnectionError(err),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: pkgerrors.MsgBrokenConnection,
			Err:     pkgerrors.NewBrokenConnectionError(fmt.Errorf("queue/data returned status %d", resp.StatusCode)),
		})
		return
	}

	var jr joinResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err == nil && jr.EventID != "" {
		sub.setEventID(jr.EventID)
	}
}
