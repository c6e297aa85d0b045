package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	pkgerrors "github.com/OnlyFor/gradio/pkg/errors"
)

// runDirect implements the skip_queue transport (§4.6): a single POST to
// run<endpoint>, with no queue join and no streaming frames.
func (sub *submission) runDirect(payload []any) {
	var root string
	sub.session.do(func() { root = sub.session.serverConfig.Root })

	body, err := json.Marshal(directRequestBody{Data: payload, SessionHash: sub.session.sessionHash})
	if err != nil {
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: err.Error(), Err: pkgerrors.NewClientExceptionError(err),
		})
		return
	}

	url := fmt.Sprintf("%s/run%s", root, sub.endpointPath)
	req, err := http.NewRequestWithContext(sub.ctx, http.MethodPost, url, bytes.NewReader(body))
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
			Message: err.Error(), Err: pkgerrors.NewServerError(err.Error(), err),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("server returned status %d", resp.StatusCode)
		var failed directResponse
		if json.NewDecoder(resp.Body).Decode(&failed) == nil && failed.Error != "" {
			msg = failed.Error
		}
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: msg, Err: pkgerrors.NewServerError(msg, nil),
		})
		return
	}

	var direct directResponse
	if err := json.NewDecoder(resp.Body).Decode(&direct); err != nil {
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: err.Error(), Err: pkgerrors.NewClientExceptionError(err),
		})
		return
	}

	if direct.Error != "" {
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: direct.Error, Err: pkgerrors.NewServerError(direct.Error, nil),
		})
		return
	}

	sub.fireData(&DataEvent{Data: direct.Data, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath})
	sub.fireStatus(&StatusEvent{
		Stage: StageComplete, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
		ETA: direct.AverageDuration,
	})
}

// directRequestBody is the POST body for the skip_queue direct transport.
type directRequestBody struct {
	Data        []any  `json:"data"`
	SessionHash string `json:"session_hash"`
}

// attachAuth adds the bearer token from TokenFunc, if configured (§1).
func (sub *submission) attachAuth(req *http.Request) {
	if sub.session.cfg.TokenFunc == nil {
		return
	}
	token, err := sub.session.cfg.TokenFunc(req.Context())
	if err != nil || token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}
