package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	pkgerrors "github.com/OnlyFor/gradio/pkg/errors"
)

// postReset notifies the server that a submission was cancelled (§4.6). It
// always uses a fresh context with its own short timeout: the submission's
// own context is already cancelled by the time this runs, and a failed
// reset is warned, never surfaced to the caller.
func (s *Session) postReset(transport Transport, fnIndex int, eventID string) error {
	var body resetBody
	if transport == TransportWS {
		idx := fnIndex
		body = resetBody{FnIndex: &idx, SessionHash: s.sessionHash}
	} else {
		if eventID == "" {
			return nil
		}
		body = resetBody{EventID: eventID}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.NewResetFailureError(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var root string
	s.do(func() { root = s.serverConfig.Root })

	url := fmt.Sprintf("%s/reset", root)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return pkgerrors.NewResetFailureError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return pkgerrors.NewResetFailureError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return pkgerrors.NewResetFailureError(fmt.Errorf("reset returned status %d", resp.StatusCode))
	}
	return nil
}
