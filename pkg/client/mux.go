package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/OnlyFor/gradio/pkg/client/sse"
)

// muxRegister registers cb under eventID, draining any frames buffered in
// pendingStreamMessages first (the race between the POST reply and stream
// messages for the same event, §4.6 bullet 2 / S3), then opens the shared
// multiplex stream if it is not already open.
func (s *Session) muxRegister(ctx context.Context, eventID string, cb func(Frame)) error {
	s.do(func() {
		if pending, ok := s.pendingStreamMessages.Get(eventID); ok {
			s.pendingStreamMessages.Remove(eventID)
			for _, f := range pending {
				cb(f)
			}
		}
		s.eventCallbacks[eventID] = cb
		s.unclosedEvents[eventID] = struct{}{}
		s.metrics.setOpenEvents(len(s.unclosedEvents))
	})
	return s.muxEnsureOpen(ctx)
}

// muxUnregister removes eventID's callback and discards its diff snapshot
// (§4.6 Terminal). Closes the shared stream once no event is outstanding
// (invariant 6, §3).
func (s *Session) muxUnregister(eventID string) {
	s.do(func() {
		delete(s.eventCallbacks, eventID)
		delete(s.unclosedEvents, eventID)
		s.pendingDiffStreams.discard(eventID)
		s.metrics.setOpenEvents(len(s.unclosedEvents))
		if len(s.unclosedEvents) == 0 {
			s.muxCloseLocked()
		}
	})
}

// muxCloseLocked tears down the shared stream. Must only be called from
// inside do().
func (s *Session) muxCloseLocked() {
	if s.streamCancel != nil {
		s.streamCancel()
		s.streamCancel = nil
	}
	s.streamOpen = false
}

func (s *Session) muxEnsureOpen(ctx context.Context) error {
	var shouldOpen bool
	s.do(func() {
		if !s.streamOpen {
			s.streamOpen = true
			shouldOpen = true
		}
	})
	if !shouldOpen {
		return nil
	}

	url := fmt.Sprintf("%s/queue/data?session_hash=%s", s.serverConfig.Root, s.sessionHash)
	streamCtx, cancel := context.WithCancel(context.Background())
	body, err := s.cfg.StreamFactory(streamCtx, url, http.Header{})
	if err != nil {
		cancel()
		s.do(func() { s.streamOpen = false })
		s.muxFailAll(err)
		return err
	}

	s.do(func() { s.streamCancel = cancel })
	go s.muxReadLoop(streamCtx, body)
	return nil
}

// muxFailAll emits a synthetic unexpected_error frame to every callback
// currently registered, drops them, and tears down the shared stream if
// one is open. Used both for the "On stream-open failure" rule in §4.5 and
// for a callback exception on sse_v2/sse_v2.1 (§4.6), which the spec treats
// as fatal to the whole shared connection, not just the one submission.
func (s *Session) muxFailAll(err error) {
	var failed map[string]func(Frame)
	s.do(func() {
		failed = s.eventCallbacks
		s.eventCallbacks = make(map[string]func(Frame))
		s.unclosedEvents = make(map[string]struct{})
		s.metrics.setOpenEvents(0)
		s.muxCloseLocked()
	})
	for id, cb := range failed {
		cb(Frame{Msg: "unexpected_error", EventID: id, Output: &FrameOutput{Error: err.Error()}})
	}
}

func (s *Session) muxReadLoop(ctx context.Context, body io.ReadCloser) {
	defer body.Close()

	parser := sse.NewParser(sse.ParserConfig{})
	frames, errs := parser.ParseStream(ctx, body)

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				continue
			}
			if err != nil {
				s.cfg.Logger.WithField("err", err).Warn("multiplex stream read failed")
				s.muxFailAll(err)
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
				s.cfg.Logger.WithField("err", err).Warn("malformed multiplex frame")
				continue
			}
			s.dispatchMuxFrame(fr)
		}
	}
}

// dispatchMuxFrame delivers one decoded frame to its registered callback,
// buffers it if none is registered yet, or closes the stream on the
// close_stream signal (§4.5).
func (s *Session) dispatchMuxFrame(fr Frame) {
	var cb func(Frame)
	s.do(func() {
		if fr.Msg == "close_stream" {
			s.muxCloseLocked()
			return
		}
		if fr.EventID == "" {
			s.cfg.Logger.WithField("msg", fr.Msg).Warn("multiplex frame missing event_id, dropped")
			return
		}
		if registered, ok := s.eventCallbacks[fr.EventID]; ok {
			cb = registered
			return
		}
		existing, _ := s.pendingStreamMessages.Get(fr.EventID)
		existing = append(existing, fr)
		s.pendingStreamMessages.Add(fr.EventID, existing)
	})
	// The callback runs outside do(), since it reaches back into the
	// session through do() itself.
	if cb != nil {
		cb(fr)
	}
}
