package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	pkgerrors "github.com/OnlyFor/gradio/pkg/errors"
)

// submission is one outstanding call (§3). All mutable fields are guarded
// by mu; the transport goroutines and the session's mux dispatch all reach
// into a submission through handleFrame.
type submission struct {
	session      *Session
	fnIndex      int
	endpoint     string
	endpointPath string
	paramSchema  []ParamSchema
	eventData    any
	triggerID    *int
	transport    Transport
	dependency   Dependency

	ctx       context.Context
	cancelCtx context.CancelFunc

	handle *Handle

	// onHash and onDataRequest reply to the WS transport's send_hash/send_data
	// frames (§4.6). Left nil for every other transport.
	onHash        func()
	onDataRequest func()

	mu       sync.Mutex
	complete bool
	eventID  string
	teardown func() // tears down the submission's transport, idempotent, may be nil
}

// Submit is the engine's public entry point (C6). UnknownEndpoint and NoApi
// are returned synchronously; every later failure is surfaced as an error
// status event on the returned handle (§7).
func (s *Session) Submit(ctx context.Context, endpoint string, args []any, eventData any, triggerID *int) (*Handle, error) {
	var api API
	var serverCfg ServerConfig
	s.do(func() {
		api = s.api
		serverCfg = s.serverConfig
	})
	if api.NamedEndpoints == nil && api.UnnamedEndpoints == nil {
		return nil, pkgerrors.NewNoAPIError()
	}

	res, err := resolveEndpoint(endpoint, api, serverCfg.Dependencies)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &submission{
		session:      s,
		fnIndex:      res.FnIndex,
		endpoint:     endpoint,
		endpointPath: res.APIInfo.EndpointPath,
		paramSchema:  res.APIInfo.ParamSchema,
		eventData:    eventData,
		triggerID:    triggerID,
		dependency:   res.Dependency,
		ctx:          subCtx,
		cancelCtx:    cancel,
		handle:       newHandle(),
	}
	sub.transport = selectTransport(serverCfg.Protocol, res.Dependency)
	sub.handle.cancelFn = sub.cancel

	go sub.run(args)

	return sub.handle, nil
}

// Predict is the convenience wrapper: submit, then block for the final
// data payload (§4.7). It is not part of the hard core transport logic.
func (s *Session) Predict(ctx context.Context, endpoint string, args []any) (any, error) {
	handle, err := s.Submit(ctx, endpoint, args, nil, nil)
	if err != nil {
		return nil, err
	}

	type result struct {
		data any
		err  error
	}
	done := make(chan result, 1)
	var last any

	handle.On(EventData, func(ev Event) {
		last = ev.Data.Data
	})
	handle.On(EventStatus, func(ev Event) {
		switch ev.Status.Stage {
		case StageComplete:
			done <- result{data: last}
		case StageError:
			done <- result{err: pkgerrors.NewServerError(ev.Status.Message, ev.Status.Err)}
		}
	})

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		handle.Cancel()
		return nil, ctx.Err()
	}
}

func selectTransport(protocol Protocol, dep Dependency) Transport {
	switch {
	case dep.SkipQueue:
		return TransportDirect
	case protocol == ProtocolWS:
		return TransportWS
	case protocol == ProtocolSSE:
		return TransportSSELegacy
	case protocol.muxed():
		return TransportSSEMux
	default:
		return TransportDirect
	}
}

// run drives the submission through Prep -> Joined -> Streaming -> Terminal
// (§4.6). It always runs on its own goroutine so a slow transport never
// blocks the caller's Submit call or the session's owning goroutine.
func (sub *submission) run(args []any) {
	queued := sub.transport != TransportDirect

	payload, err := preparePayload(sub.ctx, sub.session.serverConfig.Root, args, sub.paramSchema, sub.session.cfg)
	if err != nil {
		sub.fireStatus(&StatusEvent{
			Stage: StageError, Queue: queued, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: err.Error(), Err: err,
		})
		return
	}
	sub.fireStatus(&StatusEvent{Stage: StagePending, Queue: queued, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath})

	switch sub.transport {
	case TransportDirect:
		sub.runDirect(payload)
	case TransportWS:
		sub.runWS(payload)
	case TransportSSELegacy:
		sub.runSSELegacy(payload)
	case TransportSSEMux:
		sub.runSSEMux(payload)
	}
}

// fireStatus enforces "once a submission has emitted a terminal status, no
// more events are emitted" (§7). Terminal stages also tear down the
// transport and record a metric.
func (sub *submission) fireStatus(ev *StatusEvent) {
	sub.mu.Lock()
	if sub.complete {
		sub.mu.Unlock()
		return
	}
	terminal := ev.Stage.Terminal()
	if terminal {
		sub.complete = true
	}
	sub.mu.Unlock()

	ev.Time = time.Now()
	sub.handle.emit(Event{Type: EventStatus, Status: ev})

	if terminal {
		sub.session.metrics.recordTerminal(sub.transport, ev.Stage)
		sub.mu.Lock()
		td := sub.teardown
		sub.mu.Unlock()
		if td != nil {
			td()
		}
		sub.cancelCtx()
	}
}

func (sub *submission) fireData(ev *DataEvent) {
	sub.mu.Lock()
	done := sub.complete
	sub.mu.Unlock()
	if done {
		return
	}
	ev.Time = time.Now()
	ev.EventData = sub.eventData
	ev.TriggerID = sub.triggerID
	sub.handle.emit(Event{Type: EventData, Data: ev})
}

func (sub *submission) fireLog(ev *LogEvent) {
	sub.mu.Lock()
	done := sub.complete
	sub.mu.Unlock()
	if done {
		return
	}
	sub.handle.emit(Event{Type: EventLog, Log: ev})
}

func (sub *submission) setEventID(id string) {
	sub.mu.Lock()
	sub.eventID = id
	sub.mu.Unlock()
}

func (sub *submission) getEventID() string {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.eventID
}

func (sub *submission) setTeardown(fn func()) {
	sub.mu.Lock()
	sub.teardown = fn
	sub.mu.Unlock()
}

// cancel implements Handle.Cancel (§4.6, §5): idempotent, marks complete,
// synthesizes a terminal status, tears down the transport, then best-effort
// notifies the server via /reset.
func (sub *submission) cancel() {
	sub.mu.Lock()
	already := sub.complete
	sub.mu.Unlock()
	if already {
		return
	}

	eventID := sub.getEventID()
	sub.fireStatus(&StatusEvent{Stage: StageComplete, Queue: false, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath})

	go sub.postReset(eventID)
}

// handleFrame is the shared per-frame callback used by every streaming
// transport (ws, sse-legacy, sse-mux). Any panic raised while interpreting
// a frame is converted into a ClientException status event (§4.6 "Error
// emission inside the callback"), via pkg/errors' RecoverToError rather
// than a bare recover() here.
func (sub *submission) handleFrame(fr Frame) {
	if err := pkgerrors.RecoverToError(func() { sub.dispatchFrame(fr) }); err != nil {
		sub.onCallbackError(err)
	}
}

func (sub *submission) dispatchFrame(fr Frame) {
	prevStage := sub.session.getLastStatus(sub.fnIndex)
	res := interpret(fr, sub.fnIndex, sub.endpointPath, prevStage)

	switch res.Kind {
	case FrameHeartbeat, FrameCloseStream:
		return

	case FrameUnexpectedError:
		msg := pkgerrors.MsgUnexpectedError
		if fr.Output != nil && fr.Output.Error != "" {
			msg = fr.Output.Error
		}
		sub.fireStatus(&StatusEvent{
			Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
			Message: msg, Err: pkgerrors.NewServerError(msg, nil),
		})
		return

	case FrameHash:
		if sub.onHash != nil {
			sub.onHash()
		}
		return

	case FrameData:
		if sub.onDataRequest != nil {
			sub.onDataRequest()
		}
		return

	case FrameGenerating:
		if res.Data != nil && fr.EventID != "" && sub.session.serverConfig.Protocol.diffCapable() {
			folded, err := sub.foldDiff(fr.EventID, res.Data.Data)
			if err != nil {
				sub.onCallbackError(err)
				return
			}
			res.Data.Data = folded
		}
		if res.Status != nil {
			sub.session.setLastStatus(sub.fnIndex, res.Status.Stage)
			sub.fireStatus(res.Status)
		}
		if res.Data != nil {
			sub.fireData(res.Data)
		}

	case FrameComplete:
		if res.Data != nil {
			sub.fireData(res.Data)
		}
		if res.Status != nil {
			sub.session.setLastStatus(sub.fnIndex, res.Status.Stage)
			sub.fireStatus(res.Status)
		}

	case FrameUpdate:
		if res.Status != nil {
			sub.session.setLastStatus(sub.fnIndex, res.Status.Stage)
			sub.fireStatus(res.Status)
		}

	case FrameLog:
		if res.Log != nil {
			sub.fireLog(res.Log)
		}
	}
}

// onCallbackError implements "Error emission inside the callback" (§4.6):
// fires a ClientException status, and for sse_v2/sse_v2.1 tears down the
// entire shared multiplex stream (C5) rather than just this submission's
// registration, since those protocol revisions treat a callback exception
// as fatal to the one connection every mux'd submission shares (v3 instead
// waits for the server's own close_stream).
func (sub *submission) onCallbackError(err error) {
	sub.fireStatus(&StatusEvent{
		Stage: StageError, FnIndex: sub.fnIndex, Endpoint: sub.endpointPath,
		Message: pkgerrors.MsgUnexpectedError, Err: pkgerrors.NewClientExceptionError(err),
	})
	if sub.transport == TransportSSEMux && sub.session.serverConfig.Protocol.closesOnCallbackError() {
		sub.session.muxFailAll(err)
	}
}

// foldDiff applies the diff-folding rule in §4.4: the first generating
// frame for an event_id stores a full snapshot, every subsequent one is
// folded as an RFC 6902 JSON Patch against it.
func (sub *submission) foldDiff(eventID string, data any) (any, error) {
	store := sub.session.pendingDiffStreams
	if !store.has(eventID) {
		return store.applyFull(eventID, data)
	}
	patchBytes, err := json.Marshal(data)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "encode diff patch")
	}
	return store.applyPatch(eventID, patchBytes)
}

func (sub *submission) postReset(eventID string) {
	if err := sub.session.postReset(sub.transport, sub.fnIndex, eventID); err != nil {
		sub.session.cfg.Logger.WithField("err", err).Warn("reset POST failed after cancellation")
	}
}

func (s *Session) getLastStatus(fnIndex int) Stage {
	var stage Stage
	s.do(func() { stage = s.lastStatus[fnIndex] })
	return stage
}

func (s *Session) setLastStatus(fnIndex int, stage Stage) {
	s.do(func() { s.lastStatus[fnIndex] = stage })
}
