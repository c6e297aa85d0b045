package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	pkgerrors "github.com/OnlyFor/gradio/pkg/errors"
)

// maxTrackedPendingFrames bounds the race-registry buffer, see diffStore's
// maxTrackedDiffStreams for the same rationale.
const maxTrackedPendingFrames = 4096

// Session is the process-wide client session (C7): identity, resolved
// server configuration, API map, and the SSE-multiplex registries from §3.
// All mutable multiplex state is owned by one goroutine (run) and reached
// only through do(), realizing the cooperative single-threaded model the
// spec assumes without a mutex guarding every field (§5, §9).
type Session struct {
	cfg          Config
	sessionHash  string
	metrics      *Metrics

	cmds chan func()
	wg   sync.WaitGroup

	createGroup singleflight.Group

	// Fields below are only ever mutated from inside do() (see run()), with
	// one exception: frame handlers fold into pendingDiffStreams directly,
	// relying on its LRU cache's own locking. serverConfig is also read
	// directly once Create has stored it.
	serverConfig ServerConfig
	api          API
	lastStatus   map[int]Stage

	streamOpen            bool
	streamCancel          context.CancelFunc
	pendingStreamMessages *lru.Cache[string, []Frame]
	pendingDiffStreams    *diffStore
	eventCallbacks        map[string]func(Frame)
	unclosedEvents        map[string]struct{}

	heartbeatCancel context.CancelFunc
	closeOnce       sync.Once
	closed          chan struct{}
}

// NewSession constructs a Session with a random sessionHash. Callers must
// call Create before Submit.
func NewSession(cfg Config) *Session {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	cfg.Logger = loggerOrDefault(cfg.Logger)
	if cfg.StreamFactory == nil {
		cfg.StreamFactory = defaultStreamFactory(cfg.HTTPClient)
	}
	if cfg.Dialer == nil {
		cfg.Dialer = newGorillaDialer()
	}

	s := &Session{
		cfg:            cfg,
		sessionHash:    uuid.NewString(),
		metrics:        newMetrics(),
		cmds:           make(chan func()),
		lastStatus:     make(map[int]Stage),
		eventCallbacks: make(map[string]func(Frame)),
		unclosedEvents: make(map[string]struct{}),
		closed:         make(chan struct{}),
	}
	s.pendingDiffStreams = newDiffStore(func(eventID string) {
		s.cfg.Logger.WithField("event_id", eventID).Warn("evicted diff snapshot before a terminal frame arrived")
	})
	cache, err := lru.NewWithEvict(maxTrackedPendingFrames, func(key string, _ []Frame) {
		s.cfg.Logger.WithField("event_id", key).Warn("evicted buffered stream frames before they were claimed")
	})
	if err != nil {
		panic(err)
	}
	s.pendingStreamMessages = cache

	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Session) run() {
	defer s.wg.Done()
	for cmd := range s.cmds {
		cmd()
	}
}

// do runs fn on the session's owning goroutine and waits for it to finish.
func (s *Session) do(fn func()) {
	done := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(done) }:
		<-done
	case <-s.closed:
	}
}

// SessionHash returns the session's stable identity token.
func (s *Session) SessionHash() string { return s.sessionHash }

// Metrics returns the session's Prometheus-backed metrics collector.
func (s *Session) Metrics() *Metrics { return s.metrics }

// Create resolves the server configuration and API description for an app
// reference, then starts a best-effort heartbeat. Endpoint discovery itself
// is the FetchConfigFunc collaborator (§1); Create only wires it in and
// records the result on the session.
func (s *Session) Create(ctx context.Context, appReference string) error {
	if s.cfg.FetchConfigFunc == nil {
		return pkgerrors.NewServerError("no config-fetch collaborator configured", nil)
	}

	type result struct {
		cfg ServerConfig
		api API
	}
	v, err, _ := s.createGroup.Do(appReference, func() (any, error) {
		cfg, api, err := s.cfg.FetchConfigFunc(ctx, appReference)
		if err != nil {
			return nil, err
		}
		return result{cfg: cfg, api: api}, nil
	})
	if err != nil {
		return pkgerrors.Wrap(err, "resolve app configuration")
	}
	r := v.(result)

	s.do(func() {
		s.serverConfig = r.cfg
		s.api = r.api
	})

	s.startHeartbeat(r.cfg.Root)
	return nil
}

func (s *Session) startHeartbeat(root string) {
	ctx, cancel := context.WithCancel(context.Background())
	s.heartbeatCancel = cancel

	url := fmt.Sprintf("%s/heartbeat/%s", root, s.sessionHash)
	ping := func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return
		}
		resp, err := s.cfg.HTTPClient.Do(req)
		if err != nil {
			s.cfg.Logger.WithField("err", err).Warn("heartbeat request failed")
			return
		}
		resp.Body.Close()
	}

	go func() {
		ping()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ping()
			}
		}
	}()
}

// Close tears down the session's background goroutines. It does not cancel
// outstanding submissions; callers should cancel() each handle first.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.heartbeatCancel != nil {
			s.heartbeatCancel()
		}
		s.do(func() {
			if s.streamCancel != nil {
				s.streamCancel()
			}
		})
		close(s.closed)
		close(s.cmds)
		s.wg.Wait()
	})
}

func defaultStreamFactory(hc *http.Client) func(context.Context, string, http.Header) (io.ReadCloser, error) {
	return func(ctx context.Context, url string, header http.Header) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "text/event-stream")
		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d opening stream", resp.StatusCode)
		}
		return resp.Body, nil
	}
}
