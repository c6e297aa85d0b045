package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testSession(t *testing.T, srv *httptest.Server, protocol Protocol) *Session {
	t.Helper()
	s := NewSession(Config{
		HTTPClient: srv.Client(),
		FetchConfigFunc: func(ctx context.Context, appReference string) (ServerConfig, API, error) {
			return ServerConfig{
					Root:     srv.URL,
					Protocol: protocol,
					Version:  "4.0.0",
				}, API{
					NamedEndpoints: map[string]APIInfo{"predict": {FnIndex: 0, EndpointPath: "/predict"}},
				}, nil
		},
	})
	t.Cleanup(s.Close)
	require.NoError(t, s.Create(context.Background(), "anything"))
	return s
}

func TestSubmitDirectTransport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/run/predict", func(w http.ResponseWriter, r *http.Request) {
		var body directRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		eta := 0.25
		json.NewEncoder(w).Encode(directResponse{Data: []any{"hello " + fmt.Sprint(body.Data[0])}, AverageDuration: &eta})
	})
	mux.HandleFunc("/heartbeat/", func(w http.ResponseWriter, r *http.Request) {})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := testSession(t, srv, "")
	handle, err := s.Submit(context.Background(), "predict", []any{"world"}, nil, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var statuses []Stage
	var data []any
	done := make(chan struct{})
	handle.On(EventData, func(ev Event) {
		mu.Lock()
		data = append(data, ev.Data.Data)
		mu.Unlock()
	})
	handle.On(EventStatus, func(ev Event) {
		mu.Lock()
		statuses = append(statuses, ev.Status.Stage)
		if ev.Status.Stage.Terminal() {
			close(done)
		}
		mu.Unlock()
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for terminal status")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, StageComplete, statuses[len(statuses)-1])
	require.Len(t, data, 1)
}

// TestSubmitUploadsBinaryArgViaParamSchema exercises C2 end-to-end through
// the public Submit path: the server's view_api description carries the
// binary-parameter schema, Submit threads it from resolveEndpoint into the
// payload preparer, and a Blob positional argument is uploaded through
// Config.UploadFunc before the request ever reaches the server.
func TestSubmitUploadsBinaryArgViaParamSchema(t *testing.T) {
	var gotData []any
	mux := http.NewServeMux()
	mux.HandleFunc("/heartbeat/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/run/predict", func(w http.ResponseWriter, r *http.Request) {
		var body directRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotData = body.Data
		json.NewEncoder(w).Encode(directResponse{Data: []any{"ok"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var uploadedName string
	s := NewSession(Config{
		HTTPClient: srv.Client(),
		FetchConfigFunc: func(ctx context.Context, appReference string) (ServerConfig, API, error) {
			return ServerConfig{Root: srv.URL}, API{
				NamedEndpoints: map[string]APIInfo{
					"predict": {
						FnIndex:      0,
						EndpointPath: "/predict",
						ParamSchema:  []ParamSchema{{Binary: true}, {}},
					},
				},
			}, nil
		},
		UploadFunc: func(ctx context.Context, rootURL string, blob io.Reader, filename string) (any, error) {
			uploadedName = filename
			return map[string]string{"path": "/uploaded/" + filename}, nil
		},
	})
	t.Cleanup(s.Close)
	require.NoError(t, s.Create(context.Background(), "anything"))

	blob := Blob{Reader: strings.NewReader("binary-content"), Filename: "photo.png"}
	handle, err := s.Submit(context.Background(), "predict", []any{blob, "caption"}, nil, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	handle.On(EventStatus, func(ev Event) {
		if ev.Status.Stage.Terminal() {
			close(done)
		}
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for terminal status")
	}

	require.Equal(t, "photo.png", uploadedName)
	require.Equal(t, map[string]any{"path": "/uploaded/photo.png"}, gotData[0])
	require.Equal(t, "caption", gotData[1])
}

func TestSubmitSSEMuxTransport(t *testing.T) {
	var eventID = "evt-xyz"
	streamReady := make(chan struct{}, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/heartbeat/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/queue/join", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(joinResponse{EventID: eventID})
	})
	mux.HandleFunc("/queue/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		select {
		case <-streamReady:
		case <-time.After(time.Second):
		}
		fmt.Fprintf(w, "data: {\"msg\":\"process_completed\",\"event_id\":%q,\"output\":{\"data\":[\"final\"]}}\n\n", eventID)
		flusher.Flush()
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := testSession(t, srv, ProtocolSSEV3)
	handle, err := s.Submit(context.Background(), "predict", []any{"world"}, nil, nil)
	require.NoError(t, err)

	done := make(chan Stage, 1)
	var dataSeen any
	handle.On(EventData, func(ev Event) { dataSeen = ev.Data.Data })
	handle.On(EventStatus, func(ev Event) {
		if ev.Status.Stage.Terminal() {
			done <- ev.Status.Stage
		}
	})

	time.Sleep(50 * time.Millisecond)
	select {
	case streamReady <- struct{}{}:
	default:
	}

	select {
	case stage := <-done:
		require.Equal(t, StageComplete, stage)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for terminal status")
	}
	require.Equal(t, []any{"final"}, dataSeen)
}

func TestSubmitUnknownEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	defer srv.Close()

	s := testSession(t, srv, "")
	_, err := s.Submit(context.Background(), "does-not-exist", nil, nil, nil)
	require.Error(t, err)
}

func TestSubmitBeforeCreateReturnsNoAPI(t *testing.T) {
	s := NewSession(Config{})
	defer s.Close()

	_, err := s.Submit(context.Background(), "predict", nil, nil, nil)
	require.Error(t, err)
}
