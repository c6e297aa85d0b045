// Package client implements the submission engine: the component that
// negotiates a transport, joins the server's queue, folds incremental
// output, and emits a typed event stream for one call against a logical
// endpoint on a prediction-hosting server.
package client

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Stage is the lifecycle stage carried on a status event. Only Complete and
// Error are valid terminal stages; the zero value is intentionally not a
// valid Stage so a terminal status can never be emitted uninitialized.
type Stage string

const (
	StagePending    Stage = "pending"
	StageGenerating Stage = "generating"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// Transport identifies which wire protocol a submission is using.
type Transport string

const (
	TransportDirect     Transport = "direct"
	TransportWS         Transport = "ws"
	TransportSSELegacy  Transport = "sse-legacy"
	TransportSSEMux     Transport = "sse-mux"
)

// Protocol is the protocol tag resolved from server configuration.
type Protocol string

const (
	ProtocolWS      Protocol = "ws"
	ProtocolSSE     Protocol = "sse"
	ProtocolSSEV1   Protocol = "sse_v1"
	ProtocolSSEV2   Protocol = "sse_v2"
	ProtocolSSEV2_1 Protocol = "sse_v2.1"
	ProtocolSSEV3   Protocol = "sse_v3"
)

func (p Protocol) muxed() bool {
	switch p {
	case ProtocolSSEV1, ProtocolSSEV2, ProtocolSSEV2_1, ProtocolSSEV3:
		return true
	default:
		return false
	}
}

// diffCapable reports whether a protocol revision folds incremental output
// against a running snapshot (C4) instead of replacing it wholesale.
func (p Protocol) diffCapable() bool {
	switch p {
	case ProtocolSSEV2, ProtocolSSEV2_1, ProtocolSSEV3:
		return true
	default:
		return false
	}
}

// closesOnCallbackError reports whether an exception raised while
// interpreting a frame closes the shared multiplex stream (v2/v2.1) or
// leaves it open until the server's own close_stream signal (v3).
func (p Protocol) closesOnCallbackError() bool {
	return p == ProtocolSSEV2 || p == ProtocolSSEV2_1
}

// EventType tags an emitted caller-facing event.
type EventType string

const (
	EventStatus EventType = "status"
	EventData   EventType = "data"
	EventLog    EventType = "log"
)

// StatusEvent is emitted on EventStatus.
type StatusEvent struct {
	Stage    Stage
	Queue    bool
	Time     time.Time
	FnIndex  int
	Endpoint string
	ETA      *float64
	Message  string
	Broken   bool
	Progress *ProgressData
	Err      error // typed cause, see pkg/errors; nil on non-error stages
}

// ProgressData mirrors the server's progress_data payload.
type ProgressData struct {
	Index  *int
	Length *int
	Unit   string
	Desc   string
}

// DataEvent is emitted on EventData.
type DataEvent struct {
	Data      any
	Time      time.Time
	FnIndex   int
	Endpoint  string
	EventData any
	TriggerID *int
}

// LogEvent is emitted on EventLog.
type LogEvent struct {
	Level    string
	Log      string
	FnIndex  int
	Endpoint string
}

// Event is the sum type delivered to listeners. Exactly one of Status/Data/Log
// is non-nil, matching the Type field.
type Event struct {
	Type   EventType
	Status *StatusEvent
	Data   *DataEvent
	Log    *LogEvent
}

// Listener receives events fired for a single submission.
type Listener func(Event)

// FrameKind classifies one server frame (C3). See interpret() for the
// dispatch rules that assign these.
type FrameKind string

const (
	FrameUpdate          FrameKind = "update"
	FrameHash            FrameKind = "hash"
	FrameData            FrameKind = "data"
	FrameComplete        FrameKind = "complete"
	FrameLog             FrameKind = "log"
	FrameGenerating      FrameKind = "generating"
	FrameHeartbeat       FrameKind = "heartbeat"
	FrameUnexpectedError FrameKind = "unexpected_error"
	FrameCloseStream     FrameKind = "close_stream"
)

// Frame is the decoded superset of a server-sent frame, §6.
type Frame struct {
	Msg          string
	Stage        string
	Code         *int
	QueueSize    *int
	Rank         *int
	Success      *bool
	EventID      string
	Output       *FrameOutput
	Log          string
	Level        string
	ProgressData *ProgressData
}

// FrameOutput is the frame's output sub-object.
type FrameOutput struct {
	Data            any
	Error           string
	AverageDuration *float64
}

// Dependency is the per-fn_index descriptor, §3.
type Dependency struct {
	SkipQueue    bool
	ZeroGPU      bool
	VersionQuirk string
}

// APIInfo is the resolved description of one endpoint, including the
// positional parameter schema returned by the server's view_api call. The
// schema is what lets the payload preparer (C2) decide which positional
// arguments need uploading before submission, rather than guessing from
// the argument value alone.
type APIInfo struct {
	FnIndex      int
	EndpointPath string // "/name" form, or "/predict" for unnamed
	ParamSchema  []ParamSchema
}

// API is the process-wide endpoint description resolved by Create (§4.7).
type API struct {
	NamedEndpoints   map[string]APIInfo
	UnnamedEndpoints map[int]APIInfo
}

// ServerConfig is the configuration consumed from the server, §6.
type ServerConfig struct {
	Root          string
	Path          string
	Protocol      Protocol
	Version       string
	Dependencies  []Dependency
	SpaceID       string
	AuthRequired  bool
}

// Config holds everything the submission engine needs that is not resolved
// from the server itself. Endpoint discovery, authentication, binary upload,
// and the zerogpu cross-origin handshake are external collaborators (§1):
// they are injected here as function fields rather than implemented inline.
type Config struct {
	HTTPClient *http.Client
	Logger     FieldLogger

	// FetchConfigFunc resolves an app reference to a ServerConfig plus the
	// api description returned by the server's view_api call. Required.
	FetchConfigFunc func(ctx context.Context, appReference string) (ServerConfig, API, error)

	// UploadFunc is the Upload collaborator used by the payload preparer
	// (C2) for binary arguments. May be nil if no endpoint ever takes a
	// binary argument.
	UploadFunc func(ctx context.Context, rootURL string, blob io.Reader, filename string) (any, error)

	// TokenFunc returns an auth token (already minted) to attach to
	// requests, or "" if none applies. Authentication token exchange
	// itself is out of scope for this engine.
	TokenFunc func(ctx context.Context) (string, error)

	// ZeroGPUHandshakeFunc returns extra headers to attach to a /queue/join
	// POST when dependency.ZeroGPU is set and config.SpaceID is non-empty.
	// Returns nil headers when no handshake is needed or possible.
	ZeroGPUHandshakeFunc func(ctx context.Context, spaceID string) (http.Header, error)

	// StreamFactory opens the raw byte stream behind an SSE-family GET.
	// Defaulting to a plain http.Client.Do-based implementation; overridable
	// so tests (and any embedding runtime) have exactly one construction
	// site for the underlying connection.
	StreamFactory func(ctx context.Context, url string, header http.Header) (io.ReadCloser, error)

	// Dialer opens the dedicated WebSocket used by protocol = "ws".
	Dialer WebSocketDialer
}

// FieldLogger is the subset of logrus.FieldLogger this package depends on,
// so callers can supply any compatible structured logger.
type FieldLogger interface {
	WithField(key string, value any) FieldLoggerEntry
	WithFields(fields map[string]any) FieldLoggerEntry
}

// FieldLoggerEntry is the chained logging call surface used at transport
// boundaries.
type FieldLoggerEntry interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
}

// WebSocketConn is the minimal surface the engine needs from a WS connection,
// satisfied by *websocket.Conn from gorilla/websocket.
type WebSocketConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// WebSocketDialer opens a WebSocketConn, satisfied by gorilla/websocket.Dialer.
type WebSocketDialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (WebSocketConn, error)
}
