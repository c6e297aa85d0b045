package errors

// Error codes for the submission engine's error taxonomy (see Section 7).
const (
	CodeUnknownEndpoint = "UNKNOWN_ENDPOINT"
	CodeNoAPI           = "NO_API"
	CodeBrokenConnection = "BROKEN_CONNECTION"
	CodeQueueFull       = "QUEUE_FULL"
	CodeServerError     = "SERVER_ERROR"
	CodeClientException = "CLIENT_EXCEPTION"
	CodeResetFailure    = "RESET_FAILURE"
)

// Default messages mirrored by the client's synthesized status events.
const (
	MsgBrokenConnection       = "Connection errored out."
	MsgQueueFull              = "Queue is full."
	MsgUnexpectedError        = "An Unexpected Error Occurred!"
)

// NewUnknownEndpointError reports that an endpoint name or index has no
// corresponding entry in the API map or unnamed endpoint list.
func NewUnknownEndpointError(endpoint string) *ValidationError {
	return NewValidationError(CodeUnknownEndpoint, "unknown endpoint: "+endpoint).
		WithField("endpoint", endpoint)
}

// NewNoAPIError reports that submit was called before the session resolved
// its API description.
func NewNoAPIError() *BaseError {
	return NewBaseError(CodeNoAPI, "no API found for this session; call Create before submitting")
}

// NewBrokenConnectionError wraps a transport failure (unclean WS close, a
// failed /queue/data POST) as the error surfaced on the status event.
func NewBrokenConnectionError(cause error) *BaseError {
	return NewBaseError(CodeBrokenConnection, MsgBrokenConnection).WithCause(cause)
}

// NewQueueFullError reports a 503 from /queue/join.
func NewQueueFullError() *BaseError {
	return NewBaseError(CodeQueueFull, MsgQueueFull)
}

// NewServerError wraps a non-200 direct response or an unexpected_error frame.
func NewServerError(message string, cause error) *BaseError {
	if message == "" {
		message = MsgUnexpectedError
	}
	return NewBaseError(CodeServerError, message).WithCause(cause)
}

// NewClientExceptionError wraps a panic or logic error raised while
// interpreting a frame inside a submission callback.
func NewClientExceptionError(cause error) *BaseError {
	return NewBaseError(CodeClientException, MsgUnexpectedError).WithCause(cause)
}

// NewResetFailureError wraps a failed POST to /reset. Per spec this is
// warned, never surfaced to the caller.
func NewResetFailureError(cause error) *BaseError {
	return NewBaseError(CodeResetFailure, "failed to notify server of cancellation").WithCause(cause)
}
