// Package errors provides the error taxonomy used by the submission engine.
//
// # Error Types
//
//   - BaseError: foundation for all custom errors with severity, timestamps, and metadata
//   - StateError: for invalid submission state transitions
//   - ValidationError: for field-level validation failures (unknown endpoint, bad args)
//   - ConflictError: for resource conflicts
//
// # Submission error taxonomy
//
// submission_errors.go maps the kinds described in the engine's error handling
// design onto these types: UnknownEndpoint and NoApi surface synchronously
// from submit; BrokenConnection, QueueFull, ServerError, and ClientException
// surface as an error status event; ResetFailure is logged and never surfaced.
//
// # Basic usage
//
//	err := errors.NewUnknownEndpointError("/predict")
//	if errors.Is(err, someSentinel) { ... }
//
//	collector := errors.NewErrorCollector()
//	for _, item := range items {
//	    if err := process(item); err != nil {
//	        collector.AddWithContext(err, fmt.Sprintf("processing %s", item.ID))
//	    }
//	}
//	if collector.HasErrors() {
//	    return collector.Error()
//	}
package errors
