package model

// Result is the outcome of a mutating repository operation. Expected
// failure paths ("not found", backend temporarily unreachable) are
// reported here rather than as errors, so that producers can decide
// whether to retry or requeue.
type Result struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK returns a successful Result with an optional message.
func OK(message string) Result {
	return Result{Status: true, Message: message}
}

// Fail returns a failed Result carrying the reason.
func Fail(message string) Result {
	return Result{Status: false, Message: message}
}
