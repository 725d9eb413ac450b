// Package api defines the messages exchanged with the Split-it services.
//
// Messages are plain Go structs encoded as JSON. Money and percentages
// travel as decimal strings ("12.50") so no precision is lost.
package api

// Result is the outcome of a command. Exactly one of Value and Message
// is meaningful: Value when Success is true, Message otherwise.
//
// Expected failures (validation, permissions, missing records) are
// reported as a Result with Success=false. Only missing identity and
// system faults are returned as Connect errors.
type Result[T any] struct {
	Success bool   `json:"success"`
	Value   *T     `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK wraps v in a successful Result.
func OK[T any](v T) *Result[T] {
	return &Result[T]{Success: true, Value: &v}
}

// Fail builds a failed Result carrying a human-readable message.
func Fail[T any](message string) *Result[T] {
	return &Result[T]{Message: message}
}

// Empty is the value of commands that return nothing on success.
type Empty struct{}
