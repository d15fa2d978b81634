package json

// M is shorthand for a map[string]any. It is provided as a convenience for
// defining JSON objects in a more concise manner.
type M map[string]any

// Error represents a JSON wrapped error. Returning it as response data
// produces {"error": "your error message"} inside the envelope.
type Error string

// A FieldError can be used as response data to indicate that a request
// body failed validation. A single FieldError or a slice of them renders
// as { "error": "Validation error", "fields": [ { "field1": "message" },
// { "field2": "message" } ] } inside the envelope.
type FieldError struct {
	Field string
	Error string
}
