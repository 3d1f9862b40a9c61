package model

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
// Retryable marks failures (upstream outages) the client should resolve by
// re-requesting, mirroring the dashboard's full-reload retry screen.
type ErrorDetail struct {
	Code      int                    `json:"code"`
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}
