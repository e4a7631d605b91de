package models

// APIErrorResponse is the JSON body of every non-2xx response.
type APIErrorResponse struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"` // e.g. missing_host
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
}
