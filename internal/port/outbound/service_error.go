package outbound

import "fmt"

// Service names used in ServiceError.
const (
	ServiceSpeech    = "speech"
	ServiceVertex    = "vertex"
	ServiceMediaHTTP = "media"
)

// ServiceError represents an error from an external service.
type ServiceError struct {
	Service    string `json:"service"`              // Which external service failed
	Code       string `json:"code"`                 // Error code
	Message    string `json:"message"`              // Error message
	Type       string `json:"type"`                 // Error type (auth, quota, validation, etc.)
	StatusCode int    `json:"status_code"`          // HTTP status, 0 for transport errors
	RequestID  string `json:"request_id,omitempty"` // Request ID for tracing
	Retryable  bool   `json:"retryable"`            // Whether the error is retryable
	Cause      error  `json:"-"`                    // Underlying error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s service error (%s/%s): %s", e.Service, e.Type, e.Code, e.Message)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether the error is retryable.
func (e *ServiceError) IsRetryable() bool {
	return e.Retryable
}

// IsAuthenticationError returns whether the error is an authentication error.
func (e *ServiceError) IsAuthenticationError() bool {
	return e.Type == "auth"
}

// IsQuotaError returns whether the error is a quota/rate limit error.
func (e *ServiceError) IsQuotaError() bool {
	return e.Type == "quota"
}
