package providers

// ProviderError represents a failed attempt against one backend endpoint.
type ProviderError struct {
	// Family is the backend family that produced the error.
	Family string

	// Endpoint is the host of the endpoint attempted.
	Endpoint string

	// Code is the provider's error code or type, when one was returned.
	Code string

	// Message is the error message.
	Message string

	// StatusCode is the HTTP status code (0 when the request never
	// reached the backend).
	StatusCode int

	// Retryable indicates the failure is worth retrying elsewhere
	// (quota, throttling, server-side errors).
	Retryable bool

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(family, endpoint, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Family:     family,
		Endpoint:   endpoint,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if provErr, ok := err.(*ProviderError); ok {
		return provErr.Retryable
	}
	return false
}
