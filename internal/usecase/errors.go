package usecase

import "fmt"

type ErrorCode string

const (
	ErrorMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrorMisconfigured    ErrorCode = "SERVER_MISCONFIGURED"
	ErrorInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrorBodyTooLarge     ErrorCode = "BODY_TOO_LARGE"
	ErrorCaptchaFailed    ErrorCode = "CAPTCHA_FAILED"
	ErrorRateCheckFailed  ErrorCode = "RATE_CHECK_FAILED"
	ErrorRateLimited      ErrorCode = "RATE_LIMITED"
	ErrorStoreWrite       ErrorCode = "STORE_WRITE_FAILED"
	ErrorInternal         ErrorCode = "INTERNAL_ERROR"
)

// Public messages returned to the submitting client.
const (
	MessageMethodNotAllowed = "Method not allowed"
	MessageInvalidBody      = "Invalid JSON body"
	MessageBodyTooLarge     = "Request body too large"
	MessageMissingFields    = "Missing required fields"
	MessageInvalidEmail     = "Invalid email"
	MessageCaptchaFailed    = "CAPTCHA verification failed"
	MessageRateCheckFailed  = "Rate check failed"
	MessageRateLimited      = "Too many requests. Please try again later."
	MessageUnknown          = "Unknown error"
)

// Error is a terminal submission failure. Code selects the response status,
// Reason is a stable log token and Message is what the client sees.
type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason, message string, err error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, Err: err}
}
