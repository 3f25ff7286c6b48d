package rpc

import "fmt"

// ErrorCode is the fixed wire enumeration callers branch on. The numbering
// follows the Bitcoin JSON-RPC convention so existing client tooling keeps
// working.
type ErrorCode int

const (
	ErrCodeMisc             ErrorCode = -1
	ErrCodeNotFound         ErrorCode = -5
	ErrCodeInvalidParameter ErrorCode = -8
	ErrCodeInvalidRequest   ErrorCode = -32600
	ErrCodeMethodNotFound   ErrorCode = -32601
	ErrCodeInternal         ErrorCode = -32603
	ErrCodeParse            ErrorCode = -32700
)

// Error is the structured wire error, serialized verbatim into the response
// error field.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// NewError builds a structured error with a formatted message.
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func errMethodNotFound() *Error {
	return NewError(ErrCodeMethodNotFound, "Method not found")
}

// wireError classifies an arbitrary handler error: a *Error passes through
// verbatim, anything else is surfaced as misc. Handlers never panic errors
// out of the dispatcher.
func wireError(err error) *Error {
	if rpcErr, ok := err.(*Error); ok {
		return rpcErr
	}
	return NewError(ErrCodeMisc, "%v", err)
}
