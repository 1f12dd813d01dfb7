package errs

// Error codes grouped by subsystem. Codes are part of the client contract;
// never renumber.
const (
	ServerInternalError = 500

	CodeStoreFailed    = 1001
	CodeMalformedEvent = 1002

	CodeTokenInvalid = 2001
	CodeTokenExpired = 2002
	CodeBadRequest   = 2003
)

var (
	// ErrStore: message persistence failed. The relay aborts, only the
	// sender is notified, nothing is broadcast.
	ErrStore = NewCodeError(CodeStoreFailed, "message store failed")

	// ErrMalformedEvent: unparseable frame or missing fields. Dropped and
	// logged; never terminates the connection.
	ErrMalformedEvent = NewCodeError(CodeMalformedEvent, "malformed event")

	ErrTokenInvalid = NewCodeError(CodeTokenInvalid, "token invalid")
	ErrTokenExpired = NewCodeError(CodeTokenExpired, "token expired")
	ErrBadRequest   = NewCodeError(CodeBadRequest, "bad request")
)
