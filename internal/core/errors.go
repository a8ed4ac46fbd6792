package core

// Error codes for protocol errors sent to the offending connection.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeIdentityMismatch   = "identity_mismatch"
	ErrCodeNotOnline          = "not_online"
	ErrCodeForbiddenRoom      = "forbidden_room"
	ErrCodeNotInRoom          = "not_in_room"
	ErrCodeRoomMismatch       = "room_mismatch"
	ErrCodeInvalidEnvelope    = "invalid_envelope"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeHistoryUnavailable = "history_unavailable"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
