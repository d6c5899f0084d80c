package core

// Error codes for domain errors, grouped by family. The wire layer maps
// auth codes to the auth_error event and everything else to error.
const (
	// Auth failures.
	ErrCodeUnauthenticated      = "unauthenticated"
	ErrCodeInvalidCredential    = "invalid_credential"
	ErrCodeInactiveAccount      = "inactive_account"
	ErrCodeAlreadyAuthenticated = "already_authenticated"

	// Join failures.
	ErrCodeSessionNotFound    = "session_not_found"
	ErrCodeNotAParticipant    = "not_a_participant"
	ErrCodeSessionUnavailable = "session_unavailable"

	// Routing failures.
	ErrCodeNotInRoom        = "not_in_room"
	ErrCodeMalformedPayload = "malformed_payload"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeBadRequest       = "bad_request"

	// External collaborator failures.
	ErrCodePersistence   = "persistence_failed"
	ErrCodeVoiceDisabled = "voice_disabled"
)

// Error wraps a code and human-readable message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds a coded domain error.
func NewError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// IsAuthCode reports whether code belongs to the auth failure family.
func IsAuthCode(code string) bool {
	switch code {
	case ErrCodeUnauthenticated, ErrCodeInvalidCredential,
		ErrCodeInactiveAccount, ErrCodeAlreadyAuthenticated:
		return true
	}
	return false
}
