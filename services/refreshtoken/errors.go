package refreshtoken

import "errors"

// Rotation rejections. Each maps to a stable reason code for audit logs;
// callers normally collapse all of them into one generic unauthorized reply.
var (
	ErrInvalidToken     = errors.New("invalid refresh token")
	ErrTokenRevoked     = errors.New("refresh token revoked")
	ErrReuseDetected    = errors.New("refresh token reuse detected")
	ErrTokenExpired     = errors.New("refresh token expired")
	ErrMetadataMismatch = errors.New("refresh token client metadata mismatch")
)

// Store level errors.
var (
	ErrRecordNotFound = errors.New("refresh token record not found")
	// ErrConcurrentUse is returned when a conditional mark-used loses to
	// another writer: the record was already used, revoked or removed.
	ErrConcurrentUse = errors.New("refresh token already consumed")
	// ErrTokenCollision means a freshly generated token value already exists.
	// With 256 bits of entropy this indicates a broken random source.
	ErrTokenCollision = errors.New("refresh token value collision")
)

const (
	ReasonInvalidToken     = "invalid_token"
	ReasonTokenRevoked     = "token_revoked"
	ReasonReuseDetected    = "reuse_detected"
	ReasonTokenExpired     = "token_expired"
	ReasonMetadataMismatch = "metadata_mismatch"
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrReuseDetected, ReasonReuseDetected},
	{ErrTokenRevoked, ReasonTokenRevoked},
	{ErrTokenExpired, ReasonTokenExpired},
	{ErrMetadataMismatch, ReasonMetadataMismatch},
	{ErrInvalidToken, ReasonInvalidToken},
}

// Reason returns the reason code for a rotation rejection, or "" for
// infrastructure errors.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ""
}

// IsRejection reports whether err is one of the five terminal rejections.
func IsRejection(err error) bool {
	return Reason(err) != ""
}
