// errors.go

package authtoken

import (
	"errors"
	"fmt"
	"strings"
)

// Machine-readable error codes carried by TokenError values. Callers that
// need programmatic handling should match on these rather than on messages.
const (
	CodeTokenNotValid     = "token_not_valid"
	CodeTokenExpired      = "token_expired"
	CodeTokenNoExpiry     = "token_no_exp"
	CodeTokenNoID         = "token_no_jti"
	CodeTokenWrongType    = "token_wrong_type"
	CodeTokenBlacklisted  = "token_blacklisted"
	CodeFamilyBlacklisted = "token_family_blacklisted"
	CodeFamilyExpired     = "token_family_expired"
	CodeNoFamily          = "token_no_family"
	CodeRefreshExpired    = "refresh_exp_expired"
)

// TokenError is the structured failure raised by token verification and
// lifecycle operations. Two TokenErrors match under errors.Is when their
// codes are equal, so sentinel values below can be used as targets even for
// errors constructed with extra message context.
type TokenError struct {
	Code    string
	Message string
}

func (e *TokenError) Error() string { return e.Message }

func (e *TokenError) Is(target error) bool {
	t, ok := target.(*TokenError)
	return ok && t.Code == e.Code
}

// Token lifecycle failures. Signature-layer failures deliberately collapse
// into ErrDecodeFailed so callers cannot learn which cryptographic check
// rejected the token; claim-content failures carry their own codes since
// they reveal nothing secret-dependent.
var (
	ErrDecodeFailed      = &TokenError{Code: CodeTokenNotValid, Message: "token is invalid or expired"}
	ErrTokenExpired      = &TokenError{Code: CodeTokenExpired, Message: "token is expired"}
	ErrTokenNoExpiry     = &TokenError{Code: CodeTokenNoExpiry, Message: "token has no expiration claim"}
	ErrTokenNoID         = &TokenError{Code: CodeTokenNoID, Message: "token has no id claim"}
	ErrTokenWrongType    = &TokenError{Code: CodeTokenWrongType, Message: "token has wrong type"}
	ErrTokenBlacklisted  = &TokenError{Code: CodeTokenBlacklisted, Message: "token is blacklisted"}
	ErrFamilyBlacklisted = &TokenError{Code: CodeFamilyBlacklisted, Message: "token family is blacklisted"}
	ErrFamilyExpired     = &TokenError{Code: CodeFamilyExpired, Message: "token family has expired"}
	ErrNoFamily          = &TokenError{Code: CodeNoFamily, Message: "token carries no family claim"}
	ErrRefreshExpired    = &TokenError{Code: CodeRefreshExpired, Message: "refresh_exp claim has expired"}
)

// Authentication failures raised by the gate and the credential flows.
// Credential-obtain flows surface only ErrNoActiveAccount to callers to
// avoid user enumeration; token-based flows may surface the specific cause.
var (
	ErrNoActiveAccount = errors.New("no active account found with the given credentials")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserInactive    = errors.New("user is inactive")
	ErrSecretChanged   = errors.New("user secret has changed since token was issued")
	ErrMalformedHeader = errors.New("authorization header must contain two space-delimited values")
	ErrNoUserIDClaim   = errors.New("token contained no recognizable user identification")
)

// Malformed-input failures caught at the flow boundary, before any token
// logic runs.
var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrMissingToken       = errors.New("token string cannot be empty")
)

// VariantFailure records why one configured token variant rejected a raw
// token string during authentication.
type VariantFailure struct {
	Variant string
	TypeTag string
	Message string
}

// InvalidTokenError aggregates the rejection of every configured variant.
// Individual messages never reveal which cryptographic check failed, but
// the per-variant list is useful when debugging multi-type deployments.
type InvalidTokenError struct {
	Failures []VariantFailure
}

func (e *InvalidTokenError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s (%s): %s", f.Variant, f.TypeTag, f.Message))
	}
	return "token not valid for any configured variant: " + strings.Join(parts, "; ")
}

func (e *InvalidTokenError) Is(target error) bool {
	t, ok := target.(*TokenError)
	return ok && t.Code == CodeTokenNotValid
}
