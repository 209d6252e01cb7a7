package apperrors

import (
	"errors"
	"net/http"
)

// Kind of expected failure. Anything that is not an *Error is a fault and reported as KindInternal
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindConflict
	KindNotFound
	KindUnauthorized
	KindTooManyRequests
)

// HTTP status code the kind is rendered with
func (k Kind) StatusCode() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Expected domain failure
// Message is safe to show to the client
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrInvalidInput     = New(KindInvalidInput, "All fields are required")
	ErrAvatarRequired   = New(KindInvalidInput, "Avatar image is required")
	ErrCoverRequired    = New(KindInvalidInput, "Cover image file is missing")
	ErrUsernameRequired = New(KindInvalidInput, "Username is missing")
	ErrInvalidPassword  = New(KindInvalidInput, "Invalid old password")
	ErrSelfSubscription = New(KindInvalidInput, "Cannot subscribe to own channel")

	ErrUserAlreadyExists  = New(KindConflict, "User with this email or username already exists")
	ErrUserNotFound       = New(KindNotFound, "User does not exist")
	ErrChannelNotFound    = New(KindNotFound, "Channel does not exist")
	ErrVideoNotFound      = New(KindNotFound, "Video does not exist")
	ErrInvalidCredentials = New(KindUnauthorized, "Invalid user credentials")
	ErrUnauthorized       = New(KindUnauthorized, "Unauthorized")
	ErrTooManyRequests    = New(KindTooManyRequests, "Too many requests, try again later")

	ErrRefreshTokenRequired = New(KindUnauthorized, "Refresh token is required")
	ErrRefreshTokenInvalid  = New(KindUnauthorized, "Invalid refresh token")
	ErrRefreshTokenExpired  = New(KindUnauthorized, "Refresh token is expired or used")

	// Session state errors. Never rendered directly: the refresh protocol folds them into ErrRefreshTokenExpired
	ErrRefreshTokenNotFound = New(KindUnauthorized, "refresh token not found")
	ErrRefreshTokenMismatch = New(KindUnauthorized, "refresh token mismatch")

	ErrTokenIssuance = New(KindInternal, "Something went wrong while generating tokens")
	ErrMediaUpload   = New(KindInternal, "Failed to upload media")
)

// KindOf returns the kind of the first *Error in err chain or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
