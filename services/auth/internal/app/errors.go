package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// This message is intended to be shown to end users and should not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	ErrSignupFieldsRequired = errors.New("email, password, fullName and role required")
	ErrInvalidRole          = errors.New("role must be startup or influencer")
	ErrEmailAlreadyExists   = errors.New("email already exists")

	ErrRefreshTokenRequired = errors.New("refresh token required")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")

	ErrUserNotFound = errors.New("user not found")
)
