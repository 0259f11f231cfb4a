package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateIdentity = errors.New("identity already exists")
	ErrAuthFailure       = errors.New("invalid email or password")
	ErrTokenInvalid      = errors.New("token is invalid or expired")
	ErrDeliveryFailure   = errors.New("email delivery failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRateLimited       = errors.New("rate limited")
)
