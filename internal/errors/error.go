package errors

import "github.com/pkg/errors"

var (
	// connection errors
	ErrConnectionTimeout    = errors.New("connection timeout")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotConnected         = errors.New("mailbox not connected")
	ErrAccountExists        = errors.New("account already registered")
	ErrAccountNotFound      = errors.New("account not found")

	// classification provider errors
	ErrProviderDisabled      = errors.New("provider disabled")
	ErrProviderRateLimited   = errors.New("provider rate limited")
	ErrProviderQuotaExceeded = errors.New("provider quota exceeded")
	ErrProviderUnparseable   = errors.New("provider response unparseable")

	// store errors
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")

	// search index errors
	ErrSearchUnavailable = errors.New("search index unavailable")
)
