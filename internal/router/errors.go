package router

import "errors"

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrSenderNotPaired   = errors.New("sender has no partner")
	ErrUnknownConnection = errors.New("unknown connection")
)
