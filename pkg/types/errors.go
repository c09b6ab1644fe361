package types

import "errors"

var (
	ErrMissingPayload = errors.New("event payload is missing")
	ErrMissingTarget  = errors.New("signal target id is missing")
	ErrMissingText    = errors.New("message text is missing")
	ErrMissingVideo   = errors.New("media status video flag is missing")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidMatch   = errors.New("match must have an id and two distinct peers")
)
