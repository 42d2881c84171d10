package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUnknownVenue   = errors.New("unknown venue")
	ErrNoSymbols      = errors.New("no symbols configured")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrContextDone    = errors.New("context cancelled")
	ErrMalformedEvent = errors.New("malformed event")
)
