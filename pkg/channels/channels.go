// Package channels has small generic helpers for delivering values over Go
// channels without letting a slow or closed receiver stall the sender.
package channels

import "errors"

var (
	// ErrChannelClosed is returned when the receiving channel was closed.
	ErrChannelClosed = errors.New("channel closed")
	// ErrChannelFull is returned by TrySend when no buffer space is free.
	ErrChannelFull = errors.New("channel full")
	// ErrChannelTimeout is returned by SendWithin when the wait expires.
	ErrChannelTimeout = errors.New("send timeout")
	ErrNilChannel     = errors.New("channel cannot be nil")
	// ErrBroadcasterClosed is returned by Publish after Close.
	ErrBroadcasterClosed = errors.New("broadcaster closed")
)
