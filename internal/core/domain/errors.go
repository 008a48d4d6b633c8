package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRoomID        = errors.New("invalid room id")
	ErrRoomClosed           = errors.New("room closed")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrUnsupportedFrame     = errors.New("unsupported frame type")
	ErrUnknownCredential    = errors.New("agent credential not found")
	ErrInactiveCredential   = errors.New("agent credential not active")
	ErrExpiredCredential    = errors.New("agent credential expired")
	ErrValidatorUnavailable = errors.New("credential validator unavailable")
	ErrPersistence          = errors.New("message persistence failed")
	ErrStaleRecipient       = errors.New("recipient has no live connection")
	ErrSendBufferFull       = errors.New("client send buffer full")
	ErrClientClosed         = errors.New("client closed")
)

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, reason)
}

// IsCredentialRejection reports whether err is one of the credential
// rejection reasons (as opposed to a validator outage).
func IsCredentialRejection(err error) bool {
	return errors.Is(err, ErrUnknownCredential) ||
		errors.Is(err, ErrInactiveCredential) ||
		errors.Is(err, ErrExpiredCredential)
}
