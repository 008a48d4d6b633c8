package contracts

import (
	"context"
	"supportdesk/internal/core/domain"
)

// CredentialValidator exchanges a seat credential for a stable agent identity.
// Any error means the connection must not be admitted; rejections wrap
// domain.ErrUnknownCredential, ErrInactiveCredential or ErrExpiredCredential.
type CredentialValidator interface {
	Validate(ctx context.Context, credential string) (domain.Seat, error)
}
