package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"supportdesk/internal/core/domain"
)

// MaxSeats is the number of agent seats a deployment issues credentials for.
const MaxSeats = 30

type seatClaims struct {
	Seat   int  `json:"seat"`
	Active bool `json:"active"`
	jwt.RegisteredClaims
}

// TokenService issues and validates signed seat credentials. It is the
// CredentialValidator used when no external validation endpoint is set.
type TokenService struct {
	secretKey []byte
	issuer    string
	now       func() time.Time
	log       *slog.Logger
}

func NewTokenService(log *slog.Logger, secret string) *TokenService {
	return &TokenService{
		secretKey: []byte(secret),
		issuer:    "supportdesk",
		now:       time.Now,
		log:       log,
	}
}

// GenerateSeatToken signs a credential binding seat to agentID until expiresAt.
func (s *TokenService) GenerateSeatToken(seat int, agentID string, expiresAt time.Time, active bool) (string, error) {
	if seat < 1 || seat > MaxSeats {
		return "", fmt.Errorf("seat %d out of range 1..%d", seat, MaxSeats)
	}
	if agentID == "" {
		return "", errors.New("agent id is required")
	}
	claims := seatClaims{
		Seat:   seat,
		Active: active,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agentID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// Validate parses and checks a seat credential.
func (s *TokenService) Validate(ctx context.Context, credential string) (domain.Seat, error) {
	if strings.TrimSpace(credential) == "" {
		return domain.Seat{}, domain.ErrUnknownCredential
	}
	var claims seatClaims
	_, err := jwt.ParseWithClaims(credential, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		s.log.WarnContext(ctx, "token - validate - credential expired", "agent_id", claims.Subject, "seat", claims.Seat)
		return domain.Seat{}, domain.ErrExpiredCredential
	case err != nil:
		s.log.WarnContext(ctx, "token - validate - credential rejected", "err", err)
		return domain.Seat{}, fmt.Errorf("%w: %v", domain.ErrUnknownCredential, err)
	case !claims.Active:
		s.log.WarnContext(ctx, "token - validate - credential not active", "agent_id", claims.Subject, "seat", claims.Seat)
		return domain.Seat{}, domain.ErrInactiveCredential
	case claims.Subject == "" || claims.Seat < 1 || claims.Seat > MaxSeats:
		return domain.Seat{}, fmt.Errorf("%w: malformed seat claims", domain.ErrUnknownCredential)
	}
	return domain.Seat{SeatID: claims.Seat, AgentID: domain.AgentIdentity(claims.Subject)}, nil
}

// EndOfDay is the default credential expiry: the last millisecond of now's day.
func EndOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), now.Location())
}
