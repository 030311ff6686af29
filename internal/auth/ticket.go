// Package auth issues and verifies the signed room tickets handed out by
// the entry endpoint and presented on websocket join.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kotobachat/kotoba/internal/common"
)

const ticketSubject = "room-entry"

type ticketClaims struct {
	jwt.RegisteredClaims
}

// IssueTicket signs a room entry ticket valid for ttl.
func IssueTicket(secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ticketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ticketSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}

// VerifyTicket checks the signature, expiry, and subject of a ticket.
// Anything invalid fails with common.ErrUnauthorized.
func VerifyTicket(ticket string, secret []byte) error {
	claims := &ticketClaims{}
	token, err := jwt.ParseWithClaims(ticket, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject != ticketSubject {
		return common.ErrUnauthorized
	}
	return nil
}
