// Package auth extracts the local user's identity from the access token.
// The engine never verifies the token signature; that is the server's job.
// Identity is only used to tag IsSelf and to suppress self broadcasts.
package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"convsync/errors"
)

// IdentityClaims is the subset of the platform JWT the engine cares about.
type IdentityClaims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

type Identity struct {
	UserID      string
	DisplayName string
	Email       string
	Role        string
}

// IdentityFromToken parses the unverified claims of an access token.
func IdentityFromToken(tokenString string) (Identity, error) {
	claims := &IdentityClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return Identity{}, err
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return Identity{}, errors.ErrMissingUserClaim
	}

	return Identity{
		UserID:      userID,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Role:        claims.Role,
	}, nil
}

// IsSelf reports whether the given user id belongs to the local user.
func (i Identity) IsSelf(userID string) bool {
	return userID != "" && userID == i.UserID
}
