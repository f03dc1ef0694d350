package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/haatbazaar/marketplace-backend/pkg/enums"
)

// AccessTokenPayload is what a caller supplies when minting. An empty JTI
// gets a random one.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.ActorRole
	JTI    string
}

// AccessTokenClaims is the body of a bearer token. Subject repeats UserID.
type AccessTokenClaims struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) check() error {
	switch {
	case c.UserID == uuid.Nil:
		return errMissingUser
	case c.Subject != "" && c.Subject != c.UserID.String():
		return errSubjectMismatch
	case !c.Role.IsValid():
		return errUnknownRole
	}
	return nil
}
