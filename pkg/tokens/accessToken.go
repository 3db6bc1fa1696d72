package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const RoleAdmin = "admin"

var ErrInvalidToken = errors.New("invalid access token")

// AccessClaims carries the user id in Subject. Tokens are issued by the auth
// service; this package only reads them.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

func AccessClaimsFromToken(tokenStr string, accessSecret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return accessSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !tkn.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// NewAccessToken signs an HS256 token. Used by tests and local tooling.
func NewAccessToken(userID, role string, ttl time.Duration, accessSecret []byte) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(accessSecret)
}
