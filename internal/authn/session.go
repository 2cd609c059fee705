package authn

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

var ErrInvalidJWT = errors.New("invalid jwt token")
var ErrInvalidClaims = errors.New("invalid claims")

const sessionIssuer = "dpc-portal"

// Claims are the contents of a portal session cookie.
type Claims struct {
	jwt.StandardClaims
	Email         string `json:"email"`
	ImplementerID string `json:"implementer_id"`
}

// UserID returns the subject of the session as a uuid.
func (c Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// SessionIssuer signs and verifies HS256 session tokens.
type SessionIssuer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{Secret: []byte(secret), TTL: ttl, Now: time.Now}
}

// Issue returns a signed session token for the user.
func (s *SessionIssuer) Issue(userID uuid.UUID, email, implementerID string) (string, error) {
	now := s.Now()
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   userID.String(),
			Issuer:    sessionIssuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.TTL).Unix(),
		},
		Email:         email,
		ImplementerID: implementerID,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Parse verifies the signature and expiry of a session token.
func (s *SessionIssuer) Parse(token string) (Claims, error) {
	claims := Claims{}
	t, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.Secret, nil
	})
	if err != nil || !t.Valid {
		return Claims{}, ErrInvalidJWT
	}

	if claims.Issuer != sessionIssuer || claims.Subject == "" {
		return Claims{}, ErrInvalidClaims
	}
	return claims, nil
}
