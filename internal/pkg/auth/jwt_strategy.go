package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type tokenClaims struct {
	Role    Role   `json:"role"`
	StoreID string `json:"store_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTStrategy issues and verifies HS256 bearer tokens.
type JWTStrategy struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTStrategy builds JWTStrategy with provided secret and options.
func NewJWTStrategy(secret string, opts Options) *JWTStrategy {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &JWTStrategy{secret: []byte(secret), ttl: ttl, now: now}
}

// IssueToken signs a token for the principal.
func (s *JWTStrategy) IssueToken(p Principal) (string, error) {
	if err := checkPrincipal(p); err != nil {
		return "", err
	}
	issuedAt := s.now()
	claims := tokenClaims{
		Role:    p.Role,
		StoreID: p.StoreID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates the token and returns its principal.
func (s *JWTStrategy) ParseToken(token string) (Principal, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	p := Principal{Subject: claims.Subject, Role: claims.Role, StoreID: claims.StoreID}
	if err := checkPrincipal(p); err != nil {
		return Principal{}, err
	}
	return p, nil
}

func (s *JWTStrategy) Name() string {
	return "jwt"
}

func checkPrincipal(p Principal) error {
	switch {
	case p.Subject == "":
		return fmt.Errorf("%w: missing subject", ErrInvalidToken)
	case !p.Role.Valid():
		return fmt.Errorf("%w: unknown role %q", ErrInvalidToken, p.Role)
	case p.Role == RoleOperator && p.StoreID == "":
		return fmt.Errorf("%w: operator without store", ErrInvalidToken)
	}
	return nil
}
