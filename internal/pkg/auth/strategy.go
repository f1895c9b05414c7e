package auth

import (
	"time"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
)

// ErrInvalidToken is returned for malformed, forged or expired tokens.
var ErrInvalidToken = domainErrors.ErrInvalidToken

// Role is the caller class carried by a token.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
	RoleService  Role = "service"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleOperator, RoleService:
		return true
	}
	return false
}

// Principal is the authenticated caller. Operators are bound to one store.
type Principal struct {
	Subject string
	Role    Role
	StoreID string
}

type Strategy interface {
	IssueToken(p Principal) (string, error)
	ParseToken(token string) (Principal, error)
	Name() string
}

type Options struct {
	TTL time.Duration
	Now func() time.Time
}
