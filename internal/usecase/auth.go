package usecase

import (
	"strings"

	pkgAuth "github.com/polkiloo/loyaltyledger/internal/pkg/auth"
)

// AuthUseCase resolves bearer tokens minted by the auth collaborator.
type AuthUseCase struct {
	tokens pkgAuth.Strategy
}

// NewAuthUseCase constructs AuthUseCase.
func NewAuthUseCase(strategy pkgAuth.Strategy) *AuthUseCase {
	return &AuthUseCase{tokens: strategy}
}

// ParseToken extracts the caller principal from provided token.
func (u *AuthUseCase) ParseToken(token string) (pkgAuth.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return pkgAuth.Principal{}, pkgAuth.ErrInvalidToken
	}
	return u.tokens.ParseToken(token)
}

// IssueToken signs a token for the principal. Used by operational tooling and tests.
func (u *AuthUseCase) IssueToken(p pkgAuth.Principal) (string, error) {
	return u.tokens.IssueToken(p)
}
