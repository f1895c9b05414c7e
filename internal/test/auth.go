package test

import (
	pkgAuth "github.com/polkiloo/loyaltyledger/internal/pkg/auth"
)

// StrategyStub issues and parses tokens via function overrides.
type StrategyStub struct {
	IssueFn func(pkgAuth.Principal) (string, error)
	ParseFn func(string) (pkgAuth.Principal, error)
	NameVal string
}

// IssueToken returns deterministic tokens for tests.
func (s StrategyStub) IssueToken(p pkgAuth.Principal) (string, error) {
	if s.IssueFn != nil {
		return s.IssueFn(p)
	}
	return "token:" + p.Subject, nil
}

// ParseToken parses previously issued token strings.
func (s StrategyStub) ParseToken(token string) (pkgAuth.Principal, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	return Customer("customer-1"), nil
}

// Name returns the strategy identifier used in tests.
func (s StrategyStub) Name() string {
	if s.NameVal != "" {
		return s.NameVal
	}
	return "stub"
}

// TokenParserStub implements middleware token parsing contract. Tokens map to principals;
// unknown tokens fail with ErrInvalidToken.
type TokenParserStub struct {
	Principals map[string]pkgAuth.Principal
	Err        error
}

// ParseToken returns the principal registered for token.
func (s TokenParserStub) ParseToken(token string) (pkgAuth.Principal, error) {
	if s.Err != nil {
		return pkgAuth.Principal{}, s.Err
	}
	p, ok := s.Principals[token]
	if !ok {
		return pkgAuth.Principal{}, pkgAuth.ErrInvalidToken
	}
	return p, nil
}

// Customer builds a customer principal.
func Customer(id string) pkgAuth.Principal {
	return pkgAuth.Principal{Subject: id, Role: pkgAuth.RoleCustomer}
}

// Operator builds an operator principal bound to store.
func Operator(id, store string) pkgAuth.Principal {
	return pkgAuth.Principal{Subject: id, Role: pkgAuth.RoleOperator, StoreID: store}
}

// Service builds an internal service principal.
func Service(id string) pkgAuth.Principal {
	return pkgAuth.Principal{Subject: id, Role: pkgAuth.RoleService}
}

var _ pkgAuth.Strategy = StrategyStub{}
