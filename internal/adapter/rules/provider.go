package rules

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

// Provider resolves the pointing rule of a store.
type Provider interface {
	Rule(ctx context.Context, storeID string) (model.PointingRule, error)
}

// ruleEntry mirrors one rule entry of the rules file. Monetary values use currency units.
type ruleEntry struct {
	PointsPerUnit      float64 `yaml:"points_per_unit"`
	MinPurchase        float64 `yaml:"min_purchase"`
	PointsValidityDays int     `yaml:"points_validity_days"`
}

type document struct {
	Default *ruleEntry           `yaml:"default"`
	Stores  map[string]ruleEntry `yaml:"stores"`
}

// StaticProvider serves rules held in memory.
type StaticProvider struct {
	mu       sync.RWMutex
	fallback *model.PointingRule
	stores   map[string]model.PointingRule
}

// DefaultRule awards one point per currency unit without a minimum.
var DefaultRule = model.PointingRule{PointsPerUnitMilli: 1000}

// NewStaticProvider builds a provider from explicit rules. fallback may be nil.
func NewStaticProvider(fallback *model.PointingRule, stores map[string]model.PointingRule) *StaticProvider {
	p := &StaticProvider{fallback: fallback, stores: make(map[string]model.PointingRule, len(stores))}
	for id, rule := range stores {
		rule.StoreID = id
		p.stores[id] = rule
	}
	return p
}

// Load reads a YAML rules file.
func Load(path string) (*StaticProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML rules.
func Parse(raw []byte) (*StaticProvider, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	var fallback *model.PointingRule
	if doc.Default != nil {
		rule, err := doc.Default.toModel("default")
		if err != nil {
			return nil, err
		}
		fallback = &rule
	}
	stores := make(map[string]model.PointingRule, len(doc.Stores))
	for id, entry := range doc.Stores {
		rule, err := entry.toModel(id)
		if err != nil {
			return nil, err
		}
		stores[id] = rule
	}
	return NewStaticProvider(fallback, stores), nil
}

func (s ruleEntry) toModel(name string) (model.PointingRule, error) {
	if s.PointsPerUnit < 0 || s.MinPurchase < 0 || s.PointsValidityDays < 0 {
		return model.PointingRule{}, fmt.Errorf("rule %q: negative values are not allowed", name)
	}
	return model.PointingRule{
		PointsPerUnitMilli: int64(math.Round(s.PointsPerUnit * 1000)),
		MinPurchaseCents:   int64(math.Round(s.MinPurchase * 100)),
		PointsValidityDays: s.PointsValidityDays,
	}, nil
}

// Rule returns the store rule, falling back to the default one.
func (p *StaticProvider) Rule(ctx context.Context, storeID string) (model.PointingRule, error) {
	if err := ctx.Err(); err != nil {
		return model.PointingRule{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if rule, ok := p.stores[storeID]; ok {
		return rule, nil
	}
	if p.fallback != nil {
		rule := *p.fallback
		rule.StoreID = storeID
		return rule, nil
	}
	return model.PointingRule{}, fmt.Errorf("%w: %s", domainErrors.ErrRuleNotFound, storeID)
}

// Set installs or replaces the rule of one store.
func (p *StaticProvider) Set(rule model.PointingRule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stores[rule.StoreID] = rule
}
