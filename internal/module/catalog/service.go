package catalog

import (
	"context"

	"go.uber.org/zap"
)

// Service provides read access to the catalog for pricing and the storefront.
type Service struct {
	repo Repository
	log  *zap.Logger
}

// NewService creates a new catalog service.
func NewService(repo Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// GetItem returns the active item with the given code.
func (s *Service) GetItem(ctx context.Context, code string) (*Item, error) {
	return s.repo.GetItemByCode(ctx, code)
}

// ListItems returns all active items ordered by price.
func (s *Service) ListItems(ctx context.Context) ([]*Item, error) {
	return s.repo.ListActiveItems(ctx)
}

// GetModifiers returns the active modifiers matching the given codes.
// Modifiers failing boundary validation are dropped with a warning.
func (s *Service) GetModifiers(ctx context.Context, codes []string) ([]*Modifier, error) {
	modifiers, err := s.repo.GetModifiersByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}

	valid := modifiers[:0]
	for _, m := range modifiers {
		if err := m.Validate(); err != nil {
			s.log.Warn("dropping invalid modifier",
				zap.String("code", m.Code),
				zap.Float64("multiplier", m.PriceMultiplier),
				zap.Int64("flat_surcharge_cents", m.FlatSurchargeCents))
			continue
		}
		valid = append(valid, m)
	}
	return valid, nil
}

// GetPlan returns the plan with the given id.
func (s *Service) GetPlan(ctx context.Context, id string) (*Plan, error) {
	return s.repo.GetPlanByID(ctx, id)
}

// GetPlanByCode returns the active plan with the given code.
func (s *Service) GetPlanByCode(ctx context.Context, code string) (*Plan, error) {
	return s.repo.GetPlanByCode(ctx, code)
}

// ListPlans returns all active plans ordered by price.
func (s *Service) ListPlans(ctx context.Context) ([]*Plan, error) {
	return s.repo.ListActivePlans(ctx)
}
