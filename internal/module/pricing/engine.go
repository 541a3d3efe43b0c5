package pricing

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"

	"github.com/chopshop/server/internal/module/billing"
	"github.com/chopshop/server/internal/module/catalog"
	"github.com/chopshop/server/internal/shared/config"
	"go.uber.org/zap"
)

// Volume discount thresholds, composed with modifier multipliers.
const (
	volumeTierLargeQty        = 50
	volumeTierLargeMultiplier = 0.75
	volumeTierSmallQty        = 10
	volumeTierSmallMultiplier = 0.85
)

var modifierCodePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// CatalogStore is the catalog surface the engine needs.
type CatalogStore interface {
	GetItem(ctx context.Context, code string) (*catalog.Item, error)
	GetModifiers(ctx context.Context, codes []string) ([]*catalog.Modifier, error)
}

// AllowanceSource reports remaining plan allowance. Read-only from the
// engine's point of view; quoting never consumes seconds.
type AllowanceSource interface {
	CurrentAllowance(ctx context.Context, accountID string) (*billing.Allowance, error)
}

// Engine turns (account, item, quantity, modifiers) into a guaranteed-margin
// quote. Quoting has no side effects beyond the lazy usage-period row.
type Engine struct {
	catalog    CatalogStore
	allowances AllowanceSource
	cfg        config.PricingConfig
	log        *zap.Logger
}

// NewEngine creates a new pricing engine.
func NewEngine(catalogStore CatalogStore, allowances AllowanceSource, cfg config.PricingConfig, log *zap.Logger) *Engine {
	return &Engine{catalog: catalogStore, allowances: allowances, cfg: cfg, log: log}
}

// Quote prices quantity units of the item with the given modifier codes on
// top of the item's defaults. Returns ErrItemNotFound, ErrInvalidQuantity,
// or a MarginError.
func (e *Engine) Quote(ctx context.Context, accountID, itemCode string, quantity int64, modifierCodes []string) (*Quote, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	item, err := e.catalog.GetItem(ctx, itemCode)
	if err != nil {
		if errors.Is(err, catalog.ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	codes := e.mergeModifierCodes(item.DefaultModifiers, modifierCodes)
	modifiers, err := e.catalog.GetModifiers(ctx, codes)
	if err != nil {
		return nil, err
	}

	multiplier := 1.0
	var flatSurcharge int64
	for _, m := range modifiers {
		if m.PriceMultiplier != 1.0 {
			multiplier *= m.PriceMultiplier
		}
		if m.FlatSurchargeCents > 0 {
			flatSurcharge += m.FlatSurchargeCents
		}
	}

	switch {
	case quantity >= volumeTierLargeQty:
		multiplier *= volumeTierLargeMultiplier
	case quantity >= volumeTierSmallQty:
		multiplier *= volumeTierSmallMultiplier
	}

	price := int64(math.Round(float64(item.BasePriceCents*quantity)*multiplier)) + flatSurcharge

	// Modifiers affect price only, never resource cost.
	totalSeconds := item.BaseResourceSeconds * quantity

	var secondsFromPlan, overageSeconds, overageCost, remainingSeconds int64
	allowance, err := e.allowances.CurrentAllowance(ctx, accountID)
	switch {
	case err == nil:
		remainingSeconds = allowance.RemainingSeconds
		secondsFromPlan = totalSeconds
		if secondsFromPlan > remainingSeconds {
			secondsFromPlan = remainingSeconds
		}
		overageSeconds = totalSeconds - secondsFromPlan
		overageCost = overageSeconds * allowance.Plan.OverageRatePerSecondCents
		price += overageCost
	case errors.Is(err, billing.ErrNoActiveSubscription):
		// No plan: full price, no allowance offset.
	default:
		return nil, err
	}

	internalCost := int64(math.Round(float64(totalSeconds*e.cfg.CostPerSecondMilliCents) / 1000.0))
	var margin float64
	if price > 0 {
		margin = float64(price-internalCost) / float64(price)
	}
	if margin < e.cfg.MinimumMargin {
		e.log.Warn("quote rejected below margin floor",
			zap.String("item_code", itemCode),
			zap.Int64("quantity", quantity),
			zap.Int64("price_cents", price),
			zap.Int64("internal_cost_cents", internalCost),
			zap.Float64("margin", margin))
		return nil, &MarginError{Margin: margin, Minimum: e.cfg.MinimumMargin}
	}

	return &Quote{
		ItemCode:             item.Code,
		ItemName:             item.Name,
		Quantity:             quantity,
		AppliedModifiers:     codes,
		PriceCents:           price,
		InternalCostCents:    internalCost,
		Margin:               margin,
		TotalSeconds:         totalSeconds,
		SecondsFromPlan:      secondsFromPlan,
		OverageSeconds:       overageSeconds,
		OverageCostCents:     overageCost,
		RemainingPlanSeconds: remainingSeconds,
	}, nil
}

// mergeModifierCodes unions default and explicit codes, dropping duplicates
// and anything outside the safe alphanumeric/underscore pattern.
func (e *Engine) mergeModifierCodes(defaults []string, explicit []string) []string {
	seen := make(map[string]struct{}, len(defaults)+len(explicit))
	var codes []string
	for _, code := range append(append([]string(nil), defaults...), explicit...) {
		if _, dup := seen[code]; dup {
			continue
		}
		if !modifierCodePattern.MatchString(code) {
			e.log.Warn("dropping malformed modifier code", zap.String("code", code))
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
