package pricing

import (
	"context"
	"testing"

	"github.com/chopshop/server/internal/module/billing"
	"github.com/chopshop/server/internal/module/catalog"
	"github.com/chopshop/server/internal/shared/config"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCatalog struct {
	items     map[string]*catalog.Item
	modifiers map[string]*catalog.Modifier
}

func (m *mockCatalog) GetItem(_ context.Context, code string) (*catalog.Item, error) {
	item, ok := m.items[code]
	if !ok {
		return nil, catalog.ErrItemNotFound
	}
	return item, nil
}

func (m *mockCatalog) GetModifiers(_ context.Context, codes []string) ([]*catalog.Modifier, error) {
	var result []*catalog.Modifier
	for _, code := range codes {
		if mod, ok := m.modifiers[code]; ok {
			result = append(result, mod)
		}
	}
	return result, nil
}

type mockAllowances struct {
	allowance *billing.Allowance
}

func (m *mockAllowances) CurrentAllowance(_ context.Context, _ string) (*billing.Allowance, error) {
	if m.allowance == nil {
		return nil, billing.ErrNoActiveSubscription
	}
	return m.allowance, nil
}

func testConfig() config.PricingConfig {
	return config.PricingConfig{
		CostPerSecondMilliCents: 1110, // 1.11 cents per resource-second
		MinimumMargin:           0.40,
	}
}

func newTestEngine(items map[string]*catalog.Item, modifiers map[string]*catalog.Modifier, allowance *billing.Allowance) *Engine {
	return NewEngine(
		&mockCatalog{items: items, modifiers: modifiers},
		&mockAllowances{allowance: allowance},
		testConfig(),
		zap.NewNop(),
	)
}

func TestEngine_Quote_VolumeDiscounts(t *testing.T) {
	items := map[string]*catalog.Item{
		"SKU": {Code: "SKU", Name: "Test", BasePriceCents: 1000, BaseResourceSeconds: 10, Active: true},
	}
	engine := newTestEngine(items, nil, nil)

	tests := []struct {
		quantity int64
		want     int64
	}{
		{1, 1000},
		{9, 9000},
		{10, 8500},
		{49, 41650}, // 49000 * 0.85
		{50, 37500},
		{100, 75000},
	}
	for _, tt := range tests {
		quote, err := engine.Quote(context.Background(), "acc-1", "SKU", tt.quantity, nil)
		require.NoError(t, err, "quantity %d", tt.quantity)
		assert.Equal(t, tt.want, quote.PriceCents, "quantity %d", tt.quantity)
	}
}

func TestEngine_Quote_FlatSurcharge(t *testing.T) {
	items := map[string]*catalog.Item{
		"SKU": {Code: "SKU", BasePriceCents: 1000, BaseResourceSeconds: 10, Active: true},
	}
	modifiers := map[string]*catalog.Modifier{
		"L_EXT": {Code: "L_EXT", PriceMultiplier: 1.0, FlatSurchargeCents: 30000, Active: true},
	}
	engine := newTestEngine(items, modifiers, nil)

	quote, err := engine.Quote(context.Background(), "acc-1", "SKU", 1, []string{"L_EXT"})
	require.NoError(t, err)
	assert.Equal(t, int64(31000), quote.PriceCents)
	assert.Equal(t, []string{"L_EXT"}, quote.AppliedModifiers)
}

func TestEngine_Quote_ModifierMultipliersCompose(t *testing.T) {
	items := map[string]*catalog.Item{
		"SKU": {Code: "SKU", BasePriceCents: 1000, BaseResourceSeconds: 10, DefaultModifiers: pq.StringArray{"C"}, Active: true},
	}
	modifiers := map[string]*catalog.Modifier{
		"R": {Code: "R", PriceMultiplier: 1.4, Active: true},
		"C": {Code: "C", PriceMultiplier: 1.0, FlatSurchargeCents: 9900, Active: true},
	}
	engine := newTestEngine(items, modifiers, nil)

	// round(1000 * 1.4) + 9900, defaults merged with explicit codes.
	quote, err := engine.Quote(context.Background(), "acc-1", "SKU", 1, []string{"R", "C"})
	require.NoError(t, err)
	assert.Equal(t, int64(11300), quote.PriceCents)
	assert.ElementsMatch(t, []string{"C", "R"}, quote.AppliedModifiers)
}

func TestEngine_Quote_DropsMalformedModifierCodes(t *testing.T) {
	items := map[string]*catalog.Item{
		"SKU": {Code: "SKU", BasePriceCents: 1000, BaseResourceSeconds: 10, Active: true},
	}
	engine := newTestEngine(items, nil, nil)

	quote, err := engine.Quote(context.Background(), "acc-1", "SKU", 1, []string{"'; DROP TABLE--", "L_STD"})
	require.NoError(t, err)
	assert.Equal(t, []string{"L_STD"}, quote.AppliedModifiers)
	assert.Equal(t, int64(1000), quote.PriceCents)
}

func TestEngine_Quote_ItemNotFound(t *testing.T) {
	engine := newTestEngine(map[string]*catalog.Item{}, nil, nil)

	_, err := engine.Quote(context.Background(), "acc-1", "NOPE", 1, nil)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestEngine_Quote_InvalidQuantity(t *testing.T) {
	engine := newTestEngine(map[string]*catalog.Item{}, nil, nil)

	_, err := engine.Quote(context.Background(), "acc-1", "SKU", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestEngine_Quote_MarginFloorRejects(t *testing.T) {
	// 1000 resource-seconds cost 1110 cents internally; a 499-cent price is
	// far below the 40% floor.
	items := map[string]*catalog.Item{
		"CHEAP": {Code: "CHEAP", BasePriceCents: 499, BaseResourceSeconds: 1000, Active: true},
	}
	engine := newTestEngine(items, nil, nil)

	_, err := engine.Quote(context.Background(), "acc-1", "CHEAP", 1, nil)
	require.Error(t, err)
	assert.True(t, IsMarginTooLow(err))

	var me *MarginError
	require.ErrorAs(t, err, &me)
	assert.Less(t, me.Margin, 0.40)
}

func TestEngine_Quote_PlanAllowanceOffset(t *testing.T) {
	items := map[string]*catalog.Item{
		"C1-15": {Code: "C1-15", BasePriceCents: 2900, BaseResourceSeconds: 90, Active: true},
	}
	allowance := &billing.Allowance{
		Plan:             &catalog.Plan{ID: "plan_starter", Code: "STARTER", IncludedSeconds: 600, OverageRatePerSecondCents: 20},
		RemainingSeconds: 600,
	}
	engine := newTestEngine(items, nil, allowance)

	// 10 units = 900 seconds; 600 from plan, 300 overage at 20c/s = 6000.
	quote, err := engine.Quote(context.Background(), "acc-1", "C1-15", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(900), quote.TotalSeconds)
	assert.Equal(t, int64(600), quote.SecondsFromPlan)
	assert.Equal(t, int64(300), quote.OverageSeconds)
	assert.Equal(t, int64(6000), quote.OverageCostCents)
	// round(29000 * 0.85) + 6000 overage.
	assert.Equal(t, int64(30650), quote.PriceCents)
}

func TestEngine_Quote_Deterministic(t *testing.T) {
	items := map[string]*catalog.Item{
		"SKU": {Code: "SKU", BasePriceCents: 2900, BaseResourceSeconds: 90, Active: true},
	}
	engine := newTestEngine(items, nil, nil)

	first, err := engine.Quote(context.Background(), "acc-1", "SKU", 3, nil)
	require.NoError(t, err)
	second, err := engine.Quote(context.Background(), "acc-1", "SKU", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEngine_Quote_InternalCost(t *testing.T) {
	items := map[string]*catalog.Item{
		"SKU": {Code: "SKU", BasePriceCents: 4900, BaseResourceSeconds: 1000, Active: true},
	}
	engine := newTestEngine(items, nil, nil)

	quote, err := engine.Quote(context.Background(), "acc-1", "SKU", 1, nil)
	require.NoError(t, err)
	// 1000 seconds at 1.11 cents each.
	assert.Equal(t, int64(1110), quote.InternalCostCents)
	assert.InDelta(t, float64(4900-1110)/4900, quote.Margin, 1e-9)
}
