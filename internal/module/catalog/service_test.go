package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockRepository is an in-memory Repository for tests.
type MockRepository struct {
	items     map[string]*Item
	modifiers map[string]*Modifier
	plans     map[string]*Plan
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		items:     make(map[string]*Item),
		modifiers: make(map[string]*Modifier),
		plans:     make(map[string]*Plan),
	}
}

func (m *MockRepository) GetItemByCode(_ context.Context, code string) (*Item, error) {
	item, ok := m.items[code]
	if !ok || !item.Active {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func (m *MockRepository) ListActiveItems(_ context.Context) ([]*Item, error) {
	var items []*Item
	for _, item := range m.items {
		if item.Active {
			items = append(items, item)
		}
	}
	return items, nil
}

func (m *MockRepository) GetModifiersByCodes(_ context.Context, codes []string) ([]*Modifier, error) {
	var result []*Modifier
	for _, code := range codes {
		if mod, ok := m.modifiers[code]; ok && mod.Active {
			result = append(result, mod)
		}
	}
	return result, nil
}

func (m *MockRepository) GetPlanByID(_ context.Context, id string) (*Plan, error) {
	for _, plan := range m.plans {
		if plan.ID == id {
			return plan, nil
		}
	}
	return nil, ErrPlanNotFound
}

func (m *MockRepository) GetPlanByCode(_ context.Context, code string) (*Plan, error) {
	plan, ok := m.plans[code]
	if !ok || !plan.Active {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

func (m *MockRepository) ListActivePlans(_ context.Context) ([]*Plan, error) {
	var plans []*Plan
	for _, plan := range m.plans {
		if plan.Active {
			plans = append(plans, plan)
		}
	}
	return plans, nil
}

func (m *MockRepository) UpsertItems(_ context.Context, items []*Item) error {
	for _, item := range items {
		m.items[item.Code] = item
	}
	return nil
}

func (m *MockRepository) UpsertModifiers(_ context.Context, modifiers []*Modifier) error {
	for _, mod := range modifiers {
		m.modifiers[mod.Code] = mod
	}
	return nil
}

func (m *MockRepository) UpsertPlans(_ context.Context, plans []*Plan) error {
	for _, plan := range plans {
		m.plans[plan.Code] = plan
	}
	return nil
}

func TestService_GetItem(t *testing.T) {
	repo := NewMockRepository()
	repo.items["A1-IG"] = &Item{Code: "A1-IG", Name: "Instagram Image 1080p", Active: true}
	repo.items["A2-BH"] = &Item{Code: "A2-BH", Name: "Blog Hero 2K", Active: false}
	service := NewService(repo, zap.NewNop())

	item, err := service.GetItem(context.Background(), "A1-IG")
	require.NoError(t, err)
	assert.Equal(t, "Instagram Image 1080p", item.Name)

	_, err = service.GetItem(context.Background(), "A2-BH")
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = service.GetItem(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestService_GetModifiers_DropsInvalid(t *testing.T) {
	repo := NewMockRepository()
	repo.modifiers["L_EXT"] = &Modifier{Code: "L_EXT", FlatSurchargeCents: 30000, PriceMultiplier: 1.0, Active: true}
	repo.modifiers["BROKEN"] = &Modifier{Code: "BROKEN", PriceMultiplier: -2, Active: true}
	service := NewService(repo, zap.NewNop())

	modifiers, err := service.GetModifiers(context.Background(), []string{"L_EXT", "BROKEN"})
	require.NoError(t, err)
	require.Len(t, modifiers, 1)
	assert.Equal(t, "L_EXT", modifiers[0].Code)
}

func TestSeed_Idempotent(t *testing.T) {
	repo := NewMockRepository()

	require.NoError(t, Seed(context.Background(), repo, zap.NewNop()))
	require.NoError(t, Seed(context.Background(), repo, zap.NewNop()))

	items, err := repo.ListActiveItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 19)

	plans, err := repo.ListActivePlans(context.Background())
	require.NoError(t, err)
	assert.Len(t, plans, 3)
}

func TestSeedModifiers_AllValid(t *testing.T) {
	for _, m := range seedModifiers() {
		assert.NoError(t, m.Validate(), m.Code)
	}
}
