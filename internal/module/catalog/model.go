package catalog

import (
	"time"

	"github.com/lib/pq"
)

// Category groups items on the storefront.
type Category string

const (
	CategoryImage   Category = "image"
	CategoryVideo   Category = "video"
	CategoryVoice   Category = "voice"
	CategoryContent Category = "content"
	CategoryBundle  Category = "bundle"
)

// Item is a sellable catalog entry. Prices are in cents; resource seconds
// normalize provider work against plan allowances.
type Item struct {
	ID                  string         `json:"id" gorm:"primaryKey"`
	Code                string         `json:"code" gorm:"uniqueIndex;not null"`
	Name                string         `json:"name" gorm:"not null"`
	Description         string         `json:"description"`
	Category            Category       `json:"category" gorm:"not null;index"`
	BaseResourceSeconds int64          `json:"base_resource_seconds" gorm:"not null"`
	BasePriceCents      int64          `json:"base_price_cents" gorm:"not null"`
	DefaultModifiers    pq.StringArray `json:"default_modifiers" gorm:"type:text[]"`
	Active              bool           `json:"active" gorm:"default:true;index"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// TableName returns the table name for Item.
func (Item) TableName() string {
	return "catalog_items"
}

// Modifier is a named price adjustment attached to items by code.
// Multipliers compose multiplicatively, flat surcharges additively.
type Modifier struct {
	ID                 string    `json:"id" gorm:"primaryKey"`
	Code               string    `json:"code" gorm:"uniqueIndex;not null"`
	Label              string    `json:"label" gorm:"not null"`
	Description        string    `json:"description"`
	PriceMultiplier    float64   `json:"price_multiplier" gorm:"not null;default:1.0"`
	FlatSurchargeCents int64     `json:"flat_surcharge_cents" gorm:"not null;default:0"`
	Active             bool      `json:"active" gorm:"default:true"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName returns the table name for Modifier.
func (Modifier) TableName() string {
	return "catalog_modifiers"
}

// Plan is a subscription tier with an included resource-second allowance.
type Plan struct {
	ID                        string    `json:"id" gorm:"primaryKey"`
	Code                      string    `json:"code" gorm:"uniqueIndex;not null"`
	Name                      string    `json:"name" gorm:"not null"`
	Description               string    `json:"description"`
	MonthlyPriceCents         int64     `json:"monthly_price_cents" gorm:"not null"`
	IncludedSeconds           int64     `json:"included_seconds" gorm:"not null"`
	OverageRatePerSecondCents int64     `json:"overage_rate_per_second_cents" gorm:"not null"`
	Active                    bool      `json:"active" gorm:"default:true"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// TableName returns the table name for Plan.
func (Plan) TableName() string {
	return "catalog_plans"
}

// Validate checks invariants enforced at the load boundary.
func (m *Modifier) Validate() error {
	if m.PriceMultiplier < 0 {
		return ErrInvalidModifier
	}
	if m.FlatSurchargeCents < 0 {
		return ErrInvalidModifier
	}
	return nil
}
