package pricing

// Quote is an immutable point-in-time pricing computation. All money
// amounts are in cents.
type Quote struct {
	ItemCode          string   `json:"item_code"`
	ItemName          string   `json:"item_name"`
	Quantity          int64    `json:"quantity"`
	AppliedModifiers  []string `json:"applied_modifiers"`
	PriceCents        int64    `json:"price_cents"`
	InternalCostCents int64    `json:"internal_cost_cents"`
	Margin            float64  `json:"margin"`

	TotalSeconds         int64 `json:"total_seconds"`
	SecondsFromPlan      int64 `json:"seconds_from_plan"`
	OverageSeconds       int64 `json:"overage_seconds"`
	OverageCostCents     int64 `json:"overage_cost_cents"`
	RemainingPlanSeconds int64 `json:"remaining_plan_seconds"`
}
