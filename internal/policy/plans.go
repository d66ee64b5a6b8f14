package policy

import "sort"

// Plan names.
const (
	PlanBasic      = "basic"
	PlanPremium    = "premium"
	PlanEnterprise = "enterprise"
)

// PlanDurationDays is the length of every subscription period.
const PlanDurationDays = 30

// Plan is an entry of the subscription price list.
type Plan struct {
	Name         string   `json:"name"`
	ContactLimit int      `json:"contactLimit"`
	DurationDays int      `json:"duration"`
	Price        float64  `json:"price"`
	Features     []string `json:"features"`
}

var plans = map[string]Plan{
	PlanBasic: {
		Name:         PlanBasic,
		ContactLimit: FreeContactLimit,
		DurationDays: PlanDurationDays,
		Price:        0,
		Features:     []string{"50 contact requests per month", "Basic support", "Standard features"},
	},
	PlanPremium: {
		Name:         PlanPremium,
		ContactLimit: 100,
		DurationDays: PlanDurationDays,
		Price:        199,
		Features:     []string{"100 contact requests per month", "Priority support", "Advanced features", "Analytics dashboard"},
	},
	PlanEnterprise: {
		Name:         PlanEnterprise,
		ContactLimit: 500,
		DurationDays: PlanDurationDays,
		Price:        499,
		Features:     []string{"500 contact requests per month", "24/7 support", "All features", "Advanced analytics", "Custom integrations"},
	},
}

// LookupPlan returns the plan named name.
func LookupPlan(name string) (Plan, bool) {
	p, ok := plans[normalize(name)]
	return p, ok
}

// ContactLimitFor returns the contact limit of plan, falling back to the
// basic plan for unknown or empty names.
func ContactLimitFor(plan string) int {
	if p, ok := LookupPlan(plan); ok {
		return p.ContactLimit
	}
	return plans[PlanBasic].ContactLimit
}

// Plans lists all plans ordered by price.
func Plans() []Plan {
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}
