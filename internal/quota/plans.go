package quota

import "strings"

// Plan is a subscription tier with its monthly credit allowance.
type Plan struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Credits  int      `json:"credits"`
	PriceINR int      `json:"priceInr"`
	Price    string   `json:"price"`
	Features []string `json:"features"`
}

var plans = []Plan{
	{
		ID:       "starter",
		Name:     "Starter",
		Credits:  10,
		PriceINR: 299,
		Price:    "₹299",
		Features: []string{"10 PO credits per month", "PDF, EML and TXT uploads", "Email support"},
	},
	{
		ID:       "professional",
		Name:     "Professional",
		Credits:  100,
		PriceINR: 999,
		Price:    "₹999",
		Features: []string{"100 PO credits per month", "Google Sheets export", "Gmail delivery", "Priority support"},
	},
	{
		ID:       "business",
		Name:     "Business",
		Credits:  500,
		PriceINR: 2499,
		Price:    "₹2,499",
		Features: []string{"500 PO credits per month", "Google Sheets export", "Gmail delivery", "Dedicated support"},
	},
}

// Plans returns the plan catalogue in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// LookupPlan finds a plan by id, case-insensitively.
func LookupPlan(id string) (Plan, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
