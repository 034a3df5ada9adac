package models

// Plan represents a subscription tier. It is independent of Role: the plan
// drives the storage ceiling, the role drives authorization.
type Plan string

const (
	PlanNovice   Plan = "novice"
	PlanWizard   Plan = "wizard"
	PlanSorcerer Plan = "sorcerer"
)

// ParsePlan maps a stored metadata value to a Plan. Unrecognized or empty
// values fall back to the free tier, matching the lenient defaulting the
// frontend relies on.
func ParsePlan(s string) Plan {
	switch Plan(s) {
	case PlanWizard:
		return PlanWizard
	case PlanSorcerer:
		return PlanSorcerer
	default:
		return PlanNovice
	}
}

// PlanConfig describes a single tier.
type PlanConfig struct {
	ID             Plan
	DisplayName    string
	UserType       string
	StorageLimitGB int64
	PriceID        string
}

// PlanTable is the static price-id -> tier mapping. Price ids for the paid
// tiers come from configuration; the free tier has none.
type PlanTable struct {
	configs map[Plan]PlanConfig
}

// NewPlanTable builds the tier table from the configured Stripe price ids.
func NewPlanTable(wizardPriceID, sorcererPriceID string) *PlanTable {
	return &PlanTable{
		configs: map[Plan]PlanConfig{
			PlanNovice: {
				ID:             PlanNovice,
				DisplayName:    "Free Plan",
				UserType:       "Basic User",
				StorageLimitGB: 10,
			},
			PlanWizard: {
				ID:             PlanWizard,
				DisplayName:    "Wizard Plan",
				UserType:       "Pro User",
				StorageLimitGB: 100,
				PriceID:        wizardPriceID,
			},
			PlanSorcerer: {
				ID:             PlanSorcerer,
				DisplayName:    "Sorcerer Plan",
				UserType:       "Elite User",
				StorageLimitGB: 1000,
				PriceID:        sorcererPriceID,
			},
		},
	}
}

// Config returns the configuration for a plan, falling back to the free tier
// for unknown values.
func (t *PlanTable) Config(p Plan) PlanConfig {
	if cfg, ok := t.configs[p]; ok {
		return cfg
	}
	return t.configs[PlanNovice]
}

// FromPriceID resolves a Stripe price id to a plan. An empty price id never
// matches: the free tier is not purchasable.
func (t *PlanTable) FromPriceID(priceID string) (Plan, bool) {
	if priceID == "" {
		return "", false
	}
	for plan, cfg := range t.configs {
		if cfg.PriceID == priceID {
			return plan, true
		}
	}
	return "", false
}

// PlanForRole derives the plan assigned when an admin creates or edits a
// user: Elite maps to sorcerer, Pro to wizard, everyone else to novice.
func PlanForRole(role string) Plan {
	switch role {
	case "Elite":
		return PlanSorcerer
	case "Pro":
		return PlanWizard
	default:
		return PlanNovice
	}
}
