package taxcalc

import "github.com/shopspring/decimal"

// Rule is one row of the TDS threshold table.
type Rule struct {
	Nature  ServiceNature `json:"nature_of_service"`
	Section Section       `json:"section"`
	// SingleThreshold is the per-payment limit; zero means the section has none.
	SingleThreshold decimal.Decimal `json:"single_payment_threshold"`
	// AggregateThreshold applies to the payment plus the vendor's prior total for the year.
	AggregateThreshold decimal.Decimal                    `json:"aggregate_threshold"`
	Rates              map[VendorCategory]decimal.Decimal `json:"rates"`
}

// PANPenaltyRate is the floor rate applied once a threshold is crossed without a PAN on file.
var PANPenaltyRate = decimal.NewFromInt(20)

var allCategories = []VendorCategory{CategoryIndividual, CategoryHUF, CategoryCompany, CategoryFirm, CategoryLLP}

func flatRate(pct int64) map[VendorCategory]decimal.Decimal {
	rates := make(map[VendorCategory]decimal.Decimal, len(allCategories))
	for _, c := range allCategories {
		rates[c] = decimal.NewFromInt(pct)
	}
	return rates
}

var rules = map[ServiceNature]Rule{
	NatureContractor: {
		Nature:             NatureContractor,
		Section:            Section194C,
		SingleThreshold:    decimal.NewFromInt(30000),
		AggregateThreshold: decimal.NewFromInt(100000),
		Rates: map[VendorCategory]decimal.Decimal{
			CategoryIndividual: decimal.NewFromInt(1),
			CategoryHUF:        decimal.NewFromInt(1),
			CategoryCompany:    decimal.NewFromInt(2),
			CategoryFirm:       decimal.NewFromInt(2),
			CategoryLLP:        decimal.NewFromInt(2),
		},
	},
	NatureProfessionalServices: {
		Nature:             NatureProfessionalServices,
		Section:            Section194J,
		AggregateThreshold: decimal.NewFromInt(50000),
		Rates:              flatRate(10),
	},
	NatureTechnicalServices: {
		Nature:             NatureTechnicalServices,
		Section:            Section194J,
		AggregateThreshold: decimal.NewFromInt(50000),
		Rates:              flatRate(2),
	},
	NatureCallCentreServices: {
		Nature:             NatureCallCentreServices,
		Section:            Section194J,
		AggregateThreshold: decimal.NewFromInt(50000),
		Rates:              flatRate(2),
	},
}

var ruleOrder = []ServiceNature{NatureContractor, NatureProfessionalServices, NatureTechnicalServices, NatureCallCentreServices}

// Rules returns a copy of the threshold table in a stable order.
func Rules() []Rule {
	out := make([]Rule, 0, len(ruleOrder))
	for _, n := range ruleOrder {
		r := rules[n]
		rates := make(map[VendorCategory]decimal.Decimal, len(r.Rates))
		for k, v := range r.Rates {
			rates[k] = v
		}
		r.Rates = rates
		out = append(out, r)
	}
	return out
}

// lookupRule returns the rule for a nature; ok is false for Other.
func lookupRule(nature ServiceNature) (Rule, bool) {
	r, ok := rules[nature]
	return r, ok
}

// exceeds reports whether a payment crosses either threshold of the rule.
func (r Rule) exceeds(payment PaymentFacts) bool {
	if r.SingleThreshold.IsPositive() && payment.PaymentAmount.GreaterThan(r.SingleThreshold) {
		return true
	}
	return payment.PaymentAmount.Add(payment.YearlyCumulativeTotal).GreaterThan(r.AggregateThreshold)
}
