package quote

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/upliftlabs/calculator-backend/internal/catalog"
)

// Selection is the customer's current pick of catalog items plus the slider
// values for each. Item ids not present in the catalog are ignored; missing
// parameter maps fall back to catalog defaults.
type Selection struct {
	ItemIDs []string                      `json:"item_ids"`
	Params  map[string]map[string]float64 `json:"params,omitempty"`
}

// ItemQuote is the per-item slice of a computed quote.
type ItemQuote struct {
	ItemID            string `json:"item_id"`
	Name              string `json:"name"`
	MonthlyPriceCents int64  `json:"monthly_price_cents"`
	SetupFeeCents     int64  `json:"setup_fee_cents"`
	BenefitCents      int64  `json:"benefit_cents"`
}

// Quote is a derived snapshot of all totals for a selection. It is always
// recomputable from Selection plus the catalog and never mutated in place.
// Every currency field is integer cents.
type Quote struct {
	Items []ItemQuote `json:"items"`

	MonthlyCents    int64    `json:"monthly_cents"`
	SetupCents      int64    `json:"setup_cents"`
	BenefitCents    int64    `json:"benefit_cents"`
	NetGainCents    int64    `json:"net_gain_cents"`
	ReturnRatio     float64  `json:"return_ratio"`
	PaybackMonths   *int64   `json:"payback_months,omitempty"`
	TaxBaseCents    int64    `json:"tax_base_cents"`
	TaxCents        int64    `json:"tax_cents"`
	GrandTotalCents int64    `json:"grand_total_cents"`
	Currency        string   `json:"currency"`
}

// Engine computes quotes against an immutable catalog and a fixed tax rate.
type Engine struct {
	catalog  *catalog.Catalog
	taxRate  decimal.Decimal
	currency string
}

// NewEngine builds a quote engine. rate is a decimal fraction such as "0.10".
func NewEngine(cat *catalog.Catalog, rate string, currency string) (*Engine, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog required")
	}
	parsed, err := decimal.NewFromString(strings.TrimSpace(rate))
	if err != nil {
		return nil, fmt.Errorf("parsing tax rate: %w", err)
	}
	if parsed.IsNegative() {
		return nil, fmt.Errorf("tax rate cannot be negative")
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "aud"
	}
	return &Engine{catalog: cat, taxRate: parsed, currency: currency}, nil
}

// TaxRate returns the configured tax rate as a decimal fraction.
func (e *Engine) TaxRate() decimal.Decimal {
	return e.taxRate
}

// Currency returns the fixed quoting currency code.
func (e *Engine) Currency() string {
	return e.currency
}

// Compute derives a Quote from the selection. It is pure and total: unknown
// item ids are skipped, duplicates collapse, and an empty selection yields a
// zero quote with no payback period.
func (e *Engine) Compute(sel Selection) Quote {
	q := Quote{Currency: e.currency}

	seen := make(map[string]struct{}, len(sel.ItemIDs))
	for _, id := range sel.ItemIDs {
		seen[id] = struct{}{}
	}

	// Walk the catalog rather than the request so item order is stable.
	for _, item := range e.catalog.Items() {
		if _, ok := seen[item.ID]; !ok {
			continue
		}
		benefit := e.catalog.EstimateBenefit(item, sel.Params[item.ID])
		q.Items = append(q.Items, ItemQuote{
			ItemID:            item.ID,
			Name:              item.Name,
			MonthlyPriceCents: item.MonthlyPriceCents,
			SetupFeeCents:     item.SetupFeeCents,
			BenefitCents:      benefit,
		})
		q.MonthlyCents += item.MonthlyPriceCents
		q.SetupCents += item.SetupFeeCents
		q.BenefitCents += benefit
	}

	q.NetGainCents = q.BenefitCents - q.MonthlyCents
	if q.MonthlyCents > 0 {
		ratio := decimal.NewFromInt(q.BenefitCents).
			Div(decimal.NewFromInt(q.MonthlyCents)).
			Round(2)
		q.ReturnRatio, _ = ratio.Float64()
	}
	if q.NetGainCents > 0 {
		months := (q.SetupCents + q.NetGainCents - 1) / q.NetGainCents
		q.PaybackMonths = &months
	}

	// Tax applies once to the first period's spend (setup + one month of
	// recurring cost), never to the projected benefit, and is rounded
	// half-up on the aggregate only.
	q.TaxBaseCents = q.SetupCents + q.MonthlyCents
	q.TaxCents = decimal.NewFromInt(q.TaxBaseCents).
		Mul(e.taxRate).
		Round(0).
		IntPart()
	q.GrandTotalCents = q.TaxBaseCents + q.TaxCents

	return q
}
