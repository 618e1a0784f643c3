package catalog

import "math"

// Param describes one numeric input a customer can tune for an item.
type Param struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Default float64 `json:"default"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Unit    string  `json:"unit"`
	Prefix  string  `json:"prefix,omitempty"`
	Suffix  string  `json:"suffix,omitempty"`
}

// Item is one sellable bot. Prices are integer cents. The benefit formula
// returns the estimated monthly revenue uplift in whole dollars.
type Item struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	Description       string  `json:"description"`
	Icon              string  `json:"icon"`
	MonthlyPriceCents int64   `json:"monthly_price_cents"`
	SetupFeeCents     int64   `json:"setup_fee_cents"`
	Params            []Param `json:"params"`

	// Benefit estimates the monthly revenue uplift in whole dollars. It is
	// never serialized; the frontend mirrors the formula for live display.
	Benefit func(in map[string]float64) float64 `json:"-"`
}

// Catalog is an immutable lookup table of items, fixed at process start.
type Catalog struct {
	items []Item
	byID  map[string]*Item
}

// New builds a catalog from the provided items, preserving their order.
func New(items []Item) *Catalog {
	c := &Catalog{
		items: make([]Item, len(items)),
		byID:  make(map[string]*Item, len(items)),
	}
	copy(c.items, items)
	for i := range c.items {
		c.byID[c.items[i].ID] = &c.items[i]
	}
	return c
}

// Items returns the catalog items in their stable declared order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// ItemByID looks up a single item.
func (c *Catalog) ItemByID(id string) (Item, bool) {
	item, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// Len reports the number of catalog items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// EstimateBenefit evaluates the item's benefit formula for the supplied
// parameter values and returns the estimate in cents. Missing keys fall back
// to the parameter defaults, values outside the declared domain are clamped
// to it, and a negative formula result clamps to zero.
func (c *Catalog) EstimateBenefit(item Item, params map[string]float64) int64 {
	if item.Benefit == nil {
		return 0
	}
	in := make(map[string]float64, len(item.Params))
	for _, p := range item.Params {
		value, ok := params[p.Key]
		if !ok {
			value = p.Default
		}
		in[p.Key] = clamp(value, p.Min, p.Max)
	}
	dollars := math.Round(item.Benefit(in))
	if dollars < 0 {
		return 0
	}
	return int64(dollars) * 100
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
