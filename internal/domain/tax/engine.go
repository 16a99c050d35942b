package tax

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Item is a single order line for tax purposes.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns quantity times unit price for this line.
func (it Item) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Engine computes tax owed across the configured tax rules.
type Engine struct {
	configs Repository
}

// NewEngine creates an Engine that loads active configs from the given
// repository when the caller supplies none.
func NewEngine(configs Repository) *Engine {
	return &Engine{configs: configs}
}

// CalculateActive loads the active tax configs and runs Calculate over them.
func (e *Engine) CalculateActive(ctx context.Context, items []Item, inclusiveDefault bool) (*Calculation, error) {
	configs, err := e.configs.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list active tax configs")
	}
	c := Calculate(items, configs, inclusiveDefault)
	return &c, nil
}

// ActiveConfigs returns the active tax configs from storage.
func (e *Engine) ActiveConfigs(ctx context.Context) ([]Config, error) {
	configs, err := e.configs.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list active tax configs")
	}
	return configs, nil
}

// Calculate computes the tax breakdown for the given items. Every active
// config contributes one independently rounded line against its own
// applicable subtotal; configs never compound on each other's base.
//
// The total tax is the sum of the already-rounded line amounts, not a
// re-rounding of the raw sum. That can drift one cent from a from-scratch
// computation; the behavior is kept as-is.
//
// Inclusive lines extract the pre-tax base from the displayed price, so their
// amounts are already part of the subtotal and do not add to the total.
func Calculate(items []Item, configs []Config, inclusiveDefault bool) Calculation {
	subtotal := itemsSubtotal(items)

	result := Calculation{
		Subtotal:    subtotal,
		TaxAmount:   decimal.Zero,
		Total:       subtotal,
		IsInclusive: inclusiveDefault,
	}

	for _, cfg := range configs {
		if !cfg.IsActive {
			continue
		}

		amount := configAmount(&cfg, items)

		result.Breakdown = append(result.Breakdown, Line{
			ConfigID:    cfg.ID,
			Name:        cfg.Name,
			Type:        cfg.Type,
			Rate:        cfg.Rate,
			Amount:      amount,
			IsInclusive: cfg.IsInclusive,
		})
		result.TaxAmount = result.TaxAmount.Add(amount)
		if !cfg.IsInclusive {
			result.Total = result.Total.Add(amount)
		}
	}

	return result
}

// configAmount computes one config's tax, rounded half-up to cents.
func configAmount(cfg *Config, items []Item) decimal.Decimal {
	// Flat fees are independent of the subtotal.
	if cfg.Type == TypeFlatFee {
		return cfg.Rate.Round(2)
	}

	applicable := applicableSubtotal(cfg, items)
	if cfg.IsInclusive {
		base := applicable.Div(one.Add(cfg.Rate.Div(hundred)))
		return base.Mul(cfg.Rate).Div(hundred).Round(2)
	}
	return applicable.Mul(cfg.Rate).Div(hundred).Round(2)
}

// applicableSubtotal sums the lines this config applies to: all items unless
// an applicable-product list restricts it.
func applicableSubtotal(cfg *Config, items []Item) decimal.Decimal {
	if len(cfg.ApplicableProducts) == 0 {
		return itemsSubtotal(items)
	}

	allowed := make(map[string]struct{}, len(cfg.ApplicableProducts))
	for _, id := range cfg.ApplicableProducts {
		allowed[id] = struct{}{}
	}

	sum := decimal.Zero
	for _, it := range items {
		if _, ok := allowed[it.ProductID]; ok {
			sum = sum.Add(it.Subtotal())
		}
	}
	return sum
}

func itemsSubtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}
