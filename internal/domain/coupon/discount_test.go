package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name        string
		coupon      *Coupon
		items       []Item
		want        decimal.Decimal
		wantErrText string
	}{
		{
			name:   "percentage 20% off $100",
			coupon: &Coupon{Code: "PCT20", Archetype: ArchetypePercentage, Value: d("20")},
			items: []Item{
				{ProductID: "p1", UnitPrice: d("50"), Quantity: 2},
			},
			want: d("20"),
		},
		{
			name:   "percentage 20% capped at $50 on $1000",
			coupon: &Coupon{Code: "CAP50", Archetype: ArchetypePercentage, Value: d("20"), MaxDiscount: d("50")},
			items: []Item{
				{ProductID: "p1", UnitPrice: d("100"), Quantity: 10},
			},
			want: d("50"),
		},
		{
			name:   "percentage rounds half up",
			coupon: &Coupon{Code: "PCT33", Archetype: ArchetypePercentage, Value: d("33.33")},
			items: []Item{
				{ProductID: "p1", UnitPrice: d("10.01"), Quantity: 1},
			},
			// 10.01 * 33.33 / 100 = 3.336333 -> 3.34
			want: d("3.34"),
		},
		{
			name:   "fixed $10 off $5 never exceeds subtotal",
			coupon: &Coupon{Code: "FLAT10", Archetype: ArchetypeFixed, Value: d("10")},
			items: []Item{
				{ProductID: "p1", UnitPrice: d("5"), Quantity: 1},
			},
			want: d("5"),
		},
		{
			name:   "fixed $9 off $100",
			coupon: &Coupon{Code: "FLAT9", Archetype: ArchetypeFixed, Value: d("9")},
			items: []Item{
				{ProductID: "p1", UnitPrice: d("100"), Quantity: 1},
			},
			want: d("9"),
		},
		{
			name:   "bogo buy 2 get 1 with 7 units",
			coupon: &Coupon{Code: "B2G1", Archetype: ArchetypeBOGO, BuyQuantity: 2, GetQuantity: 1},
			items: []Item{
				{ProductID: "p1", UnitPrice: d("10"), Quantity: 7},
			},
			// sets = floor(7/3) = 2, freeUnits = 2
			want: d("20"),
		},
		{
			name:   "bogo allocates free units cheapest line first",
			coupon: &Coupon{Code: "B1G1", Archetype: ArchetypeBOGO, BuyQuantity: 1, GetQuantity: 1},
			items: []Item{
				{ProductID: "p1", UnitPrice: d("30"), Quantity: 2},
				{ProductID: "p2", UnitPrice: d("5"), Quantity: 2},
			},
			// sets = floor(4/2) = 2, freeUnits = 2, both taken from the $5 line
			want: d("10"),
		},
		{
			name:   "bogo partial consumption spills into next cheapest line",
			coupon: &Coupon{Code: "B1G2", Archetype: ArchetypeBOGO, BuyQuantity: 1, GetQuantity: 2},
			items: []Item{
				{ProductID: "p1", UnitPrice: d("20"), Quantity: 3},
				{ProductID: "p2", UnitPrice: d("4"), Quantity: 3},
			},
			// sets = floor(6/3) = 2, freeUnits = 4: 3 units at $4 + 1 unit at $20
			want: d("32"),
		},
		{
			name:   "bogo below one set yields zero",
			coupon: &Coupon{Code: "B2G1", Archetype: ArchetypeBOGO, BuyQuantity: 2, GetQuantity: 1},
			items: []Item{
				{ProductID: "p1", UnitPrice: d("10"), Quantity: 2},
			},
			want: d("0"),
		},
		{
			name:   "buy_x_get_y threshold met grants a single batch",
			coupon: &Coupon{Code: "BX", Archetype: ArchetypeBuyXGetY, BuyQuantity: 3, GetQuantity: 2},
			items: []Item{
				{ProductID: "p1", UnitPrice: d("8"), Quantity: 9},
			},
			// not repeating: exactly GetQuantity free units
			want: d("16"),
		},
		{
			name:   "buy_x_get_y threshold not met",
			coupon: &Coupon{Code: "BX", Archetype: ArchetypeBuyXGetY, BuyQuantity: 5, GetQuantity: 2},
			items: []Item{
				{ProductID: "p1", UnitPrice: d("8"), Quantity: 4},
			},
			want: d("0"),
		},
		{
			name:   "free shipping waives the carried value",
			coupon: &Coupon{Code: "SHIP", Archetype: ArchetypeFreeShipping, Value: d("6.99")},
			items: []Item{
				{ProductID: "p1", UnitPrice: d("3"), Quantity: 1},
			},
			want: d("6.99"),
		},
		{
			name:        "unsupported archetype",
			coupon:      &Coupon{Code: "BAD", Archetype: Archetype("bogus")},
			items:       []Item{{ProductID: "p1", UnitPrice: d("10"), Quantity: 1}},
			wantErrText: "unsupported coupon archetype",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeDiscount(tt.coupon, ApplicableLines(tt.coupon, tt.items))

			if tt.wantErrText != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrText)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)

			// Discounts are bounded by what is being discounted, except free
			// shipping which waives a caller-supplied cost.
			if tt.coupon.Archetype != ArchetypeFreeShipping {
				subtotal := linesSubtotal(ApplicableLines(tt.coupon, tt.items))
				assert.True(t, got.GreaterThanOrEqual(decimal.Zero))
				assert.True(t, got.LessThanOrEqual(subtotal))
			}
		})
	}
}

func TestApplicableLines(t *testing.T) {
	items := []Item{
		{ProductID: "p1", Category: "drinks", UnitPrice: d("4"), Quantity: 1},
		{ProductID: "p2", Category: "food", UnitPrice: d("12"), Quantity: 1},
		{ProductID: "p3", Category: "food", UnitPrice: d("7"), Quantity: 2},
	}

	tests := []struct {
		name   string
		coupon *Coupon
		want   []string
	}{
		{
			name:   "no restrictions keeps every line",
			coupon: &Coupon{Code: "ALL"},
			want:   []string{"p1", "p2", "p3"},
		},
		{
			name:   "excluded products are dropped",
			coupon: &Coupon{Code: "NOX", ExcludedProducts: []string{"p2"}},
			want:   []string{"p1", "p3"},
		},
		{
			name:   "product allow-list filters",
			coupon: &Coupon{Code: "ONLY", ApplicableProducts: []string{"p3"}},
			want:   []string{"p3"},
		},
		{
			name:   "category allow-list filters",
			coupon: &Coupon{Code: "FOOD", ApplicableCategories: []string{"food"}},
			want:   []string{"p2", "p3"},
		},
		{
			name: "exclusion wins over allow-list",
			coupon: &Coupon{
				Code:                 "MIX",
				ApplicableCategories: []string{"food"},
				ExcludedProducts:     []string{"p2"},
			},
			want: []string{"p3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplicableLines(tt.coupon, items)
			ids := make([]string, len(got))
			for i, it := range got {
				ids[i] = it.ProductID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
