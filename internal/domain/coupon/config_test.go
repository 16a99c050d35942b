package coupon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckConfig(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	before := from.Add(-time.Hour)

	t.Run("well-formed coupon has no violations", func(t *testing.T) {
		c := &Coupon{
			Code:      "SPRING",
			Archetype: ArchetypePercentage,
			Value:     d("25"),
			IsActive:  true,
		}
		assert.Nil(t, CheckConfig(c))
	})

	t.Run("all violations reported together", func(t *testing.T) {
		c := &Coupon{
			Code:       "  ",
			Archetype:  ArchetypePercentage,
			Value:      d("150"),
			ValidFrom:  &from,
			ValidUntil: &before,
			MaxUsages:  10,
			UsageCount: 11,
		}
		got := CheckConfig(c)
		assert.Len(t, got, 4)
		assert.Contains(t, got, "code is required")
		assert.Contains(t, got, "percentage value must not exceed 100")
		assert.Contains(t, got, "validUntil must not be before validFrom")
		assert.Contains(t, got, "usageCount must not exceed maxUsages")
	})

	t.Run("bogo requires both quantities", func(t *testing.T) {
		c := &Coupon{Code: "B", Archetype: ArchetypeBOGO, Value: d("0")}
		got := CheckConfig(c)
		assert.Contains(t, got, "buyQuantity must be greater than 0")
		assert.Contains(t, got, "getQuantity must be greater than 0")
	})

	t.Run("negative value and caps", func(t *testing.T) {
		c := &Coupon{
			Code:          "NEG",
			Archetype:     ArchetypeFixed,
			Value:         d("-1"),
			MinOrderValue: d("-5"),
			MaxDiscount:   d("-2"),
		}
		got := CheckConfig(c)
		assert.Contains(t, got, "value must not be negative")
		assert.Contains(t, got, "minOrderValue must not be negative")
		assert.Contains(t, got, "maxDiscount must not be negative")
	})

	t.Run("unknown archetype", func(t *testing.T) {
		c := &Coupon{Code: "X", Archetype: Archetype("mystery"), Value: d("1")}
		assert.Contains(t, CheckConfig(c), `unknown archetype "mystery"`)
	})
}
