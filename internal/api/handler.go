// Package api exposes the pricing engine over a JSON HTTP surface.
package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/apipat2499/omni-sales-sub006/internal/domain/coupon"
	"github.com/apipat2499/omni-sales-sub006/internal/domain/loyalty"
	"github.com/apipat2499/omni-sales-sub006/internal/domain/pricing"
	"github.com/apipat2499/omni-sales-sub006/internal/domain/tax"
)

// Handler routes API requests to the pricing domain services.
type Handler struct {
	coupons      coupon.Repository
	validator    coupon.Validator
	resolver     *coupon.Resolver
	ledger       *loyalty.Ledger
	accounts     loyalty.Repository
	taxes        *tax.Engine
	orchestrator *pricing.Orchestrator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	coupons coupon.Repository,
	validator coupon.Validator,
	resolver *coupon.Resolver,
	ledger *loyalty.Ledger,
	accounts loyalty.Repository,
	taxes *tax.Engine,
	orchestrator *pricing.Orchestrator,
) *Handler {
	return &Handler{
		coupons:      coupons,
		validator:    validator,
		resolver:     resolver,
		ledger:       ledger,
		accounts:     accounts,
		taxes:        taxes,
		orchestrator: orchestrator,
	}
}

// Routes returns the API route table. Auth is applied by the caller.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/quote", h.quote)

	mux.HandleFunc("POST /api/coupons/validate", h.validateCoupon)
	mux.HandleFunc("POST /api/coupons/stack", h.stackCoupons)
	mux.HandleFunc("GET /api/coupons", h.listCoupons)
	mux.HandleFunc("POST /api/coupons", h.saveCoupon)
	mux.HandleFunc("DELETE /api/coupons/{code}", h.deleteCoupon)

	mux.HandleFunc("POST /api/tax/calculate", h.calculateTax)
	mux.HandleFunc("GET /api/tax/configs", h.listTaxConfigs)

	mux.HandleFunc("GET /api/loyalty/{customerID}", h.getLoyaltyAccount)
	mux.HandleFunc("POST /api/loyalty/{customerID}/earn", h.earnPoints)
	mux.HandleFunc("POST /api/loyalty/{customerID}/redeem", h.redeemPoints)
	mux.HandleFunc("POST /api/loyalty/{customerID}/expire", h.expirePoints)

	return mux
}

// --- Shared request DTOs ---

type itemDTO struct {
	ProductID    string          `json:"productId"`
	Category     string          `json:"category"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	LineDiscount decimal.Decimal `json:"lineDiscount"`
}

type customerDTO struct {
	ID   string `json:"id"`
	Tier string `json:"tier"`
}

func toDomainItems(items []itemDTO) []coupon.Item {
	out := make([]coupon.Item, len(items))
	for i, it := range items {
		out[i] = coupon.Item{
			ProductID:    it.ProductID,
			Category:     it.Category,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			LineDiscount: it.LineDiscount,
		}
	}
	return out
}

func toTaxItems(items []itemDTO) []tax.Item {
	out := make([]tax.Item, len(items))
	for i, it := range items {
		out[i] = tax.Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return out
}

// orderSubtotal is used when a request omits the precomputed subtotal.
func orderSubtotal(items []coupon.Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

func validateItems(items []itemDTO) string {
	if len(items) == 0 {
		return "items required"
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return "quantity must be greater than 0 for product " + it.ProductID
		}
		if it.UnitPrice.IsNegative() {
			return "unitPrice must not be negative for product " + it.ProductID
		}
	}
	return ""
}
