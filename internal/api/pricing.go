package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/apipat2499/omni-sales-sub006/internal/domain/coupon"
	"github.com/apipat2499/omni-sales-sub006/internal/domain/pricing"
	"github.com/apipat2499/omni-sales-sub006/internal/domain/tax"
)

type quoteRequest struct {
	Items        []itemDTO   `json:"items"`
	Customer     customerDTO `json:"customer"`
	CouponCodes  []string    `json:"couponCodes"`
	TaxInclusive bool        `json:"taxInclusive"`
}

// quote prices an order end to end: coupon stacking against the raw subtotal,
// then tax on the discounted remainder.
func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateItems(req.Items); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	q, err := h.orchestrator.Quote(r.Context(), toDomainItems(req.Items),
		coupon.Customer{ID: req.Customer.ID, Tier: req.Customer.Tier},
		req.CouponCodes, req.TaxInclusive)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		encodeQuote(e, q)
	})
}

func encodeQuote(e *jx.Encoder, q *pricing.Quote) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, q.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, q.Discount) })
		e.Field("discountedSubtotal", func(e *jx.Encoder) { encodeMoney(e, q.DiscountedSubtotal) })
		e.Field("taxAmount", func(e *jx.Encoder) { encodeMoney(e, q.TaxAmount) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, q.Total) })
		e.Field("appliedCoupons", func(e *jx.Encoder) { encodeAppliedCoupons(e, q.AppliedCoupons) })
		e.Field("conflicts", func(e *jx.Encoder) { encodeStrings(e, q.Conflicts) })
		e.Field("warnings", func(e *jx.Encoder) { encodeStrings(e, q.Warnings) })
		e.Field("taxBreakdown", func(e *jx.Encoder) { encodeTaxBreakdown(e, q.TaxBreakdown) })
		e.Field("taxInclusive", func(e *jx.Encoder) { e.Bool(q.TaxInclusive) })
	})
}

func encodeAppliedCoupons(e *jx.Encoder, applied []coupon.AppliedCoupon) {
	e.Arr(func(e *jx.Encoder) {
		for _, a := range applied {
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Str(a.Code) })
				e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, a.Discount) })
				e.Field("stackable", func(e *jx.Encoder) { e.Bool(a.Stackable) })
				e.Field("message", func(e *jx.Encoder) { e.Str(a.Message) })
			})
		}
	})
}

func encodeTaxBreakdown(e *jx.Encoder, breakdown []tax.Line) {
	e.Arr(func(e *jx.Encoder) {
		for _, line := range breakdown {
			e.Obj(func(e *jx.Encoder) {
				e.Field("configId", func(e *jx.Encoder) { e.Str(line.ConfigID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(line.Name) })
				e.Field("type", func(e *jx.Encoder) { e.Str(string(line.Type)) })
				e.Field("rate", func(e *jx.Encoder) { e.Float64(line.Rate.InexactFloat64()) })
				e.Field("amount", func(e *jx.Encoder) { encodeMoney(e, line.Amount) })
				e.Field("isInclusive", func(e *jx.Encoder) { e.Bool(line.IsInclusive) })
			})
		}
	})
}
