package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/apipat2499/omni-sales-sub006/internal/domain/coupon"
)

type validateCouponRequest struct {
	Code     string      `json:"code"`
	Items    []itemDTO   `json:"items"`
	Customer customerDTO `json:"customer"`
	// Subtotal overrides the sum of the items when present; nil means
	// "compute it from the items". A pointer keeps an explicit zero
	// distinguishable from an absent field.
	Subtotal *decimal.Decimal `json:"subtotal"`
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, r, http.StatusBadRequest, "code is required")
		return
	}
	if msg := validateItems(req.Items); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	items := toDomainItems(req.Items)
	subtotal := orderSubtotal(items)
	if req.Subtotal != nil {
		subtotal = *req.Subtotal
	}

	v, err := h.validator.Validate(r.Context(), req.Code, items,
		coupon.Customer{ID: req.Customer.ID, Tier: req.Customer.Tier}, subtotal)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("valid", func(e *jx.Encoder) { e.Bool(v.Valid) })
			e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, v.Discount) })
			e.Field("message", func(e *jx.Encoder) { e.Str(v.Message) })
			if v.Reason != "" {
				e.Field("reason", func(e *jx.Encoder) { e.Str(string(v.Reason)) })
			}
			e.Field("stackable", func(e *jx.Encoder) { e.Bool(v.Stackable) })
		})
	})
}

type stackCouponsRequest struct {
	Codes    []string    `json:"codes"`
	Items    []itemDTO   `json:"items"`
	Customer customerDTO `json:"customer"`
}

func (h *Handler) stackCoupons(w http.ResponseWriter, r *http.Request) {
	var req stackCouponsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Codes) == 0 {
		writeError(w, r, http.StatusBadRequest, "codes is required")
		return
	}
	if msg := validateItems(req.Items); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	items := toDomainItems(req.Items)
	res, err := h.resolver.Resolve(r.Context(), items,
		coupon.Customer{ID: req.Customer.ID, Tier: req.Customer.Tier}, req.Codes, orderSubtotal(items))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("totalDiscount", func(e *jx.Encoder) { encodeMoney(e, res.TotalDiscount) })
			e.Field("appliedCoupons", func(e *jx.Encoder) { encodeAppliedCoupons(e, res.AppliedCoupons) })
			e.Field("conflicts", func(e *jx.Encoder) { encodeStrings(e, res.Conflicts) })
			e.Field("warnings", func(e *jx.Encoder) { encodeStrings(e, res.Warnings) })
		})
	})
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	coupons, err := h.coupons.List(r.Context(), activeOnly)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range coupons {
				encodeCoupon(e, &coupons[i])
			}
		})
	})
}

type couponDTO struct {
	Code                 string            `json:"code"`
	Archetype            string            `json:"archetype"`
	Value                decimal.Decimal   `json:"value"`
	Description          string            `json:"description"`
	ValidFrom            *time.Time        `json:"validFrom"`
	ValidUntil           *time.Time        `json:"validUntil"`
	MinOrderValue        decimal.Decimal   `json:"minOrderValue"`
	MaxDiscount          decimal.Decimal   `json:"maxDiscount"`
	ApplicableProducts   []string          `json:"applicableProducts"`
	ExcludedProducts     []string          `json:"excludedProducts"`
	ApplicableCategories []string          `json:"applicableCategories"`
	MaxUsages            int               `json:"maxUsages"`
	UsageCount           int               `json:"usageCount"`
	MaxUsagesPerCustomer int               `json:"maxUsagesPerCustomer"`
	AllowedCustomers     []string          `json:"allowedCustomers"`
	AllowedTiers         []string          `json:"allowedTiers"`
	IsActive             bool              `json:"isActive"`
	IsStackable          bool              `json:"isStackable"`
	BuyQuantity          int               `json:"buyQuantity"`
	GetQuantity          int               `json:"getQuantity"`
	Metadata             map[string]string `json:"metadata"`
}

func (h *Handler) saveCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	c := coupon.Coupon{
		Code:                 req.Code,
		Archetype:            coupon.Archetype(req.Archetype),
		Value:                req.Value,
		Description:          req.Description,
		ValidFrom:            req.ValidFrom,
		ValidUntil:           req.ValidUntil,
		MinOrderValue:        req.MinOrderValue,
		MaxDiscount:          req.MaxDiscount,
		ApplicableProducts:   req.ApplicableProducts,
		ExcludedProducts:     req.ExcludedProducts,
		ApplicableCategories: req.ApplicableCategories,
		MaxUsages:            req.MaxUsages,
		UsageCount:           req.UsageCount,
		MaxUsagesPerCustomer: req.MaxUsagesPerCustomer,
		AllowedCustomers:     req.AllowedCustomers,
		AllowedTiers:         req.AllowedTiers,
		IsActive:             req.IsActive,
		IsStackable:          req.IsStackable,
		BuyQuantity:          req.BuyQuantity,
		GetQuantity:          req.GetQuantity,
		Metadata:             req.Metadata,
	}

	if violations := coupon.CheckConfig(&c); len(violations) > 0 {
		writeViolations(w, r, "invalid coupon configuration", violations)
		return
	}

	if err := h.coupons.Save(r.Context(), &c); err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, func(e *jx.Encoder) {
		encodeCoupon(e, &c)
	})
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	if err := h.coupons.Delete(r.Context(), code); err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "coupon not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("archetype", func(e *jx.Encoder) { e.Str(string(c.Archetype)) })
		e.Field("value", func(e *jx.Encoder) { encodeMoney(e, c.Value) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
		e.Field("validFrom", func(e *jx.Encoder) { encodeTime(e, c.ValidFrom) })
		e.Field("validUntil", func(e *jx.Encoder) { encodeTime(e, c.ValidUntil) })
		e.Field("minOrderValue", func(e *jx.Encoder) { encodeMoney(e, c.MinOrderValue) })
		e.Field("maxDiscount", func(e *jx.Encoder) { encodeMoney(e, c.MaxDiscount) })
		e.Field("applicableProducts", func(e *jx.Encoder) { encodeStrings(e, c.ApplicableProducts) })
		e.Field("excludedProducts", func(e *jx.Encoder) { encodeStrings(e, c.ExcludedProducts) })
		e.Field("applicableCategories", func(e *jx.Encoder) { encodeStrings(e, c.ApplicableCategories) })
		e.Field("maxUsages", func(e *jx.Encoder) { e.Int(c.MaxUsages) })
		e.Field("usageCount", func(e *jx.Encoder) { e.Int(c.UsageCount) })
		e.Field("maxUsagesPerCustomer", func(e *jx.Encoder) { e.Int(c.MaxUsagesPerCustomer) })
		e.Field("allowedCustomers", func(e *jx.Encoder) { encodeStrings(e, c.AllowedCustomers) })
		e.Field("allowedTiers", func(e *jx.Encoder) { encodeStrings(e, c.AllowedTiers) })
		e.Field("isActive", func(e *jx.Encoder) { e.Bool(c.IsActive) })
		e.Field("isStackable", func(e *jx.Encoder) { e.Bool(c.IsStackable) })
		e.Field("buyQuantity", func(e *jx.Encoder) { e.Int(c.BuyQuantity) })
		e.Field("getQuantity", func(e *jx.Encoder) { e.Int(c.GetQuantity) })
		e.Field("metadata", func(e *jx.Encoder) { encodeMetadata(e, c.Metadata) })
	})
}

// encodeMetadata writes the metadata map with sorted keys so responses are
// deterministic.
func encodeMetadata(e *jx.Encoder, metadata map[string]string) {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.Obj(func(e *jx.Encoder) {
		for _, k := range keys {
			e.Field(k, func(e *jx.Encoder) { e.Str(metadata[k]) })
		}
	})
}

func encodeTime(e *jx.Encoder, t *time.Time) {
	if t == nil {
		e.Null()
		return
	}
	e.Str(t.Format(time.RFC3339))
}
