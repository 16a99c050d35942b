package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/apipat2499/omni-sales-sub006/internal/domain/loyalty"
)

func (h *Handler) getLoyaltyAccount(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")

	account, err := h.accounts.Get(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, loyalty.ErrAccountNotFound) {
			writeError(w, r, http.StatusNotFound, "loyalty account not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		encodeLoyaltyAccount(e, account)
	})
}

type earnPointsRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) earnPoints(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")

	var req earnPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount.IsNegative() {
		writeError(w, r, http.StatusBadRequest, "amount must not be negative")
		return
	}

	earned, err := h.ledger.Accrue(r.Context(), customerID, req.Amount)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("customerId", func(e *jx.Encoder) { e.Str(customerID) })
			e.Field("pointsEarned", func(e *jx.Encoder) { e.Int64(earned) })
		})
	})
}

type redeemPointsRequest struct {
	Points int64 `json:"points"`
}

func (h *Handler) redeemPoints(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")

	var req redeemPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	value, err := h.ledger.Redeem(r.Context(), customerID, req.Points)
	if err != nil {
		switch {
		case errors.Is(err, loyalty.ErrBelowMinimumRedemption),
			errors.Is(err, loyalty.ErrInsufficientPoints):
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		default:
			writeInternalError(w, r, err)
		}
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("customerId", func(e *jx.Encoder) { e.Str(customerID) })
			e.Field("pointsRedeemed", func(e *jx.Encoder) { e.Int64(req.Points) })
			e.Field("value", func(e *jx.Encoder) { encodeMoney(e, value) })
		})
	})
}

func (h *Handler) expirePoints(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")

	expired, err := h.ledger.ExpirePoints(r.Context(), customerID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("customerId", func(e *jx.Encoder) { e.Str(customerID) })
			e.Field("pointsExpired", func(e *jx.Encoder) { e.Int64(expired) })
		})
	})
}

func encodeLoyaltyAccount(e *jx.Encoder, account *loyalty.Account) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("customerId", func(e *jx.Encoder) { e.Str(account.CustomerID) })
		e.Field("balance", func(e *jx.Encoder) { e.Int64(account.Balance) })
		e.Field("lifetimeEarned", func(e *jx.Encoder) { e.Int64(account.LifetimeEarned) })
		e.Field("tier", func(e *jx.Encoder) { e.Str(account.Tier) })
		e.Field("lots", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, lot := range account.Lots {
					e.Obj(func(e *jx.Encoder) {
						e.Field("points", func(e *jx.Encoder) { e.Int64(lot.Points) })
						e.Field("expiresAt", func(e *jx.Encoder) { e.Str(lot.ExpiresAt.Format(time.RFC3339)) })
					})
				}
			})
		})
		e.Field("transactions", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, txn := range account.Transactions {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(txn.ID) })
						e.Field("type", func(e *jx.Encoder) { e.Str(string(txn.Type)) })
						e.Field("points", func(e *jx.Encoder) { e.Int64(txn.Points) })
						e.Field("description", func(e *jx.Encoder) { e.Str(txn.Description) })
						e.Field("createdAt", func(e *jx.Encoder) { e.Str(txn.CreatedAt.Format(time.RFC3339)) })
					})
				}
			})
		})
	})
}
