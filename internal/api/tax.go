package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/apipat2499/omni-sales-sub006/internal/domain/tax"
)

type taxConfigDTO struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Type               string          `json:"type"`
	Rate               decimal.Decimal `json:"rate"`
	IsInclusive        bool            `json:"isInclusive"`
	ApplicableProducts []string        `json:"applicableProducts"`
	IsActive           bool            `json:"isActive"`
}

type calculateTaxRequest struct {
	Items        []itemDTO      `json:"items"`
	Configs      []taxConfigDTO `json:"configs"`
	TaxInclusive bool           `json:"taxInclusive"`
}

// calculateTax applies either the inline configs from the request or, when
// none are given, the active configs from storage.
func (h *Handler) calculateTax(w http.ResponseWriter, r *http.Request) {
	var req calculateTaxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateItems(req.Items); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	items := toTaxItems(req.Items)

	var (
		calc *tax.Calculation
		err  error
	)
	if len(req.Configs) > 0 {
		configs := make([]tax.Config, 0, len(req.Configs))
		for _, dto := range req.Configs {
			cfg := toTaxConfig(dto)
			if violations := tax.CheckConfig(&cfg); len(violations) > 0 {
				writeViolations(w, r, "invalid tax configuration", violations)
				return
			}
			configs = append(configs, cfg)
		}
		c := tax.Calculate(items, configs, req.TaxInclusive)
		calc = &c
	} else {
		calc, err = h.taxes.CalculateActive(r.Context(), items, req.TaxInclusive)
		if err != nil {
			writeInternalError(w, r, err)
			return
		}
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, calc.Subtotal) })
			e.Field("taxAmount", func(e *jx.Encoder) { encodeMoney(e, calc.TaxAmount) })
			e.Field("total", func(e *jx.Encoder) { encodeMoney(e, calc.Total) })
			e.Field("breakdown", func(e *jx.Encoder) { encodeTaxBreakdown(e, calc.Breakdown) })
			e.Field("isInclusive", func(e *jx.Encoder) { e.Bool(calc.IsInclusive) })
		})
	})
}

func (h *Handler) listTaxConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.taxes.ActiveConfigs(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range configs {
				encodeTaxConfig(e, &configs[i])
			}
		})
	})
}

func toTaxConfig(dto taxConfigDTO) tax.Config {
	return tax.Config{
		ID:                 dto.ID,
		Name:               dto.Name,
		Type:               tax.Type(dto.Type),
		Rate:               dto.Rate,
		IsInclusive:        dto.IsInclusive,
		ApplicableProducts: dto.ApplicableProducts,
		IsActive:           dto.IsActive,
	}
}

func encodeTaxConfig(e *jx.Encoder, cfg *tax.Config) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(cfg.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(cfg.Name) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(cfg.Type)) })
		e.Field("rate", func(e *jx.Encoder) { e.Float64(cfg.Rate.InexactFloat64()) })
		e.Field("isInclusive", func(e *jx.Encoder) { e.Bool(cfg.IsInclusive) })
		e.Field("applicableProducts", func(e *jx.Encoder) { encodeStrings(e, cfg.ApplicableProducts) })
		e.Field("isActive", func(e *jx.Encoder) { e.Bool(cfg.IsActive) })
	})
}
