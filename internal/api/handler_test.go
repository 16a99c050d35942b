package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apipat2499/omni-sales-sub006/internal/domain/auth"
	"github.com/apipat2499/omni-sales-sub006/internal/domain/coupon"
	"github.com/apipat2499/omni-sales-sub006/internal/domain/loyalty"
	"github.com/apipat2499/omni-sales-sub006/internal/domain/pricing"
	"github.com/apipat2499/omni-sales-sub006/internal/domain/tax"
)

// --- Mock implementations ---

type mockCouponRepo struct {
	coupons map[string]*coupon.Coupon
	usage   map[string]int
	saved   *coupon.Coupon
	listErr error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCouponRepo) List(_ context.Context, activeOnly bool) ([]coupon.Coupon, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []coupon.Coupon
	for _, c := range m.coupons {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCouponRepo) Save(_ context.Context, c *coupon.Coupon) error {
	m.saved = c
	return nil
}

func (m *mockCouponRepo) Delete(_ context.Context, code string) error {
	if _, ok := m.coupons[strings.ToUpper(code)]; !ok {
		return coupon.ErrNotFound
	}
	delete(m.coupons, strings.ToUpper(code))
	return nil
}

func (m *mockCouponRepo) IncrementUsage(_ context.Context, _, _ string) error {
	return nil
}

func (m *mockCouponRepo) CustomerUsage(_ context.Context, customerID, code string) (int, error) {
	return m.usage[customerID+"/"+code], nil
}

type mockTaxRepo struct {
	configs []tax.Config
	err     error
}

func (m *mockTaxRepo) ListActive(_ context.Context) ([]tax.Config, error) {
	return m.configs, m.err
}

type mockAccountRepo struct {
	accounts map[string]*loyalty.Account
}

func (m *mockAccountRepo) Get(_ context.Context, customerID string) (*loyalty.Account, error) {
	a, ok := m.accounts[customerID]
	if !ok {
		return nil, loyalty.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccountRepo) Save(_ context.Context, account *loyalty.Account) error {
	if m.accounts == nil {
		m.accounts = make(map[string]*loyalty.Account)
	}
	m.accounts[account.CustomerID] = account
	return nil
}

type mockAPIKeyRepo struct {
	info *auth.KeyInfo
	err  error
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, _ string) (*auth.KeyInfo, error) {
	return m.info, m.err
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type testEnv struct {
	coupons  *mockCouponRepo
	taxes    *mockTaxRepo
	accounts *mockAccountRepo
	mux      *http.ServeMux
}

func newTestEnv() *testEnv {
	env := &testEnv{
		coupons:  &mockCouponRepo{coupons: map[string]*coupon.Coupon{}, usage: map[string]int{}},
		taxes:    &mockTaxRepo{},
		accounts: &mockAccountRepo{accounts: map[string]*loyalty.Account{}},
	}

	validator := coupon.NewPolicyValidator(env.coupons)
	resolver := coupon.NewResolver(validator)
	ledger := loyalty.NewLedger(env.accounts, loyalty.Config{
		PointsPerDollar:   d("1"),
		DollarsPerPoint:   d("0.01"),
		MinimumRedemption: 100,
		TierMultipliers:   map[string]decimal.Decimal{"vip": d("2")},
	})
	engine := tax.NewEngine(env.taxes)
	orchestrator := pricing.NewOrchestrator(resolver, engine)

	h := NewHandler(env.coupons, validator, resolver, ledger, env.accounts, engine, orchestrator)
	env.mux = h.Routes()
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func percentCoupon(code, value string, stackable bool) *coupon.Coupon {
	return &coupon.Coupon{
		Code:        code,
		Archetype:   coupon.ArchetypePercentage,
		Value:       d(value),
		IsActive:    true,
		IsStackable: stackable,
	}
}

func orderItems() []map[string]any {
	return []map[string]any{
		{"productId": "p1", "category": "food", "quantity": 2, "unitPrice": 25},
		{"productId": "p2", "category": "drink", "quantity": 1, "unitPrice": 50},
	}
}

// --- Tests ---

func TestQuote(t *testing.T) {
	env := newTestEnv()
	env.coupons.coupons["SAVE10"] = percentCoupon("SAVE10", "10", true)
	env.taxes.configs = []tax.Config{{
		ID: "vat", Name: "VAT", Type: tax.TypeVAT, Rate: d("10"), IsActive: true,
	}}

	rec := env.do(t, http.MethodPost, "/api/quote", map[string]any{
		"items":       orderItems(),
		"customer":    map[string]any{"id": "c1"},
		"couponCodes": []string{"SAVE10"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.InDelta(t, 100.0, body["subtotal"], 0.001)
	assert.InDelta(t, 10.0, body["discount"], 0.001)
	assert.InDelta(t, 90.0, body["discountedSubtotal"], 0.001)
	assert.InDelta(t, 9.0, body["taxAmount"], 0.001)
	assert.InDelta(t, 99.0, body["total"], 0.001)

	applied, ok := body["appliedCoupons"].([]any)
	require.True(t, ok)
	require.Len(t, applied, 1)
}

func TestQuote_BadRequest(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name string
		req  map[string]any
		want string
	}{
		{
			name: "empty items",
			req:  map[string]any{"items": []map[string]any{}},
			want: "items required",
		},
		{
			name: "zero quantity",
			req: map[string]any{"items": []map[string]any{
				{"productId": "p1", "quantity": 0, "unitPrice": 10},
			}},
			want: "quantity must be greater than 0",
		},
		{
			name: "negative price",
			req: map[string]any{"items": []map[string]any{
				{"productId": "p1", "quantity": 1, "unitPrice": -1},
			}},
			want: "unitPrice must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/quote", tt.req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			assert.Contains(t, body["message"], tt.want)
		})
	}
}

func TestValidateCoupon(t *testing.T) {
	env := newTestEnv()
	env.coupons.coupons["SAVE10"] = percentCoupon("SAVE10", "10", true)

	t.Run("valid", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/coupons/validate", map[string]any{
			"code":  "SAVE10",
			"items": orderItems(),
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, true, body["valid"])
		assert.InDelta(t, 10.0, body["discount"], 0.001)
		assert.Equal(t, true, body["stackable"])
	})

	t.Run("unknown code is invalid, not an error", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/coupons/validate", map[string]any{
			"code":  "BOGUS",
			"items": orderItems(),
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, false, body["valid"])
		assert.Equal(t, "not_found", body["reason"])
	})

	t.Run("explicit zero subtotal is honored", func(t *testing.T) {
		capped := percentCoupon("MIN20", "10", true)
		capped.MinOrderValue = d("20")
		env.coupons.coupons["MIN20"] = capped

		// Items sum to 100, but the caller-provided subtotal of 0 must win.
		rec := env.do(t, http.MethodPost, "/api/coupons/validate", map[string]any{
			"code":     "MIN20",
			"items":    orderItems(),
			"subtotal": 0,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, false, body["valid"])
		assert.Equal(t, "min_order_not_met", body["reason"])
	})

	t.Run("missing code returns 400", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/coupons/validate", map[string]any{
			"items": orderItems(),
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStackCoupons(t *testing.T) {
	env := newTestEnv()
	env.coupons.coupons["SAVE10"] = percentCoupon("SAVE10", "10", true)
	env.coupons.coupons["EXTRA5"] = percentCoupon("EXTRA5", "5", true)
	env.coupons.coupons["SOLO20"] = percentCoupon("SOLO20", "20", false)

	t.Run("stackable codes combine", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/coupons/stack", map[string]any{
			"codes": []string{"SAVE10", "EXTRA5"},
			"items": orderItems(),
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.InDelta(t, 15.0, body["totalDiscount"], 0.001)
		applied := body["appliedCoupons"].([]any)
		assert.Len(t, applied, 2)
	})

	t.Run("exclusive first blocks the rest", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/coupons/stack", map[string]any{
			"codes": []string{"SOLO20", "SAVE10"},
			"items": orderItems(),
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.InDelta(t, 20.0, body["totalDiscount"], 0.001)
		conflicts := body["conflicts"].([]any)
		assert.Len(t, conflicts, 1)
	})

	t.Run("empty codes returns 400", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/coupons/stack", map[string]any{
			"items": orderItems(),
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSaveCoupon(t *testing.T) {
	t.Run("valid coupon is created", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/api/coupons", map[string]any{
			"code":      "SAVE10",
			"archetype": "percentage",
			"value":     10,
			"isActive":  true,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, env.coupons.saved)
		assert.Equal(t, "SAVE10", env.coupons.saved.Code)
	})

	t.Run("caps and quantities survive the round trip", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/api/coupons", map[string]any{
			"code":                 "BOGO21",
			"archetype":            "bogo",
			"buyQuantity":          2,
			"getQuantity":          1,
			"maxUsages":            100,
			"maxUsagesPerCustomer": 3,
			"isActive":             true,
			"metadata":             map[string]string{"campaign": "summer"},
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		require.NotNil(t, env.coupons.saved)
		assert.Equal(t, 2, env.coupons.saved.BuyQuantity)
		assert.Equal(t, 100, env.coupons.saved.MaxUsages)

		body := decodeBody(t, rec)
		assert.InDelta(t, 2, body["buyQuantity"], 0.001)
		assert.InDelta(t, 1, body["getQuantity"], 0.001)
		assert.InDelta(t, 100, body["maxUsages"], 0.001)
		assert.InDelta(t, 3, body["maxUsagesPerCustomer"], 0.001)

		metadata, ok := body["metadata"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "summer", metadata["campaign"])
	})

	t.Run("invalid configuration returns all violations", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/api/coupons", map[string]any{
			"code":      "",
			"archetype": "percentage",
			"value":     150,
		})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		body := decodeBody(t, rec)
		violations := body["violations"].([]any)
		assert.GreaterOrEqual(t, len(violations), 2)
		assert.Nil(t, env.coupons.saved)
	})
}

func TestDeleteCoupon(t *testing.T) {
	env := newTestEnv()
	env.coupons.coupons["SAVE10"] = percentCoupon("SAVE10", "10", true)

	rec := env.do(t, http.MethodDelete, "/api/coupons/SAVE10", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/coupons/SAVE10", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCoupons(t *testing.T) {
	env := newTestEnv()
	env.coupons.coupons["SAVE10"] = percentCoupon("SAVE10", "10", true)
	inactive := percentCoupon("OLD", "5", true)
	inactive.IsActive = false
	env.coupons.coupons["OLD"] = inactive

	rec := env.do(t, http.MethodGet, "/api/coupons", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = env.do(t, http.MethodGet, "/api/coupons?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	assert.Len(t, active, 1)
}

func TestCalculateTax(t *testing.T) {
	t.Run("inline configs", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/api/tax/calculate", map[string]any{
			"items": orderItems(),
			"configs": []map[string]any{
				{"id": "vat", "name": "VAT", "type": "vat", "rate": 7, "isActive": true},
			},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.InDelta(t, 100.0, body["subtotal"], 0.001)
		assert.InDelta(t, 7.0, body["taxAmount"], 0.001)
		assert.InDelta(t, 107.0, body["total"], 0.001)
	})

	t.Run("stored configs are used when none given", func(t *testing.T) {
		env := newTestEnv()
		env.taxes.configs = []tax.Config{{
			ID: "gst", Name: "GST", Type: tax.TypeGST, Rate: d("5"), IsActive: true,
		}}

		rec := env.do(t, http.MethodPost, "/api/tax/calculate", map[string]any{
			"items": orderItems(),
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.InDelta(t, 5.0, body["taxAmount"], 0.001)
	})

	t.Run("invalid inline config returns violations", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/api/tax/calculate", map[string]any{
			"items": orderItems(),
			"configs": []map[string]any{
				{"id": "", "name": "", "type": "vat", "rate": -1},
			},
		})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestListTaxConfigs(t *testing.T) {
	env := newTestEnv()
	env.taxes.configs = []tax.Config{
		{ID: "vat", Name: "VAT", Type: tax.TypeVAT, Rate: d("7"), IsActive: true},
	}

	rec := env.do(t, http.MethodGet, "/api/tax/configs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var configs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &configs))
	require.Len(t, configs, 1)
	assert.Equal(t, "vat", configs[0]["id"])
}

func TestLoyaltyEndpoints(t *testing.T) {
	t.Run("earn credits floor of amount times rate", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/api/loyalty/c1/earn", map[string]any{
			"amount": 10.99,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.InDelta(t, 10, body["pointsEarned"], 0.001)
	})

	t.Run("earn rejects negative amount", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/api/loyalty/c1/earn", map[string]any{
			"amount": -5,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("redeem below minimum returns 422", func(t *testing.T) {
		env := newTestEnv()
		env.accounts.accounts["c1"] = &loyalty.Account{CustomerID: "c1", Balance: 500}

		rec := env.do(t, http.MethodPost, "/api/loyalty/c1/redeem", map[string]any{
			"points": 50,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("redeem insufficient balance returns 422", func(t *testing.T) {
		env := newTestEnv()
		env.accounts.accounts["c1"] = &loyalty.Account{CustomerID: "c1", Balance: 100}

		rec := env.do(t, http.MethodPost, "/api/loyalty/c1/redeem", map[string]any{
			"points": 200,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("redeem returns monetary value", func(t *testing.T) {
		env := newTestEnv()
		env.accounts.accounts["c1"] = &loyalty.Account{CustomerID: "c1", Balance: 500}

		rec := env.do(t, http.MethodPost, "/api/loyalty/c1/redeem", map[string]any{
			"points": 200,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.InDelta(t, 2.0, body["value"], 0.001)
		assert.Equal(t, int64(300), env.accounts.accounts["c1"].Balance)
	})

	t.Run("get missing account returns 404", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodGet, "/api/loyalty/missing", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("get returns account state", func(t *testing.T) {
		env := newTestEnv()
		env.accounts.accounts["c1"] = &loyalty.Account{
			CustomerID: "c1", Balance: 42, LifetimeEarned: 100, Tier: "vip",
		}

		rec := env.do(t, http.MethodGet, "/api/loyalty/c1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.InDelta(t, 42, body["balance"], 0.001)
		assert.Equal(t, "vip", body["tier"])
	})

	t.Run("expire on missing account is a no-op", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/api/loyalty/missing/expire", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.InDelta(t, 0, body["pointsExpired"], 0.001)
	})
}

func TestRequireAPIKey(t *testing.T) {
	pepper := []byte("test-pepper")
	apiKey := "my-secret-key"

	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(apiKey))
	hexHash := hex.EncodeToString(mac.Sum(nil))

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid key passes through", func(t *testing.T) {
		sec := NewSecurityHandler(&mockAPIKeyRepo{
			info: &auth.KeyInfo{ID: "key-1", KeyHash: hexHash, Name: "test-key"},
		}, pepper)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("api_key", apiKey)
		rec := httptest.NewRecorder()
		sec.RequireAPIKey(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing key returns 401", func(t *testing.T) {
		sec := NewSecurityHandler(&mockAPIKeyRepo{}, pepper)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		sec.RequireAPIKey(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown key returns 401", func(t *testing.T) {
		sec := NewSecurityHandler(&mockAPIKeyRepo{err: errors.New("not found")}, pepper)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("api_key", "bad-key")
		rec := httptest.NewRecorder()
		sec.RequireAPIKey(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("stale stored hash returns 401", func(t *testing.T) {
		sec := NewSecurityHandler(&mockAPIKeyRepo{
			info: &auth.KeyInfo{ID: "key-1", KeyHash: strings.Repeat("ab", 32), Name: "stale"},
		}, pepper)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("api_key", apiKey)
		rec := httptest.NewRecorder()
		sec.RequireAPIKey(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
