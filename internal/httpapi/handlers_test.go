package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"retailtrack/internal/cache"
	"retailtrack/internal/service"
	"retailtrack/internal/store/memory"
)

const testAdminPassword = "correct-horse-battery"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	repo := memory.New()
	svc := service.New(repo, cache.NoopReportCache{}, zerolog.Nop(), time.Second)
	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, repo, zerolog.Nop())
	require.NoError(t, auth.EnsureDefaultAdmin(context.Background(), "admin", testAdminPassword))

	srv := New(svc, auth, zerolog.Nop(), prometheus.NewRegistry(), Options{
		AllowedOrigin:  "http://127.0.0.1:3000",
		LoginRateLimit: 100,
	})
	return srv.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, router http.Handler, username, password string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.AccessToken)
	return resp.Data.AccessToken
}

func createItem(t *testing.T, router http.Handler, token string, name string, stock int, price float64) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/items", token, map[string]any{
		"itemName":     name,
		"currentStock": stock,
		"retailPrice":  price,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			ItemCode string `json:"itemCode"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.ItemCode
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestSaleAcceptsFullClientBody(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "admin", testAdminPassword)

	code := createItem(t, router, token, "Notebook A5", 5, 100)

	// the full body a POS client sends, denormalized fields included,
	// must survive strict decoding; amounts are recomputed server-side
	rec := doJSON(t, router, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items": []map[string]any{{
			"itemCode":   code,
			"itemName":   "Notebook A5",
			"quantity":   3,
			"price":      100,
			"discount":   0,
			"totalPrice": 300,
		}},
		"totalAmount":  300,
		"discount":     0,
		"paidAmount":   300,
		"paymentType":  "cash",
		"customerName": "Walk-in",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var saleResp struct {
		Data struct {
			NetValue     float64 `json:"netValue"`
			Balance      float64 `json:"balance"`
			CustomerName string  `json:"customerName"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saleResp))
	require.Equal(t, 300.0, saleResp.Data.NetValue)
	require.Equal(t, 0.0, saleResp.Data.Balance)
	require.Equal(t, "Walk-in", saleResp.Data.CustomerName)
}

func TestSaleLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "admin", testAdminPassword)

	code := createItem(t, router, token, "Notebook A5", 5, 100)
	require.Equal(t, "rt1", code)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items":    []map[string]any{{"itemCode": code, "quantity": 3}},
		"cashPaid": 300,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var saleResp struct {
		Data struct {
			ID       string  `json:"id"`
			NetValue float64 `json:"netValue"`
			Balance  float64 `json:"balance"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saleResp))
	require.NotEmpty(t, saleResp.Data.ID)
	require.Equal(t, 300.0, saleResp.Data.NetValue)
	require.Equal(t, 0.0, saleResp.Data.Balance)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/items/"+code, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var itemResp struct {
		Data struct {
			CurrentStock int `json:"currentStock"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &itemResp))
	require.Equal(t, 2, itemResp.Data.CurrentStock)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/sales", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Data, 1)
	require.Equal(t, saleResp.Data.ID, listResp.Data[0].ID)
}

func TestRecordSaleErrorMapping(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "admin", testAdminPassword)
	code := createItem(t, router, token, "Notebook A5", 5, 100)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items":    []map[string]any{{"itemCode": code, "quantity": 10}},
		"cashPaid": 1000,
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	require.Equal(t, "STOCK_ERROR", errorCode(t, rec))

	rec = doJSON(t, router, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items":    []map[string]any{{"itemCode": code, "quantity": 3}},
		"cashPaid": 50,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	require.Equal(t, "INSUFFICIENT_PAYMENT", errorCode(t, rec))

	rec = doJSON(t, router, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items":    []map[string]any{{"itemCode": "rt404", "quantity": 1}},
		"cashPaid": 100,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	// nothing above may have moved stock
	rec = doJSON(t, router, http.MethodGet, "/api/v1/items/"+code, token, nil)
	var itemResp struct {
		Data struct {
			CurrentStock int `json:"currentStock"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &itemResp))
	require.Equal(t, 5, itemResp.Data.CurrentStock)
}

func TestRejectsUnknownBodyFields(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "admin", testAdminPassword)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items":        []map[string]any{{"itemCode": "rt1", "quantity": 1}},
		"cashPaid":     100,
		"surpriseFlag": true,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestAuthAndRoleEnforcement(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/items", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/items", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	adminToken := login(t, router, "admin", testAdminPassword)
	rec = doJSON(t, router, http.MethodPost, "/api/v1/users", adminToken, map[string]any{
		"username": "clerk1",
		"password": "clerk-secret-1",
		"role":     "cashier",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	cashierToken := login(t, router, "clerk1", "clerk-secret-1")

	rec = doJSON(t, router, http.MethodPost, "/api/v1/items", cashierToken, map[string]any{
		"itemName": "Notebook A5",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/items", cashierToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCategoriesOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "admin", testAdminPassword)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/categories", token, map[string]string{"name": "stationery"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/v1/categories", token, map[string]string{"name": "stationery"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "CONFLICT", errorCode(t, rec))

	rec = doJSON(t, router, http.MethodGet, "/api/v1/categories", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthMetricsAndHeaders(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLowStockReportOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "admin", testAdminPassword)

	// lowerLimit defaults to 0, so a drained item shows up in the report
	code := createItem(t, router, token, "Notebook A5", 1, 100)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items":    []map[string]any{{"itemCode": code, "quantity": 1}},
		"cashPaid": 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/v1/items/low-stock", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []struct {
			ItemCode string `json:"itemCode"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, code, resp.Data[0].ItemCode)
}

func TestSequentialItemCodesOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router, "admin", testAdminPassword)

	for i := 1; i <= 3; i++ {
		code := createItem(t, router, token, fmt.Sprintf("Item %d", i), 10, 50)
		require.Equal(t, fmt.Sprintf("rt%d", i), code)
	}
}
