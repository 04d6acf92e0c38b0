package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hq-entitlements/internal/handler"
	"hq-entitlements/internal/model"
	"hq-entitlements/internal/service"
	"hq-entitlements/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "router-test-key"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()

	svc := service.NewEntitlementService(store.NewMemoryStore(), store.NopEventLog(), service.Options{}, logger)
	h := New(
		handler.NewCheckoutHandler(svc, logger),
		handler.NewDownloadHandler(svc, logger),
		handler.NewAdminHandler(svc, logger),
		testAPIKey,
		logger,
	)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRouter_PurchaseToExpiry(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/checkout/orders", model.OrderRequest{
		BuyerEmail:    "buyer@example.com",
		PaymentMethod: "card",
		Total:         19.98,
		Items: []model.OrderItemRequest{
			{ImageID: "101", HQURL: "https://cdn.example.com/hq/101.jpg"},
			{ImageID: "102", HQURL: "https://cdn.example.com/hq/102.jpg"},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	checkout := decode[model.CheckoutResponse](t, resp)
	assert.Equal(t, "/download/"+checkout.DownloadCode, checkout.DownloadLink)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/checkout/orders/"+checkout.OrderID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, checkout.OrderID, decode[model.Order](t, resp).OrderID)

	lower := strings.ToLower(checkout.DownloadCode)
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/download/verify?code="+lower, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[model.DownloadView](t, resp)
	assert.Equal(t, checkout.OrderID, view.OrderID)
	assert.Len(t, view.Items, 2)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/download/redeem", model.RedeemRequest{Code: lower, ImageID: "102"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	redeemed := decode[model.RedeemResponse](t, resp)
	assert.Equal(t, "https://cdn.example.com/hq/102.jpg", redeemed.HQURL)
	assert.False(t, redeemed.NowUsed)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/download/redeem", model.RedeemRequest{Code: lower, ImageID: "101"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	redeemed = decode[model.RedeemResponse](t, resp)
	assert.True(t, redeemed.NowUsed)
	assert.True(t, redeemed.Used)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/download/redeem", model.RedeemRequest{Code: lower, ImageID: "101"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/download/verify?code="+checkout.DownloadCode, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[model.DownloadView](t, resp)
	assert.True(t, view.Used)
	for _, item := range view.Items {
		assert.True(t, item.Downloaded, item.ImageID)
	}
}

func TestRouter_Admin(t *testing.T) {
	srv := newTestServer(t)
	auth := map[string]string{"X-API-Key": testAPIKey}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/checkout/orders", model.OrderRequest{
		BuyerEmail: "buyer@example.com",
		Total:      4.5,
		Items:      []model.OrderItemRequest{{ImageID: "101", HQURL: "https://cdn.example.com/hq/101.jpg"}},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	checkout := decode[model.CheckoutResponse](t, resp)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/admin/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/admin/orders/mark-used", model.MarkUsedRequest{Code: checkout.DownloadCode}, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "used", decode[handler.AdminOrder](t, resp).State)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/download/redeem", model.RedeemRequest{Code: checkout.DownloadCode, ImageID: "101"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/admin/orders", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing := decode[handler.ListOrdersResponse](t, resp)
	require.Len(t, listing.Orders, 1)
	assert.Equal(t, checkout.OrderID, listing.Orders[0].OrderID)
	assert.Equal(t, 1, listing.Orders[0].ImageCount)
	assert.Equal(t, model.SalesSummary{TotalBuys: 1, TotalImages: 1, TotalSum: 4.5}, listing.Summary)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/admin/persistence", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[service.PersistenceStatus](t, resp)
	assert.Equal(t, "memory", status.Backend)
	assert.False(t, status.Degraded)
}

func TestRouter_NotFoundAndHealth(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/download/verify?code=ZZZZZZZZZZZZ", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, model.ErrCodeNotFound, decode[model.ErrorResponse](t, resp).Error)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
