package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/paytrack/internal/apperr"
	"github.com/example/paytrack/internal/logging"
	"github.com/example/paytrack/internal/middleware"
	"github.com/example/paytrack/internal/repository"
	"github.com/example/paytrack/internal/services"
)

type stubValidator struct{}

func (stubValidator) Validate(_ context.Context, token string) (*services.Principal, error) {
	if token != "good-token" {
		return nil, apperr.UnauthorizedErr("Invalid or expired token")
	}
	return &services.Principal{ID: "u-1", Email: "a@b.co"}, nil
}

func newTestApp(t *testing.T) (*fiber.App, *repository.MemoryStore) {
	t.Helper()
	log := logging.Discard()
	store := repository.NewMemoryStore()

	payments := services.NewPaymentService(store, services.NewReferenceGenerator(), "MobileMoneyProvider", log)
	webhooks := services.NewWebhookService(store, "DefaultProvider", log)
	h := NewPaymentHandler(payments, webhooks, log)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(log)})
	app.Get("/health", Health)
	group := app.Group("/api/payments", middleware.AuthMiddleware(stubValidator{}))
	group.Post("/", h.CreatePayment)
	group.Get("/", h.ListPayments)
	group.Post("/webhook", h.HandleWebhook)
	group.Get("/:reference", h.GetPayment)
	group.Patch("/:reference/status", h.UpdatePaymentStatus)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer good-token")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func createPayment(t *testing.T, app *fiber.App) map[string]any {
	t.Helper()
	status, body := doJSON(t, app, http.MethodPost, "/api/payments", map[string]any{
		"amount":        10000,
		"currency":      "UGX",
		"paymentMethod": "MOBILE_MONEY",
		"customerPhone": "+256700000000",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["data"].(map[string]any)["payment"].(map[string]any)
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"success": true, "message": "OK"}, body)
}

func TestCreatePayment(t *testing.T) {
	app, _ := newTestApp(t)

	payment := createPayment(t, app)

	assert.Regexp(t, `^PAY-\d+-[0-9A-Z]{10}$`, payment["reference"])
	assert.Equal(t, "INITIATED", payment["state"])
	assert.Equal(t, "10000", payment["amount"])
	assert.Equal(t, "UGX", payment["currency"])
	assert.NotContains(t, payment, "providerName")
}

func TestCreatePayment_ValidationErrors(t *testing.T) {
	app, store := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/payments", map[string]any{
		"amount":        0,
		"currency":      "EUR",
		"paymentMethod": "MOBILE_MONEY",
		"customerPhone": "+256700000000",
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "amount")
	assert.Contains(t, errs, "currency")
	payments, _, _ := store.Counts()
	assert.Zero(t, payments)
}

func TestCreatePayment_MalformedBody(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/payments", `{"amount":`)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid request body", body["message"])
}

func TestGetPayment_NotFound(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/api/payments/PAY-0-MISSING000", nil)

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, map[string]any{
		"success": false,
		"message": "Payment with reference PAY-0-MISSING000 not found",
	}, body)
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	app, _ := newTestApp(t)
	ref := createPayment(t, app)["reference"].(string)

	status, body := doJSON(t, app, http.MethodPatch, "/api/payments/"+ref+"/status", map[string]any{"status": "SUCCESS"})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Cannot change from 'INITIATED' to 'SUCCESS'.", body["message"])
}

func TestPaymentLifecycle(t *testing.T) {
	app, store := newTestApp(t)
	ref := createPayment(t, app)["reference"].(string)

	status, body := doJSON(t, app, http.MethodPatch, "/api/payments/"+ref+"/status", map[string]any{
		"status": "PENDING",
		"reason": "Payment sent to provider",
	})
	require.Equal(t, http.StatusOK, status, body)
	payment := body["data"].(map[string]any)["payment"].(map[string]any)
	assert.Equal(t, "PENDING", payment["state"])
	assert.Equal(t, "MobileMoneyProvider", payment["providerName"])

	event := map[string]any{
		"paymentReference":      ref,
		"status":                "SUCCESS",
		"providerTransactionId": "PROVIDER-TXN-987654321",
		"timestamp":             "2025-11-27T12:00:00Z",
	}
	status, body = doJSON(t, app, http.MethodPost, "/api/payments/webhook", event)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Webhook processed successfully", body["message"])
	assert.Equal(t, map[string]any{"applied": true, "message": "Webhook processed successfully"},
		body["data"].(map[string]any)["result"])

	status, body = doJSON(t, app, http.MethodPost, "/api/payments/webhook", event)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"applied": false, "message": "Webhook already processed"},
		body["data"].(map[string]any)["result"])

	status, body = doJSON(t, app, http.MethodGet, "/api/payments/"+ref, nil)
	require.Equal(t, http.StatusOK, status)
	payment = body["data"].(map[string]any)["payment"].(map[string]any)
	assert.Equal(t, "SUCCESS", payment["state"])
	assert.Equal(t, "DefaultProvider", payment["providerName"])
	txns := payment["providerTransactions"].([]any)
	require.Len(t, txns, 1)
	assert.Equal(t, "PROVIDER-TXN-987654321", txns[0].(map[string]any)["providerTransactionId"])

	_, providerTxns, deliveries := store.Counts()
	assert.Equal(t, 1, providerTxns)
	assert.Equal(t, 1, deliveries)
}

func TestHandleWebhook_UnknownPayment(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/payments/webhook", map[string]any{
		"paymentReference":      "PAY-0-MISSING000",
		"status":                "SUCCESS",
		"providerTransactionId": "T1",
		"timestamp":             "2025-11-27T12:00:00Z",
	})

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
}

func TestHandleWebhook_ValidationErrors(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/payments/webhook", map[string]any{
		"paymentReference": "PAY-1-ABCDEFGHIJ",
		"status":           "SUCCESS",
		"timestamp":        "not a date",
	})

	assert.Equal(t, http.StatusBadRequest, status)
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "providerTransactionId")
	assert.Contains(t, errs, "timestamp")
}

func TestListPayments(t *testing.T) {
	app, _ := newTestApp(t)
	for i := 0; i < 3; i++ {
		createPayment(t, app)
	}

	status, body := doJSON(t, app, http.MethodGet, "/api/payments?state=initiated&limit=2", nil)
	require.Equal(t, http.StatusOK, status, body)

	data := body["data"].(map[string]any)
	assert.Len(t, data["payments"].([]any), 2)
	assert.Equal(t, map[string]any{
		"currentPage":  float64(1),
		"itemsPerPage": float64(2),
		"totalItems":   float64(3),
		"totalPages":   float64(2),
	}, data["pagination"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/payments?state=REFUNDED", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuthRequired(t *testing.T) {
	app, _ := newTestApp(t)

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer wrong-token"} {
		req := httptest.NewRequest(http.MethodGet, "/api/payments/PAY-1", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, header)
		resp.Body.Close()
	}
}

func TestErrorHandler_HidesInternalDetail(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return apperr.InternalErr(errors.New("pq: password authentication failed"))
	})
	app.Get("/raw", func(c *fiber.Ctx) error {
		return errors.New("dial tcp 10.0.0.5:5432: connection refused")
	})
	app.Get("/fiber", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusServiceUnavailable, "db pool exhausted")
	})

	for _, path := range []string{"/boom", "/raw", "/fiber"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		resp.Body.Close()

		assert.GreaterOrEqual(t, resp.StatusCode, 500, path)
		assert.JSONEq(t, `{"success":false,"message":"Something bad happened on our side."}`, string(raw), path)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
