package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/example/paytrack/internal/apperr"
	"github.com/example/paytrack/internal/models"
	"github.com/example/paytrack/internal/repository"
	"github.com/example/paytrack/internal/services"
	"github.com/example/paytrack/internal/utils"
	"github.com/example/paytrack/internal/validation"
)

// PaymentHandler manages payment endpoints.
type PaymentHandler struct {
	payments *services.PaymentService
	webhooks *services.WebhookService
	log      logrus.FieldLogger
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *services.PaymentService, webhooks *services.WebhookService, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		webhooks: webhooks,
		log:      log.WithField("component", "payment_handler"),
	}
}

// CreatePayment handles POST /payments.
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	h.log.Debug("POST /payments - creating payment")

	var req validation.CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	input, err := validation.CreatePayment(req)
	if err != nil {
		return err
	}

	payment, err := h.payments.Create(c.UserContext(), input)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusCreated, "Payment created successfully", fiber.Map{"payment": payment})
}

// ListPayments handles GET /payments with optional state, currency and
// provider filters.
func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := repository.PaymentFilter{Limit: pg.Limit, Offset: pg.Offset}
	fields := validation.FieldErrors{}

	if state := strings.ToUpper(strings.TrimSpace(c.Query("state"))); state != "" {
		if !knownState(models.PaymentState(state)) {
			fields["state"] = "state must be one of the following values: INITIATED, PENDING, SUCCESS, FAILED"
		}
		filter.State = models.PaymentState(state)
	}
	if currency := strings.ToUpper(strings.TrimSpace(c.Query("currency"))); currency != "" {
		if currency != string(models.CurrencyUGX) && currency != string(models.CurrencyUSD) {
			fields["currency"] = "currency must be one of the following values: UGX, USD"
		}
		filter.Currency = models.Currency(currency)
	}
	filter.ProviderName = strings.TrimSpace(c.Query("provider"))
	if len(fields) > 0 {
		return fields.Err()
	}

	payments, total, err := h.payments.List(c.UserContext(), filter)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "Payments retrieved successfully", fiber.Map{
		"payments":   payments,
		"pagination": pg.Meta(total),
	})
}

// GetPayment handles GET /payments/:reference.
func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	payment, err := h.payments.GetByReference(c.UserContext(), c.Params("reference"))
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "Payment retrieved successfully", fiber.Map{"payment": payment})
}

// UpdatePaymentStatus handles PATCH /payments/:reference/status.
func (h *PaymentHandler) UpdatePaymentStatus(c *fiber.Ctx) error {
	var req validation.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	state, reason, err := validation.UpdateStatus(req)
	if err != nil {
		return err
	}

	payment, err := h.payments.UpdateStatus(c.UserContext(), c.Params("reference"), state, reason)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, "Payment status updated successfully", fiber.Map{"payment": payment})
}

// HandleWebhook handles POST /payments/webhook. A duplicate delivery is a
// successful response with applied=false so the provider stops retrying.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	h.log.Debug("POST /payments/webhook - processing webhook")

	var req validation.WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	event, err := validation.Webhook(req)
	if err != nil {
		return err
	}

	result, err := h.webhooks.HandleEvent(c.UserContext(), event)
	if err != nil {
		return err
	}

	return respond(c, fiber.StatusOK, result.Message, fiber.Map{"result": result})
}

func invalidBody(err error) error {
	return &apperr.Error{Kind: apperr.Validation, Message: "Invalid request body", Err: err}
}

func knownState(state models.PaymentState) bool {
	for _, s := range models.PaymentStates {
		if s == state {
			return true
		}
	}
	return false
}
