package validation

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/example/paytrack/internal/apperr"
	"github.com/example/paytrack/internal/models"
	"github.com/example/paytrack/internal/services"
)

// FieldErrors maps a JSON field name to what is wrong with it.
type FieldErrors map[string]string

var (
	minAmount = decimal.RequireFromString("0.01")
	// amounts are stored as numeric(18,2)
	maxAmount    = decimal.New(1, 16)
	amountPlaces = int32(2)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

type CreatePaymentRequest struct {
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
	Currency      string           `json:"currency" validate:"required,oneof=UGX USD"`
	PaymentMethod string           `json:"paymentMethod" validate:"required,oneof=MOBILE_MONEY"`
	CustomerPhone string           `json:"customerPhone" validate:"required,phone"`
	CustomerEmail *string          `json:"customerEmail" validate:"omitempty,email"`
}

type UpdateStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=INITIATED PENDING SUCCESS FAILED"`
	Reason *string `json:"reason" validate:"omitempty,max=255"`
}

type WebhookRequest struct {
	PaymentReference      string  `json:"paymentReference" validate:"required,max=64"`
	Status                string  `json:"status" validate:"required,oneof=INITIATED PENDING SUCCESS FAILED"`
	ProviderTransactionID string  `json:"providerTransactionId" validate:"required,max=128"`
	Timestamp             string  `json:"timestamp" validate:"required"`
	ProviderName          *string `json:"providerName" validate:"omitempty,max=64"`
}

// CreatePayment checks a create request and converts it to service input.
func CreatePayment(req CreatePaymentRequest) (services.CreatePaymentInput, error) {
	req.Currency = strings.TrimSpace(req.Currency)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.CustomerEmail = trimOptional(req.CustomerEmail)

	fields := check(req)
	if req.Amount != nil {
		if msg := checkAmount(*req.Amount); msg != "" {
			fields["amount"] = msg
		}
	}
	if len(fields) > 0 {
		return services.CreatePaymentInput{}, fields.Err()
	}

	return services.CreatePaymentInput{
		Amount:        *req.Amount,
		Currency:      models.Currency(req.Currency),
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
	}, nil
}

// UpdateStatus returns the requested state and the optional reason.
func UpdateStatus(req UpdateStatusRequest) (models.PaymentState, string, error) {
	req.Status = strings.TrimSpace(req.Status)
	req.Reason = trimOptional(req.Reason)

	if fields := check(req); len(fields) > 0 {
		return "", "", fields.Err()
	}

	reason := ""
	if req.Reason != nil {
		reason = *req.Reason
	}
	return models.PaymentState(req.Status), reason, nil
}

// Webhook checks a provider notification and converts it to an event.
func Webhook(req WebhookRequest) (services.WebhookEvent, error) {
	req.PaymentReference = strings.TrimSpace(req.PaymentReference)
	req.Status = strings.TrimSpace(req.Status)
	req.ProviderTransactionID = strings.TrimSpace(req.ProviderTransactionID)
	req.Timestamp = strings.TrimSpace(req.Timestamp)
	req.ProviderName = trimOptional(req.ProviderName)

	fields := check(req)
	var timestamp time.Time
	if _, bad := fields["timestamp"]; !bad {
		parsed, ok := parseTimestamp(req.Timestamp)
		if !ok {
			fields["timestamp"] = "timestamp must be a valid ISO 8601 date string"
		}
		timestamp = parsed
	}
	if len(fields) > 0 {
		return services.WebhookEvent{}, fields.Err()
	}

	event := services.WebhookEvent{
		PaymentReference:      req.PaymentReference,
		Status:                models.PaymentState(req.Status),
		ProviderTransactionID: req.ProviderTransactionID,
		Timestamp:             timestamp,
	}
	if req.ProviderName != nil {
		event.ProviderName = *req.ProviderName
	}
	return event, nil
}

// Err turns the field errors into a Validation error. The message joins
// the field messages in field order.
func (f FieldErrors) Err() error {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	messages := make([]string, 0, len(keys))
	for _, k := range keys {
		messages = append(messages, f[k])
	}
	return apperr.ValidationErr(strings.Join(messages, " | "), f)
}

func check(req any) FieldErrors {
	out := FieldErrors{}
	err := instance().Struct(req)
	if err == nil {
		return out
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		out["_"] = "request is invalid"
		return out
	}
	for _, fe := range ve {
		out[fe.Field()] = messageFor(fe)
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return field + " must be one of the following values: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "phone":
		return field + " must be a valid phone number"
	case "email":
		return field + " must be an email"
	case "max":
		return field + " must be shorter than or equal to " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}

func checkAmount(amount decimal.Decimal) string {
	switch {
	case amount.LessThan(minAmount):
		return "amount must not be less than 0.01"
	case !amount.Equal(amount.Truncate(amountPlaces)):
		return "amount must have at most 2 decimal places"
	case amount.GreaterThanOrEqual(maxAmount):
		return "amount must be less than 10000000000000000"
	}
	return ""
}

func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// trimOptional treats a blank optional field as absent.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
