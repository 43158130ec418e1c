package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/example/paytrack/internal/logging"
	"github.com/example/paytrack/internal/models"
	"github.com/example/paytrack/internal/repository"
)

const (
	testWebhookProvider = "DefaultProvider"
	testStatusProvider  = "MobileMoneyProvider"
)

type fixture struct {
	store    *repository.MemoryStore
	payments *PaymentService
	webhooks *WebhookService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLogger(t, logging.Discard())
}

func newFixtureWithLogger(t *testing.T, log logrus.FieldLogger) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	return &fixture{
		store:    store,
		payments: NewPaymentService(store, NewReferenceGenerator(), testStatusProvider, log),
		webhooks: NewWebhookService(store, testWebhookProvider, log),
	}
}

func scenarioInput() CreatePaymentInput {
	return CreatePaymentInput{
		Amount:        decimal.NewFromInt(10000),
		Currency:      models.CurrencyUGX,
		PaymentMethod: models.PaymentMethodMobileMoney,
		CustomerPhone: "+256700000000",
	}
}

// createInState creates a payment and walks it to the wanted state through
// the status path.
func (f *fixture) createInState(t *testing.T, state models.PaymentState) *models.Payment {
	t.Helper()
	ctx := context.Background()

	payment, err := f.payments.Create(ctx, scenarioInput())
	require.NoError(t, err)

	path := map[models.PaymentState][]models.PaymentState{
		models.PaymentStateInitiated: nil,
		models.PaymentStatePending:   {models.PaymentStatePending},
		models.PaymentStateSuccess:   {models.PaymentStatePending, models.PaymentStateSuccess},
		models.PaymentStateFailed:    {models.PaymentStatePending, models.PaymentStateFailed},
	}
	for _, next := range path[state] {
		payment, err = f.payments.UpdateStatus(ctx, payment.Reference, next, "")
		require.NoError(t, err)
	}
	return payment
}
