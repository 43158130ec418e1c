package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/paytrack/internal/models"
	"github.com/example/paytrack/internal/repository"
	"github.com/example/paytrack/internal/utils"
)

const (
	msgWebhookProcessed        = "Webhook processed successfully"
	msgWebhookAlreadyProcessed = "Webhook already processed"
)

// WebhookEvent is a validated provider notification.
type WebhookEvent struct {
	PaymentReference      string
	Status                models.PaymentState
	ProviderTransactionID string
	ProviderName          string
	Timestamp             time.Time
}

// WebhookResult tells the caller whether the event changed anything.
// Applied=false is a successful outcome.
type WebhookResult struct {
	Applied bool   `json:"applied"`
	Message string `json:"message"`
}

// WebhookService applies provider events to payments at most once per
// (provider, provider transaction id).
type WebhookService struct {
	store           repository.Store
	defaultProvider string
	log             logrus.FieldLogger
}

// NewWebhookService constructs WebhookService.
func NewWebhookService(store repository.Store, defaultProvider string, log logrus.FieldLogger) *WebhookService {
	return &WebhookService{
		store:           store,
		defaultProvider: defaultProvider,
		log:             log.WithField("component", "webhooks"),
	}
}

// HandleEvent looks the event up in the ledger once, then in one transaction locks the payment,
// validates the transition and writes the payment update, the provider
// transaction and the ledger entry together. A ledger key that appears
// concurrently is reported as already processed.
func (s *WebhookService) HandleEvent(ctx context.Context, event WebhookEvent) (*WebhookResult, error) {
	provider := event.ProviderName
	if provider == "" {
		provider = s.defaultProvider
	}
	hash := payloadHash(event, provider)

	log := s.log.WithFields(logrus.Fields{
		"reference":      event.PaymentReference,
		"provider":       provider,
		"provider_tx_id": event.ProviderTransactionID,
		"status":         event.Status,
	})
	log.Info("received webhook")

	recorded, err := NewLedger(s.store.WebhookDeliveries()).Lookup(ctx, provider, event.ProviderTransactionID)
	if err != nil {
		return nil, err
	}
	if recorded != nil {
		warnOnChangedPayload(log, recorded, hash)
		log.Warn("webhook already processed")
		return alreadyProcessed(), nil
	}

	duplicate := false
	err = s.store.RunInTx(ctx, func(tx repository.Store) error {
		ledger := NewLedger(tx.WebhookDeliveries())

		payment, err := tx.Payments().LockByReference(ctx, event.PaymentReference)
		if err != nil {
			return err
		}

		// another delivery of this event may have committed while we waited
		// for the row lock
		seen, err := ledger.HasProcessed(ctx, provider, event.ProviderTransactionID)
		if err != nil {
			return err
		}
		if seen {
			duplicate = true
			return nil
		}

		if err := ValidateTransition(payment.State, event.Status); err != nil {
			return err
		}

		payment.State = event.Status
		payment.ProviderName = &provider
		if err := tx.Payments().Update(ctx, payment); err != nil {
			return err
		}

		record := &models.ProviderTransaction{
			PaymentID:             payment.ID,
			ProviderName:          provider,
			ProviderTransactionID: event.ProviderTransactionID,
			Status:                event.Status,
			Amount:                payment.Amount,
			Currency:              payment.Currency,
		}
		if !event.Timestamp.IsZero() {
			occurred := event.Timestamp.UTC()
			record.OccurredAt = &occurred
		}
		if err := tx.ProviderTransactions().Create(ctx, record); err != nil {
			return err
		}

		return ledger.Record(ctx, provider, event.ProviderTransactionID, LedgerMetadata{PayloadHash: hash})
	})

	switch {
	case errors.Is(err, repository.ErrDuplicate):
		log.WithError(err).Warn("webhook recorded concurrently, treating as already processed")
		return alreadyProcessed(), nil
	case err != nil:
		log.WithError(err).Warn("webhook rejected")
		return nil, storeError(err, event.PaymentReference)
	case duplicate:
		log.Warn("webhook already processed")
		return alreadyProcessed(), nil
	}

	log.Info("webhook processed")
	return &WebhookResult{Applied: true, Message: msgWebhookProcessed}, nil
}

// warnOnChangedPayload warns when a redelivered event differs from the one
// that was applied under the same key.
func warnOnChangedPayload(log logrus.FieldLogger, recorded *models.WebhookDelivery, hash string) {
	if recorded.PayloadHash == nil || *recorded.PayloadHash == hash {
		return
	}
	log.WithFields(logrus.Fields{
		"recorded_hash": *recorded.PayloadHash,
		"payload_hash":  hash,
	}).Warn("redelivered webhook payload differs from the applied one")
}

func alreadyProcessed() *WebhookResult {
	return &WebhookResult{Applied: false, Message: msgWebhookAlreadyProcessed}
}

func payloadHash(event WebhookEvent, provider string) string {
	timestamp := ""
	if !event.Timestamp.IsZero() {
		timestamp = event.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return utils.PayloadHash(
		event.PaymentReference,
		string(event.Status),
		event.ProviderTransactionID,
		provider,
		timestamp,
	)
}
