package services

import (
	"context"
	"errors"
	"time"

	"github.com/example/paytrack/internal/apperr"
	"github.com/example/paytrack/internal/models"
	"github.com/example/paytrack/internal/repository"
)

// LedgerMetadata is stored alongside a ledger entry.
type LedgerMetadata struct {
	PayloadHash string
}

// Ledger records which provider events have already been applied. The
// unique (provider, transaction id) key is what makes application
// exactly-once; HasProcessed is only a shortcut.
type Ledger struct {
	deliveries repository.WebhookDeliveryRepository
	now        func() time.Time
}

// NewLedger constructs Ledger.
func NewLedger(deliveries repository.WebhookDeliveryRepository) *Ledger {
	return &Ledger{deliveries: deliveries, now: time.Now}
}

func (l *Ledger) HasProcessed(ctx context.Context, providerName, providerTxID string) (bool, error) {
	exists, err := l.deliveries.Exists(ctx, providerName, providerTxID)
	if err != nil {
		return false, apperr.InternalErr(err)
	}
	return exists, nil
}

// Lookup returns the recorded entry, or nil when there is none.
func (l *Ledger) Lookup(ctx context.Context, providerName, providerTxID string) (*models.WebhookDelivery, error) {
	delivery, err := l.deliveries.Get(ctx, providerName, providerTxID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.InternalErr(err)
	}
	return delivery, nil
}

// Record inserts the ledger entry. An existing key fails with a Conflict
// that still matches repository.ErrDuplicate.
func (l *Ledger) Record(ctx context.Context, providerName, providerTxID string, meta LedgerMetadata) error {
	delivery := &models.WebhookDelivery{
		ProviderName: providerName,
		ProviderTxID: providerTxID,
		Processed:    true,
		ProcessedAt:  l.now().UTC(),
	}
	if meta.PayloadHash != "" {
		hash := meta.PayloadHash
		delivery.PayloadHash = &hash
	}

	if err := l.deliveries.Create(ctx, delivery); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperr.ConflictErr("Webhook already recorded", err)
		}
		return apperr.InternalErr(err)
	}
	return nil
}
