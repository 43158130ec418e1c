package repository

import (
	"context"
	"errors"

	"github.com/example/paytrack/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// PaymentFilter narrows List results. Zero values mean "any".
type PaymentFilter struct {
	State        models.PaymentState
	Currency     models.Currency
	ProviderName string
	Limit        int
	Offset       int
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	// GetByReference loads the payment together with its provider transactions.
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	// LockByReference loads the payment row for update. Only meaningful inside RunInTx.
	LockByReference(ctx context.Context, reference string) (*models.Payment, error)
	// Update persists state and provider name.
	Update(ctx context.Context, p *models.Payment) error
	List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error)
}

type ProviderTransactionRepository interface {
	Create(ctx context.Context, txn *models.ProviderTransaction) error
}

type WebhookDeliveryRepository interface {
	// Create fails with ErrDuplicate when (provider, providerTxId) already exists.
	Create(ctx context.Context, d *models.WebhookDelivery) error
	Get(ctx context.Context, providerName, providerTxID string) (*models.WebhookDelivery, error)
	Exists(ctx context.Context, providerName, providerTxID string) (bool, error)
}

// Store groups the repositories and the transaction primitive. The Store
// handed to fn by RunInTx is bound to the transaction; if fn returns an
// error nothing written through it takes effect.
type Store interface {
	Payments() PaymentRepository
	ProviderTransactions() ProviderTransactionRepository
	WebhookDeliveries() WebhookDeliveryRepository
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}
