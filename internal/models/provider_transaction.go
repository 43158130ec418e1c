package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProviderTransaction is the append-only audit record of a provider event
// applied to a payment.
type ProviderTransaction struct {
	BaseModel
	PaymentID             uuid.UUID       `gorm:"type:uuid;index;not null" json:"paymentId"`
	ProviderName          string          `gorm:"type:varchar(64);not null" json:"providerName"`
	ProviderTransactionID string          `gorm:"column:provider_transaction_id;type:varchar(128);not null" json:"providerTransactionId"`
	Status                PaymentState    `gorm:"type:varchar(16);not null" json:"status"`
	Amount                decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Currency              Currency        `gorm:"type:varchar(8);not null" json:"currency"`
	OccurredAt            *time.Time      `json:"occurredAt,omitempty"`
}

func (ProviderTransaction) TableName() string { return "provider_transactions" }
