package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentState is the lifecycle position of a payment.
type PaymentState string

const (
	PaymentStateInitiated PaymentState = "INITIATED"
	PaymentStatePending   PaymentState = "PENDING"
	PaymentStateSuccess   PaymentState = "SUCCESS"
	PaymentStateFailed    PaymentState = "FAILED"
)

// PaymentStates lists every state in lifecycle order.
var PaymentStates = []PaymentState{
	PaymentStateInitiated,
	PaymentStatePending,
	PaymentStateSuccess,
	PaymentStateFailed,
}

type Currency string

const (
	CurrencyUGX Currency = "UGX"
	CurrencyUSD Currency = "USD"
)

type PaymentMethod string

const (
	PaymentMethodMobileMoney PaymentMethod = "MOBILE_MONEY"
)

// Payment is one customer charge attempt. Rows are never deleted.
type Payment struct {
	BaseModel
	UpdatedAt            time.Time             `json:"updatedAt"`
	Reference            string                `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`
	Amount               decimal.Decimal       `gorm:"type:numeric(18,2);not null" json:"amount"`
	Currency             Currency              `gorm:"type:varchar(8);not null" json:"currency"`
	PaymentMethod        PaymentMethod         `gorm:"type:varchar(32);not null" json:"paymentMethod"`
	CustomerPhone        string                `gorm:"type:varchar(32);not null" json:"customerPhone"`
	CustomerEmail        *string               `gorm:"type:varchar(255)" json:"customerEmail,omitempty"`
	State                PaymentState          `gorm:"type:varchar(16);index;not null" json:"state"`
	ProviderName         *string               `gorm:"type:varchar(64)" json:"providerName,omitempty"`
	ProviderTransactions []ProviderTransaction `gorm:"foreignKey:PaymentID" json:"providerTransactions,omitempty"`
}

func (Payment) TableName() string { return "payments" }
