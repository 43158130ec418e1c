package models

import "time"

// WebhookDelivery is an idempotency ledger entry. The (provider_name,
// provider_tx_id) pair is unique.
type WebhookDelivery struct {
	BaseModel
	ProviderName string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_webhook_deliveries_provider_tx,priority:1" json:"providerName"`
	ProviderTxID string    `gorm:"column:provider_tx_id;type:varchar(128);not null;uniqueIndex:ux_webhook_deliveries_provider_tx,priority:2" json:"providerTxId"`
	Processed    bool      `gorm:"not null" json:"processed"`
	PayloadHash  *string   `gorm:"type:varchar(128)" json:"payloadHash,omitempty"`
	ProcessedAt  time.Time `json:"processedAt"`
}

func (WebhookDelivery) TableName() string { return "webhook_deliveries" }
