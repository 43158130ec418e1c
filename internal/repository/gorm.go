package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/paytrack/internal/models"
)

const pgUniqueViolation = "23505"

// GormStore is the postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Payments() PaymentRepository {
	return &gormPaymentRepository{db: s.db}
}

func (s *GormStore) ProviderTransactions() ProviderTransactionRepository {
	return &gormProviderTransactionRepository{db: s.db}
}

func (s *GormStore) WebhookDeliveries() WebhookDeliveryRepository {
	return &gormWebhookDeliveryRepository{db: s.db}
}

func (s *GormStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

type gormPaymentRepository struct {
	db *gorm.DB
}

func (r *gormPaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("create payment %s: %w (%w)", p.Reference, ErrDuplicate, err)
		}
		return fmt.Errorf("create payment %s: %w", p.Reference, err)
	}
	return nil
}

func (r *gormPaymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Preload("ProviderTransactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc")
		}).
		Where("reference = ?", reference).
		First(&p).Error
	if err != nil {
		return nil, translateLookup(err, "payment "+reference)
	}
	return &p, nil
}

func (r *gormPaymentRepository) LockByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reference = ?", reference).
		First(&p).Error
	if err != nil {
		return nil, translateLookup(err, "payment "+reference)
	}
	return &p, nil
}

func (r *gormPaymentRepository) Update(ctx context.Context, p *models.Payment) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"state":         p.State,
			"provider_name": p.ProviderName,
			"updated_at":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("update payment %s: %w", p.Reference, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update payment %s: %w", p.Reference, ErrNotFound)
	}
	p.UpdatedAt = now
	return nil
}

func (r *gormPaymentRepository) List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{})

	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if filter.Currency != "" {
		query = query.Where("currency = ?", filter.Currency)
	}
	if filter.ProviderName != "" {
		query = query.Where("provider_name = ?", filter.ProviderName)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	var payments []models.Payment
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := query.Order("created_at desc").Find(&payments).Error; err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	return payments, total, nil
}

type gormProviderTransactionRepository struct {
	db *gorm.DB
}

func (r *gormProviderTransactionRepository) Create(ctx context.Context, txn *models.ProviderTransaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("create provider transaction %s/%s: %w", txn.ProviderName, txn.ProviderTransactionID, err)
	}
	return nil
}

type gormWebhookDeliveryRepository struct {
	db *gorm.DB
}

func (r *gormWebhookDeliveryRepository) Create(ctx context.Context, d *models.WebhookDelivery) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("record delivery %s/%s: %w (%w)", d.ProviderName, d.ProviderTxID, ErrDuplicate, err)
		}
		return fmt.Errorf("record delivery %s/%s: %w", d.ProviderName, d.ProviderTxID, err)
	}
	return nil
}

func (r *gormWebhookDeliveryRepository) Get(ctx context.Context, providerName, providerTxID string) (*models.WebhookDelivery, error) {
	var d models.WebhookDelivery
	err := r.db.WithContext(ctx).
		Where("provider_name = ? AND provider_tx_id = ?", providerName, providerTxID).
		First(&d).Error
	if err != nil {
		return nil, translateLookup(err, "delivery "+providerName+"/"+providerTxID)
	}
	return &d, nil
}

func (r *gormWebhookDeliveryRepository) Exists(ctx context.Context, providerName, providerTxID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WebhookDelivery{}).
		Where("provider_name = ? AND provider_tx_id = ?", providerName, providerTxID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check delivery %s/%s: %w", providerName, providerTxID, err)
	}
	return count > 0, nil
}

// IsUniqueViolation recognises duplicate-key failures from the pgx driver
// used by gorm, from lib/pq and from gorm's own translated error.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	return false
}

func translateLookup(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
