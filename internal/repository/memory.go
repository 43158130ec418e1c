package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/paytrack/internal/models"
)

// MemoryStore keeps everything in process memory. Transactions are
// serialised and work on a private copy that replaces the shared state on
// commit, so a failed transaction leaves no trace. Writes made outside
// RunInTx are wrapped in their own transaction.
type MemoryStore struct {
	mu   *sync.RWMutex
	txMu *sync.Mutex
	data *memoryData
	inTx bool
}

type memoryData struct {
	payments     map[uuid.UUID]models.Payment
	byReference  map[string]uuid.UUID
	providerTxns map[uuid.UUID][]models.ProviderTransaction
	deliveries   map[string]models.WebhookDelivery
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:   &sync.RWMutex{},
		txMu: &sync.Mutex{},
		data: &memoryData{
			payments:     make(map[uuid.UUID]models.Payment),
			byReference:  make(map[string]uuid.UUID),
			providerTxns: make(map[uuid.UUID][]models.ProviderTransaction),
			deliveries:   make(map[string]models.WebhookDelivery),
		},
	}
}

func (s *MemoryStore) Payments() PaymentRepository {
	return &memoryPaymentRepository{store: s}
}

func (s *MemoryStore) ProviderTransactions() ProviderTransactionRepository {
	return &memoryProviderTransactionRepository{store: s}
}

func (s *MemoryStore) WebhookDeliveries() WebhookDeliveryRepository {
	return &memoryWebhookDeliveryRepository{store: s}
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	tx := &MemoryStore{mu: &sync.RWMutex{}, data: snapshot, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
	return nil
}

// Counts reports how many rows each table holds.
func (s *MemoryStore) Counts() (payments, providerTxns, deliveries int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, txns := range s.data.providerTxns {
		providerTxns += len(txns)
	}
	return len(s.data.payments), providerTxns, len(s.data.deliveries)
}

func (s *MemoryStore) write(fn func(d *memoryData) error) error {
	if s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(s.data)
	}
	return s.RunInTx(context.Background(), func(tx Store) error {
		m := tx.(*MemoryStore)
		return fn(m.data)
	})
}

func (s *MemoryStore) read(fn func(d *memoryData) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

func (d *memoryData) clone() *memoryData {
	out := &memoryData{
		payments:     make(map[uuid.UUID]models.Payment, len(d.payments)),
		byReference:  make(map[string]uuid.UUID, len(d.byReference)),
		providerTxns: make(map[uuid.UUID][]models.ProviderTransaction, len(d.providerTxns)),
		deliveries:   make(map[string]models.WebhookDelivery, len(d.deliveries)),
	}
	for k, v := range d.payments {
		out.payments[k] = v
	}
	for k, v := range d.byReference {
		out.byReference[k] = v
	}
	for k, v := range d.providerTxns {
		out.providerTxns[k] = append([]models.ProviderTransaction(nil), v...)
	}
	for k, v := range d.deliveries {
		out.deliveries[k] = v
	}
	return out
}

func deliveryKey(providerName, providerTxID string) string {
	return providerName + "\x00" + providerTxID
}

type memoryPaymentRepository struct {
	store *MemoryStore
}

func (r *memoryPaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.EnsureID()
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	return r.store.write(func(d *memoryData) error {
		if _, exists := d.byReference[p.Reference]; exists {
			return fmt.Errorf("create payment %s: %w", p.Reference, ErrDuplicate)
		}
		if _, exists := d.payments[p.ID]; exists {
			return fmt.Errorf("create payment %s: %w", p.ID, ErrDuplicate)
		}
		row := *p
		row.ProviderTransactions = nil
		d.payments[p.ID] = row
		d.byReference[p.Reference] = p.ID
		return nil
	})
}

func (r *memoryPaymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *models.Payment
	err := r.store.read(func(d *memoryData) error {
		id, ok := d.byReference[reference]
		if !ok {
			return fmt.Errorf("payment %s: %w", reference, ErrNotFound)
		}
		p := d.payments[id]
		p.ProviderTransactions = append([]models.ProviderTransaction(nil), d.providerTxns[id]...)
		out = &p
		return nil
	})
	return out, err
}

func (r *memoryPaymentRepository) LockByReference(ctx context.Context, reference string) (*models.Payment, error) {
	p, err := r.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	p.ProviderTransactions = nil
	return p, nil
}

func (r *memoryPaymentRepository) Update(ctx context.Context, p *models.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	return r.store.write(func(d *memoryData) error {
		row, ok := d.payments[p.ID]
		if !ok {
			return fmt.Errorf("update payment %s: %w", p.Reference, ErrNotFound)
		}
		row.State = p.State
		row.ProviderName = p.ProviderName
		row.UpdatedAt = now
		d.payments[p.ID] = row
		p.UpdatedAt = now
		return nil
	})
}

func (r *memoryPaymentRepository) List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	var matched []models.Payment
	_ = r.store.read(func(d *memoryData) error {
		for _, p := range d.payments {
			if filter.State != "" && p.State != filter.State {
				continue
			}
			if filter.Currency != "" && p.Currency != filter.Currency {
				continue
			}
			if filter.ProviderName != "" && (p.ProviderName == nil || *p.ProviderName != filter.ProviderName) {
				continue
			}
			matched = append(matched, p)
		}
		return nil
	})

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Reference > matched[j].Reference
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Limit > 0 {
		start := min(filter.Offset, len(matched))
		end := min(start+filter.Limit, len(matched))
		matched = matched[start:end]
	}
	return matched, total, nil
}

type memoryProviderTransactionRepository struct {
	store *MemoryStore
}

func (r *memoryProviderTransactionRepository) Create(ctx context.Context, txn *models.ProviderTransaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn.EnsureID()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	return r.store.write(func(d *memoryData) error {
		if _, ok := d.payments[txn.PaymentID]; !ok {
			return fmt.Errorf("create provider transaction for payment %s: %w", txn.PaymentID, ErrNotFound)
		}
		d.providerTxns[txn.PaymentID] = append(d.providerTxns[txn.PaymentID], *txn)
		return nil
	})
}

type memoryWebhookDeliveryRepository struct {
	store *MemoryStore
}

func (r *memoryWebhookDeliveryRepository) Create(ctx context.Context, del *models.WebhookDelivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	del.EnsureID()
	if del.CreatedAt.IsZero() {
		del.CreatedAt = time.Now()
	}
	key := deliveryKey(del.ProviderName, del.ProviderTxID)
	return r.store.write(func(d *memoryData) error {
		if _, exists := d.deliveries[key]; exists {
			return fmt.Errorf("record delivery %s/%s: %w", del.ProviderName, del.ProviderTxID, ErrDuplicate)
		}
		d.deliveries[key] = *del
		return nil
	})
}

func (r *memoryWebhookDeliveryRepository) Get(ctx context.Context, providerName, providerTxID string) (*models.WebhookDelivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *models.WebhookDelivery
	err := r.store.read(func(d *memoryData) error {
		del, ok := d.deliveries[deliveryKey(providerName, providerTxID)]
		if !ok {
			return fmt.Errorf("delivery %s/%s: %w", providerName, providerTxID, ErrNotFound)
		}
		out = &del
		return nil
	})
	return out, err
}

func (r *memoryWebhookDeliveryRepository) Exists(ctx context.Context, providerName, providerTxID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var exists bool
	_ = r.store.read(func(d *memoryData) error {
		_, exists = d.deliveries[deliveryKey(providerName, providerTxID)]
		return nil
	})
	return exists, nil
}
