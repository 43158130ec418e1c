package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/example/paytrack/internal/apperr"
	"github.com/example/paytrack/internal/models"
	"github.com/example/paytrack/internal/repository"
)

// CreatePaymentInput is a validated create request.
type CreatePaymentInput struct {
	Amount        decimal.Decimal
	Currency      models.Currency
	PaymentMethod models.PaymentMethod
	CustomerPhone string
	CustomerEmail *string
}

// PaymentService owns payment creation, lookup and direct status changes.
type PaymentService struct {
	store          repository.Store
	refs           *ReferenceGenerator
	statusProvider string
	log            logrus.FieldLogger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(store repository.Store, refs *ReferenceGenerator, statusProvider string, log logrus.FieldLogger) *PaymentService {
	return &PaymentService{
		store:          store,
		refs:           refs,
		statusProvider: statusProvider,
		log:            log.WithField("component", "payments"),
	}
}

// Create stores a new payment in INITIATED state under a fresh reference.
func (s *PaymentService) Create(ctx context.Context, in CreatePaymentInput) (*models.Payment, error) {
	s.log.WithField("customer_phone", in.CustomerPhone).Info("creating payment")

	reference, err := s.refs.Generate()
	if err != nil {
		return nil, apperr.InternalErr(err)
	}

	payment := &models.Payment{
		Reference:     reference,
		Amount:        in.Amount,
		Currency:      in.Currency,
		PaymentMethod: in.PaymentMethod,
		CustomerPhone: in.CustomerPhone,
		CustomerEmail: in.CustomerEmail,
		State:         models.PaymentStateInitiated,
	}

	if err := s.store.Payments().Create(ctx, payment); err != nil {
		s.log.WithError(err).WithField("reference", reference).Error("payment creation failed")
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.ConflictErr("Payment reference already exists", err)
		}
		return nil, apperr.InternalErr(err)
	}

	s.log.WithField("reference", reference).Info("payment created")
	return payment, nil
}

// GetByReference returns the payment with its provider transactions.
func (s *PaymentService) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	payment, err := s.store.Payments().GetByReference(ctx, reference)
	if err != nil {
		return nil, storeError(err, reference)
	}
	return payment, nil
}

// List returns one page of payments and the total number matching filter.
func (s *PaymentService) List(ctx context.Context, filter repository.PaymentFilter) ([]models.Payment, int64, error) {
	payments, total, err := s.store.Payments().List(ctx, filter)
	if err != nil {
		return nil, 0, apperr.InternalErr(err)
	}
	return payments, total, nil
}

// UpdateStatus moves a payment to newState if the transition table allows
// it. The check and the write happen under a row lock in one transaction.
// Moving into PENDING assigns the default status provider.
func (s *PaymentService) UpdateStatus(ctx context.Context, reference string, newState models.PaymentState, reason string) (*models.Payment, error) {
	log := s.log.WithFields(logrus.Fields{"reference": reference, "status": newState})
	if reason != "" {
		log = log.WithField("reason", reason)
	}
	log.Info("updating payment status")

	var updated *models.Payment
	err := s.store.RunInTx(ctx, func(tx repository.Store) error {
		payment, err := tx.Payments().LockByReference(ctx, reference)
		if err != nil {
			return err
		}
		if err := ValidateTransition(payment.State, newState); err != nil {
			return err
		}

		payment.State = newState
		if newState == models.PaymentStatePending {
			provider := s.statusProvider
			payment.ProviderName = &provider
		}
		if err := tx.Payments().Update(ctx, payment); err != nil {
			return err
		}

		updated = payment
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("payment status update rejected")
		return nil, storeError(err, reference)
	}

	log.Info("payment status updated")
	return updated, nil
}

// storeError keeps classified errors and maps repository sentinels onto
// the error taxonomy.
func storeError(err error, reference string) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return paymentNotFound(reference)
	}
	return apperr.InternalErr(err)
}

func paymentNotFound(reference string) error {
	return apperr.NotFoundErr("Payment with reference " + reference + " not found")
}
