package store

import (
	"context"
	"errors"
	"time"

	"negociaai/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

type Repository interface {
	CreateCreditor(ctx context.Context, creditor domain.Creditor) (*domain.Creditor, error)
	GetCreditorByEmail(ctx context.Context, email string) (*domain.Creditor, error)
	GetCreditorByID(ctx context.Context, creditorID string) (*domain.Creditor, error)
	UpdateCreditorSettings(ctx context.Context, creditorID string, policy *domain.Policy, webhook *domain.WebhookConfig) error

	UpsertDebtorByCPF(ctx context.Context, debtor domain.Debtor) (*domain.Debtor, error)
	GetDebtorByCPF(ctx context.Context, cpfDigits string) (*domain.Debtor, error)

	CreateDebt(ctx context.Context, debt domain.Debt) (*domain.Debt, error)
	GetDebtByID(ctx context.Context, debtID string) (*domain.Debt, error)
	ListPendingDebtsByDebtor(ctx context.Context, debtorID string) ([]domain.Debt, error)
	ListDebts(ctx context.Context, req domain.DebtListRequest) ([]domain.Debt, int, error)
	SoftDeleteDebt(ctx context.Context, creditorID string, debtID string) error
	UpdateDebtStatus(ctx context.Context, debtID string, status string) error
	GetDebtTotals(ctx context.Context, creditorID string) (count int, valueCents int64, err error)

	CreateNegotiation(ctx context.Context, negotiation domain.Negotiation) (*domain.Negotiation, error)
	UpdateNegotiation(ctx context.Context, negotiation domain.Negotiation) error

	CreateAgreementWithSchedule(ctx context.Context, agreement domain.Agreement, installments []domain.Installment) (*domain.Agreement, error)
	GetAgreementByID(ctx context.Context, agreementID string) (*domain.Agreement, error)
	ListInstallments(ctx context.Context, agreementID string) ([]domain.Installment, error)
	ListAgreements(ctx context.Context, req domain.AgreementListRequest) ([]domain.AgreementListItem, int, error)
	ListAgreementsByCreditor(ctx context.Context, creditorID string, from time.Time, to time.Time) ([]domain.Agreement, error)
}
