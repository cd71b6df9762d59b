package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"negociaai/backend/internal/domain"
	"negociaai/backend/internal/store"
)

func seed(t *testing.T, s *Store) (domain.Creditor, domain.Debtor) {
	t.Helper()
	ctx := context.Background()

	creditor, err := s.CreateCreditor(ctx, domain.Creditor{
		Name: "Credora", CNPJ: "11222333000181", Email: "c@example.com", PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("CreateCreditor failed: %v", err)
	}
	debtor, err := s.UpsertDebtorByCPF(ctx, domain.Debtor{CPF: "52998224725", Name: "Devedor"})
	if err != nil {
		t.Fatalf("UpsertDebtorByCPF failed: %v", err)
	}
	return *creditor, *debtor
}

func TestCreateCreditorRejectsDuplicates(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s)

	_, err := s.CreateCreditor(ctx, domain.Creditor{
		Name: "Outra", CNPJ: "99888777000166", Email: "c@example.com", PasswordHash: "x",
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestUpsertDebtorKeepsContactFields(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.UpsertDebtorByCPF(ctx, domain.Debtor{CPF: "52998224725", Name: "Maria", Email: "m@example.com"})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	second, err := s.UpsertDebtorByCPF(ctx, domain.Debtor{CPF: "52998224725", Name: "Maria Silva"})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("upsert must reuse the existing debtor row")
	}
	if second.Email != "m@example.com" {
		t.Fatalf("empty email must not clear stored value, got %q", second.Email)
	}
	if second.Name != "Maria Silva" {
		t.Fatalf("name should update, got %q", second.Name)
	}
}

func TestListDebtsPaginationAndSort(t *testing.T) {
	s := New()
	ctx := context.Background()
	creditor, debtor := seed(t, s)

	now := time.Now().UTC()
	amounts := []int64{30000, 10000, 20000}
	for i, amount := range amounts {
		_, err := s.CreateDebt(ctx, domain.Debt{
			CreditorID:         creditor.ID,
			DebtorID:           debtor.ID,
			CurrentAmountCents: amount,
			DueDate:            now.AddDate(0, 0, -10*(i+1)),
			Product:            "Cartão",
			CreatedAt:          now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateDebt failed: %v", err)
		}
	}

	debts, total, err := s.ListDebts(ctx, domain.DebtListRequest{
		CreditorID: creditor.ID,
		Page:       1,
		PageSize:   2,
		SortKey:    "current_amount",
		SortAsc:    true,
	})
	if err != nil {
		t.Fatalf("ListDebts failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(debts) != 2 {
		t.Fatalf("expected page of 2, got %d", len(debts))
	}
	if debts[0].CurrentAmountCents != 10000 || debts[1].CurrentAmountCents != 20000 {
		t.Fatalf("wrong ascending amount order: %d, %d", debts[0].CurrentAmountCents, debts[1].CurrentAmountCents)
	}

	debts, _, err = s.ListDebts(ctx, domain.DebtListRequest{
		CreditorID: creditor.ID,
		Page:       2,
		PageSize:   2,
		SortKey:    "current_amount",
		SortAsc:    true,
	})
	if err != nil {
		t.Fatalf("ListDebts page 2 failed: %v", err)
	}
	if len(debts) != 1 || debts[0].CurrentAmountCents != 30000 {
		t.Fatalf("wrong second page: %+v", debts)
	}
}

func TestListPaginationSurvivesHugePage(t *testing.T) {
	s := New()
	ctx := context.Background()
	creditor, debtor := seed(t, s)

	debt, err := s.CreateDebt(ctx, domain.Debt{
		CreditorID: creditor.ID, DebtorID: debtor.ID, CurrentAmountCents: 10000,
		DueDate: time.Now().UTC(), Product: "Cartão",
	})
	if err != nil {
		t.Fatalf("CreateDebt failed: %v", err)
	}
	_, err = s.CreateAgreementWithSchedule(ctx, domain.Agreement{
		DebtID: debt.ID, InstallmentCount: 1, AgreedAmountCents: 9000,
	}, []domain.Installment{{Number: 1, AmountCents: 9000}})
	if err != nil {
		t.Fatalf("CreateAgreementWithSchedule failed: %v", err)
	}

	// page*page_size overflows int here; must return an empty page, not panic.
	debts, total, err := s.ListDebts(ctx, domain.DebtListRequest{
		CreditorID: creditor.ID, Page: math.MaxInt, PageSize: 100,
	})
	if err != nil {
		t.Fatalf("ListDebts failed: %v", err)
	}
	if len(debts) != 0 || total != 1 {
		t.Fatalf("expected empty page with total 1, got %d rows, total %d", len(debts), total)
	}

	items, total, err := s.ListAgreements(ctx, domain.AgreementListRequest{
		CreditorID: creditor.ID, Page: math.MaxInt, PageSize: 100,
	})
	if err != nil {
		t.Fatalf("ListAgreements failed: %v", err)
	}
	if len(items) != 0 || total != 1 {
		t.Fatalf("expected empty page with total 1, got %d rows, total %d", len(items), total)
	}
}

func TestListDebtsSortsAmountsBeyond32Bits(t *testing.T) {
	s := New()
	ctx := context.Background()
	creditor, debtor := seed(t, s)

	for _, amount := range []int64{600_000_000_000, 100} {
		_, err := s.CreateDebt(ctx, domain.Debt{
			CreditorID: creditor.ID, DebtorID: debtor.ID, CurrentAmountCents: amount,
			DueDate: time.Now().UTC(), Product: "Cartão",
		})
		if err != nil {
			t.Fatalf("CreateDebt failed: %v", err)
		}
	}

	debts, _, err := s.ListDebts(ctx, domain.DebtListRequest{
		CreditorID: creditor.ID, SortKey: "current_amount", SortAsc: true,
	})
	if err != nil {
		t.Fatalf("ListDebts failed: %v", err)
	}
	if debts[0].CurrentAmountCents != 100 || debts[1].CurrentAmountCents != 600_000_000_000 {
		t.Fatalf("wrong order for amounts wider than 32 bits: %d, %d",
			debts[0].CurrentAmountCents, debts[1].CurrentAmountCents)
	}
}

func TestListDebtsFiltersSearchAndDeleted(t *testing.T) {
	s := New()
	ctx := context.Background()
	creditor, debtor := seed(t, s)

	cartao, err := s.CreateDebt(ctx, domain.Debt{
		CreditorID: creditor.ID, DebtorID: debtor.ID, CurrentAmountCents: 10000,
		DueDate: time.Now().UTC(), Product: "Cartão de Crédito",
	})
	if err != nil {
		t.Fatalf("CreateDebt failed: %v", err)
	}
	_, err = s.CreateDebt(ctx, domain.Debt{
		CreditorID: creditor.ID, DebtorID: debtor.ID, CurrentAmountCents: 10000,
		DueDate: time.Now().UTC(), Product: "Empréstimo",
	})
	if err != nil {
		t.Fatalf("CreateDebt failed: %v", err)
	}

	_, total, err := s.ListDebts(ctx, domain.DebtListRequest{CreditorID: creditor.ID, Search: "cartão"})
	if err != nil {
		t.Fatalf("ListDebts failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 match for search, got %d", total)
	}

	if err := s.SoftDeleteDebt(ctx, creditor.ID, cartao.ID); err != nil {
		t.Fatalf("SoftDeleteDebt failed: %v", err)
	}
	_, total, err = s.ListDebts(ctx, domain.DebtListRequest{CreditorID: creditor.ID})
	if err != nil {
		t.Fatalf("ListDebts failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("deleted debt must be hidden, got total %d", total)
	}
}

func TestSoftDeleteScopedToCreditor(t *testing.T) {
	s := New()
	ctx := context.Background()
	creditor, debtor := seed(t, s)

	debt, err := s.CreateDebt(ctx, domain.Debt{
		CreditorID: creditor.ID, DebtorID: debtor.ID, CurrentAmountCents: 10000,
		DueDate: time.Now().UTC(), Product: "Cartão",
	})
	if err != nil {
		t.Fatalf("CreateDebt failed: %v", err)
	}

	if err := s.SoftDeleteDebt(ctx, "outro-credor", debt.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign creditor, got %v", err)
	}
}

func TestCreateAgreementWithScheduleValidatesRowCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	creditor, debtor := seed(t, s)

	debt, err := s.CreateDebt(ctx, domain.Debt{
		CreditorID: creditor.ID, DebtorID: debtor.ID, CurrentAmountCents: 10000,
		DueDate: time.Now().UTC(), Product: "Cartão",
	})
	if err != nil {
		t.Fatalf("CreateDebt failed: %v", err)
	}

	_, err = s.CreateAgreementWithSchedule(ctx, domain.Agreement{
		DebtID: debt.ID, InstallmentCount: 3, AgreedAmountCents: 9000,
	}, []domain.Installment{{Number: 1, AmountCents: 9000}})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for mismatched schedule, got %v", err)
	}

	agreement, err := s.CreateAgreementWithSchedule(ctx, domain.Agreement{
		DebtID: debt.ID, InstallmentCount: 2, AgreedAmountCents: 9000,
	}, []domain.Installment{
		{Number: 1, AmountCents: 4500},
		{Number: 2, AmountCents: 4500},
	})
	if err != nil {
		t.Fatalf("CreateAgreementWithSchedule failed: %v", err)
	}

	rows, err := s.ListInstallments(ctx, agreement.ID)
	if err != nil {
		t.Fatalf("ListInstallments failed: %v", err)
	}
	if len(rows) != 2 || rows[0].Number != 1 || rows[1].Number != 2 {
		t.Fatalf("unexpected schedule: %+v", rows)
	}
}

func TestListAgreementsJoinsDebtAndFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	creditor, debtor := seed(t, s)

	debt, err := s.CreateDebt(ctx, domain.Debt{
		CreditorID: creditor.ID, DebtorID: debtor.ID, CurrentAmountCents: 10000,
		DueDate: time.Now().UTC(), Product: "Cartão",
	})
	if err != nil {
		t.Fatalf("CreateDebt failed: %v", err)
	}
	_, err = s.CreateAgreementWithSchedule(ctx, domain.Agreement{
		DebtID: debt.ID, InstallmentCount: 1, AgreedAmountCents: 9000,
	}, []domain.Installment{{Number: 1, AmountCents: 9000}})
	if err != nil {
		t.Fatalf("CreateAgreementWithSchedule failed: %v", err)
	}

	items, total, err := s.ListAgreements(ctx, domain.AgreementListRequest{CreditorID: creditor.ID})
	if err != nil {
		t.Fatalf("ListAgreements failed: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected 1 agreement, got %d", total)
	}
	if items[0].Debt == nil || items[0].Debt.ID != debt.ID {
		t.Fatal("agreement listing must attach the debt row")
	}

	_, total, err = s.ListAgreements(ctx, domain.AgreementListRequest{CreditorID: "outro-credor"})
	if err != nil {
		t.Fatalf("ListAgreements failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("foreign creditor must see no agreements, got %d", total)
	}
}
