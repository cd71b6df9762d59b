package memory

import (
	"cmp"
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"negociaai/backend/internal/domain"
	"negociaai/backend/internal/store"
	"negociaai/backend/internal/xid"
)

type Store struct {
	mu             sync.RWMutex
	creditorsByID  map[string]domain.Creditor
	debtorsByID    map[string]domain.Debtor
	debtorIDByCPF  map[string]string
	debtsByID      map[string]domain.Debt
	negotiations   map[string]domain.Negotiation
	agreementsByID map[string]domain.Agreement
	installments   map[string][]domain.Installment
}

func New() *Store {
	return &Store{
		creditorsByID:  make(map[string]domain.Creditor),
		debtorsByID:    make(map[string]domain.Debtor),
		debtorIDByCPF:  make(map[string]string),
		debtsByID:      make(map[string]domain.Debt),
		negotiations:   make(map[string]domain.Negotiation),
		agreementsByID: make(map[string]domain.Agreement),
		installments:   make(map[string][]domain.Installment),
	}
}

// NewSeeded builds a store with a demo creditor, debtor and a couple of
// overdue debts for dev/demo mode. The creditor password comes from
// SEED_CREDITOR_PASSWORD; a hardcoded dev default is used when unset.
func NewSeeded() *Store {
	s := New()

	password := os.Getenv("SEED_CREDITOR_PASSWORD")
	if password == "" {
		password = "credor123"
		log.Println("[memory-store] WARNING: using default dev credential. Set SEED_CREDITOR_PASSWORD to override.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password: %v", err)
	}

	now := time.Now().UTC()
	creditor := domain.Creditor{
		ID:           "credor-banco-aurora",
		Name:         "Banco Aurora",
		CNPJ:         "12345678000195",
		Email:        "contato@bancoaurora.com.br",
		PasswordHash: string(hash),
		Policy:       domain.DefaultPolicy(),
		CreatedAt:    now,
	}
	debtor := domain.Debtor{
		ID:    "devedor-demo",
		CPF:   "52998224725",
		Name:  "Maria da Silva",
		Email: "maria@example.com",
		Phone: "+55 11 91234-5678",
	}

	s.creditorsByID[creditor.ID] = creditor
	s.debtorsByID[debtor.ID] = debtor
	s.debtorIDByCPF[debtor.CPF] = debtor.ID

	debts := []domain.Debt{
		{
			ID:                  "divida-cartao-01",
			CreditorID:          creditor.ID,
			DebtorID:            debtor.ID,
			OriginalAmountCents: 80000,
			CurrentAmountCents:  100000,
			DueDate:             now.AddDate(0, 0, -20),
			Product:             "Cartão de Crédito",
			Contract:            "CTR-2025-0042",
			Status:              domain.DebtStatusPending,
			CreatedAt:           now,
		},
		{
			ID:                  "divida-emprestimo-01",
			CreditorID:          creditor.ID,
			DebtorID:            debtor.ID,
			OriginalAmountCents: 250000,
			CurrentAmountCents:  312000,
			DueDate:             now.AddDate(0, 0, -120),
			Product:             "Empréstimo Pessoal",
			Status:              domain.DebtStatusPending,
			CreatedAt:           now,
		},
	}
	for _, d := range debts {
		s.debtsByID[d.ID] = d
	}

	return s
}

func (s *Store) CreateCreditor(_ context.Context, creditor domain.Creditor) (*domain.Creditor, error) {
	if creditor.Name == "" || creditor.CNPJ == "" || creditor.Email == "" || creditor.PasswordHash == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.creditorsByID {
		if existing.Email == creditor.Email || existing.CNPJ == creditor.CNPJ {
			return nil, store.ErrConflict
		}
	}

	if creditor.ID == "" {
		creditor.ID = xid.New("credor")
	}
	if creditor.CreatedAt.IsZero() {
		creditor.CreatedAt = time.Now().UTC()
	}
	s.creditorsByID[creditor.ID] = creditor

	created := creditor
	return &created, nil
}

func (s *Store) GetCreditorByEmail(_ context.Context, email string) (*domain.Creditor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.creditorsByID {
		if c.Email == email {
			found := c
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetCreditorByID(_ context.Context, creditorID string) (*domain.Creditor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.creditorsByID[creditorID]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := c
	return &found, nil
}

func (s *Store) UpdateCreditorSettings(_ context.Context, creditorID string, policy *domain.Policy, webhook *domain.WebhookConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creditorsByID[creditorID]
	if !ok {
		return store.ErrNotFound
	}
	if policy != nil {
		c.Policy = *policy
	}
	if webhook != nil {
		c.Webhook = *webhook
	}
	s.creditorsByID[creditorID] = c
	return nil
}

func (s *Store) UpsertDebtorByCPF(_ context.Context, debtor domain.Debtor) (*domain.Debtor, error) {
	if debtor.CPF == "" || debtor.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.debtorIDByCPF[debtor.CPF]; ok {
		existing := s.debtorsByID[id]
		existing.Name = debtor.Name
		if debtor.Email != "" {
			existing.Email = debtor.Email
		}
		if debtor.Phone != "" {
			existing.Phone = debtor.Phone
		}
		s.debtorsByID[id] = existing
		found := existing
		return &found, nil
	}

	if debtor.ID == "" {
		debtor.ID = xid.New("devedor")
	}
	s.debtorsByID[debtor.ID] = debtor
	s.debtorIDByCPF[debtor.CPF] = debtor.ID

	created := debtor
	return &created, nil
}

func (s *Store) GetDebtorByCPF(_ context.Context, cpfDigits string) (*domain.Debtor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.debtorIDByCPF[cpfDigits]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := s.debtorsByID[id]
	return &found, nil
}

func (s *Store) CreateDebt(_ context.Context, debt domain.Debt) (*domain.Debt, error) {
	if debt.CreditorID == "" || debt.DebtorID == "" || debt.CurrentAmountCents < 1 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if debt.ID == "" {
		debt.ID = xid.New("divida")
	}
	if debt.Status == "" {
		debt.Status = domain.DebtStatusPending
	}
	if debt.CreatedAt.IsZero() {
		debt.CreatedAt = time.Now().UTC()
	}
	s.debtsByID[debt.ID] = debt

	created := debt
	return &created, nil
}

func (s *Store) GetDebtByID(_ context.Context, debtID string) (*domain.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	debt, ok := s.debtsByID[debtID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.hydrateDebt(debt), nil
}

// hydrateDebt attaches creditor and debtor rows. Callers must hold the lock.
func (s *Store) hydrateDebt(debt domain.Debt) *domain.Debt {
	if c, ok := s.creditorsByID[debt.CreditorID]; ok {
		creditor := c
		creditor.PasswordHash = ""
		debt.Creditor = &creditor
	}
	if d, ok := s.debtorsByID[debt.DebtorID]; ok {
		debtor := d
		debt.Debtor = &debtor
	}
	return &debt
}

func (s *Store) ListPendingDebtsByDebtor(_ context.Context, debtorID string) ([]domain.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	debts := make([]domain.Debt, 0, 4)
	for _, d := range s.debtsByID {
		if d.DebtorID == debtorID && d.Status == domain.DebtStatusPending {
			debts = append(debts, *s.hydrateDebt(d))
		}
	}
	slices.SortFunc(debts, func(a, b domain.Debt) int {
		return strings.Compare(a.ID, b.ID)
	})
	return debts, nil
}

func (s *Store) ListDebts(_ context.Context, req domain.DebtListRequest) ([]domain.Debt, int, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Debt, 0, len(s.debtsByID))
	for _, d := range s.debtsByID {
		if d.CreditorID != req.CreditorID || d.Status == domain.DebtStatusDeleted {
			continue
		}
		if req.Status != "" && d.Status != req.Status {
			continue
		}
		if req.Search != "" && !strings.Contains(strings.ToLower(d.Product), strings.ToLower(req.Search)) {
			continue
		}
		matched = append(matched, *s.hydrateDebt(d))
	}

	slices.SortFunc(matched, func(a, b domain.Debt) int {
		var c int
		switch req.SortKey {
		case "due_date":
			c = a.DueDate.Compare(b.DueDate)
		case "current_amount":
			c = cmp.Compare(a.CurrentAmountCents, b.CurrentAmountCents)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if !req.SortAsc {
			c = -c
		}
		return c
	})

	total := len(matched)
	start := (req.Page - 1) * req.PageSize
	// start goes negative when page*page_size overflows int.
	if start < 0 || start >= total {
		return []domain.Debt{}, total, nil
	}
	end := start + req.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) SoftDeleteDebt(_ context.Context, creditorID string, debtID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.debtsByID[debtID]
	if !ok || d.CreditorID != creditorID {
		return store.ErrNotFound
	}
	d.Status = domain.DebtStatusDeleted
	s.debtsByID[debtID] = d
	return nil
}

func (s *Store) UpdateDebtStatus(_ context.Context, debtID string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.debtsByID[debtID]
	if !ok {
		return store.ErrNotFound
	}
	d.Status = status
	s.debtsByID[debtID] = d
	return nil
}

func (s *Store) GetDebtTotals(_ context.Context, creditorID string) (int, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	var value int64
	for _, d := range s.debtsByID {
		if d.CreditorID != creditorID || d.Status == domain.DebtStatusDeleted {
			continue
		}
		count++
		value += d.CurrentAmountCents
	}
	return count, value, nil
}

func (s *Store) CreateNegotiation(_ context.Context, negotiation domain.Negotiation) (*domain.Negotiation, error) {
	if negotiation.DebtID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.debtsByID[negotiation.DebtID]; !ok {
		return nil, store.ErrNotFound
	}

	if negotiation.ID == "" {
		negotiation.ID = xid.New("neg")
	}
	if negotiation.Status == "" {
		negotiation.Status = domain.NegotiationStatusOpen
	}
	now := time.Now().UTC()
	if negotiation.CreatedAt.IsZero() {
		negotiation.CreatedAt = now
	}
	negotiation.UpdatedAt = now
	s.negotiations[negotiation.ID] = negotiation

	created := negotiation
	return &created, nil
}

func (s *Store) UpdateNegotiation(_ context.Context, negotiation domain.Negotiation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.negotiations[negotiation.ID]
	if !ok {
		return store.ErrNotFound
	}
	if negotiation.Status != "" {
		existing.Status = negotiation.Status
	}
	if negotiation.ChosenOfferID != "" {
		existing.ChosenOfferID = negotiation.ChosenOfferID
	}
	if negotiation.AgreedCents > 0 {
		existing.AgreedCents = negotiation.AgreedCents
	}
	existing.UpdatedAt = time.Now().UTC()
	s.negotiations[negotiation.ID] = existing
	return nil
}

func (s *Store) CreateAgreementWithSchedule(_ context.Context, agreement domain.Agreement, installments []domain.Installment) (*domain.Agreement, error) {
	if agreement.DebtID == "" || agreement.InstallmentCount < 1 || len(installments) != agreement.InstallmentCount {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if agreement.ID == "" {
		agreement.ID = xid.New("acordo")
	}
	if agreement.Status == "" {
		agreement.Status = domain.AgreementStatusActive
	}
	if agreement.CreatedAt.IsZero() {
		agreement.CreatedAt = time.Now().UTC()
	}

	rows := make([]domain.Installment, 0, len(installments))
	for _, inst := range installments {
		if inst.ID == "" {
			inst.ID = xid.New("parcela")
		}
		inst.AgreementID = agreement.ID
		if inst.Status == "" {
			inst.Status = domain.InstallmentStatusPending
		}
		rows = append(rows, inst)
	}

	s.agreementsByID[agreement.ID] = agreement
	s.installments[agreement.ID] = rows

	created := agreement
	return &created, nil
}

func (s *Store) GetAgreementByID(_ context.Context, agreementID string) (*domain.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agreementsByID[agreementID]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := a
	return &found, nil
}

func (s *Store) ListInstallments(_ context.Context, agreementID string) ([]domain.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := slices.Clone(s.installments[agreementID])
	slices.SortFunc(rows, func(a, b domain.Installment) int {
		return a.Number - b.Number
	})
	return rows, nil
}

func (s *Store) ListAgreements(_ context.Context, req domain.AgreementListRequest) ([]domain.AgreementListItem, int, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.AgreementListItem, 0, len(s.agreementsByID))
	for _, a := range s.agreementsByID {
		debt, ok := s.debtsByID[a.DebtID]
		if !ok || debt.CreditorID != req.CreditorID {
			continue
		}
		if req.Status != "" && a.Status != req.Status {
			continue
		}
		if !withinDateRange(a.CreatedAt, req.From, req.To) {
			continue
		}
		matched = append(matched, domain.AgreementListItem{Agreement: a, Debt: s.hydrateDebt(debt)})
	}

	slices.SortFunc(matched, func(a, b domain.AgreementListItem) int {
		c := b.Agreement.CreatedAt.Compare(a.Agreement.CreatedAt)
		if c == 0 {
			c = strings.Compare(a.Agreement.ID, b.Agreement.ID)
		}
		return c
	})

	total := len(matched)
	start := (req.Page - 1) * req.PageSize
	// start goes negative when page*page_size overflows int.
	if start < 0 || start >= total {
		return []domain.AgreementListItem{}, total, nil
	}
	end := start + req.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) ListAgreementsByCreditor(_ context.Context, creditorID string, from time.Time, to time.Time) ([]domain.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agreements := make([]domain.Agreement, 0, len(s.agreementsByID))
	for _, a := range s.agreementsByID {
		debt, ok := s.debtsByID[a.DebtID]
		if !ok || debt.CreditorID != creditorID {
			continue
		}
		if !from.IsZero() && a.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && a.CreatedAt.After(to) {
			continue
		}
		agreements = append(agreements, a)
	}
	slices.SortFunc(agreements, func(a, b domain.Agreement) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return agreements, nil
}

func withinDateRange(at time.Time, from string, to string) bool {
	day := at.UTC().Format("2006-01-02")
	if from != "" && day < from {
		return false
	}
	if to != "" && day > to {
		return false
	}
	return true
}
