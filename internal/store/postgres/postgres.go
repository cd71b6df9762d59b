package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"negociaai/backend/internal/domain"
	"negociaai/backend/internal/store"
	"negociaai/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateCreditor(ctx context.Context, creditor domain.Creditor) (*domain.Creditor, error) {
	if creditor.Name == "" || creditor.CNPJ == "" || creditor.Email == "" || creditor.PasswordHash == "" {
		return nil, store.ErrInvalidInput
	}
	if creditor.ID == "" {
		creditor.ID = xid.New("credor")
	}
	if creditor.CreatedAt.IsZero() {
		creditor.CreatedAt = time.Now().UTC()
	}

	policyJSON, err := json.Marshal(creditor.Policy)
	if err != nil {
		return nil, err
	}
	webhookJSON, err := json.Marshal(creditor.Webhook)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO creditors (id, name, cnpj, email, password_hash, policy, webhook, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, creditor.ID, creditor.Name, creditor.CNPJ, creditor.Email, creditor.PasswordHash, policyJSON, webhookJSON, creditor.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := creditor
	return &created, nil
}

func (s *Store) GetCreditorByEmail(ctx context.Context, email string) (*domain.Creditor, error) {
	return s.findCreditor(ctx, "email", email)
}

func (s *Store) GetCreditorByID(ctx context.Context, creditorID string) (*domain.Creditor, error) {
	return s.findCreditor(ctx, "id", creditorID)
}

func (s *Store) findCreditor(ctx context.Context, column string, value string) (*domain.Creditor, error) {
	if column != "id" && column != "email" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	var creditor domain.Creditor
	var policyJSON []byte
	var webhookJSON []byte
	query := fmt.Sprintf(`
		SELECT id, name, cnpj, email, password_hash, policy, webhook, created_at
		FROM creditors
		WHERE %s = $1
	`, column)

	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&creditor.ID,
		&creditor.Name,
		&creditor.CNPJ,
		&creditor.Email,
		&creditor.PasswordHash,
		&policyJSON,
		&webhookJSON,
		&creditor.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if len(policyJSON) > 0 {
		if err := json.Unmarshal(policyJSON, &creditor.Policy); err != nil {
			return nil, err
		}
	}
	if len(webhookJSON) > 0 {
		if err := json.Unmarshal(webhookJSON, &creditor.Webhook); err != nil {
			return nil, err
		}
	}
	creditor.CreatedAt = creditor.CreatedAt.UTC()
	return &creditor, nil
}

func (s *Store) UpdateCreditorSettings(ctx context.Context, creditorID string, policy *domain.Policy, webhook *domain.WebhookConfig) error {
	if policy == nil && webhook == nil {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if policy != nil {
		payload, err := json.Marshal(policy)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE creditors SET policy = $2 WHERE id = $1`, creditorID, payload)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
	}
	if webhook != nil {
		payload, err := json.Marshal(webhook)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE creditors SET webhook = $2 WHERE id = $1`, creditorID, payload)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
	}

	return tx.Commit()
}

func (s *Store) UpsertDebtorByCPF(ctx context.Context, debtor domain.Debtor) (*domain.Debtor, error) {
	if debtor.CPF == "" || debtor.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if debtor.ID == "" {
		debtor.ID = xid.New("devedor")
	}

	var saved domain.Debtor
	var email sql.NullString
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO debtors (id, cpf, name, email, phone)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (cpf)
		DO UPDATE SET
			name = EXCLUDED.name,
			email = COALESCE(NULLIF(EXCLUDED.email, ''), debtors.email),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), debtors.phone)
		RETURNING id, cpf, name, email, phone
	`, debtor.ID, debtor.CPF, debtor.Name, nullIfEmpty(debtor.Email), nullIfEmpty(debtor.Phone)).Scan(
		&saved.ID, &saved.CPF, &saved.Name, &email, &phone,
	)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		saved.Email = email.String
	}
	if phone.Valid {
		saved.Phone = phone.String
	}
	return &saved, nil
}

func (s *Store) GetDebtorByCPF(ctx context.Context, cpfDigits string) (*domain.Debtor, error) {
	var debtor domain.Debtor
	var email sql.NullString
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, cpf, name, email, phone
		FROM debtors
		WHERE cpf = $1
	`, cpfDigits).Scan(&debtor.ID, &debtor.CPF, &debtor.Name, &email, &phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if email.Valid {
		debtor.Email = email.String
	}
	if phone.Valid {
		debtor.Phone = phone.String
	}
	return &debtor, nil
}

func (s *Store) CreateDebt(ctx context.Context, debt domain.Debt) (*domain.Debt, error) {
	if debt.CreditorID == "" || debt.DebtorID == "" || debt.CurrentAmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if debt.ID == "" {
		debt.ID = xid.New("divida")
	}
	if debt.Status == "" {
		debt.Status = domain.DebtStatusPending
	}
	if debt.CreatedAt.IsZero() {
		debt.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO debts (
			id, creditor_id, debtor_id, original_amount_cents, current_amount_cents,
			due_date, product, contract, status, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, debt.ID, debt.CreditorID, debt.DebtorID, debt.OriginalAmountCents, debt.CurrentAmountCents,
		debt.DueDate, debt.Product, nullIfEmpty(debt.Contract), debt.Status, debt.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := debt
	return &created, nil
}

const debtColumns = `
	d.id, d.creditor_id, d.debtor_id, d.original_amount_cents, d.current_amount_cents,
	d.due_date, d.product, COALESCE(d.contract,''), d.status, d.created_at,
	c.name, c.policy,
	dev.cpf, dev.name, COALESCE(dev.email,''), COALESCE(dev.phone,'')
`

func scanDebt(row interface{ Scan(...any) error }) (*domain.Debt, error) {
	var debt domain.Debt
	var creditorName string
	var policyJSON []byte
	var debtor domain.Debtor
	err := row.Scan(
		&debt.ID,
		&debt.CreditorID,
		&debt.DebtorID,
		&debt.OriginalAmountCents,
		&debt.CurrentAmountCents,
		&debt.DueDate,
		&debt.Product,
		&debt.Contract,
		&debt.Status,
		&debt.CreatedAt,
		&creditorName,
		&policyJSON,
		&debtor.CPF,
		&debtor.Name,
		&debtor.Email,
		&debtor.Phone,
	)
	if err != nil {
		return nil, err
	}

	creditor := domain.Creditor{ID: debt.CreditorID, Name: creditorName}
	if len(policyJSON) > 0 {
		if err := json.Unmarshal(policyJSON, &creditor.Policy); err != nil {
			return nil, err
		}
	}
	debtor.ID = debt.DebtorID
	debt.Creditor = &creditor
	debt.Debtor = &debtor
	debt.DueDate = debt.DueDate.UTC()
	debt.CreatedAt = debt.CreatedAt.UTC()
	return &debt, nil
}

func (s *Store) GetDebtByID(ctx context.Context, debtID string) (*domain.Debt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+debtColumns+`
		FROM debts d
		JOIN creditors c ON c.id = d.creditor_id
		JOIN debtors dev ON dev.id = d.debtor_id
		WHERE d.id = $1
	`, debtID)

	debt, err := scanDebt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return debt, nil
}

func (s *Store) ListPendingDebtsByDebtor(ctx context.Context, debtorID string) ([]domain.Debt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+debtColumns+`
		FROM debts d
		JOIN creditors c ON c.id = d.creditor_id
		JOIN debtors dev ON dev.id = d.debtor_id
		WHERE d.debtor_id = $1 AND d.status = $2
		ORDER BY d.due_date ASC
	`, debtorID, domain.DebtStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	debts := make([]domain.Debt, 0, 4)
	for rows.Next() {
		debt, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, *debt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return debts, nil
}

func (s *Store) ListDebts(ctx context.Context, req domain.DebtListRequest) ([]domain.Debt, int, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 10
	}

	sortColumn := "d.created_at"
	switch req.SortKey {
	case "due_date":
		sortColumn = "d.due_date"
	case "current_amount":
		sortColumn = "d.current_amount_cents"
	}
	direction := "DESC"
	if req.SortAsc {
		direction = "ASC"
	}

	where := `
		WHERE d.creditor_id = $1
			AND d.status <> $2
			AND ($3 = '' OR d.status = $3)
			AND ($4 = '' OR d.product ILIKE '%' || $4 || '%')
	`
	args := []any{req.CreditorID, domain.DebtStatusDeleted, req.Status, req.Search}

	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM debts d`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM debts d
		JOIN creditors c ON c.id = d.creditor_id
		JOIN debtors dev ON dev.id = d.debtor_id
		%s
		ORDER BY %s %s, d.id ASC
		LIMIT $5 OFFSET $6
	`, debtColumns, where, sortColumn, direction)

	offset := (req.Page - 1) * req.PageSize
	// offset goes negative when page*page_size overflows int.
	if offset < 0 {
		return []domain.Debt{}, total, nil
	}

	rows, err := s.db.QueryContext(ctx, query, append(args, req.PageSize, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	debts := make([]domain.Debt, 0, req.PageSize)
	for rows.Next() {
		debt, err := scanDebt(rows)
		if err != nil {
			return nil, 0, err
		}
		debts = append(debts, *debt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return debts, total, nil
}

func (s *Store) SoftDeleteDebt(ctx context.Context, creditorID string, debtID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE debts
		SET status = $3
		WHERE id = $1 AND creditor_id = $2
	`, debtID, creditorID, domain.DebtStatusDeleted)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateDebtStatus(ctx context.Context, debtID string, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE debts
		SET status = $2
		WHERE id = $1
	`, debtID, status)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetDebtTotals(ctx context.Context, creditorID string) (int, int64, error) {
	var count int
	var value int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::int, COALESCE(SUM(current_amount_cents),0)::bigint
		FROM debts
		WHERE creditor_id = $1 AND status <> $2
	`, creditorID, domain.DebtStatusDeleted).Scan(&count, &value)
	if err != nil {
		return 0, 0, err
	}
	return count, value, nil
}

func (s *Store) CreateNegotiation(ctx context.Context, negotiation domain.Negotiation) (*domain.Negotiation, error) {
	if negotiation.DebtID == "" {
		return nil, store.ErrInvalidInput
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO negotiations (id, debt_id, status, chosen_offer_id, agreed_total_cents, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, negotiation.ID, negotiation.DebtID, negotiation.Status, nullIfEmpty(negotiation.ChosenOfferID),
		negotiation.AgreedCents, negotiation.CreatedAt, negotiation.UpdatedAt)
	if err != nil {
		return nil, err
	}

	created := negotiation
	return &created, nil
}

func (s *Store) UpdateNegotiation(ctx context.Context, negotiation domain.Negotiation) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE negotiations
		SET status = COALESCE(NULLIF($2,''), status),
			chosen_offer_id = COALESCE(NULLIF($3,''), chosen_offer_id),
			agreed_total_cents = CASE WHEN $4 > 0 THEN $4 ELSE agreed_total_cents END,
			updated_at = now()
		WHERE id = $1
	`, negotiation.ID, negotiation.Status, negotiation.ChosenOfferID, negotiation.AgreedCents)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAgreementWithSchedule(ctx context.Context, agreement domain.Agreement, installments []domain.Installment) (*domain.Agreement, error) {
	if agreement.DebtID == "" || agreement.InstallmentCount < 1 || len(installments) != agreement.InstallmentCount {
		return nil, store.ErrInvalidInput
	}
	if agreement.ID == "" {
		agreement.ID = xid.New("acordo")
	}
	if agreement.Status == "" {
		agreement.Status = domain.AgreementStatusActive
	}
	if agreement.CreatedAt.IsZero() {
		agreement.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agreements (
			id, debt_id, negotiation_id, original_amount_cents, agreed_amount_cents,
			discount_pct, installment_count, per_installment_cents, down_payment_cents,
			chosen_offer_id, status, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, agreement.ID, agreement.DebtID, nullIfEmpty(agreement.NegotiationID), agreement.OriginalAmountCents,
		agreement.AgreedAmountCents, agreement.DiscountPct, agreement.InstallmentCount,
		agreement.PerInstallmentCents, agreement.DownPaymentCents, agreement.ChosenOfferID,
		agreement.Status, agreement.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for _, inst := range installments {
		if inst.ID == "" {
			inst.ID = xid.New("parcela")
		}
		if inst.Status == "" {
			inst.Status = domain.InstallmentStatusPending
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO installments (id, agreement_id, number, amount_cents, due_date, status)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, inst.ID, agreement.ID, inst.Number, inst.AmountCents, inst.DueDate, inst.Status)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := agreement
	return &created, nil
}

const agreementColumns = `
	id, debt_id, COALESCE(negotiation_id,''), original_amount_cents, agreed_amount_cents,
	discount_pct, installment_count, per_installment_cents, down_payment_cents,
	chosen_offer_id, status, created_at
`

func scanAgreement(row interface{ Scan(...any) error }) (*domain.Agreement, error) {
	var a domain.Agreement
	err := row.Scan(
		&a.ID,
		&a.DebtID,
		&a.NegotiationID,
		&a.OriginalAmountCents,
		&a.AgreedAmountCents,
		&a.DiscountPct,
		&a.InstallmentCount,
		&a.PerInstallmentCents,
		&a.DownPaymentCents,
		&a.ChosenOfferID,
		&a.Status,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (s *Store) GetAgreementByID(ctx context.Context, agreementID string) (*domain.Agreement, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+agreementColumns+`
		FROM agreements
		WHERE id = $1
	`, agreementID)

	agreement, err := scanAgreement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return agreement, nil
}

func (s *Store) ListInstallments(ctx context.Context, agreementID string) ([]domain.Installment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agreement_id, number, amount_cents, due_date, status
		FROM installments
		WHERE agreement_id = $1
		ORDER BY number ASC
	`, agreementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	installments := make([]domain.Installment, 0, 12)
	for rows.Next() {
		var inst domain.Installment
		if err := rows.Scan(&inst.ID, &inst.AgreementID, &inst.Number, &inst.AmountCents, &inst.DueDate, &inst.Status); err != nil {
			return nil, err
		}
		inst.DueDate = inst.DueDate.UTC()
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return installments, nil
}

func (s *Store) ListAgreements(ctx context.Context, req domain.AgreementListRequest) ([]domain.AgreementListItem, int, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 10
	}

	where := `
		WHERE d.creditor_id = $1
			AND ($2 = '' OR a.status = $2)
			AND ($3 = '' OR a.created_at::date >= $3::date)
			AND ($4 = '' OR a.created_at::date <= $4::date)
	`
	args := []any{req.CreditorID, req.Status, req.From, req.To}

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM agreements a
		JOIN debts d ON d.id = a.debt_id
	`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	offset := (req.Page - 1) * req.PageSize
	// offset goes negative when page*page_size overflows int.
	if offset < 0 {
		return []domain.AgreementListItem{}, total, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			a.id, a.debt_id, COALESCE(a.negotiation_id,''), a.original_amount_cents, a.agreed_amount_cents,
			a.discount_pct, a.installment_count, a.per_installment_cents, a.down_payment_cents,
			a.chosen_offer_id, a.status, a.created_at,
			`+debtColumns+`
		FROM agreements a
		JOIN debts d ON d.id = a.debt_id
		JOIN creditors c ON c.id = d.creditor_id
		JOIN debtors dev ON dev.id = d.debtor_id
		`+where+`
		ORDER BY a.created_at DESC, a.id ASC
		LIMIT $5 OFFSET $6
	`, append(args, req.PageSize, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]domain.AgreementListItem, 0, req.PageSize)
	for rows.Next() {
		var item domain.AgreementListItem
		var debt domain.Debt
		var creditorName string
		var policyJSON []byte
		var debtor domain.Debtor
		err := rows.Scan(
			&item.Agreement.ID,
			&item.Agreement.DebtID,
			&item.Agreement.NegotiationID,
			&item.Agreement.OriginalAmountCents,
			&item.Agreement.AgreedAmountCents,
			&item.Agreement.DiscountPct,
			&item.Agreement.InstallmentCount,
			&item.Agreement.PerInstallmentCents,
			&item.Agreement.DownPaymentCents,
			&item.Agreement.ChosenOfferID,
			&item.Agreement.Status,
			&item.Agreement.CreatedAt,
			&debt.ID,
			&debt.CreditorID,
			&debt.DebtorID,
			&debt.OriginalAmountCents,
			&debt.CurrentAmountCents,
			&debt.DueDate,
			&debt.Product,
			&debt.Contract,
			&debt.Status,
			&debt.CreatedAt,
			&creditorName,
			&policyJSON,
			&debtor.CPF,
			&debtor.Name,
			&debtor.Email,
			&debtor.Phone,
		)
		if err != nil {
			return nil, 0, err
		}
		item.Agreement.CreatedAt = item.Agreement.CreatedAt.UTC()
		debtor.ID = debt.DebtorID
		debt.Debtor = &debtor
		debt.DueDate = debt.DueDate.UTC()
		debt.CreatedAt = debt.CreatedAt.UTC()
		item.Debt = &debt
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) ListAgreementsByCreditor(ctx context.Context, creditorID string, from time.Time, to time.Time) ([]domain.Agreement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			a.id, a.debt_id, COALESCE(a.negotiation_id,''), a.original_amount_cents, a.agreed_amount_cents,
			a.discount_pct, a.installment_count, a.per_installment_cents, a.down_payment_cents,
			a.chosen_offer_id, a.status, a.created_at
		FROM agreements a
		JOIN debts d ON d.id = a.debt_id
		WHERE d.creditor_id = $1
			AND ($2::timestamptz IS NULL OR a.created_at >= $2)
			AND ($3::timestamptz IS NULL OR a.created_at <= $3)
		ORDER BY a.created_at ASC
	`, creditorID, nullTimeValue(from), nullTimeValue(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agreements := make([]domain.Agreement, 0, 32)
	for rows.Next() {
		agreement, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		agreements = append(agreements, *agreement)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return agreements, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTimeValue(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}
