// Package service implements the negotiation portal use cases on top of the
// repository, the offer engine and the dialogue reducer.
package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"negociaai/backend/internal/cache"
	"negociaai/backend/internal/cpf"
	"negociaai/backend/internal/dialogue"
	"negociaai/backend/internal/domain"
	"negociaai/backend/internal/offer"
	"negociaai/backend/internal/store"
	"negociaai/backend/internal/xid"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDebtNotOpen      = errors.New("debt not open for negotiation")
	ErrNoOfferChosen    = errors.New("no offer chosen")
	ErrFinalizeInFlight = errors.New("finalize already in progress")
	ErrInvalidCPF       = errors.New("invalid cpf")
)

// Notifier delivers outbound webhook events.
type Notifier interface {
	AgreementCreated(ctx context.Context, cfg domain.WebhookConfig, agreement domain.Agreement) error
	Test(ctx context.Context, url string, token string) domain.WebhookTestResponse
}

// session holds the in-memory dialogue state for one open negotiation. All
// fields are guarded by mu; the service map lock only protects the map.
type session struct {
	mu            sync.Mutex
	id            string
	debt          domain.Debt
	policy        domain.Policy
	webhook       domain.WebhookConfig
	menu          domain.OfferMenu
	state         dialogue.State
	transcript    []domain.Turn
	negotiationID string
	finalizing    bool
	agreement     *domain.Agreement
}

type Service struct {
	repo       store.Repository
	menus      cache.MenuCache
	notifier   Notifier
	menuTTL    time.Duration
	replyDelay time.Duration

	sessionsMu sync.RWMutex
	sessions   map[string]*session

	now func() time.Time
}

func New(repo store.Repository, menus cache.MenuCache, notifier Notifier, menuTTL time.Duration, replyDelay time.Duration) *Service {
	return &Service{
		repo:       repo,
		menus:      menus,
		notifier:   notifier,
		menuTTL:    menuTTL,
		replyDelay: replyDelay,
		sessions:   make(map[string]*session),
		now:        time.Now,
	}
}

// LookupDebtsByCPF returns the debtor's open debts. An unknown but valid CPF
// yields an empty list, not an error, so the portal never confirms whether a
// document exists.
func (s *Service) LookupDebtsByCPF(ctx context.Context, document string) (*domain.DebtLookupResponse, error) {
	if !cpf.Valid(document) {
		return nil, ErrInvalidCPF
	}

	debtor, err := s.repo.GetDebtorByCPF(ctx, cpf.Digits(document))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &domain.DebtLookupResponse{Debts: []domain.Debt{}}, nil
		}
		return nil, err
	}

	debts, err := s.repo.ListPendingDebtsByDebtor(ctx, debtor.ID)
	if err != nil {
		return nil, err
	}
	return &domain.DebtLookupResponse{Debts: debts, Count: len(debts)}, nil
}

func (s *Service) GetDebt(ctx context.Context, debtID string) (*domain.Debt, error) {
	return s.repo.GetDebtByID(ctx, debtID)
}

// StartNegotiation opens a chat session for a pending debt: derives the offer
// menu (cached per debt per day, since delinquency age crosses bracket
// boundaries at midnight) and emits the welcome plus menu turns.
func (s *Service) StartNegotiation(ctx context.Context, debtID string) (*domain.StartNegotiationResponse, error) {
	debt, err := s.repo.GetDebtByID(ctx, debtID)
	if err != nil {
		return nil, err
	}
	if debt.Status != domain.DebtStatusPending {
		return nil, ErrDebtNotOpen
	}

	var policy domain.Policy
	if debt.Creditor != nil {
		policy = debt.Creditor.Policy
	}
	policy = policy.WithDefaults()

	now := s.now().UTC()
	menu, err := s.menuFor(ctx, *debt, policy, now)
	if err != nil {
		return nil, err
	}

	negotiationID := ""
	negotiation, err := s.repo.CreateNegotiation(ctx, domain.Negotiation{DebtID: debt.ID})
	if err != nil {
		log.Printf("[service] warn: negotiation row not created for debt %s: %v", debt.ID, err)
	} else {
		negotiationID = negotiation.ID
	}

	sess := &session{
		id:            xid.New("sessao"),
		debt:          *debt,
		policy:        policy,
		menu:          menu,
		state:         dialogue.NewState(),
		negotiationID: negotiationID,
	}
	if debt.Creditor != nil {
		sess.webhook = debt.Creditor.Webhook
	}

	debtorName := ""
	if debt.Debtor != nil {
		debtorName = firstName(debt.Debtor.Name)
	}
	welcome := policy.WelcomeMessage
	if debtorName != "" {
		welcome = fmt.Sprintf("%s, %s", debtorName, lowerFirst(policy.WelcomeMessage))
	}
	welcome = fmt.Sprintf("%s Encontrei uma dívida de %s referente a %s.",
		welcome, dialogue.FormatAmount(float64(debt.CurrentAmountCents)/100), debt.Product)

	sess.transcript = append(sess.transcript,
		assistantTurn(now, welcome),
		assistantTurn(now, "Preparei algumas opções para você quitar hoje:\n\n"+dialogue.FormatMenu(menu)),
	)

	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMu.Unlock()

	return &domain.StartNegotiationResponse{
		SessionID: sess.id,
		Debt:      *debt,
		Menu:      menu,
		Turns:     append([]domain.Turn(nil), sess.transcript...),
	}, nil
}

func (s *Service) menuFor(ctx context.Context, debt domain.Debt, policy domain.Policy, now time.Time) (domain.OfferMenu, error) {
	key := fmt.Sprintf("menu:%s:%s", debt.ID, now.Format("2006-01-02"))

	cached, ok, err := s.menus.Get(ctx, key)
	if err != nil {
		log.Printf("[service] warn: menu cache read failed: %v", err)
	}
	if ok && cached != nil && len(cached.Offers) > 0 {
		return *cached, nil
	}

	menu := offer.Derive(float64(debt.CurrentAmountCents)/100, debt.DueDate, policy, now)
	if err := s.menus.Set(ctx, key, &menu, s.menuTTL); err != nil {
		log.Printf("[service] warn: menu cache write failed: %v", err)
	}
	return menu, nil
}

// SendMessage runs one dialogue turn. The reducer is applied under the
// session lock; the artificial reply delay happens after release so slow
// readers never serialize other sessions.
func (s *Service) SendMessage(ctx context.Context, sessionID string, text string) (*domain.UtteranceResponse, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	sess.mu.Lock()
	sess.transcript = append(sess.transcript, domain.Turn{
		ID:        xid.New("msg"),
		Sender:    domain.SenderUser,
		Text:      text,
		Timestamp: now,
	})

	var replyText string
	if sess.agreement != nil {
		replyText = "Seu acordo já foi fechado! Guarde o número " + sess.agreement.ID + " para consultar as parcelas."
	} else {
		var next dialogue.State
		next, replyText = dialogue.Reduce(sess.state, text, sess.menu)
		newlyChosen := next.Chosen != nil && (sess.state.Chosen == nil || sess.state.Chosen.ID != next.Chosen.ID)
		sess.state = next
		if newlyChosen && sess.negotiationID != "" {
			if err := s.repo.UpdateNegotiation(ctx, domain.Negotiation{ID: sess.negotiationID, ChosenOfferID: next.Chosen.ID}); err != nil {
				log.Printf("[service] warn: negotiation %s not updated: %v", sess.negotiationID, err)
			}
		}
	}

	reply := assistantTurn(now, replyText)
	sess.transcript = append(sess.transcript, reply)
	chosenID := ""
	if sess.state.Chosen != nil {
		chosenID = sess.state.Chosen.ID
	}
	eligible := sess.state.FinalizeEligible
	sess.mu.Unlock()

	if s.replyDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.replyDelay):
		}
	}

	return &domain.UtteranceResponse{
		Reply:            reply,
		ChosenOfferID:    chosenID,
		FinalizeEligible: eligible,
	}, nil
}

// Finalize persists the agreement for the chosen offer. It is idempotent per
// session: a finished session returns the existing agreement, a concurrent
// call while persistence is in flight gets ErrFinalizeInFlight.
func (s *Service) Finalize(ctx context.Context, sessionID string) (*domain.FinalizeResponse, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	sess.mu.Lock()
	if sess.agreement != nil {
		existing := *sess.agreement
		reply := assistantTurn(now, successReply(existing))
		sess.mu.Unlock()
		return &domain.FinalizeResponse{Agreement: existing, Reply: reply}, nil
	}
	if sess.finalizing {
		sess.mu.Unlock()
		return nil, ErrFinalizeInFlight
	}
	if sess.state.Chosen == nil || !sess.state.FinalizeEligible {
		sess.mu.Unlock()
		return nil, ErrNoOfferChosen
	}
	sess.finalizing = true
	chosen := *sess.state.Chosen
	debt := sess.debt
	negotiationID := sess.negotiationID
	sess.mu.Unlock()

	if negotiationID == "" {
		negotiation, err := s.repo.CreateNegotiation(ctx, domain.Negotiation{DebtID: debt.ID, ChosenOfferID: chosen.ID})
		if err == nil {
			negotiationID = negotiation.ID
			sess.mu.Lock()
			sess.negotiationID = negotiationID
			sess.mu.Unlock()
		} else {
			log.Printf("[service] warn: negotiation row not created for debt %s: %v", debt.ID, err)
		}
	}

	agreement := domain.Agreement{
		DebtID:              debt.ID,
		NegotiationID:       negotiationID,
		OriginalAmountCents: debt.CurrentAmountCents,
		AgreedAmountCents:   toCents(chosen.Total),
		DiscountPct:         chosen.DiscountPct,
		InstallmentCount:    chosen.Installments,
		PerInstallmentCents: toCents(chosen.PerInstallment),
		DownPaymentCents:    toCents(chosen.DownPayment),
		ChosenOfferID:       chosen.ID,
		Status:              domain.AgreementStatusActive,
		CreatedAt:           now,
	}

	created, err := s.repo.CreateAgreementWithSchedule(ctx, agreement, buildSchedule(agreement, now))
	if err != nil {
		sess.mu.Lock()
		sess.finalizing = false
		sess.transcript = append(sess.transcript,
			assistantTurn(now, "Erro ao criar o acordo. Tente novamente."))
		sess.mu.Unlock()
		return nil, fmt.Errorf("create agreement: %w", err)
	}

	if err := s.repo.UpdateDebtStatus(ctx, debt.ID, domain.DebtStatusSettled); err != nil {
		log.Printf("[service] warn: debt %s not marked settled: %v", debt.ID, err)
	}
	if negotiationID != "" {
		err := s.repo.UpdateNegotiation(ctx, domain.Negotiation{
			ID:            negotiationID,
			Status:        domain.NegotiationStatusClosed,
			ChosenOfferID: chosen.ID,
			AgreedCents:   created.AgreedAmountCents,
		})
		if err != nil {
			log.Printf("[service] warn: negotiation %s not closed: %v", negotiationID, err)
		}
	}

	reply := assistantTurn(now, successReply(*created))

	sess.mu.Lock()
	sess.agreement = created
	sess.finalizing = false
	sess.state.Status = dialogue.StatusFinalized
	sess.transcript = append(sess.transcript, reply)
	webhookCfg := sess.webhook
	sess.mu.Unlock()

	if s.notifier != nil {
		go func(cfg domain.WebhookConfig, agreement domain.Agreement) {
			deliverCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.notifier.AgreementCreated(deliverCtx, cfg, agreement); err != nil {
				log.Printf("[service] warn: webhook delivery failed for agreement %s: %v", agreement.ID, err)
			}
		}(webhookCfg, *created)
	}

	return &domain.FinalizeResponse{Agreement: *created, Reply: reply}, nil
}

func (s *Service) GetAgreement(ctx context.Context, agreementID string) (*domain.AgreementResponse, error) {
	agreement, err := s.repo.GetAgreementByID(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	installments, err := s.repo.ListInstallments(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	return &domain.AgreementResponse{Agreement: *agreement, Installments: installments}, nil
}

func (s *Service) session(sessionID string) (*session, error) {
	s.sessionsMu.RLock()
	sess, ok := s.sessions[sessionID]
	s.sessionsMu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// buildSchedule lays out the payment plan: the down payment, when present,
// takes the first slot ten days out, and remaining installments follow every
// thirty days.
func buildSchedule(agreement domain.Agreement, now time.Time) []domain.Installment {
	installments := make([]domain.Installment, 0, agreement.InstallmentCount)
	for i := 1; i <= agreement.InstallmentCount; i++ {
		amount := agreement.PerInstallmentCents
		if i == 1 && agreement.DownPaymentCents > 0 && agreement.InstallmentCount > 1 {
			amount = agreement.DownPaymentCents
		}
		installments = append(installments, domain.Installment{
			Number:      i,
			AmountCents: amount,
			DueDate:     now.AddDate(0, 0, 10+30*(i-1)),
			Status:      domain.InstallmentStatusPending,
		})
	}
	return installments
}

func successReply(agreement domain.Agreement) string {
	if agreement.InstallmentCount == 1 {
		return fmt.Sprintf(
			"Acordo fechado com sucesso! 🎉\n\nPagamento à vista de %s.\nNúmero do acordo: %s\n\nVocê receberá o boleto da primeira parcela em instantes.",
			dialogue.FormatAmount(float64(agreement.AgreedAmountCents)/100), agreement.ID)
	}
	return fmt.Sprintf(
		"Acordo fechado com sucesso! 🎉\n\n%dx de %s (total %s).\nNúmero do acordo: %s\n\nVocê receberá o boleto da primeira parcela em instantes.",
		agreement.InstallmentCount,
		dialogue.FormatAmount(float64(agreement.PerInstallmentCents)/100),
		dialogue.FormatAmount(float64(agreement.AgreedAmountCents)/100),
		agreement.ID)
}

func assistantTurn(at time.Time, text string) domain.Turn {
	return domain.Turn{
		ID:        xid.New("msg"),
		Sender:    domain.SenderAssistant,
		Text:      text,
		Timestamp: at,
	}
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = []rune(strings.ToLower(string(runes[0])))[0]
	return string(runes)
}

// --- creditor operations ---

func (s *Service) Dashboard(ctx context.Context, creditorID string) (*domain.DashboardResponse, error) {
	debtCount, debtValueCents, err := s.repo.GetDebtTotals(ctx, creditorID)
	if err != nil {
		return nil, err
	}

	agreements, err := s.repo.ListAgreementsByCreditor(ctx, creditorID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	// Cancelled agreements count for nothing: not the totals, not the rate,
	// not the chart.
	active := make([]domain.Agreement, 0, len(agreements))
	for _, a := range agreements {
		if a.Status != domain.AgreementStatusCancelled {
			active = append(active, a)
		}
	}

	var recovered int64
	var settledOriginal int64
	for _, a := range active {
		recovered += a.AgreedAmountCents
		settledOriginal += a.OriginalAmountCents
	}

	open := debtValueCents - settledOriginal
	if open < 0 {
		open = 0
	}

	resp := &domain.DashboardResponse{
		TotalDebts:            debtCount,
		TotalAgreements:       len(active),
		OpenValueCents:        open,
		RecoveredValueCents:   recovered,
		RecoverableValueCents: debtValueCents,
		ChartData:             agreementsPerDay(active, s.now().UTC(), 30),
	}
	if debtCount > 0 {
		resp.ConversionRatePct = float64(len(active)) / float64(debtCount) * 100
	}
	return resp, nil
}

func (s *Service) Report(ctx context.Context, req domain.ReportRequest) (*domain.ReportResponse, error) {
	from, to, err := parseDateRange(req.From, req.To)
	if err != nil {
		return nil, store.ErrInvalidInput
	}

	agreements, err := s.repo.ListAgreementsByCreditor(ctx, req.CreditorID, from, to)
	if err != nil {
		return nil, err
	}

	resp := &domain.ReportResponse{
		TotalAgreements: len(agreements),
		ChartData:       agreementsPerDay(agreements, s.now().UTC(), 30),
	}
	if len(agreements) == 0 {
		return resp, nil
	}

	var discountSum float64
	for _, a := range agreements {
		resp.TotalValueCents += a.AgreedAmountCents
		discountSum += a.DiscountPct
	}
	resp.AvgTicketCents = resp.TotalValueCents / int64(len(agreements))
	resp.AvgDiscountPct = discountSum / float64(len(agreements))
	return resp, nil
}

func agreementsPerDay(agreements []domain.Agreement, now time.Time, days int) []domain.ChartPoint {
	counts := make(map[string]int, days)
	for _, a := range agreements {
		counts[a.CreatedAt.UTC().Format("2006-01-02")]++
	}

	points := make([]domain.ChartPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format("2006-01-02")
		points = append(points, domain.ChartPoint{Date: day, Agreements: counts[day]})
	}
	return points
}

func parseDateRange(from string, to string) (time.Time, time.Time, error) {
	var fromAt, toAt time.Time
	if from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return fromAt, toAt, err
		}
		fromAt = parsed
	}
	if to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return fromAt, toAt, err
		}
		toAt = parsed.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return fromAt, toAt, nil
}

func (s *Service) ListDebts(ctx context.Context, req domain.DebtListRequest) (*domain.DebtListResponse, error) {
	debts, total, err := s.repo.ListDebts(ctx, req)
	if err != nil {
		return nil, err
	}
	return &domain.DebtListResponse{Debts: debts, Total: total}, nil
}

func (s *Service) DeleteDebt(ctx context.Context, creditorID string, debtID string) error {
	return s.repo.SoftDeleteDebt(ctx, creditorID, debtID)
}

func (s *Service) ListAgreements(ctx context.Context, req domain.AgreementListRequest) (*domain.AgreementListResponse, error) {
	items, total, err := s.repo.ListAgreements(ctx, req)
	if err != nil {
		return nil, err
	}
	return &domain.AgreementListResponse{Items: items, Total: total}, nil
}

func (s *Service) GetSettings(ctx context.Context, creditorID string) (*domain.SettingsResponse, error) {
	creditor, err := s.repo.GetCreditorByID(ctx, creditorID)
	if err != nil {
		return nil, err
	}
	return &domain.SettingsResponse{
		Policy:  creditor.Policy.WithDefaults(),
		Webhook: creditor.Webhook,
	}, nil
}

func (s *Service) UpdateSettings(ctx context.Context, creditorID string, req domain.SettingsUpdateRequest) (*domain.SettingsResponse, error) {
	if req.Policy != nil {
		normalized := req.Policy.WithDefaults()
		if !normalized.Validate() {
			return nil, fmt.Errorf("%w: policy out of range", store.ErrInvalidInput)
		}
		*req.Policy = normalized
	}

	if err := s.repo.UpdateCreditorSettings(ctx, creditorID, req.Policy, req.Webhook); err != nil {
		return nil, err
	}
	return s.GetSettings(ctx, creditorID)
}

func (s *Service) TestWebhook(ctx context.Context, req domain.WebhookTestRequest) domain.WebhookTestResponse {
	if req.URL == "" {
		return domain.WebhookTestResponse{Success: false, Error: "url obrigatória"}
	}
	return s.notifier.Test(ctx, req.URL, req.Token)
}

const maxUploadErrors = 20

// UploadDebtsCSV imports a portfolio file. Expected columns:
// cpf, nome, valor, vencimento, produto, contrato. The amount uses the
// Brazilian decimal comma; vencimento is YYYY-MM-DD. Bad rows are skipped and
// reported, up to a cap.
func (s *Service) UploadDebtsCSV(ctx context.Context, creditorID string, r io.Reader) (*domain.UploadResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: empty file", store.ErrInvalidInput)
	}
	if len(header) < 5 {
		return nil, fmt.Errorf("%w: expected columns cpf,nome,valor,vencimento,produto", store.ErrInvalidInput)
	}

	result := &domain.UploadResult{Errors: []string{}}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Total++
			appendError(result, line, "linha malformada")
			continue
		}
		result.Total++

		if len(record) < 5 {
			appendError(result, line, "colunas insuficientes")
			continue
		}

		document := strings.TrimSpace(record[0])
		name := strings.TrimSpace(record[1])
		amountRaw := strings.TrimSpace(record[2])
		dueRaw := strings.TrimSpace(record[3])
		product := strings.TrimSpace(record[4])
		contract := ""
		if len(record) > 5 {
			contract = strings.TrimSpace(record[5])
		}

		if !cpf.Valid(document) {
			appendError(result, line, "CPF inválido")
			continue
		}
		if name == "" || product == "" {
			appendError(result, line, "nome e produto são obrigatórios")
			continue
		}
		amountCents, err := parseBRLCents(amountRaw)
		if err != nil || amountCents < 1 {
			appendError(result, line, "valor inválido")
			continue
		}
		dueDate, err := time.Parse("2006-01-02", dueRaw)
		if err != nil {
			appendError(result, line, "vencimento inválido (use AAAA-MM-DD)")
			continue
		}

		debtor, err := s.repo.UpsertDebtorByCPF(ctx, domain.Debtor{CPF: cpf.Digits(document), Name: name})
		if err != nil {
			appendError(result, line, "falha ao registrar devedor")
			continue
		}

		_, err = s.repo.CreateDebt(ctx, domain.Debt{
			CreditorID:          creditorID,
			DebtorID:            debtor.ID,
			OriginalAmountCents: amountCents,
			CurrentAmountCents:  amountCents,
			DueDate:             dueDate.UTC(),
			Product:             product,
			Contract:            contract,
			Status:              domain.DebtStatusPending,
		})
		if err != nil {
			appendError(result, line, "falha ao registrar dívida")
			continue
		}
		result.Inserted++
	}

	return result, nil
}

func appendError(result *domain.UploadResult, line int, msg string) {
	if len(result.Errors) >= maxUploadErrors {
		return
	}
	result.Errors = append(result.Errors, fmt.Sprintf("linha %d: %s", line, msg))
}

// parseBRLCents parses "1.234,56" style amounts into cents. A plain dot
// decimal ("1234.56") is accepted too.
func parseBRLCents(raw string) (int64, error) {
	cleaned := strings.TrimSpace(strings.TrimPrefix(raw, "R$"))
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}

	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}

	var value float64
	if _, err := fmt.Sscanf(cleaned, "%f", &value); err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("negative amount")
	}
	return int64(math.Round(value * 100)), nil
}
