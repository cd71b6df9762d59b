package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"negociaai/backend/internal/cache"
	"negociaai/backend/internal/domain"
	"negociaai/backend/internal/service"
	"negociaai/backend/internal/store/memory"
)

type testEnv struct {
	handler http.Handler
	api     *API
	repo    *memory.Store
}

type stubNotifier struct{}

func (stubNotifier) AgreementCreated(_ context.Context, _ domain.WebhookConfig, _ domain.Agreement) error {
	return nil
}

func (stubNotifier) Test(_ context.Context, _ string, _ string) domain.WebhookTestResponse {
	return domain.WebhookTestResponse{Success: true, Status: 200}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := memory.New()
	svc := service.New(repo, cache.NoopMenuCache{}, stubNotifier{}, 5*time.Minute, 0)
	auth := NewAuthManager("test-secret", time.Hour, repo)
	api := New(svc, auth, "http://127.0.0.1:3000")
	return &testEnv{handler: api.Handler(), api: api, repo: repo}
}

func (e *testEnv) do(t *testing.T, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func (e *testEnv) registerCreditor(t *testing.T) domain.LoginResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/register", domain.CreditorRegisterRequest{
		Name:     "Banco Horizonte",
		CNPJ:     "12.345.678/0001-95",
		Email:    "ops@horizonte.com.br",
		Password: "segredo-forte",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)
	return resp
}

func (e *testEnv) seedDebtFor(t *testing.T, creditorID string) domain.Debt {
	t.Helper()
	ctx := context.Background()
	debtor, err := e.repo.UpsertDebtorByCPF(ctx, domain.Debtor{CPF: "52998224725", Name: "Ana Prado"})
	if err != nil {
		t.Fatalf("seed debtor: %v", err)
	}
	debt, err := e.repo.CreateDebt(ctx, domain.Debt{
		CreditorID:          creditorID,
		DebtorID:            debtor.ID,
		OriginalAmountCents: 100000,
		CurrentAmountCents:  100000,
		DueDate:             time.Now().UTC().AddDate(0, 0, -45),
		Product:             "Cartão de Crédito",
		Status:              domain.DebtStatusPending,
	})
	if err != nil {
		t.Fatalf("seed debt: %v", err)
	}
	return *debt
}

func authHeaders(token string, csrf string) map[string]string {
	headers := map[string]string{"Authorization": "Bearer " + token}
	if csrf != "" {
		headers["X-CSRF-Token"] = csrf
	}
	return headers
}

func TestRegisterLoginAndParseToken(t *testing.T) {
	env := newTestEnv(t)

	registered := env.registerCreditor(t)
	if registered.AccessToken == "" || registered.CreditorID == "" {
		t.Fatalf("incomplete register response: %+v", registered)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{
		Email:    "ops@horizonte.com.br",
		Password: "segredo-forte",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{
		Email:    "ops@horizonte.com.br",
		Password: "senha-errada",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password returned %d", rec.Code)
	}

	actor, err := env.api.auth.ParseToken(registered.AccessToken)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if actor.CreditorID != registered.CreditorID {
		t.Fatalf("token subject %q, want %q", actor.CreditorID, registered.CreditorID)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.registerCreditor(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", domain.CreditorRegisterRequest{
		Name:     "Outro Banco",
		CNPJ:     "12.345.678/0001-95",
		Email:    "ops@horizonte.com.br",
		Password: "segredo-forte",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register returned %d", rec.Code)
	}
}

func TestDashboardRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/dashboard", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/dashboard", nil, authHeaders("not-a-token", ""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", rec.Code)
	}
}

func TestPublicNegotiationFlow(t *testing.T) {
	env := newTestEnv(t)
	creditor := env.registerCreditor(t)
	debt := env.seedDebtFor(t, creditor.CreditorID)

	rec := env.do(t, http.MethodPost, "/api/v1/public/debts/lookup", map[string]string{"cpf": "529.982.247-25"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup returned %d: %s", rec.Code, rec.Body.String())
	}
	var lookup domain.DebtLookupResponse
	decodeBody(t, rec, &lookup)
	if lookup.Count != 1 || lookup.Debts[0].ID != debt.ID {
		t.Fatalf("unexpected lookup response: %+v", lookup)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/public/negotiations", domain.StartNegotiationRequest{DebtID: debt.ID}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start returned %d: %s", rec.Code, rec.Body.String())
	}
	var started domain.StartNegotiationResponse
	decodeBody(t, rec, &started)
	if started.SessionID == "" || len(started.Menu.Offers) < 2 {
		t.Fatalf("unexpected start response: %+v", started)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/public/negotiations/"+started.SessionID+"/messages",
		domain.UtteranceRequest{Text: "1"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("message returned %d: %s", rec.Code, rec.Body.String())
	}
	var utterance domain.UtteranceResponse
	decodeBody(t, rec, &utterance)
	if !utterance.FinalizeEligible {
		t.Fatal("expected finalize_eligible after selecting offer 1")
	}

	rec = env.do(t, http.MethodPost, "/api/v1/public/negotiations/"+started.SessionID+"/finalize", nil, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("finalize returned %d: %s", rec.Code, rec.Body.String())
	}
	var finalized domain.FinalizeResponse
	decodeBody(t, rec, &finalized)
	if finalized.Agreement.ID == "" {
		t.Fatal("expected an agreement id")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/public/agreements/"+finalized.Agreement.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("agreement fetch returned %d: %s", rec.Code, rec.Body.String())
	}
	var agreement domain.AgreementResponse
	decodeBody(t, rec, &agreement)
	if len(agreement.Installments) != finalized.Agreement.InstallmentCount {
		t.Fatalf("expected %d installments, got %d", finalized.Agreement.InstallmentCount, len(agreement.Installments))
	}
}

func TestFinalizeWithoutSelectionReturns422(t *testing.T) {
	env := newTestEnv(t)
	creditor := env.registerCreditor(t)
	debt := env.seedDebtFor(t, creditor.CreditorID)

	rec := env.do(t, http.MethodPost, "/api/v1/public/negotiations", domain.StartNegotiationRequest{DebtID: debt.ID}, nil)
	var started domain.StartNegotiationResponse
	decodeBody(t, rec, &started)

	rec = env.do(t, http.MethodPost, "/api/v1/public/negotiations/"+started.SessionID+"/finalize", nil, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 before selection, got %d", rec.Code)
	}
}

func TestLookupRejectsInvalidCPF(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/public/debts/lookup", map[string]string{"cpf": "111.111.111-11"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid CPF, got %d", rec.Code)
	}
}

func TestSettingsRoundTripWithCSRF(t *testing.T) {
	env := newTestEnv(t)
	creditor := env.registerCreditor(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/csrf-token", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token fetch returned %d", rec.Code)
	}
	var csrfResp struct {
		Token string `json:"csrf_token"`
	}
	decodeBody(t, rec, &csrfResp)

	policy := domain.DefaultPolicy()
	policy.MaxCashDiscountPct = 42
	update := domain.SettingsUpdateRequest{Policy: &policy}

	rec = env.do(t, http.MethodPut, "/api/v1/settings", update, authHeaders(creditor.AccessToken, ""))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF token, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/api/v1/settings", update, authHeaders(creditor.AccessToken, csrfResp.Token))
	if rec.Code != http.StatusOK {
		t.Fatalf("settings update returned %d: %s", rec.Code, rec.Body.String())
	}
	var settings domain.SettingsResponse
	decodeBody(t, rec, &settings)
	if settings.Policy.MaxCashDiscountPct != 42 {
		t.Fatalf("policy not persisted: %+v", settings.Policy)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/settings", nil, authHeaders(creditor.AccessToken, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("settings fetch returned %d", rec.Code)
	}
}

func TestDebtListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	creditor := env.registerCreditor(t)
	debt := env.seedDebtFor(t, creditor.CreditorID)

	rec := env.do(t, http.MethodGet, "/api/v1/debts?page=1&page_size=10", nil, authHeaders(creditor.AccessToken, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("debt list returned %d: %s", rec.Code, rec.Body.String())
	}
	var list domain.DebtListResponse
	decodeBody(t, rec, &list)
	if list.Total != 1 {
		t.Fatalf("expected 1 debt, got %d", list.Total)
	}

	var csrfResp struct {
		Token string `json:"csrf_token"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/api/v1/auth/csrf-token", nil, nil), &csrfResp)

	rec = env.do(t, http.MethodDelete, "/api/v1/debts/"+debt.ID, nil, authHeaders(creditor.AccessToken, csrfResp.Token))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete returned %d: %s", rec.Code, rec.Body.String())
	}

	decodeBody(t, env.do(t, http.MethodGet, "/api/v1/debts", nil, authHeaders(creditor.AccessToken, "")), &list)
	if list.Total != 0 {
		t.Fatalf("expected 0 debts after delete, got %d", list.Total)
	}
}

func TestDebtListHugePageParameter(t *testing.T) {
	env := newTestEnv(t)
	creditor := env.registerCreditor(t)
	env.seedDebtFor(t, creditor.CreditorID)

	rec := env.do(t, http.MethodGet, "/api/v1/debts?page=9223372036854775807&page_size=100", nil,
		authHeaders(creditor.AccessToken, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("debt list returned %d: %s", rec.Code, rec.Body.String())
	}
	var list domain.DebtListResponse
	decodeBody(t, rec, &list)
	if list.Total != 1 || len(list.Debts) != 0 {
		t.Fatalf("expected empty page with total 1, got %+v", list)
	}
}

func TestRegisterRejectsInvalidCNPJ(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", domain.CreditorRegisterRequest{
		Name:     "Banco Horizonte",
		CNPJ:     "12.345.678/0001-94",
		Email:    "ops@horizonte.com.br",
		Password: "segredo-forte",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad cnpj check digit, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDebtUpload(t *testing.T) {
	env := newTestEnv(t)
	creditor := env.registerCreditor(t)

	var csrfResp struct {
		Token string `json:"csrf_token"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/api/v1/auth/csrf-token", nil, nil), &csrfResp)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "carteira.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fmt.Fprint(part, strings.Join([]string{
		"cpf,nome,valor,vencimento,produto,contrato",
		"529.982.247-25,Ana Prado,\"2.000,00\",2026-02-01,Empréstimo,CTR-9",
	}, "\n"))
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/debts/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+creditor.AccessToken)
	req.Header.Set("X-CSRF-Token", csrfResp.Token)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload returned %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.UploadResult
	decodeBody(t, rec, &result)
	if result.Inserted != 1 {
		t.Fatalf("expected 1 inserted row, got %+v", result)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz returned %d", rec.Code)
	}
}
