package domain

import "time"

type Creditor struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	CNPJ         string        `json:"cnpj"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"`
	Policy       Policy        `json:"policy"`
	Webhook      WebhookConfig `json:"webhook"`
	CreatedAt    time.Time     `json:"created_at"`
}

type CreditorRegisterRequest struct {
	Name     string `json:"name"`
	CNPJ     string `json:"cnpj"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	CreditorID  string `json:"creditor_id"`
	Name        string `json:"name"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	CreditorID string
	Email      string
}

// Policy holds the creditor-configured negotiation parameters. Percentages
// are in [0,100]; installment counts are positive. Any field left at zero is
// replaced by its documented default before offers are derived.
type Policy struct {
	MaxCashDiscountPct        float64 `json:"max_cash_discount_pct"`
	MaxInstallmentDiscountPct float64 `json:"max_installment_discount_pct"`
	DiscountPct0To30          float64 `json:"discount_pct_0_30"`
	DiscountPct31To90         float64 `json:"discount_pct_31_90"`
	DiscountPct91To180        float64 `json:"discount_pct_91_180"`
	DiscountPct180Plus        float64 `json:"discount_pct_180_plus"`
	MaxInstallments0To30      int     `json:"max_installments_0_30"`
	MaxInstallments31To90     int     `json:"max_installments_31_90"`
	MaxInstallments91To180    int     `json:"max_installments_91_180"`
	MaxInstallments180Plus    int     `json:"max_installments_180_plus"`
	MaxInstallments           int     `json:"max_installments"`
	MinInstallmentFloor       float64 `json:"min_installment_floor"`
	MinDownPaymentPct         float64 `json:"min_down_payment_pct"`
	WelcomeMessage            string  `json:"welcome_message"`
	AssistantName             string  `json:"assistant_name"`
}

type WebhookConfig struct {
	URL                  string `json:"url"`
	Token                string `json:"token"`
	OnAgreementCreated   bool   `json:"on_agreement_created"`
	OnInstallmentPayment bool   `json:"on_installment_payment"`
	OnCancellation       bool   `json:"on_cancellation"`
}

type Debtor struct {
	ID    string `json:"id"`
	CPF   string `json:"cpf"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Debt struct {
	ID                  string    `json:"id"`
	CreditorID          string    `json:"creditor_id"`
	DebtorID            string    `json:"debtor_id"`
	OriginalAmountCents int64     `json:"original_amount_cents"`
	CurrentAmountCents  int64     `json:"current_amount_cents"`
	DueDate             time.Time `json:"due_date"`
	Product             string    `json:"product"`
	Contract            string    `json:"contract,omitempty"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	Creditor            *Creditor `json:"creditor,omitempty"`
	Debtor              *Debtor   `json:"debtor,omitempty"`
}

// Offer is one concrete settlement proposal. Amounts stay as raw floats of
// the currency unit; rounding to cents happens only when an agreement is
// persisted, so offers compare without compounded rounding error.
type Offer struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Installments   int     `json:"installments"`
	DiscountPct    float64 `json:"discount_pct"`
	DownPayment    float64 `json:"down_payment,omitempty"`
	PerInstallment float64 `json:"per_installment"`
	Total          float64 `json:"total"`
}

// OfferMenu is the ordered offer list for one negotiation session. The cash
// offer is always first; installment offers follow in ascending count order.
type OfferMenu struct {
	Offers []Offer `json:"offers"`
}

func (m OfferMenu) Cash() Offer {
	return m.Offers[0]
}

func (m OfferMenu) InstallmentOffers() []Offer {
	if len(m.Offers) < 2 {
		return nil
	}
	return m.Offers[1:]
}

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

type Turn struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	NegotiationStatusOpen      = "em_andamento"
	NegotiationStatusClosed    = "acordo_fechado"
	NegotiationStatusCancelled = "cancelada"
)

type Negotiation struct {
	ID            string    `json:"id"`
	DebtID        string    `json:"debt_id"`
	Status        string    `json:"status"`
	ChosenOfferID string    `json:"chosen_offer_id,omitempty"`
	AgreedCents   int64     `json:"agreed_total_cents,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type StartNegotiationRequest struct {
	DebtID string `json:"debt_id"`
}

type StartNegotiationResponse struct {
	SessionID string    `json:"session_id"`
	Debt      Debt      `json:"debt"`
	Menu      OfferMenu `json:"menu"`
	Turns     []Turn    `json:"turns"`
}

type UtteranceRequest struct {
	Text string `json:"text"`
}

type UtteranceResponse struct {
	Reply            Turn   `json:"reply"`
	ChosenOfferID    string `json:"chosen_offer_id,omitempty"`
	FinalizeEligible bool   `json:"finalize_eligible"`
}

const (
	DebtStatusPending = "pendente"
	DebtStatusSettled = "acordo"
	DebtStatusDeleted = "excluida"
)

const (
	AgreementStatusActive    = "ativo"
	AgreementStatusPaid      = "pago"
	AgreementStatusCancelled = "cancelado"
)

const (
	InstallmentStatusPending = "pendente"
	InstallmentStatusPaid    = "paga"
	InstallmentStatusOverdue = "vencida"
)

type Agreement struct {
	ID                  string    `json:"id"`
	DebtID              string    `json:"debt_id"`
	NegotiationID       string    `json:"negotiation_id"`
	OriginalAmountCents int64     `json:"original_amount_cents"`
	AgreedAmountCents   int64     `json:"agreed_amount_cents"`
	DiscountPct         float64   `json:"discount_pct"`
	InstallmentCount    int       `json:"installment_count"`
	PerInstallmentCents int64     `json:"per_installment_cents"`
	DownPaymentCents    int64     `json:"down_payment_cents,omitempty"`
	ChosenOfferID       string    `json:"chosen_offer_id"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
}

type Installment struct {
	ID          string    `json:"id"`
	AgreementID string    `json:"agreement_id"`
	Number      int       `json:"number"`
	AmountCents int64     `json:"amount_cents"`
	DueDate     time.Time `json:"due_date"`
	Status      string    `json:"status"`
}

type AgreementResponse struct {
	Agreement    Agreement     `json:"agreement"`
	Installments []Installment `json:"installments"`
}

type FinalizeResponse struct {
	Agreement Agreement `json:"agreement"`
	Reply     Turn      `json:"reply"`
}

type DebtLookupResponse struct {
	Debts []Debt `json:"debts"`
	Count int    `json:"count"`
}

type DebtListRequest struct {
	CreditorID string
	Page       int
	PageSize   int
	Status     string
	Search     string
	SortKey    string
	SortAsc    bool
}

type DebtListResponse struct {
	Debts []Debt `json:"debts"`
	Total int    `json:"total"`
}

type AgreementListRequest struct {
	CreditorID string
	Page       int
	PageSize   int
	Status     string
	From       string
	To         string
}

type AgreementListItem struct {
	Agreement Agreement `json:"agreement"`
	Debt      *Debt     `json:"debt,omitempty"`
}

type AgreementListResponse struct {
	Items []AgreementListItem `json:"items"`
	Total int                 `json:"total"`
}

type ChartPoint struct {
	Date       string `json:"date"`
	Agreements int    `json:"agreements"`
}

type DashboardResponse struct {
	TotalDebts            int          `json:"total_debts"`
	TotalAgreements       int          `json:"total_agreements"`
	ConversionRatePct     float64      `json:"conversion_rate_pct"`
	OpenValueCents        int64        `json:"open_value_cents"`
	RecoveredValueCents   int64        `json:"recovered_value_cents"`
	RecoverableValueCents int64        `json:"recoverable_value_cents"`
	ChartData             []ChartPoint `json:"chart_data"`
}

type ReportRequest struct {
	CreditorID string
	From       string
	To         string
}

type ReportResponse struct {
	TotalAgreements int          `json:"total_agreements"`
	TotalValueCents int64        `json:"total_value_cents"`
	AvgTicketCents  int64        `json:"avg_ticket_cents"`
	AvgDiscountPct  float64      `json:"avg_discount_pct"`
	ChartData       []ChartPoint `json:"chart_data"`
}

type SettingsResponse struct {
	Policy  Policy        `json:"policy"`
	Webhook WebhookConfig `json:"webhook"`
}

type SettingsUpdateRequest struct {
	Policy  *Policy        `json:"policy,omitempty"`
	Webhook *WebhookConfig `json:"webhook,omitempty"`
}

type UploadResult struct {
	Total    int      `json:"total"`
	Inserted int      `json:"inserted"`
	Errors   []string `json:"errors"`
}

type WebhookTestRequest struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

type WebhookTestResponse struct {
	Success bool   `json:"success"`
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}
