package domain

// DefaultPolicy returns the policy applied when a creditor has not configured
// one, and the source of per-field substitutes for partially configured
// policies.
func DefaultPolicy() Policy {
	return Policy{
		MaxCashDiscountPct:        30,
		MaxInstallmentDiscountPct: 15,
		DiscountPct0To30:          5,
		DiscountPct31To90:         10,
		DiscountPct91To180:        20,
		DiscountPct180Plus:        30,
		MaxInstallments0To30:      3,
		MaxInstallments31To90:     6,
		MaxInstallments91To180:    9,
		MaxInstallments180Plus:    12,
		MaxInstallments:           12,
		MinInstallmentFloor:       50,
		MinDownPaymentPct:         10,
		WelcomeMessage:            "Olá! Vamos negociar sua dívida?",
		AssistantName:             "Assistente Negocia Aí",
	}
}

// WithDefaults substitutes the documented default for every unset field.
// Numeric fields use zero as the "missing" marker except MinDownPaymentPct,
// which may legitimately be zero and is therefore only defaulted when
// negative.
func (p Policy) WithDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxCashDiscountPct <= 0 {
		p.MaxCashDiscountPct = def.MaxCashDiscountPct
	}
	if p.MaxInstallmentDiscountPct <= 0 {
		p.MaxInstallmentDiscountPct = def.MaxInstallmentDiscountPct
	}
	if p.DiscountPct0To30 <= 0 {
		p.DiscountPct0To30 = def.DiscountPct0To30
	}
	if p.DiscountPct31To90 <= 0 {
		p.DiscountPct31To90 = def.DiscountPct31To90
	}
	if p.DiscountPct91To180 <= 0 {
		p.DiscountPct91To180 = def.DiscountPct91To180
	}
	if p.DiscountPct180Plus <= 0 {
		p.DiscountPct180Plus = def.DiscountPct180Plus
	}
	if p.MaxInstallments0To30 <= 0 {
		p.MaxInstallments0To30 = def.MaxInstallments0To30
	}
	if p.MaxInstallments31To90 <= 0 {
		p.MaxInstallments31To90 = def.MaxInstallments31To90
	}
	if p.MaxInstallments91To180 <= 0 {
		p.MaxInstallments91To180 = def.MaxInstallments91To180
	}
	if p.MaxInstallments180Plus <= 0 {
		p.MaxInstallments180Plus = def.MaxInstallments180Plus
	}
	if p.MaxInstallments <= 0 {
		p.MaxInstallments = def.MaxInstallments
	}
	if p.MinInstallmentFloor <= 0 {
		p.MinInstallmentFloor = def.MinInstallmentFloor
	}
	if p.MinDownPaymentPct < 0 {
		p.MinDownPaymentPct = def.MinDownPaymentPct
	}
	if p.WelcomeMessage == "" {
		p.WelcomeMessage = def.WelcomeMessage
	}
	if p.AssistantName == "" {
		p.AssistantName = def.AssistantName
	}
	return p
}

// Validate checks creditor-supplied policy updates. Percentages must stay in
// [0,100] and installment counts positive; per-bracket maxima may not exceed
// the global MaxInstallments.
func (p Policy) Validate() bool {
	pcts := []float64{
		p.MaxCashDiscountPct, p.MaxInstallmentDiscountPct,
		p.DiscountPct0To30, p.DiscountPct31To90,
		p.DiscountPct91To180, p.DiscountPct180Plus,
		p.MinDownPaymentPct,
	}
	for _, pct := range pcts {
		if pct < 0 || pct > 100 {
			return false
		}
	}
	counts := []int{
		p.MaxInstallments0To30, p.MaxInstallments31To90,
		p.MaxInstallments91To180, p.MaxInstallments180Plus,
		p.MaxInstallments,
	}
	for _, n := range counts {
		if n < 1 {
			return false
		}
		if n > p.MaxInstallments {
			return false
		}
	}
	return p.MinInstallmentFloor >= 0
}
