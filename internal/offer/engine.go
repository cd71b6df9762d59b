package offer

import (
	"fmt"
	"time"

	"negociaai/backend/internal/domain"
)

// DelinquencyAge returns the whole days elapsed between the due date and now,
// floored at zero for debts not yet due.
func DelinquencyAge(dueDate time.Time, now time.Time) int {
	days := int(now.Sub(dueDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

type bracket struct {
	discountPct     float64
	maxInstallments int
}

func bracketFor(age int, policy domain.Policy) bracket {
	switch {
	case age <= 30:
		return bracket{policy.DiscountPct0To30, policy.MaxInstallments0To30}
	case age <= 90:
		return bracket{policy.DiscountPct31To90, policy.MaxInstallments31To90}
	case age <= 180:
		return bracket{policy.DiscountPct91To180, policy.MaxInstallments91To180}
	default:
		return bracket{policy.DiscountPct180Plus, policy.MaxInstallments180Plus}
	}
}

// Derive computes the settlement menu for a debt: the cash offer first, then
// up to two installment offers with strictly increasing installment counts.
// Pure and deterministic for a fixed now; amounts stay unrounded floats.
func Derive(overdueAmount float64, dueDate time.Time, policy domain.Policy, now time.Time) domain.OfferMenu {
	policy = policy.WithDefaults()

	age := DelinquencyAge(dueDate, now)
	br := bracketFor(age, policy)

	cashDiscount := min(policy.MaxCashDiscountPct, br.discountPct)
	cashTotal := overdueAmount * (1 - cashDiscount/100)
	menu := domain.OfferMenu{Offers: []domain.Offer{{
		ID:             "cash",
		Title:          "À Vista",
		Installments:   1,
		DiscountPct:    cashDiscount,
		PerInstallment: cashTotal,
		Total:          cashTotal,
	}}}

	if br.maxInstallments <= 1 {
		return menu
	}

	installmentDiscount := min(policy.MaxInstallmentDiscountPct, br.discountPct)
	for _, n := range candidateCounts(br.maxInstallments) {
		offer, ok := installmentOffer(overdueAmount, installmentDiscount, n, policy)
		if ok {
			menu.Offers = append(menu.Offers, offer)
		}
	}
	return menu
}

// candidateCounts returns half and max of the bracket limit, both floored at
// 2, deduplicated, in ascending order.
func candidateCounts(bracketMax int) []int {
	half := bracketMax / 2
	if half < 2 {
		half = 2
	}
	maxCount := bracketMax
	if maxCount < 2 {
		maxCount = 2
	}
	if half == maxCount {
		return []int{maxCount}
	}
	return []int{half, maxCount}
}

func installmentOffer(overdueAmount float64, discountPct float64, n int, policy domain.Policy) (domain.Offer, bool) {
	discountedTotal := overdueAmount * (1 - discountPct/100)

	downPayment := 0.0
	if policy.MinDownPaymentPct > 0 {
		downPayment = discountedTotal * policy.MinDownPaymentPct / 100
	}

	// The down payment counts as the first disbursement when present.
	remaining := n
	if downPayment > 0 {
		remaining--
	}
	if remaining <= 0 {
		// Whole amount would be a single down payment; not a genuine
		// installment plan.
		return domain.Offer{}, false
	}

	perInstallment := (discountedTotal - downPayment) / float64(remaining)

	// Two-installment plans are never discarded by the floor check; larger
	// plans are, since too many installments makes each one too small.
	if perInstallment < policy.MinInstallmentFloor && n > 2 {
		return domain.Offer{}, false
	}

	return domain.Offer{
		ID:             fmt.Sprintf("%dx", n),
		Title:          fmt.Sprintf("Em %dx", n),
		Installments:   n,
		DiscountPct:    discountPct,
		DownPayment:    downPayment,
		PerInstallment: perInstallment,
		Total:          discountedTotal,
	}, true
}

func min(a float64, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
