// Package dialogue implements the negotiation conversation as a pure reducer
// over (state, utterance): no I/O, no clocks, deterministic replies. The
// service layer owns transcripts, pacing, and persistence.
package dialogue

import (
	"fmt"
	"strings"

	"negociaai/backend/internal/domain"
)

const (
	StatusAwaitingSelection = "awaiting_selection"
	StatusOfferChosen       = "offer_chosen"
	StatusFinalized         = "finalized"
)

// State is the dialogue-controller state for one negotiation session.
// FinalizeEligible is driven purely by offer selection; the confirmation
// keyword only changes reply text.
type State struct {
	Status           string
	Chosen           *domain.Offer
	FinalizeEligible bool
}

func NewState() State {
	return State{Status: StatusAwaitingSelection}
}

// Reduce interprets one utterance against the menu and returns the next
// state plus the assistant reply text.
func Reduce(state State, utterance string, menu domain.OfferMenu) (State, string) {
	installments := menu.InstallmentOffers()
	counts := make([]int, 0, len(installments))
	for _, o := range installments {
		counts = append(counts, o.Installments)
	}

	intent := Classify(utterance, counts)

	if selected, ok := selectOffer(intent, menu); ok {
		state.Chosen = &selected
		state.FinalizeEligible = true
		state.Status = StatusOfferChosen
		return state, selectionReply(selected)
	}

	switch intent.Kind {
	case IntentAskDiscount:
		return state, discountReply(menu)
	case IntentAskInstallments:
		return state, installmentsReply(menu)
	case IntentConfirm:
		if state.Chosen != nil {
			return state, "Perfeito! Use o botão abaixo para finalizar seu acordo."
		}
		return state, "Primeiro escolha uma das opções de pagamento:\n\n" + FormatMenu(menu)
	default:
		return state, "Desculpe, não entendi. Por favor, escolha uma das opções:\n\n" + FormatMenu(menu)
	}
}

// selectOffer resolves numeric, cash and installment-count intents to a menu
// entry. Out-of-range numeric picks fall through to the unmatched path.
func selectOffer(intent Intent, menu domain.OfferMenu) (domain.Offer, bool) {
	switch intent.Kind {
	case IntentNumeric:
		if intent.N >= 1 && intent.N <= len(menu.Offers) {
			return menu.Offers[intent.N-1], true
		}
	case IntentCash:
		return menu.Cash(), true
	case IntentInstallmentCount:
		for _, o := range menu.InstallmentOffers() {
			if o.Installments == intent.N {
				return o, true
			}
		}
	}
	return domain.Offer{}, false
}

func selectionReply(offer domain.Offer) string {
	if offer.Installments == 1 {
		return fmt.Sprintf(
			"Excelente escolha! Você optou pelo pagamento à vista com %s de desconto.\n\nValor: %s\n\nEssa é a melhor economia! Você está pronto para fechar o acordo?",
			FormatPct(offer.DiscountPct), FormatAmount(offer.Total))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ótima escolha! Você optou por %d parcelas", offer.Installments)
	if offer.DiscountPct > 0 {
		fmt.Fprintf(&b, " com %s de desconto", FormatPct(offer.DiscountPct))
	}
	b.WriteString(".\n\n")
	if offer.DownPayment > 0 {
		fmt.Fprintf(&b, "Entrada: %s\n", FormatAmount(offer.DownPayment))
	}
	fmt.Fprintf(&b, "%dx de %s\nTotal: %s\n\nVocê está pronto para fechar o acordo?",
		offer.Installments, FormatAmount(offer.PerInstallment), FormatAmount(offer.Total))
	return b.String()
}

func discountReply(menu domain.OfferMenu) string {
	cash := menu.Cash()
	full := cash.Total
	if cash.DiscountPct < 100 {
		full = cash.Total / (1 - cash.DiscountPct/100)
	}
	return fmt.Sprintf(
		"A melhor opção em termos de economia é o pagamento à vista com %s de desconto! Você pagaria apenas %s em vez de %s.\n\nDeseja escolher essa opção? Digite \"1\" para confirmar.",
		FormatPct(cash.DiscountPct), FormatAmount(cash.Total), FormatAmount(full))
}

func installmentsReply(menu domain.OfferMenu) string {
	installments := menu.InstallmentOffers()
	if len(installments) == 0 {
		return fmt.Sprintf(
			"No momento só temos a opção de pagamento à vista: %s com %s de desconto. Digite \"1\" para escolher.",
			FormatAmount(menu.Cash().Total), FormatPct(menu.Cash().DiscountPct))
	}

	var b strings.Builder
	b.WriteString("Temos as seguintes opções de parcelamento:\n")
	for i, o := range installments {
		fmt.Fprintf(&b, "\n%dx de %s - total %s", o.Installments, FormatAmount(o.PerInstallment), FormatAmount(o.Total))
		if o.DiscountPct > 0 {
			fmt.Fprintf(&b, " (%s de desconto)", FormatPct(o.DiscountPct))
		}
		fmt.Fprintf(&b, " — digite \"%d\"", i+2)
	}
	return b.String()
}

// FormatMenu renders the numbered offer list used in the opening message and
// every fallback reply.
func FormatMenu(menu domain.OfferMenu) string {
	var b strings.Builder
	for i, o := range menu.Offers {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if o.Installments == 1 {
			fmt.Fprintf(&b, "%d. À Vista - %s", i+1, FormatAmount(o.Total))
		} else {
			fmt.Fprintf(&b, "%d. %dx de %s - Total: %s", i+1, o.Installments, FormatAmount(o.PerInstallment), FormatAmount(o.Total))
		}
		if o.DiscountPct > 0 {
			fmt.Fprintf(&b, " (%s de desconto)", FormatPct(o.DiscountPct))
		} else {
			b.WriteString(" (sem desconto)")
		}
	}
	fmt.Fprintf(&b, "\n\nDigite o número da opção que deseja (1 a %d) ou me pergunte mais detalhes!", len(menu.Offers))
	return b.String()
}

// FormatAmount renders a raw amount as pt-BR currency. Amounts are rounded
// for display only; derivation and persistence keep their own precision.
func FormatAmount(v float64) string {
	cents := int64(v*100 + 0.5)
	reais := cents / 100
	rest := cents % 100

	digits := fmt.Sprintf("%d", reais)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return fmt.Sprintf("R$ %s,%02d", b.String(), rest)
}

func FormatPct(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d%%", int64(v))
	}
	return fmt.Sprintf("%.1f%%", v)
}
