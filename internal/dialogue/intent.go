package dialogue

import (
	"fmt"
	"strconv"
	"strings"
)

type IntentKind int

const (
	IntentNumeric IntentKind = iota
	IntentCash
	IntentInstallmentCount
	IntentAskDiscount
	IntentAskInstallments
	IntentConfirm
	IntentUnrecognized
)

// Intent is the classified meaning of one user utterance. N carries the
// 1-based menu position for IntentNumeric and the installment count for
// IntentInstallmentCount.
type Intent struct {
	Kind IntentKind
	N    int
}

// Classify maps a raw utterance to an Intent against the session's menu.
// Matcher precedence is fixed and auditable: exact numeric choice first,
// then the cash keyword, then per-offer installment-count keywords, then
// topical keyword groups, then the unrecognized fallback.
func Classify(utterance string, installmentCounts []int) Intent {
	msg := strings.ToLower(strings.TrimSpace(utterance))

	if k, err := strconv.Atoi(msg); err == nil {
		return Intent{Kind: IntentNumeric, N: k}
	}

	if strings.Contains(msg, "vista") {
		return Intent{Kind: IntentCash}
	}

	for _, n := range installmentCounts {
		if containsCount(msg, fmt.Sprintf("%dx", n)) || containsCount(msg, fmt.Sprintf("%d x", n)) {
			return Intent{Kind: IntentInstallmentCount, N: n}
		}
	}

	if containsAny(msg, "desconto", "menor", "melhor") {
		return Intent{Kind: IntentAskDiscount}
	}
	if containsAny(msg, "parcela", "dividir") {
		return Intent{Kind: IntentAskInstallments}
	}
	if containsAny(msg, "sim", "fechar", "confirmar", "aceito") {
		return Intent{Kind: IntentConfirm}
	}

	return Intent{Kind: IntentUnrecognized}
}

// containsCount reports whether form ("6x" or "6 x") occurs in msg without a
// digit immediately before it, so "12x" never matches a "2x" menu entry.
func containsCount(msg string, form string) bool {
	for from := 0; ; {
		i := strings.Index(msg[from:], form)
		if i < 0 {
			return false
		}
		pos := from + i
		if pos == 0 || msg[pos-1] < '0' || msg[pos-1] > '9' {
			return true
		}
		from = pos + 1
	}
}

func containsAny(msg string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
