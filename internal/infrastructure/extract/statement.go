package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/fundingstack/docintake/internal/core/domain"
)

var (
	transactionLineRe   = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\s+.*?\s+-?\$?\d+[.,]\d{2}`)
	transactionDateRe   = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}`)
	transactionAmountRe = regexp.MustCompile(`-?\$?\d+[.,]\d{2}`)
)

// TransactionHistory pulls statement line items out of text: a date, free
// text description and an amount on one line. Items come back sorted by date
// with a cumulative running balance.
func TransactionHistory(text string) []domain.Transaction {
	lines := transactionLineRe.FindAllString(text, -1)
	txs := make([]domain.Transaction, 0, len(lines))
	for _, line := range lines {
		if tx, ok := parseTransactionLine(line); ok {
			txs = append(txs, tx)
		}
	}

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })
	var balance float64
	for i := range txs {
		balance += txs[i].Amount
		txs[i].Balance = balance
	}
	return txs
}

func parseTransactionLine(line string) (domain.Transaction, bool) {
	dateLoc := transactionDateRe.FindStringIndex(line)
	if dateLoc == nil {
		return domain.Transaction{}, false
	}
	date, err := ParseDate(line[dateLoc[0]:dateLoc[1]])
	if err != nil {
		return domain.Transaction{}, false
	}

	rest := line[dateLoc[1]:]
	amountLoc := transactionAmountRe.FindStringIndex(rest)
	if amountLoc == nil {
		return domain.Transaction{}, false
	}
	amount, err := ParseAmount(rest[amountLoc[0]:amountLoc[1]])
	if err != nil {
		return domain.Transaction{}, false
	}

	return domain.Transaction{
		Date:        date,
		Description: strings.TrimSpace(rest[:amountLoc[0]]),
		Amount:      amount,
	}, true
}
