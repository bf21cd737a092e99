// Package billing turns a payer's raw transactions into the receipt
// request bound into the document template: a date-windowed, flattened set
// of billing lines plus a computed total.
package billing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adaeze-umeh/donation-receipts/internal/ledger"
)

// BillingLine is one display-ready row derived from a transaction line
// item. It has no lifecycle of its own and is recomputed on every
// aggregation.
type BillingLine struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// ReceiptRequest carries everything the template binds. Constructed fresh
// per generation call; never mutated after construction.
type ReceiptRequest struct {
	ReceiptID   string        `json:"receipt_id"`
	DonatorID   string        `json:"donator_id"`
	Donator     string        `json:"donator"`
	PhoneNumber string        `json:"phone_number"`
	Email       string        `json:"email"`
	TotalAmount string        `json:"total_amount"`
	IssuedBy    string        `json:"issued_by"`
	Note        string        `json:"note"`
	Year        string        `json:"year"`
	Items       []BillingLine `json:"items"`
	StartDate   string        `json:"start_date"`
	EndDate     string        `json:"end_date"`
}

// Options are the operator-supplied aggregation inputs. Window bounds are
// calendar dates in YYYY-MM-DD form; an empty bound is open.
type Options struct {
	WindowStart string
	WindowEnd   string
	IssuedBy    string
	Note        string
}

// Aggregate filters the payer's transactions by the date window, flattens
// every line item of every included transaction into a billing line, and
// sums the total. Transactions without a creation date are excluded. Zero
// included transactions is a valid result: no lines, total "$0.00".
//
// All line items are assumed to share one currency. The total sums minor
// units across every included line and carries the first line's currency
// symbol; mixed-currency ledgers are not supported.
func Aggregate(payer ledger.Payer, txns []ledger.Transaction, opts Options) ReceiptRequest {
	var (
		lines      []BillingLine
		totalMinor int64
	)
	symbol := "$"
	seen := false

	for _, tx := range txns {
		date := creationDate(tx.CreatedAt)
		if date == "" {
			continue
		}
		// Calendar-date comparison; ISO dates order lexicographically.
		if opts.WindowStart != "" && date < opts.WindowStart {
			continue
		}
		if opts.WindowEnd != "" && date > opts.WindowEnd {
			continue
		}

		for _, item := range tx.LineItems {
			qty, err := strconv.ParseInt(strings.TrimSpace(item.Quantity), 10, 64)
			if err != nil {
				qty = 0
			}
			minor := qty * item.BasePriceMoney.Amount

			sym := symbolFor(item.BasePriceMoney.Currency)
			if !seen {
				symbol = sym
				seen = true
			}

			lines = append(lines, BillingLine{
				Date:        date,
				Description: item.Name,
				Amount:      sym + formatMinor(minor),
			})
			totalMinor += minor
		}
	}

	name := strings.TrimSpace(payer.GivenName + " " + payer.FamilyName)

	return ReceiptRequest{
		ReceiptID:   "R-" + uuid.NewString(),
		DonatorID:   payer.ID,
		Donator:     name,
		PhoneNumber: payer.PhoneNumber,
		Email:       payer.EmailAddress,
		TotalAmount: symbol + formatMinor(totalMinor),
		IssuedBy:    opts.IssuedBy,
		Note:        opts.Note,
		Year:        strconv.Itoa(time.Now().Year()),
		Items:       lines,
		StartDate:   FormatWindowBound(opts.WindowStart),
		EndDate:     FormatWindowBound(opts.WindowEnd),
	}
}

// FormatWindowBound renders a YYYY-MM-DD window bound as DDMonYY
// (e.g. "14May25"). An absent or unparseable bound becomes the literal
// placeholder "000000".
func FormatWindowBound(date string) string {
	if date == "" {
		return "000000"
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "000000"
	}
	return t.Format("02Jan06")
}

// creationDate extracts the calendar date from an RFC 3339 timestamp.
// Empty when the transaction carries no usable creation date.
func creationDate(createdAt string) string {
	if len(createdAt) < 10 {
		return ""
	}
	return createdAt[:10]
}

// formatMinor renders minor currency units with exactly two decimals.
// Amounts are kept in integral minor units throughout so the total is
// rounded once, never per line.
func formatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func symbolFor(currency string) string {
	switch strings.ToUpper(currency) {
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	case "JPY":
		return "¥"
	default:
		return "$"
	}
}
