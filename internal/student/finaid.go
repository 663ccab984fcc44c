package student

import (
	"strings"

	"github.com/campusportal/portal-rest/internal/integration"
)

// AwardsQuery selects the award rows of one student.
const AwardsQuery = "select * from StudentFAAward where StudentID = $1"

const (
	paymentWarning = "You are in danger of being dropped from your classes unless payment is made by the date and time listed above."
	finAidWarning  = "FAFSA Applications for the fall semester are due on November 30th."
)

func positiveAmount(rec integration.Record) bool {
	if v, ok := rec.Number("AMOUNT"); ok && v > 0 {
		return true
	}
	v, ok := rec.Number("TRANSMITTEDAMOUNT")
	return ok && v > 0
}

func actionIs(rec integration.Record, action string) bool {
	s, ok := rec.String("SA_ACTION")
	return ok && strings.EqualFold(s, action)
}

// IsPayment reports a balance due: no aid year, action B and a positive amount.
func IsPayment(rec integration.Record) bool {
	_, hasYear := rec.String("YEAR")
	return !hasYear && actionIs(rec, "B") && positiveAmount(rec)
}

// IsFinAid reports an aid award: an aid year, action A and a positive amount.
func IsFinAid(rec integration.Record) bool {
	_, hasYear := rec.String("YEAR")
	return hasYear && actionIs(rec, "A") && positiveAmount(rec)
}

// Refine reduces a record to its description and the transmitted amount when positive,
// else the booked amount.
func Refine(rec integration.Record) Award {
	a := Award{Name: rec.StringOr("DESCRIPTION", "NO DESC")}
	if tx, ok := rec.Number("TRANSMITTEDAMOUNT"); ok && tx > 0 {
		a.Amount = tx
	} else if amt, ok := rec.Number("AMOUNT"); ok {
		a.Amount = amt
	}
	return a
}

// FilterAwards refines the records matching keep.
func FilterAwards(recs []integration.Record, keep func(integration.Record) bool) []Award {
	out := make([]Award, 0)
	for _, rec := range recs {
		if keep(rec) {
			out = append(out, Refine(rec))
		}
	}
	return out
}

// BuildAid assembles the payments and financial aid blocks.
func BuildAid(cfg Config, recs []integration.Record) Aid {
	var aid Aid
	if payments := FilterAwards(recs, IsPayment); len(payments) > 0 {
		aid.Payments = Payments{
			PaymentURL: cfg.PaymentURL,
			Payments:   payments,
			Warning:    &Warning{Message: paymentWarning, URL: cfg.PaymentURL, Image: WarningImage},
		}
	}
	aid.FinancialAid.ViewDetailsURL = cfg.ViewDetailsURL
	if accounts := FilterAwards(recs, IsFinAid); len(accounts) > 0 {
		aid.FinancialAid.Accounts = accounts
		aid.FinancialAid.Warning = &Warning{Message: finAidWarning, URL: cfg.ApplyURL, Image: WarningImage}
	} else {
		aid.FinancialAid.ApplyURL = cfg.ApplyURL
	}
	return aid
}
