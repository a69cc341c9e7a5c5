package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/boddenberg/telecom-support-go/internal/domain"
)

// CustomerSource exposes the shared customer collection.
type CustomerSource interface {
	Customers() []domain.CustomerRecord
}

// CustomerLookup is the exact-match customerID search over a CustomerSource.
type CustomerLookup struct {
	source CustomerSource
}

// NewCustomerLookup creates a lookup over source.
func NewCustomerLookup(source CustomerSource) *CustomerLookup {
	return &CustomerLookup{source: source}
}

// FindByID returns the record whose customerID equals id.
func (l *CustomerLookup) FindByID(_ context.Context, id string) (*domain.CustomerRecord, bool) {
	return FindCustomer(l.source.Customers(), id)
}

// Search returns records whose customerID, gender or internet plan contain
// query, case-insensitively.
func (l *CustomerLookup) Search(query string) []domain.CustomerRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []domain.CustomerRecord{}
	for _, c := range l.source.Customers() {
		if q == "" ||
			strings.Contains(strings.ToLower(c.CustomerID), q) ||
			strings.Contains(strings.ToLower(c.Gender), q) ||
			strings.Contains(strings.ToLower(c.InternetService), q) {
			out = append(out, c)
		}
	}
	return out
}

// FindCustomer scans customers for an exact customerID match.
func FindCustomer(customers []domain.CustomerRecord, id string) (*domain.CustomerRecord, bool) {
	if id == "" {
		return nil, false
	}
	for i := range customers {
		if customers[i].CustomerID == id {
			c := customers[i]
			return &c, true
		}
	}
	return nil, false
}

// ExtractCustomerID returns the first customer identifier in text.
func ExtractCustomerID(text string) (string, bool) {
	id := domain.CustomerIDPattern.FindString(text)
	return id, id != ""
}

// CustomerContext renders the profile summary used in prompts.
func CustomerContext(c *domain.CustomerRecord) string {
	churn := "Low"
	if c.IsChurnRisk() {
		churn = "HIGH (at risk of leaving)"
	}
	senior := "No"
	if c.IsSenior() {
		senior = "Yes"
	}

	var b strings.Builder
	b.WriteString("Customer Profile:\n")
	fmt.Fprintf(&b, "- Customer ID: %s\n", c.CustomerID)
	fmt.Fprintf(&b, "- Tenure: %d months\n", c.Tenure)
	fmt.Fprintf(&b, "- Services: %s Internet, %s Phone\n", c.InternetService, c.PhoneService)
	fmt.Fprintf(&b, "- Contract: %s\n", c.Contract)
	fmt.Fprintf(&b, "- Monthly Charges: $%s\n", formatAmount(c.MonthlyCharges))
	fmt.Fprintf(&b, "- Payment Method: %s\n", c.PaymentMethod)
	fmt.Fprintf(&b, "- Churn Risk: %s\n", churn)
	fmt.Fprintf(&b, "- Senior Citizen: %s", senior)
	return b.String()
}

// formatAmount prints the shortest exact decimal, e.g. 70.7 rather than 70.70.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
