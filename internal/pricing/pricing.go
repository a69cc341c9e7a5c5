// Package pricing derives monthly and lifetime charges from a customer's
// internet plan and active add-ons.
package pricing

import (
	"fmt"
	"math"

	"github.com/boddenberg/telecom-support-go/internal/domain"
)

// BaseInternetCost is the monthly base price per internet plan.
var BaseInternetCost = map[string]float64{
	domain.InternetDSL:   25.00,
	domain.InternetFiber: 50.00,
	domain.InternetNone:  0,
}

// ServiceRates is each add-on's price as a fraction of the base cost.
var ServiceRates = map[domain.AddonService]float64{
	domain.AddonPhoneService:     0.15,
	domain.AddonMultipleLines:    0.10,
	domain.AddonOnlineSecurity:   0.08,
	domain.AddonOnlineBackup:     0.08,
	domain.AddonDeviceProtection: 0.10,
	domain.AddonTechSupport:      0.12,
	domain.AddonStreamingTV:      0.18,
	domain.AddonStreamingMovies:  0.18,
}

var serviceLabels = map[domain.AddonService]string{
	domain.AddonPhoneService:     "Phone Service",
	domain.AddonMultipleLines:    "Multiple Lines",
	domain.AddonOnlineSecurity:   "Online Security",
	domain.AddonOnlineBackup:     "Online Backup",
	domain.AddonDeviceProtection: "Device Protection",
	domain.AddonTechSupport:      "Tech Support",
	domain.AddonStreamingTV:      "Streaming TV",
	domain.AddonStreamingMovies:  "Streaming Movies",
}

// Label returns the display name of an add-on.
func Label(a domain.AddonService) string {
	if l, ok := serviceLabels[a]; ok {
		return l
	}
	return string(a)
}

// Charges is the monthly cost breakdown for one customer. Inactive services
// are absent from Services.
type Charges struct {
	BaseInternet float64                         `json:"baseInternet"`
	Services     map[domain.AddonService]float64 `json:"services"`
	Total        float64                         `json:"total"`
	Breakdown    []string                        `json:"breakdown"`
}

// ChangePreview compares totals before and after a hypothetical toggle.
type ChangePreview struct {
	OldTotal         float64 `json:"oldTotal"`
	NewTotal         float64 `json:"newTotal"`
	Difference       float64 `json:"difference"`
	PercentageChange float64 `json:"percentageChange"`
}

// Compute returns the monthly charges for c. It is pure.
func Compute(c domain.CustomerRecord) Charges {
	base := BaseInternetCost[c.InternetService]

	plan := c.InternetService
	if plan == "" {
		plan = domain.InternetNone
	}

	out := Charges{
		BaseInternet: base,
		Services:     make(map[domain.AddonService]float64),
		Breakdown:    []string{fmt.Sprintf("%s Internet: $%.2f", plan, base)},
	}

	total := base
	for _, a := range domain.AddonServices {
		if c.Addon(a) != domain.Yes {
			continue
		}
		cost := base * ServiceRates[a]
		out.Services[a] = cost
		out.Breakdown = append(out.Breakdown, fmt.Sprintf("%s: $%.2f", Label(a), cost))
		total += cost
	}
	out.Total = total
	return out
}

// Recalculate sets MonthlyCharges and TotalCharges on c from its flags and
// tenure. Every account mutation goes through here.
func Recalculate(c *domain.CustomerRecord) {
	monthly := Compute(*c).Total
	c.MonthlyCharges = Round2(monthly)
	c.TotalCharges = Round2(monthly * float64(c.Tenure))
}

// DiffOnToggle previews the effect of setting service to value. Both totals
// come from a full Compute so the preview cannot drift from real charges.
func DiffOnToggle(c domain.CustomerRecord, service domain.AddonService, value string) ChangePreview {
	oldTotal := Compute(c).Total

	next := c
	next.SetAddon(service, value)
	newTotal := Compute(next).Total

	diff := newTotal - oldTotal
	pct := 0.0
	if oldTotal != 0 {
		pct = diff / oldTotal * 100
	}
	return ChangePreview{
		OldTotal:         Round2(oldTotal),
		NewTotal:         Round2(newTotal),
		Difference:       Round2(diff),
		PercentageChange: Round2(pct),
	}
}

// Round2 rounds to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
