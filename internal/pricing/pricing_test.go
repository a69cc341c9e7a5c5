package pricing_test

import (
	"testing"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fiberWithPhone() domain.CustomerRecord {
	return domain.CustomerRecord{
		CustomerID:       "7590-VHVEG",
		InternetService:  domain.InternetFiber,
		PhoneService:     domain.Yes,
		MultipleLines:    domain.No,
		OnlineSecurity:   domain.No,
		OnlineBackup:     domain.No,
		DeviceProtection: domain.No,
		TechSupport:      domain.No,
		StreamingTV:      domain.No,
		StreamingMovies:  domain.No,
		Tenure:           10,
	}
}

func TestCompute_FiberWithPhone(t *testing.T) {
	got := pricing.Compute(fiberWithPhone())

	assert.Equal(t, 50.00, got.BaseInternet)
	assert.InDelta(t, 7.50, got.Services[domain.AddonPhoneService], 1e-9)
	assert.InDelta(t, 57.50, got.Total, 1e-9)
	assert.Len(t, got.Services, 1)
	assert.Equal(t, []string{"Fiber optic Internet: $50.00", "Phone Service: $7.50"}, got.Breakdown)
}

func TestCompute_InactiveServicesLeaveNoTrace(t *testing.T) {
	c := fiberWithPhone()
	c.PhoneService = domain.No

	got := pricing.Compute(c)

	_, present := got.Services[domain.AddonPhoneService]
	assert.False(t, present, "inactive service must be omitted, not zeroed")
	assert.Empty(t, got.Services)
	assert.Equal(t, 50.00, got.Total)
}

func TestCompute_AllServicesDSL(t *testing.T) {
	c := domain.CustomerRecord{InternetService: domain.InternetDSL}
	for _, a := range domain.AddonServices {
		c.SetAddon(a, domain.Yes)
	}

	got := pricing.Compute(c)

	// 25 * (1 + .15 + .10 + .08 + .08 + .10 + .12 + .18 + .18) = 25 * 1.99
	assert.InDelta(t, 49.75, got.Total, 1e-9)
	assert.Len(t, got.Services, 8)
	assert.Len(t, got.Breakdown, 9)
}

func TestCompute_NoInternetIsFree(t *testing.T) {
	c := domain.CustomerRecord{PhoneService: domain.Yes, StreamingTV: domain.Yes}
	got := pricing.Compute(c)
	assert.Equal(t, 0.0, got.Total)
	assert.Equal(t, "No Internet: $0.00", got.Breakdown[0])
}

func TestCompute_Deterministic(t *testing.T) {
	c := fiberWithPhone()
	c.StreamingMovies = domain.Yes
	first := pricing.Compute(c)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first.Total, pricing.Compute(c).Total)
	}
}

func TestRecalculate(t *testing.T) {
	c := fiberWithPhone()
	pricing.Recalculate(&c)

	assert.Equal(t, 57.50, c.MonthlyCharges)
	assert.Equal(t, 575.00, c.TotalCharges)
}

func TestDiffOnToggle_AddThenRevert(t *testing.T) {
	c := fiberWithPhone()

	add := pricing.DiffOnToggle(c, domain.AddonStreamingTV, domain.Yes)
	assert.Equal(t, 57.50, add.OldTotal)
	assert.Equal(t, 66.50, add.NewTotal)
	assert.Equal(t, 9.00, add.Difference)
	assert.InDelta(t, 15.65, add.PercentageChange, 0.01)

	c.StreamingTV = domain.Yes
	revert := pricing.DiffOnToggle(c, domain.AddonStreamingTV, domain.No)
	assert.Equal(t, add.NewTotal, revert.OldTotal)
	assert.Equal(t, add.OldTotal, revert.NewTotal)
	assert.Equal(t, -add.Difference, revert.Difference)
}

func TestDiffOnToggle_DoesNotMutateInput(t *testing.T) {
	c := fiberWithPhone()
	_ = pricing.DiffOnToggle(c, domain.AddonTechSupport, domain.Yes)
	assert.Equal(t, domain.No, c.TechSupport)
}

func TestDiffOnToggle_ZeroBase(t *testing.T) {
	c := domain.CustomerRecord{InternetService: domain.InternetNone}
	got := pricing.DiffOnToggle(c, domain.AddonStreamingTV, domain.Yes)
	require.Equal(t, 0.0, got.OldTotal)
	assert.Equal(t, 0.0, got.PercentageChange)
}
