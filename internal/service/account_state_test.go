package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/accounts"
	"github.com/boddenberg/telecom-support-go/internal/infra/idgen"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/service"
)

func newCustomerInput() domain.NewCustomerInput {
	return domain.NewCustomerInput{
		Gender:           "Female",
		Partner:          domain.Yes,
		Dependents:       domain.No,
		PhoneService:     domain.No,
		InternetService:  domain.InternetDSL,
		OnlineSecurity:   domain.No,
		OnlineBackup:     domain.No,
		DeviceProtection: domain.No,
		TechSupport:      domain.No,
		StreamingTV:      domain.No,
		StreamingMovies:  domain.No,
		PaperlessBilling: domain.Yes,
		PaymentMethod:    "Electronic check",
	}
}

func TestAccountState_AddAddonRecalculatesAndPushes(t *testing.T) {
	remote := &fakeRemote{current: customerFixtures()}
	store := newAccountStore(t, remote)

	c, ok := store.AddAddon(context.Background(), "7590-VHVEG", domain.AddonStreamingTV)

	require.True(t, ok)
	assert.Equal(t, domain.Yes, c.StreamingTV)
	assert.Equal(t, 66.50, c.MonthlyCharges)
	assert.Equal(t, 665.00, c.TotalCharges)
	assert.True(t, store.HasOverlay())
	assert.Equal(t, store.Customers(), remote.lastSaved())
}

func TestAccountState_OverlayReconciliation(t *testing.T) {
	remote := &fakeRemote{current: customerFixtures()}
	store := newAccountStore(t, remote)

	_, ok := store.AddAddon(context.Background(), "7590-VHVEG", domain.AddonTechSupport)
	require.True(t, ok)

	// A stale authoritative value does not displace the overlay.
	store.Reconcile(customerFixtures())
	assert.True(t, store.HasOverlay())
	got, _ := store.GetByCustomerID("7590-VHVEG")
	assert.Equal(t, domain.Yes, got.TechSupport)

	store.Reconcile(remote.lastSaved())
	assert.False(t, store.HasOverlay())
	got, _ = store.GetByCustomerID("7590-VHVEG")
	assert.Equal(t, domain.Yes, got.TechSupport)
}

func TestAccountState_SyncWithMemoryStoreClearsOverlay(t *testing.T) {
	remote := accounts.NewMemoryStore(customerFixtures())
	store := service.NewAccountStateStore(remote, idgen.NewSequence(), observability.NewMetrics(), zap.NewNop())
	require.NoError(t, store.Sync(context.Background()))
	require.Len(t, store.Customers(), 3)

	_, ok := store.RemoveAddon(context.Background(), "3668-QPYBK", domain.AddonOnlineBackup)
	require.True(t, ok)
	require.True(t, store.HasOverlay())

	require.NoError(t, store.Sync(context.Background()))
	assert.False(t, store.HasOverlay())
	got, _ := store.GetByCustomerID("3668-QPYBK")
	assert.Equal(t, 30.75, got.MonthlyCharges)
}

func TestAccountState_AddonDependencies(t *testing.T) {
	ctx := context.Background()

	t.Run("multiple lines needs phone service", func(t *testing.T) {
		store := newAccountStore(t, &fakeRemote{current: customerFixtures()})

		_, ok := store.AddAddon(ctx, "9305-CDSKC", domain.AddonMultipleLines)

		assert.False(t, ok)
		assert.False(t, store.HasOverlay())
		got, _ := store.GetByCustomerID("9305-CDSKC")
		assert.Equal(t, domain.NoPhoneService, got.MultipleLines)
	})

	t.Run("adding phone service clears the sentinel", func(t *testing.T) {
		store := newAccountStore(t, &fakeRemote{current: customerFixtures()})

		c, ok := store.AddAddon(ctx, "9305-CDSKC", domain.AddonPhoneService)

		require.True(t, ok)
		assert.Equal(t, domain.No, c.MultipleLines)
		assert.Equal(t, 28.75, c.MonthlyCharges)
	})

	t.Run("removing phone service sets the sentinel", func(t *testing.T) {
		store := newAccountStore(t, &fakeRemote{current: customerFixtures()})

		c, ok := store.RemoveAddon(ctx, "7590-VHVEG", domain.AddonPhoneService)

		require.True(t, ok)
		assert.Equal(t, domain.NoPhoneService, c.MultipleLines)
		assert.Equal(t, 50.00, c.MonthlyCharges)
	})

	t.Run("unknown customer", func(t *testing.T) {
		store := newAccountStore(t, &fakeRemote{current: customerFixtures()})

		_, ok := store.AddAddon(ctx, "0000-XXXXX", domain.AddonStreamingTV)
		assert.False(t, ok)
	})
}

func TestAccountState_AddCustomer(t *testing.T) {
	remote := &fakeRemote{current: customerFixtures()}
	store := newAccountStore(t, remote, "1111-AAAAA")

	c, err := store.AddCustomer(context.Background(), newCustomerInput())

	require.NoError(t, err)
	assert.Equal(t, 4, c.ID)
	assert.Equal(t, "1111-AAAAA", c.CustomerID)
	assert.Equal(t, "0", c.SeniorCitizen)
	assert.Equal(t, "Month-to-month", c.Contract)
	assert.Equal(t, domain.No, c.Churn)
	assert.Equal(t, domain.StatusNew, c.Status)
	assert.Equal(t, domain.NoPhoneService, c.MultipleLines)
	assert.Equal(t, 25.00, c.MonthlyCharges)
	assert.Equal(t, 0.0, c.TotalCharges)
	assert.Len(t, store.Customers(), 4)
	assert.Len(t, remote.lastSaved(), 4)
}

func TestAccountState_AddCustomerWithPhoneDefaultsMultipleLines(t *testing.T) {
	store := newAccountStore(t, &fakeRemote{current: customerFixtures()}, "1111-AAAAA")
	in := newCustomerInput()
	in.PhoneService = domain.Yes

	c, err := store.AddCustomer(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, domain.No, c.MultipleLines)
	assert.Equal(t, 28.75, c.MonthlyCharges)
}

func TestAccountState_AddCustomerErrors(t *testing.T) {
	t.Run("invalid input", func(t *testing.T) {
		store := newAccountStore(t, &fakeRemote{current: customerFixtures()}, "1111-AAAAA")
		in := newCustomerInput()
		in.Partner = ""

		_, err := store.AddCustomer(context.Background(), in)

		var verr *domain.ErrValidation
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "Partner", verr.Field)
		assert.Len(t, store.Customers(), 3)
	})

	t.Run("customer id space exhausted", func(t *testing.T) {
		store := newAccountStore(t, &fakeRemote{current: customerFixtures()}, "7590-VHVEG")

		_, err := store.AddCustomer(context.Background(), newCustomerInput())

		require.Error(t, err)
		assert.False(t, store.HasOverlay())
	})
}

func TestAccountState_UpdateCustomer(t *testing.T) {
	ctx := context.Background()
	store := newAccountStore(t, &fakeRemote{current: customerFixtures()})

	phone := domain.No
	c, err := store.UpdateCustomer(ctx, 1, domain.CustomerPatch{PhoneService: &phone})
	require.NoError(t, err)
	assert.Equal(t, domain.NoPhoneService, c.MultipleLines)
	assert.Equal(t, 50.00, c.MonthlyCharges)

	_, err = store.UpdateCustomer(ctx, 99, domain.CustomerPatch{PhoneService: &phone})
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)

	bad := "Maybe"
	_, err = store.UpdateCustomer(ctx, 1, domain.CustomerPatch{Partner: &bad})
	var verr *domain.ErrValidation
	assert.ErrorAs(t, err, &verr)
}

func TestAccountState_DeleteCustomer(t *testing.T) {
	ctx := context.Background()
	store := newAccountStore(t, &fakeRemote{current: customerFixtures()})

	require.NoError(t, store.DeleteCustomer(ctx, 2))
	_, ok := store.GetByID(2)
	assert.False(t, ok)
	assert.Len(t, store.Customers(), 2)

	var nf *domain.ErrNotFound
	assert.ErrorAs(t, store.DeleteCustomer(ctx, 2), &nf)
}

func TestAccountState_SaveFailureKeepsOverlay(t *testing.T) {
	remote := &fakeRemote{current: customerFixtures(), saveErr: errors.New("redis down")}
	store := newAccountStore(t, remote)

	_, ok := store.AddAddon(context.Background(), "7590-VHVEG", domain.AddonOnlineSecurity)

	require.True(t, ok)
	assert.True(t, store.HasOverlay())
	got, _ := store.GetByCustomerID("7590-VHVEG")
	assert.Equal(t, domain.Yes, got.OnlineSecurity)
	assert.Nil(t, remote.lastSaved())
}

// gatedRemote holds the first Save until release is closed.
type gatedRemote struct {
	fakeRemote
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRemote) Save(ctx context.Context, customers []domain.CustomerRecord) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.fakeRemote.Save(ctx, customers)
}

func TestAccountState_PushesLandInOverlayOrder(t *testing.T) {
	remote := &gatedRemote{
		fakeRemote: fakeRemote{current: customerFixtures()},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	store := service.NewAccountStateStore(remote, idgen.NewSequence(), observability.NewMetrics(), zap.NewNop())
	store.Reconcile(remote.current)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		store.AddAddon(ctx, "7590-VHVEG", domain.AddonOnlineSecurity)
	}()
	<-remote.entered

	go func() {
		defer wg.Done()
		store.AddAddon(ctx, "3668-QPYBK", domain.AddonTechSupport)
	}()
	require.Eventually(t, func() bool {
		c, _ := store.GetByCustomerID("3668-QPYBK")
		return c.TechSupport == domain.Yes
	}, time.Second, time.Millisecond)

	close(remote.release)
	wg.Wait()

	latest, err := remote.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Customers(), latest)

	store.Reconcile(latest)
	assert.False(t, store.HasOverlay())
}

func TestAccountState_SetStatus(t *testing.T) {
	store := newAccountStore(t, &fakeRemote{current: customerFixtures()})

	assert.True(t, store.SetStatus(context.Background(), "3668-QPYBK", domain.StatusEscalated))
	got, _ := store.GetByCustomerID("3668-QPYBK")
	assert.Equal(t, domain.StatusEscalated, got.Status)

	assert.False(t, store.SetStatus(context.Background(), "0000-XXXXX", domain.StatusEscalated))
}
