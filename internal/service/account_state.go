package service

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/port"
	"github.com/boddenberg/telecom-support-go/internal/pricing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxCustomerIDAttempts = 20

// AccountStateStore is the process-wide customer collection. Mutations land
// in a local overlay immediately and are pushed to the authoritative store;
// the overlay is dropped once the authoritative copy has caught up.
//
// Writers race at whole-collection granularity: the last snapshot pushed wins.
// Pushes from this process go out in the order their overlays were installed.
type AccountStateStore struct {
	mu            sync.RWMutex
	authoritative []domain.CustomerRecord
	overlay       []domain.CustomerRecord
	hasOverlay    bool
	overlaySeq    uint64

	// pushMu orders Saves; it is never taken while mu is held.
	pushMu    sync.Mutex
	pushedSeq uint64

	remote      port.AuthoritativeStore
	customerIDs port.IDGenerator
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewAccountStateStore creates an empty store. Call Sync to load the
// authoritative collection.
func NewAccountStateStore(
	remote port.AuthoritativeStore,
	customerIDs port.IDGenerator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AccountStateStore {
	return &AccountStateStore{
		authoritative: []domain.CustomerRecord{},
		remote:        remote,
		customerIDs:   customerIDs,
		metrics:       metrics,
		logger:        logger,
	}
}

// Sync loads the authoritative collection and reconciles against it.
func (s *AccountStateStore) Sync(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "AccountStateStore.Sync")
	defer span.End()

	customers, err := s.remote.Load(ctx)
	if err != nil {
		return fmt.Errorf("load customers: %w", err)
	}
	s.Reconcile(customers)
	return nil
}

// Watch reconciles on every collection the authoritative store publishes.
// It blocks until ctx is done.
func (s *AccountStateStore) Watch(ctx context.Context) error {
	return s.remote.Watch(ctx, s.Reconcile)
}

// Reconcile records a new authoritative value and drops the overlay when the
// two are equal.
func (s *AccountStateStore) Reconcile(authoritative []domain.CustomerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authoritative = domain.CloneCustomers(authoritative)
	if s.authoritative == nil {
		s.authoritative = []domain.CustomerRecord{}
	}
	if s.hasOverlay && slices.Equal(s.overlay, s.authoritative) {
		s.overlay = nil
		s.hasOverlay = false
		s.metrics.IncrReconciliation()
		s.logger.Debug("account overlay reconciled", zap.Int("customers", len(s.authoritative)))
	}
}

// HasOverlay reports whether local changes are still ahead of the
// authoritative store.
func (s *AccountStateStore) HasOverlay() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasOverlay
}

// Customers returns a copy of the effective collection.
func (s *AccountStateStore) Customers() []domain.CustomerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneCustomers(s.effective())
}

// GetByID finds a record by numeric id.
func (s *AccountStateStore) GetByID(id int) (*domain.CustomerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexByID(s.effective(), id)
	if i < 0 {
		return nil, false
	}
	c := s.effective()[i]
	return &c, true
}

// GetByCustomerID finds a record by customerID.
func (s *AccountStateStore) GetByCustomerID(customerID string) (*domain.CustomerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FindCustomer(s.effective(), customerID)
}

// AddCustomer opens a new account with a fresh id and customerID.
func (s *AccountStateStore) AddCustomer(ctx context.Context, in domain.NewCustomerInput) (*domain.CustomerRecord, error) {
	ctx, span := tracer.Start(ctx, "AccountStateStore.AddCustomer")
	defer span.End()

	if err := domain.Validate(in); err != nil {
		s.metrics.IncrAccountMutation("add", false)
		return nil, err
	}

	var created domain.CustomerRecord
	err := s.mutate(ctx, "add", func(current []domain.CustomerRecord) ([]domain.CustomerRecord, error) {
		customerID, err := s.uniqueCustomerID(current)
		if err != nil {
			return nil, err
		}

		nextID := 1
		for _, c := range current {
			if c.ID >= nextID {
				nextID = c.ID + 1
			}
		}

		multipleLines := in.MultipleLines
		switch {
		case in.PhoneService == domain.No:
			multipleLines = domain.NoPhoneService
		case multipleLines == "" || multipleLines == domain.NoPhoneService:
			multipleLines = domain.No
		}

		created = domain.CustomerRecord{
			ID:               nextID,
			CustomerID:       customerID,
			Gender:           in.Gender,
			SeniorCitizen:    "0",
			Partner:          in.Partner,
			Dependents:       in.Dependents,
			Tenure:           in.Tenure,
			PhoneService:     in.PhoneService,
			MultipleLines:    multipleLines,
			InternetService:  in.InternetService,
			OnlineSecurity:   in.OnlineSecurity,
			OnlineBackup:     in.OnlineBackup,
			DeviceProtection: in.DeviceProtection,
			TechSupport:      in.TechSupport,
			StreamingTV:      in.StreamingTV,
			StreamingMovies:  in.StreamingMovies,
			Contract:         "Month-to-month",
			PaperlessBilling: in.PaperlessBilling,
			PaymentMethod:    in.PaymentMethod,
			Churn:            domain.No,
			Status:           domain.StatusNew,
		}
		pricing.Recalculate(&created)
		return append(current, created), nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("customer.id", created.CustomerID))
	return &created, nil
}

// UpdateCustomer applies patch to the record with numeric id.
func (s *AccountStateStore) UpdateCustomer(ctx context.Context, id int, patch domain.CustomerPatch) (*domain.CustomerRecord, error) {
	ctx, span := tracer.Start(ctx, "AccountStateStore.UpdateCustomer")
	defer span.End()

	if err := domain.Validate(patch); err != nil {
		s.metrics.IncrAccountMutation("update", false)
		return nil, err
	}

	var updated domain.CustomerRecord
	err := s.mutate(ctx, "update", func(current []domain.CustomerRecord) ([]domain.CustomerRecord, error) {
		i := indexByID(current, id)
		if i < 0 {
			return nil, &domain.ErrNotFound{Resource: "customer", ID: fmt.Sprint(id)}
		}
		c := current[i]
		patch.Apply(&c)

		switch {
		case c.PhoneService == domain.No:
			c.MultipleLines = domain.NoPhoneService
		case c.PhoneService == domain.Yes && c.MultipleLines == domain.NoPhoneService:
			c.MultipleLines = domain.No
		}

		pricing.Recalculate(&c)
		current[i] = c
		updated = c
		return current, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCustomer removes the record with numeric id.
func (s *AccountStateStore) DeleteCustomer(ctx context.Context, id int) error {
	ctx, span := tracer.Start(ctx, "AccountStateStore.DeleteCustomer")
	defer span.End()

	return s.mutate(ctx, "delete", func(current []domain.CustomerRecord) ([]domain.CustomerRecord, error) {
		i := indexByID(current, id)
		if i < 0 {
			return nil, &domain.ErrNotFound{Resource: "customer", ID: fmt.Sprint(id)}
		}
		return slices.Delete(current, i, i+1), nil
	})
}

// AddAddon turns addon on. It reports false when the customer is unknown or
// the add-on's prerequisite is missing; nothing changes in that case.
func (s *AccountStateStore) AddAddon(ctx context.Context, customerID string, addon domain.AddonService) (*domain.CustomerRecord, bool) {
	return s.toggleAddon(ctx, "add_addon", customerID, addon, true)
}

// RemoveAddon turns addon off. It reports false when the customer is unknown.
func (s *AccountStateStore) RemoveAddon(ctx context.Context, customerID string, addon domain.AddonService) (*domain.CustomerRecord, bool) {
	return s.toggleAddon(ctx, "remove_addon", customerID, addon, false)
}

// SetStatus updates the ticket-view status of a customer.
func (s *AccountStateStore) SetStatus(ctx context.Context, customerID, status string) bool {
	c, ok := s.GetByCustomerID(customerID)
	if !ok {
		return false
	}
	_, err := s.UpdateCustomer(ctx, c.ID, domain.CustomerPatch{Status: &status})
	return err == nil
}

func (s *AccountStateStore) toggleAddon(ctx context.Context, op, customerID string, addon domain.AddonService, enable bool) (*domain.CustomerRecord, bool) {
	ctx, span := tracer.Start(ctx, "AccountStateStore.ToggleAddon")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer.id", customerID),
		attribute.String("addon", string(addon)),
		attribute.Bool("enable", enable),
	)

	var updated domain.CustomerRecord
	err := s.mutate(ctx, op, func(current []domain.CustomerRecord) ([]domain.CustomerRecord, error) {
		i := slices.IndexFunc(current, func(c domain.CustomerRecord) bool { return c.CustomerID == customerID })
		if i < 0 {
			return nil, &domain.ErrNotFound{Resource: "customer", ID: customerID}
		}
		c := current[i]
		if !applyAddon(&c, addon, enable) {
			return nil, &domain.ErrValidation{Field: string(addon), Message: "prerequisite not met"}
		}
		pricing.Recalculate(&c)
		current[i] = c
		updated = c
		return current, nil
	})
	if err != nil {
		s.logger.Info("addon change rejected",
			zap.String("customer_id", customerID),
			zap.String("addon", string(addon)),
			zap.Error(err),
		)
		return nil, false
	}
	return &updated, true
}

// applyAddon sets the flag and keeps PhoneService and MultipleLines
// consistent. It returns false when the change is not allowed.
func applyAddon(c *domain.CustomerRecord, addon domain.AddonService, enable bool) bool {
	if _, ok := domain.ParseAddon(string(addon)); !ok {
		return false
	}

	if !enable {
		c.SetAddon(addon, domain.No)
		if addon == domain.AddonPhoneService {
			c.MultipleLines = domain.NoPhoneService
		}
		return true
	}

	switch addon {
	case domain.AddonMultipleLines:
		if c.PhoneService == domain.No {
			return false
		}
	case domain.AddonPhoneService:
		if c.MultipleLines == domain.NoPhoneService {
			c.MultipleLines = domain.No
		}
	}
	c.SetAddon(addon, domain.Yes)
	return true
}

// mutate builds the next collection from the effective one, installs it as
// the overlay and pushes it to the authoritative store. A failed push keeps
// the overlay in place so reads still show the change.
func (s *AccountStateStore) mutate(ctx context.Context, op string, fn func([]domain.CustomerRecord) ([]domain.CustomerRecord, error)) error {
	s.mu.Lock()
	next, err := fn(domain.CloneCustomers(s.effective()))
	if err != nil {
		s.mu.Unlock()
		s.metrics.IncrAccountMutation(op, false)
		return err
	}
	if next == nil {
		next = []domain.CustomerRecord{}
	}
	s.overlay = next
	s.hasOverlay = true
	s.overlaySeq++
	seq := s.overlaySeq
	push := domain.CloneCustomers(next)
	s.mu.Unlock()

	s.metrics.IncrAccountMutation(op, true)
	s.push(ctx, op, seq, push)
	return nil
}

// push saves the snapshot of overlay seq unless a later one was already
// pushed; later snapshots are derived from earlier ones.
func (s *AccountStateStore) push(ctx context.Context, op string, seq uint64, customers []domain.CustomerRecord) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	if seq < s.pushedSeq {
		s.logger.Debug("skipping superseded account push", zap.String("operation", op))
		return
	}
	s.pushedSeq = seq
	if err := s.remote.Save(ctx, customers); err != nil {
		s.metrics.IncrExternalError("accounts")
		s.logger.Error("failed to push customers to authoritative store",
			zap.String("operation", op),
			zap.Error(err),
		)
	}
}

func (s *AccountStateStore) effective() []domain.CustomerRecord {
	if s.hasOverlay {
		return s.overlay
	}
	return s.authoritative
}

func (s *AccountStateStore) uniqueCustomerID(current []domain.CustomerRecord) (string, error) {
	for i := 0; i < maxCustomerIDAttempts; i++ {
		id := s.customerIDs.Next()
		if _, taken := FindCustomer(current, id); !taken && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("no unique customer id after %d attempts", maxCustomerIDAttempts)
}

func indexByID(customers []domain.CustomerRecord, id int) int {
	return slices.IndexFunc(customers, func(c domain.CustomerRecord) bool { return c.ID == id })
}
