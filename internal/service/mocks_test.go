package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/cache"
	"github.com/boddenberg/telecom-support-go/internal/infra/idgen"
	"github.com/boddenberg/telecom-support-go/internal/infra/observability"
	"github.com/boddenberg/telecom-support-go/internal/port"
	"github.com/boddenberg/telecom-support-go/internal/pricing"
	"github.com/boddenberg/telecom-support-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockCompleter struct {
	replies []string
	err     error
	prompts [][]port.PromptMessage
}

func (m *mockCompleter) Invoke(_ context.Context, prompt []port.PromptMessage) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	r := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return r, nil
}

type staticFinder map[string]domain.CustomerRecord

func (f staticFinder) FindByID(_ context.Context, id string) (*domain.CustomerRecord, bool) {
	c, ok := f[id]
	if !ok {
		return nil, false
	}
	return &c, true
}

// fakeRemote records pushes and never echoes them back on its own.
type fakeRemote struct {
	mu      sync.Mutex
	current []domain.CustomerRecord
	saved   [][]domain.CustomerRecord
	saveErr error
}

func (f *fakeRemote) Load(_ context.Context) ([]domain.CustomerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.CloneCustomers(f.current), nil
}

func (f *fakeRemote) Save(_ context.Context, customers []domain.CustomerRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, domain.CloneCustomers(customers))
	f.current = domain.CloneCustomers(customers)
	return nil
}

func (f *fakeRemote) Watch(ctx context.Context, _ func([]domain.CustomerRecord)) error {
	<-ctx.Done()
	return nil
}

func (f *fakeRemote) lastSaved() []domain.CustomerRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return nil
	}
	return f.saved[len(f.saved)-1]
}

type mockTickets struct {
	published []domain.Ticket
	err       error
}

func (m *mockTickets) PublishTicket(_ context.Context, t domain.Ticket) error {
	m.published = append(m.published, t)
	return m.err
}

// scriptedChat replays responses in order and repeats the last one.
type scriptedChat struct {
	responses []domain.Message
	err       error
	calls     int
	systems   []string
}

func (s *scriptedChat) Chat(_ context.Context, system string, _ []domain.Message, _ []port.ToolSpec) (*domain.Message, error) {
	s.calls++
	s.systems = append(s.systems, system)
	if s.err != nil {
		return nil, s.err
	}
	i := min(s.calls-1, len(s.responses)-1)
	msg := s.responses[i]
	return &msg, nil
}

// --- Fixtures ---

func customerFixtures() []domain.CustomerRecord {
	customers := []domain.CustomerRecord{
		{
			ID: 1, CustomerID: "7590-VHVEG", SeniorCitizen: "0", Tenure: 10,
			PhoneService: domain.Yes, MultipleLines: domain.No, InternetService: domain.InternetFiber,
			OnlineSecurity: domain.No, OnlineBackup: domain.No, DeviceProtection: domain.No,
			TechSupport: domain.No, StreamingTV: domain.No, StreamingMovies: domain.No,
			Contract: "Month-to-month", PaymentMethod: "Electronic check", Churn: domain.No, Status: domain.StatusActive,
		},
		{
			ID: 2, CustomerID: "3668-QPYBK", SeniorCitizen: "0", Tenure: 2,
			PhoneService: domain.Yes, MultipleLines: domain.No, InternetService: domain.InternetDSL,
			OnlineSecurity: domain.Yes, OnlineBackup: domain.Yes, DeviceProtection: domain.No,
			TechSupport: domain.No, StreamingTV: domain.No, StreamingMovies: domain.No,
			Contract: "Month-to-month", PaymentMethod: "Mailed check", Churn: domain.Yes, Status: domain.StatusActive,
		},
		{
			ID: 3, CustomerID: "9305-CDSKC", SeniorCitizen: "0", Tenure: 8,
			PhoneService: domain.No, MultipleLines: domain.NoPhoneService, InternetService: domain.InternetDSL,
			OnlineSecurity: domain.No, OnlineBackup: domain.No, DeviceProtection: domain.No,
			TechSupport: domain.No, StreamingTV: domain.No, StreamingMovies: domain.No,
			Contract: "One year", PaymentMethod: "Bank transfer (automatic)", Churn: domain.No, Status: domain.StatusActive,
		},
	}
	for i := range customers {
		pricing.Recalculate(&customers[i])
	}
	return customers
}

func newAccountStore(t *testing.T, remote *fakeRemote, ids ...string) *service.AccountStateStore {
	t.Helper()
	store := service.NewAccountStateStore(remote, idgen.NewSequence(ids...), observability.NewMetrics(), zap.NewNop())
	store.Reconcile(remote.current)
	return store
}

type harness struct {
	store    *service.AccountStateStore
	remote   *fakeRemote
	tickets  *mockTickets
	llm      *mockCompleter
	tools    *service.SupportTools
	workflow *service.Workflow
	sessions *service.Sessions
}

// newHarness wires the full engine. A nil chat uses the guided model; a nil
// llm disables model decisions.
func newHarness(t *testing.T, chat port.ChatModel, llm *mockCompleter, maxSteps int) *harness {
	t.Helper()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	remote := &fakeRemote{current: customerFixtures()}
	store := newAccountStore(t, remote, "1111-AAAAA")
	lookup := service.NewCustomerLookup(store)

	var completer port.Completer
	if llm != nil {
		completer = llm
	}
	if chat == nil {
		chat = service.GuidedChatModel{}
	}

	tickets := &mockTickets{}
	tools := service.NewSupportTools(
		service.NewIntentClassifier(completer, metrics, logger),
		service.NewEscalationDecider(completer, lookup, idgen.NewSequence("TKT-1", "TKT-2"), metrics, logger),
		service.NewReplyGenerator(completer, lookup, metrics, logger),
		service.NewAccountActions(store, logger),
		metrics,
		logger,
	)

	sessionCache := cache.New[*domain.ConversationState](time.Minute)
	t.Cleanup(sessionCache.Close)

	return &harness{
		store:    store,
		remote:   remote,
		tickets:  tickets,
		llm:      llm,
		tools:    tools,
		workflow: service.NewWorkflow(chat, tools, store, tickets, maxSteps, metrics, logger),
		sessions: service.NewSessions(sessionCache, idgen.NewSequence("session-1", "session-2"), metrics),
	}
}
