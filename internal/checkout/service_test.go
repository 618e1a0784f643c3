package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/upliftlabs/calculator-backend/internal/catalog"
	"github.com/upliftlabs/calculator-backend/internal/quote"
	pkgerrors "github.com/upliftlabs/calculator-backend/pkg/errors"
)

type fakeOrchestrator struct {
	beginCalls     int
	verifyCalls    int
	recurringCalls int

	beginErr error
	outcome  PaymentOutcome
}

func (f *fakeOrchestrator) BeginPayment(_ context.Context, _ *Session) (*PaymentHandle, error) {
	f.beginCalls++
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &PaymentHandle{
		Policy:      "hosted_redirect",
		ProviderRef: "cs_test_123",
		RedirectURL: "https://stripe.example/pay",
	}, nil
}

func (f *fakeOrchestrator) VerifyPayment(_ context.Context, _ *Session) (*PaymentOutcome, error) {
	f.verifyCalls++
	out := f.outcome
	return &out, nil
}

func (f *fakeOrchestrator) EstablishRecurring(_ context.Context, _ *Session) (string, error) {
	f.recurringCalls++
	return "sub_test_123", nil
}

type fakeNotifier struct {
	leads     int
	payments  int
	contracts int
}

func (f *fakeNotifier) LeadCaptured(context.Context, *Session)     { f.leads++ }
func (f *fakeNotifier) PaymentConfirmed(context.Context, *Session) { f.payments++ }
func (f *fakeNotifier) ContractSigned(context.Context, *Session)   { f.contracts++ }

type fakeGuard struct {
	marked map[string]bool
}

func (f *fakeGuard) CheckAndMark(_ context.Context, id string) (bool, error) {
	if f.marked == nil {
		f.marked = map[string]bool{}
	}
	seen := f.marked[id]
	f.marked[id] = true
	return seen, nil
}

func testEngine(t *testing.T) *quote.Engine {
	t.Helper()
	cat := catalog.New([]catalog.Item{
		{
			ID:                "reception",
			Name:              "Reception Bot",
			MonthlyPriceCents: 160000,
			SetupFeeCents:     350000,
			Params:            []catalog.Param{{Key: "missed_calls", Default: 60, Min: 0, Max: 200}},
			Benefit: func(in map[string]float64) float64 {
				return in["missed_calls"] * 50
			},
		},
		{
			ID:                "small",
			Name:              "Small Bot",
			MonthlyPriceCents: 30000,
			SetupFeeCents:     50000,
			Benefit:           func(map[string]float64) float64 { return 100 },
		},
	})
	engine, err := quote.NewEngine(cat, "0.10", "aud")
	if err != nil {
		t.Fatalf("engine setup: %v", err)
	}
	return engine
}

type harness struct {
	svc          *Service
	orchestrator *fakeOrchestrator
	notifier     *fakeNotifier
	guard        *fakeGuard
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		orchestrator: &fakeOrchestrator{},
		notifier:     &fakeNotifier{},
		guard:        &fakeGuard{},
	}
	svc, err := NewService(ServiceParams{
		Store:           NewMemorySessionStore(),
		Engine:          testEngine(t),
		Orchestrator:    h.orchestrator,
		Notifier:        h.notifier,
		ConfirmGuard:    h.guard,
		MinMonthlyCents: 50000,
	})
	if err != nil {
		t.Fatalf("service setup: %v", err)
	}
	h.svc = svc
	return h
}

func validLead() LeadProfile {
	return LeadProfile{
		Name:         "Ada Lovelace",
		Email:        "ada@example.com",
		Phone:        "+61400000000",
		BusinessName: "Lovelace Dental",
		TaxNumber:    "51824753556",
		EntityType:   "company",
		Address:      "1 Example St",
		Region:       "VIC",
		Postcode:     "3000",
	}
}

func (h *harness) startSession(t *testing.T) *Session {
	t.Helper()
	session, err := h.svc.Start(context.Background(), quote.Selection{ItemIDs: []string{"reception"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return session
}

func (h *harness) toPending(t *testing.T) *Session {
	t.Helper()
	session := h.startSession(t)
	ctx := context.Background()
	if _, err := h.svc.CaptureLead(ctx, session.ID, validLead()); err != nil {
		t.Fatalf("capture lead: %v", err)
	}
	pending, _, err := h.svc.BeginPayment(ctx, session.ID, true)
	if err != nil {
		t.Fatalf("begin payment: %v", err)
	}
	h.orchestrator.outcome = PaymentOutcome{
		Paid:        true,
		AmountCents: pending.Quote.GrandTotalCents,
		Currency:    "aud",
	}
	return pending
}

func errCode(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	return typed.Code()
}

func TestStartComputesQuote(t *testing.T) {
	h := newHarness(t)
	session := h.startSession(t)

	if session.State != StateBrowsing {
		t.Fatalf("state = %s", session.State)
	}
	if session.Quote.GrandTotalCents != 561000 {
		t.Fatalf("grand total = %d", session.Quote.GrandTotalCents)
	}

	loaded, err := h.svc.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Quote.GrandTotalCents != session.Quote.GrandTotalCents {
		t.Fatalf("stored quote differs")
	}
}

func TestCaptureLeadAdvancesAndNotifies(t *testing.T) {
	h := newHarness(t)
	session := h.startSession(t)

	updated, err := h.svc.CaptureLead(context.Background(), session.ID, validLead())
	if err != nil {
		t.Fatalf("capture lead: %v", err)
	}
	if updated.State != StateLeadCaptured {
		t.Fatalf("state = %s", updated.State)
	}
	if h.notifier.leads != 1 {
		t.Fatalf("expected one lead event, got %d", h.notifier.leads)
	}
}

func TestCaptureLeadBelowMinimumMonthly(t *testing.T) {
	h := newHarness(t)
	session, err := h.svc.Start(context.Background(), quote.Selection{ItemIDs: []string{"small"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err = h.svc.CaptureLead(context.Background(), session.ID, validLead())
	if code := errCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("code = %s", code)
	}
	if h.notifier.leads != 0 {
		t.Fatalf("no lead event expected")
	}
}

func TestCaptureLeadIncomplete(t *testing.T) {
	h := newHarness(t)
	session := h.startSession(t)

	lead := validLead()
	lead.Email = "not-an-email"
	_, err := h.svc.CaptureLead(context.Background(), session.ID, lead)
	if code := errCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("code = %s", code)
	}
}

func TestBeginPaymentRequiresLeadCapture(t *testing.T) {
	h := newHarness(t)
	session := h.startSession(t)

	_, _, err := h.svc.BeginPayment(context.Background(), session.ID, true)
	if code := errCode(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("code = %s", code)
	}
	if h.orchestrator.beginCalls != 0 {
		t.Fatalf("provider must not be called")
	}
}

func TestBeginPaymentRequiresTerms(t *testing.T) {
	h := newHarness(t)
	session := h.startSession(t)
	ctx := context.Background()
	if _, err := h.svc.CaptureLead(ctx, session.ID, validLead()); err != nil {
		t.Fatalf("capture lead: %v", err)
	}

	_, _, err := h.svc.BeginPayment(ctx, session.ID, false)
	if code := errCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("code = %s", code)
	}
}

func TestBeginPaymentProviderFailureLeavesState(t *testing.T) {
	h := newHarness(t)
	h.orchestrator.beginErr = pkgerrors.New(pkgerrors.CodePayment, "card declined")
	session := h.startSession(t)
	ctx := context.Background()
	if _, err := h.svc.CaptureLead(ctx, session.ID, validLead()); err != nil {
		t.Fatalf("capture lead: %v", err)
	}

	_, _, err := h.svc.BeginPayment(ctx, session.ID, true)
	if code := errCode(t, err); code != pkgerrors.CodePayment {
		t.Fatalf("code = %s", code)
	}

	loaded, err := h.svc.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.State != StateLeadCaptured {
		t.Fatalf("state = %s, want %s", loaded.State, StateLeadCaptured)
	}
}

func TestQuoteFrozenAfterPaymentStarts(t *testing.T) {
	h := newHarness(t)
	pending := h.toPending(t)

	_, err := h.svc.UpdateSelection(context.Background(), pending.ID, quote.Selection{ItemIDs: []string{"small"}})
	if code := errCode(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("code = %s", code)
	}

	loaded, _ := h.svc.Get(context.Background(), pending.ID)
	if loaded.Quote.GrandTotalCents != pending.Quote.GrandTotalCents {
		t.Fatalf("quote changed while frozen")
	}
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	h := newHarness(t)
	pending := h.toPending(t)
	ctx := context.Background()

	confirmed, err := h.svc.ConfirmPayment(ctx, pending.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.State != StatePaymentConfirmed {
		t.Fatalf("state = %s", confirmed.State)
	}
	if confirmed.Payment.SubscriptionID != "sub_test_123" {
		t.Fatalf("subscription = %q", confirmed.Payment.SubscriptionID)
	}

	again, err := h.svc.ConfirmPayment(ctx, pending.ID)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if again.State != StatePaymentConfirmed {
		t.Fatalf("state = %s", again.State)
	}
	if h.orchestrator.recurringCalls != 1 {
		t.Fatalf("expected one subscription, got %d", h.orchestrator.recurringCalls)
	}
	if h.notifier.payments != 1 {
		t.Fatalf("expected one sink event, got %d", h.notifier.payments)
	}
}

func TestConfirmRaceClientAndWebhook(t *testing.T) {
	h := newHarness(t)
	pending := h.toPending(t)
	ctx := context.Background()

	// Webhook lands first.
	_, err := h.svc.ConfirmFromProvider(ctx, "cs_test_123", pending.Quote.GrandTotalCents, "aud")
	if err != nil {
		t.Fatalf("webhook confirm: %v", err)
	}

	// Client confirm arrives late.
	session, err := h.svc.ConfirmPayment(ctx, pending.ID)
	if err != nil {
		t.Fatalf("client confirm: %v", err)
	}
	if session.State != StatePaymentConfirmed {
		t.Fatalf("state = %s", session.State)
	}
	if h.orchestrator.recurringCalls != 1 {
		t.Fatalf("expected one subscription, got %d", h.orchestrator.recurringCalls)
	}
	if h.notifier.payments != 1 {
		t.Fatalf("expected one sink event, got %d", h.notifier.payments)
	}
}

func TestConfirmRejectsAmountMismatch(t *testing.T) {
	h := newHarness(t)
	pending := h.toPending(t)

	_, err := h.svc.ConfirmFromProvider(context.Background(), "cs_test_123", pending.Quote.GrandTotalCents-1, "aud")
	if code := errCode(t, err); code != pkgerrors.CodeIntegrity {
		t.Fatalf("code = %s", code)
	}

	loaded, _ := h.svc.Get(context.Background(), pending.ID)
	if loaded.State != StatePaymentPending {
		t.Fatalf("state = %s", loaded.State)
	}
	if h.notifier.payments != 0 {
		t.Fatalf("no sink event expected")
	}
}

func TestConfirmPaymentNotPaid(t *testing.T) {
	h := newHarness(t)
	pending := h.toPending(t)
	h.orchestrator.outcome = PaymentOutcome{Paid: false, FailureReason: "card declined"}

	_, err := h.svc.ConfirmPayment(context.Background(), pending.ID)
	if code := errCode(t, err); code != pkgerrors.CodePayment {
		t.Fatalf("code = %s", code)
	}

	loaded, _ := h.svc.Get(context.Background(), pending.ID)
	if loaded.State != StatePaymentPending {
		t.Fatalf("state = %s", loaded.State)
	}
	if loaded.Payment.FailureReason != "card declined" {
		t.Fatalf("failure reason = %q", loaded.Payment.FailureReason)
	}
}

func TestConfirmFromProviderUnknownRef(t *testing.T) {
	h := newHarness(t)
	h.toPending(t)

	_, err := h.svc.ConfirmFromProvider(context.Background(), "cs_unknown", 100, "aud")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitSignature(t *testing.T) {
	h := newHarness(t)
	pending := h.toPending(t)
	ctx := context.Background()

	if _, err := h.svc.ConfirmPayment(ctx, pending.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	signed, err := h.svc.SubmitSignature(ctx, pending.ID, Signature{TypedName: "Ada Lovelace"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.State != StateContractSigned {
		t.Fatalf("state = %s", signed.State)
	}
	if signed.Signature == nil || signed.Signature.SignedAt.IsZero() {
		t.Fatalf("signature timestamp missing")
	}
	if h.notifier.contracts != 1 {
		t.Fatalf("expected one contract event, got %d", h.notifier.contracts)
	}
}

func TestSubmitSignatureRequiresConfirmedPayment(t *testing.T) {
	h := newHarness(t)
	pending := h.toPending(t)

	_, err := h.svc.SubmitSignature(context.Background(), pending.ID, Signature{TypedName: "Ada"})
	if code := errCode(t, err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("code = %s", code)
	}
}

func TestSubmitSignatureRequiresArtifact(t *testing.T) {
	h := newHarness(t)
	pending := h.toPending(t)
	ctx := context.Background()
	if _, err := h.svc.ConfirmPayment(ctx, pending.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	_, err := h.svc.SubmitSignature(ctx, pending.ID, Signature{})
	if code := errCode(t, err); code != pkgerrors.CodeValidation {
		t.Fatalf("code = %s", code)
	}
}

func TestGetUnknownSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
