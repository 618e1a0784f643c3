package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/upliftlabs/calculator-backend/internal/quote"
	pkgerrors "github.com/upliftlabs/calculator-backend/pkg/errors"
	"github.com/upliftlabs/calculator-backend/pkg/logger"
)

// PaymentHandle is what the payment orchestrator hands back when a payment
// attempt starts: either a hosted redirect URL or a client-side secret.
type PaymentHandle struct {
	Policy       string
	ProviderRef  string
	CustomerID   string
	RedirectURL  string
	ClientSecret string
}

// PaymentOutcome reports the provider's view of a payment attempt.
type PaymentOutcome struct {
	Paid          bool
	AmountCents   int64
	Currency      string
	FailureReason string
}

// PaymentOrchestrator mediates charges and subscriptions with the payment
// provider. Implementations must only ever charge the frozen quote.
type PaymentOrchestrator interface {
	BeginPayment(ctx context.Context, session *Session) (*PaymentHandle, error)
	VerifyPayment(ctx context.Context, session *Session) (*PaymentOutcome, error)
	// EstablishRecurring sets up the deferred monthly subscription after a
	// confirmed one-time charge. Policies whose provider flow already
	// creates the subscription return an empty id.
	EstablishRecurring(ctx context.Context, session *Session) (string, error)
}

// Notifier forwards checkout milestones to the CRM sink. Calls are
// fire-and-forget: they must never block or fail a transition.
type Notifier interface {
	LeadCaptured(ctx context.Context, session *Session)
	PaymentConfirmed(ctx context.Context, session *Session)
	ContractSigned(ctx context.Context, session *Session)
}

// ConfirmGuard dedupes payment confirmations across the client-optimistic
// and webhook-authoritative paths. CheckAndMark returns true when the id was
// already marked.
type ConfirmGuard interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
}

// Service drives the checkout state machine.
type Service struct {
	store           SessionStore
	engine          *quote.Engine
	orchestrator    PaymentOrchestrator
	notifier        Notifier
	guard           ConfirmGuard
	minMonthlyCents int64
	logg            *logger.Logger
	now             func() time.Time
}

// ServiceParams groups the checkout service dependencies.
type ServiceParams struct {
	Store           SessionStore
	Engine          *quote.Engine
	Orchestrator    PaymentOrchestrator
	Notifier        Notifier
	ConfirmGuard    ConfirmGuard
	MinMonthlyCents int64
	Logger          *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("quote engine required")
	}
	if params.Orchestrator == nil {
		return nil, fmt.Errorf("payment orchestrator required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.ConfirmGuard == nil {
		return nil, fmt.Errorf("confirm guard required")
	}
	if params.MinMonthlyCents < 0 {
		return nil, fmt.Errorf("minimum monthly spend cannot be negative")
	}
	return &Service{
		store:           params.Store,
		engine:          params.Engine,
		orchestrator:    params.Orchestrator,
		notifier:        params.Notifier,
		guard:           params.ConfirmGuard,
		minMonthlyCents: params.MinMonthlyCents,
		logg:            params.Logger,
		now:             time.Now,
	}, nil
}

// Start opens a new session in the browsing state with a server-computed
// quote for the submitted selection.
func (s *Service) Start(ctx context.Context, selection quote.Selection) (*Session, error) {
	now := s.now().UTC()
	session := &Session{
		ID:        uuid.New(),
		State:     StateBrowsing,
		Selection: selection,
		Quote:     s.engine.Compute(selection),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get loads a session by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.store.Get(ctx, id)
}

// UpdateSelection recomputes the quote for an edited selection. The quote is
// frozen the instant a payment attempt starts; edits after that are rejected.
func (s *Service) UpdateSelection(ctx context.Context, id uuid.UUID, selection quote.Selection) (*Session, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.QuoteFrozen() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "quote is frozen once payment has started").
			WithDetails(map[string]any{"state": session.State})
	}
	session.Selection = selection
	session.Quote = s.engine.Compute(selection)
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CaptureLead records the customer's contact details and advances browsing
// to lead_captured. The lead event fires to the sink without blocking.
func (s *Service) CaptureLead(ctx context.Context, id uuid.UUID, lead LeadProfile) (*Session, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != StateBrowsing && session.State != StateLeadCaptured {
		return nil, transitionError(session.State, StateLeadCaptured)
	}
	if session.Quote.MonthlyCents < s.minMonthlyCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "selection is below the minimum monthly spend").
			WithDetails(map[string]any{
				"monthly_cents":     session.Quote.MonthlyCents,
				"min_monthly_cents": s.minMonthlyCents,
			})
	}
	if missing := lead.MissingForLeadCapture(); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead profile incomplete").
			WithDetails(map[string]any{"missing": missing})
	}

	session.Lead = lead
	session.State = StateLeadCaptured
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}

	s.notifier.LeadCaptured(ctx, session)
	return session, nil
}

// BeginPayment freezes the quote and asks the orchestrator for a provider
// handle, advancing to payment_pending. A provider failure leaves the state
// unchanged and surfaces the provider's message for retry.
func (s *Service) BeginPayment(ctx context.Context, id uuid.UUID, termsAccepted bool) (*Session, *PaymentHandle, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if session.State != StateLeadCaptured && session.State != StatePaymentPending {
		return nil, nil, transitionError(session.State, StatePaymentPending)
	}
	if len(session.Quote.Items) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "no items selected")
	}
	if session.Quote.MonthlyCents < s.minMonthlyCents {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "selection is below the minimum monthly spend")
	}
	if !termsAccepted {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "terms must be accepted before payment")
	}
	if missing := session.Lead.MissingForPayment(); len(missing) > 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "lead profile incomplete for payment").
			WithDetails(map[string]any{"missing": missing})
	}

	session.TermsAccepted = true
	handle, err := s.orchestrator.BeginPayment(ctx, session)
	if err != nil {
		return nil, nil, err
	}

	session.State = StatePaymentPending
	session.Payment = PaymentRef{
		Policy:       handle.Policy,
		ProviderRef:  handle.ProviderRef,
		CustomerID:   handle.CustomerID,
		RedirectURL:  handle.RedirectURL,
		ClientSecret: handle.ClientSecret,
	}
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, session); err != nil {
		return nil, nil, err
	}
	return session, handle, nil
}

// ConfirmPayment is the client-side optimistic path: it asks the provider
// whether the attempt succeeded for exactly the frozen grand total. The
// webhook remains the source of truth; both paths funnel into one confirm.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID) (*Session, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State == StatePaymentConfirmed || session.State == StateContractSigned {
		return session, nil
	}
	if session.State != StatePaymentPending {
		return nil, transitionError(session.State, StatePaymentConfirmed)
	}

	outcome, err := s.orchestrator.VerifyPayment(ctx, session)
	if err != nil {
		return nil, err
	}
	if !outcome.Paid {
		reason := outcome.FailureReason
		if reason == "" {
			reason = "payment not completed"
		}
		session.Payment.FailureReason = reason
		session.UpdatedAt = s.now().UTC()
		if err := s.store.Save(ctx, session); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodePayment, reason)
	}
	return s.confirm(ctx, session, outcome.AmountCents, outcome.Currency)
}

// ConfirmFromProvider is the webhook-authoritative path, keyed by the opaque
// provider reference a signed event carries.
func (s *Service) ConfirmFromProvider(ctx context.Context, providerRef string, amountCents int64, currency string) (*Session, error) {
	session, err := s.store.GetByProviderRef(ctx, providerRef)
	if err != nil {
		return nil, err
	}
	if session.State == StatePaymentConfirmed || session.State == StateContractSigned {
		return session, nil
	}
	if session.State != StatePaymentPending {
		return nil, transitionError(session.State, StatePaymentConfirmed)
	}
	return s.confirm(ctx, session, amountCents, currency)
}

func (s *Service) confirm(ctx context.Context, session *Session, amountCents int64, currency string) (*Session, error) {
	if amountCents != session.Quote.GrandTotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "paid amount does not match the quoted total").
			WithDetails(map[string]any{
				"paid_cents":   amountCents,
				"quoted_cents": session.Quote.GrandTotalCents,
			})
	}
	if currency != "" && !strings.EqualFold(currency, session.Quote.Currency) {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "paid currency does not match the quote")
	}

	session.State = StatePaymentConfirmed
	session.Payment.FailureReason = ""
	session.UpdatedAt = s.now().UTC()

	if session.Payment.SubscriptionID == "" {
		subID, err := s.orchestrator.EstablishRecurring(ctx, session)
		if err != nil {
			// The one-time charge already landed; failing to establish
			// the subscription must surface so the confirm can be retried.
			return nil, err
		}
		session.Payment.SubscriptionID = subID
	}

	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}

	alreadyNotified, err := s.guard.CheckAndMark(ctx, session.Payment.ProviderRef)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "payment confirm dedupe check failed", err)
		}
		return session, nil
	}
	if !alreadyNotified {
		s.notifier.PaymentConfirmed(ctx, session)
	}
	return session, nil
}

// SubmitSignature attaches the contract signature artifact and closes the
// session. The contract event fires to the sink without blocking.
func (s *Service) SubmitSignature(ctx context.Context, id uuid.UUID, signature Signature) (*Session, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != StatePaymentConfirmed {
		return nil, transitionError(session.State, StateContractSigned)
	}
	if signature.Empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature artifact is required")
	}
	if signature.SignedAt.IsZero() {
		signature.SignedAt = s.now().UTC()
	}

	session.Signature = &signature
	session.State = StateContractSigned
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}

	s.notifier.ContractSigned(ctx, session)
	return session, nil
}

func transitionError(from, to State) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot move from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}
