package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/upliftlabs/calculator-backend/internal/checkout"
	"github.com/upliftlabs/calculator-backend/internal/quote"
	"github.com/upliftlabs/calculator-backend/pkg/config"
	pkgerrors "github.com/upliftlabs/calculator-backend/pkg/errors"
)

type fakeProviderClient struct {
	checkoutParams *stripe.CheckoutSessionParams
	intentParams   *stripe.PaymentIntentParams
	subParams      *stripe.SubscriptionParams
	productCount   int

	customer     *stripe.Customer
	existingSubs []*stripe.Subscription

	checkoutSession *stripe.CheckoutSession
	paymentIntent   *stripe.PaymentIntent

	createErr error
}

func (f *fakeProviderClient) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.checkoutParams = params
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.example/cs_test_1"}, nil
}

func (f *fakeProviderClient) GetCheckoutSession(_ context.Context, _ string) (*stripe.CheckoutSession, error) {
	return f.checkoutSession, nil
}

func (f *fakeProviderClient) CreatePaymentIntent(_ context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.intentParams = params
	return &stripe.PaymentIntent{ID: "pi_test_1", ClientSecret: "pi_test_1_secret"}, nil
}

func (f *fakeProviderClient) GetPaymentIntent(_ context.Context, _ string) (*stripe.PaymentIntent, error) {
	return f.paymentIntent, nil
}

func (f *fakeProviderClient) FindCustomerByEmail(_ context.Context, _ string) (*stripe.Customer, error) {
	return f.customer, nil
}

func (f *fakeProviderClient) CreateCustomer(_ context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	return &stripe.Customer{ID: "cus_created"}, nil
}

func (f *fakeProviderClient) CreateProduct(_ context.Context, params *stripe.ProductParams) (*stripe.Product, error) {
	f.productCount++
	return &stripe.Product{ID: "prod_test"}, nil
}

func (f *fakeProviderClient) CreateSubscription(_ context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	f.subParams = params
	return &stripe.Subscription{ID: "sub_created"}, nil
}

func (f *fakeProviderClient) ListSubscriptions(_ context.Context, _ string) ([]*stripe.Subscription, error) {
	return f.existingSubs, nil
}

func newTestOrchestrator(t *testing.T, client ProviderClient, policy string) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(OrchestratorParams{
		Client:      client,
		Policy:      policy,
		Currency:    "aud",
		BaseURL:     "https://calc.example.com",
		TaxRate:     "0.10",
		TrialDays:   30,
		CallTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("orchestrator setup: %v", err)
	}
	return o
}

func testSession() *checkout.Session {
	return &checkout.Session{
		ID:    uuid.New(),
		State: checkout.StateLeadCaptured,
		Lead: checkout.LeadProfile{
			Name:         "Ada Lovelace",
			Email:        "ada@example.com",
			BusinessName: "Lovelace Dental",
		},
		Quote: quote.Quote{
			Items: []quote.ItemQuote{
				{ItemID: "reception", Name: "Reception Bot", MonthlyPriceCents: 160000, SetupFeeCents: 350000},
			},
			MonthlyCents:    160000,
			SetupCents:      350000,
			TaxBaseCents:    510000,
			TaxCents:        51000,
			GrandTotalCents: 561000,
			Currency:        "aud",
		},
	}
}

func TestBeginPaymentHostedLineItems(t *testing.T) {
	client := &fakeProviderClient{}
	o := newTestOrchestrator(t, client, config.PaymentPolicyHostedRedirect)
	session := testSession()

	handle, err := o.BeginPayment(context.Background(), session)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if handle.ProviderRef != "cs_test_1" {
		t.Fatalf("provider ref = %s", handle.ProviderRef)
	}
	if handle.RedirectURL == "" {
		t.Fatalf("redirect url missing")
	}

	params := client.checkoutParams
	if params == nil {
		t.Fatalf("checkout session not created")
	}
	if *params.Mode != string(stripe.CheckoutSessionModeSubscription) {
		t.Fatalf("mode = %s", *params.Mode)
	}
	if len(params.LineItems) != 2 {
		t.Fatalf("expected recurring + setup line, got %d", len(params.LineItems))
	}

	// Recurring line bills the GST-inclusive monthly price.
	recurring := params.LineItems[0]
	if recurring.PriceData.Recurring == nil {
		t.Fatalf("first line must be recurring")
	}
	if *recurring.PriceData.UnitAmount != 176000 {
		t.Fatalf("recurring unit = %d", *recurring.PriceData.UnitAmount)
	}
	if *recurring.PriceData.Recurring.Interval != string(stripe.PriceRecurringIntervalMonth) {
		t.Fatalf("recurring interval = %s", *recurring.PriceData.Recurring.Interval)
	}

	// One-time line absorbs the remainder so the first invoice matches the
	// frozen grand total exactly.
	oneTime := params.LineItems[1]
	if oneTime.PriceData.Recurring != nil {
		t.Fatalf("setup line must be one-time")
	}
	total := *recurring.PriceData.UnitAmount + *oneTime.PriceData.UnitAmount
	if total != session.Quote.GrandTotalCents {
		t.Fatalf("first invoice %d != grand total %d", total, session.Quote.GrandTotalCents)
	}

	if params.SubscriptionData == nil || params.SubscriptionData.Metadata["checkout_session_id"] != session.ID.String() {
		t.Fatalf("subscription metadata missing session id")
	}
}

func TestBeginPaymentHostedProviderError(t *testing.T) {
	client := &fakeProviderClient{
		createErr: &stripe.Error{Msg: "Your card was declined."},
	}
	o := newTestOrchestrator(t, client, config.PaymentPolicyHostedRedirect)

	_, err := o.BeginPayment(context.Background(), testSession())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePayment {
		t.Fatalf("unexpected error: %v", err)
	}
	if typed.Message() != "Your card was declined." {
		t.Fatalf("provider message not surfaced: %q", typed.Message())
	}
}

func TestBeginPaymentEmbeddedChargesGrandTotal(t *testing.T) {
	client := &fakeProviderClient{customer: &stripe.Customer{ID: "cus_existing"}}
	o := newTestOrchestrator(t, client, config.PaymentPolicyEmbeddedCharge)
	session := testSession()

	handle, err := o.BeginPayment(context.Background(), session)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if handle.ClientSecret != "pi_test_1_secret" {
		t.Fatalf("client secret = %s", handle.ClientSecret)
	}
	if handle.CustomerID != "cus_existing" {
		t.Fatalf("customer = %s", handle.CustomerID)
	}
	if *client.intentParams.Amount != session.Quote.GrandTotalCents {
		t.Fatalf("intent amount = %d", *client.intentParams.Amount)
	}
}

func TestVerifyPaymentHosted(t *testing.T) {
	client := &fakeProviderClient{
		checkoutSession: &stripe.CheckoutSession{
			ID:            "cs_test_1",
			PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			AmountTotal:   561000,
			Currency:      "aud",
		},
	}
	o := newTestOrchestrator(t, client, config.PaymentPolicyHostedRedirect)
	session := testSession()
	session.Payment.ProviderRef = "cs_test_1"

	outcome, err := o.VerifyPayment(context.Background(), session)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !outcome.Paid || outcome.AmountCents != 561000 || outcome.Currency != "aud" {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestVerifyPaymentEmbeddedFailure(t *testing.T) {
	client := &fakeProviderClient{
		paymentIntent: &stripe.PaymentIntent{
			ID:     "pi_test_1",
			Status: stripe.PaymentIntentStatusRequiresPaymentMethod,
			LastPaymentError: &stripe.Error{
				Msg: "Your card has insufficient funds.",
			},
		},
	}
	o := newTestOrchestrator(t, client, config.PaymentPolicyEmbeddedCharge)
	session := testSession()
	session.Payment.ProviderRef = "pi_test_1"

	outcome, err := o.VerifyPayment(context.Background(), session)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if outcome.Paid {
		t.Fatalf("unpaid intent reported as paid")
	}
	if outcome.FailureReason != "Your card has insufficient funds." {
		t.Fatalf("failure reason = %q", outcome.FailureReason)
	}
}

func TestEstablishRecurringHostedNoop(t *testing.T) {
	client := &fakeProviderClient{}
	o := newTestOrchestrator(t, client, config.PaymentPolicyHostedRedirect)

	subID, err := o.EstablishRecurring(context.Background(), testSession())
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if subID != "" {
		t.Fatalf("hosted policy must not create a subscription, got %s", subID)
	}
}

func TestEstablishRecurringEmbedded(t *testing.T) {
	client := &fakeProviderClient{}
	o := newTestOrchestrator(t, client, config.PaymentPolicyEmbeddedCharge)
	session := testSession()
	session.Payment.CustomerID = "cus_existing"

	subID, err := o.EstablishRecurring(context.Background(), session)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if subID != "sub_created" {
		t.Fatalf("subscription = %s", subID)
	}
	if client.productCount != 1 {
		t.Fatalf("expected one product, got %d", client.productCount)
	}

	params := client.subParams
	if *params.TrialPeriodDays != 30 {
		t.Fatalf("trial days = %d", *params.TrialPeriodDays)
	}
	if len(params.Items) != 1 {
		t.Fatalf("items = %d", len(params.Items))
	}
	if *params.Items[0].PriceData.UnitAmount != 176000 {
		t.Fatalf("recurring unit = %d", *params.Items[0].PriceData.UnitAmount)
	}
	if *params.Items[0].PriceData.Recurring.Interval != string(stripe.PriceRecurringIntervalMonth) {
		t.Fatalf("recurring interval = %s", *params.Items[0].PriceData.Recurring.Interval)
	}
}

func TestEstablishRecurringEmbeddedReusesExisting(t *testing.T) {
	session := testSession()
	session.Payment.CustomerID = "cus_existing"
	client := &fakeProviderClient{
		existingSubs: []*stripe.Subscription{
			{
				ID:       "sub_existing",
				Metadata: map[string]string{"checkout_session_id": session.ID.String()},
			},
		},
	}
	o := newTestOrchestrator(t, client, config.PaymentPolicyEmbeddedCharge)

	subID, err := o.EstablishRecurring(context.Background(), session)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if subID != "sub_existing" {
		t.Fatalf("expected existing subscription, got %s", subID)
	}
	if client.subParams != nil {
		t.Fatalf("must not create a duplicate subscription")
	}
}
