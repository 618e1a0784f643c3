package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/upliftlabs/calculator-backend/internal/checkout"
	"github.com/upliftlabs/calculator-backend/pkg/config"
	pkgerrors "github.com/upliftlabs/calculator-backend/pkg/errors"
	"github.com/upliftlabs/calculator-backend/pkg/logger"
	"github.com/upliftlabs/calculator-backend/pkg/metrics"
)

// Orchestrator drives Stripe for the configured payment policy. Under
// hosted_redirect it opens a hosted subscription checkout whose first invoice
// equals the frozen grand total; under embedded_charge it charges the grand
// total up front and defers the subscription behind a trial.
type Orchestrator struct {
	client      ProviderClient
	policy      string
	currency    string
	baseURL     string
	taxRate     decimal.Decimal
	trialDays   int64
	callTimeout time.Duration
	metrics     *metrics.CheckoutMetrics
	logg        *logger.Logger
}

// OrchestratorParams groups the orchestrator dependencies.
type OrchestratorParams struct {
	Client      ProviderClient
	Policy      string
	Currency    string
	BaseURL     string
	TaxRate     string
	TrialDays   int
	CallTimeout time.Duration
	Metrics     *metrics.CheckoutMetrics
	Logger      *logger.Logger
}

// NewOrchestrator builds the Stripe payment orchestrator.
func NewOrchestrator(params OrchestratorParams) (*Orchestrator, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("stripe provider client required")
	}
	switch params.Policy {
	case config.PaymentPolicyHostedRedirect, config.PaymentPolicyEmbeddedCharge:
	default:
		return nil, fmt.Errorf("unknown payment policy %q", params.Policy)
	}
	rate, err := decimal.NewFromString(params.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("parsing tax rate: %w", err)
	}
	if params.Currency == "" {
		return nil, fmt.Errorf("currency required")
	}
	if params.TrialDays < 0 {
		return nil, fmt.Errorf("trial days cannot be negative")
	}
	callTimeout := params.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	return &Orchestrator{
		client:      params.Client,
		policy:      params.Policy,
		currency:    strings.ToLower(params.Currency),
		baseURL:     strings.TrimRight(params.BaseURL, "/"),
		taxRate:     rate,
		trialDays:   int64(params.TrialDays),
		callTimeout: callTimeout,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// BeginPayment starts a payment attempt for the session's frozen quote.
func (o *Orchestrator) BeginPayment(ctx context.Context, session *checkout.Session) (*checkout.PaymentHandle, error) {
	if o.policy == config.PaymentPolicyEmbeddedCharge {
		return o.beginEmbedded(ctx, session)
	}
	return o.beginHosted(ctx, session)
}

func (o *Orchestrator) beginHosted(ctx context.Context, session *checkout.Session) (*checkout.PaymentHandle, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(session.Quote.Items)+1)
	inclusiveMonthly := int64(0)
	for _, item := range session.Quote.Items {
		unit := o.taxInclusiveCents(item.MonthlyPriceCents)
		inclusiveMonthly += unit
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(o.currency),
				UnitAmount: stripe.Int64(unit),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(item.Name),
					Description: stripe.String("Monthly service (incl. GST)"),
				},
				Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
				},
			},
		})
	}

	// The one-time line absorbs rounding drift so the first invoice matches
	// the quoted grand total to the cent.
	setupLine := session.Quote.GrandTotalCents - inclusiveMonthly
	if setupLine > 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(o.currency),
				UnitAmount: stripe.Int64(setupLine),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String("One-time setup fee"),
					Description: stripe.String("Implementation and onboarding (incl. GST)"),
				},
			},
		})
	} else if setupLine < 0 {
		o.warn(ctx, session, fmt.Sprintf("recurring lines exceed grand total by %d cents", -setupLine))
	}

	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems:                lineItems,
		SuccessURL:               stripe.String(o.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:                stripe.String(o.baseURL + "/checkout?cancelled=true"),
		CustomerEmail:            stripe.String(session.Lead.Email),
		ClientReferenceID:        stripe.String(session.ID.String()),
		AllowPromotionCodes:      stripe.Bool(true),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionAuto)),
		PhoneNumberCollection: &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: o.sessionMetadata(session),
		},
	}
	for key, value := range o.sessionMetadata(session) {
		params.AddMetadata(key, value)
	}
	params.SetIdempotencyKey("checkout-" + session.ID.String())

	cs, err := o.createCheckoutSession(ctx, params)
	if err != nil {
		return nil, providerError("create checkout session", err)
	}

	return &checkout.PaymentHandle{
		Policy:      o.policy,
		ProviderRef: cs.ID,
		CustomerID:  customerID(cs.Customer),
		RedirectURL: cs.URL,
	}, nil
}

func (o *Orchestrator) beginEmbedded(ctx context.Context, session *checkout.Session) (*checkout.PaymentHandle, error) {
	cust, err := o.findOrCreateCustomer(ctx, session)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(session.Quote.GrandTotalCents),
		Currency:     stripe.String(o.currency),
		Customer:     stripe.String(cust.ID),
		ReceiptEmail: stripe.String(session.Lead.Email),
		Description:  stripe.String("First month and setup (incl. GST)"),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for key, value := range o.sessionMetadata(session) {
		params.AddMetadata(key, value)
	}
	params.SetIdempotencyKey("intent-" + session.ID.String())

	pi, err := o.createPaymentIntent(ctx, params)
	if err != nil {
		return nil, providerError("create payment intent", err)
	}

	return &checkout.PaymentHandle{
		Policy:       o.policy,
		ProviderRef:  pi.ID,
		CustomerID:   cust.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// VerifyPayment asks Stripe whether the session's payment attempt settled.
func (o *Orchestrator) VerifyPayment(ctx context.Context, session *checkout.Session) (*checkout.PaymentOutcome, error) {
	ref := session.Payment.ProviderRef
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodePayment, "no payment attempt to verify")
	}

	if o.policy == config.PaymentPolicyEmbeddedCharge {
		pi, err := o.getPaymentIntent(ctx, ref)
		if err != nil {
			return nil, providerError("retrieve payment intent", err)
		}
		outcome := &checkout.PaymentOutcome{
			Paid:        pi.Status == stripe.PaymentIntentStatusSucceeded,
			AmountCents: pi.Amount,
			Currency:    string(pi.Currency),
		}
		if !outcome.Paid && pi.LastPaymentError != nil {
			outcome.FailureReason = pi.LastPaymentError.Msg
		}
		if outcome.FailureReason == "" && !outcome.Paid {
			outcome.FailureReason = fmt.Sprintf("payment intent status %s", pi.Status)
		}
		return outcome, nil
	}

	cs, err := o.getCheckoutSession(ctx, ref)
	if err != nil {
		return nil, providerError("retrieve checkout session", err)
	}
	outcome := &checkout.PaymentOutcome{
		Paid:        cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountCents: cs.AmountTotal,
		Currency:    string(cs.Currency),
	}
	if !outcome.Paid {
		outcome.FailureReason = fmt.Sprintf("checkout session payment status %s", cs.PaymentStatus)
	}
	return outcome, nil
}

// EstablishRecurring creates the deferred monthly subscription for the
// embedded policy. The hosted policy's checkout session already created one,
// so it reports nothing to do.
func (o *Orchestrator) EstablishRecurring(ctx context.Context, session *checkout.Session) (string, error) {
	if o.policy != config.PaymentPolicyEmbeddedCharge {
		return "", nil
	}
	if session.Payment.CustomerID == "" {
		return "", pkgerrors.New(pkgerrors.CodePayment, "no customer recorded for subscription")
	}

	existing, err := o.listSubscriptions(ctx, session.Payment.CustomerID)
	if err != nil {
		return "", providerError("list subscriptions", err)
	}
	for _, sub := range existing {
		if sub.Metadata["checkout_session_id"] == session.ID.String() {
			return sub.ID, nil
		}
	}

	items := make([]*stripe.SubscriptionItemsParams, 0, len(session.Quote.Items))
	for _, item := range session.Quote.Items {
		prodParams := &stripe.ProductParams{Name: stripe.String(item.Name)}
		prodParams.SetIdempotencyKey("product-" + session.ID.String() + "-" + item.ItemID)
		prod, err := o.createProduct(ctx, prodParams)
		if err != nil {
			return "", providerError("create product", err)
		}
		items = append(items, &stripe.SubscriptionItemsParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.SubscriptionItemPriceDataParams{
				Currency:   stripe.String(o.currency),
				Product:    stripe.String(prod.ID),
				UnitAmount: stripe.Int64(o.taxInclusiveCents(item.MonthlyPriceCents)),
				Recurring: &stripe.SubscriptionItemPriceDataRecurringParams{
					Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
				},
			},
		})
	}

	params := &stripe.SubscriptionParams{
		Customer:        stripe.String(session.Payment.CustomerID),
		Items:           items,
		TrialPeriodDays: stripe.Int64(o.trialDays),
	}
	for key, value := range o.sessionMetadata(session) {
		params.AddMetadata(key, value)
	}
	params.SetIdempotencyKey("subscription-" + session.ID.String())

	sub, err := o.createSubscription(ctx, params)
	if err != nil {
		return "", providerError("create subscription", err)
	}
	return sub.ID, nil
}

func (o *Orchestrator) findOrCreateCustomer(ctx context.Context, session *checkout.Session) (*stripe.Customer, error) {
	findCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	start := time.Now()
	existing, err := o.client.FindCustomerByEmail(findCtx, session.Lead.Email)
	o.metrics.ObserveProviderCall("find_customer", time.Since(start), err)
	if err != nil {
		return nil, providerError("find customer", err)
	}
	if existing != nil {
		return existing, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(session.Lead.Email),
		Name:  stripe.String(session.Lead.Name),
		Phone: stripe.String(session.Lead.Phone),
	}
	params.AddMetadata("business_name", session.Lead.BusinessName)
	params.AddMetadata("checkout_session_id", session.ID.String())

	createCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	start = time.Now()
	created, err := o.client.CreateCustomer(createCtx, params)
	o.metrics.ObserveProviderCall("create_customer", time.Since(start), err)
	if err != nil {
		return nil, providerError("create customer", err)
	}
	return created, nil
}

// taxInclusiveCents grosses a net amount up by the tax rate, rounding half
// away from zero the same way the quote engine does.
func (o *Orchestrator) taxInclusiveCents(cents int64) int64 {
	tax := decimal.NewFromInt(cents).Mul(o.taxRate).Round(0).IntPart()
	return cents + tax
}

func (o *Orchestrator) sessionMetadata(session *checkout.Session) map[string]string {
	return map[string]string{
		"checkout_session_id": session.ID.String(),
		"customer_email":      session.Lead.Email,
		"business_name":       session.Lead.BusinessName,
	}
}

func (o *Orchestrator) createCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	start := time.Now()
	cs, err := o.client.CreateCheckoutSession(callCtx, params)
	o.metrics.ObserveProviderCall("create_checkout_session", time.Since(start), err)
	return cs, err
}

func (o *Orchestrator) getCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	start := time.Now()
	cs, err := o.client.GetCheckoutSession(callCtx, id)
	o.metrics.ObserveProviderCall("retrieve_checkout_session", time.Since(start), err)
	return cs, err
}

func (o *Orchestrator) createPaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	start := time.Now()
	pi, err := o.client.CreatePaymentIntent(callCtx, params)
	o.metrics.ObserveProviderCall("create_payment_intent", time.Since(start), err)
	return pi, err
}

func (o *Orchestrator) getPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	start := time.Now()
	pi, err := o.client.GetPaymentIntent(callCtx, id)
	o.metrics.ObserveProviderCall("retrieve_payment_intent", time.Since(start), err)
	return pi, err
}

func (o *Orchestrator) createProduct(ctx context.Context, params *stripe.ProductParams) (*stripe.Product, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	start := time.Now()
	prod, err := o.client.CreateProduct(callCtx, params)
	o.metrics.ObserveProviderCall("create_product", time.Since(start), err)
	return prod, err
}

func (o *Orchestrator) createSubscription(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	start := time.Now()
	sub, err := o.client.CreateSubscription(callCtx, params)
	o.metrics.ObserveProviderCall("create_subscription", time.Since(start), err)
	return sub, err
}

func (o *Orchestrator) listSubscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	start := time.Now()
	subs, err := o.client.ListSubscriptions(callCtx, customerID)
	o.metrics.ObserveProviderCall("list_subscriptions", time.Since(start), err)
	return subs, err
}

func (o *Orchestrator) warn(ctx context.Context, session *checkout.Session, msg string) {
	if o.logg == nil {
		return
	}
	o.logg.Warn(o.logg.WithSessionID(ctx, session.ID.String()), msg)
}

func customerID(cust *stripe.Customer) string {
	if cust == nil {
		return ""
	}
	return cust.ID
}

// providerError surfaces Stripe's own message when one exists so callers can
// relay it verbatim.
func providerError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return pkgerrors.Wrap(pkgerrors.CodePayment, err, stripeErr.Msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodePayment, err, fmt.Sprintf("stripe %s failed", op))
}
