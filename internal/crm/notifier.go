package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/upliftlabs/calculator-backend/internal/checkout"
	"github.com/upliftlabs/calculator-backend/internal/quote"
	"github.com/upliftlabs/calculator-backend/pkg/logger"
)

const sourceTag = "roi-calculator"

// Notifier forwards checkout milestones to the CRM. Every delivery runs on
// its own goroutine detached from the request's cancellation: a slow or dead
// CRM must never fail a checkout transition.
type Notifier struct {
	client  *Client
	timeout time.Duration
	logg    *logger.Logger
}

// NewNotifier builds the milestone notifier.
func NewNotifier(client *Client, timeout time.Duration, logg *logger.Logger) (*Notifier, error) {
	if client == nil {
		return nil, fmt.Errorf("crm client required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		client:  client,
		timeout: timeout,
		logg:    logg,
	}, nil
}

// LeadCaptured fires when a visitor leaves contact details.
func (n *Notifier) LeadCaptured(ctx context.Context, session *checkout.Session) {
	contact := contactFromSession(session)
	contact.Tags = []string{sourceTag, "lead"}
	n.dispatch(ctx, "lead_captured", func(dctx context.Context) error {
		return n.client.Deliver(dctx, "lead_captured", contact)
	})
}

// PaymentConfirmed fires exactly once per settled payment.
func (n *Notifier) PaymentConfirmed(ctx context.Context, session *checkout.Session) {
	contact := contactFromSession(session)
	contact.Tags = []string{sourceTag, "customer", "payment-confirmed"}
	contact.CustomFields["payment_reference"] = session.Payment.ProviderRef
	contact.CustomFields["subscription_id"] = session.Payment.SubscriptionID
	n.dispatch(ctx, "payment_confirmed", func(dctx context.Context) error {
		return n.client.Deliver(dctx, "payment_confirmed", contact)
	})
}

// ContractSigned fires when the service agreement is signed.
func (n *Notifier) ContractSigned(ctx context.Context, session *checkout.Session) {
	contact := contactFromSession(session)
	contact.Tags = []string{sourceTag, "contract-signed"}
	if session.Signature != nil {
		contact.CustomFields["signed_name"] = session.Signature.TypedName
		contact.CustomFields["signed_at"] = session.Signature.SignedAt.UTC().Format(time.RFC3339)
	}
	n.dispatch(ctx, "contract_signed", func(dctx context.Context) error {
		return n.client.DeliverContract(dctx, "contract_signed", contact)
	})
}

func (n *Notifier) dispatch(ctx context.Context, event string, deliver func(context.Context) error) {
	detached := context.WithoutCancel(ctx)
	go func() {
		dctx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()
		if err := deliver(dctx); err != nil && n.logg != nil {
			n.logg.Error(dctx, fmt.Sprintf("crm %s delivery failed", event), err)
		}
	}()
}

func contactFromSession(session *checkout.Session) Contact {
	lead := session.Lead
	contact := Contact{
		FirstName:   lead.FirstName(),
		LastName:    lead.LastName(),
		Email:       lead.Email,
		Phone:       lead.Phone,
		CompanyName: lead.BusinessName,
		Website:     lead.Website,
		Source:      sourceTag,
		CustomFields: map[string]string{
			"checkout_session_id": session.ID.String(),
			"checkout_state":      string(session.State),
			"selected_items":      strings.Join(session.Selection.ItemIDs, ","),
			"monthly_total":       dollars(session.Quote.MonthlyCents),
			"setup_total":         dollars(session.Quote.SetupCents),
			"grand_total":         dollars(session.Quote.GrandTotalCents),
			"projected_benefit":   dollars(session.Quote.BenefitCents),
		},
	}
	if lead.Role != "" {
		contact.CustomFields["role"] = lead.Role
	}
	if lead.TaxNumber != "" {
		contact.CustomFields["tax_number"] = lead.TaxNumber
	}
	if lead.EntityType != "" {
		contact.CustomFields["entity_type"] = lead.EntityType
	}
	return contact
}

// LeadSubmission is a standalone lead form post, independent of any checkout
// session.
type LeadSubmission struct {
	Name          string
	Email         string
	Phone         string
	CompanyName   string
	Website       string
	SelectedItems []string
	Quote         *quote.Quote
}

// RecordLead forwards a standalone lead to the CRM synchronously. Callers
// treat failures as log-only so the lead form never bounces a visitor.
func (n *Notifier) RecordLead(ctx context.Context, lead LeadSubmission) error {
	first, last := splitName(lead.Name)
	contact := Contact{
		FirstName:   first,
		LastName:    last,
		Email:       lead.Email,
		Phone:       lead.Phone,
		CompanyName: lead.CompanyName,
		Website:     lead.Website,
		Source:      sourceTag,
		Tags:        []string{sourceTag, "lead"},
		CustomFields: map[string]string{
			"selected_items": strings.Join(lead.SelectedItems, ","),
		},
	}
	if lead.Quote != nil {
		contact.CustomFields["monthly_total"] = dollars(lead.Quote.MonthlyCents)
		contact.CustomFields["setup_total"] = dollars(lead.Quote.SetupCents)
		contact.CustomFields["grand_total"] = dollars(lead.Quote.GrandTotalCents)
		contact.CustomFields["projected_benefit"] = dollars(lead.Quote.BenefitCents)
	}

	dctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	return n.client.Deliver(dctx, "lead_submitted", contact)
}

func splitName(name string) (string, string) {
	fields := strings.Fields(strings.TrimSpace(name))
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

func dollars(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
