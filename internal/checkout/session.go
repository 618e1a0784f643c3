package checkout

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/upliftlabs/calculator-backend/internal/quote"
)

// State is the checkout session's position in the purchase flow. Transitions
// only move forward; the one exception is that the selection may still be
// edited until a payment attempt starts.
type State string

const (
	StateBrowsing         State = "browsing"
	StateLeadCaptured     State = "lead_captured"
	StatePaymentPending   State = "payment_pending"
	StatePaymentConfirmed State = "payment_confirmed"
	StateContractSigned   State = "contract_signed"
)

// LeadProfile holds the customer's contact and business identity details. A
// subset is required to capture the lead; the full profile is required before
// payment. It is forwarded to the notification sink and attached to provider
// metadata, never persisted beyond the session.
type LeadProfile struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Role         string `json:"role,omitempty"`
	BusinessName string `json:"business_name"`
	TaxNumber    string `json:"tax_number,omitempty"`
	EntityType   string `json:"entity_type,omitempty"`
	Address      string `json:"address,omitempty"`
	Region       string `json:"region,omitempty"`
	Postcode     string `json:"postcode,omitempty"`
	Website      string `json:"website,omitempty"`
}

// MissingForLeadCapture lists the contact fields still required before the
// lead can be captured.
func (l LeadProfile) MissingForLeadCapture() []string {
	var missing []string
	if strings.TrimSpace(l.Name) == "" {
		missing = append(missing, "name")
	}
	if !validEmail(l.Email) {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(l.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(l.BusinessName) == "" {
		missing = append(missing, "business_name")
	}
	return missing
}

// MissingForPayment lists the fields still required before payment can begin.
func (l LeadProfile) MissingForPayment() []string {
	missing := l.MissingForLeadCapture()
	for field, value := range map[string]string{
		"tax_number":  l.TaxNumber,
		"entity_type": l.EntityType,
		"address":     l.Address,
		"region":      l.Region,
		"postcode":    l.Postcode,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// FirstName returns the leading word of the customer name.
func (l LeadProfile) FirstName() string {
	parts := strings.Fields(l.Name)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// LastName returns everything after the first word of the customer name.
func (l LeadProfile) LastName() string {
	parts := strings.Fields(l.Name)
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

// Signature is the contract signature artifact: either a freehand drawing
// captured client-side or a typed full name. The service only cares that one
// of the two is present.
type Signature struct {
	TypedName string    `json:"typed_name,omitempty"`
	ImagePNG  []byte    `json:"image_png,omitempty"`
	SignedAt  time.Time `json:"signed_at"`
}

// Empty reports whether the artifact carries neither a drawing nor a name.
func (s Signature) Empty() bool {
	return len(s.ImagePNG) == 0 && strings.TrimSpace(s.TypedName) == ""
}

// PaymentRef carries the opaque provider references for a payment attempt.
type PaymentRef struct {
	Policy         string `json:"policy"`
	ProviderRef    string `json:"provider_ref,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	RedirectURL    string `json:"redirect_url,omitempty"`
	ClientSecret   string `json:"client_secret,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
}

// Session is one customer's checkout state machine instance. It is the only
// state the service owns; it lives in the session store with a TTL and dies
// with abandonment.
type Session struct {
	ID            uuid.UUID       `json:"id"`
	State         State           `json:"state"`
	Selection     quote.Selection `json:"selection"`
	Quote         quote.Quote     `json:"quote"`
	Lead          LeadProfile     `json:"lead"`
	TermsAccepted bool            `json:"terms_accepted"`
	Payment       PaymentRef      `json:"payment"`
	Signature     *Signature      `json:"signature,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// QuoteFrozen reports whether the quote may no longer change: any edit after
// a payment attempt begins is rejected.
func (s *Session) QuoteFrozen() bool {
	switch s.State {
	case StatePaymentPending, StatePaymentConfirmed, StateContractSigned:
		return true
	default:
		return false
	}
}
