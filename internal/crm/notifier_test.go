package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/upliftlabs/calculator-backend/internal/checkout"
	"github.com/upliftlabs/calculator-backend/internal/quote"
)

type capture struct {
	mu       sync.Mutex
	contacts []Contact
	status   int
}

func (c *capture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var contact Contact
		if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.contacts = append(c.contacts, contact)
		c.mu.Unlock()
		status := c.status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}
}

func (c *capture) wait(t *testing.T, n int) []Contact {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		if len(c.contacts) >= n {
			out := append([]Contact(nil), c.contacts...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d deliveries", n)
	return nil
}

func confirmedSession() *checkout.Session {
	return &checkout.Session{
		ID:    uuid.New(),
		State: checkout.StatePaymentConfirmed,
		Lead: checkout.LeadProfile{
			Name:         "Ada Lovelace",
			Email:        "ada@example.com",
			Phone:        "+61400000000",
			BusinessName: "Lovelace Dental",
		},
		Selection: quote.Selection{ItemIDs: []string{"reception"}},
		Quote: quote.Quote{
			MonthlyCents:    160000,
			SetupCents:      350000,
			GrandTotalCents: 561000,
			Currency:        "aud",
		},
		Payment: checkout.PaymentRef{
			ProviderRef:    "cs_test_1",
			SubscriptionID: "sub_test_1",
		},
	}
}

func newTestNotifier(t *testing.T, url string) *Notifier {
	t.Helper()
	client := NewClient(ClientParams{WebhookURL: url, Timeout: time.Second})
	notifier, err := NewNotifier(client, time.Second, nil)
	if err != nil {
		t.Fatalf("notifier setup: %v", err)
	}
	return notifier
}

func TestPaymentConfirmedDelivery(t *testing.T) {
	cap := &capture{}
	server := httptest.NewServer(cap.handler())
	defer server.Close()

	notifier := newTestNotifier(t, server.URL)
	session := confirmedSession()
	notifier.PaymentConfirmed(context.Background(), session)

	contacts := cap.wait(t, 1)
	contact := contacts[0]
	if contact.FirstName != "Ada" || contact.LastName != "Lovelace" {
		t.Fatalf("name split = %q %q", contact.FirstName, contact.LastName)
	}
	if contact.Email != "ada@example.com" {
		t.Fatalf("email = %s", contact.Email)
	}
	if contact.CustomFields["grand_total"] != "5610.00" {
		t.Fatalf("grand total = %s", contact.CustomFields["grand_total"])
	}
	if contact.CustomFields["payment_reference"] != "cs_test_1" {
		t.Fatalf("payment reference = %s", contact.CustomFields["payment_reference"])
	}

	foundTag := false
	for _, tag := range contact.Tags {
		if tag == "payment-confirmed" {
			foundTag = true
		}
	}
	if !foundTag {
		t.Fatalf("tags = %v", contact.Tags)
	}
}

func TestLeadCapturedDeliveryDetachedFromRequest(t *testing.T) {
	cap := &capture{}
	server := httptest.NewServer(cap.handler())
	defer server.Close()

	notifier := newTestNotifier(t, server.URL)

	// Cancel the request context immediately: delivery must still happen.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	notifier.LeadCaptured(ctx, confirmedSession())

	contacts := cap.wait(t, 1)
	if contacts[0].CompanyName != "Lovelace Dental" {
		t.Fatalf("company = %s", contacts[0].CompanyName)
	}
}

func TestRecordLead(t *testing.T) {
	cap := &capture{}
	server := httptest.NewServer(cap.handler())
	defer server.Close()

	notifier := newTestNotifier(t, server.URL)
	q := quote.Quote{MonthlyCents: 160000, GrandTotalCents: 561000}
	err := notifier.RecordLead(context.Background(), LeadSubmission{
		Name:          "Grace Hopper",
		Email:         "grace@example.com",
		SelectedItems: []string{"reception", "retention"},
		Quote:         &q,
	})
	if err != nil {
		t.Fatalf("record lead: %v", err)
	}

	contacts := cap.wait(t, 1)
	if contacts[0].FirstName != "Grace" || contacts[0].LastName != "Hopper" {
		t.Fatalf("name = %q %q", contacts[0].FirstName, contacts[0].LastName)
	}
	if contacts[0].CustomFields["selected_items"] != "reception,retention" {
		t.Fatalf("selected items = %s", contacts[0].CustomFields["selected_items"])
	}
}

func TestRecordLeadServerError(t *testing.T) {
	cap := &capture{status: http.StatusInternalServerError}
	server := httptest.NewServer(cap.handler())
	defer server.Close()

	notifier := newTestNotifier(t, server.URL)
	err := notifier.RecordLead(context.Background(), LeadSubmission{Name: "X", Email: "x@example.com"})
	if err == nil {
		t.Fatalf("expected delivery error")
	}
}

func TestDeliverUnconfiguredIsNoop(t *testing.T) {
	client := NewClient(ClientParams{})
	if err := client.Deliver(context.Background(), "lead_captured", Contact{}); err != nil {
		t.Fatalf("unconfigured delivery must be a no-op, got %v", err)
	}
}
