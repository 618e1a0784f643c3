package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	pkgerrors "github.com/upliftlabs/calculator-backend/pkg/errors"
	"github.com/upliftlabs/calculator-backend/pkg/logger"
	"github.com/upliftlabs/calculator-backend/pkg/metrics"
)

// Contact is the flat payload shape the CRM's inbound webhook expects.
type Contact struct {
	FirstName    string            `json:"firstName"`
	LastName     string            `json:"lastName"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone,omitempty"`
	CompanyName  string            `json:"companyName,omitempty"`
	Website      string            `json:"website,omitempty"`
	Source       string            `json:"source"`
	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"customField,omitempty"`
}

// Client posts contacts to the CRM's inbound webhooks. Deliveries are best
// effort: the caller decides whether a failure matters.
type Client struct {
	httpClient  *http.Client
	webhookURL  string
	contractURL string
	logg        *logger.Logger
	metrics     *metrics.CheckoutMetrics
}

// ClientParams groups the CRM client dependencies.
type ClientParams struct {
	WebhookURL  string
	ContractURL string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *logger.Logger
	Metrics     *metrics.CheckoutMetrics
}

// NewClient builds the CRM webhook client. An empty webhook URL is allowed:
// deliveries become no-ops, which keeps local development working without a
// CRM account.
func NewClient(params ClientParams) *Client {
	httpClient := params.HTTPClient
	if httpClient == nil {
		timeout := params.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	contractURL := params.ContractURL
	if contractURL == "" {
		contractURL = params.WebhookURL
	}
	return &Client{
		httpClient:  httpClient,
		webhookURL:  params.WebhookURL,
		contractURL: contractURL,
		logg:        params.Logger,
		metrics:     params.Metrics,
	}
}

// Deliver posts the contact to the lead webhook.
func (c *Client) Deliver(ctx context.Context, event string, contact Contact) error {
	return c.post(ctx, event, c.webhookURL, contact)
}

// DeliverContract posts the contact to the contract webhook.
func (c *Client) DeliverContract(ctx context.Context, event string, contact Contact) error {
	return c.post(ctx, event, c.contractURL, contact)
}

func (c *Client) post(ctx context.Context, event, url string, contact Contact) error {
	if url == "" {
		if c.logg != nil {
			c.logg.Warn(ctx, fmt.Sprintf("crm webhook not configured, dropping %s event", event))
		}
		return nil
	}

	body, err := json.Marshal(contact)
	if err != nil {
		c.metrics.IncSinkDelivery(event, err)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode crm payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.metrics.IncSinkDelivery(event, err)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build crm request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.IncSinkDelivery(event, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "post crm webhook")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("crm webhook returned %d", resp.StatusCode)
		c.metrics.IncSinkDelivery(event, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "crm webhook rejected payload")
	}

	c.metrics.IncSinkDelivery(event, nil)
	return nil
}
