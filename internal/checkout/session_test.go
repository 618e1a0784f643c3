package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadProfileMissingForLeadCapture(t *testing.T) {
	lead := LeadProfile{}
	assert.ElementsMatch(t,
		[]string{"name", "email", "phone", "business_name"},
		lead.MissingForLeadCapture(),
	)

	lead = LeadProfile{
		Name:         "Ada Lovelace",
		Email:        "ada@example.com",
		Phone:        "+61 400 000 000",
		BusinessName: "Analytical Engines",
	}
	assert.Empty(t, lead.MissingForLeadCapture())

	lead.Email = "not-an-email"
	assert.Equal(t, []string{"email"}, lead.MissingForLeadCapture())
}

func TestLeadProfileMissingForPayment(t *testing.T) {
	lead := LeadProfile{
		Name:         "Ada Lovelace",
		Email:        "ada@example.com",
		Phone:        "+61 400 000 000",
		BusinessName: "Analytical Engines",
	}
	assert.ElementsMatch(t,
		[]string{"tax_number", "entity_type", "address", "region", "postcode"},
		lead.MissingForPayment(),
	)

	lead.TaxNumber = "51 824 753 556"
	lead.EntityType = "company"
	lead.Address = "1 Example St"
	lead.Region = "VIC"
	lead.Postcode = "3000"
	require.Empty(t, lead.MissingForPayment())
}

func TestLeadProfileNameSplit(t *testing.T) {
	lead := LeadProfile{Name: "Grace Brewster Hopper"}
	assert.Equal(t, "Grace", lead.FirstName())
	assert.Equal(t, "Brewster Hopper", lead.LastName())

	single := LeadProfile{Name: "Cher"}
	assert.Equal(t, "Cher", single.FirstName())
	assert.Empty(t, single.LastName())

	blank := LeadProfile{}
	assert.Empty(t, blank.FirstName())
	assert.Empty(t, blank.LastName())
}

func TestSignatureEmpty(t *testing.T) {
	assert.True(t, Signature{}.Empty())
	assert.True(t, Signature{TypedName: "   "}.Empty())
	assert.False(t, Signature{TypedName: "Ada Lovelace"}.Empty())
	assert.False(t, Signature{ImagePNG: []byte{0x89, 0x50}}.Empty())
}

func TestSessionQuoteFrozen(t *testing.T) {
	for state, frozen := range map[State]bool{
		StateBrowsing:         false,
		StateLeadCaptured:     false,
		StatePaymentPending:   true,
		StatePaymentConfirmed: true,
		StateContractSigned:   true,
	} {
		s := &Session{State: state}
		assert.Equalf(t, frozen, s.QuoteFrozen(), "state %s", state)
	}
}
