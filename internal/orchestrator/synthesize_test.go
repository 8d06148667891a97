package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voyago/voyago-backend/internal/agents"
	"github.com/voyago/voyago-backend/internal/intent"
)

func TestSynthesizeKeepsSectionOrderAndNumbering(t *testing.T) {
	results := []agents.SearchResult{
		{
			Service: intent.ServiceFlight,
			Offers: []agents.Offer{
				{Name: "IndiGo 6E-345", Price: "₹3,200", Departure: "06:10", Arrival: "08:25"},
				{Name: "Air India AI-852", Price: "₹5,000"},
			},
		},
		{
			Service: intent.ServiceHotel,
			Offers: []agents.Offer{
				{Name: "The Grand Palace", Price: "₹6,500", Rating: "4.5", Location: "Connaught Place"},
			},
		},
	}

	text := Synthesize(results)
	flightIdx := strings.Index(text, "Flight options:")
	hotelIdx := strings.Index(text, "Hotel options:")
	assert.GreaterOrEqual(t, flightIdx, 0)
	assert.Greater(t, hotelIdx, flightIdx)
	assert.Contains(t, text, "1. IndiGo 6E-345 — ₹3,200, 06:10 → 08:25")
	assert.Contains(t, text, "2. Air India AI-852 — ₹5,000")
	assert.Contains(t, text, "1. The Grand Palace — ₹6,500, rated 4.5, Connaught Place")
	assert.Contains(t, text, "tell me which one you'd like to book")
}

func TestSynthesizeAnnotatesDegradedSections(t *testing.T) {
	results := []agents.SearchResult{
		{
			Service: intent.ServiceFlight,
			Offers:  []agents.Offer{{Name: "IndiGo 6E-345", Price: "₹3,200"}},
		},
		{
			Service:  intent.ServiceHotel,
			Degraded: true,
			Note:     agents.ProviderUnavailableNote,
		},
	}

	text := Synthesize(results)
	assert.Contains(t, text, "IndiGo 6E-345")
	assert.Contains(t, text, "Hotel options: no results found right now")
}

func TestRenderBookingConfirmation(t *testing.T) {
	conf := &agents.BookingConfirmation{
		ConfirmationID: "VYG-ABC123DEF0",
		Status:         "confirmed",
		Service:        intent.ServiceFlight,
		Offer:          agents.Offer{Name: "IndiGo 6E-345", Price: "₹3,200"},
		Traveler:       agents.TravelerInfo{Name: "Priya Sharma", Contact: "9876543210", Email: "priya@example.com"},
	}

	text := RenderBookingConfirmation(conf)
	assert.Contains(t, text, "Confirmation ID: VYG-ABC123DEF0")
	assert.Contains(t, text, "IndiGo 6E-345 — ₹3,200")
	assert.Contains(t, text, "Priya Sharma (9876543210, priya@example.com)")
	assert.Contains(t, text, "no payment was taken")
}
