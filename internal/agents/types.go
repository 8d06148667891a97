package agents

import (
	"time"

	"github.com/voyago/voyago-backend/internal/intent"
)

// Offer is one option returned by a capability search. Offers keep the
// provider's native ranking so ordinal follow-ups ("the second one") index
// consistently.
type Offer struct {
	Name        string `json:"name"`
	Price       string `json:"price,omitempty"`
	Departure   string `json:"departure,omitempty"`
	Arrival     string `json:"arrival,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Rating      string `json:"rating,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// SearchResult is the outcome of one capability invocation. A provider
// fault yields an empty, degraded result instead of an error so the turn
// can still synthesize a response.
type SearchResult struct {
	Service  intent.ServiceType `json:"service_type"`
	Offers   []Offer            `json:"offers"`
	Provider string             `json:"provider,omitempty"`
	Degraded bool               `json:"degraded,omitempty"`
	Note     string             `json:"note,omitempty"`
}

// TravelerInfo identifies the traveler for a booking.
type TravelerInfo struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
}

// BookingConfirmation is a simulated booking receipt.
type BookingConfirmation struct {
	ConfirmationID string             `json:"confirmation_id"`
	Status         string             `json:"status"`
	Service        intent.ServiceType `json:"service_type,omitempty"`
	Offer          Offer              `json:"offer"`
	Traveler       TravelerInfo       `json:"traveler"`
	BookedAt       time.Time          `json:"booked_at"`
}
