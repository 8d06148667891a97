package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voyago/voyago-backend/internal/intent"
)

// BookingAgent confirms a selected offer for a traveler. Bookings are
// simulated: no payment or real reservation happens, only a confirmation
// record.
type BookingAgent struct {
	name string
	log  *logrus.Logger
}

// NewBookingAgent creates a new booking agent
func NewBookingAgent(log *logrus.Logger) *BookingAgent {
	if log == nil {
		log = logrus.New()
	}
	return &BookingAgent{name: "booking_agent", log: log}
}

// Name returns the agent name
func (a *BookingAgent) Name() string {
	return a.name
}

// Book produces a confirmation for the selected offer. Traveler details
// must be complete; validation happens upstream in the follow-up resolver.
func (a *BookingAgent) Book(ctx context.Context, svc intent.ServiceType, offer Offer, traveler TravelerInfo) (*BookingConfirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if traveler.Name == "" || traveler.Contact == "" || traveler.Email == "" {
		return nil, fmt.Errorf("incomplete traveler details")
	}

	shortID := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:10]
	conf := &BookingConfirmation{
		ConfirmationID: "VYG-" + shortID,
		Status:         "confirmed",
		Service:        svc,
		Offer:          offer,
		Traveler:       traveler,
		BookedAt:       time.Now().UTC(),
	}

	a.log.WithFields(logrus.Fields{
		"confirmation_id": conf.ConfirmationID,
		"service":         svc,
		"offer":           offer.Name,
	}).Info("booking confirmed")
	return conf, nil
}
