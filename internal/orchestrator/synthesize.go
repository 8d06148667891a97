package orchestrator

import (
	"fmt"
	"strings"

	"github.com/voyago/voyago-backend/internal/agents"
	"github.com/voyago/voyago-backend/internal/intent"
)

var sectionTitles = map[intent.ServiceType]string{
	intent.ServiceFlight:      "Flight options",
	intent.ServiceHotel:       "Hotel options",
	intent.ServiceTrain:       "Train options",
	intent.ServiceBus:         "Bus options",
	intent.ServiceAttractions: "Attractions",
}

// Synthesize merges capability outputs into a single pivot-language answer.
// Sections keep dispatch order and a degraded or empty capability renders
// an explicit note rather than silently vanishing.
func Synthesize(results []agents.SearchResult) string {
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderSection(res))
	}
	b.WriteString("\nAsk me anything about these options, or tell me which one you'd like to book.")
	return b.String()
}

func renderSection(res agents.SearchResult) string {
	title := sectionTitles[res.Service]
	if title == "" {
		title = string(res.Service) + " results"
	}

	if res.Degraded || len(res.Offers) == 0 {
		return fmt.Sprintf("%s: no results found right now — please try again.\n", title)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", title)
	for i, offer := range res.Offers {
		fmt.Fprintf(&b, "%d. %s", i+1, offer.Name)
		if offer.Price != "" {
			fmt.Fprintf(&b, " — %s", offer.Price)
		}
		if offer.Departure != "" && offer.Arrival != "" {
			fmt.Fprintf(&b, ", %s → %s", offer.Departure, offer.Arrival)
		}
		if offer.Duration != "" {
			fmt.Fprintf(&b, " (%s)", offer.Duration)
		}
		if offer.Rating != "" {
			fmt.Fprintf(&b, ", rated %s", offer.Rating)
		}
		if offer.Location != "" {
			fmt.Fprintf(&b, ", %s", offer.Location)
		}
		if offer.Description != "" {
			fmt.Fprintf(&b, ". %s", offer.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderBookingConfirmation formats a booking receipt for the user.
func RenderBookingConfirmation(conf *agents.BookingConfirmation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your booking is confirmed! Confirmation ID: %s\n", conf.ConfirmationID)
	fmt.Fprintf(&b, "Option: %s", conf.Offer.Name)
	if conf.Offer.Price != "" {
		fmt.Fprintf(&b, " — %s", conf.Offer.Price)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Traveler: %s (%s, %s)\n", conf.Traveler.Name, conf.Traveler.Contact, conf.Traveler.Email)
	b.WriteString("This is a simulated confirmation — no payment was taken.")
	return b.String()
}
