package agents

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/voyago/voyago-backend/internal/intent"
	"github.com/voyago/voyago-backend/internal/llm"
	"github.com/voyago/voyago-backend/internal/search"
)

// Registry maps service types to their capability agents. The mapping is
// static: train and bus share the transport agent, and booking sits beside
// the search capabilities.
type Registry struct {
	agents  map[intent.ServiceType]Agent
	booking *BookingAgent
}

// NewRegistry builds the static capability registry. maxResults caps the hits
// each capability pulls from search, defaulting when non-positive.
func NewRegistry(searchClient search.Client, provider llm.Provider, maxResults int, log *logrus.Logger) *Registry {
	flight := newCapabilityAgent("flight_agent", flightSpec, searchClient, provider, maxResults, log)
	hotel := newCapabilityAgent("hotel_agent", hotelSpec, searchClient, provider, maxResults, log)
	transport := newCapabilityAgent("transport_agent", transportSpec, searchClient, provider, maxResults, log)
	attractions := newCapabilityAgent("attractions_agent", attractionsSpec, searchClient, provider, maxResults, log)

	return &Registry{
		agents: map[intent.ServiceType]Agent{
			intent.ServiceFlight:      flight,
			intent.ServiceHotel:       hotel,
			intent.ServiceTrain:       transport,
			intent.ServiceBus:         transport,
			intent.ServiceAttractions: attractions,
		},
		booking: NewBookingAgent(log),
	}
}

// For returns the agent serving svc, or nil for unknown service types
func (r *Registry) For(svc intent.ServiceType) Agent {
	return r.agents[svc]
}

// Booking returns the booking agent
func (r *Registry) Booking() *BookingAgent {
	return r.booking
}

// Names returns the distinct agent names, sorted
func (r *Registry) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range r.agents {
		if !seen[a.Name()] {
			seen[a.Name()] = true
			names = append(names, a.Name())
		}
	}
	names = append(names, r.booking.Name())
	sort.Strings(names)
	return names
}
