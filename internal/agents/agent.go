// Package agents holds one handler per travel capability (flight, hotel,
// ground transport, attractions, booking). Each handler wraps a single
// external search call plus a structuring pass, and degrades to an empty
// annotated result when the provider is unreachable.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/voyago/voyago-backend/internal/intent"
	"github.com/voyago/voyago-backend/internal/llm"
	"github.com/voyago/voyago-backend/internal/search"
)

// ProviderUnavailableNote annotates a degraded result.
const ProviderUnavailableNote = "provider unavailable"

const maxOffers = 5

const defaultMaxResults = 3

// Agent is the uniform capability contract.
type Agent interface {
	// Name returns the agent name used in audit records
	Name() string

	// Search runs one capability search for svc with the given slots
	Search(ctx context.Context, svc intent.ServiceType, slots intent.Slots) (*SearchResult, error)
}

// capabilitySpec holds the per-service query template and structuring hints.
type capabilitySpec struct {
	buildQuery   func(svc intent.ServiceType, slots intent.Slots) string
	instructions string
}

type capabilityAgent struct {
	name       string
	spec       capabilitySpec
	search     search.Client
	provider   llm.Provider
	maxResults int
	log        *logrus.Logger
}

func newCapabilityAgent(name string, spec capabilitySpec, searchClient search.Client, provider llm.Provider, maxResults int, log *logrus.Logger) *capabilityAgent {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if log == nil {
		log = logrus.New()
	}
	return &capabilityAgent{name: name, spec: spec, search: searchClient, provider: provider, maxResults: maxResults, log: log}
}

// Name returns the agent name
func (a *capabilityAgent) Name() string {
	return a.name
}

// Search issues the external search and structures the hits into ranked
// offers. Provider faults never surface as errors: the result comes back
// empty and annotated so the synthesizer can render an explicit note.
func (a *capabilityAgent) Search(ctx context.Context, svc intent.ServiceType, slots intent.Slots) (*SearchResult, error) {
	query := a.spec.buildQuery(svc, slots)

	hits, err := a.search.Search(ctx, query, a.maxResults)
	if err != nil {
		a.log.WithError(err).WithField("agent", a.name).Warn("search provider failed")
		return a.degraded(svc), nil
	}
	if len(hits) == 0 {
		return &SearchResult{Service: svc, Provider: a.name}, nil
	}

	offers, err := a.structure(ctx, svc, hits)
	if err != nil {
		a.log.WithError(err).WithField("agent", a.name).Warn("offer structuring failed")
		return a.degraded(svc), nil
	}
	if len(offers) > maxOffers {
		offers = offers[:maxOffers]
	}

	return &SearchResult{Service: svc, Offers: offers, Provider: a.name}, nil
}

func (a *capabilityAgent) degraded(svc intent.ServiceType) *SearchResult {
	return &SearchResult{
		Service:  svc,
		Provider: a.name,
		Degraded: true,
		Note:     ProviderUnavailableNote,
	}
}

func (a *capabilityAgent) structure(ctx context.Context, svc intent.ServiceType, hits []search.Result) ([]Offer, error) {
	var b strings.Builder
	for i, hit := range hits {
		fmt.Fprintf(&b, "=== SOURCE %d: %s ===\nSummary: %s\nContent: %s\n", i+1, hit.Title, hit.Summary, hit.Content)
	}

	prompt := fmt.Sprintf(`You structure %s search results into ranked options.
%s
Respond with only a JSON object: {"offers": [{"name": "", "price": "", "departure": "", "arrival": "", "duration": "", "rating": "", "location": "", "description": ""}]}
Keep the source ranking. Omit fields you cannot find. At most %d offers.`, svc, a.spec.instructions, maxOffers)

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: b.String()},
		},
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == nil {
		return nil, fmt.Errorf("no JSON in structuring output")
	}
	var payload struct {
		Offers []Offer `json:"offers"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload.Offers, nil
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

var flightSpec = capabilitySpec{
	buildQuery: func(_ intent.ServiceType, s intent.Slots) string {
		return joinNonEmpty(" ", "flights from", s.Origin, "to", s.Destination, "on", s.Date, "for", s.Travelers, "passengers")
	},
	instructions: "name is airline plus flight number. Include departure, arrival, duration, price, and stops in description.",
}

var hotelSpec = capabilitySpec{
	buildQuery: func(_ intent.ServiceType, s intent.Slots) string {
		return joinNonEmpty(" ", "hotels in", s.Destination, "check-in", s.Date, "for", s.Travelers, "guests", s.Budget)
	},
	instructions: "name is the hotel. price is per night. Include rating, location, and key amenities in description.",
}

var transportSpec = capabilitySpec{
	buildQuery: func(svc intent.ServiceType, s intent.Slots) string {
		mode := "trains"
		if svc == intent.ServiceBus {
			mode = "buses"
		}
		return joinNonEmpty(" ", mode, "from", s.Origin, "to", s.Destination, "on", s.Date)
	},
	instructions: "name is the train or bus service plus its number. Include departure, arrival, duration, price, and class in description.",
}

var attractionsSpec = capabilitySpec{
	buildQuery: func(_ intent.ServiceType, s intent.Slots) string {
		return joinNonEmpty(" ", "top attractions and things to do in", s.Destination)
	},
	instructions: "name is the attraction. price is the entry fee if any. Include type, rating, and a one-line description.",
}
