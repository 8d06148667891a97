package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/voyago/voyago-backend/internal/llm"
)

// Extraction is a partial travel-intent record parsed from one pivot-language
// utterance.
type Extraction struct {
	IsTravelRelated bool
	ServiceTypes    []ServiceType
	Slots           Slots
	// Unsupported holds service tags the extractor recognized but no
	// capability serves (e.g. weather).
	Unsupported []string
}

// Extractor parses pivot-language utterances into entity slots using the
// language model behind the llm.Provider contract.
type Extractor struct {
	provider llm.Provider
	log      *logrus.Logger
}

// NewExtractor creates a new entity extractor
func NewExtractor(provider llm.Provider, log *logrus.Logger) *Extractor {
	if log == nil {
		log = logrus.New()
	}
	return &Extractor{provider: provider, log: log}
}

const extractPrompt = `You extract travel intent from an English utterance. Respond with only a JSON object:
{
  "is_travel_related": true/false,
  "service_types": ["flight"|"hotel"|"train"|"bus"|"attractions"],
  "entities": {
    "origin": "", "destination": "", "date": "", "travelers": "", "budget": ""
  }
}
A query may name several services ("flights and hotels"). Leave unknown fields empty.
Never invent values the user did not state or that are not in the given prior context.`

// Extract parses one utterance. When prior slots exist (the user may be
// answering a clarification question), they are supplied as context so a
// bare answer like "tomorrow, 2 people" lands in the pending intent.
func (e *Extractor) Extract(ctx context.Context, utterance string, prior Slots) (*Extraction, error) {
	user := utterance
	if ctxStr := priorContext(prior); ctxStr != "" {
		user = fmt.Sprintf("[Previous context: %s] %s", ctxStr, utterance)
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: extractPrompt},
			{Role: "user", Content: user},
		},
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("entity extraction: %w", err)
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == nil {
		return nil, fmt.Errorf("entity extraction: no JSON in model output")
	}

	var payload struct {
		IsTravelRelated bool     `json:"is_travel_related"`
		ServiceTypes    []string `json:"service_types"`
		Entities        struct {
			Origin      string `json:"origin"`
			Destination string `json:"destination"`
			Date        string `json:"date"`
			Travelers   string `json:"travelers"`
			Budget      string `json:"budget"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("entity extraction: %w", err)
	}

	ex := &Extraction{IsTravelRelated: payload.IsTravelRelated}
	for _, tag := range payload.ServiceTypes {
		if svc := ParseServiceType(strings.ToLower(strings.TrimSpace(tag))); svc != "" && svc != ServiceBooking {
			ex.ServiceTypes = append(ex.ServiceTypes, svc)
		} else if tag != "" {
			ex.Unsupported = append(ex.Unsupported, tag)
		}
	}
	ex.Slots = Slots{
		ServiceTypes: ex.ServiceTypes,
		Origin:       strings.TrimSpace(payload.Entities.Origin),
		Destination:  strings.TrimSpace(payload.Entities.Destination),
		Date:         strings.TrimSpace(payload.Entities.Date),
		Travelers:    strings.TrimSpace(payload.Entities.Travelers),
		Budget:       strings.TrimSpace(payload.Entities.Budget),
	}

	e.log.WithFields(logrus.Fields{
		"services": ex.ServiceTypes,
		"travel":   ex.IsTravelRelated,
	}).Debug("entities extracted")
	return ex, nil
}

func priorContext(prior Slots) string {
	var parts []string
	if prior.Origin != "" {
		parts = append(parts, "Origin: "+prior.Origin)
	}
	if prior.Destination != "" {
		parts = append(parts, "Destination: "+prior.Destination)
	}
	if prior.Date != "" {
		parts = append(parts, "Date: "+prior.Date)
	}
	if prior.Travelers != "" {
		parts = append(parts, "Travelers: "+prior.Travelers)
	}
	if len(prior.ServiceTypes) > 0 {
		svcs := make([]string, len(prior.ServiceTypes))
		for i, s := range prior.ServiceTypes {
			svcs[i] = string(s)
		}
		parts = append(parts, "Service: "+strings.Join(svcs, ","))
	}
	return strings.Join(parts, " | ")
}
