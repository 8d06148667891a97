// Package orchestrator is the turn engine: per message it decides whether
// more information is needed, which capabilities to invoke, how prior
// context merges into follow-ups, and what gets persisted so later turns
// can reference earlier results.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/voyago/voyago-backend/internal/agents"
	"github.com/voyago/voyago-backend/internal/intent"
	"github.com/voyago/voyago-backend/internal/language"
	"github.com/voyago/voyago-backend/internal/store"
)

// Orchestrator routes each turn through detection, extraction, slot
// filling, capability dispatch, and synthesis.
type Orchestrator struct {
	store     store.SessionStore
	bridge    *language.Bridge
	extractor *intent.Extractor
	registry  *agents.Registry
	resolver  *FollowupResolver
	cfg       Config
	log       *logrus.Logger

	// turns admits one in-flight turn per session id; turns on different
	// sessions run fully in parallel.
	turns *store.KeyedMutex
}

// New creates a new orchestrator
func New(st store.SessionStore, bridge *language.Bridge, extractor *intent.Extractor, registry *agents.Registry, resolver *FollowupResolver, cfg Config, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.New()
	}
	return &Orchestrator{
		store:     st,
		bridge:    bridge,
		extractor: extractor,
		registry:  registry,
		resolver:  resolver,
		cfg:       cfg.withDefaults(),
		log:       log,
		turns:     store.NewKeyedMutex(),
	}
}

// ProcessTurn handles one inbound message end to end. Only storage faults
// and unknown session ids surface as errors; every fault in translation or
// capability calls degrades the response instead.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()

	// A session mid-turn finishes its writes before the next message for
	// the same id starts, and the session is read under the lock so a queued
	// turn sees the state the previous turn left behind.
	var sess *store.Session
	var err error
	if req.SessionID == "" {
		sess, err = o.store.CreateSession(ctx, nil)
		if err != nil {
			return nil, err
		}
		o.turns.Lock(sess.ID)
		defer o.turns.Unlock(sess.ID)
	} else {
		o.turns.Lock(req.SessionID)
		defer o.turns.Unlock(req.SessionID)
		sess, err = o.store.GetSession(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
	}

	o.log.WithFields(logrus.Fields{
		"session_id":  sess.ID,
		"is_followup": req.IsFollowup,
	}).Info("processing turn")

	if _, err := o.store.AppendMessage(ctx, sess.ID, "user", req.Message, map[string]interface{}{
		"is_followup": req.IsFollowup,
	}); err != nil {
		return nil, err
	}

	var warnings []string
	det := o.bridge.Detect(ctx, req.Message)
	if det.LowConfidence {
		warnings = append(warnings, WarnLowConfidenceDetection)
	}
	if err := o.store.SetSessionLanguage(ctx, sess.ID, det.Language); err != nil {
		return nil, err
	}

	pivot, degraded := o.bridge.ToPivot(ctx, req.Message, det.Language)
	if degraded {
		warnings = append(warnings, WarnTranslationDegraded)
	}

	var out *turnOutcome
	if req.IsFollowup {
		out, err = o.handleFollowup(ctx, sess, pivot)
	} else {
		out, err = o.handleNewQuery(ctx, sess, pivot)
	}
	if err != nil {
		return nil, err
	}

	text, degraded := o.bridge.FromPivot(ctx, out.response, det.Language)
	if degraded {
		warnings = append(warnings, WarnTranslationDegraded)
	}

	// Slow provider calls may consume the whole turn deadline; the record of
	// what already happened still has to land.
	if _, err := o.store.AppendMessage(context.WithoutCancel(ctx), sess.ID, "assistant", text, map[string]interface{}{
		"detected_language": det.Language,
		"is_followup":       req.IsFollowup,
		"is_complete":       out.isComplete,
		"agents_called":     out.agentsCalled,
	}); err != nil {
		return nil, err
	}

	status := StatusSuccess
	if out.degraded || len(warnings) > 0 {
		status = StatusDegraded
	}

	return &TurnResponse{
		SessionID:        sess.ID,
		Response:         text,
		DetectedLanguage: det.Language,
		IsFollowup:       req.IsFollowup,
		IsBooking:        out.isBooking,
		IsComplete:       out.isComplete,
		AgentsCalled:     out.agentsCalled,
		Status:           status,
		Warnings:         warnings,
	}, nil
}

// handleNewQuery runs the slot-filling state machine for a non-follow-up
// message: merge extracted entities, check the per-service checklist, and
// either ask for the first missing slot or dispatch.
func (o *Orchestrator) handleNewQuery(ctx context.Context, sess *store.Session, pivot string) (*turnOutcome, error) {
	var prior intent.Slots
	if sess.State == store.StateCollecting {
		// The user may be answering a clarification question; hand the
		// pending slots to the extractor as context.
		prior = sess.Entities
	}

	ex, err := o.extractor.Extract(ctx, pivot, prior)
	if err != nil {
		o.log.WithError(err).Warn("extraction failed, asking user to rephrase")
		return &turnOutcome{
			response:   "Sorry, I had trouble understanding that. Could you rephrase your travel request?",
			isComplete: false,
			degraded:   true,
		}, nil
	}

	if !ex.IsTravelRelated && len(ex.ServiceTypes) == 0 && len(sess.Entities.ServiceTypes) == 0 {
		return &turnOutcome{
			response:   "I can help with flights, hotels, trains, buses, and local attractions. What trip are you planning?",
			isComplete: false,
		}, nil
	}

	if len(ex.ServiceTypes) == 0 && len(ex.Unsupported) > 0 && len(sess.Entities.ServiceTypes) == 0 {
		return &turnOutcome{
			response:   fmt.Sprintf("I can't help with %s yet. I can search flights, hotels, trains, buses, and attractions.", ex.Unsupported[0]),
			isComplete: false,
		}, nil
	}

	// A new intent with a different service set retains compatible slots
	// and drops the rest before merging.
	if len(ex.ServiceTypes) > 0 && len(sess.Entities.ServiceTypes) > 0 &&
		!sameServices(sess.Entities.ServiceTypes, ex.ServiceTypes) {
		retained := sess.Entities.RetainFor(ex.ServiceTypes)
		if err := o.store.ReplaceEntitySlots(ctx, sess.ID, retained); err != nil {
			return nil, err
		}
		if err := o.store.SetSessionState(ctx, sess.ID, store.StateCollecting); err != nil {
			return nil, err
		}
	}

	merged, err := o.store.UpdateEntitySlots(ctx, sess.ID, ex.Slots)
	if err != nil {
		return nil, err
	}

	// Travel-related but no service named yet: nothing to dispatch, so keep
	// collecting and ask which capability the user wants.
	if len(merged.ServiceTypes) == 0 {
		if err := o.store.SetSessionState(ctx, sess.ID, store.StateCollecting); err != nil {
			return nil, err
		}
		return &turnOutcome{
			response:   "What would you like me to find for that trip: flights, hotels, trains, buses, or attractions?",
			isComplete: false,
		}, nil
	}

	if missing := merged.MissingAny(); len(missing) > 0 {
		if err := o.store.SetSessionState(ctx, sess.ID, store.StateCollecting); err != nil {
			return nil, err
		}
		// One targeted question at a time, checklist order.
		return &turnOutcome{
			response:   clarificationFor(missing[0], merged),
			isComplete: false,
		}, nil
	}

	if err := o.store.SetSessionState(ctx, sess.ID, store.StateReady); err != nil {
		return nil, err
	}
	if err := o.store.SetSessionState(ctx, sess.ID, store.StateDispatched); err != nil {
		return nil, err
	}

	results, agentsCalled, err := o.dispatch(ctx, sess.ID, merged)
	if err != nil {
		return nil, err
	}

	// The capability calls may have run out the turn deadline; synthesis
	// and its bookkeeping proceed with whatever completed.
	wctx := context.WithoutCancel(ctx)
	text := Synthesize(results)
	if _, err := o.store.AppendAgentOutput(wctx, sess.ID, "response_synthesizer", "task_synthesize",
		store.OutputSynthesizedResponse, map[string]string{"response": text}); err != nil {
		return nil, err
	}
	if err := o.store.SetSessionState(wctx, sess.ID, store.StateAnswered); err != nil {
		return nil, err
	}

	degraded := false
	for _, r := range results {
		if r.Degraded {
			degraded = true
			break
		}
	}
	return &turnOutcome{
		response:     text,
		isComplete:   true,
		degraded:     degraded,
		agentsCalled: agentsCalled,
	}, nil
}

// SessionSnapshot returns the full inspection view for a session.
func (o *Orchestrator) SessionSnapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	history, err := o.store.ListMessages(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	outputs, err := o.store.ListAgentOutputs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	stats, err := o.store.SessionStats(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var searchResults []SearchResultEntry
	for _, out := range outputs {
		if out.Kind != store.OutputSearchResults {
			continue
		}
		var res agents.SearchResult
		if err := json.Unmarshal(out.Payload, &res); err != nil {
			o.log.WithError(err).WithField("seq", out.Seq).Warn("skipping corrupt search result payload")
			continue
		}
		searchResults = append(searchResults, SearchResultEntry{
			Service:   res.Service,
			Offers:    res.Offers,
			Timestamp: out.Timestamp,
		})
	}

	return &Snapshot{
		SessionID:           sess.ID,
		Language:            sess.Language,
		State:               sess.State,
		Entities:            sess.Entities,
		ConversationHistory: history,
		SearchResults:       searchResults,
		AgentOutputs:        outputs,
		Stats:               stats,
	}, nil
}

// DeleteSession removes a session and all its children. Idempotent.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	return o.store.DeleteSession(ctx, sessionID)
}

// HealthCheck reports storage and capability readiness.
func (o *Orchestrator) HealthCheck(ctx context.Context) *Health {
	if err := o.store.Ping(ctx); err != nil {
		o.log.WithError(err).Error("session store unreachable")
		return &Health{Status: "unhealthy"}
	}
	return &Health{
		Status:                "healthy",
		CapabilitiesReachable: o.registry != nil,
		Agents:                o.registry.Names(),
	}
}

func sameServices(a, b []intent.ServiceType) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[intent.ServiceType]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}

func clarificationFor(slot string, slots intent.Slots) string {
	switch slot {
	case "origin":
		return "Where will you be traveling from?"
	case "destination":
		return "Where would you like to go?"
	case "date":
		if slots.HasService(intent.ServiceHotel) && len(slots.ServiceTypes) == 1 {
			return "What is your check-in date?"
		}
		return "What date are you planning to travel?"
	case "travelers":
		return "How many travelers will there be?"
	}
	return fmt.Sprintf("Could you tell me the %s for your trip?", slot)
}
