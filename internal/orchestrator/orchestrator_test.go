package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/voyago-backend/internal/agents"
	"github.com/voyago/voyago-backend/internal/intent"
	"github.com/voyago/voyago-backend/internal/language"
	"github.com/voyago/voyago-backend/internal/llm"
	"github.com/voyago/voyago-backend/internal/search"
	"github.com/voyago/voyago-backend/internal/store"
	"github.com/voyago/voyago-backend/internal/store/sqlite"
)

const englishDetection = `{"language": "en", "language_name": "English", "confidence": 0.99}`

const flightOffersJSON = `{"offers": [
	{"name": "Air India AI-852", "price": "₹5,000", "departure": "09:40", "arrival": "11:55", "duration": "2h 15m"},
	{"name": "IndiGo 6E-345", "price": "₹3,200", "departure": "06:10", "arrival": "08:25", "duration": "2h 15m"},
	{"name": "Vistara UK-993", "price": "₹4,100", "departure": "14:20", "arrival": "16:40", "duration": "2h 20m"}
]}`

// routingProvider dispatches stub completions by the system prompt: language
// detection always answers English, extraction pops the scripted queue, and
// offer structuring returns the canned flight offers.
func routingProvider(extractions ...string) *llm.StubProvider {
	var mu sync.Mutex
	idx := 0
	return &llm.StubProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			sys := req.Messages[0].Content
			switch {
			case strings.HasPrefix(sys, "Identify the language"):
				return &llm.CompletionResponse{Content: englishDetection}, nil
			case strings.HasPrefix(sys, "You extract travel intent"):
				mu.Lock()
				defer mu.Unlock()
				if idx >= len(extractions) {
					return nil, errors.New("no scripted extraction left")
				}
				out := extractions[idx]
				idx++
				return &llm.CompletionResponse{Content: out}, nil
			case strings.HasPrefix(sys, "You structure"):
				return &llm.CompletionResponse{Content: flightOffersJSON}, nil
			}
			return nil, errors.New("unexpected completion request")
		},
	}
}

func newEngine(t *testing.T, provider llm.Provider, searchClient search.Client) (*Orchestrator, store.SessionStore) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	st := sqlite.New(db, nil)
	t.Cleanup(func() { st.Close() })

	o := New(
		st,
		language.NewBridge(provider, 0.5, nil),
		intent.NewExtractor(provider, nil),
		agents.NewRegistry(searchClient, provider, 0, nil),
		NewFollowupResolver(provider, nil),
		Config{},
		nil,
	)
	return o, st
}

func searchHits() []search.Result {
	return []search.Result{
		{Title: "Pune Delhi flights", Summary: "fares", Content: "several daily departures"},
	}
}

func TestClarificationLoopAsksOneSlotAtATime(t *testing.T) {
	provider := routingProvider(
		`{"is_travel_related": true, "service_types": ["flight"], "entities": {"origin": "Pune", "destination": "Delhi"}}`,
		`{"is_travel_related": true, "service_types": ["flight"], "entities": {"date": "2025-12-10", "travelers": "2"}}`,
	)
	searchClient := &search.StubClient{Results: searchHits()}
	o, st := newEngine(t, provider, searchClient)
	ctx := context.Background()

	// Turn 1: origin and destination known, date missing first.
	resp, err := o.ProcessTurn(ctx, TurnRequest{Message: "I need a flight from Pune to Delhi"})
	require.NoError(t, err)
	assert.Equal(t, "What date are you planning to travel?", resp.Response)
	assert.False(t, resp.IsComplete)
	assert.Empty(t, resp.AgentsCalled)
	assert.Zero(t, searchClient.Calls(), "no capability call while slots are missing")

	sess, err := st.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, store.StateCollecting, sess.State)
	assert.Equal(t, "Pune", sess.Entities.Origin)

	// Turn 2: the answer completes the checklist and dispatch happens.
	resp2, err := o.ProcessTurn(ctx, TurnRequest{SessionID: resp.SessionID, Message: "December 10th, two of us"})
	require.NoError(t, err)
	assert.True(t, resp2.IsComplete)
	assert.Equal(t, []string{"flight_agent"}, resp2.AgentsCalled)
	assert.Contains(t, resp2.Response, "Flight options")
	assert.Contains(t, resp2.Response, "IndiGo 6E-345")
	assert.Equal(t, 1, searchClient.Calls())

	sess, err = st.GetSession(ctx, resp2.SessionID)
	require.NoError(t, err)
	assert.Equal(t, store.StateAnswered, sess.State)
	assert.Equal(t, "2025-12-10", sess.Entities.Date)
}

func TestMultiServiceFanOut(t *testing.T) {
	provider := routingProvider(
		`{"is_travel_related": true, "service_types": ["hotel", "flight"], "entities": {"origin": "Pune", "destination": "Goa", "date": "2025-12-20", "travelers": "2"}}`,
	)
	searchClient := &search.StubClient{Results: searchHits()}
	o, _ := newEngine(t, provider, searchClient)

	resp, err := o.ProcessTurn(context.Background(), TurnRequest{Message: "flights and hotels to Goa on Dec 20 for 2, from Pune"})
	require.NoError(t, err)
	assert.True(t, resp.IsComplete)
	// Sections and agents keep the fixed dispatch order regardless of how
	// the extractor listed the services.
	assert.Equal(t, []string{"flight_agent", "hotel_agent"}, resp.AgentsCalled)
	flightIdx := strings.Index(resp.Response, "Flight options")
	hotelIdx := strings.Index(resp.Response, "Hotel options")
	assert.GreaterOrEqual(t, flightIdx, 0)
	assert.Greater(t, hotelIdx, flightIdx)
	assert.Equal(t, 2, searchClient.Calls())
}

func TestDegradedSearchStillAnswers(t *testing.T) {
	provider := routingProvider(
		`{"is_travel_related": true, "service_types": ["flight"], "entities": {"origin": "Pune", "destination": "Delhi", "date": "2025-12-10", "travelers": "2"}}`,
	)
	searchClient := &search.StubClient{Err: errors.New("connection refused")}
	o, _ := newEngine(t, provider, searchClient)

	resp, err := o.ProcessTurn(context.Background(), TurnRequest{Message: "flight Pune to Delhi Dec 10 for 2"})
	require.NoError(t, err, "a degraded capability never fails the turn")
	assert.True(t, resp.IsComplete)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Contains(t, resp.Response, "no results found right now")
}

func TestNonTravelMessage(t *testing.T) {
	provider := routingProvider(`{"is_travel_related": false, "service_types": [], "entities": {}}`)
	o, _ := newEngine(t, provider, &search.StubClient{})

	resp, err := o.ProcessTurn(context.Background(), TurnRequest{Message: "tell me a joke"})
	require.NoError(t, err)
	assert.False(t, resp.IsComplete)
	assert.Contains(t, resp.Response, "flights, hotels, trains, buses")
}

func TestUnsupportedService(t *testing.T) {
	provider := routingProvider(`{"is_travel_related": true, "service_types": ["weather"], "entities": {"destination": "Goa"}}`)
	o, _ := newEngine(t, provider, &search.StubClient{})

	resp, err := o.ProcessTurn(context.Background(), TurnRequest{Message: "what's the weather in Goa"})
	require.NoError(t, err)
	assert.False(t, resp.IsComplete)
	assert.Contains(t, resp.Response, "can't help with weather")
}

func TestServiceSwitchRetainsCompatibleSlots(t *testing.T) {
	provider := routingProvider(
		`{"is_travel_related": true, "service_types": ["flight"], "entities": {"origin": "Pune", "destination": "Delhi", "date": "2025-12-10", "travelers": "2"}}`,
		`{"is_travel_related": true, "service_types": ["hotel"], "entities": {}}`,
	)
	searchClient := &search.StubClient{Results: searchHits()}
	o, st := newEngine(t, provider, searchClient)
	ctx := context.Background()

	resp, err := o.ProcessTurn(ctx, TurnRequest{Message: "flight Pune to Delhi Dec 10 for 2"})
	require.NoError(t, err)
	require.True(t, resp.IsComplete)

	// Switching to a hotel search keeps destination, date, and travelers, so
	// the checklist is already satisfied and dispatch happens immediately.
	resp2, err := o.ProcessTurn(ctx, TurnRequest{SessionID: resp.SessionID, Message: "now find me a hotel there"})
	require.NoError(t, err)
	assert.True(t, resp2.IsComplete)
	assert.Equal(t, []string{"hotel_agent"}, resp2.AgentsCalled)

	sess, err := st.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Empty(t, sess.Entities.Origin, "origin does not apply to a hotel search")
	assert.Equal(t, "Delhi", sess.Entities.Destination)
	assert.Equal(t, "2025-12-10", sess.Entities.Date)
}

func TestUnknownSessionID(t *testing.T) {
	o, _ := newEngine(t, routingProvider(), &search.StubClient{})

	_, err := o.ProcessTurn(context.Background(), TurnRequest{SessionID: "missing", Message: "hi"})
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestSessionSnapshot(t *testing.T) {
	provider := routingProvider(
		`{"is_travel_related": true, "service_types": ["flight"], "entities": {"origin": "Pune", "destination": "Delhi", "date": "2025-12-10", "travelers": "2"}}`,
	)
	o, _ := newEngine(t, provider, &search.StubClient{Results: searchHits()})
	ctx := context.Background()

	resp, err := o.ProcessTurn(ctx, TurnRequest{Message: "flight Pune to Delhi Dec 10 for 2"})
	require.NoError(t, err)

	snap, err := o.SessionSnapshot(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, snap.SessionID)
	assert.Equal(t, store.StateAnswered, snap.State)
	assert.Equal(t, "Delhi", snap.Entities.Destination)
	assert.Len(t, snap.ConversationHistory, 2, "user message plus assistant answer")
	require.Len(t, snap.SearchResults, 1)
	assert.Equal(t, intent.ServiceFlight, snap.SearchResults[0].Service)
	assert.Len(t, snap.SearchResults[0].Offers, 3)
	assert.Equal(t, 2, snap.Stats.MessageCount)
}

func TestDeleteSessionForgetsEverything(t *testing.T) {
	provider := routingProvider(
		`{"is_travel_related": true, "service_types": ["flight"], "entities": {"origin": "Pune", "destination": "Delhi", "date": "2025-12-10", "travelers": "2"}}`,
	)
	o, _ := newEngine(t, provider, &search.StubClient{Results: searchHits()})
	ctx := context.Background()

	resp, err := o.ProcessTurn(ctx, TurnRequest{Message: "flight Pune to Delhi Dec 10 for 2"})
	require.NoError(t, err)

	found, err := o.DeleteSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.True(t, found)

	_, err = o.SessionSnapshot(ctx, resp.SessionID)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	found, err = o.DeleteSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHealthCheck(t *testing.T) {
	o, _ := newEngine(t, routingProvider(), &search.StubClient{})

	h := o.HealthCheck(context.Background())
	assert.Equal(t, "healthy", h.Status)
	assert.True(t, h.CapabilitiesReachable)
	assert.Contains(t, h.Agents, "flight_agent")
	assert.Contains(t, h.Agents, "booking_agent")
}

func TestConcurrentTurnsOnDifferentSessions(t *testing.T) {
	provider := routingProvider(
		`{"is_travel_related": true, "service_types": ["flight"], "entities": {"origin": "Pune", "destination": "Delhi"}}`,
		`{"is_travel_related": true, "service_types": ["flight"], "entities": {"origin": "Mumbai", "destination": "Jaipur"}}`,
	)
	o, st := newEngine(t, provider, &search.StubClient{})
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := o.ProcessTurn(ctx, TurnRequest{Message: "flight please"})
			assert.NoError(t, err)
			ids[i] = resp.SessionID
		}(i)
	}
	wg.Wait()

	require.NotEqual(t, ids[0], ids[1])
	a, err := st.GetSession(ctx, ids[0])
	require.NoError(t, err)
	b, err := st.GetSession(ctx, ids[1])
	require.NoError(t, err)
	// Each session holds exactly one of the two extractions, never a blend.
	origins := []string{a.Entities.Origin, b.Entities.Origin}
	assert.ElementsMatch(t, []string{"Pune", "Mumbai"}, origins)
}

func TestMultilingualTurnTranslatesBothWays(t *testing.T) {
	provider := &llm.StubProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			sys := req.Messages[0].Content
			switch {
			case strings.HasPrefix(sys, "Identify the language"):
				return &llm.CompletionResponse{Content: `{"language": "hi", "language_name": "Hindi", "confidence": 0.96}`}, nil
			case strings.HasPrefix(sys, "Translate the user text from hi to en"):
				return &llm.CompletionResponse{Content: "I need a flight from Pune to Delhi"}, nil
			case strings.HasPrefix(sys, "Translate the user text from en to hi"):
				return &llm.CompletionResponse{Content: "[hi] " + req.Messages[1].Content}, nil
			case strings.HasPrefix(sys, "You extract travel intent"):
				return &llm.CompletionResponse{Content: `{"is_travel_related": true, "service_types": ["flight"], "entities": {"origin": "Pune", "destination": "Delhi"}}`}, nil
			}
			return nil, errors.New("unexpected completion request")
		},
	}
	o, st := newEngine(t, provider, &search.StubClient{})
	ctx := context.Background()

	resp, err := o.ProcessTurn(ctx, TurnRequest{Message: "मुझे पुणे से दिल्ली की फ्लाइट चाहिए"})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.DetectedLanguage)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "[hi] What date are you planning to travel?", resp.Response,
		"clarification goes back in the user's language")

	sess, err := st.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "hi", sess.Language)
	assert.Equal(t, "Pune", sess.Entities.Origin, "slots are stored in pivot form")
}

func TestTranslationFailureDegradesButAnswers(t *testing.T) {
	provider := &llm.StubProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			sys := req.Messages[0].Content
			switch {
			case strings.HasPrefix(sys, "Identify the language"):
				return &llm.CompletionResponse{Content: `{"language": "hi", "language_name": "Hindi", "confidence": 0.96}`}, nil
			case strings.HasPrefix(sys, "Translate the user text"):
				return nil, errors.New("provider down")
			case strings.HasPrefix(sys, "You extract travel intent"):
				return &llm.CompletionResponse{Content: `{"is_travel_related": true, "service_types": ["flight"], "entities": {"origin": "Pune", "destination": "Delhi"}}`}, nil
			}
			return nil, errors.New("unexpected completion request")
		},
	}
	o, _ := newEngine(t, provider, &search.StubClient{})

	resp, err := o.ProcessTurn(context.Background(), TurnRequest{Message: "मुझे फ्लाइट चाहिए"})
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Contains(t, resp.Warnings, WarnTranslationDegraded)
	assert.NotEmpty(t, resp.Response)
}

func TestTravelIntentWithoutServiceAsksWhichService(t *testing.T) {
	provider := routingProvider(
		`{"is_travel_related": true, "service_types": [], "entities": {"destination": "Goa"}}`,
	)
	searchClient := &search.StubClient{Results: searchHits()}
	o, st := newEngine(t, provider, searchClient)
	ctx := context.Background()

	resp, err := o.ProcessTurn(ctx, TurnRequest{Message: "I'm planning a trip to Goa"})
	require.NoError(t, err)
	assert.False(t, resp.IsComplete)
	assert.Contains(t, resp.Response, "flights, hotels, trains, buses")
	assert.Empty(t, resp.AgentsCalled)
	assert.Zero(t, searchClient.Calls(), "nothing to dispatch until a service is named")

	// The destination is kept so the next message only has to name the
	// service.
	sess, err := st.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, store.StateCollecting, sess.State)
	assert.Equal(t, "Goa", sess.Entities.Destination)
}

// stalledSearchClient holds every search until its context expires.
type stalledSearchClient struct{}

func (stalledSearchClient) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTurnDeadlineStillRecordsOutcome(t *testing.T) {
	provider := routingProvider(
		`{"is_travel_related": true, "service_types": ["flight"], "entities": {"origin": "Pune", "destination": "Delhi", "date": "2025-12-10", "travelers": "2"}}`,
	)
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	st := sqlite.New(db, nil)
	t.Cleanup(func() { st.Close() })

	// The capability call eats the whole turn budget; the turn must still
	// come back degraded rather than fail on its own expired context.
	o := New(
		st,
		language.NewBridge(provider, 0.5, nil),
		intent.NewExtractor(provider, nil),
		agents.NewRegistry(stalledSearchClient{}, provider, 0, nil),
		NewFollowupResolver(provider, nil),
		Config{TurnTimeout: 100 * time.Millisecond},
		nil,
	)
	ctx := context.Background()

	resp, err := o.ProcessTurn(ctx, TurnRequest{Message: "flight Pune to Delhi Dec 10 for 2"})
	require.NoError(t, err)
	assert.True(t, resp.IsComplete)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Contains(t, resp.Response, "no results found right now")
	assert.Equal(t, []string{"flight_agent"}, resp.AgentsCalled)

	// The degraded result and the final state landed despite the deadline.
	outputs, err := st.ListRecentAgentOutputs(ctx, resp.SessionID, []store.OutputKind{store.OutputSearchResults}, 1)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "flight_agent", outputs[0].AgentName)

	sess, err := st.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, store.StateAnswered, sess.State)
}
