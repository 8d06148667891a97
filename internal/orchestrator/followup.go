package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/voyago/voyago-backend/internal/agents"
	"github.com/voyago/voyago-backend/internal/intent"
	"github.com/voyago/voyago-backend/internal/llm"
	"github.com/voyago/voyago-backend/internal/store"
)

type followupIntent int

const (
	informationalIntent followupIntent = iota
	bookingIntent
	ambiguousIntent
)

// FollowupResolver answers questions about already-returned results and
// detects booking intent. Informational answers come purely from the cached
// result set; no capability agent is ever invoked here.
type FollowupResolver struct {
	provider llm.Provider
	log      *logrus.Logger
}

// NewFollowupResolver creates a new follow-up resolver
func NewFollowupResolver(provider llm.Provider, log *logrus.Logger) *FollowupResolver {
	if log == nil {
		log = logrus.New()
	}
	return &FollowupResolver{provider: provider, log: log}
}

var (
	bookingVerbRe = regexp.MustCompile(`(?i)\b(book|reserve|booking|reservation)\b`)
	emailRe       = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	phoneRe       = regexp.MustCompile(`\+?\d[\d\s-]{6,}\d`)
	nameRe        = regexp.MustCompile(`(?:name is|I am|I'm|for)\s+([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)?)`)
	optionRe      = regexp.MustCompile(`(?i)\b(?:option|number|no\.?)\s*([1-9])\b`)
	cheapestRe    = regexp.MustCompile(`(?i)\b(cheapest|lowest|least expensive|most affordable)\b`)
	priceAskRe    = regexp.MustCompile(`(?i)\b(how much|price|cost|fare)\b`)
)

var ordinalWords = map[string]int{
	"first": 1, "1st": 1,
	"second": 2, "2nd": 2,
	"third": 3, "3rd": 3,
	"fourth": 4, "4th": 4,
	"fifth": 5, "5th": 5,
}

// bookingDetails is what a follow-up utterance contributes toward a booking.
type bookingDetails struct {
	selection int
	name      string
	contact   string
	email     string
}

func (d bookingDetails) hasTravelerDetail() bool {
	return d.name != "" || d.contact != "" || d.email != ""
}

// classify buckets a follow-up utterance. Booking triggers on an explicit
// booking verb, or on a selection reference arriving together with
// traveler-identifying details.
func (r *FollowupResolver) classify(utterance string, details bookingDetails) followupIntent {
	if bookingVerbRe.MatchString(utterance) {
		return bookingIntent
	}
	if details.selection > 0 && details.hasTravelerDetail() {
		return bookingIntent
	}
	if details.hasTravelerDetail() && !priceAskRe.MatchString(utterance) {
		// Bare traveler details usually continue a pending booking.
		return ambiguousIntent
	}
	return informationalIntent
}

// extractBookingDetails pulls the selection reference and traveler details
// out of one utterance. Deterministic: no model call.
func extractBookingDetails(utterance string) bookingDetails {
	d := bookingDetails{selection: ordinalRef(utterance)}

	if m := emailRe.FindString(utterance); m != "" {
		d.email = m
	}
	// Strip the email before phone matching so its digits don't false-match.
	stripped := emailRe.ReplaceAllString(utterance, "")
	if m := phoneRe.FindString(stripped); m != "" {
		d.contact = strings.TrimSpace(m)
	}
	if m := nameRe.FindStringSubmatch(stripped); m != nil {
		d.name = m[1]
	}
	return d
}

// ordinalRef resolves "second one", "option 3", "1st" into a 1-based index.
func ordinalRef(utterance string) int {
	lower := strings.ToLower(utterance)
	for word, idx := range ordinalWords {
		if strings.Contains(lower, word) {
			return idx
		}
	}
	if m := optionRe.FindStringSubmatch(utterance); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// AnswerInformational answers a question from the cached result set only.
// Recent history gives the phrasing model conversational context; it is
// never searched. The second return reports degraded mode (the phrasing
// model failed and a plain listing was returned instead).
func (r *FollowupResolver) AnswerInformational(ctx context.Context, utterance string, cached *agents.SearchResult, history []store.Message) (string, bool) {
	if cheapestRe.MatchString(utterance) {
		if offer, idx := cheapestOffer(cached.Offers); offer != nil {
			return fmt.Sprintf("The cheapest option is %d. %s at %s.", idx+1, offer.Name, offer.Price), false
		}
	}

	if sel := ordinalRef(utterance); sel >= 1 && sel <= len(cached.Offers) {
		return describeOffer(sel, cached.Offers[sel-1]), false
	}

	if priceAskRe.MatchString(utterance) {
		return listPrices(cached.Offers), false
	}

	// Free-form question: let the model phrase an answer over the cached
	// results. Still no capability call.
	answer, err := r.phrase(ctx, utterance, cached, history)
	if err != nil {
		r.log.WithError(err).Warn("follow-up phrasing failed, listing cached options")
		return listPrices(cached.Offers), true
	}
	return answer, false
}

func (r *FollowupResolver) phrase(ctx context.Context, utterance string, cached *agents.SearchResult, history []store.Message) (string, error) {
	cachedJSON, err := json.Marshal(cached)
	if err != nil {
		return "", err
	}

	messages := []llm.Message{
		{Role: "system", Content: "Answer the user's question using only the cached search results JSON below. Reference options by their 1-based position. Do not invent options.\n" + string(cachedJSON)},
	}
	for _, m := range history {
		if m.Role == "user" || m.Role == "assistant" {
			messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	messages = append(messages, llm.Message{Role: "user", Content: utterance})

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("empty follow-up answer")
	}
	return answer, nil
}

// cheapestOffer returns the lowest-priced offer and its index, skipping
// offers whose price cannot be parsed.
func cheapestOffer(offers []agents.Offer) (*agents.Offer, int) {
	best := -1
	bestPrice := 0
	for i := range offers {
		price, ok := parsePrice(offers[i].Price)
		if !ok {
			continue
		}
		if best < 0 || price < bestPrice {
			best = i
			bestPrice = price
		}
	}
	if best < 0 {
		return nil, 0
	}
	return &offers[best], best
}

var digitsRe = regexp.MustCompile(`\d`)

func parsePrice(s string) (int, bool) {
	digits := strings.Join(digitsRe.FindAllString(s, -1), "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func describeOffer(position int, offer agents.Offer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Option %d is %s", position, offer.Name)
	if offer.Price != "" {
		fmt.Fprintf(&b, " at %s", offer.Price)
	}
	if offer.Departure != "" && offer.Arrival != "" {
		fmt.Fprintf(&b, ", departing %s and arriving %s", offer.Departure, offer.Arrival)
	}
	if offer.Duration != "" {
		fmt.Fprintf(&b, " (%s)", offer.Duration)
	}
	if offer.Description != "" {
		fmt.Fprintf(&b, ". %s", offer.Description)
	}
	b.WriteString(".")
	return b.String()
}

func listPrices(offers []agents.Offer) string {
	var b strings.Builder
	b.WriteString("Here are the options again:\n")
	for i, offer := range offers {
		fmt.Fprintf(&b, "%d. %s", i+1, offer.Name)
		if offer.Price != "" {
			fmt.Fprintf(&b, " — %s", offer.Price)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// handleFollowup answers from session memory: informational questions from
// the cached results, booking requests via the booking agent. No search
// capability is invoked on this path.
func (o *Orchestrator) handleFollowup(ctx context.Context, sess *store.Session, pivot string) (*turnOutcome, error) {
	if err := o.store.SetSessionState(ctx, sess.ID, store.StateFollowup); err != nil {
		return nil, err
	}

	cached, err := o.latestSearchResult(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	details := extractBookingDetails(pivot)
	class := o.resolver.classify(pivot, details)

	// Mid-booking, bare traveler details keep filling the booking slots.
	if class == ambiguousIntent && sess.State == store.StateBooking {
		class = bookingIntent
	}

	if class == bookingIntent {
		return o.handleBooking(ctx, sess, cached, details)
	}

	if cached == nil || len(cached.Offers) == 0 {
		return &turnOutcome{
			response:     "I don't have any earlier results to refer to. Tell me what you're looking for and I'll search.",
			isComplete:   false,
			agentsCalled: []string{"followup_handler"},
		}, nil
	}

	history, err := o.store.ListMessages(ctx, sess.ID, o.cfg.MaxContextMessages)
	if err != nil {
		return nil, err
	}

	answer, degraded := o.resolver.AnswerInformational(ctx, pivot, cached, history)

	// The phrasing call may have run out the turn deadline; the answer is
	// already in hand and still gets recorded.
	wctx := context.WithoutCancel(ctx)
	if _, err := o.store.AppendAgentOutput(wctx, sess.ID, "followup_handler", "task_followup",
		store.OutputSynthesizedResponse, map[string]string{"response": answer}); err != nil {
		return nil, err
	}
	if err := o.store.SetSessionState(wctx, sess.ID, store.StateAnswered); err != nil {
		return nil, err
	}

	return &turnOutcome{
		response:     answer,
		isComplete:   true,
		degraded:     degraded,
		agentsCalled: []string{"followup_handler"},
	}, nil
}

func (o *Orchestrator) handleBooking(ctx context.Context, sess *store.Session, cached *agents.SearchResult, details bookingDetails) (*turnOutcome, error) {
	if err := o.store.SetSessionState(ctx, sess.ID, store.StateBooking); err != nil {
		return nil, err
	}

	merged, err := o.store.UpdateEntitySlots(ctx, sess.ID, intent.Slots{
		SelectedOption: details.selection,
		TravelerName:   details.name,
		Contact:        details.contact,
		Email:          details.email,
	})
	if err != nil {
		return nil, err
	}

	if cached == nil || len(cached.Offers) == 0 {
		return &turnOutcome{
			response:   "There's nothing to book yet — run a search first and pick one of the options.",
			isComplete: false,
		}, nil
	}
	if merged.SelectedOption == 0 {
		return &turnOutcome{
			response:   "Which option would you like to book? You can say, for example, \"the second one\".",
			isComplete: false,
		}, nil
	}
	if merged.SelectedOption > len(cached.Offers) {
		return &turnOutcome{
			response:   fmt.Sprintf("There are only %d options — which one would you like to book?", len(cached.Offers)),
			isComplete: false,
		}, nil
	}

	// No silent booking: every missing traveler detail is asked for
	// explicitly before anything is confirmed.
	if missing := missingTravelerDetails(merged); len(missing) > 0 {
		return &turnOutcome{
			response: fmt.Sprintf("To book option %d I still need your %s.",
				merged.SelectedOption, strings.Join(missing, " and ")),
			isComplete: false,
		}, nil
	}

	booking := o.registry.Booking()
	conf, err := booking.Book(ctx, cached.Service, cached.Offers[merged.SelectedOption-1], agents.TravelerInfo{
		Name:    merged.TravelerName,
		Contact: merged.Contact,
		Email:   merged.Email,
	})
	if err != nil {
		o.log.WithError(err).Warn("booking degraded")
		return &turnOutcome{
			response:   "I couldn't complete the booking just now — please try again.",
			isComplete: false,
			degraded:   true,
		}, nil
	}

	if _, err := o.store.AppendAgentOutput(ctx, sess.ID, booking.Name(), "task_booking",
		store.OutputBookingConfirmation, conf); err != nil {
		return nil, err
	}
	if err := o.store.SetSessionState(ctx, sess.ID, store.StateAnswered); err != nil {
		return nil, err
	}

	return &turnOutcome{
		response:     RenderBookingConfirmation(conf),
		isComplete:   true,
		isBooking:    true,
		agentsCalled: []string{booking.Name()},
	}, nil
}

func missingTravelerDetails(slots intent.Slots) []string {
	var missing []string
	if slots.TravelerName == "" {
		missing = append(missing, "name")
	}
	if slots.Contact == "" {
		missing = append(missing, "contact number")
	}
	if slots.Email == "" {
		missing = append(missing, "email")
	}
	return missing
}

// latestSearchResult loads the most recent cached search-results output,
// or nil when the session has none.
func (o *Orchestrator) latestSearchResult(ctx context.Context, sessionID string) (*agents.SearchResult, error) {
	outputs, err := o.store.ListRecentAgentOutputs(ctx, sessionID,
		[]store.OutputKind{store.OutputSearchResults}, 5)
	if err != nil {
		return nil, err
	}

	var fallback *agents.SearchResult
	for i := range outputs {
		var res agents.SearchResult
		if err := json.Unmarshal(outputs[i].Payload, &res); err != nil {
			o.log.WithError(err).WithField("seq", outputs[i].Seq).Warn("skipping corrupt search result payload")
			continue
		}
		if len(res.Offers) > 0 {
			return &res, nil
		}
		if fallback == nil {
			fallback = &res
		}
	}
	return fallback, nil
}
