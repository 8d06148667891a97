// Package language wraps the translation capability behind the narrow
// detect/to-pivot/from-pivot contract the orchestration engine relies on.
// All routing and extraction logic downstream operates on the English pivot
// text; provider failures degrade to the original text, never fail a turn.
package language

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/voyago/voyago-backend/internal/llm"
)

// PivotLanguage is the canonical internal language code.
const PivotLanguage = "en"

// Detection is the outcome of language detection on one utterance.
type Detection struct {
	Language      string  `json:"language"`
	LanguageName  string  `json:"language_name"`
	Confidence    float64 `json:"confidence"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// Bridge detects languages and translates to/from the pivot representation.
type Bridge struct {
	provider  llm.Provider
	threshold float64
	log       *logrus.Logger
}

// NewBridge creates a new language bridge. Detections below threshold fall
// back to English and are flagged low-confidence.
func NewBridge(provider llm.Provider, threshold float64, log *logrus.Logger) *Bridge {
	if log == nil {
		log = logrus.New()
	}
	if threshold <= 0 {
		threshold = 0.5
	}
	return &Bridge{provider: provider, threshold: threshold, log: log}
}

const detectPrompt = `Identify the language of the user text. Respond with only a JSON object:
{"language": "<iso 639-1 code>", "language_name": "<English name>", "confidence": <0.0-1.0>}`

// Detect identifies the language of text. Best-effort: on provider failure
// or low confidence it defaults to English and flags the detection.
func (b *Bridge) Detect(ctx context.Context, text string) Detection {
	resp, err := b.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: detectPrompt},
			{Role: "user", Content: text},
		},
		JSONMode: true,
	})
	if err != nil {
		b.log.WithError(err).Warn("language detection failed, defaulting to English")
		return Detection{Language: PivotLanguage, LanguageName: "English", LowConfidence: true}
	}

	var det Detection
	raw := llm.ExtractJSON(resp.Content)
	if raw == nil || json.Unmarshal(raw, &det) != nil || det.Language == "" {
		b.log.Warn("unparseable language detection, defaulting to English")
		return Detection{Language: PivotLanguage, LanguageName: "English", LowConfidence: true}
	}

	det.Language = strings.ToLower(det.Language)
	if det.Confidence < b.threshold {
		b.log.WithFields(logrus.Fields{
			"language":   det.Language,
			"confidence": det.Confidence,
		}).Warn("low-confidence detection, defaulting to English")
		return Detection{Language: PivotLanguage, LanguageName: "English", Confidence: det.Confidence, LowConfidence: true}
	}
	return det
}

// ToPivot translates text from sourceLang into the pivot language. The
// second return reports degraded mode: on provider failure the original
// text comes back unmodified.
func (b *Bridge) ToPivot(ctx context.Context, text, sourceLang string) (string, bool) {
	return b.translate(ctx, text, sourceLang, PivotLanguage)
}

// FromPivot translates pivot text into targetLang, degrading like ToPivot.
func (b *Bridge) FromPivot(ctx context.Context, text, targetLang string) (string, bool) {
	return b.translate(ctx, text, PivotLanguage, targetLang)
}

func (b *Bridge) translate(ctx context.Context, text, from, to string) (string, bool) {
	if from == to || text == "" {
		return text, false
	}

	prompt := fmt.Sprintf(
		"Translate the user text from %s to %s. Preserve prices, currency symbols, times, option numbering, and proper names exactly. Respond with only the translation.",
		from, to)
	resp, err := b.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		b.log.WithError(err).WithFields(logrus.Fields{"from": from, "to": to}).
			Warn("translation degraded, returning original text")
		return text, true
	}
	translated := strings.TrimSpace(resp.Content)
	if translated == "" {
		b.log.WithFields(logrus.Fields{"from": from, "to": to}).
			Warn("empty translation, returning original text")
		return text, true
	}
	return translated, false
}
