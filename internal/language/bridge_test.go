package language

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voyago/voyago-backend/internal/llm"
)

func TestDetect(t *testing.T) {
	provider := llm.NewStubProvider(`{"language": "HI", "language_name": "Hindi", "confidence": 0.97}`)
	b := NewBridge(provider, 0.5, nil)

	det := b.Detect(context.Background(), "मुझे दिल्ली के लिए फ्लाइट चाहिए")
	assert.Equal(t, "hi", det.Language)
	assert.Equal(t, "Hindi", det.LanguageName)
	assert.False(t, det.LowConfidence)
}

func TestDetectLowConfidenceDefaultsToEnglish(t *testing.T) {
	provider := llm.NewStubProvider(`{"language": "pt", "language_name": "Portuguese", "confidence": 0.3}`)
	b := NewBridge(provider, 0.5, nil)

	det := b.Detect(context.Background(), "ok")
	assert.Equal(t, PivotLanguage, det.Language)
	assert.True(t, det.LowConfidence)
}

func TestDetectProviderFailureDefaultsToEnglish(t *testing.T) {
	provider := &llm.StubProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("provider down")
		},
	}
	b := NewBridge(provider, 0.5, nil)

	det := b.Detect(context.Background(), "hello")
	assert.Equal(t, PivotLanguage, det.Language)
	assert.True(t, det.LowConfidence)
}

func TestTranslateSkipsSameLanguage(t *testing.T) {
	provider := &llm.StubProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			t.Fatal("no provider call expected for en->en")
			return nil, nil
		},
	}
	b := NewBridge(provider, 0.5, nil)

	out, degraded := b.ToPivot(context.Background(), "find me a flight", PivotLanguage)
	assert.Equal(t, "find me a flight", out)
	assert.False(t, degraded)
}

func TestTranslateRoundTrip(t *testing.T) {
	// A lossless echo translator: the pivot round trip must preserve content.
	provider := &llm.StubProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: req.Messages[len(req.Messages)-1].Content}, nil
		},
	}
	b := NewBridge(provider, 0.5, nil)

	original := "Option 2: IndiGo 6E-345 at ₹4,500"
	pivot, degraded := b.ToPivot(context.Background(), original, "hi")
	assert.False(t, degraded)
	back, degraded := b.FromPivot(context.Background(), pivot, "hi")
	assert.False(t, degraded)
	assert.Equal(t, original, back)
}

func TestTranslateDegradesOnFailure(t *testing.T) {
	provider := &llm.StubProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if strings.Contains(req.Messages[0].Content, "Translate") {
				return nil, errors.New("provider down")
			}
			return &llm.CompletionResponse{Content: "ok"}, nil
		},
	}
	b := NewBridge(provider, 0.5, nil)

	out, degraded := b.FromPivot(context.Background(), "Here are your flights.", "hi")
	assert.Equal(t, "Here are your flights.", out, "degraded translation returns the original text")
	assert.True(t, degraded)
}
