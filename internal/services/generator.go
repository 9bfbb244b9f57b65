package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"cryptopal-backend/internal/assets"
	"cryptopal-backend/internal/models"
)

const (
	MissingKeyMessage = "🔑 **API Key Required**\n\nPlease add your Gemini API key to the `.env` file.\n\nGet a free key: https://aistudio.google.com/app/apikey"
	NoModelsMessage   = "❌ No Gemini models available. Please check your API key."

	defaultAITimeout = 30 * time.Second
)

// Generator turns a query plus recent history into assistant text. It makes
// one attempt against the AI capability per call and substitutes the
// fallback responder on any failure.
type Generator struct {
	ai        AICapability
	dataset   *assets.Dataset
	fallback  *Fallback
	preferred []string
	params    GenerationParams
	timeout   time.Duration
	rateChan  chan struct{} // Token bucket
	now       func() time.Time
}

// NewGenerator builds a generator. A nil ai means no credential is configured.
func NewGenerator(ai AICapability, dataset *assets.Dataset, concurrentReqs int, timeout time.Duration) *Generator {
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	if timeout <= 0 {
		timeout = defaultAITimeout
	}

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &Generator{
		ai:        ai,
		dataset:   dataset,
		fallback:  NewFallback(dataset),
		preferred: PreferredModels,
		params:    DefaultGenerationParams,
		timeout:   timeout,
		rateChan:  rateChan,
		now:       time.Now,
	}
}

func (g *Generator) Configured() bool {
	return g.ai != nil
}

// Generate never fails: AI errors are collapsed into instructional or
// fallback text here and nowhere else.
func (g *Generator) Generate(ctx context.Context, query string, history []models.Turn) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("response generation panicked, using fallback")
			reply = g.fallback.Respond(query)
		}
	}()

	text, err := g.invoke(ctx, query, history)
	if err == nil {
		return text
	}

	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		switch capErr.Kind {
		case FailureConfigurationMissing:
			return MissingKeyMessage
		case FailureNoModels:
			return NoModelsMessage
		}
	}

	log.Warn().Err(err).Msg("AI capability failed, using fallback response")
	return g.fallback.Respond(query)
}

type invokeResult struct {
	text string
	err  error
}

// invoke runs the AI exchange on its own goroutine so the timeout holds even
// if the capability ignores its context.
func (g *Generator) invoke(ctx context.Context, query string, history []models.Turn) (string, error) {
	if g.ai == nil {
		return "", &CapabilityError{Kind: FailureConfigurationMissing}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.acquireRate(ctx); err != nil {
		return "", &CapabilityError{Kind: FailureUnavailable, Err: err}
	}

	done := make(chan invokeResult, 1)
	go func() {
		// The slot is held until the exchange returns, even past a timeout.
		defer g.releaseRate()
		defer func() {
			if r := recover(); r != nil {
				done <- invokeResult{err: &CapabilityError{Kind: FailureMalformed, Err: fmt.Errorf("panic: %v", r)}}
			}
		}()
		text, err := g.exchange(ctx, query, history)
		done <- invokeResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", &CapabilityError{Kind: FailureUnavailable, Err: ctx.Err()}
	}
}

func (g *Generator) exchange(ctx context.Context, query string, history []models.Turn) (string, error) {
	available, err := g.ai.ListModels(ctx)
	if err != nil {
		return "", &CapabilityError{Kind: FailureUnavailable, Err: err}
	}
	if len(available) == 0 {
		return "", &CapabilityError{Kind: FailureNoModels}
	}

	model := SelectModel(available, g.preferred)
	log.Debug().Str("model", model).Int("available", len(available)).Msg("selected Gemini model")

	prompt := BuildPrompt(g.dataset, history, query, g.now())
	text, err := g.ai.Generate(ctx, model, prompt, g.params)
	if err != nil {
		if errors.Is(err, ErrMalformedResponse) {
			return "", &CapabilityError{Kind: FailureMalformed, Err: err}
		}
		return "", &CapabilityError{Kind: FailureUnavailable, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &CapabilityError{Kind: FailureMalformed, Err: ErrMalformedResponse}
	}
	return text, nil
}

// Models lists text-generation models, empty when no credential is set.
func (g *Generator) Models(ctx context.Context) ([]string, error) {
	if g.ai == nil {
		return []string{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	names, err := g.ai.ListModels(ctx)
	if err != nil {
		return []string{}, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Available reports whether a credential is set and at least one model is listed.
func (g *Generator) Available(ctx context.Context) bool {
	if g.ai == nil {
		return false
	}
	names, err := g.Models(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Gemini model listing failed")
		return false
	}
	return len(names) > 0
}

// acquireRate blocks until a rate slot is available
func (g *Generator) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for Gemini rate slot: %w", ctx.Err())
	}
}

func (g *Generator) releaseRate() {
	g.rateChan <- struct{}{}
}
