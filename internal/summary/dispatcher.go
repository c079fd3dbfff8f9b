package summary

import (
	"context"
	"fmt"
	"time"

	"github.com/momentum-hq/scribe/internal/llm"
	"github.com/momentum-hq/scribe/internal/session"
)

// Artifact is one stored summary of a session's transcript.
type Artifact struct {
	SessionID   string    `json:"session_id"`
	BotID       string    `json:"bot_id"`
	SummaryType string    `json:"summary_type"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArtifactStore persists summary artifacts.
type ArtifactStore interface {
	SaveSummary(a Artifact) error
}

// ClientFactory builds an LLM client for a provider/model pair.
type ClientFactory func(provider, model string) (llm.Client, error)

// Dispatcher assembles a session's finalized transcript and submits it
// to the summarization model under a selected prompt profile. The model
// is a black box behind llm.Client; the session may still be recording
// when a summary is requested.
type Dispatcher struct {
	registry *session.Registry
	store    ArtifactStore
	factory  ClientFactory
	model    string

	sleep func(time.Duration)
}

// NewDispatcher wires a dispatcher. model is a provider/model_name pair
// such as "openai/gpt-4o-mini".
func NewDispatcher(registry *session.Registry, store ArtifactStore, factory ClientFactory, model string) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		store:    store,
		factory:  factory,
		model:    model,
		sleep:    time.Sleep,
	}
}

// Summarize generates and stores one summary artifact for the bot's
// session. The model call gets one bounded retry with backoff; after
// that the failure is surfaced as ErrUpstream with the session state
// untouched.
func (d *Dispatcher) Summarize(ctx context.Context, botID, summaryType string) (Artifact, error) {
	if summaryType == "" {
		summaryType = DefaultProfile
	}

	sess, err := d.registry.Lookup(botID)
	if err != nil {
		return Artifact{}, err
	}

	if sess.Buffer().FinalCount() == 0 {
		return Artifact{}, fmt.Errorf("bot %s: %w", botID, session.ErrEmptyTranscript)
	}

	prompt, ok := buildPrompt(summaryType, sess.Buffer().Render())
	if !ok {
		return Artifact{}, fmt.Errorf("unknown summary type %q: supported types are %v", summaryType, Profiles())
	}

	provider, model, err := llm.ParseModel(d.model)
	if err != nil {
		return Artifact{}, err
	}
	client, err := d.factory(provider, model)
	if err != nil {
		return Artifact{}, fmt.Errorf("create llm client: %w", err)
	}

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}

	content, err := d.complete(ctx, client, messages)
	if err != nil {
		return Artifact{}, fmt.Errorf("summarize bot %s: %w: %w", botID, session.ErrUpstream, err)
	}

	artifact := Artifact{
		SessionID:   sess.ID,
		BotID:       botID,
		SummaryType: summaryType,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}

	if d.store != nil {
		if err := d.store.SaveSummary(artifact); err != nil {
			return Artifact{}, fmt.Errorf("persist summary for session %s: %w", sess.ID, err)
		}
	}
	return artifact, nil
}

// complete calls the model with one bounded retry.
func (d *Dispatcher) complete(ctx context.Context, client llm.Client, messages []llm.Message) (string, error) {
	result, err := client.Complete(ctx, messages)
	if err == nil {
		return result, nil
	}

	d.sleep(1 * time.Second)
	result, retryErr := client.Complete(ctx, messages)
	if retryErr != nil {
		return "", fmt.Errorf("after retry: %w", retryErr)
	}
	return result, nil
}
