package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/momentum-hq/scribe/internal/session"
	"github.com/momentum-hq/scribe/internal/transcript"
)

// Provider webhook event kinds.
const (
	KindTranscriptFinal   = "transcript.data"
	KindTranscriptPartial = "transcript.partial_data"
	KindStatusChange      = "bot.status_change"
	KindBotError          = "bot.error"
)

// Event is a decoded provider webhook delivery.
type Event struct {
	Kind string `json:"event"`

	// ID is the provider-supplied idempotency key. May be empty, in
	// which case a key is derived from the raw payload.
	ID string `json:"id"`

	Data EventData `json:"data"`
}

type EventData struct {
	Bot        BotRef          `json:"bot"`
	Transcript json.RawMessage `json:"data"`
	Status     StatusChange    `json:"status"`
}

type BotRef struct {
	ID string `json:"id"`
}

// StatusChange carries the provider's bot status code, e.g.
// joining_call, in_call_recording, call_ended, fatal.
type StatusChange struct {
	Code    string `json:"code"`
	SubCode string `json:"sub_code"`
	Message string `json:"message"`
}

type utterancePayload struct {
	Participant struct {
		Name string `json:"name"`
	} `json:"participant"`
	Words []struct {
		Text           string `json:"text"`
		StartTimestamp struct {
			Relative float64 `json:"relative"`
		} `json:"start_timestamp"`
		EndTimestamp struct {
			Relative float64 `json:"relative"`
		} `json:"end_timestamp"`
	} `json:"words"`
}

// DecodeEvent parses a raw webhook body.
func DecodeEvent(raw []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	if evt.Kind == "" {
		return Event{}, fmt.Errorf("decode webhook event: missing event kind")
	}
	return evt, nil
}

// IdempotencyKey returns the provider-supplied key, or one derived from
// the raw body when the provider sent none.
func (e Event) IdempotencyKey(raw []byte) string {
	if e.ID != "" {
		return e.ID
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Utterances decodes the transcript payload of a transcript event. The
// provider delivers either a single utterance object or a list; both
// shapes are accepted. Word order within an utterance is preserved.
func (e Event) Utterances() ([]transcript.Utterance, error) {
	if len(e.Data.Transcript) == 0 {
		return nil, nil
	}

	final := e.Kind == KindTranscriptFinal

	var payloads []utterancePayload
	if err := json.Unmarshal(e.Data.Transcript, &payloads); err != nil {
		var single utterancePayload
		if err := json.Unmarshal(e.Data.Transcript, &single); err != nil {
			return nil, fmt.Errorf("decode transcript payload: %w", err)
		}
		payloads = []utterancePayload{single}
	}

	utterances := make([]transcript.Utterance, 0, len(payloads))
	for _, p := range payloads {
		speaker := p.Participant.Name
		if speaker == "" {
			speaker = transcript.UnknownSpeaker
		}

		words := make([]transcript.Word, 0, len(p.Words))
		for _, w := range p.Words {
			words = append(words, transcript.Word{
				Text:  w.Text,
				Start: w.StartTimestamp.Relative,
				End:   w.EndTimestamp.Relative,
			})
		}
		if len(words) == 0 {
			continue
		}

		utterances = append(utterances, transcript.Utterance{
			Speaker: speaker,
			Words:   words,
			IsFinal: final,
		})
	}

	return utterances, nil
}

// stateForStatus maps a provider status code to the session state it
// drives. The second result is false for codes that carry no lifecycle
// meaning (chat notices, permission prompts and the like).
func stateForStatus(code string) (session.State, bool) {
	switch code {
	case "joining_call", "in_waiting_room", "in_call_not_recording":
		return session.StateJoining, true
	case "in_call_recording":
		return session.StateRecording, true
	case "call_ended", "done":
		return session.StateStopped, true
	case "fatal":
		return session.StateError, true
	default:
		return "", false
	}
}
