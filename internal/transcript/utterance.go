package transcript

import (
	"fmt"
	"strings"
)

// Word is a single transcribed token with timestamps relative to the
// start of the recording, as delivered by the bot provider.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Utterance is one fragment of transcribed speech. Partial utterances
// (IsFinal false) are provisional and may be superseded by a later
// fragment from the same speaker; final utterances are permanent.
type Utterance struct {
	Speaker string `json:"speaker"`
	Words   []Word `json:"words"`
	IsFinal bool   `json:"is_final"`

	// Seq is the monotonic per-session marker assigned at append time.
	Seq uint64 `json:"seq"`
}

// UnknownSpeaker labels utterances the provider could not attribute.
const UnknownSpeaker = "Unknown"

// Text joins the utterance's words into a single line.
func (u Utterance) Text() string {
	parts := make([]string, 0, len(u.Words))
	for _, w := range u.Words {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

// Start returns the relative start time of the first word, or 0.
func (u Utterance) Start() float64 {
	if len(u.Words) == 0 {
		return 0
	}
	return u.Words[0].Start
}

// End returns the relative end time of the last word, or 0.
func (u Utterance) End() float64 {
	if len(u.Words) == 0 {
		return 0
	}
	return u.Words[len(u.Words)-1].End
}

// FormatLine renders the utterance as a "Speaker: text" transcript line.
func (u Utterance) FormatLine() string {
	speaker := u.Speaker
	if speaker == "" {
		speaker = UnknownSpeaker
	}
	return fmt.Sprintf("%s: %s", speaker, u.Text())
}
