package summary

import (
	"sort"
	"strings"
)

// systemPrompt sets the note-taker persona for every summary type.
const systemPrompt = "You are a virtual assistant taking notes for a meeting. You are diligent, polite and slightly humorous at times."

// userTemplate wraps the rendered transcript and the profile question.
const userTemplate = `Here is the transcript of the meeting, including the speaker's name:

<transcript>
{{transcript}}
</transcript>

Only answer the following question directly, do not add any additional comments or information.
{{question}}`

// profiles maps each summary type to the question put to the model.
var profiles = map[string]string{
	"general_summary": "Can you summarize the meeting? Please be concise.",
	"action_items":    "What are the action items from the meeting?",
	"decisions":       "What decisions were made in the meeting?",
	"next_steps":      "What are the next steps?",
	"key_takeaways":   "What are the key takeaways?",
}

// DefaultProfile is used when the caller does not name a summary type.
const DefaultProfile = "general_summary"

// Profiles returns the supported summary types in sorted order.
func Profiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildPrompt renders the user message for a summary type. The second
// result is false when the type is unknown.
func buildPrompt(summaryType, transcript string) (string, bool) {
	question, ok := profiles[summaryType]
	if !ok {
		return "", false
	}

	prompt := strings.ReplaceAll(userTemplate, "{{transcript}}", transcript)
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)
	return prompt, true
}
