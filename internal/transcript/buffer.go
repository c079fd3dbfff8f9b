package transcript

import (
	"errors"
	"strings"
	"sync"
)

// ErrFrozen is returned by Append once the buffer has been frozen.
var ErrFrozen = errors.New("transcript buffer is frozen")

// Buffer is the append-only utterance log for one recording session.
// Entries are ordered by arrival; each append assigns the next sequence
// marker. Partials are never mutated in place — a later fragment from
// the same speaker supersedes them, and Render reads finals only.
type Buffer struct {
	mu      sync.Mutex
	entries []Utterance
	nextSeq uint64
	frozen  bool
}

// NewBuffer creates an empty unfrozen buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds an utterance to the log and returns its sequence marker.
func (b *Buffer) Append(u Utterance) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return 0, ErrFrozen
	}

	b.nextSeq++
	u.Seq = b.nextSeq
	b.entries = append(b.entries, u)
	return u.Seq, nil
}

// Freeze marks the buffer read-only. Safe to call more than once; the
// first call reports true so callers can act exactly once on freeze.
func (b *Buffer) Freeze() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return false
	}
	b.frozen = true
	return true
}

// Frozen reports whether the buffer accepts further appends.
func (b *Buffer) Frozen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frozen
}

// Len returns the total number of log entries, partials included.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Finals returns a copy of the finalized utterances in sequence order.
func (b *Buffer) Finals() []Utterance {
	b.mu.Lock()
	defer b.mu.Unlock()

	var finals []Utterance
	for _, u := range b.entries {
		if u.IsFinal {
			finals = append(finals, u)
		}
	}
	return finals
}

// FinalCount returns the number of finalized utterances.
func (b *Buffer) FinalCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, u := range b.entries {
		if u.IsFinal {
			n++
		}
	}
	return n
}

// Live returns the most recent unsuperseded partial per speaker: the
// "currently speaking" view. A partial is superseded by any later entry
// from the same speaker, final or not.
func (b *Buffer) Live() []Utterance {
	b.mu.Lock()
	defer b.mu.Unlock()

	latest := make(map[string]Utterance)
	for _, u := range b.entries {
		if u.IsFinal {
			delete(latest, u.Speaker)
			continue
		}
		latest[u.Speaker] = u
	}

	live := make([]Utterance, 0, len(latest))
	for _, u := range latest {
		live = append(live, u)
	}
	return live
}

// Render concatenates finalized utterances in sequence order into the
// transcript text consumed by summarization. Empty if nothing is final.
func (b *Buffer) Render() string {
	finals := b.Finals()

	var sb strings.Builder
	for _, u := range finals {
		line := u.FormatLine()
		if strings.TrimSpace(u.Text()) == "" {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
