package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/momentum-hq/scribe/internal/session"
	"github.com/momentum-hq/scribe/internal/summary"
	"github.com/momentum-hq/scribe/internal/transcript"
)

// Hub fans events out to websocket subscribers. Slow subscribers drop
// messages rather than block the broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastLiveTranscript(botID string, u transcript.Utterance) {
	h.broadcastEvent(LiveTranscriptEvent{
		Event:   newEvent("live_transcript", time.Now().UTC()),
		BotID:   botID,
		Speaker: u.Speaker,
		Text:    u.Text(),
		Start:   u.Start(),
		End:     u.End(),
		IsFinal: u.IsFinal,
		Seq:     u.Seq,
	})
}

func (h *Hub) BroadcastSessionStarted(info session.Info) {
	h.broadcastEvent(SessionStartedEvent{
		Event:     newEvent("session_started", time.Now().UTC()),
		SessionID: info.ID,
		BotID:     info.BotID,
		MeetingID: info.MeetingID,
		State:     string(info.State),
	})
}

func (h *Hub) BroadcastSessionEnded(info session.Info) {
	var duration float64
	if info.EndedAt != nil {
		duration = info.EndedAt.Sub(info.CreatedAt).Seconds()
	}
	h.broadcastEvent(SessionEndedEvent{
		Event:     newEvent("session_ended", time.Now().UTC()),
		SessionID: info.ID,
		BotID:     info.BotID,
		MeetingID: info.MeetingID,
		State:     string(info.State),
		Duration:  duration,
	})
}

func (h *Hub) BroadcastSummaryReady(a summary.Artifact) {
	h.broadcastEvent(SummaryReadyEvent{
		Event:       newEvent("summary_ready", time.Now().UTC()),
		SessionID:   a.SessionID,
		BotID:       a.BotID,
		SummaryType: a.SummaryType,
		Content:     a.Content,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("event marshal failed", "error", err)
		return
	}
	h.Broadcast(payload)
}
