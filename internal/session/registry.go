package session

import (
	"fmt"
	"hash/fnv"
	"sync"
)

const registryShards = 16

// Registry is the concurrent-safe bot_id -> Session mapping the webhook
// pipeline uses to resolve events. Sharded so unrelated sessions never
// contend on one lock; reads within a shard proceed in parallel.
type Registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].sessions = make(map[string]*Session)
	}
	return r
}

func (r *Registry) shard(botID string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(botID))
	return &r.shards[h.Sum32()%registryShards]
}

// Register binds a session to its bot_id. A bot may hold at most one
// live session: registering over a non-terminal one fails, registering
// over a terminal one replaces it.
func (r *Registry) Register(s *Session) error {
	shard := r.shard(s.BotID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if existing, ok := shard.sessions[s.BotID]; ok && !existing.State().Terminal() {
		return fmt.Errorf("bot %s: %w", s.BotID, ErrConflict)
	}
	shard.sessions[s.BotID] = s
	return nil
}

// Lookup resolves a bot_id to its session.
func (r *Registry) Lookup(botID string) (*Session, error) {
	shard := r.shard(botID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	s, ok := shard.sessions[botID]
	if !ok {
		return nil, fmt.Errorf("bot %s: %w", botID, ErrNotFound)
	}
	return s, nil
}

// Remove drops a terminal session from the registry.
func (r *Registry) Remove(botID string) error {
	shard := r.shard(botID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	s, ok := shard.sessions[botID]
	if !ok {
		return fmt.Errorf("bot %s: %w", botID, ErrNotFound)
	}
	if !s.State().Terminal() {
		return fmt.Errorf("bot %s is %s: %w", botID, s.State(), ErrInvalidState)
	}

	delete(shard.sessions, botID)
	return nil
}

// ForMeeting returns every registered session for a meeting.
func (r *Registry) ForMeeting(meetingID string) []*Session {
	var out []*Session
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.RLock()
		for _, s := range shard.sessions {
			if s.MeetingID == meetingID {
				out = append(out, s)
			}
		}
		shard.mu.RUnlock()
	}
	return out
}

// All returns every registered session. Used by the inactivity sweeper.
func (r *Registry) All() []*Session {
	var out []*Session
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.RLock()
		for _, s := range shard.sessions {
			out = append(out, s)
		}
		shard.mu.RUnlock()
	}
	return out
}
