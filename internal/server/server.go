package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/momentum-hq/scribe/internal/session"
	"github.com/momentum-hq/scribe/internal/summary"
	"github.com/momentum-hq/scribe/internal/transcript"
)

// SessionService drives recording lifecycle operations.
type SessionService interface {
	CreateSession(ctx context.Context, meetingID, userID, meetingURL string) (session.Info, error)
	StopSession(ctx context.Context, botID string) (session.Info, error)
	RecordingState(ctx context.Context, botID string) (session.Status, error)
	Lookup(botID string) (session.Info, error)
	SessionsForMeeting(meetingID string) []session.Info
}

// Ingestor accepts provider webhook deliveries.
type Ingestor interface {
	Ingest(token string, raw []byte) error
}

// Summarizer produces summary artifacts on demand.
type Summarizer interface {
	Summarize(ctx context.Context, botID, summaryType string) (summary.Artifact, error)
}

// ReadStore serves persisted query endpoints.
type ReadStore interface {
	ListSessionsByMeeting(meetingID string) ([]session.Info, error)
	GetUtterances(botID string, finalsOnly bool) ([]transcript.Utterance, error)
	ListSummaries(sessionID string) ([]summary.Artifact, error)
}

// Server exposes the HTTP and websocket surface: recording control,
// webhook ingestion, summary dispatch and read queries.
type Server struct {
	sessions   SessionService
	ingestor   Ingestor
	summarizer Summarizer
	reads      ReadStore
	hub        *Hub
}

func New(sessions SessionService, ingestor Ingestor, summarizer Summarizer, reads ReadStore, hub *Hub) *Server {
	return &Server{
		sessions:   sessions,
		ingestor:   ingestor,
		summarizer: summarizer,
		reads:      reads,
		hub:        hub,
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recordings", s.handleCreateRecording)
		r.Get("/recordings/{botID}", s.handleRecordingStatus)
		r.Post("/recordings/{botID}/stop", s.handleStopRecording)
		r.Post("/recordings/{botID}/summarize", s.handleSummarize)
		r.Get("/recordings/{botID}/summaries", s.handleListSummaries)

		r.Post("/webhooks/transcription", s.handleWebhook)

		r.Get("/meetings/{meetingID}/sessions", s.handleMeetingSessions)
		r.Get("/meetings/{meetingID}/transcript", s.handleMeetingTranscript)
	})

	return r
}

// Serve runs the HTTP server until ctx is cancelled, then drains.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
