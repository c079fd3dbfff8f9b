package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/momentum-hq/scribe/internal/session"
	"github.com/momentum-hq/scribe/internal/transcript"
)

// maxWebhookBody bounds a single provider delivery.
const maxWebhookBody = 1 << 20

type createRecordingRequest struct {
	MeetingID  string `json:"meeting_id"`
	UserID     string `json:"user_id"`
	MeetingURL string `json:"meeting_url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRecording(w http.ResponseWriter, r *http.Request) {
	var req createRecordingRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	if strings.TrimSpace(req.MeetingID) == "" || strings.TrimSpace(req.MeetingURL) == "" {
		writeJSONError(w, http.StatusBadRequest, "meeting_id and meeting_url are required")
		return
	}

	info, err := s.sessions.CreateSession(r.Context(), req.MeetingID, req.UserID, req.MeetingURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// handleRecordingStatus reports the session snapshot together with the
// provider's latest status code for the bot, when the provider answers.
func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.RecordingState(r.Context(), chi.URLParam(r, "botID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.StopSession(r.Context(), chi.URLParam(r, "botID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	summaryType := r.URL.Query().Get("type")

	artifact, err := s.summarizer.Summarize(r.Context(), botID, summaryType)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.hub != nil {
		s.hub.BroadcastSummaryReady(artifact)
	}
	writeJSON(w, http.StatusOK, artifact)
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.Lookup(chi.URLParam(r, "botID"))
	if err != nil {
		writeError(w, err)
		return
	}

	artifacts, err := s.reads.ListSummaries(info.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifacts)
}

// handleWebhook takes provider deliveries. The verification token rides
// in the secret query parameter, matching how the realtime endpoint was
// registered at bot creation.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "read body")
		return
	}

	if err := s.ingestor.Ingest(r.URL.Query().Get("secret"), raw); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleMeetingSessions lists a meeting's sessions. Persisted rows are
// the base; registry snapshots overlay them so live sessions report
// their current state, not the last persisted one.
func (s *Server) handleMeetingSessions(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")

	infos, err := s.reads.ListSessionsByMeeting(meetingID)
	if err != nil {
		writeError(w, err)
		return
	}

	live := make(map[string]session.Info)
	for _, info := range s.sessions.SessionsForMeeting(meetingID) {
		live[info.ID] = info
	}
	for i, info := range infos {
		if fresh, ok := live[info.ID]; ok {
			infos[i] = fresh
		}
	}

	writeJSON(w, http.StatusOK, infos)
}

type transcriptResponse struct {
	SessionID  string                 `json:"session_id"`
	BotID      string                 `json:"bot_id"`
	State      session.State          `json:"state"`
	Utterances []transcript.Utterance `json:"utterances"`
	Rendered   string                 `json:"rendered"`
}

// handleMeetingTranscript returns the newest session's transcript. Pass
// final_only=true to drop partial fragments.
func (s *Server) handleMeetingTranscript(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	finalsOnly := r.URL.Query().Get("final_only") == "true"

	infos, err := s.reads.ListSessionsByMeeting(meetingID)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(infos) == 0 {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("meeting %s has no sessions", meetingID))
		return
	}

	latest := infos[0]
	utterances, err := s.reads.GetUtterances(latest.BotID, finalsOnly)
	if err != nil {
		writeError(w, err)
		return
	}

	lines := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if !u.IsFinal {
			continue
		}
		lines = append(lines, u.FormatLine())
	}

	writeJSON(w, http.StatusOK, transcriptResponse{
		SessionID:  latest.ID,
		BotID:      latest.BotID,
		State:      latest.State,
		Utterances: utterances,
		Rendered:   strings.Join(lines, "\n"),
	})
}

// writeError maps taxonomy sentinels onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, session.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, session.ErrEmptyTranscript):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrUpstream):
		status = http.StatusBadGateway
	}
	writeJSONError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
