package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/momentum-hq/scribe/internal/session"
	"github.com/momentum-hq/scribe/internal/summary"
	"github.com/momentum-hq/scribe/internal/transcript"
)

// SQLiteStore is the durable record of sessions, utterances and summary
// artifacts. The in-memory registry is authoritative while a session is
// live; the store is what survives a restart and what list queries read.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "scribe.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			bot_id TEXT NOT NULL UNIQUE,
			meeting_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TEXT NOT NULL,
			ended_at TEXT
		);
	`); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS utterances (
			bot_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			speaker TEXT NOT NULL,
			words TEXT NOT NULL,
			is_final INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY(bot_id, seq)
		);
	`); err != nil {
		return fmt.Errorf("create utterances table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			bot_id TEXT NOT NULL,
			summary_type TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create summaries table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_meeting ON sessions(meeting_id, created_at)"); err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_summaries_session ON summaries(session_id, created_at)"); err != nil {
		return fmt.Errorf("create summaries index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateSession persists a freshly registered session.
func (s *SQLiteStore) CreateSession(info session.Info) error {
	if strings.TrimSpace(info.ID) == "" {
		return errors.New("session id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions(session_id, bot_id, meeting_id, user_id, state, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		info.ID,
		info.BotID,
		info.MeetingID,
		info.UserID,
		string(info.State),
		info.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", info.ID, err)
	}
	return nil
}

// UpdateSessionState writes the session's current state and, once set,
// its end time.
func (s *SQLiteStore) UpdateSessionState(info session.Info) error {
	var endedAt any
	if info.EndedAt != nil {
		endedAt = info.EndedAt.UTC().Format(time.RFC3339Nano)
	}

	res, err := s.db.Exec(
		`UPDATE sessions SET state = ?, ended_at = ? WHERE session_id = ?`,
		string(info.State),
		endedAt,
		info.ID,
	)
	if err != nil {
		return fmt.Errorf("update session %s state: %w", info.ID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session state rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendUtterance persists one accepted utterance. Replaying the same
// (bot, seq) pair overwrites rather than duplicates, so a redelivered
// batch that was partially persisted is safe to rerun.
func (s *SQLiteStore) AppendUtterance(botID string, u transcript.Utterance) error {
	words, err := json.Marshal(u.Words)
	if err != nil {
		return fmt.Errorf("encode words for bot %s: %w", botID, err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO utterances(bot_id, seq, speaker, words, is_final, recorded_at) VALUES(?, ?, ?, ?, ?, ?)`,
		botID,
		u.Seq,
		u.Speaker,
		string(words),
		boolToInt(u.IsFinal),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append utterance for bot %s: %w", botID, err)
	}
	return nil
}

// SaveSummary persists one summary artifact. A session can hold several
// artifacts of the same type; the newest wins on read.
func (s *SQLiteStore) SaveSummary(a summary.Artifact) error {
	_, err := s.db.Exec(
		`INSERT INTO summaries(session_id, bot_id, summary_type, content, created_at) VALUES(?, ?, ?, ?, ?)`,
		a.SessionID,
		a.BotID,
		a.SummaryType,
		a.Content,
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save summary for session %s: %w", a.SessionID, err)
	}
	return nil
}

// ListSessionsByMeeting returns every persisted session of a meeting,
// newest first.
func (s *SQLiteStore) ListSessionsByMeeting(meetingID string) ([]session.Info, error) {
	rows, err := s.db.Query(
		`SELECT session_id, bot_id, meeting_id, user_id, state, created_at, ended_at
		 FROM sessions
		 WHERE meeting_id = ?
		 ORDER BY created_at DESC`,
		meetingID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions for meeting %s: %w", meetingID, err)
	}
	defer func() { _ = rows.Close() }()

	infos := make([]session.Info, 0, 8)
	for rows.Next() {
		var info session.Info
		var state, createdAt string
		var endedAt sql.NullString
		if err := rows.Scan(&info.ID, &info.BotID, &info.MeetingID, &info.UserID, &state, &createdAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.State = session.State(state)

		info.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse session %s created_at: %w", info.ID, err)
		}
		if endedAt.Valid {
			ended, err := time.Parse(time.RFC3339Nano, endedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse session %s ended_at: %w", info.ID, err)
			}
			info.EndedAt = &ended
		}

		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}

	return infos, nil
}

// GetUtterances returns a bot's persisted transcript in sequence order.
// Set finalsOnly to drop partials that never got a final revision.
func (s *SQLiteStore) GetUtterances(botID string, finalsOnly bool) ([]transcript.Utterance, error) {
	query := `SELECT seq, speaker, words, is_final FROM utterances WHERE bot_id = ?`
	if finalsOnly {
		query += ` AND is_final = 1`
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.Query(query, botID)
	if err != nil {
		return nil, fmt.Errorf("query utterances for bot %s: %w", botID, err)
	}
	defer func() { _ = rows.Close() }()

	utterances := make([]transcript.Utterance, 0, 32)
	for rows.Next() {
		var u transcript.Utterance
		var words string
		var isFinal int
		if err := rows.Scan(&u.Seq, &u.Speaker, &words, &isFinal); err != nil {
			return nil, fmt.Errorf("scan utterance for bot %s: %w", botID, err)
		}
		if err := json.Unmarshal([]byte(words), &u.Words); err != nil {
			return nil, fmt.Errorf("decode words for bot %s seq %d: %w", botID, u.Seq, err)
		}
		u.IsFinal = isFinal != 0

		utterances = append(utterances, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate utterance rows for bot %s: %w", botID, err)
	}

	return utterances, nil
}

// ListSummaries returns a session's summary artifacts, newest first.
func (s *SQLiteStore) ListSummaries(sessionID string) ([]summary.Artifact, error) {
	rows, err := s.db.Query(
		`SELECT session_id, bot_id, summary_type, content, created_at
		 FROM summaries
		 WHERE session_id = ?
		 ORDER BY created_at DESC, id DESC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query summaries for session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	artifacts := make([]summary.Artifact, 0, 4)
	for rows.Next() {
		var a summary.Artifact
		var createdAt string
		if err := rows.Scan(&a.SessionID, &a.BotID, &a.SummaryType, &a.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse summary created_at: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}

	return artifacts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
