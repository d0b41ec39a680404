package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS meetings (
	id                  UUID PRIMARY KEY,
	user_id             TEXT NOT NULL,
	title               TEXT NOT NULL DEFAULT '',
	transcript          TEXT NOT NULL DEFAULT '',
	display_transcript  TEXT NOT NULL DEFAULT '',
	summary             TEXT NOT NULL DEFAULT '',
	summary_short       TEXT NOT NULL DEFAULT '',
	summary_detailed    TEXT NOT NULL DEFAULT '',
	summary_mode        TEXT NOT NULL DEFAULT '',
	summary_regenerated BOOLEAN NOT NULL DEFAULT FALSE,
	summary_failed      BOOLEAN NOT NULL DEFAULT FALSE,
	duration_seconds    INTEGER NOT NULL DEFAULT 0,
	notes               TEXT NOT NULL DEFAULT '',
	audio_url           TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS meetings_user_created_idx ON meetings (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS meeting_suggestions (
	id          UUID PRIMARY KEY,
	meeting_id  UUID NOT NULL REFERENCES meetings (id) ON DELETE CASCADE,
	kind        TEXT NOT NULL,
	text        TEXT NOT NULL,
	segment     INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS meeting_suggestions_meeting_idx ON meeting_suggestions (meeting_id);
`

// PG is the PostgreSQL-backed store.
type PG struct {
	pool *pgxpool.Pool
}

func NewPG(ctx context.Context, dsn string) (*PG, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PG{pool: pool}, nil
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *PG) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PG) Close() {
	s.pool.Close()
}

// Pool exposes the underlying connection pool so other components
// (plan lookups, usage accounting) can share it.
func (s *PG) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PG) InsertMeeting(ctx context.Context, m *Meeting) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meetings (
			id, user_id, title, transcript, display_transcript,
			summary, summary_short, summary_detailed, summary_mode,
			summary_regenerated, summary_failed, duration_seconds,
			notes, audio_url, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		m.ID, m.UserID, m.Title, m.Transcript, m.DisplayTranscript,
		m.Summary, m.SummaryShort, m.SummaryDetailed, m.SummaryMode,
		m.SummaryRegenerated, m.SummaryFailed, m.DurationSeconds,
		m.Notes, m.AudioURL, m.CreatedAt)
	return err
}

func (s *PG) GetMeeting(ctx context.Context, id string) (Meeting, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, title, transcript, display_transcript,
			summary, summary_short, summary_detailed, summary_mode,
			summary_regenerated, summary_failed, duration_seconds,
			notes, audio_url, created_at
		FROM meetings WHERE id = $1`, id)
	var m Meeting
	err := row.Scan(&m.ID, &m.UserID, &m.Title, &m.Transcript, &m.DisplayTranscript,
		&m.Summary, &m.SummaryShort, &m.SummaryDetailed, &m.SummaryMode,
		&m.SummaryRegenerated, &m.SummaryFailed, &m.DurationSeconds,
		&m.Notes, &m.AudioURL, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Meeting{}, ErrNotFound
	}
	return m, err
}

func (s *PG) ListMeetings(ctx context.Context, userID string) ([]Meeting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, transcript, display_transcript,
			summary, summary_short, summary_detailed, summary_mode,
			summary_regenerated, summary_failed, duration_seconds,
			notes, audio_url, created_at
		FROM meetings WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Meeting
	for rows.Next() {
		var m Meeting
		if err := rows.Scan(&m.ID, &m.UserID, &m.Title, &m.Transcript, &m.DisplayTranscript,
			&m.Summary, &m.SummaryShort, &m.SummaryDetailed, &m.SummaryMode,
			&m.SummaryRegenerated, &m.SummaryFailed, &m.DurationSeconds,
			&m.Notes, &m.AudioURL, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PG) UpdateSummary(ctx context.Context, meetingID string, upd SummaryUpdate) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE meetings SET
			title = CASE WHEN $2 = '' THEN title ELSE $2 END,
			summary = $3, summary_short = $4, summary_detailed = $5,
			summary_mode = $6, summary_regenerated = $7, summary_failed = FALSE
		WHERE id = $1`,
		meetingID, upd.Title, upd.Summary, upd.SummaryShort, upd.SummaryDetailed,
		upd.Mode, upd.Regenerated)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PG) MarkSummaryFailed(ctx context.Context, meetingID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE meetings SET summary_failed = TRUE WHERE id = $1`, meetingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PG) SetAudioURL(ctx context.Context, meetingID, url string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE meetings SET audio_url = $2 WHERE id = $1`, meetingID, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PG) SetNotes(ctx context.Context, meetingID, notes string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE meetings SET notes = $2 WHERE id = $1`, meetingID, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertSuggestions writes the suggestion batch in one round trip.
func (s *PG) InsertSuggestions(ctx context.Context, suggestions []Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, sg := range suggestions {
		if sg.ID == "" {
			sg.ID = uuid.NewString()
		}
		if sg.CreatedAt.IsZero() {
			sg.CreatedAt = time.Now()
		}
		batch.Queue(`
			INSERT INTO meeting_suggestions (id, meeting_id, kind, text, segment, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			sg.ID, sg.MeetingID, string(sg.Kind), sg.Text, sg.Segment, sg.CreatedAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range suggestions {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *PG) ListSuggestions(ctx context.Context, meetingID string) ([]Suggestion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, meeting_id, kind, text, segment, created_at
		FROM meeting_suggestions WHERE meeting_id = $1 ORDER BY segment, created_at`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Suggestion
	for rows.Next() {
		var sg Suggestion
		var kind string
		if err := rows.Scan(&sg.ID, &sg.MeetingID, &kind, &sg.Text, &sg.Segment, &sg.CreatedAt); err != nil {
			return nil, err
		}
		sg.Kind = SuggestionKind(kind)
		out = append(out, sg)
	}
	return out, rows.Err()
}

var _ Store = (*PG)(nil)
