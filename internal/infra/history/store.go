package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"

	"plant-voice/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL,
	audio_ms INTEGER NOT NULL,
	end_reason TEXT NOT NULL,
	outcome TEXT NOT NULL,
	text TEXT NOT NULL,
	detail TEXT NOT NULL,
	latency_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at ON transcriptions(created_at);
`

// Entry is one recorded transcription attempt.
type Entry struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Audio     time.Duration `json:"-"`
	AudioMS   int64         `json:"audio_ms"`
	EndReason string        `json:"end_reason"`
	Outcome   string        `json:"outcome"`
	Text      string        `json:"text,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	LatencyMS int64         `json:"latency_ms"`
}

// Store keeps transcription history in SQLite. It implements
// application.Observer; write failures are logged, never returned to the
// pipeline.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single connection keeps in-memory databases shared and writes serialized
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
		now:    time.Now,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, outcome domain.Outcome, latency time.Duration, utt domain.Utterance) (Entry, error) {
	e := Entry{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		Audio:     utt.Duration,
		AudioMS:   utt.Duration.Milliseconds(),
		EndReason: string(utt.End),
		Outcome:   outcome.Label(),
		Text:      outcome.Text,
		Detail:    outcome.Detail,
		LatencyMS: latency.Milliseconds(),
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO transcriptions (id, created_at, audio_ms, end_reason, outcome, text, detail, latency_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.CreatedAt.UnixMilli(), e.AudioMS, e.EndReason, e.Outcome, e.Text, e.Detail, e.LatencyMS)
	if err != nil {
		return Entry{}, fmt.Errorf("saving transcription: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, created_at, audio_ms, end_reason, outcome, text, detail, latency_ms
	FROM transcriptions ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transcriptions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.AudioMS, &e.EndReason, &e.Outcome, &e.Text, &e.Detail, &e.LatencyMS); err != nil {
			return nil, fmt.Errorf("scanning transcription: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		e.Audio = time.Duration(e.AudioMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) UtteranceCaptured(_ context.Context, _ domain.Utterance) {}

func (s *Store) TranscriptionFinished(ctx context.Context, outcome domain.Outcome, latency time.Duration, utt domain.Utterance) {
	if _, err := s.Record(context.WithoutCancel(ctx), outcome, latency, utt); err != nil {
		s.logger.Error().Err(err).Msg("recording transcription")
	}
}
