// Package store persists recordings and identity settings in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"lectern/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL,
	audio_path TEXT NOT NULL,
	transcript TEXT,
	duration_seconds REAL,
	recorded_at TEXT NOT NULL,
	synced INTEGER DEFAULT 0
);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store provides durable access to the recording set and settings.
// Mutations are applied one at a time so derived reads (the unsynced
// count) never observe a half-applied change.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the database at dir/lectern.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", filepath.Join(dir, "lectern.db"))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRecording inserts or replaces a recording row.
func (s *Store) SaveRecording(rec domain.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO recordings
			(id, student_id, audio_path, transcript, duration_seconds, recorded_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.StudentID, rec.AudioPath, rec.Transcript,
		rec.DurationSeconds, rec.RecordedAt.UTC().Format(time.RFC3339Nano), boolToInt(rec.Synced))
	if err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	return nil
}

// Recordings returns all recordings, newest first.
func (s *Store) Recordings() ([]domain.Recording, error) {
	return s.queryRecordings(`
		SELECT id, student_id, audio_path, transcript, duration_seconds, recorded_at, synced
		FROM recordings ORDER BY recorded_at DESC
	`)
}

// Recording returns one recording, or nil when absent.
func (s *Store) Recording(id string) (*domain.Recording, error) {
	recs, err := s.queryRecordings(`
		SELECT id, student_id, audio_path, transcript, duration_seconds, recorded_at, synced
		FROM recordings WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// UnsyncedRecordings returns recordings awaiting delivery: synced = 0 with
// a transcript already present. Recordings still awaiting transcription
// are excluded; there is nothing to sync yet.
func (s *Store) UnsyncedRecordings() ([]domain.Recording, error) {
	return s.queryRecordings(`
		SELECT id, student_id, audio_path, transcript, duration_seconds, recorded_at, synced
		FROM recordings WHERE synced = 0 AND transcript IS NOT NULL
		ORDER BY recorded_at ASC
	`)
}

// UnsyncedCount recomputes the number of recordings with synced = 0.
func (s *Store) UnsyncedCount() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM recordings WHERE synced = 0`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unsynced: %w", err)
	}
	return count, nil
}

// SetTranscript stores the transcript for a recording. An empty string is
// a legitimate transcript; only NULL means "not transcribed".
func (s *Store) SetTranscript(id string, transcript string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE recordings SET transcript = ? WHERE id = ?`, transcript, id)
	if err != nil {
		return fmt.Errorf("set transcript: %w", err)
	}
	return nil
}

// MarkSynced flips the synced flag. The transcript guard keeps the
// invariant that a synced recording always has a transcript.
func (s *Store) MarkSynced(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE recordings SET synced = 1 WHERE id = ? AND transcript IS NOT NULL
	`, id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark synced: recording %s has no transcript", id)
	}
	return nil
}

// DeleteRecording removes a recording row and its audio artifact.
func (s *Store) DeleteRecording(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var audioPath sql.NullString
	err := s.db.QueryRow(`SELECT audio_path FROM recordings WHERE id = ?`, id).Scan(&audioPath)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("delete recording: %w", err)
	}
	if audioPath.Valid {
		_ = os.Remove(audioPath.String)
	}

	if _, err := s.db.Exec(`DELETE FROM recordings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	return nil
}

// Identity assembles the persisted identity from the settings table.
// ModelLoaded is runtime state owned by the model manager, not persisted.
func (s *Store) Identity() (domain.Identity, error) {
	identity := domain.Identity{}

	var err error
	if identity.StudentID, err = s.setting("student_id"); err != nil {
		return domain.Identity{}, err
	}
	if identity.StudentName, err = s.setting("student_name"); err != nil {
		return domain.Identity{}, err
	}
	if identity.TeacherName, err = s.setting("teacher_name"); err != nil {
		return domain.Identity{}, err
	}
	if identity.ServerURL, err = s.setting("server_url"); err != nil {
		return domain.Identity{}, err
	}
	complete, err := s.setting("setup_complete")
	if err != nil {
		return domain.Identity{}, err
	}
	identity.SetupComplete = complete == "true"

	return identity, nil
}

// SaveIdentity persists the mutable identity fields. The setup_complete
// flag is only ever raised through MarkSetupComplete.
func (s *Store) SaveIdentity(identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pairs := map[string]string{
		"student_id":   identity.StudentID,
		"student_name": identity.StudentName,
		"teacher_name": identity.TeacherName,
		"server_url":   identity.ServerURL,
	}
	for key, value := range pairs {
		if err := s.setSetting(key, value); err != nil {
			return err
		}
	}
	return nil
}

// MarkSetupComplete records that onboarding finished with bound names.
func (s *Store) MarkSetupComplete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setSetting("setup_complete", "true")
}

func (s *Store) setting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setSetting(key string, value string) error {
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) queryRecordings(query string, args ...any) ([]domain.Recording, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var recs []domain.Recording
	for rows.Next() {
		var rec domain.Recording
		var transcript sql.NullString
		var recordedAt string
		var synced int
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.AudioPath, &transcript,
			&rec.DurationSeconds, &recordedAt, &synced); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		if transcript.Valid {
			text := transcript.String
			rec.Transcript = &text
		}
		if ts, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			rec.RecordedAt = ts
		}
		rec.Synced = synced != 0
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
