package store

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/personae/internal/embedding"
	"github.com/rcliao/personae/internal/model"
)

// DefaultDimensions is the width of text-embedding-3-small vectors.
const DefaultDimensions = 1536

// timeLayout is fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Options configures a SQLiteStore.
type Options struct {
	// Dimensions is the embedding width enforced on the memory table when it
	// is first created. Zero means DefaultDimensions.
	Dimensions int
	// Metric is the distance used by SearchMemories. Empty means cosine.
	Metric embedding.Metric
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// SQLiteStore implements persistence using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	now    func() time.Time
	dims   int
	metric embedding.Metric

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts Options) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serialises writers and keeps each transaction exclusive.
	db.SetMaxOpenConns(1)

	if opts.Dimensions <= 0 {
		opts.Dimensions = DefaultDimensions
	}
	if opts.Metric == "" {
		opts.Metric = embedding.Cosine
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &SQLiteStore{
		db:      db,
		now:     opts.Now,
		dims:    opts.Dimensions,
		metric:  opts.Metric,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Dimensions returns the configured embedding width.
func (s *SQLiteStore) Dimensions() int { return s.dims }

func (s *SQLiteStore) newID(at time.Time) model.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.NewID(ulid.MustNew(ulid.Timestamp(at), s.entropy))
}

func (s *SQLiteStore) clock() time.Time {
	return s.now().UTC()
}

func (s *SQLiteStore) migrate() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS person (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS person_identity (
		id         TEXT PRIMARY KEY,
		person_id  TEXT NOT NULL REFERENCES person(id),
		identity   TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_person_identity_person ON person_identity(person_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS state_of_mind (
		id         TEXT PRIMARY KEY,
		person_id  TEXT NOT NULL REFERENCES person(id),
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_state_of_mind_person ON state_of_mind(person_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS scene (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scene_name ON scene(name);

	CREATE TABLE IF NOT EXISTS scene_snapshot (
		id          TEXT PRIMARY KEY,
		scene_id    TEXT NOT NULL REFERENCES scene(id),
		description TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scene_snapshot_scene ON scene_snapshot(scene_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS scene_participant (
		id        TEXT PRIMARY KEY,
		scene_id  TEXT NOT NULL REFERENCES scene(id),
		person_id TEXT NOT NULL REFERENCES person(id),
		joined_at TEXT NOT NULL,
		left_at   TEXT,
		left_seq  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_scene_participant_scene ON scene_participant(scene_id, joined_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_scene_participant_active
		ON scene_participant(person_id) WHERE left_at IS NULL;

	CREATE TABLE IF NOT EXISTS message (
		id                  TEXT PRIMARY KEY,
		sender_kind         TEXT NOT NULL,
		sender_person_id    TEXT REFERENCES person(id),
		recipient_kind      TEXT NOT NULL,
		recipient_person_id TEXT REFERENCES person(id),
		recipient_scene_id  TEXT REFERENCES scene(id),
		scene_id            TEXT REFERENCES scene(id),
		content             TEXT NOT NULL,
		sent_at             TEXT NOT NULL,
		read_at             TEXT,
		CHECK (recipient_kind != 'scene' OR (scene_id IS NOT NULL AND recipient_scene_id = scene_id))
	);
	CREATE INDEX IF NOT EXISTS idx_message_scene ON message(scene_id, sent_at);
	CREATE INDEX IF NOT EXISTS idx_message_recipient ON message(recipient_person_id, sent_at);

	CREATE TABLE IF NOT EXISTS memory (
		id         TEXT PRIMARY KEY,
		person_id  TEXT NOT NULL REFERENCES person(id),
		content    TEXT NOT NULL,
		embedding  TEXT NOT NULL CHECK (json_valid(embedding) AND json_array_length(embedding) = %d),
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_person ON memory(person_id);

	CREATE TABLE IF NOT EXISTS job (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		payload     TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		started_at  TEXT,
		finished_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_job_pending
		ON job(created_at DESC, id DESC) WHERE started_at IS NULL AND finished_at IS NULL;
	`, s.dims)

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return t, nil
}

func parseOptTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseOptID[T model.EntityID](v sql.NullString) (*T, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	id, err := model.Parse[T](v.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// nullID binds an optional id parameter.
func nullID(id model.ID) any {
	if id.IsZero() {
		return nil
	}
	return id.String()
}
