package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string   `json:"db_path"`
	DBSizeBytes int64    `json:"db_size_bytes"`
	Persons     int      `json:"persons"`
	Scenes      int      `json:"scenes"`
	Messages    int      `json:"messages"`
	Unread      int      `json:"unread_messages"`
	Memories    int      `json:"memories"`
	Jobs        JobStats `json:"jobs"`
	Dimensions  int      `json:"embedding_dimensions"`
}

// JobStats counts jobs by lifecycle state.
type JobStats struct {
	Pending  int `json:"pending"`
	Running  int `json:"running"`
	Finished int `json:"finished"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath, Dimensions: s.dims}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM person`, &st.Persons},
		{`SELECT COUNT(*) FROM scene`, &st.Scenes},
		{`SELECT COUNT(*) FROM message`, &st.Messages},
		{`SELECT COUNT(*) FROM message WHERE read_at IS NULL AND recipient_kind = 'person'`, &st.Unread},
		{`SELECT COUNT(*) FROM memory`, &st.Memories},
		{`SELECT COUNT(*) FROM job WHERE started_at IS NULL AND finished_at IS NULL`, &st.Jobs.Pending},
		{`SELECT COUNT(*) FROM job WHERE started_at IS NOT NULL AND finished_at IS NULL`, &st.Jobs.Running},
		{`SELECT COUNT(*) FROM job WHERE finished_at IS NOT NULL`, &st.Jobs.Finished},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return st, wrap("stats", err)
		}
	}

	return st, nil
}
