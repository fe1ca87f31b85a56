package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rcliao/personae/internal/model"
)

// CreateMemory stores a memory for the named person. The memory table rejects
// embeddings whose length differs from the configured dimension, so a
// mismatch fails with a store error and leaves no row behind.
func (s *SQLiteStore) CreateMemory(ctx context.Context, personName, content string, emb []float32) (model.MemoryID, error) {
	p, err := personByName(ctx, s.db, personName)
	if err != nil {
		return model.MemoryID{}, wrap("create memory", err)
	}

	if emb == nil {
		emb = []float32{}
	}
	data, err := json.Marshal(emb)
	if err != nil {
		return model.MemoryID{}, wrap("create memory", err)
	}

	now := s.clock()
	id := model.As[model.MemoryID](s.newID(now))
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memory (id, person_id, content, embedding, created_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), p.ID.String(), content, string(data), formatTime(now))
	if err != nil {
		return model.MemoryID{}, wrap("create memory", err)
	}
	return id, nil
}

// GetMemory returns a memory including its embedding.
func (s *SQLiteStore) GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	mems, err := s.queryMemories(ctx,
		`SELECT id, person_id, content, embedding, created_at FROM memory WHERE id = ?`, id.String())
	if err != nil {
		return nil, wrap("get memory", err)
	}
	if len(mems) == 0 {
		return nil, wrap("get memory", fmt.Errorf("%w: memory %s", ErrNotFound, id))
	}
	return &mems[0], nil
}

// SearchMemories returns the memories closest to p.Embedding, nearest first.
// Ties are broken by memory id so repeated queries return the same order.
func (s *SQLiteStore) SearchMemories(ctx context.Context, p SearchParams) ([]model.MemoryMatch, error) {
	if p.Limit <= 0 {
		return nil, nil
	}
	if len(p.Embedding) != s.dims {
		return nil, wrap("search memories",
			fmt.Errorf("query embedding has %d dimensions, want %d", len(p.Embedding), s.dims))
	}

	query := `SELECT id, person_id, content, embedding, created_at FROM memory`
	var args []any
	if p.PersonID != nil {
		query += ` WHERE person_id = ?`
		args = append(args, p.PersonID.String())
	}

	mems, err := s.queryMemories(ctx, query, args...)
	if err != nil {
		return nil, wrap("search memories", err)
	}

	matches := make([]model.MemoryMatch, 0, len(mems))
	for _, m := range mems {
		matches = append(matches, model.MemoryMatch{
			ID:       m.ID,
			PersonID: m.PersonID,
			Content:  m.Content,
			Distance: s.metric.Distance(p.Embedding, m.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID.Compare(matches[j].ID.ID) < 0
	})

	if len(matches) > p.Limit {
		matches = matches[:p.Limit]
	}
	return matches, nil
}

func (s *SQLiteStore) queryMemories(ctx context.Context, query string, args ...any) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mems []model.Memory
	for rows.Next() {
		var m model.Memory
		var id, personID, emb, createdAt string
		if err := rows.Scan(&id, &personID, &m.Content, &emb, &createdAt); err != nil {
			return nil, err
		}
		if m.ID, err = model.Parse[model.MemoryID](id); err != nil {
			return nil, err
		}
		if m.PersonID, err = model.Parse[model.PersonID](personID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(emb), &m.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for memory %s: %w", id, err)
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		mems = append(mems, m)
	}
	return mems, rows.Err()
}
