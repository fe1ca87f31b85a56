package model

import "time"

// Memory is a piece of text owned by a person together with its embedding.
type Memory struct {
	ID        MemoryID  `json:"id"`
	PersonID  PersonID  `json:"person_id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryMatch is a memory returned by similarity search.
type MemoryMatch struct {
	ID       MemoryID `json:"id"`
	PersonID PersonID `json:"person_id"`
	Content  string   `json:"content"`
	Distance float64  `json:"distance"`
}
