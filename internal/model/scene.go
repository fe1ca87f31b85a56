package model

import "time"

// Scene is a named context persons can join.
type Scene struct {
	ID   SceneID `json:"id"`
	Name string  `json:"name"`
}

// SceneSnapshot records a scene description. The latest one is current.
type SceneSnapshot struct {
	ID          SnapshotID `json:"id"`
	SceneID     SceneID    `json:"scene_id"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SceneParticipation is the half-open interval [JoinedAt, LeftAt) during
// which a person is in a scene. A nil LeftAt means the participation is active.
type SceneParticipation struct {
	ID         ParticipationID `json:"id"`
	SceneID    SceneID         `json:"scene_id"`
	PersonID   PersonID        `json:"person_id"`
	PersonName string          `json:"person_name"`
	JoinedAt   time.Time       `json:"joined_at"`
	LeftAt     *time.Time      `json:"left_at,omitempty"`
	// LeftSeq is minted when the participation closes. It orders the leave
	// among rows written at the same instant.
	LeftSeq ID `json:"-"`
}

// Active reports whether the person is still in the scene.
func (p SceneParticipation) Active() bool {
	return p.LeftAt == nil
}
