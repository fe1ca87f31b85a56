package model

import "time"

// SenderKind discriminates Sender variants.
type SenderKind string

const (
	SenderAIPerson      SenderKind = "ai_person"
	SenderRealWorldUser SenderKind = "real_world_user"
)

// RealWorldUserName is how the real-world user is named to persons.
const RealWorldUserName = "Chadtech"

// Sender is either an AI person or the real-world user. PersonID is set only
// for SenderAIPerson.
type Sender struct {
	Kind     SenderKind `json:"kind"`
	PersonID PersonID   `json:"person_id"`
}

// AIPerson returns a sender for the given person.
func AIPerson(id PersonID) Sender {
	return Sender{Kind: SenderAIPerson, PersonID: id}
}

// RealWorldUser returns the real-world user sender.
func RealWorldUser() Sender {
	return Sender{Kind: SenderRealWorldUser}
}

// RecipientKind discriminates Recipient variants.
type RecipientKind string

const (
	RecipientPerson        RecipientKind = "person"
	RecipientScene         RecipientKind = "scene"
	RecipientRealWorldUser RecipientKind = "real_world_user"
)

// Recipient is a person, a scene broadcast or the real-world user.
type Recipient struct {
	Kind     RecipientKind `json:"kind"`
	PersonID PersonID      `json:"person_id"`
	SceneID  SceneID       `json:"scene_id"`
}

// ToPerson addresses a message directly to a person.
func ToPerson(id PersonID) Recipient {
	return Recipient{Kind: RecipientPerson, PersonID: id}
}

// ToScene addresses a message to everyone in a scene.
func ToScene(id SceneID) Recipient {
	return Recipient{Kind: RecipientScene, SceneID: id}
}

// ToRealWorldUser addresses a message to the real-world user.
func ToRealWorldUser() Recipient {
	return Recipient{Kind: RecipientRealWorldUser}
}

// Message is a persisted utterance. Scene broadcasts have a Scene recipient
// and a non-nil SceneID; deliveries fanned out from a broadcast carry a
// Person recipient and the originating SceneID.
type Message struct {
	ID        MessageID  `json:"id"`
	Sender    Sender     `json:"sender"`
	Recipient Recipient  `json:"recipient"`
	SceneID   *SceneID   `json:"scene_id,omitempty"`
	Content   string     `json:"content"`
	SentAt    time.Time  `json:"sent_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// NewMessage holds the fields needed to send a message.
type NewMessage struct {
	Sender    Sender
	Recipient Recipient
	SceneID   *SceneID
	Content   string
}
